package commands

import (
	"context"
	"fmt"

	"github.com/syssam/ardent/config"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// TableInfo is the resolved shape of one model.
type TableInfo struct {
	Model      string   `json:"model"`
	Table      string   `json:"table"`
	PrimaryKey string   `json:"primary_key"`
	Columns    []string `json:"columns"`
	SoftDelete bool     `json:"soft_delete"`
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand(opts *Options) *cobra.Command {
	var parallel int

	cmd := &cobra.Command{
		Use:   "columns [model...]",
		Short: "Resolve the table, primary key and columns of models",
		Long: `Resolve the table, primary key and columns of the given models, or of
every configured model when none is given. Models are inspected concurrently.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.ErrOrStderr(), func(r *config.Registry) error {
				names := args
				if len(names) == 0 {
					names = r.Config().ModelNames()
				}
				infos, err := inspect(cmd.Context(), r, names, parallel)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), infos)
			})
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "Maximum number of models inspected at once")

	return cmd
}

// inspect resolves every named model, each on its own model instance.
func inspect(ctx context.Context, r *config.Registry, names []string, parallel int) ([]TableInfo, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	infos := make([]TableInfo, len(names))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, name := range names {
		g.Go(func() error {
			m, err := r.Model(name)
			if err != nil {
				return err
			}
			columns, err := m.Columns(ctx)
			if err != nil {
				return fmt.Errorf("model %q: %w", name, err)
			}
			pk, err := m.PrimaryKey(ctx)
			if err != nil {
				return fmt.Errorf("model %q: %w", name, err)
			}
			infos[i] = TableInfo{
				Model:      name,
				Table:      m.PrefixedTable(),
				PrimaryKey: pk,
				Columns:    columns,
				SoftDelete: m.SoftDelete(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}
