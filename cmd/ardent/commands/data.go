package commands

import (
	"errors"
	"fmt"

	"github.com/syssam/ardent/model"
	"github.com/syssam/ardent/qb"

	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand(opts *Options) *cobra.Command {
	var columns []string

	cmd := &cobra.Command{
		Use:   "show <model> <id>",
		Short: "Print one row by primary key",
		Long: `Print the row whose primary key equals id. A JSON object is taken as
a set of column conditions instead. Prints null when no row matches.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withModel(cmd.ErrOrStderr(), args[0], func(m *model.Model) error {
				id := decodeValue(args[1])
				if obj, ok := id.(map[string]any); ok {
					id = qb.Where(obj)
				}
				row, err := m.Show(cmd.Context(), id, columns...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), row)
			})
		},
	}

	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to select (default all)")

	return cmd
}

// NewFindCommand creates the find command.
func NewFindCommand(opts *Options) *cobra.Command {
	var (
		where   string
		columns []string
		ids     string
		scope   string
	)

	cmd := &cobra.Command{
		Use:   "find <model>",
		Short: "Print the rows matching conditions",
		Long: `Print the rows matching a JSON object of conditions. Array values match
any of their elements. With --ids the rows are selected by primary key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := decodeObject(where)
			if err != nil {
				return err
			}
			return opts.withModel(cmd.ErrOrStderr(), args[0], func(m *model.Model) error {
				if err := applyScope(m, scope); err != nil {
					return err
				}
				var rows []qb.Row
				if ids != "" {
					rows, err = m.FindByIDs(cmd.Context(), decodeValue(ids), columns...)
				} else {
					rows, err = m.Find(cmd.Context(), cond, columns...)
				}
				if err != nil {
					return err
				}
				if rows == nil {
					rows = []qb.Row{}
				}
				return printJSON(cmd.OutOrStdout(), rows)
			})
		},
	}

	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON object of column conditions")
	cmd.Flags().StringVar(&ids, "ids", "", "Primary key or JSON array of primary keys")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to select (default all)")
	cmd.Flags().StringVar(&scope, "scope", "all", "Soft-delete scope: all, undeleted or deleted")

	return cmd
}

func applyScope(m *model.Model, scope string) error {
	switch scope {
	case "", "all":
	case "undeleted":
		m.ScopeUndeleted()
	case "deleted":
		m.ScopeDeleted()
	default:
		return fmt.Errorf("unknown scope %q", scope)
	}
	return nil
}

// NewCreateCommand creates the create command.
func NewCreateCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <model> <json>...",
		Short: "Insert rows",
		Long: `Insert one row per JSON object argument. Keys that are not columns of
the table are dropped. Several objects are inserted as one batch.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := decodeRows(args[1:])
			if err != nil {
				return err
			}
			return opts.withModel(cmd.ErrOrStderr(), args[0], func(m *model.Model) error {
				if len(rows) == 1 {
					err = m.Create(cmd.Context(), rows[0])
				} else {
					err = m.BatchCreate(cmd.Context(), rows)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{
					"affected_rows": m.AffectedRows(),
					"insert_id":     m.InsertID(),
				})
			})
		},
	}

	return cmd
}

// NewSaveCommand creates the save command.
func NewSaveCommand(opts *Options) *cobra.Command {
	var (
		where string
		index string
	)

	cmd := &cobra.Command{
		Use:   "save <model> <json>...",
		Short: "Update rows",
		Long: `Update the row identified by the primary key of the JSON object, or the
rows matching --where. With several objects, rows are updated in one batch
keyed by --index.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := decodeRows(args[1:])
			if err != nil {
				return err
			}
			cond, err := decodeObject(where)
			if err != nil {
				return err
			}
			return opts.withModel(cmd.ErrOrStderr(), args[0], func(m *model.Model) error {
				if len(rows) == 1 {
					err = m.Save(cmd.Context(), rows[0], cond)
				} else {
					key := index
					if key == "" {
						if key, err = m.PrimaryKey(cmd.Context()); err != nil {
							return err
						}
					}
					err = m.BatchSave(cmd.Context(), rows, key)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{"affected_rows": m.AffectedRows()})
			})
		},
	}

	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON object of column conditions")
	cmd.Flags().StringVar(&index, "index", "", "Column identifying rows in a batch (default primary key)")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *Options) *cobra.Command {
	return newMarkCommand(opts, "delete", "Delete rows, or mark them deleted when soft delete is enabled",
		func(m *model.Model, cmd *cobra.Command, where qb.Where, limit int) error {
			return m.Delete(cmd.Context(), where, limit)
		})
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(opts *Options) *cobra.Command {
	return newMarkCommand(opts, "restore", "Clear the deletion mark of soft-deleted rows",
		func(m *model.Model, cmd *cobra.Command, where qb.Where, limit int) error {
			return m.Restore(cmd.Context(), where, limit)
		})
}

func newMarkCommand(opts *Options, use, short string, fn func(*model.Model, *cobra.Command, qb.Where, int) error) *cobra.Command {
	var (
		where string
		limit int
	)

	cmd := &cobra.Command{
		Use:   use + " <model>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cond, err := decodeObject(where)
			if err != nil {
				return err
			}
			if len(cond) == 0 {
				return errors.New("--where is required")
			}
			return opts.withModel(cmd.ErrOrStderr(), args[0], func(m *model.Model) error {
				if err := fn(m, cmd, cond, limit); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{"affected_rows": m.AffectedRows()})
			})
		},
	}

	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON object of column conditions")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows (MySQL only)")

	return cmd
}

func decodeRows(args []string) ([]qb.Row, error) {
	rows := make([]qb.Row, len(args))
	for i, arg := range args {
		obj, err := decodeObject(arg)
		if err != nil {
			return nil, err
		}
		rows[i] = obj
	}
	return rows, nil
}
