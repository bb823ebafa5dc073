// Package commands implements the ardent CLI commands.
package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/syssam/ardent/config"
	"github.com/syssam/ardent/model"
	"github.com/syssam/ardent/qb"

	"github.com/spf13/cobra"
)

// DefaultConfigPath is the configuration file read when --config is not set.
const DefaultConfigPath = "ardent.yaml"

// Options holds the flags shared by every command.
type Options struct {
	ConfigPath string
	Verbose    bool
	Stats      bool
}

// Bind registers the shared flags as persistent flags of cmd.
func (o *Options) Bind(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.StringVarP(&o.ConfigPath, "config", "c", DefaultConfigPath, "Path to the configuration file")
	fs.BoolVarP(&o.Verbose, "verbose", "v", false, "Log statements and resolution at debug level")
	fs.BoolVar(&o.Stats, "stats", false, "Print statement statistics to stderr on exit")
}

// Logger returns the logger commands pass to the registry.
func (o *Options) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// run loads the configuration, calls fn with a registry and closes it.
func (o *Options) run(stderr io.Writer, fn func(*config.Registry) error) (err error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	r, err := config.NewRegistry(cfg, config.WithLogger(o.Logger(stderr)))
	if err != nil {
		return err
	}
	defer func() {
		if o.Stats {
			stats := r.Stats()
			names := make([]string, 0, len(stats))
			for name := range stats {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(stderr, "%s: %s\n", name, stats[name])
			}
		}
		err = errors.Join(err, r.Close())
	}()
	return fn(r)
}

// withModel runs fn on the named model.
func (o *Options) withModel(stderr io.Writer, name string, fn func(*model.Model) error) error {
	return o.run(stderr, func(r *config.Registry) error {
		m, err := r.Model(name)
		if err != nil {
			return err
		}
		return fn(m)
	})
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(normalize(v))
}

// normalize converts byte slices returned by drivers into strings.
func normalize(v any) any {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case qb.Row:
		if v == nil {
			return nil
		}
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = normalize(e)
		}
		return out
	case []qb.Row:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

// decodeObject decodes a JSON object. Integral numbers decode to int64 and
// other numbers to float64.
func decodeObject(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var obj map[string]any
	if err := decode(s, &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON object %q: %w", s, err)
	}
	for k, v := range obj {
		obj[k] = numbers(v)
	}
	return obj, nil
}

// decodeValue decodes a command-line value. Arguments that are not valid
// JSON are taken as plain strings.
func decodeValue(s string) any {
	var v any
	if err := decode(s, &v); err != nil {
		return s
	}
	return numbers(v)
}

func decode(s string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

func numbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i, e := range v {
			v[i] = numbers(e)
		}
		return v
	case map[string]any:
		for k, e := range v {
			v[k] = numbers(e)
		}
		return v
	}
	return v
}
