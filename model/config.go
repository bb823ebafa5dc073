package model

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default soft-delete columns.
const (
	DefaultSoftDeleteColumn    = "is_deleted"
	DefaultSoftDeletedAtColumn = "delete_time"
	DefaultConnection          = "default"
)

// Config describes the table a Model is bound to.
type Config struct {
	// Table is the table name. When empty, it is derived from the model name.
	Table string `yaml:"table"`
	// PrimaryKey is the primary key column. When empty, it is read from the database.
	PrimaryKey string `yaml:"primary_key"`
	// Columns is the list of writable and selectable columns. When empty,
	// it is read from the database.
	Columns ColumnList `yaml:"columns"`
	// OrderBy is the default ordering of SELECTs without explicit ordering.
	OrderBy []Order `yaml:"order_by"`
	// SoftDelete turns Delete into an UPDATE of the soft-delete columns.
	SoftDelete bool `yaml:"soft_delete"`
	// SoftDeleteColumn is the deletion marker column. Default is "is_deleted".
	SoftDeleteColumn string `yaml:"soft_delete_column"`
	// SoftDeletedAtColumn holds the Unix time of the deletion. Default is "delete_time".
	SoftDeletedAtColumn string `yaml:"soft_deleted_at_column"`
	// NullPolicy decides what happens to nil payload values. Default is NullEmpty.
	NullPolicy NullPolicy `yaml:"null_policy"`
	// Connection names the database connection of the model. Default is "default".
	// Metadata caches are keyed by connection and table, so models on different
	// databases sharing one cache need distinct connection names.
	Connection string `yaml:"connection"`
	// UUIDKey fills a missing primary key with a random UUID on create.
	UUIDKey bool `yaml:"uuid_key"`
}

func (c *Config) defaults() {
	if c.SoftDeleteColumn == "" {
		c.SoftDeleteColumn = DefaultSoftDeleteColumn
	}
	if c.SoftDeletedAtColumn == "" {
		c.SoftDeletedAtColumn = DefaultSoftDeletedAtColumn
	}
	if c.NullPolicy == "" {
		c.NullPolicy = NullEmpty
	}
	if c.Connection == "" {
		c.Connection = DefaultConnection
	}
}

func (c *Config) validate() error {
	switch c.NullPolicy {
	case NullEmpty, NullKeep:
	default:
		return fmt.Errorf("unknown null policy %q", c.NullPolicy)
	}
	for _, o := range c.OrderBy {
		if o.Column == "" {
			return fmt.Errorf("order by entry without column")
		}
		switch strings.ToUpper(o.Direction) {
		case "", "ASC", "DESC":
		default:
			return fmt.Errorf("invalid direction %q for order by %q", o.Direction, o.Column)
		}
	}
	return nil
}

// NullPolicy decides how nil payload values are sanitized.
type NullPolicy string

const (
	// NullEmpty replaces nil values with the empty string. This is the
	// legacy behavior and the default; it loses NULL for numeric and
	// nullable columns.
	NullEmpty NullPolicy = "empty"
	// NullKeep keeps nil values, which are written as NULL.
	NullKeep NullPolicy = "keep"
)

// ColumnList is an ordered list of column names. Each entry of its YAML
// form may hold several comma-separated names, and a single string is
// accepted in place of a sequence.
type ColumnList []string

// ParseColumns splits comma-separated column specifications into a list
// of trimmed, non-empty names.
func ParseColumns(specs ...string) ColumnList {
	var columns ColumnList
	for _, spec := range specs {
		for _, c := range strings.Split(spec, ",") {
			if c = strings.TrimSpace(c); c != "" {
				columns = append(columns, c)
			}
		}
	}
	return columns
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ColumnList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*c = ParseColumns(value.Value)
	case yaml.SequenceNode:
		var specs []string
		if err := value.Decode(&specs); err != nil {
			return err
		}
		*c = ParseColumns(specs...)
	default:
		return fmt.Errorf("line %d: columns must be a string or a list of strings", value.Line)
	}
	return nil
}

// Order is a default ordering term.
type Order struct {
	Column    string `yaml:"column"`
	Direction string `yaml:"direction"`
}

// Asc returns an ascending Order on column.
func Asc(column string) Order { return Order{Column: column, Direction: "ASC"} }

// Desc returns a descending Order on column.
func Desc(column string) Order { return Order{Column: column, Direction: "DESC"} }

// UnmarshalYAML implements yaml.Unmarshaler. Besides the mapping form,
// an order may be written as "column" or "column direction".
func (o *Order) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		fields := strings.Fields(value.Value)
		switch len(fields) {
		case 1:
			*o = Order{Column: fields[0]}
		case 2:
			*o = Order{Column: fields[0], Direction: fields[1]}
		default:
			return fmt.Errorf("line %d: invalid order %q", value.Line, value.Value)
		}
		return nil
	}
	type plain Order
	return value.Decode((*plain)(o))
}

// DeleteState is the value of the soft-delete marker column.
type DeleteState int

const (
	// Active marks a row that is not deleted.
	Active DeleteState = 0
	// Deleted marks a soft-deleted row.
	Deleted DeleteState = 1
)

// Value implements driver.Valuer. The state is stored as an integer.
func (s DeleteState) Value() (driver.Value, error) {
	return int64(s), nil
}

// String returns the name of the state.
func (s DeleteState) String() string {
	if s == Deleted {
		return "deleted"
	}
	return "active"
}
