package qb

import (
	"context"
	"fmt"

	"github.com/syssam/ardent/dialect"
)

// Field describes a table column.
type Field struct {
	Name       string
	Type       string
	MaxLength  int64
	Default    *string
	PrimaryKey bool
}

const (
	sqliteFields = `SELECT name, type, NULL AS max_length, dflt_value AS default_value, pk AS primary_key ` +
		`FROM pragma_table_info(?) ORDER BY cid`

	mysqlFields = `SELECT COLUMN_NAME AS name, DATA_TYPE AS type, CHARACTER_MAXIMUM_LENGTH AS max_length, ` +
		`COLUMN_DEFAULT AS default_value, COLUMN_KEY = 'PRI' AS primary_key ` +
		`FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`

	postgresFields = `SELECT c.column_name AS name, c.data_type AS type, c.character_maximum_length AS max_length, ` +
		`c.column_default AS default_value, EXISTS (SELECT 1 FROM information_schema.table_constraints tc ` +
		`JOIN information_schema.key_column_usage k ON tc.constraint_name = k.constraint_name AND tc.table_schema = k.table_schema ` +
		`WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = c.table_schema AND tc.table_name = c.table_name ` +
		`AND k.column_name = c.column_name) AS primary_key ` +
		`FROM information_schema.columns c WHERE c.table_schema = current_schema() AND c.table_name = $1 ORDER BY c.ordinal_position`
)

// FieldData returns the columns of table in ordinal order. It fails if the
// table does not exist.
func (b *Builder) FieldData(ctx context.Context, table string) ([]Field, error) {
	var query string
	switch b.dialect {
	case dialect.SQLite:
		query = sqliteFields
	case dialect.MySQL:
		query = mysqlFields
	case dialect.Postgres:
		query = postgresFields
	default:
		return nil, b.fail(ctx, "field_data", fmt.Errorf("unsupported dialect %q", b.dialect))
	}
	name := b.table(table)
	rows, err := b.query(ctx, "field_data", compiled{query: query, args: []any{name}})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, b.fail(ctx, "field_data", fmt.Errorf("table %q does not exist or has no columns", name))
	}
	fields := make([]Field, 0, len(rows))
	for _, r := range rows {
		f := Field{
			Name:       fmt.Sprint(r["name"]),
			PrimaryKey: truthy(r["primary_key"]),
		}
		if t, ok := r["type"].(string); ok {
			f.Type = t
		}
		if n, err := toInt64(r["max_length"]); err == nil {
			f.MaxLength = n
		}
		if d, ok := r["default_value"].(string); ok {
			f.Default = &d
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// ListFields returns the column names of table in ordinal order.
func (b *Builder) ListFields(ctx context.Context, table string) ([]string, error) {
	fields, err := b.FieldData(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names, nil
}

// Primary returns the primary key column of table. When the table declares
// no primary key, the first column is returned.
func (b *Builder) Primary(ctx context.Context, table string) (string, error) {
	fields, err := b.FieldData(ctx, table)
	if err != nil {
		return "", err
	}
	for _, f := range fields {
		if f.PrimaryKey {
			return f.Name, nil
		}
	}
	return fields[0].Name, nil
}

// FieldExists reports whether table has the column field.
func (b *Builder) FieldExists(ctx context.Context, field, table string) (bool, error) {
	names, err := b.ListFields(ctx, table)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == field {
			return true, nil
		}
	}
	return false, nil
}

// truthy normalizes the primary key flag reported by the different dialects:
// a boolean on PostgreSQL, 0/1 on MySQL and the key position on SQLite.
func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "0" && v != "f" && v != "false"
	default:
		n, err := toInt64(v)
		return err == nil && n != 0
	}
}
