package qb

import (
	"reflect"
	"sort"
	"strings"

	"github.com/syssam/ardent/dialect/sql"
)

// Row is a column-keyed record, used both for statement payloads and for
// rows read back from the database.
type Row map[string]any

// Columns returns the keys of the row in ascending order.
func (r Row) Columns() []string {
	columns := make([]string, 0, len(r))
	for c := range r {
		columns = append(columns, c)
	}
	sort.Strings(columns)
	return columns
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Filter is a where clause accepted by the statement methods of Builder.
// Where, Raw and Pred implement it.
type Filter interface {
	predicates() []sql.Predicate
}

// Where is a column-keyed filter. A scalar value matches by equality, a
// slice or array value by membership and a nil value by IS NULL. A key may
// carry a trailing comparison operator, as in "age >=" or "status !=".
// Entries are applied in ascending key order.
type Where map[string]any

func (w Where) predicates() []sql.Predicate {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	preds := make([]sql.Predicate, 0, len(keys))
	for _, k := range keys {
		preds = append(preds, Cond(k, w[k]))
	}
	return preds
}

// Raw is a pre-built SQL filter expression. Each "?" in Expr is bound to
// the next element of Args.
type Raw struct {
	Expr string
	Args []any
}

func (r Raw) predicates() []sql.Predicate {
	return []sql.Predicate{sql.Expr(r.Expr, r.Args...)}
}

// Pred adapts a dialect/sql predicate to a Filter.
type Pred sql.Predicate

func (p Pred) predicates() []sql.Predicate {
	return []sql.Predicate{sql.Predicate(p)}
}

// Cond returns the predicate for a single filter entry. The key is a column
// name optionally followed by one of the operators =, !=, <>, >, >=, <, <=
// or LIKE.
func Cond(key string, v any) sql.Predicate {
	column, op := splitOperator(key)
	if list, ok := List(v); ok {
		if op == "!=" || op == "<>" {
			return sql.NotIn(column, list...)
		}
		return sql.In(column, list...)
	}
	switch op {
	case "!=", "<>":
		return sql.NEQ(column, v)
	case ">":
		return sql.GT(column, v)
	case ">=":
		return sql.GTE(column, v)
	case "<":
		return sql.LT(column, v)
	case "<=":
		return sql.LTE(column, v)
	case "LIKE":
		s, _ := v.(string)
		return sql.Like(column, s)
	default:
		return sql.EQ(column, v)
	}
}

var operators = []string{"!=", "<>", ">=", "<=", "=", ">", "<", "LIKE"}

func splitOperator(key string) (string, string) {
	key = strings.TrimSpace(key)
	i := strings.LastIndexByte(key, ' ')
	if i < 0 {
		// Operators written without a space, as in "age>=".
		for _, op := range operators[:len(operators)-1] {
			if strings.HasSuffix(key, op) && len(key) > len(op) {
				return strings.TrimSpace(key[:len(key)-len(op)]), op
			}
		}
		return key, "="
	}
	op := strings.ToUpper(key[i+1:])
	for _, known := range operators {
		if op == known {
			return strings.TrimSpace(key[:i]), op
		}
	}
	return key, "="
}

// List reports whether v is a slice or array (other than []byte) and
// returns its elements.
func List(v any) ([]any, bool) {
	switch v := v.(type) {
	case nil, []byte, string:
		return nil, false
	case []any:
		return v, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}
