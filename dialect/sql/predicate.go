package sql

import (
	"strings"

	"github.com/syssam/ardent/dialect"
)

// Predicate renders a boolean SQL expression into a Builder.
//
// Usage:
//
//	sql.Dialect(dialect.Postgres).Select("id", "name").From("users").
//	    Where(sql.EQ("status", 1)).
//	    Where(sql.In("role", "admin", "owner"))
type Predicate func(*Builder)

// EQ returns a "=" predicate. A nil value renders as IS NULL.
func EQ(column string, v any) Predicate {
	if v == nil {
		return IsNull(column)
	}
	return op(column, "=", v)
}

// NEQ returns a "<>" predicate. A nil value renders as IS NOT NULL.
func NEQ(column string, v any) Predicate {
	if v == nil {
		return NotNull(column)
	}
	return op(column, "<>", v)
}

// GT returns a ">" predicate.
func GT(column string, v any) Predicate { return op(column, ">", v) }

// GTE returns a ">=" predicate.
func GTE(column string, v any) Predicate { return op(column, ">=", v) }

// LT returns a "<" predicate.
func LT(column string, v any) Predicate { return op(column, "<", v) }

// LTE returns a "<=" predicate.
func LTE(column string, v any) Predicate { return op(column, "<=", v) }

func op(column, operator string, v any) Predicate {
	return func(b *Builder) {
		b.Ident(column).WriteString(" " + operator + " ").Arg(v)
	}
}

// In returns an "IN" predicate. An empty list matches no rows.
func In(column string, args ...any) Predicate {
	if len(args) == 0 {
		return False()
	}
	return func(b *Builder) {
		b.Ident(column).WriteString(" IN ").Nested(func(b *Builder) {
			b.Args(args...)
		})
	}
}

// NotIn returns a "NOT IN" predicate. An empty list matches all rows.
func NotIn(column string, args ...any) Predicate {
	if len(args) == 0 {
		return True()
	}
	return func(b *Builder) {
		b.Ident(column).WriteString(" NOT IN ").Nested(func(b *Builder) {
			b.Args(args...)
		})
	}
}

// Like returns a "LIKE" predicate.
func Like(column, pattern string) Predicate {
	return op(column, "LIKE", pattern)
}

// Contains returns a "LIKE '%sub%'" predicate. Wildcards in sub are escaped.
func Contains(column, sub string) Predicate {
	return escapedLike(column, "%"+EscapeLike(sub)+"%")
}

// HasPrefix returns a "LIKE 'prefix%'" predicate.
func HasPrefix(column, prefix string) Predicate {
	return escapedLike(column, EscapeLike(prefix)+"%")
}

// escapedLike is a LIKE predicate whose pattern escapes wildcards with a
// backslash. SQLite has no default escape character.
func escapedLike(column, pattern string) Predicate {
	return func(b *Builder) {
		b.Ident(column).WriteString(" LIKE ").Arg(pattern)
		if b.Dialect() == dialect.SQLite {
			b.WriteString(` ESCAPE '\'`)
		}
	}
}

// IsNull returns an "IS NULL" predicate.
func IsNull(column string) Predicate {
	return func(b *Builder) {
		b.Ident(column).WriteString(" IS NULL")
	}
}

// NotNull returns an "IS NOT NULL" predicate.
func NotNull(column string) Predicate {
	return func(b *Builder) {
		b.Ident(column).WriteString(" IS NOT NULL")
	}
}

// Expr returns a raw predicate. Each "?" in expr is bound to the next arg.
func Expr(expr string, args ...any) Predicate {
	return func(b *Builder) {
		b.Raw(expr, args...)
	}
}

// True returns a predicate that matches all rows.
func True() Predicate {
	return func(b *Builder) { b.WriteString("1 = 1") }
}

// False returns a predicate that matches no rows.
func False() Predicate {
	return func(b *Builder) { b.WriteString("1 = 0") }
}

// And groups predicates with AND.
func And(preds ...Predicate) Predicate {
	return join(" AND ", preds)
}

// Or groups predicates with OR.
func Or(preds ...Predicate) Predicate {
	return join(" OR ", preds)
}

// Not negates the given predicate.
func Not(p Predicate) Predicate {
	return func(b *Builder) {
		b.WriteString("NOT ").Nested(func(b *Builder) { p(b) })
	}
}

func join(sep string, preds []Predicate) Predicate {
	if len(preds) == 1 {
		return preds[0]
	}
	return func(b *Builder) {
		b.Nested(func(b *Builder) {
			for i, p := range preds {
				if i > 0 {
					b.WriteString(sep)
				}
				p(b)
			}
		})
	}
}

// EscapeLike escapes the LIKE wildcards in s.
func EscapeLike(s string) string {
	if !strings.ContainsAny(s, `%_\`) {
		return s
	}
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
