// Package sql provides SQL statement building primitives and a database/sql
// backed implementation of dialect.Driver.
//
// Statements are rendered for one of the supported dialects (PostgreSQL,
// MySQL, SQLite), which decides identifier quoting and placeholder style.
//
// # Builder Types
//
//   - Builder: low-level SQL string builder with identifier quoting and argument binding
//   - Selector: SELECT builder with predicates, grouping, ordering and pagination
//   - InsertBuilder: INSERT and REPLACE builder with multi-row VALUES
//   - UpdateBuilder: UPDATE builder with SET assignments and predicates
//   - DeleteBuilder: DELETE builder with predicates
//
// # Dialect Support
//
//	// PostgreSQL: "users"."name" = $1
//	sql.Dialect(dialect.Postgres).Select("id", "name").From("users").
//	    Where(sql.EQ("name", "a8m"))
//
//	// MySQL: `users`.`name` = ?
//	sql.Dialect(dialect.MySQL).Select("id", "name").From("users").
//	    Where(sql.EQ("name", "a8m"))
//
// # Predicates
//
//	sql.EQ("name", "john")           // name = ?
//	sql.NEQ("status", "deleted")     // status <> ?
//	sql.In("id", 1, 2, 3)            // id IN (?, ?, ?)
//	sql.Contains("email", "@")       // email LIKE ?
//	sql.Or(sql.EQ("a", 1), sql.EQ("b", 2))
//
// # Drivers
//
// Open returns a Driver over database/sql. NewStatsDriver and NewDebugDriver
// wrap any dialect.Driver with statistics collection and slog based
// statement logging.
//
// # Errors
//
// ConstraintOf classifies constraint violations reported by the MySQL,
// PostgreSQL and SQLite drivers.
package sql
