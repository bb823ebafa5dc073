// Package dialect provides the database dialect abstraction for ardent.
//
// It defines the contracts the query builder executes statements through,
// allowing ardent models to run on PostgreSQL, MySQL and SQLite.
//
// # Supported Dialects
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// Tx extends ExecQuerier with Commit and Rollback.
//
// # Usage
//
//	drv, err := sql.Open(dialect.SQLite, "file:app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	users, err := model.New(qb.New(drv), model.Config{Table: "users", SoftDelete: true})
//
// # Sub-packages
//
//   - dialect/sql: database/sql driver, statement builders, predicates and
//     constraint error classification
package dialect
