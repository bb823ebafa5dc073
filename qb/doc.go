// Package qb provides a stateful query builder over a dialect.Driver.
//
// Chainable methods accumulate the pending parts of the next statement,
// and the terminal methods (Get, Insert, Update, Delete and friends) render
// them with the dialect/sql builders, run them and reset the pending state:
//
//	b := qb.New(drv)
//	res, err := b.Select("id", "name").
//	    Where("status", []int{1, 2}).
//	    Where("age >=", 18).
//	    OrderBy("id", "DESC").
//	    Get(ctx, "users", 10, 0)
//	for _, row := range res.Rows() {
//	    fmt.Println(row["id"], row["name"])
//	}
//
// After every statement the builder keeps the interpolated SQL (LastQuery),
// the error (Err), the affected rows and the generated insert id.
//
// Table metadata is read from the information schema of MySQL and
// PostgreSQL and from pragma_table_info on SQLite (see FieldData).
package qb
