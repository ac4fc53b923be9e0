// Package tabular queries CSV and JSON files as in-memory tables.
//
// Files are parsed into a Dataset whose cells are tagged Values, and are
// kept in a Cache that reloads a file whenever its modification time changes.
// An Engine runs queries over cached datasets:
//
//   - a filter expression such as "age>=30;name~jo" selects rows,
//   - a sort specification such as "age:desc,name" orders them,
//   - limit and offset cut the page.
//
// Filter syntax is a ';'-separated list of <column><op><value> clauses with
// operators ==, !=, >=, <=, >, <, in and ~ (case-insensitive substring). All
// clauses must match. A clause on an unknown column matches no row, while an
// unknown sort column is ignored.
package tabular
