// Package sql compiles condition trees and CRUD statements to SQL and runs
// them on database/sql drivers.
//
// # Compiling
//
// Statements are compiled with named parameters referenced as $name:
//
//	conds := querylanguage.MustParse("firstName[=][Harry],orGroup[lastName[=][Potter],lastName[=][Weasley]]")
//	frag, next, err := sql.CompileConditions(dialect.SQLite, conds, 0)
//	// frag.SQL:    "firstName" = $p0 and ("lastName" = $p1 or "lastName" = $p2)
//	// frag.Params: p0=Harry p1=Potter p2=Weasley
//	// next:        3
//
// SelectStatement, CountStatement, AggregateStatement, InsertStatement,
// UpdateStatement and DeleteStatement emit their clauses in a fixed order:
//
//	core, raw(beforeWhere), where, raw(afterWhere), group by,
//	raw(afterGroupBy), order by, raw(afterOrderBy), limit/offset,
//	returning, raw(end)
//
// # Running
//
// Bind rewrites $name references into positional placeholders. Driver
// and Tx implement Executor: ExecWithDuration binds a Statement, runs it
// and scans returned rows into column maps.
//
//	drv, err := sql.Open(dialect.SQLite, "file:hogwarts.db")
//	res, err := drv.ExecWithDuration(ctx, st)
//	fmt.Println(res.Rows, res.RowsAffected, res.Duration)
//
// StatsDriver and DebugDriver wrap any Executor. The first counts
// statements per kind with the durations reported by the wrapped
// executor; the second logs them through slog.
//
// # Errors
//
// ConstraintKindOf classifies constraint violations reported by lib/pq,
// go-sql-driver/mysql and modernc.org/sqlite.
package sql
