// Package dialect names the storage dialects quill compiles SQL for and
// records where they differ.
//
// # Supported Dialects
//
//   - Postgres: PostgreSQL
//   - MySQL: MySQL/MariaDB
//   - SQLite: SQLite (modernc.org/sqlite or any database/sql driver)
//   - D1: Cloudflare D1, SQLite grammar behind a custom ExecQuerier
//
// # Known Incompatibilities
//
// Only Postgres has a native ILIKE; the compiler lowers both sides of a
// LIKE elsewhere. SQLite, D1 and MySQL reject OFFSET without LIMIT, so the
// compiler emits NoLimit before a bare offset.
//
// # Driver Interface
//
// The package defines the Driver interface for database operations:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Usage
//
//	import (
//	    "github.com/syssam/quill/dialect"
//	    "github.com/syssam/quill/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	client := quill.NewClient(drv, registry)
package dialect
