package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/syssam/quill/dialect"
)

// Statement is a compiled statement. Params are referenced from Query as
// $name and bound positionally by Bind.
type Statement struct {
	Query  string
	Params map[string]any
	// Returns is set when the statement produces rows.
	Returns bool
}

// ExecResult is the outcome of ExecWithDuration.
type ExecResult struct {
	// Rows holds one column map per returned row.
	Rows []map[string]any
	// RowsAffected is the number of affected rows, or the number of
	// returned rows for statements that produce them.
	RowsAffected int64
	Duration     time.Duration
}

// Driver is a dialect.Driver implementation for SQL based databases.
type Driver struct {
	Conn
	dialect string
}

// NewDriver creates a new Driver with the given Conn and dialect.
func NewDriver(dialect string, c Conn) *Driver {
	return &Driver{dialect: dialect, Conn: c}
}

// Open wraps the database/sql.Open method and returns a Driver for the
// dialect. D1 has no database/sql driver and must be wired with NewDriver.
func Open(name, source string) (*Driver, error) {
	if name == dialect.D1 {
		return nil, errors.New("dialect/sql: d1 requires NewDriver with a custom ExecQuerier")
	}
	db, err := sql.Open(name, source)
	if err != nil {
		return nil, err
	}
	return NewDriver(name, Conn{db, name}), nil
}

// OpenDB wraps the given database/sql.DB method with a Driver.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return NewDriver(dialect, Conn{db, dialect})
}

// DB returns the underlying *sql.DB instance, or nil when the driver runs
// on a custom ExecQuerier.
func (d Driver) DB() *sql.DB {
	db, _ := d.ExecQuerier.(*sql.DB)
	return db
}

// Dialect implements the dialect.Dialect method.
func (d Driver) Dialect() string {
	return normalize(d.dialect)
}

// normalize strips driver suffixes added by wrapping drivers.
func normalize(name string) string {
	for _, n := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres, dialect.D1} {
		if strings.HasPrefix(name, n) {
			return n
		}
	}
	return name
}

// ExecWithDuration binds and runs st, and reports how long it took.
func (d *Driver) ExecWithDuration(ctx context.Context, st Statement) (*ExecResult, error) {
	return execute(ctx, d, d.Dialect(), st)
}

// Tx starts and returns a transaction.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// BeginTx starts a transaction with options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	db := d.DB()
	if db == nil {
		return nil, fmt.Errorf("dialect/sql: transactions are not supported on %T", d.ExecQuerier)
	}
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{
		Conn: Conn{tx, d.dialect},
		Tx:   tx,
	}, nil
}

// Close closes the underlying connection.
func (d *Driver) Close() error {
	if c, ok := d.ExecQuerier.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Tx implements dialect.Tx interface.
type Tx struct {
	Conn
	driver.Tx
}

// Dialect returns the dialect of the driver that started the transaction.
func (tx *Tx) Dialect() string { return normalize(tx.Conn.dialect) }

// ExecWithDuration runs st inside the transaction.
func (tx *Tx) ExecWithDuration(ctx context.Context, st Statement) (*ExecResult, error) {
	return execute(ctx, tx, tx.Dialect(), st)
}

// execute binds st for the dialect and runs it on ex. Statements that
// return rows go through Query and are scanned into column maps.
func execute(ctx context.Context, ex dialect.ExecQuerier, name string, st Statement) (*ExecResult, error) {
	query, args, err := Bind(name, st)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res := &ExecResult{}
	if st.Returns {
		rows := &Rows{}
		if err := ex.Query(ctx, query, args, rows); err != nil {
			return nil, err
		}
		res.Rows, err = scanMaps(rows)
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
		res.RowsAffected = int64(len(res.Rows))
	} else {
		var r sql.Result
		if err := ex.Exec(ctx, query, args, &r); err != nil {
			return nil, err
		}
		if n, err := r.RowsAffected(); err == nil {
			res.RowsAffected = n
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

// scanMaps reads every row into a column map. Text returned as []byte is
// converted to string.
func scanMaps(rows *Rows) ([]map[string]any, error) {
	out := []map[string]any{}
	for rows.Next() {
		m := make(map[string]any)
		if err := sqlx.MapScan(rows, m); err != nil {
			return nil, fmt.Errorf("dialect/sql: scan: %w", err)
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dialect/sql: rows: %w", err)
	}
	return out, nil
}

// ExecQuerier wraps the standard Exec and Query methods. *sql.DB, *sql.Tx
// and *sql.Conn implement it; so can an HTTP-backed D1 client.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn implements dialect.ExecQuerier given ExecQuerier.
type Conn struct {
	ExecQuerier
	dialect string
}

// Exec implements the dialect.Exec method.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	switch v := v.(type) {
	case nil:
		if _, err := c.ExecContext(ctx, query, argv...); err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
	case *sql.Result:
		res, err := c.ExecContext(ctx, query, argv...)
		if err != nil {
			return fmt.Errorf("dialect/sql: exec: %w", err)
		}
		*v = res
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	return nil
}

// Query implements the dialect.Query method.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	vr, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, ok := args.([]any)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	rows, err := c.QueryContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	*vr = Rows{rows}
	return nil
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}
