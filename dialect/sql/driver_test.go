package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/syssam/quill/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
	}{
		{"Postgres", dialect.Postgres},
		{"MySQL", dialect.MySQL},
		{"SQLite", dialect.SQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.dialect, db)
			assert.NotNil(t, drv)
			assert.Equal(t, tt.dialect, drv.Dialect())
		})
	}
}

// TestDriverQuery tests query operations.
func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("simple_query", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
				AddRow(1, "Alice").
				AddRow(2, "Bob"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT id, name FROM users", []any{}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_with_args", func(t *testing.T) {
		mock.ExpectQuery("SELECT name FROM users WHERE id = \\$1").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Alice"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT name FROM users WHERE id = $1", []any{1}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_error", func(t *testing.T) {
		expectedErr := errors.New("database error")
		mock.ExpectQuery("SELECT").WillReturnError(expectedErr)

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT", []any{}, rows)
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestDriverExec tests execute operations.
func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("simple_exec", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := drv.Exec(context.Background(), "INSERT INTO users (name) VALUES ('test')", []any{}, nil)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_with_args", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET name = \\$1 WHERE id = \\$2").
			WithArgs("Alice", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := drv.Exec(context.Background(), "UPDATE users SET name = $1 WHERE id = $2", []any{"Alice", 1}, nil)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_error", func(t *testing.T) {
		expectedErr := errors.New("constraint violation")
		mock.ExpectExec("DELETE").WillReturnError(expectedErr)

		err := drv.Exec(context.Background(), "DELETE FROM users", []any{}, nil)
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestDriverTransaction tests transaction operations.
func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	t.Run("successful_commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)

		err = tx.Exec(context.Background(), "INSERT INTO users (name) VALUES ('test')", []any{}, nil)
		require.NoError(t, err)

		err = tx.Commit()
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("error"))
		mock.ExpectRollback()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)

		err = tx.Exec(context.Background(), "INSERT INTO users (name) VALUES ('test')", []any{}, nil)
		require.Error(t, err)

		err = tx.Rollback()
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_in_transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)

		rows := &Rows{}
		err = tx.Query(context.Background(), "SELECT id FROM users", []any{}, rows)
		require.NoError(t, err)

		err = tx.Commit()
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestDialectMethod tests the Dialect method.
func TestDialectMethod(t *testing.T) {
	tests := []struct {
		dialect string
	}{
		{dialect.Postgres},
		{dialect.MySQL},
		{dialect.SQLite},
	}

	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.dialect, db)
			assert.Equal(t, tt.dialect, drv.Dialect())
		})
	}
}

// TestContextCancellation tests that context cancellation is respected.
func TestContextCancellation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	// Query with canceled context
	mock.ExpectQuery("SELECT").WillReturnError(context.Canceled)
	rows := &Rows{}
	err = drv.Query(ctx, "SELECT 1", []any{}, rows)
	// Error is expected due to canceled context
	assert.Error(t, err)
}

// BenchmarkDriver benchmarks driver operations.
func BenchmarkDriver(b *testing.B) {
	db, mock, err := sqlmock.New()
	if err != nil {
		b.Fatal(err)
	}
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	b.Run("Query_Simple", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
			rows := &Rows{}
			_ = drv.Query(context.Background(), "SELECT 1", []any{}, rows)
			rows.Close()
		}
	})

	b.Run("Exec_Simple", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
			_ = drv.Exec(context.Background(), "INSERT INTO t VALUES (1)", []any{}, nil)
		}
	})

	b.Run("Transaction_Lifecycle", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			mock.ExpectBegin()
			mock.ExpectCommit()
			tx, _ := drv.Tx(context.Background())
			tx.Commit()
		}
	})
}

// TestNullValues tests handling of NULL values.
func TestNullValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"name", "email"}).
			AddRow("Alice", nil).
			AddRow(nil, "bob@example.com"))

	rows := &Rows{}
	err = drv.Query(context.Background(), "SELECT name, email FROM users", []any{}, rows)
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestMultipleDialects tests operations with different SQL dialects.
func TestMultipleDialects(t *testing.T) {
	dialects := []string{dialect.Postgres, dialect.MySQL, dialect.SQLite}

	for _, d := range dialects {
		t.Run(d, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(d, db)

			mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

			rows := &Rows{}
			err = drv.Query(context.Background(), "SELECT id FROM users", []any{}, rows)
			require.NoError(t, err)
			require.NoError(t, rows.Close())
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExecWithDuration(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	t.Run("returns rows", func(t *testing.T) {
		mock.ExpectQuery(`select "name", "points" from "houses" where "points" > $1`).
			WithArgs(50).
			WillReturnRows(sqlmock.NewRows([]string{"name", "points"}).
				AddRow([]byte("Gryffindor"), 100).
				AddRow("Slytherin", nil))
		res, err := drv.ExecWithDuration(context.Background(), Statement{
			Query:   `select "name", "points" from "houses" where "points" > $p0`,
			Params:  map[string]any{"p0": 50},
			Returns: true,
		})
		require.NoError(t, err)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "Gryffindor", res.Rows[0]["name"])
		assert.EqualValues(t, 100, res.Rows[0]["points"])
		assert.Nil(t, res.Rows[1]["points"])
		assert.EqualValues(t, 2, res.RowsAffected)
		assert.GreaterOrEqual(t, res.Duration, time.Duration(0))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows", func(t *testing.T) {
		mock.ExpectQuery(`select * from "houses"`).WillReturnRows(sqlmock.NewRows([]string{"name"}))
		res, err := drv.ExecWithDuration(context.Background(), Statement{Query: `select * from "houses"`, Returns: true})
		require.NoError(t, err)
		assert.NotNil(t, res.Rows)
		assert.Empty(t, res.Rows)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("affected rows", func(t *testing.T) {
		mock.ExpectExec(`delete from "houses" where "name" = $1`).
			WithArgs("Hufflepuff").
			WillReturnResult(sqlmock.NewResult(0, 3))
		res, err := drv.ExecWithDuration(context.Background(), Statement{
			Query:  `delete from "houses" where "name" = $p0`,
			Params: map[string]any{"p0": "Hufflepuff"},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 3, res.RowsAffected)
		assert.Nil(t, res.Rows)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing parameter", func(t *testing.T) {
		_, err := drv.ExecWithDuration(context.Background(), Statement{Query: `select $nope`, Returns: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"nope"`)
	})

	t.Run("storage error", func(t *testing.T) {
		mock.ExpectExec(`delete from "houses"`).WillReturnError(errors.New("disk full"))
		_, err := drv.ExecWithDuration(context.Background(), Statement{Query: `delete from "houses"`})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("transaction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`update "houses" set "points" = $1`).WithArgs(0).WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectCommit()
		tx, err := drv.BeginTx(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, dialect.Postgres, tx.Dialect())
		res, err := tx.ExecWithDuration(context.Background(), Statement{
			Query:  `update "houses" set "points" = $p0`,
			Params: map[string]any{"p0": 0},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 4, res.RowsAffected)
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// d1Conn stands in for an HTTP-backed D1 client.
type d1Conn struct {
	ExecQuerier
}

func TestCustomExecQuerier(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	drv := NewDriver(dialect.D1, Conn{d1Conn{db}, dialect.D1})
	assert.Equal(t, dialect.D1, drv.Dialect())
	assert.Nil(t, drv.DB())
	_, err = drv.Tx(context.Background())
	require.Error(t, err)
	require.NoError(t, drv.Close())

	mock.ExpectQuery(`select * from "spells" where "type" = ?`).
		WithArgs("charm").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Lumos"))
	res, err := drv.ExecWithDuration(context.Background(), Statement{
		Query:   `select * from "spells" where "type" = $p0`,
		Params:  map[string]any{"p0": "charm"},
		Returns: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "Lumos"}}, res.Rows)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = Open(dialect.D1, "")
	require.Error(t, err)
}

func TestDialectNormalize(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, dialect.Postgres, OpenDB("postgres-traced", db).Dialect())
	assert.Equal(t, "oracle", OpenDB("oracle", db).Dialect())
}
