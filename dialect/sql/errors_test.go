package sql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quill/dialect"
)

func TestConstraintKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ConstraintKind
	}{
		{"nil", nil, ConstraintNone},
		{"plain", errors.New("connection refused"), ConstraintNone},
		{"pq unique", &pq.Error{Code: "23505"}, ConstraintUnique},
		{"pq foreign key", &pq.Error{Code: "23503"}, ConstraintForeignKey},
		{"pq check", &pq.Error{Code: "23514"}, ConstraintCheck},
		{"pq not null", &pq.Error{Code: "23502"}, ConstraintNotNull},
		{"pq exclusion", &pq.Error{Code: "23P01"}, ConstraintOther},
		{"pq syntax", &pq.Error{Code: "42601"}, ConstraintNone},
		{"wrapped pq", fmt.Errorf("dialect/sql: exec: %w", &pq.Error{Code: "23505"}), ConstraintUnique},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, ConstraintUnique},
		{"mysql parent row", &mysql.MySQLError{Number: 1451}, ConstraintForeignKey},
		{"mysql child row", &mysql.MySQLError{Number: 1452}, ConstraintForeignKey},
		{"mysql check", &mysql.MySQLError{Number: 3819}, ConstraintCheck},
		{"mysql null", &mysql.MySQLError{Number: 1048}, ConstraintNotNull},
		{"mysql other", &mysql.MySQLError{Number: 1146}, ConstraintNone},
		{"d1 unique message", errors.New("D1_ERROR: UNIQUE constraint failed: houses.name"), ConstraintUnique},
		{"d1 not null message", errors.New("NOT NULL constraint failed: houses.points"), ConstraintNotNull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConstraintKindOf(tt.err))
			assert.Equal(t, tt.want != ConstraintNone, IsConstraintError(tt.err))
		})
	}
}

func TestConstraintHelpers(t *testing.T) {
	assert.True(t, IsUniqueConstraintError(&pq.Error{Code: "23505"}))
	assert.True(t, IsForeignKeyConstraintError(&mysql.MySQLError{Number: 1452}))
	assert.True(t, IsCheckConstraintError(errors.New("CHECK constraint failed: points")))
	assert.True(t, IsNotNullConstraintError(&pq.Error{Code: "23502"}))
	assert.False(t, IsUniqueConstraintError(nil))
	assert.Equal(t, "foreign key", ConstraintForeignKey.String())
}

func TestConstraintKindSQLite(t *testing.T) {
	drv, err := Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	defer drv.Close()
	drv.DB().SetMaxOpenConns(1)

	ctx := context.Background()
	_, err = drv.ExecWithDuration(ctx, Statement{Query: `create table "houses" ("name" text unique not null, "points" integer check ("points" >= 0))`})
	require.NoError(t, err)
	insert := func(name any, points int) error {
		_, err := drv.ExecWithDuration(ctx, Statement{
			Query:  `insert into "houses" ("name", "points") values ($name, $points)`,
			Params: map[string]any{"name": name, "points": points},
		})
		return err
	}
	require.NoError(t, insert("Gryffindor", 10))
	assert.Equal(t, ConstraintUnique, ConstraintKindOf(insert("Gryffindor", 20)))
	assert.Equal(t, ConstraintCheck, ConstraintKindOf(insert("Slytherin", -1)))
	assert.Equal(t, ConstraintNotNull, ConstraintKindOf(insert(nil, 1)))
}
