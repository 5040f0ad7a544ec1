package quill

import (
	"context"

	"github.com/syssam/quill/dialect/sql"
)

// Storage executes compiled statements. *sql.Driver, *sql.Tx and the
// stats and debug wrappers of dialect/sql implement it.
type Storage interface {
	// Dialect returns the dialect name the compiler targets.
	Dialect() string
	// ExecWithDuration runs st and reports how long it took.
	ExecWithDuration(ctx context.Context, st sql.Statement) (*sql.ExecResult, error)
}

var (
	_ Storage = (*sql.Driver)(nil)
	_ Storage = (*sql.Tx)(nil)
	_ Storage = (*sql.StatsDriver)(nil)
	_ Storage = (*sql.DebugDriver)(nil)
)
