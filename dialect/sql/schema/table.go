// Package schema derives tables from quill collections and migrates a
// database to them.
package schema

import (
	"strconv"
	"strings"

	"github.com/syssam/quill/dialect"
	qschema "github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

// Column is a table column.
type Column struct {
	Name string
	// Type is the column type in the dialect's spelling.
	Type     string
	Nullable bool
	// Default is the SQL literal of the column default, or empty.
	Default string
}

// Table is a table and its columns in declaration order.
type Table struct {
	Name    string
	Columns []*Column
}

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// NewTable returns the table storing collection c in dialect d.
//
// A column is NOT NULL when its field is neither nullable nor conditional
// and is either required or has a default, since the field pipeline then
// always writes a value on insert.
func NewTable(d string, c *qschema.Collection) *Table {
	t := &Table{Name: c.TableIdent()}
	for _, f := range c.Descriptors() {
		col := &Column{
			Name:     f.Name,
			Type:     ColumnType(d, f.Type),
			Nullable: f.Nullable || f.Conditional != "" || !(f.Required || f.HasDefault()),
		}
		if lit, ok := literal(f.Default); ok {
			col.Default = lit
		}
		t.Columns = append(t.Columns, col)
	}
	return t
}

// ColumnType returns the column type storing values of t in dialect d.
// Arrays and objects are stored as JSON text.
func ColumnType(d string, t field.Type) string {
	switch t {
	case field.TypeNumber:
		switch d {
		case dialect.Postgres:
			return "double precision"
		case dialect.MySQL:
			return "double"
		}
		return "numeric"
	case field.TypeBoolean:
		switch d {
		case dialect.Postgres:
			return "smallint"
		case dialect.MySQL:
			return "tinyint(1)"
		}
		return "integer"
	case field.TypeArray, field.TypeObject:
		if d == dialect.MySQL {
			return "longtext"
		}
		return "text"
	}
	if d == dialect.MySQL {
		return "varchar(255)"
	}
	return "text"
}

// literal returns the SQL literal of a static default. Function defaults
// have no literal.
func literal(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", true
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// sameType reports whether an inspected column type matches the
// declared one.
func sameType(inspected, declared string) bool {
	return strings.EqualFold(strings.TrimSpace(inspected), declared)
}
