package quill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/dialect/sql"
	"github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

func TestInsertRows(t *testing.T) {
	col := schema.NewCollection("wizards",
		field.String("name").Required(),
		field.String("house"),
		field.String("wand"),
	)
	items := []Row{
		{"name": "Harry", "house": "Gryffindor"},
		{"wand": "elder", "name": "Albus"},
	}
	tests := []struct {
		dialect string
		rows    [][]any
	}{
		{
			dialect: dialect.Postgres,
			rows:    [][]any{{"Harry", "Gryffindor", sql.DefaultValue}, {"Albus", sql.DefaultValue, "elder"}},
		},
		{
			dialect: dialect.MySQL,
			rows:    [][]any{{"Harry", "Gryffindor", sql.DefaultValue}, {"Albus", sql.DefaultValue, "elder"}},
		},
		{
			dialect: dialect.SQLite,
			rows:    [][]any{{"Harry", "Gryffindor", nil}, {"Albus", nil, "elder"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			columns, rows, err := insertRows(tt.dialect, col, items)
			require.NoError(t, err)
			assert.Equal(t, []string{"name", "house", "wand"}, columns)
			assert.Equal(t, tt.rows, rows)
		})
	}
}
