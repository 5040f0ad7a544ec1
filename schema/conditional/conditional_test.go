package conditional

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quill/schema/field"
)

func TestEval(t *testing.T) {
	r, err := NewResolver()
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		expr  string
		input map[string]any
		want  bool
	}{
		{`input.type == "curse"`, map[string]any{"type": "curse"}, true},
		{`input.type == "curse"`, map[string]any{"type": "charm"}, false},
		{`input.type == "curse"`, nil, false},
		{`has(input.type) && input.type == "curse"`, map[string]any{}, false},
		{`input.difficulty > 5`, map[string]any{"difficulty": 7.0}, true},
		{`input.difficulty > 5`, map[string]any{"difficulty": int64(3)}, false},
		{`"owl" in input.pets`, map[string]any{"pets": []any{"owl", "cat"}}, true},
		{`true`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := r.Eval(ctx, tt.expr, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	r, err := NewResolver()
	require.NoError(t, err)
	_, err = r.Compile(`input.type ==`)
	assert.Error(t, err)
	_, err = r.Compile(`"a" + "b"`)
	assert.ErrorContains(t, err, "must return bool")
	_, err = r.Compile(`unknown.x`)
	assert.Error(t, err)

	p1, err := r.Compile(`true`)
	require.NoError(t, err)
	p2, err := r.Compile(`true`)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestActive(t *testing.T) {
	r, err := NewResolver()
	require.NoError(t, err)
	fields := []*field.Descriptor{
		field.String("type").Descriptor(),
		field.String("counter").When(`input.type == "curse"`).Descriptor(),
		field.Number("light").When(`input.type == "charm"`).Descriptor(),
	}
	active, err := r.Active(context.Background(), fields, map[string]any{"type": "curse"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"type": true, "counter": true, "light": false}, active)

	fields = append(fields, field.String("bad").When(`input.`).Descriptor())
	_, err = r.Active(context.Background(), fields, nil)
	assert.ErrorContains(t, err, `field "bad"`)
}
