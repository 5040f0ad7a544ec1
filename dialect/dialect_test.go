package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		dialect, ident, want string
	}{
		{Postgres, "name", `"name"`},
		{SQLite, "houses.name", `"houses"."name"`},
		{MySQL, "name", "`name`"},
		{MySQL, "a`b", "`a``b`"},
		{Postgres, `a"b`, `"a""b"`},
		{D1, "*", "*"},
		{Postgres, "houses.*", `"houses".*`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.dialect, tt.ident), tt.ident)
	}
}

func TestCapabilities(t *testing.T) {
	assert.True(t, Valid(D1))
	assert.False(t, Valid("oracle"))
	assert.True(t, SQLiteFamily(D1))
	assert.False(t, SQLiteFamily(Postgres))
	assert.True(t, SupportsILike(Postgres))
	assert.False(t, SupportsILike(SQLite))
	assert.False(t, SupportsReturning(MySQL))
	assert.True(t, SupportsReturning(D1))
	assert.True(t, SupportsDefaultKeyword(Postgres))
	assert.True(t, SupportsDefaultKeyword(MySQL))
	assert.False(t, SupportsDefaultKeyword(SQLite))
	assert.False(t, SupportsNullsOrder(MySQL))
	assert.False(t, OffsetRequiresLimit(Postgres))
	assert.True(t, OffsetRequiresLimit(SQLite))
	assert.Equal(t, "18446744073709551615", NoLimit(MySQL))
	assert.Equal(t, "-1", NoLimit(SQLite))
}
