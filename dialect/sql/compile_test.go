package sql

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quill/dialect"
	ql "github.com/syssam/quill/querylanguage"
)

func TestCompileConditions(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		conds   []ql.Condition
		sql     string
		params  map[string]any
	}{
		{
			name:    "and with or group",
			dialect: dialect.SQLite,
			conds:   ql.MustParse("firstName[=][Harry],orGroup[lastName[=][Potter],lastName[=][Weasley]]"),
			sql:     `"firstName" = $p0 and ("lastName" = $p1 or "lastName" = $p2)`,
			params:  map[string]any{"p0": "Harry", "p1": "Potter", "p2": "Weasley"},
		},
		{
			name:    "or group with and branch",
			dialect: dialect.Postgres,
			conds:   ql.MustParse("orGroup[[a[=][1],b[=][2]],c[=][3]]"),
			sql:     `(("a" = $p0 and "b" = $p1) or "c" = $p2)`,
			params:  map[string]any{"p0": "1", "p1": "2", "p2": "3"},
		},
		{
			name:    "comparison",
			dialect: dialect.SQLite,
			conds:   []ql.Condition{ql.Where("points", ql.OpGTE, 50.0), ql.Where("points", ql.OpLT, 100.0), ql.Where("name", ql.OpNEQ, "x")},
			sql:     `"points" >= $p0 and "points" < $p1 and "name" != $p2`,
			params:  map[string]any{"p0": 50.0, "p1": 100.0, "p2": "x"},
		},
		{
			name:    "in",
			dialect: dialect.SQLite,
			conds:   ql.MustParse("house[in][Gryffindor,Ravenclaw]"),
			sql:     `"house" in ($p0, $p1)`,
			params:  map[string]any{"p0": "Gryffindor", "p1": "Ravenclaw"},
		},
		{
			name:    "not in",
			dialect: dialect.MySQL,
			conds:   ql.MustParse("house[notIn][Slytherin]"),
			sql:     "`house` not in ($p0)",
			params:  map[string]any{"p0": "Slytherin"},
		},
		{
			name:    "empty in",
			dialect: dialect.SQLite,
			conds:   ql.MustParse("house[in][],house[notIn][]"),
			sql:     `1 = 0 and 1 = 1`,
			params:  map[string]any{},
		},
		{
			name:    "like",
			dialect: dialect.SQLite,
			conds:   ql.MustParse("name[like][Har%],name[notLike][%y]"),
			sql:     `"name" like $p0 and "name" not like $p1`,
			params:  map[string]any{"p0": "Har%", "p1": "%y"},
		},
		{
			name:    "ilike native",
			dialect: dialect.Postgres,
			conds:   ql.MustParse("name[ilike][har%],name[notIlike][%Y]"),
			sql:     `"name" ilike $p0 and "name" not ilike $p1`,
			params:  map[string]any{"p0": "har%", "p1": "%Y"},
		},
		{
			name:    "ilike lowered",
			dialect: dialect.SQLite,
			conds:   ql.MustParse("name[ilike][har%]"),
			sql:     `lower("name") like lower($p0)`,
			params:  map[string]any{"p0": "har%"},
		},
		{
			name:    "not ilike lowered on mysql",
			dialect: dialect.MySQL,
			conds:   ql.MustParse("name[notIlike][har%]"),
			sql:     "lower(`name`) not like lower($p0)",
			params:  map[string]any{"p0": "har%"},
		},
		{
			name:    "ilike lowered on d1",
			dialect: dialect.D1,
			conds:   ql.MustParse("name[ilike][har%]"),
			sql:     `lower("name") like lower($p0)`,
			params:  map[string]any{"p0": "har%"},
		},
		{
			name:    "between",
			dialect: dialect.SQLite,
			conds:   ql.MustParse("points[between][10,20],points[notBetween][0,1.5]"),
			sql:     `"points" between $p0 and $p1 and "points" not between $p2 and $p3`,
			params:  map[string]any{"p0": 10.0, "p1": 20.0, "p2": 0.0, "p3": 1.5},
		},
		{
			name:    "null",
			dialect: dialect.SQLite,
			conds:   ql.MustParse("wand[=][null],patronus[!=][null]"),
			sql:     `"wand" is null and "patronus" is not null`,
			params:  map[string]any{},
		},
		{
			name:    "boolean",
			dialect: dialect.SQLite,
			conds:   []ql.Condition{ql.Where("alive", ql.OpEQ, true), ql.Where("expelled", ql.OpNEQ, false)},
			sql:     `"alive" = $p0 and "expelled" != $p1`,
			params:  map[string]any{"p0": 1, "p1": 0},
		},
		{
			name:    "includes strings",
			dialect: dialect.SQLite,
			conds:   ql.MustParse("tags[includes][brave,loyal]"),
			sql:     `("tags" like $p0 escape '\' and "tags" like $p1 escape '\')`,
			params:  map[string]any{"p0": `%"brave"%`, "p1": `%"loyal"%`},
		},
		{
			name:    "excludes string",
			dialect: dialect.SQLite,
			conds:   ql.MustParse("tags[excludes][sly_one]"),
			sql:     `"tags" not like $p0 escape '\'`,
			params:  map[string]any{"p0": `%"sly\_one"%`},
		},
		{
			name:    "includes any number",
			dialect: dialect.SQLite,
			conds:   []ql.Condition{ql.Where("years", ql.OpIncludesAny, []any{1.0})},
			sql:     `("years" like $p0 or "years" like $p1 or "years" like $p2 or "years" like $p3)`,
			params:  map[string]any{"p0": "[1]", "p1": "[1,%", "p2": "%,1,%", "p3": "%,1]"},
		},
		{
			name:    "excludes any numbers",
			dialect: dialect.SQLite,
			conds:   []ql.Condition{ql.Where("years", ql.OpExcludesAny, []any{2, 3})},
			sql: `(("years" not like $p0 and "years" not like $p1 and "years" not like $p2 and "years" not like $p3)` +
				` or ("years" not like $p4 and "years" not like $p5 and "years" not like $p6 and "years" not like $p7))`,
			params: map[string]any{
				"p0": "[2]", "p1": "[2,%", "p2": "%,2,%", "p3": "%,2]",
				"p4": "[3]", "p5": "[3,%", "p6": "%,3,%", "p7": "%,3]",
			},
		},
		{
			name:    "includes numeric text",
			dialect: dialect.SQLite,
			conds:   ql.MustParse("years[includes][1]"),
			sql:     `("years" like $p0 escape '\' or "years" like $p1 or "years" like $p2 or "years" like $p3 or "years" like $p4)`,
			params:  map[string]any{"p0": `%"1"%`, "p1": "[1]", "p2": "[1,%", "p3": "%,1,%", "p4": "%,1]"},
		},
		{
			name:    "excludes boolean text",
			dialect: dialect.SQLite,
			conds:   ql.MustParse("flags[excludes][true]"),
			sql:     `("flags" not like $p0 escape '\' and "flags" not like $p1 and "flags" not like $p2 and "flags" not like $p3 and "flags" not like $p4)`,
			params:  map[string]any{"p0": `%"true"%`, "p1": "[true]", "p2": "[true,%", "p3": "%,true,%", "p4": "%,true]"},
		},
		{
			name:    "empty includes",
			dialect: dialect.SQLite,
			conds:   []ql.Condition{ql.Where("t", ql.OpIncludes, []any{}), ql.Where("t", ql.OpIncludesAny, []any{})},
			sql:     `1 = 1 and 1 = 0`,
			params:  map[string]any{},
		},
		{
			name:    "raw",
			dialect: dialect.SQLite,
			conds:   []ql.Condition{ql.Raw(`"points" > $min`, map[string]any{"min": 10}), ql.Where("house", ql.OpEQ, "Gryffindor")},
			sql:     `"points" > $min and "house" = $p0`,
			params:  map[string]any{"min": 10, "p0": "Gryffindor"},
		},
		{
			name:    "mysql escape char",
			dialect: dialect.MySQL,
			conds:   ql.MustParse("tags[includes][a]"),
			sql:     "`tags` like $p0 escape '\\\\'",
			params:  map[string]any{"p0": `%"a"%`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, _, err := CompileConditions(tt.dialect, tt.conds, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, frag.SQL)
			assert.Equal(t, tt.params, frag.Params)
		})
	}
}

func TestCompileConditionsIndex(t *testing.T) {
	frag, next, err := CompileConditions(dialect.SQLite, ql.MustParse("a[=][1],orGroup[b[=][2],c[in][3,4]]"), 5)
	require.NoError(t, err)
	assert.Equal(t, `"a" = $p5 and ("b" = $p6 or "c" in ($p7, $p8))`, frag.SQL)
	assert.Equal(t, 9, next)

	frag, next, err = CompileConditions(dialect.SQLite, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, frag.SQL)
	assert.Equal(t, 3, next)
}

func TestCompileConditionsErrors(t *testing.T) {
	tests := []struct {
		name  string
		conds []ql.Condition
	}{
		{
			name:  "raw after generated",
			conds: []ql.Condition{ql.Where("a", ql.OpEQ, "1"), ql.Raw("b = $p0", map[string]any{"p0": 2})},
		},
		{
			name:  "raw before generated",
			conds: []ql.Condition{ql.Raw("b = $p0", map[string]any{"p0": 2}), ql.Where("a", ql.OpEQ, "1")},
		},
		{
			name:  "conflicting raw params",
			conds: []ql.Condition{ql.Raw("b = $x", map[string]any{"x": 2}), ql.Raw("c = $x", map[string]any{"x": 3})},
		},
		{
			name:  "null comparison",
			conds: []ql.Condition{ql.Where("a", ql.OpLT, nil)},
		},
		{
			name:  "between arity",
			conds: []ql.Condition{ql.Where("a", ql.OpBetween, []any{1.0})},
		},
		{
			name:  "unknown operator",
			conds: []ql.Condition{ql.Where("a", ql.Op("~"), "1")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := CompileConditions(dialect.SQLite, tt.conds, 0)
			require.Error(t, err)
		})
	}

	_, _, err := CompileConditions(dialect.SQLite, []ql.Condition{
		ql.Raw("b = $x", map[string]any{"x": 2}),
		ql.Raw("c = $x", map[string]any{"x": 2}),
	}, 0)
	require.NoError(t, err, "raw fragments may share an identical parameter")
}

var refRe = regexp.MustCompile(`\$(p\d+)`)

func TestCompileParamUniqueness(t *testing.T) {
	conds := ql.MustParse("a[=][1],orGroup[[b[in][1,2,3],c[between][1,2]],orGroup[d[=][x],e[ilike][y]],f[includesAny][p,q]],g[!=][z]")
	frag, next, err := CompileConditions(dialect.SQLite, conds, 0)
	require.NoError(t, err)
	seen := make(map[string]struct{})
	for _, m := range refRe.FindAllStringSubmatch(frag.SQL, -1) {
		_, dup := seen[m[1]]
		assert.False(t, dup, "parameter %s referenced twice", m[1])
		seen[m[1]] = struct{}{}
		assert.Contains(t, frag.Params, m[1])
	}
	assert.Len(t, frag.Params, len(seen))
	assert.Equal(t, len(seen), next)
}

func TestCompileSearch(t *testing.T) {
	terms, err := ql.ParseSearch("harry potter[in][firstName,lastName]")
	require.NoError(t, err)
	frag, next, err := CompileSearch(dialect.SQLite, terms, 2)
	require.NoError(t, err)
	assert.Equal(t,
		`(lower("firstName") like $p2 escape '\' or lower("lastName") like $p2 escape '\')`+
			` and (lower("firstName") like $p3 escape '\' or lower("lastName") like $p3 escape '\')`,
		frag.SQL)
	assert.Equal(t, map[string]any{"p2": "%harry%", "p3": "%potter%"}, frag.Params)
	assert.Equal(t, 4, next)
}

func TestCompileRelevance(t *testing.T) {
	frag, next, err := CompileRelevance(dialect.SQLite, []ql.SearchTerm{{Keywords: []string{"Harry"}, Fields: []string{"name"}}}, 0)
	require.NoError(t, err)
	assert.Equal(t,
		`(case when lower("name") = $p0 then 3 when lower("name") like $p1 escape '\' then 2`+
			` when lower("name") like $p2 escape '\' then 1 else 0 end)`,
		frag.SQL)
	assert.Equal(t, map[string]any{"p0": "harry", "p1": "harry%", "p2": "%harry%"}, frag.Params)
	assert.Equal(t, 3, next)

	frag, next, err = CompileRelevance(dialect.SQLite, nil, 4)
	require.NoError(t, err)
	assert.Empty(t, frag.SQL)
	assert.Equal(t, 4, next)
}
