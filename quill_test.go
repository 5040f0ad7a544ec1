package quill_test

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/quill"
	"github.com/syssam/quill/cache"
	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/dialect/sql"
	"github.com/syssam/quill/privacy"
	ql "github.com/syssam/quill/querylanguage"
	"github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

const ddl = `
create table houses (name text not null, points integer not null default 0, founder text, active integer);
create table spells (name text not null, type text not null, difficulty integer not null, tags text);
create table numbers (n integer not null);
`

func registry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(
		schema.NewCollection("houses",
			field.String("name").Required(),
			field.Number("points").Default(0),
			field.String("founder").Nullable(),
			field.Bool("active").Default(true),
		),
		schema.NewCollection("spells",
			field.String("name").Required().Trim(),
			field.Enum("type", "charm", "curse", "jinx").Required(),
			field.Number("difficulty").Required().Range(1, 10),
			field.Array("tags").Nullable(),
		),
		schema.NewCollection("numbers",
			field.Number("n").Required(),
		),
	)
	require.NoError(t, err)
	return reg
}

// memoryDB returns a fresh in-memory database created with schema.
func memoryDB(t *testing.T, schema string) *sql.Driver {
	t.Helper()
	db, err := stdsql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return sql.OpenDB(dialect.SQLite, db)
}

// openSQLite returns a client on a fresh in-memory database.
func openSQLite(t *testing.T, opts ...quill.Option) *quill.Client {
	t.Helper()
	return quill.NewClient(memoryDB(t, ddl), registry(t), opts...)
}

func seedHouses(t *testing.T, client *quill.Client) {
	t.Helper()
	res := client.InsertInto("houses").Values(
		quill.Row{"name": "Gryffindor", "points": 100, "founder": "Godric"},
		quill.Row{"name": "Slytherin", "points": 75, "founder": "Salazar"},
		quill.Row{"name": "Ravenclaw", "points": 50},
		quill.Row{"name": "Hufflepuff", "points": 25, "active": false},
	).Count(context.Background())
	require.True(t, res.Success, res.RuntimeError)
	require.EqualValues(t, 4, res.Data)
}

func num(t *testing.T, v any) float64 {
	t.Helper()
	f, ok := field.ToFloat(v)
	require.True(t, ok, "%v (%T) is not a number", v, v)
	return f
}

func names(rows []quill.Row) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r["name"]
	}
	return out
}

func TestInsertInputErrors(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t)

	res := client.InsertInto("spells").Values(quill.Row{"name": "Lumos"}).Run(ctx)
	require.False(t, res.Success)
	assert.True(t, res.HasInputErrors())
	assert.Empty(t, res.RuntimeError)
	assert.Equal(t, []quill.FieldErrors{{
		"type":       "This field is required",
		"difficulty": "This field is required",
	}}, res.InputErrors)
	assert.True(t, quill.IsInputError(res.Err()))

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"inputErrors":[{"type":"This field is required","difficulty":"This field is required"}]}`, string(b))

	res = client.InsertInto("spells").Language("de").Values(quill.Row{"name": "Lumos", "type": "charm"}).Run(ctx)
	assert.Equal(t, []quill.FieldErrors{{"difficulty": "Dieses Feld ist erforderlich"}}, res.InputErrors)
}

func TestInsertReturning(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t)

	res := client.InsertInto("spells").
		Values(quill.Row{"name": "  Lumos ", "type": "charm", "difficulty": 1, "tags": []any{"light"}}).
		ReturningAll().
		Run(ctx)
	require.True(t, res.Success, res.RuntimeError)
	require.Len(t, res.Data, 1)
	row := res.Data[0]
	assert.Equal(t, "Lumos", row["name"])
	assert.Equal(t, float64(1), num(t, row["difficulty"]))
	assert.Equal(t, []any{"light"}, row["tags"])

	none := client.InsertInto("spells").Values(quill.Row{"name": "Nox", "type": "charm", "difficulty": 1}).Run(ctx)
	require.True(t, none.Success, none.RuntimeError)
	assert.Equal(t, []quill.Row{}, none.Data)

	unknown := client.InsertInto("spells").Values(quill.Row{"name": "Nox", "power": 3}).Run(ctx)
	assert.False(t, unknown.Success)
	assert.False(t, unknown.HasInputErrors())
	assert.ErrorIs(t, unknown.Err(), quill.ErrUnknownField)

	empty := client.InsertInto("spells").Run(ctx)
	assert.ErrorIs(t, empty.Err(), quill.ErrNoValues)
}

func TestSelectOrderAndConditions(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t)
	seedHouses(t, client)

	res := client.SelectFrom("houses").Select("name", "points").OrderBy("points", true).All(ctx)
	require.True(t, res.Success, res.RuntimeError)
	var points []float64
	for _, r := range res.Data {
		points = append(points, num(t, r["points"]))
		assert.Len(t, r, 2)
	}
	assert.Equal(t, []float64{100, 75, 50, 25}, points)

	res = client.SelectFrom("houses").
		Where("points", ql.OpGT, 30).
		OrGroup(
			func(b *quill.Branch) { b.Where("name", ql.OpEQ, "Ravenclaw") },
			func(b *quill.Branch) { b.Where("founder", ql.OpEQ, "Godric") },
		).
		OrderBy("name", false).
		All(ctx)
	require.True(t, res.Success, res.RuntimeError)
	assert.Equal(t, []any{"Gryffindor", "Ravenclaw"}, names(res.Data))

	res = client.SelectFrom("houses").Where("founder", ql.OpEQ, nil).OrderBy("name", false).All(ctx)
	require.True(t, res.Success, res.RuntimeError)
	assert.Equal(t, []any{"Hufflepuff", "Ravenclaw"}, names(res.Data))

	res = client.SelectFrom("houses").Where("name", ql.OpIn, []string{"Slytherin", "Hufflepuff"}).OrderBy("name", false).All(ctx)
	require.True(t, res.Success, res.RuntimeError)
	assert.Equal(t, []any{"Hufflepuff", "Slytherin"}, names(res.Data))
	assert.Equal(t, false, res.Data[0]["active"])
	assert.Equal(t, true, res.Data[1]["active"])

	res = client.SelectFrom("houses").Where("points", ql.OpBetween, []any{50, 80}).OrderBy("points", false).All(ctx)
	require.True(t, res.Success, res.RuntimeError)
	assert.Equal(t, []any{"Ravenclaw", "Slytherin"}, names(res.Data))

	first := client.SelectFrom("houses").Where("name", ql.OpLike, "Huff%").First(ctx)
	require.True(t, first.Success, first.RuntimeError)
	assert.Equal(t, "Hufflepuff", first.Data["name"])

	missing := client.SelectFrom("houses").Where("name", ql.OpEQ, "Durmstrang").First(ctx)
	require.True(t, missing.Success)
	assert.Nil(t, missing.Data)
}

func TestSelectValidationErrors(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t)

	tests := []struct {
		name    string
		builder *quill.SelectBuilder
		is      error
	}{
		{name: "unknown field", builder: client.SelectFrom("houses").Where("rank", ql.OpEQ, 1), is: quill.ErrUnknownField},
		{name: "null on required field", builder: client.SelectFrom("houses").Where("points", ql.OpEQ, nil), is: quill.ErrNullValue},
		{name: "like on number", builder: client.SelectFrom("houses").Where("points", ql.OpLike, "1%"), is: quill.ErrOperator},
		{name: "unknown order field", builder: client.SelectFrom("houses").OrderBy("rank", false), is: quill.ErrUnknownField},
		{name: "negative limit", builder: client.SelectFrom("houses").Limit(-1), is: quill.ErrPagination},
		{name: "unknown collection", builder: client.SelectFrom("castles"), is: quill.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.builder.All(ctx)
			require.False(t, res.Success)
			assert.NotEmpty(t, res.RuntimeError)
			assert.Nil(t, res.Data)
			assert.False(t, res.HasInputErrors())
			assert.True(t, quill.IsQueryError(res.Err()))
			assert.ErrorIs(t, res.Err(), tt.is)

			b, err := json.Marshal(res)
			require.NoError(t, err)
			assert.JSONEq(t, fmt.Sprintf(`{"success":false,"runtimeError":%q}`, res.RuntimeError), string(b))
		})
	}
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t)
	seedHouses(t, client)

	count := client.SelectFrom("houses").Where("points", ql.OpGTE, 50).Count(ctx)
	require.True(t, count.Success, count.RuntimeError)
	assert.EqualValues(t, 3, count.Data)

	sum := client.SelectFrom("houses").Sum(ctx, "points")
	require.True(t, sum.Success, sum.RuntimeError)
	assert.Equal(t, 250.0, sum.Data)

	avg := client.SelectFrom("houses").Avg(ctx, "points")
	require.True(t, avg.Success, avg.RuntimeError)
	assert.Equal(t, 62.5, avg.Data)

	minPoints := client.SelectFrom("houses").Min(ctx, "points")
	require.True(t, minPoints.Success, minPoints.RuntimeError)
	assert.Equal(t, 25.0, num(t, minPoints.Data))

	maxName := client.SelectFrom("houses").Max(ctx, "name")
	require.True(t, maxName.Success, maxName.RuntimeError)
	assert.Equal(t, "Slytherin", maxName.Data)

	empty := client.SelectFrom("houses").Where("points", ql.OpGT, 1000).Sum(ctx, "points")
	require.True(t, empty.Success, empty.RuntimeError)
	assert.Zero(t, empty.Data)

	bad := client.SelectFrom("houses").Sum(ctx, "name")
	assert.False(t, bad.Success)
	assert.ErrorIs(t, bad.Err(), quill.ErrOperator)
}

func TestPaginate(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t)

	items := make([]quill.Row, 50)
	for i := range items {
		items[i] = quill.Row{"n": i + 1}
	}
	require.True(t, client.InsertInto("numbers").Values(items...).Count(ctx).Success)

	res := client.SelectFrom("numbers").OrderBy("n", false).Limit(10).Offset(10).Paginate(ctx)
	require.True(t, res.Success, res.RuntimeError)
	assert.EqualValues(t, 50, res.Data.Total)
	assert.Equal(t, 10, res.Data.PerPage)
	assert.Equal(t, 2, res.Data.CurrentPage)
	assert.Equal(t, 5, res.Data.LastPage)
	require.Len(t, res.Data.Data, 10)
	assert.Equal(t, 11.0, num(t, res.Data.Data[0]["n"]))

	res = client.SelectFrom("numbers").FromQueryString("orderBy=n:desc&page=3&perPage=20").Paginate(ctx)
	require.True(t, res.Success, res.RuntimeError)
	assert.Equal(t, 3, res.Data.CurrentPage)
	assert.Equal(t, 3, res.Data.LastPage)
	require.Len(t, res.Data.Data, 10)
	assert.Equal(t, 10.0, num(t, res.Data.Data[0]["n"]))
}

func TestFromQueryStringAndClone(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t)
	seedHouses(t, client)

	res := client.SelectFrom("houses").FromQueryString("select=name&where=points[>][30]&orderBy=points:desc&limit=2").All(ctx)
	require.True(t, res.Success, res.RuntimeError)
	assert.Equal(t, []quill.Row{{"name": "Gryffindor"}, {"name": "Slytherin"}}, res.Data)

	bad := client.SelectFrom("houses").FromQueryString("limit=ten").All(ctx)
	assert.False(t, bad.Success)

	base := client.SelectFrom("houses").Where("points", ql.OpGT, 30).OrderBy("points", true)
	narrow := base.Clone().Where("points", ql.OpLT, 80)
	assert.Equal(t, []any{"Gryffindor", "Slytherin", "Ravenclaw"}, names(base.All(ctx).Data))
	assert.Equal(t, []any{"Slytherin", "Ravenclaw"}, names(narrow.All(ctx).Data))
	assert.Len(t, base.Conditions(), 1)
	assert.Len(t, narrow.Conditions(), 2)
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t)
	seedHouses(t, client)

	res := client.Update("houses").
		Set(quill.Row{"points": 110}).
		Where("name", ql.OpEQ, "Gryffindor").
		Returning("name", "points").
		Run(ctx)
	require.True(t, res.Success, res.RuntimeError)
	require.Len(t, res.Data, 1)
	assert.Equal(t, 110.0, num(t, res.Data[0]["points"]))

	n := client.Update("houses").Set(quill.Row{"active": false}).Where("points", ql.OpLT, 60).Count(ctx)
	require.True(t, n.Success, n.RuntimeError)
	assert.EqualValues(t, 2, n.Data)

	unknown := client.Update("houses").Set(quill.Row{"rank": 1}).Count(ctx)
	assert.ErrorIs(t, unknown.Err(), quill.ErrUnknownField)

	del := client.DeleteFrom("houses").Where("active", ql.OpEQ, false).Returning("name").Run(ctx)
	require.True(t, del.Success, del.RuntimeError)
	assert.ElementsMatch(t, []any{"Ravenclaw", "Hufflepuff"}, names(del.Data))

	left := client.SelectFrom("houses").Count(ctx)
	assert.EqualValues(t, 2, left.Data)
}

func TestUpdateInputErrors(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t)

	res := client.Update("spells").Set(quill.Row{"difficulty": 20}).Where("name", ql.OpEQ, "Lumos").Run(ctx)
	require.False(t, res.Success)
	require.True(t, res.HasInputErrors())
	assert.Contains(t, res.InputErrors, "difficulty")
	assert.Empty(t, res.RuntimeError)
}

func TestHooks(t *testing.T) {
	ctx := context.Background()
	var (
		prepared []string
		after    []*quill.Query
	)
	client := openSQLite(t,
		quill.WithHook(quill.BeforeQueryPreparation, quill.ForCollection(func(_ context.Context, q *quill.Query) error {
			prepared = append(prepared, q.Op.String())
			if q.Op.Is(quill.OpSelect) {
				q.Where = append(q.Where, ql.Where("points", ql.OpGTE, int64(50)))
			}
			return nil
		}, "houses")),
		quill.WithHook(quill.BeforeQueryExecution, quill.On(quill.OpDelete, func(context.Context, *quill.Query) error {
			return errors.New("deletes are disabled")
		})),
		quill.WithHook(quill.AfterQueryExecution, func(_ context.Context, q *quill.Query) error {
			after = append(after, q)
			return errors.New("ignored")
		}),
	)
	seedHouses(t, client)

	res := client.SelectFrom("houses").Context(map[string]any{"source": "test"}).All(ctx)
	require.True(t, res.Success, res.RuntimeError)
	assert.Len(t, res.Data, 3)

	del := client.DeleteFrom("houses").Count(ctx)
	assert.False(t, del.Success)
	assert.Equal(t, "deletes are disabled", del.RuntimeError)

	assert.Equal(t, []string{"OpInsert", "OpSelect", "OpDelete"}, prepared)
	require.Len(t, after, 3)
	assert.Len(t, after[1].Rows, 3)
	assert.NotNil(t, after[1].Statement)
	v, _ := after[1].Value("source")
	assert.Equal(t, "test", v)
	assert.EqualError(t, after[2].Err, "deletes are disabled")
}

func TestPrivacyHook(t *testing.T) {
	ctx := context.Background()
	policy := privacy.Policy{
		Mutation: privacy.MutationPolicy{
			privacy.HasRole("admin"),
			privacy.DenyMutationOperationRule(quill.OpDelete),
		},
	}
	client := openSQLite(t, quill.WithHook(quill.BeforeQueryExecution, privacy.Hook(policy)))
	seedHouses(t, client)

	res := client.DeleteFrom("houses").Count(ctx)
	require.False(t, res.Success)
	assert.True(t, quill.IsPrivacyError(res.Err()))

	admin := privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "u1", Roles: []string{"admin"}})
	res = client.DeleteFrom("houses").Count(admin)
	require.True(t, res.Success, res.RuntimeError)
	assert.EqualValues(t, 4, res.Data)
}

func TestStorageFailure(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var failed error
	client := quill.NewClient(sql.OpenDB(dialect.Postgres, db), registry(t),
		quill.WithHook(quill.AfterQueryExecution, func(_ context.Context, q *quill.Query) error {
			failed = q.Err
			return nil
		}),
	)

	mock.ExpectQuery(`select \* from "houses"`).WillReturnError(errors.New("connection reset"))
	res := client.SelectFrom("houses").All(ctx)
	require.False(t, res.Success)
	assert.Equal(t, "An unexpected error occurred", res.RuntimeError)
	assert.True(t, quill.IsStorageError(res.Err()))
	assert.True(t, quill.IsStorageError(failed))

	mock.ExpectQuery(`select \* from "houses"`).WillReturnError(errors.New("connection reset"))
	res = client.SelectFrom("houses").Verbose(true).All(ctx)
	assert.Contains(t, res.RuntimeError, "connection reset")

	mock.ExpectQuery(`select \* from "houses"`).WillReturnError(errors.New("connection reset"))
	res = client.SelectFrom("houses").Language("de").All(ctx)
	assert.Equal(t, "Ein unerwarteter Fehler ist aufgetreten", res.RuntimeError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var cached []bool
	client := quill.NewClient(sql.OpenDB(dialect.Postgres, db), registry(t),
		quill.WithCache(cache.NewMemory(16), 0),
		quill.WithHook(quill.AfterQueryExecution, quill.On(quill.OpSelect, func(_ context.Context, q *quill.Query) error {
			cached = append(cached, q.Cached)
			return nil
		})),
	)
	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"name", "points"}).AddRow("Gryffindor", int64(100))
	}

	mock.ExpectQuery(`select \* from "houses"`).WillReturnRows(rows())
	for range 2 {
		res := client.SelectFrom("houses").All(ctx)
		require.True(t, res.Success, res.RuntimeError)
		assert.Equal(t, []quill.Row{{"name": "Gryffindor", "points": int64(100)}}, res.Data)
	}
	assert.Equal(t, []bool{false, true}, cached)

	// Results are copies: mutating one does not leak into the cache.
	res := client.SelectFrom("houses").All(ctx)
	res.Data[0]["name"] = "changed"
	assert.Equal(t, "Gryffindor", client.SelectFrom("houses").All(ctx).Data[0]["name"])

	mock.ExpectQuery(`select \* from "houses"`).WillReturnRows(rows())
	assert.True(t, client.SelectFrom("houses").UseCache(false).All(ctx).Success)

	mock.ExpectExec(`delete from "houses"`).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.True(t, client.DeleteFrom("houses").Where("name", ql.OpEQ, "Ravenclaw").Count(ctx).Success)

	mock.ExpectQuery(`select \* from "houses"`).WillReturnRows(rows())
	assert.True(t, client.SelectFrom("houses").All(ctx).Success)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultTranslator(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t, quill.WithLanguage("de"))

	res := client.InsertInto("spells").Values(quill.Row{"name": "Lumos", "type": "charm"}).Run(ctx)
	assert.Equal(t, []quill.FieldErrors{{"difficulty": "Dieses Feld ist erforderlich"}}, res.InputErrors)

	res = client.InsertInto("spells").Language("en").Values(quill.Row{"name": "Lumos", "type": "charm"}).Run(ctx)
	assert.Equal(t, []quill.FieldErrors{{"difficulty": "This field is required"}}, res.InputErrors)
}

func TestArrayConditionsFromText(t *testing.T) {
	ctx := context.Background()
	client := openSQLite(t)
	ins := client.InsertInto("spells").Values(
		quill.Row{"name": "Lumos", "type": "charm", "difficulty": 1, "tags": []any{1, 2}},
		quill.Row{"name": "Nox", "type": "charm", "difficulty": 1, "tags": []any{"1", "dark"}},
		quill.Row{"name": "Crucio", "type": "curse", "difficulty": 9, "tags": []any{12, "dark"}},
	).Count(ctx)
	require.True(t, ins.Success, ins.RuntimeError)

	tests := []struct {
		name  string
		build func() *quill.SelectBuilder
		want  []any
	}{
		{
			name:  "api number",
			build: func() *quill.SelectBuilder { return client.SelectFrom("spells").Where("tags", ql.OpIncludes, []any{1}) },
			want:  []any{"Lumos"},
		},
		{
			name:  "grammar",
			build: func() *quill.SelectBuilder { return client.SelectFrom("spells").WhereString("tags[includes][1]") },
			want:  []any{"Lumos", "Nox"},
		},
		{
			name:  "query string",
			build: func() *quill.SelectBuilder { return client.SelectFrom("spells").FromQueryString("where=tags[includes][1]") },
			want:  []any{"Lumos", "Nox"},
		},
		{
			name:  "includes any",
			build: func() *quill.SelectBuilder { return client.SelectFrom("spells").WhereString("tags[includesAny][2,12]") },
			want:  []any{"Crucio", "Lumos"},
		},
		{
			name:  "excludes",
			build: func() *quill.SelectBuilder { return client.SelectFrom("spells").WhereString("tags[excludes][1]") },
			want:  []any{"Crucio"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.build().OrderBy("name", false).All(ctx)
			require.True(t, res.Success, res.RuntimeError)
			assert.Equal(t, tt.want, names(res.Data))
		})
	}
}

func TestDocumentedExamples(t *testing.T) {
	ctx := context.Background()
	reg, err := schema.NewRegistry(
		schema.NewCollection("Spells",
			field.String("name").Required(),
			field.String("type").Required(),
			field.Number("difficulty").Required(),
		),
		schema.NewCollection("Houses",
			field.String("name").Required(),
			field.Number("points").Default(0),
		),
		schema.NewCollection("Students",
			field.String("firstName").Required(),
			field.String("lastName").Required(),
		),
	)
	require.NoError(t, err)
	client := quill.NewClient(memoryDB(t, `
create table spells (name text not null, type text not null, difficulty integer not null);
create table houses (name text not null, points integer not null default 0);
create table students ("firstName" text not null, "lastName" text not null);
`), reg)
	seed := []struct {
		collection string
		rows       []quill.Row
	}{
		{"Houses", []quill.Row{
			{"name": "Gryffindor", "points": 100},
			{"name": "Slytherin", "points": 50},
			{"name": "Ravenclaw", "points": 75},
			{"name": "Hufflepuff", "points": 25},
		}},
		{"Students", []quill.Row{
			{"firstName": "Harry", "lastName": "Potter"},
			{"firstName": "Ron", "lastName": "Weasley"},
			{"firstName": "Harry", "lastName": "Weasley"},
			{"firstName": "Harry", "lastName": "Granger"},
			{"firstName": "Lily", "lastName": "Potter"},
		}},
	}
	for _, s := range seed {
		res := client.InsertInto(s.collection).Values(s.rows...).Count(ctx)
		require.True(t, res.Success, res.RuntimeError)
	}

	tests := []struct {
		name string
		run  func() (any, error)
		want any
	}{
		{
			name: "insert missing required fields",
			run: func() (any, error) {
				res := client.InsertInto("Spells").Values(quill.Row{"name": "Avada Kedavra"}).Returning("name").Run(ctx)
				b, err := json.Marshal(res)
				return string(b), err
			},
			want: `{"success":false,"inputErrors":[{"difficulty":"This field is required","type":"This field is required"}]}`,
		},
		{
			name: "houses ordered by points",
			run: func() (any, error) {
				res := client.SelectFrom("Houses").Select("name", "points").OrderBy("points", true).All(ctx)
				var points []float64
				for _, r := range res.Data {
					f, _ := field.ToFloat(r["points"])
					points = append(points, f)
				}
				return points, res.Err()
			},
			want: []float64{100, 75, 50, 25},
		},
		{
			name: "first name and last name group",
			run: func() (any, error) {
				res := client.SelectFrom("Students").
					Where("firstName", "=", "Harry").
					OrGroup(
						func(b *quill.Branch) { b.Where("lastName", "=", "Potter") },
						func(b *quill.Branch) { b.Where("lastName", "=", "Weasley") },
					).
					OrderBy("lastName", false).
					All(ctx)
				var got []string
				for _, r := range res.Data {
					got = append(got, fmt.Sprint(r["firstName"], " ", r["lastName"]))
				}
				return got, res.Err()
			},
			want: []string{"Harry Potter", "Harry Weasley"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.run()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatsDriverThroughClient(t *testing.T) {
	ctx := context.Background()
	stats := sql.NewStatsDriver(memoryDB(t, ddl), sql.WithSlowThreshold(time.Hour))
	client := quill.NewClient(stats, registry(t))
	seedHouses(t, client)

	res := client.SelectFrom("houses").Where("points", ql.OpGT, 30).Paginate(ctx)
	require.True(t, res.Success, res.RuntimeError)
	del := client.DeleteFrom("houses").Where("name", ql.OpEQ, "Hufflepuff").Count(ctx)
	require.True(t, del.Success, del.RuntimeError)

	snap := stats.QueryStats().Stats()
	assert.EqualValues(t, 1, snap.Kind(sql.KindInsert).Count)
	assert.EqualValues(t, 2, snap.Kind(sql.KindSelect).Count)
	assert.EqualValues(t, 1, snap.Kind(sql.KindDelete).Count)
	assert.Zero(t, snap.Total().Errors)
}
