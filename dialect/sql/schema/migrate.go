package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/syssam/quill/dialect"
	"github.com/syssam/quill/dialect/sql"
	qschema "github.com/syssam/quill/schema"
	"github.com/syssam/quill/schema/field"
)

// Executor runs statements. *sql.Driver, *sql.Tx and their stats and
// debug wrappers implement it.
type Executor = sql.Executor

// Migrate creates and extends the tables of collections.
type Migrate struct {
	exec       Executor
	dropColumn bool
	logger     *slog.Logger
}

// MigrateOption configures a Migrate.
type MigrateOption func(*Migrate)

// WithDropColumn drops columns that are not declared by the collection.
// Without it, such columns fail the validation of Create.
func WithDropColumn(b bool) MigrateOption {
	return func(m *Migrate) {
		m.dropColumn = b
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) MigrateOption {
	return func(m *Migrate) {
		m.logger = l
	}
}

// NewMigrate returns a migration running on exec.
func NewMigrate(exec Executor, opts ...MigrateOption) *Migrate {
	m := &Migrate{exec: exec, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Plan is the outcome of comparing collections with the database.
type Plan struct {
	// Statements brings the database in line with the collections.
	Statements []sql.Statement
	Result     *ValidationResult
}

// Plan inspects the tables of collections and returns the statements
// that create missing tables and columns. Types and nullability of
// existing columns are never altered.
func (m *Migrate) Plan(ctx context.Context, collections ...*qschema.Collection) (*Plan, error) {
	d := m.exec.Dialect()
	desired := make([]*Table, len(collections))
	for i, c := range collections {
		desired[i] = NewTable(d, c)
	}
	plan := &Plan{Result: ValidateSchema(desired)}
	current := make(map[string]*Table)
	var inspected []*Table
	for _, t := range desired {
		cur, err := m.Inspect(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		if cur != nil {
			current[t.Name] = cur
			inspected = append(inspected, cur)
		}
	}
	var vopts []ValidateOption
	if m.dropColumn {
		vopts = append(vopts, AllowDropColumn())
	}
	plan.Result.merge(ValidateDiff(inspected, desired, vopts...))
	for _, t := range desired {
		cur, ok := current[t.Name]
		if !ok {
			plan.Statements = append(plan.Statements, createTable(d, t))
			continue
		}
		for _, c := range t.Columns {
			if _, ok := cur.Column(c.Name); !ok {
				plan.Statements = append(plan.Statements, addColumn(d, t.Name, c))
			}
		}
		if !m.dropColumn {
			continue
		}
		for _, c := range cur.Columns {
			if _, ok := t.Column(c.Name); !ok {
				plan.Statements = append(plan.Statements, sql.Statement{
					Query: "alter table " + dialect.Quote(d, t.Name) + " drop column " + dialect.Quote(d, c.Name),
				})
			}
		}
	}
	return plan, nil
}

// Create runs the plan of collections. It fails without executing any
// statement when validation reports errors.
//
//	if err := schema.NewMigrate(drv).CreateRegistry(ctx, registry); err != nil {
//	    log.Fatal(err)
//	}
func (m *Migrate) Create(ctx context.Context, collections ...*qschema.Collection) error {
	plan, err := m.Plan(ctx, collections...)
	if err != nil {
		return err
	}
	if err := plan.Result.Err(); err != nil {
		return err
	}
	for _, w := range plan.Result.Warnings {
		m.logger.WarnContext(ctx, "schema: migration warning", "table", w.Table, "column", w.Column, "message", w.Message)
	}
	for _, st := range plan.Statements {
		res, err := m.exec.ExecWithDuration(ctx, st)
		if err != nil {
			return fmt.Errorf("dialect/sql/schema: %s: %w", st.Query, err)
		}
		m.logger.DebugContext(ctx, "schema: migration statement", "query", st.Query, "duration", res.Duration)
	}
	return nil
}

// CreateRegistry runs Create for every collection of r.
func (m *Migrate) CreateRegistry(ctx context.Context, r *qschema.Registry) error {
	var collections []*qschema.Collection
	for _, name := range r.Names() {
		if c, ok := r.Collection(name); ok {
			collections = append(collections, c)
		}
	}
	return m.Create(ctx, collections...)
}

// Inspect returns the columns of the named table, or nil when the table
// does not exist.
func (m *Migrate) Inspect(ctx context.Context, table string) (*Table, error) {
	st := sql.Statement{Params: map[string]any{"table": table}, Returns: true}
	switch m.exec.Dialect() {
	case dialect.SQLite, dialect.D1:
		st.Query = `select "name", "type", "notnull" from pragma_table_info($table) order by "cid"`
	case dialect.Postgres:
		st.Query = `select column_name as "name", data_type as "type", is_nullable as "nullable" from information_schema.columns` +
			` where table_schema = current_schema() and table_name = $table order by ordinal_position`
	case dialect.MySQL:
		st.Query = "select column_name as `name`, column_type as `type`, is_nullable as `nullable` from information_schema.columns" +
			" where table_schema = database() and table_name = $table order by ordinal_position"
	default:
		return nil, fmt.Errorf("dialect/sql/schema: unsupported dialect %q", m.exec.Dialect())
	}
	res, err := m.exec.ExecWithDuration(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql/schema: inspect %q: %w", table, err)
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	t := &Table{Name: table}
	for _, r := range res.Rows {
		c := &Column{Name: fmt.Sprint(r["name"]), Type: strings.ToLower(fmt.Sprint(r["type"]))}
		if v, ok := r["notnull"]; ok {
			n, _ := field.ToFloat(v)
			c.Nullable = n == 0
		} else {
			c.Nullable = strings.EqualFold(fmt.Sprint(r["nullable"]), "YES")
		}
		t.Columns = append(t.Columns, c)
	}
	return t, nil
}

func createTable(d string, t *Table) sql.Statement {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = columnDef(d, c)
	}
	return sql.Statement{
		Query: "create table if not exists " + dialect.Quote(d, t.Name) + " (" + strings.Join(defs, ", ") + ")",
	}
}

// addColumn adds c to an existing table. A NOT NULL column without a
// default is added as nullable, as existing rows have no value for it.
func addColumn(d, table string, c *Column) sql.Statement {
	if !c.Nullable && c.Default == "" {
		c = &Column{Name: c.Name, Type: c.Type, Nullable: true}
	}
	return sql.Statement{
		Query: "alter table " + dialect.Quote(d, table) + " add column " + columnDef(d, c),
	}
}

func columnDef(d string, c *Column) string {
	def := dialect.Quote(d, c.Name) + " " + c.Type
	if !c.Nullable {
		def += " not null"
	}
	if c.Default != "" {
		def += " default " + c.Default
	}
	return def
}
