package query_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/query"
	"github.com/syssam/veloq/schema"
	"github.com/syssam/veloq/schema/edge"
	"github.com/syssam/veloq/schema/field"
)

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

var testGraph = schema.MustBuild(nil,
	&schema.Entity{
		Name: "Department",
		ID:   field.Int64("id"),
		Fields: []field.Field{
			field.String("name"),
			field.Formula("employeeCount", field.TypeInt64,
				"(SELECT COUNT(*) FROM EMPLOYEE WHERE DEPARTMENT_ID = %alias.ID)"),
		},
		Edges:      []edge.Edge{edge.To("employees", "Employee").Ref("department")},
		SoftDelete: schema.SoftDeleteTime("DELETED_TIME"),
	},
	&schema.Entity{
		Name: "Employee",
		ID:   field.Int64("id"),
		Fields: []field.Field{
			field.String("name"),
			field.Float("salary"),
			field.JSON("location", point{}).Nillable(),
			field.Bool("active"),
		},
		Edges: []edge.Edge{
			edge.From("department", "Department"),
			edge.To("projects", "Project").Through("EMPLOYEE_PROJECT", "EMPLOYEE_ID", "PROJECT_ID"),
		},
		SoftDelete: schema.SoftDeleteUUID("DELETED_UUID"),
	},
	&schema.Entity{
		Name:   "Project",
		ID:     field.Int64("id"),
		Fields: []field.Field{field.String("name")},
	},
)

func departments() *query.Table { return query.NewTable(testGraph.MustNode("Department")) }
func employees() *query.Table   { return query.NewTable(testGraph.MustNode("Employee")) }
func projects() *query.Table    { return query.NewTable(testGraph.MustNode("Project")) }

func compile(t *testing.T, s query.Statement, opts ...query.CompileOption) *query.Compiled {
	t.Helper()
	c, err := query.Compile(s, dialect.SQLite, opts...)
	require.NoError(t, err)
	return c
}

// =============================================================================
// Table resolution
// =============================================================================

func TestCompileJoinScenario(t *testing.T) {
	t.Parallel()
	build := func() query.Statement {
		d := departments()
		e := d.Join("employees")
		return query.From(d).
			Select(d.ID(), d.C("name"), d.C("employeeCount")).
			Where(e.C("name").EQ("Bob"))
	}
	const want = "SELECT tb_1_.ID, tb_1_.NAME, (SELECT COUNT(*) FROM EMPLOYEE WHERE DEPARTMENT_ID = tb_1_.ID) " +
		"FROM DEPARTMENT tb_1_ INNER JOIN EMPLOYEE tb_2_ ON tb_1_.ID = tb_2_.DEPARTMENT_ID " +
		"WHERE tb_2_.NAME = ? AND tb_1_.DELETED_TIME IS NULL AND tb_2_.DELETED_UUID IS NULL"

	c := compile(t, build())
	assert.Equal(t, want, c.SQL)
	assert.Equal(t, []any{"Bob"}, c.Args)
	assert.Equal(t, []string{"DEPARTMENT", "EMPLOYEE"}, c.Tables)
	assert.Equal(t, query.OpQuery, c.Op)
	require.Len(t, c.Columns, 3)
	assert.Equal(t, "id", c.Columns[0].Name)
	assert.Equal(t, "employeeCount", c.Columns[2].Name)
	assert.Equal(t, field.TypeInt64, c.Columns[2].Type)

	pg, err := query.Compile(build(), dialect.Postgres)
	require.NoError(t, err)
	assert.Equal(t, strings.Replace(want, "?", "$1", 1), pg.SQL)
}

func TestCompileDeterministic(t *testing.T) {
	t.Parallel()
	d := departments()
	e := d.LeftJoin("employees")
	p := e.Join("projects")
	s := query.From(d).
		Select(d.C("name"), e.C("name"), p.C("name")).
		Where(query.Or(e.C("salary").GT(10), p.ID().In(1, 2, 3))).
		OrderBy(d.C("name").Asc(), e.ID().Desc())

	first := compile(t, s)
	for range 5 {
		again := compile(t, s)
		assert.Equal(t, first.SQL, again.SQL)
		assert.Equal(t, first.Args, again.Args)
	}
	assert.Equal(t, "SELECT tb_1_.NAME, tb_2_.NAME, tb_4_.NAME FROM DEPARTMENT tb_1_ "+
		"LEFT JOIN EMPLOYEE tb_2_ ON tb_1_.ID = tb_2_.DEPARTMENT_ID AND tb_2_.DELETED_UUID IS NULL "+
		"INNER JOIN EMPLOYEE_PROJECT tb_3_ ON tb_2_.ID = tb_3_.EMPLOYEE_ID "+
		"INNER JOIN PROJECT tb_4_ ON tb_3_.PROJECT_ID = tb_4_.ID "+
		"WHERE (tb_2_.SALARY > ? OR tb_4_.ID IN (?, ?, ?)) AND tb_1_.DELETED_TIME IS NULL "+
		"ORDER BY tb_1_.NAME ASC, tb_2_.ID DESC", first.SQL)
	assert.Equal(t, []any{10, 1, 2, 3}, first.Args)
}

func TestSoftDeleteAppliedOnce(t *testing.T) {
	t.Parallel()
	d := departments()
	e1 := d.Join("employees")
	e2 := d.Join("employees")
	s := query.From(d).
		Select(d.C("name"), e1.C("name")).
		Where(e1.C("salary").GT(1), e2.C("active").EQ(true)).
		OrderBy(e2.C("name").Asc())

	c := compile(t, s)
	assert.Equal(t, 1, strings.Count(c.SQL, "JOIN"), c.SQL)
	assert.Equal(t, 1, strings.Count(c.SQL, "DELETED_UUID IS NULL"), c.SQL)
	assert.Equal(t, 1, strings.Count(c.SQL, "DELETED_TIME IS NULL"), c.SQL)
}

func TestIgnoreFilters(t *testing.T) {
	t.Parallel()
	d := departments()
	e := d.Join("employees")
	c := compile(t, query.From(d).Select(d.C("name")).Where(e.C("name").EQ("Bob")).IgnoreFilters())
	assert.Equal(t, "SELECT tb_1_.NAME FROM DEPARTMENT tb_1_ INNER JOIN EMPLOYEE tb_2_ "+
		"ON tb_1_.ID = tb_2_.DEPARTMENT_ID WHERE tb_2_.NAME = ?", c.SQL)
}

func TestUnusedJoinsAreNotRendered(t *testing.T) {
	t.Parallel()
	d := departments()
	_ = d.Join("employees")
	c := compile(t, query.From(d).Select(d.C("name")))
	assert.Equal(t, "SELECT tb_1_.NAME FROM DEPARTMENT tb_1_ WHERE tb_1_.DELETED_TIME IS NULL", c.SQL)
	assert.Equal(t, []string{"DEPARTMENT"}, c.Tables)
}

func TestJoinElision(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		build  func() query.Statement
		want   string
		tables []string
	}{
		{
			name: "many_to_one_id_only",
			build: func() query.Statement {
				e := employees()
				return query.From(e).Select(e.C("name")).Where(e.Join("department").ID().EQ(1)).IgnoreFilters()
			},
			want:   "SELECT tb_1_.NAME FROM EMPLOYEE tb_1_ WHERE tb_1_.DEPARTMENT_ID = ?",
			tables: []string{"EMPLOYEE"},
		},
		{
			name: "many_to_one_soft_deleted_target",
			build: func() query.Statement {
				e := employees()
				return query.From(e).Select(e.C("name")).Where(e.Join("department").ID().EQ(1))
			},
			want: "SELECT tb_1_.NAME FROM EMPLOYEE tb_1_ INNER JOIN DEPARTMENT tb_2_ ON tb_1_.DEPARTMENT_ID = tb_2_.ID " +
				"WHERE tb_2_.ID = ? AND tb_1_.DELETED_UUID IS NULL AND tb_2_.DELETED_TIME IS NULL",
			tables: []string{"EMPLOYEE", "DEPARTMENT"},
		},
		{
			name: "many_to_many_id_only",
			build: func() query.Statement {
				e := employees()
				return query.From(e).Select(e.C("name")).Where(e.Join("projects").ID().In(1, 2))
			},
			want: "SELECT tb_1_.NAME FROM EMPLOYEE tb_1_ INNER JOIN EMPLOYEE_PROJECT tb_2_ ON tb_1_.ID = tb_2_.EMPLOYEE_ID " +
				"WHERE tb_2_.PROJECT_ID IN (?, ?) AND tb_1_.DELETED_UUID IS NULL",
			tables: []string{"EMPLOYEE", "EMPLOYEE_PROJECT"},
		},
		{
			name: "many_to_many_full",
			build: func() query.Statement {
				e := employees()
				return query.From(e).Select(e.C("name")).Where(e.Join("projects").C("name").EQ("Apollo"))
			},
			want: "SELECT tb_1_.NAME FROM EMPLOYEE tb_1_ INNER JOIN EMPLOYEE_PROJECT tb_2_ ON tb_1_.ID = tb_2_.EMPLOYEE_ID " +
				"INNER JOIN PROJECT tb_3_ ON tb_2_.PROJECT_ID = tb_3_.ID WHERE tb_3_.NAME = ? AND tb_1_.DELETED_UUID IS NULL",
			tables: []string{"EMPLOYEE", "EMPLOYEE_PROJECT", "PROJECT"},
		},
		{
			name: "id_of_intermediate_join",
			build: func() query.Statement {
				e := employees()
				p := e.Join("department").Join("employees")
				return query.From(e).Select(e.C("name")).Where(p.ID().EQ(7)).IgnoreFilters()
			},
			want: "SELECT tb_1_.NAME FROM EMPLOYEE tb_1_ INNER JOIN DEPARTMENT tb_2_ ON tb_1_.DEPARTMENT_ID = tb_2_.ID " +
				"INNER JOIN EMPLOYEE tb_3_ ON tb_2_.ID = tb_3_.DEPARTMENT_ID WHERE tb_3_.ID = ?",
			tables: []string{"EMPLOYEE", "DEPARTMENT"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := compile(t, tt.build())
			assert.Equal(t, tt.want, c.SQL)
			assert.Equal(t, tt.tables, c.Tables)
		})
	}
}

func TestLeftJoinFilters(t *testing.T) {
	t.Parallel()
	d := departments()
	e := d.LeftJoin("employees")
	s := query.From(d).Select(d.C("name"), e.C("name"))
	active := query.WithFilter("Employee", func(t *query.Table) query.Expr {
		return query.Or(t.C("active").EQ(true), t.C("salary").GT(10))
	})

	c := compile(t, s, active)
	assert.Equal(t, "SELECT tb_1_.NAME, tb_2_.NAME FROM DEPARTMENT tb_1_ "+
		"LEFT JOIN EMPLOYEE tb_2_ ON tb_1_.ID = tb_2_.DEPARTMENT_ID AND tb_2_.DELETED_UUID IS NULL "+
		"AND (tb_2_.ACTIVE = ? OR tb_2_.SALARY > ?) WHERE tb_1_.DELETED_TIME IS NULL", c.SQL)
	assert.Equal(t, []any{true, 10}, c.Args)
}

func TestFilterJoinsGetSoftDelete(t *testing.T) {
	t.Parallel()
	e := employees()
	s := query.From(e).Select(e.C("name"))
	sales := query.WithFilter("Employee", func(t *query.Table) query.Expr {
		return t.Join("department").C("name").EQ("Sales")
	})

	c := compile(t, s, sales)
	assert.Equal(t, "SELECT tb_1_.NAME FROM EMPLOYEE tb_1_ "+
		"INNER JOIN DEPARTMENT tb_2_ ON tb_1_.DEPARTMENT_ID = tb_2_.ID "+
		"WHERE tb_1_.DELETED_UUID IS NULL AND tb_2_.NAME = ? AND tb_2_.DELETED_TIME IS NULL", c.SQL)
	assert.Equal(t, []any{"Sales"}, c.Args)
	assert.Equal(t, 1, strings.Count(c.SQL, "tb_2_.DELETED_TIME IS NULL"))

	c = compile(t, query.From(e).Select(e.C("name")).IgnoreFilters(), sales)
	assert.Equal(t, "SELECT tb_1_.NAME FROM EMPLOYEE tb_1_", c.SQL)
}

func TestInnerAndLeftJoinOfOneEdge(t *testing.T) {
	t.Parallel()
	d := departments()
	s := query.From(d).Select(d.Join("employees").C("name"), d.LeftJoin("employees").C("name")).IgnoreFilters()
	c := compile(t, s)
	assert.Equal(t, "SELECT tb_2_.NAME, tb_3_.NAME FROM DEPARTMENT tb_1_ "+
		"INNER JOIN EMPLOYEE tb_2_ ON tb_1_.ID = tb_2_.DEPARTMENT_ID "+
		"LEFT JOIN EMPLOYEE tb_3_ ON tb_1_.ID = tb_3_.DEPARTMENT_ID", c.SQL)
}

func TestUnresolvableTable(t *testing.T) {
	t.Parallel()
	d := departments()
	e := employees()
	_, err := query.Compile(query.From(e).Where(e.C("name").EQ(d.C("name"))), dialect.SQLite)
	require.Error(t, err)
	assert.True(t, veloq.IsUnresolvableTable(err))
	var ute *veloq.UnresolvableTableError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, "Department", ute.Entity)
	assert.Equal(t, 1, ute.Depth)
}

func TestInvalidReferences(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		build func() query.Statement
	}{
		{"unknown_property", func() query.Statement { e := employees(); return query.From(e).Select(e.C("nope")) }},
		{"edge_as_column", func() query.Statement { e := employees(); return query.From(e).Select(e.C("projects")) }},
		{"unknown_edge", func() query.Statement { d := departments(); return query.From(d).Select(d.Join("nope").C("name")) }},
		{"foreign_key_of_other_entity", func() query.Statement {
			d := departments()
			return query.From(d).Select(d.ForeignKey(testGraph.MustNode("Employee").Edge("projects")))
		}},
		{"nil_node", func() query.Statement { return query.From(query.NewTable(nil)) }},
		{"joined_root", func() query.Statement { return query.From(departments().Join("employees")) }},
		{"fetcher_of_other_entity", func() query.Statement {
			return query.From(departments()).Fetch(query.NewFetcher(testGraph.MustNode("Employee")))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := query.Compile(tt.build(), dialect.SQLite)
			require.Error(t, err)
			assert.True(t, veloq.IsInvalidExpression(err), "%v", err)
		})
	}
}

// =============================================================================
// Subqueries
// =============================================================================

func TestSubqueries(t *testing.T) {
	t.Parallel()
	deptOf := testGraph.MustNode("Employee").Edge("department")
	tests := []struct {
		name  string
		build func() query.Statement
		want  string
		args  []any
	}{
		{
			name: "exists",
			build: func() query.Statement {
				d, e := departments(), employees()
				return query.From(d).Select(d.C("name")).
					Where(query.Exists(query.From(e).Where(e.ForeignKey(deptOf).EQ(d.ID()))))
			},
			want: "SELECT tb_1_.NAME FROM DEPARTMENT tb_1_ WHERE EXISTS (SELECT 1 FROM EMPLOYEE tb_2_ " +
				"WHERE tb_2_.DEPARTMENT_ID = tb_1_.ID AND tb_2_.DELETED_UUID IS NULL) AND tb_1_.DELETED_TIME IS NULL",
		},
		{
			name: "in_subquery",
			build: func() query.Statement {
				d, e := departments(), employees()
				return query.From(d).Select(d.C("name")).
					Where(d.ID().InSub(query.From(e).Select(e.ForeignKey(deptOf)).Where(e.C("salary").GT(100.5))))
			},
			want: "SELECT tb_1_.NAME FROM DEPARTMENT tb_1_ WHERE tb_1_.ID IN (SELECT tb_2_.DEPARTMENT_ID FROM EMPLOYEE tb_2_ " +
				"WHERE tb_2_.SALARY > ? AND tb_2_.DELETED_UUID IS NULL) AND tb_1_.DELETED_TIME IS NULL",
			args: []any{100.5},
		},
		{
			name: "scalar",
			build: func() query.Statement {
				d, e := departments(), employees()
				top := query.From(e).Select(query.Max(e.C("salary"))).Where(e.ForeignKey(deptOf).EQ(d.ID()))
				return query.From(d).Select(d.C("name"), query.As(query.Sub(top), "top"))
			},
			want: "SELECT tb_1_.NAME, (SELECT MAX(tb_2_.SALARY) FROM EMPLOYEE tb_2_ WHERE tb_2_.DEPARTMENT_ID = tb_1_.ID " +
				"AND tb_2_.DELETED_UUID IS NULL) AS top FROM DEPARTMENT tb_1_ WHERE tb_1_.DELETED_TIME IS NULL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := compile(t, tt.build())
			assert.Equal(t, tt.want, c.SQL)
			assert.Equal(t, tt.args, c.Args)
		})
	}
}

func TestSubqueryColumns(t *testing.T) {
	t.Parallel()
	d, e := departments(), employees()
	c := compile(t, query.From(d).Select(query.As(query.Sub(query.From(e).Select(query.Avg(e.C("salary")))), "avg")))
	require.Len(t, c.Columns, 1)
	assert.Equal(t, "avg", c.Columns[0].Name)
	assert.Equal(t, field.TypeFloat64, c.Columns[0].Type)

	d, e = departments(), employees()
	_, err := query.Compile(query.From(d).Where(d.ID().InSub(query.From(e).Select(e.ID(), e.C("name")))), dialect.SQLite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subquery selects 2 columns")
}

// =============================================================================
// Predicates
// =============================================================================

func TestPredicates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		pred func(e *query.Table) query.Expr
		want string
		args []any
	}{
		{"empty_in", func(e *query.Table) query.Expr { return e.ID().In() }, "1 = 0", nil},
		{"empty_not_in", func(e *query.Table) query.Expr { return e.ID().NotIn() }, "1 = 1", nil},
		{"empty_and", func(*query.Table) query.Expr { return query.And() }, "1 = 1", nil},
		{"empty_or", func(*query.Table) query.Expr { return query.Or() }, "1 = 0", nil},
		{"eq_nil", func(e *query.Table) query.Expr { return e.C("location").EQ(nil) }, "tb_1_.LOCATION IS NULL", nil},
		{"neq_nil", func(e *query.Table) query.Expr { return e.C("location").NEQ(nil) }, "tb_1_.LOCATION IS NOT NULL", nil},
		{
			"has_prefix",
			func(e *query.Table) query.Expr { return e.C("name").HasPrefix("50%_off") },
			`tb_1_.NAME LIKE ? ESCAPE '\'`, []any{`50\%\_off%`},
		},
		{
			"contains",
			func(e *query.Table) query.Expr { return e.C("name").Contains("a") },
			`tb_1_.NAME LIKE ? ESCAPE '\'`, []any{"%a%"},
		},
		{
			"nested_junctions",
			func(e *query.Table) query.Expr {
				return query.And(e.C("active").EQ(true), query.Or(e.C("salary").LT(1), e.C("salary").GTE(9)))
			},
			"tb_1_.ACTIVE = ? AND (tb_1_.SALARY < ? OR tb_1_.SALARY >= ?)", []any{true, 1, 9},
		},
		{
			"not",
			func(e *query.Table) query.Expr { return query.Not(e.C("name").In("a", "b")) },
			"NOT (tb_1_.NAME IN (?, ?))", []any{"a", "b"},
		},
		{
			"raw",
			func(e *query.Table) query.Expr { return query.SQL("length(NAME) > ?", 3) },
			"length(NAME) > ?", []any{3},
		},
		{
			"raw_quoted_question_mark",
			func(e *query.Table) query.Expr { return query.SQL("NAME <> '?' AND \"A?\" = ?", "x") },
			"NAME <> '?' AND \"A?\" = ?", []any{"x"},
		},
		{
			"codec_param",
			func(e *query.Table) query.Expr { return e.C("location").EQ(point{X: 1, Y: 2}) },
			"tb_1_.LOCATION = ?", []any{`{"x":1,"y":2}`},
		},
		{
			"tuple_eq",
			func(e *query.Table) query.Expr { return query.Tuple(e.C("name"), e.C("location")).EQ("a", point{X: 3}) },
			"(tb_1_.NAME = ? AND tb_1_.LOCATION = ?)", []any{"a", `{"x":3,"y":0}`},
		},
		{
			"tuple_in",
			func(e *query.Table) query.Expr {
				return query.Tuple(e.C("name"), e.C("salary")).In([]any{"a", 1.5}, []any{"b", 2})
			},
			"((tb_1_.NAME = ? AND tb_1_.SALARY = ?) OR (tb_1_.NAME = ? AND tb_1_.SALARY = ?))", []any{"a", 1.5, "b", 2},
		},
		{
			"tuple_in_empty",
			func(e *query.Table) query.Expr { return query.Tuple(e.C("name")).In() },
			"1 = 0", nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := employees()
			c := compile(t, query.From(e).Select(e.C("name")).Where(tt.pred(e)).IgnoreFilters())
			assert.Equal(t, "SELECT tb_1_.NAME FROM EMPLOYEE tb_1_ WHERE "+tt.want, c.SQL)
			assert.Equal(t, tt.args, c.Args)
		})
	}
}

func TestTupleRowValues(t *testing.T) {
	t.Parallel()
	build := func() query.Statement {
		e := employees()
		return query.From(e).Select(e.C("name")).IgnoreFilters().
			Where(query.Tuple(e.C("name"), e.C("salary")).In([]any{"a", 1}, []any{"b", 2}))
	}
	c, err := query.Compile(build(), dialect.MySQL)
	require.NoError(t, err)
	assert.Equal(t, "SELECT tb_1_.NAME FROM EMPLOYEE tb_1_ WHERE (tb_1_.NAME, tb_1_.SALARY) IN ((?, ?), (?, ?))", c.SQL)

	c, err = query.Compile(build(), dialect.Postgres)
	require.NoError(t, err)
	assert.Equal(t, "SELECT tb_1_.NAME FROM EMPLOYEE tb_1_ WHERE (tb_1_.NAME, tb_1_.SALARY) IN (($1, $2), ($3, $4))", c.SQL)
}

func TestInvalidExpressions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		pred    func(e *query.Table) query.Expr
		wantErr string
	}{
		{"type_mismatch", func(e *query.Table) query.Expr { return e.C("name").EQ(5) }, "int is not a string"},
		{"null_operand", func(e *query.Table) query.Expr { return e.C("salary").LT(nil) }, "NULL operand"},
		{"unordered", func(e *query.Table) query.Expr { return e.C("active").GT(e.C("active")) }, "not ordered"},
		{"column_types", func(e *query.Table) query.Expr { return e.C("name").EQ(e.C("salary")) }, "cannot compare"},
		{"null_in_element", func(e *query.Table) query.Expr { return e.C("name").In("a", nil) }, "NULL element"},
		{"tuple_arity", func(e *query.Table) query.Expr { return query.Tuple(e.C("name"), e.C("salary")).EQ("a") }, "1 values for 2 components"},
		{"tuple_null", func(e *query.Table) query.Expr { return query.Tuple(e.C("name")).EQ(nil) }, "NULL component 0"},
		{"raw_placeholders", func(e *query.Table) query.Expr { return query.SQL("a = ? AND b = ?", 1) }, "placeholders"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := employees()
			_, err := query.Compile(query.From(e).Where(tt.pred(e)), dialect.SQLite)
			require.Error(t, err)
			assert.True(t, veloq.IsInvalidExpression(err), "%v", err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	e := employees()
	_, err := query.Compile(query.From(e).Select(query.Sum(e.C("name"))), dialect.SQLite)
	assert.ErrorContains(t, err, "not numeric")
}

// =============================================================================
// Select clauses
// =============================================================================

func TestGroupBy(t *testing.T) {
	t.Parallel()
	e := employees()
	fk := e.ForeignKey(testGraph.MustNode("Employee").Edge("department"))
	c := compile(t, query.From(e).
		Select(fk, query.As(query.CountAll(), "n")).
		GroupBy(fk).
		Having(query.SQL("COUNT(*) > ?", 1)))
	assert.Equal(t, "SELECT tb_1_.DEPARTMENT_ID, COUNT(*) AS n FROM EMPLOYEE tb_1_ WHERE tb_1_.DELETED_UUID IS NULL "+
		"GROUP BY tb_1_.DEPARTMENT_ID HAVING COUNT(*) > ?", c.SQL)
	require.Len(t, c.Columns, 2)
	assert.NotNil(t, c.Columns[0].Edge)
	assert.Equal(t, "n", c.Columns[1].Name)
	assert.Equal(t, field.TypeInt64, c.Columns[1].Type)
}

func TestDefaultSelection(t *testing.T) {
	t.Parallel()
	d := departments()
	c := compile(t, query.From(d).Distinct())
	assert.Equal(t, "SELECT DISTINCT tb_1_.ID, tb_1_.NAME FROM DEPARTMENT tb_1_ WHERE tb_1_.DELETED_TIME IS NULL", c.SQL)
}

func TestLimitOffset(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		dialect string
		limit   *int
		offset  *int
		want    string
		args    []any
	}{
		{"sqlite_both", dialect.SQLite, ptr(10), ptr(20), " LIMIT ? OFFSET ?", []any{10, 20}},
		{"sqlite_offset", dialect.SQLite, nil, ptr(5), " LIMIT -1 OFFSET ?", []any{5}},
		{"mysql_offset", dialect.MySQL, nil, ptr(5), " LIMIT 18446744073709551615 OFFSET ?", []any{5}},
		{"postgres_offset", dialect.Postgres, nil, ptr(5), " OFFSET $1", []any{5}},
		{"postgres_limit", dialect.Postgres, ptr(3), nil, " LIMIT $1", []any{3}},
		{"zero_limit", dialect.SQLite, ptr(0), nil, " LIMIT ?", []any{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := projects()
			s := query.From(p).Select(p.C("name"))
			if tt.limit != nil {
				s.Limit(*tt.limit)
			}
			if tt.offset != nil {
				s.Offset(*tt.offset)
			}
			c, err := query.Compile(s, tt.dialect)
			require.NoError(t, err)
			assert.Equal(t, "SELECT tb_1_.NAME FROM PROJECT tb_1_"+tt.want, c.SQL)
			assert.Equal(t, tt.args, c.Args)
		})
	}

	p := projects()
	_, err := query.Compile(query.From(p).Limit(-1), dialect.SQLite)
	assert.True(t, veloq.IsInvalidExpression(err))
}

func ptr(n int) *int { return &n }

func TestFetchColumns(t *testing.T) {
	t.Parallel()
	node := testGraph.MustNode("Employee")
	e := query.NewTable(node)
	f := query.NewFetcher(node).Add("name", "department", "projects")
	c := compile(t, query.From(e).Fetch(f))
	assert.Equal(t, "SELECT tb_1_.ID, tb_1_.NAME, tb_1_.DEPARTMENT_ID FROM EMPLOYEE tb_1_ WHERE tb_1_.DELETED_UUID IS NULL", c.SQL)
	require.Len(t, c.Columns, 3)
	assert.Equal(t, node.Edge("department"), c.Columns[2].Edge)
}

// =============================================================================
// Mutations
// =============================================================================

func TestMutations(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		build func() query.Mutation
		want  string
		args  []any
		op    query.Op
	}{
		{
			name: "update",
			build: func() query.Mutation {
				e := employees()
				return query.Update(e).Set("name", "Ann").Set("salary", 10.5).Where(e.ID().EQ(1))
			},
			want: "UPDATE EMPLOYEE AS tb_1_ SET NAME = ?, SALARY = ? WHERE tb_1_.ID = ? AND tb_1_.DELETED_UUID IS NULL",
			args: []any{"Ann", 10.5, 1},
			op:   query.OpUpdate,
		},
		{
			name: "update_expression",
			build: func() query.Mutation {
				e := employees()
				return query.Update(e).Set("salary", query.SQL("SALARY * ?", 2)).Set("department", nil).IgnoreFilters()
			},
			want: "UPDATE EMPLOYEE AS tb_1_ SET SALARY = SALARY * ?, DEPARTMENT_ID = ?",
			args: []any{2, nil},
			op:   query.OpUpdate,
		},
		{
			name: "update_elided_join",
			build: func() query.Mutation {
				e := employees()
				return query.Update(e).Set("active", false).Where(e.Join("department").ID().EQ(3)).IgnoreFilters()
			},
			want: "UPDATE EMPLOYEE AS tb_1_ SET ACTIVE = ? WHERE tb_1_.DEPARTMENT_ID = ?",
			args: []any{false, 3},
			op:   query.OpUpdate,
		},
		{
			name: "hard_delete",
			build: func() query.Mutation {
				d := departments()
				return query.Delete(d).Where(d.ID().EQ(2)).Hard()
			},
			want: "DELETE FROM DEPARTMENT AS tb_1_ WHERE tb_1_.ID = ? AND tb_1_.DELETED_TIME IS NULL",
			args: []any{2},
			op:   query.OpDelete,
		},
		{
			name: "delete_without_marker",
			build: func() query.Mutation {
				p := projects()
				return query.Delete(p).Where(p.C("name").EQ("Apollo"))
			},
			want: "DELETE FROM PROJECT AS tb_1_ WHERE tb_1_.NAME = ?",
			args: []any{"Apollo"},
			op:   query.OpDelete,
		},
		{
			name: "insert",
			build: func() query.Mutation {
				return query.Insert(employees()).Set("id", 9).Set("name", "Ann").Set("location", point{X: 1}).Set("department", 2)
			},
			want: "INSERT INTO EMPLOYEE (ID, NAME, LOCATION, DEPARTMENT_ID) VALUES (?, ?, ?, ?)",
			args: []any{9, "Ann", `{"x":1,"y":0}`, 2},
			op:   query.OpInsert,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := compile(t, tt.build())
			assert.Equal(t, tt.want, c.SQL)
			assert.Equal(t, tt.args, c.Args)
			assert.Equal(t, tt.op, c.Op)
			assert.Empty(t, c.Columns)
		})
	}
}

func TestLogicalDelete(t *testing.T) {
	t.Parallel()
	d := departments()
	del := query.Delete(d).Where(d.ID().EQ(2))
	require.True(t, del.Logical())

	c := compile(t, del)
	assert.Equal(t, "UPDATE DEPARTMENT AS tb_1_ SET DELETED_TIME = ? WHERE tb_1_.ID = ? AND tb_1_.DELETED_TIME IS NULL", c.SQL)
	require.Len(t, c.Args, 2)
	assert.IsType(t, time.Time{}, c.Args[0])
	assert.Equal(t, 2, c.Args[1])

	e := employees()
	c = compile(t, query.Delete(e).Where(e.ID().EQ(1)))
	assert.True(t, strings.HasPrefix(c.SQL, "UPDATE EMPLOYEE AS tb_1_ SET DELETED_UUID = ?"), c.SQL)
	assert.IsType(t, "", c.Args[0])
}

func TestInvalidMutations(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		build   func() query.Mutation
		wantErr string
	}{
		{"unknown_field", func() query.Mutation { return query.Update(employees()).Set("nope", 1) }, "unknown field"},
		{"formula_field", func() query.Mutation { return query.Update(departments()).Set("employeeCount", 1) }, "formula fields cannot be assigned"},
		{"no_assignments", func() query.Mutation { return query.Update(employees()) }, "no assignments"},
		{"not_nillable", func() query.Mutation { return query.Update(employees()).Set("name", nil) }, "not nillable"},
		{"type_mismatch", func() query.Mutation { return query.Update(employees()).Set("active", "yes") }, "is not a bool"},
		{"insert_no_values", func() query.Mutation { return query.Insert(employees()) }, "no values"},
		{"one_to_many_edge", func() query.Mutation { return query.Update(departments()).Set("employees", 1) }, "unknown field"},
		{
			"joined_table",
			func() query.Mutation {
				e := employees()
				return query.Update(e).Set("active", true).Where(e.Join("department").C("name").EQ("x"))
			},
			"mutations cannot join tables",
		},
		{
			"joined_soft_deleted_table",
			func() query.Mutation {
				e := employees()
				return query.Delete(e).Where(e.Join("department").ID().EQ(1))
			},
			"mutations cannot join tables",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := query.Compile(tt.build(), dialect.SQLite)
			require.Error(t, err)
			assert.True(t, veloq.IsInvalidExpression(err), "%v", err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMutationFields(t *testing.T) {
	t.Parallel()
	u := query.Update(employees()).Set("name", "Ann").Set("salary", query.SQL("SALARY + 1"))
	v, ok := u.Field("name")
	assert.True(t, ok)
	assert.Equal(t, "Ann", v)
	_, ok = u.Field("salary")
	assert.False(t, ok, "expressions are not values")

	i := query.Insert(employees()).Set("name", "Bob")
	v, ok = i.Field("name")
	assert.True(t, ok)
	assert.Equal(t, "Bob", v)

	_, ok = query.Delete(employees()).Field("name")
	assert.False(t, ok)
}

func TestOpString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Insert", query.OpInsert.String())
	assert.Equal(t, "Update|Delete", (query.OpUpdate | query.OpDelete).String())
	assert.Equal(t, "Unknown", query.Op(0).String())
	assert.True(t, (query.OpUpdate | query.OpDelete).Is(query.OpDelete))
	assert.False(t, query.OpQuery.Is(query.OpInsert))
}
