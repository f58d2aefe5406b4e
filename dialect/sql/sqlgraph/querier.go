package sqlgraph

import (
	"context"
	"fmt"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql"
	"github.com/syssam/veloq/graph"
	"github.com/syssam/veloq/query"
	"github.com/syssam/veloq/schema"
)

// Querier runs a SELECT statement and returns its compiled form with the
// raw rows.
type Querier interface {
	QueryRows(ctx context.Context, s *query.Select) (*query.Compiled, [][]any, error)
}

// FilterChecker is implemented by queriers that apply global filters. The
// planner only builds many-to-one targets from foreign keys when their
// entity is not filtered.
type FilterChecker interface {
	Filtered(node *schema.Node) bool
}

// DriverQuerier compiles statements for the dialect of Driver and runs them
// on it.
type DriverQuerier struct {
	Driver  dialect.Driver
	Filters map[string][]query.Filter
}

// QueryRows implements Querier.
func (q *DriverQuerier) QueryRows(ctx context.Context, s *query.Select) (*query.Compiled, [][]any, error) {
	var opts []query.CompileOption
	for entity, fs := range q.Filters {
		for _, f := range fs {
			opts = append(opts, query.WithFilter(entity, f))
		}
	}
	c, err := query.Compile(s, q.Driver.Dialect(), opts...)
	if err != nil {
		return nil, nil, err
	}
	rows, err := sql.QueryValues(ctx, q.Driver, c.SQL, c.Args)
	if err != nil {
		return nil, nil, err
	}
	return c, rows, nil
}

// Filtered implements FilterChecker.
func (q *DriverQuerier) Filtered(node *schema.Node) bool {
	return len(q.Filters[node.Name]) > 0
}

// rowKeys pairs every decoded row with the parent key it was selected for.
type rowKeys struct {
	objs []*graph.Object
	keys []any
}

// decode builds objects of f from rows. Rows with an identifier already in
// shared reuse that object. The column at keyIdx, if any, is the parent key
// and is not stored on the object.
func decode(c *query.Compiled, rows [][]any, f *query.Fetcher, shared map[any]*graph.Object, keyIdx int) ([]*graph.Object, rowKeys, error) {
	var (
		objs []*graph.Object
		rk   = rowKeys{objs: make([]*graph.Object, 0, len(rows)), keys: make([]any, 0, len(rows))}
		node = f.Node()
	)
	for _, row := range rows {
		if len(row) != len(c.Columns) {
			return nil, rk, veloq.NewQueryError(node.Name, "decode", fmt.Errorf("row has %d columns, want %d", len(row), len(c.Columns)))
		}
		id, err := c.Columns[0].Decode(row[0])
		if err != nil {
			return nil, rk, err
		}
		var key any
		if keyIdx >= 0 {
			if key, err = c.Columns[keyIdx].Decode(row[keyIdx]); err != nil {
				return nil, rk, err
			}
		}
		o, ok := shared[id]
		if !ok {
			o = graph.New(node)
			for i, col := range c.Columns {
				if i == keyIdx {
					continue
				}
				v, err := col.Decode(row[i])
				if err != nil {
					return nil, rk, err
				}
				switch {
				case col.Edge != nil:
					o.SetFK(col.Edge.Name, v)
				case col.Name != "":
					o.Set(col.Name, v)
				}
			}
			for _, e := range f.Entries() {
				if e.Hidden && e.Prop.Kind == schema.PropField {
					o.Hide(e.Prop.Name)
				}
			}
			shared[id] = o
			objs = append(objs, o)
		}
		rk.objs = append(rk.objs, o)
		rk.keys = append(rk.keys, key)
	}
	return objs, rk, nil
}
