package sqlgraph

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/contrib/dataloader"
	"github.com/syssam/veloq/graph"
	"github.com/syssam/veloq/query"
	"github.com/syssam/veloq/schema"
	"github.com/syssam/veloq/schema/edge"
)

// DefaultConcurrency is the number of edges of one level loaded at once.
const DefaultConcurrency = 4

// Plan loads object graphs of one fetcher. A plan is immutable and may be
// executed concurrently.
type Plan struct {
	fetcher     *query.Fetcher
	concurrency int
	batchSize   int
	logger      *slog.Logger
	computed    map[*query.Fetcher][]*schema.Computed
}

// Option configures a Plan.
type Option func(*Plan)

// WithConcurrency sets the number of edges of one level loaded at once.
func WithConcurrency(n int) Option {
	return func(p *Plan) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithBatchSize sets the batch size of edges that do not set their own.
// Zero sends all keys of a level in one query.
func WithBatchSize(n int) Option {
	return func(p *Plan) { p.batchSize = n }
}

// WithLogger sets the logger of batch loads.
func WithLogger(l *slog.Logger) Option {
	return func(p *Plan) { p.logger = l }
}

// NewPlan validates f and orders its computed properties.
func NewPlan(f *query.Fetcher, opts ...Option) (*Plan, error) {
	if f == nil {
		return nil, veloq.NewInvalidExpressionError("fetcher", "nil fetcher")
	}
	p := &Plan{
		fetcher:     f,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		computed:    make(map[*query.Fetcher][]*schema.Computed),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.prepare(f); err != nil {
		return nil, err
	}
	return p, nil
}

// Fetcher returns the fetcher of the plan.
func (p *Plan) Fetcher() *query.Fetcher { return p.fetcher }

func (p *Plan) prepare(f *query.Fetcher) error {
	if err := f.Err(); err != nil {
		return err
	}
	order, err := computedOrder(f)
	if err != nil {
		return err
	}
	p.computed[f] = order
	for _, e := range f.Entries() {
		if e.Child != nil {
			if err := p.prepare(e.Child); err != nil {
				return err
			}
		}
	}
	return nil
}

// computedOrder returns the computed entries of f, dependencies first.
func computedOrder(f *query.Fetcher) ([]*schema.Computed, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	var (
		node  = f.Node()
		state = make(map[string]int)
		order []*schema.Computed
		path  []string
	)
	var visit func(c *schema.Computed) error
	visit = func(c *schema.Computed) error {
		switch state[c.Name] {
		case done:
			return nil
		case visiting:
			i := slices.Index(path, c.Name)
			cycle := append(slices.Clone(path[i:]), c.Name)
			return &veloq.FetchPlanCycleError{Entity: node.Name, Cycle: cycle}
		}
		state[c.Name] = visiting
		path = append(path, c.Name)
		for _, dep := range c.Deps {
			if d := node.ComputedProp(dep); d != nil {
				if err := visit(d); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[c.Name] = done
		order = append(order, c)
		return nil
	}
	for _, e := range f.Entries() {
		if c := e.Prop.Computed; c != nil && e.Prop.Kind == schema.PropComputed {
			if err := visit(c); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// Execute runs root with the plan's fetcher and loads every requested edge
// level by level. Objects are returned in the order of the root rows,
// deduplicated by identifier. No objects are returned when any query fails.
func (p *Plan) Execute(ctx context.Context, q Querier, root *query.Select) ([]*graph.Object, error) {
	if root == nil {
		return nil, veloq.NewInvalidExpressionError("fetch", "nil root query")
	}
	if root.Node() != p.fetcher.Node() {
		return nil, veloq.NewInvalidExpressionError("fetch", "fetcher of %s for a query of %s", p.fetcher.Node(), root.Node())
	}
	c, rows, err := q.QueryRows(ctx, root.Clone().Fetch(p.fetcher))
	if err != nil {
		return nil, err
	}
	objs, _, err := decode(c, rows, p.fetcher, make(map[any]*graph.Object), -1)
	if err != nil {
		return nil, err
	}
	if err := p.load(ctx, q, p.fetcher, objs); err != nil {
		return nil, err
	}
	return objs, nil
}

// load loads the edges of f for objs, then evaluates computed properties.
func (p *Plan) load(ctx context.Context, q Querier, f *query.Fetcher, objs []*graph.Object) error {
	if len(objs) == 0 {
		return nil
	}
	var entries []*query.FetchEntry
	for _, e := range f.Entries() {
		if e.Prop.Kind == schema.PropEdge {
			entries = append(entries, e)
		}
	}
	results := make([]map[any][]*graph.Object, len(entries))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.concurrency)
	for i, e := range entries {
		eg.Go(func() error {
			r, err := p.loadEdge(ctx, q, e, objs)
			results[i] = r
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for i, e := range entries {
		ed := e.Prop.Edge
		for _, o := range objs {
			key := o.ID()
			if ed.OwnFK() {
				key, _ = o.FK(ed.Name)
			}
			var targets []*graph.Object
			if key != nil {
				targets = results[i][key]
			}
			if !ed.ToMany() && len(targets) > 1 {
				return veloq.NewNotSingularErrorWithCount(ed.String(), len(targets))
			}
			o.SetEdge(ed.Name, targets)
			if e.Hidden {
				o.Hide(ed.Name)
			}
		}
	}
	return p.evaluate(f, objs)
}

// evaluate computes the computed properties of objs in dependency order.
func (p *Plan) evaluate(f *query.Fetcher, objs []*graph.Object) error {
	order := p.computed[f]
	if len(order) == 0 {
		return nil
	}
	for _, o := range objs {
		for _, c := range order {
			v, err := c.Func(o)
			if err != nil {
				return veloq.NewQueryError(f.Node().Name, "computed "+c.Name, err)
			}
			o.Set(c.Name, v)
			if e := f.Entry(c.Name); e != nil && e.Hidden {
				o.Hide(c.Name)
			}
		}
	}
	return nil
}

// loadEdge loads the targets of one edge for parents and groups them by
// the key that links them to their parent.
func (p *Plan) loadEdge(ctx context.Context, q Querier, e *query.FetchEntry, parents []*graph.Object) (map[any][]*graph.Object, error) {
	ed := e.Prop.Edge
	keyFn := func(o *graph.Object) any { return o.ID() }
	if ed.OwnFK() {
		keyFn = func(o *graph.Object) any {
			fk, _ := o.FK(ed.Name)
			return fk
		}
	}
	keys := dataloader.DistinctKeys(parents, keyFn)
	groups := make(map[any][]*graph.Object, len(keys))
	if len(keys) == 0 {
		return groups, nil
	}
	if p.stubbable(q, e) {
		for _, k := range keys {
			o := graph.New(ed.Target)
			o.Set(ed.Target.ID.Name, k)
			groups[k] = []*graph.Object{o}
		}
		return groups, nil
	}
	size := e.BatchSize
	if size == 0 {
		size = p.batchSize
	}
	var (
		shared   = make(map[any]*graph.Object)
		children []*graph.Object
	)
	for _, batch := range dataloader.Chunk(keys, size) {
		s, keyed := batchQuery(e, batch)
		p.logger.DebugContext(ctx, "batch load", "edge", ed.String(), "keys", len(batch))
		c, rows, err := q.QueryRows(ctx, s)
		if err != nil {
			return nil, err
		}
		keyIdx := -1
		if keyed {
			keyIdx = len(c.Columns) - 1
		}
		objs, rk, err := decode(c, rows, e.Child, shared, keyIdx)
		if err != nil {
			return nil, err
		}
		children = append(children, objs...)
		for i, o := range rk.objs {
			k := rk.keys[i]
			if k == nil {
				k = o.ID()
			}
			groups[k] = append(groups[k], o)
		}
	}
	if err := p.load(ctx, q, e.Child, children); err != nil {
		return nil, err
	}
	return groups, nil
}

// stubbable reports if the targets of a many-to-one edge can be built from
// the foreign keys alone.
func (p *Plan) stubbable(q Querier, e *query.FetchEntry) bool {
	ed := e.Prop.Edge
	if !ed.OwnFK() || !e.Child.IDOnly() || e.Where != nil || ed.Target.SoftDelete != nil {
		return false
	}
	if fc, ok := q.(FilterChecker); ok && fc.Filtered(ed.Target) {
		return false
	}
	return true
}

// batchQuery builds the query of one batch of keys. keyed reports if the
// last selected column holds the parent key of each row.
func batchQuery(e *query.FetchEntry, keys []any) (s *query.Select, keyed bool) {
	ed := e.Prop.Edge
	t := query.NewTable(ed.Target)
	s = query.From(t).Fetch(e.Child)
	switch ed.Rel {
	case edge.M2O:
		s.Where(t.ID().In(keys...))
	case edge.M2M:
		owner := t.JoinEdge(reverse(ed), query.InnerJoin).ID()
		s.Select(owner).Where(owner.In(keys...))
		keyed = true
	default:
		fk := t.ForeignKey(ed)
		s.Select(fk).Where(fk.In(keys...))
		keyed = true
	}
	if e.Where != nil {
		s.Where(e.Where(t))
	}
	if e.OrderBy != nil {
		s.OrderBy(e.OrderBy(t)...)
	}
	return s, keyed
}

// reverse returns the many-to-many edge from the target of ed back to its
// declaring entity through the same link table.
func reverse(ed *schema.Edge) *schema.Edge {
	return &schema.Edge{
		Node:   ed.Target,
		Target: ed.Node,
		Name:   ed.Name + "~",
		Rel:    edge.M2M,
		Through: &edge.Through{
			Table:        ed.Through.Table,
			OwnColumn:    ed.Through.TargetColumn,
			TargetColumn: ed.Through.OwnColumn,
		},
	}
}
