// Package client runs compiled statements on a database: it applies
// privacy policies and global filters, executes through a dialect.Driver,
// caches read results and loads object graphs with the fetch planner.
//
//	g := schema.MustBuild(nil, department, employee)
//	c, err := client.Open(&client.Config{Dialect: "sqlite", DSN: "file:app.db"}, g)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	d := c.Table("Department")
//	objs, err := c.Fetch(ctx,
//	    query.From(d).Where(d.C("name").HasPrefix("R")),
//	    query.NewFetcher(d.Node()).Add("name", "employees"),
//	)
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/contrib/dataloader"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql"
	"github.com/syssam/veloq/dialect/sql/sqlgraph"
	"github.com/syssam/veloq/graph"
	"github.com/syssam/veloq/privacy"
	"github.com/syssam/veloq/query"
	"github.com/syssam/veloq/schema"
	"github.com/syssam/veloq/schema/field"
)

// Client executes statements of one entity graph on one driver. A Client
// is safe for concurrent use.
type Client struct {
	drv         dialect.Driver
	graph       *schema.Graph
	logger      *slog.Logger
	debug       bool
	concurrency int
	batchSize   int
	cache       veloq.Cache
	cacheTTL    time.Duration
	policies    map[string]privacy.Evaluator
	filters     map[string][]query.Filter
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger of compiled statements and failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConcurrency sets the number of sibling edges loaded at once.
func WithConcurrency(n int) Option {
	return func(c *Client) { c.concurrency = n }
}

// WithBatchSize sets the default number of keys per batch query. Zero
// loads all keys of a level in one query.
func WithBatchSize(n int) Option {
	return func(c *Client) { c.batchSize = n }
}

// WithCache caches the rows of read statements in cache for ttl. Any
// write through the client clears the cache.
func WithCache(cache veloq.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithPolicy sets the privacy policy of an entity. The policy is
// evaluated before every statement rooted at the entity, including the
// batch queries of the fetch planner.
func WithPolicy(entity string, p privacy.Evaluator) Option {
	return func(c *Client) { c.policies[entity] = p }
}

// WithFilter adds a global filter to an entity. Filtered tables get the
// filter predicate wherever they are used, like soft-delete markers.
func WithFilter(entity string, fn query.Filter) Option {
	return func(c *Client) { c.filters[entity] = append(c.filters[entity], fn) }
}

// WithDebug logs every statement sent to the driver.
func WithDebug() Option {
	return func(c *Client) { c.debug = true }
}

// New returns a client executing on drv.
func New(drv dialect.Driver, g *schema.Graph, opts ...Option) *Client {
	c := &Client{
		drv:         drv,
		graph:       g,
		logger:      slog.Default(),
		concurrency: sqlgraph.DefaultConcurrency,
		policies:    make(map[string]privacy.Evaluator),
		filters:     make(map[string][]query.Filter),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.debug {
		c.drv = sql.NewDebugDriver(c.drv, c.logger)
	}
	return c
}

// Open opens a database connection described by cfg. The entity graph is
// loaded from cfg.Schema when g is nil.
func Open(cfg *Config, g *schema.Graph, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if g == nil {
		if cfg.Schema == "" {
			return nil, errors.New("client: no entity graph and no schema file")
		}
		entities, err := schema.LoadFile(cfg.Schema)
		if err != nil {
			return nil, fmt.Errorf("client: load schema: %w", err)
		}
		if g, err = schema.Build(nil, entities...); err != nil {
			return nil, err
		}
	}
	drv, err := sql.Open(cfg.Dialect, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("client: open %s: %w", cfg.Dialect, err)
	}
	c := New(drv, g, append(cfg.options(), opts...)...)
	if cfg.SlowThreshold > 0 {
		c.drv = sql.NewStatsDriver(c.drv, sql.WithSlowThreshold(cfg.SlowThreshold), sql.WithSlowQueryLog(c.logger))
	}
	return c, nil
}

// Debug returns a client that logs every statement.
func (c *Client) Debug() *Client {
	if c.debug {
		return c
	}
	cc := *c
	cc.debug = true
	cc.drv = sql.NewDebugDriver(c.drv, c.logger)
	cc.policies = maps.Clone(c.policies)
	cc.filters = maps.Clone(c.filters)
	return &cc
}

// Driver returns the driver statements are executed on.
func (c *Client) Driver() dialect.Driver { return c.drv }

// Graph returns the entity graph.
func (c *Client) Graph() *schema.Graph { return c.graph }

// Table returns a new root handle of entity. An unknown entity yields a
// handle whose statements fail to compile.
func (c *Client) Table(entity string) *query.Table {
	return query.NewTable(c.graph.Node(entity))
}

// Close closes the driver.
func (c *Client) Close() error { return c.drv.Close() }

// Compile compiles stmt for the client's dialect with its global filters.
func (c *Client) Compile(stmt query.Statement) (*query.Compiled, error) {
	opts := make([]query.CompileOption, 0, len(c.filters))
	for entity, fs := range c.filters {
		for _, fn := range fs {
			opts = append(opts, query.WithFilter(entity, fn))
		}
	}
	return query.Compile(stmt, c.drv.Dialect(), opts...)
}

// QueryRows evaluates the query policy of the root entity of s, compiles
// it and returns its raw rows. s is not modified. QueryRows implements
// sqlgraph.Querier.
func (c *Client) QueryRows(ctx context.Context, s *query.Select) (*query.Compiled, [][]any, error) {
	s = s.Clone()
	if n := s.Node(); n != nil {
		if p, ok := c.policies[n.Name]; ok {
			if err := decide(ctx, func() error { return p.EvalQuery(ctx, s) }); err != nil {
				return nil, nil, veloq.NewPrivacyError(n.Name, query.OpQuery.String(), err)
			}
		}
	}
	compiled, err := c.Compile(s)
	if err != nil {
		return nil, nil, err
	}
	c.logger.DebugContext(ctx, "veloq: query", "sql", compiled.SQL, "args", compiled.Args)
	rows, err := c.query(ctx, compiled)
	if err != nil {
		c.logger.ErrorContext(ctx, "veloq: query failed", "sql", compiled.SQL, "error", err)
		return nil, nil, err
	}
	return compiled, rows, nil
}

// Filtered implements sqlgraph.FilterChecker. Entities with a policy count
// as filtered since policies may narrow their statements.
func (c *Client) Filtered(node *schema.Node) bool {
	_, ok := c.policies[node.Name]
	return ok || len(c.filters[node.Name]) > 0
}

// query runs a compiled read, through the cache when one is set.
func (c *Client) query(ctx context.Context, compiled *query.Compiled) ([][]any, error) {
	if c.cache == nil {
		return sql.QueryValues(ctx, c.drv, compiled.SQL, compiled.Args)
	}
	key := veloq.CacheKey{SQL: compiled.SQL, Args: compiled.Args}
	if len(compiled.Tables) > 0 {
		key.Table = compiled.Tables[0]
	}
	k := key.String()
	if b, err := c.cache.Get(ctx, k); err != nil {
		c.logger.WarnContext(ctx, "veloq: cache get", "key", k, "error", err)
	} else if b != nil {
		var rows [][]any
		if err := msgpack.Unmarshal(b, &rows); err == nil {
			return rows, nil
		}
	}
	rows, err := sql.QueryValues(ctx, c.drv, compiled.SQL, compiled.Args)
	if err != nil {
		return nil, err
	}
	b, err := msgpack.Marshal(rows)
	if err == nil {
		err = c.cache.Set(ctx, k, b, c.cacheTTL)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "veloq: cache set", "key", k, "error", err)
	}
	return rows, nil
}

// Rows runs s and returns its rows with every column decoded.
func (c *Client) Rows(ctx context.Context, s *query.Select) ([][]any, error) {
	compiled, rows, err := c.QueryRows(ctx, s)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		for i, col := range compiled.Columns {
			if row[i], err = col.Decode(row[i]); err != nil {
				return nil, err
			}
		}
	}
	return rows, nil
}

// Fetch runs s and loads the object graph shaped by f. Either every object
// is returned or an error; no partial graph.
func (c *Client) Fetch(ctx context.Context, s *query.Select, f *query.Fetcher) ([]*graph.Object, error) {
	p, err := sqlgraph.NewPlan(f,
		sqlgraph.WithConcurrency(c.concurrency),
		sqlgraph.WithBatchSize(c.batchSize),
		sqlgraph.WithLogger(c.logger),
	)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, c, s)
}

// Exec evaluates the mutation policy of the entity of m, executes m and
// returns the number of affected rows. Policies may add predicates to m.
func (c *Client) Exec(ctx context.Context, m query.Mutation) (int64, error) {
	n := m.Node()
	if n == nil {
		_, err := c.Compile(m)
		return 0, err
	}
	if p, ok := c.policies[n.Name]; ok {
		if err := decide(ctx, func() error { return p.EvalMutation(ctx, m) }); err != nil {
			return 0, veloq.NewPrivacyError(n.Name, m.Op().String(), err)
		}
	}
	compiled, err := c.Compile(m)
	if err != nil {
		return 0, err
	}
	c.logger.DebugContext(ctx, "veloq: exec", "sql", compiled.SQL, "args", compiled.Args)
	affected, err := sql.ExecAffected(ctx, c.drv, compiled.SQL, compiled.Args)
	if err != nil {
		c.logger.ErrorContext(ctx, "veloq: exec failed", "sql", compiled.SQL, "error", err)
		return 0, veloq.NewMutationError(n.Name, m.Op().String(), sql.ConvertError(err))
	}
	if c.cache != nil {
		if err := c.cache.Clear(ctx); err != nil {
			c.logger.WarnContext(ctx, "veloq: cache clear", "error", err)
		}
	}
	return affected, nil
}

// decide runs eval under the decision attached to ctx, if any. Allow and
// Skip decisions let the statement run.
func decide(ctx context.Context, eval func() error) error {
	decision, ok := privacy.DecisionFromContext(ctx)
	if !ok {
		decision = eval()
	}
	if decision == nil || errors.Is(decision, privacy.Allow) || errors.Is(decision, privacy.Skip) {
		return nil
	}
	return decision
}

// FindByID loads the object of entity identified by id. A nil fetcher
// loads all scalars. A missing row returns a *veloq.NotFoundError.
func (c *Client) FindByID(ctx context.Context, entity string, id any, f *query.Fetcher) (*graph.Object, error) {
	objs, err := c.FindByIDs(ctx, entity, []any{id}, f)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, veloq.NewNotFoundErrorWithID(entity, id)
	}
	return objs[0], nil
}

// FindByIDs loads the objects of entity identified by ids, in the order of
// ids. Missing and duplicate identifiers are skipped.
func (c *Client) FindByIDs(ctx context.Context, entity string, ids []any, f *query.Fetcher) ([]*graph.Object, error) {
	node := c.graph.Node(entity)
	if node == nil {
		return nil, veloq.NewInvalidExpressionError(entity, "unknown entity")
	}
	if f == nil {
		f = query.NewFetcher(node).AllScalars()
	}
	keys := make([]any, 0, len(ids))
	for _, id := range ids {
		k, err := field.Convert(node.ID.Type, id)
		if err != nil {
			return nil, veloq.NewInvalidExpressionError(node.ID.String(), "%v", err)
		}
		keys = append(keys, k)
	}
	keys = dataloader.DistinctKeys(keys, func(k any) any { return k })
	if len(keys) == 0 {
		return nil, nil
	}
	t := query.NewTable(node)
	objs, err := c.Fetch(ctx, query.From(t).Where(t.ID().In(keys...)), f)
	if err != nil {
		return nil, err
	}
	ordered, errs := dataloader.OrderByKeys(keys, objs, func(o *graph.Object) any { return o.ID() })
	found := ordered[:0]
	for i, o := range ordered {
		if errs[i] == nil {
			found = append(found, o)
		}
	}
	return found, nil
}

// Save writes the loaded scalars of o and the foreign keys of its loaded
// many-to-one edges to the row identified by o.ID(), inserting the row
// when none matched. Properties that are not loaded keep their column
// values.
func (c *Client) Save(ctx context.Context, o *graph.Object) error {
	node := o.Node()
	id := o.ID()
	if id == nil {
		return veloq.NewMutationError(node.Name, "save", errors.New("identifier is not set"))
	}
	var (
		t   = query.NewTable(node)
		upd = query.Update(t).Where(t.ID().EQ(id)).IgnoreFilters()
		ins = query.Insert(t).Set(node.ID.Name, id)
		n   int
	)
	set := func(prop string, v any) {
		upd.Set(prop, v)
		ins.Set(prop, v)
		n++
	}
	for _, p := range node.Props() {
		switch {
		case p.Field != nil && !p.Field.IsID() && !p.Field.IsFormula() && o.Has(p.Name):
			set(p.Name, o.Value(p.Name))
		case p.Edge != nil && p.Edge.OwnFK() && o.Has(p.Name):
			target, err := o.One(p.Name)
			if err != nil {
				return err
			}
			var fk any
			if target != nil {
				fk = target.ID()
			}
			set(p.Name, fk)
		case p.Edge != nil && p.Edge.OwnFK():
			if fk, ok := o.FK(p.Name); ok {
				set(p.Name, fk)
			}
		}
	}
	if n == 0 {
		return nil
	}
	affected, err := c.Exec(ctx, upd)
	if err != nil || affected > 0 {
		return err
	}
	_, err = c.Exec(ctx, ins)
	// MySQL reports unchanged rows as unaffected.
	if sql.IsUniqueConstraintError(err) && c.drv.Dialect() == dialect.MySQL {
		return nil
	}
	return err
}

var (
	_ sqlgraph.Querier       = (*Client)(nil)
	_ sqlgraph.FilterChecker = (*Client)(nil)
)
