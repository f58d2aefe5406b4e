// Package sqlgraph loads object graphs described by a query.Fetcher.
//
// A Plan runs the root statement once, then loads each requested edge of a
// level with one IN query per batch of distinct parent keys, so the number of
// round trips depends on the fetch shape and not on the number of rows.
// Sibling edges of a level load concurrently.
//
//	p, err := sqlgraph.NewPlan(f, sqlgraph.WithBatchSize(500))
//	objs, err := p.Execute(ctx, &sqlgraph.DriverQuerier{Driver: drv}, query.From(t))
//
// Rows of the same identifier share one *graph.Object. Many-to-one targets
// requested without properties are built from foreign keys when their entity
// has neither a soft-delete marker nor a filter. Computed properties are
// evaluated after every edge of their object is loaded, dependencies first;
// NewPlan reports dependency cycles as *veloq.FetchPlanCycleError.
//
// Execute returns no objects when any statement fails.
package sqlgraph
