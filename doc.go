// Package veloq is an object-relational query engine.
//
// A caller describes statements with typed table handles (package query),
// compiles them to SQL text plus bound parameters, runs them through a
// dialect.Driver and reconstructs rows into nested object graphs (package
// graph). Associations requested by a fetch shape are loaded level by level
// with one batched IN query per association (package dialect/sql/sqlgraph),
// so the number of round trips depends on the shape and not on the row count.
//
// # Packages
//
//   - schema, schema/field, schema/edge: entity metadata
//   - codec: scalar codecs for structured columns
//   - query: table references, compilation context, expressions, statements
//   - dialect, dialect/sql: execution bridge over database/sql
//   - dialect/sql/sqlgraph: fetch planner
//   - graph: reconstructed objects and their canonical JSON form
//   - privacy: query and mutation policies
//   - client: glue that compiles, authorizes, executes and caches
//
// # Quick Start
//
//	g := schema.MustBuild(nil,
//	    &schema.Entity{
//	        Name:       "Department",
//	        ID:         field.Int64("id"),
//	        Fields:     []field.Field{field.String("name")},
//	        Edges:      []edge.Edge{edge.To("employees", "Employee").Ref("department")},
//	        SoftDelete: schema.SoftDeleteTime("DELETED_TIME"),
//	    },
//	    &schema.Entity{
//	        Name:   "Employee",
//	        ID:     field.Int64("id"),
//	        Fields: []field.Field{field.String("name")},
//	        Edges:  []edge.Edge{edge.From("department", "Department")},
//	    },
//	)
//	c, err := client.Open(cfg, g)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	dept := c.Table("Department")
//	objs, err := c.Fetch(ctx, query.From(dept).Where(dept.C("name").EQ("Market")),
//	    query.NewFetcher(g.MustNode("Department")).AllScalars().AddEdge("employees", nil))
//
// Errors returned by every package are typed and live in this package.
package veloq
