// Package schema holds the entity metadata consumed by the query compiler
// and the fetch planner.
//
// Entities are declared with the builders of the field and edge packages,
// added to a Graph and frozen once at startup. A frozen Graph and its codec
// registry are read-only and safe for concurrent use.
//
//	g, err := schema.Build(reg,
//	    &schema.Entity{
//	        Name: "Department",
//	        ID:   field.Int64("id"),
//	        Fields: []field.Field{
//	            field.String("name"),
//	            field.Formula("employeeCount", field.TypeInt64,
//	                "(SELECT COUNT(*) FROM EMPLOYEE WHERE DEPARTMENT_ID = %alias.ID)"),
//	        },
//	        Edges:      []edge.Edge{edge.To("employees", "Employee").Ref("department")},
//	        SoftDelete: schema.SoftDeleteTime("DELETED_TIME"),
//	    },
//	    &schema.Entity{
//	        Name:       "Employee",
//	        ID:         field.Int64("id"),
//	        Fields:     []field.Field{field.String("name")},
//	        Edges:      []edge.Edge{edge.From("department", "Department")},
//	        SoftDelete: schema.SoftDeleteUUID("DELETED_UUID"),
//	    },
//	)
//
// # Naming
//
// Tables and columns default to the upper snake case of entity and
// property names (employeeCount -> EMPLOYEE_COUNT). Foreign keys default to
// the edge name followed by _ID.
//
// # Computed properties
//
// A Computed property is a pure function of other properties of the same
// entity. It is evaluated by the fetch planner after its dependencies.
//
// # Validation
//
// Validate reports errors and warnings without freezing; Freeze fails with
// the errors as *veloq.ValidationError values.
//
// # YAML
//
// LoadYAML and LoadFile read entity declarations from YAML, see File.
package schema
