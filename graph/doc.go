// Package graph holds the objects the fetch planner reconstructs from rows.
//
// An Object carries the loaded subset of its entity's properties. Objects
// reached through several parents are shared, so a graph may contain the
// same instance more than once:
//
//	for _, d := range depts {
//	    emps, _ := d.Edge("employees")
//	    for _, e := range emps {
//	        name, _ := e.Get("name")
//	        fmt.Println(name)
//	    }
//	}
//
// The JSON form follows the declared property order of the entity and omits
// properties that were not requested.
package graph
