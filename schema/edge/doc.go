// Package edge provides fluent builders for declaring associations between
// entities.
//
// # Edge Types
//
//   - edge.To: the foreign key lives on the target table
//   - edge.From: the foreign key lives on the declaring table
//
// # Relationship Cardinality
//
//	// One-to-Many: Department has many Employees
//	edge.To("employees", "Employee").Ref("department")
//
//	// One-to-One: User has one Profile, PROFILE.USER_ID references USER
//	edge.To("profile", "Profile").Unique()
//
//	// Many-to-One: Employee belongs to Department
//	edge.From("department", "Department").Ref("employees")
//
//	// Many-to-Many through a link table
//	edge.To("authors", "Author").Through("BOOK_AUTHOR_MAPPING", "BOOK_ID", "AUTHOR_ID")
//
// # Foreign Keys
//
// Without Column, the foreign key of a From edge is the upper snake case of
// the edge name followed by _ID (department -> DEPARTMENT_ID). A To edge
// takes the column of the From edge named by Ref, or the upper snake case
// of the declaring entity followed by _ID.
package edge
