// Package field provides fluent builders for declaring entity fields.
//
// Property names are camelCase; column names default to the upper snake
// case of the property name:
//
//	field.Int64("id")                   // ID
//	field.String("name")                // NAME
//	field.Time("createdAt").Nillable()  // CREATED_AT, nullable
//
// # Structured fields
//
// JSON and Other fields carry an application type and go through a codec
// (package codec) when bound as parameters and when read from rows:
//
//	field.JSON("point", Point{})
//	field.JSON("scores", map[int]int{})
//	field.Other("tags", []string{}).Codec(codec.PGStringArray())
//
// # Formulas
//
// Formula fields are rendered as SQL fragments in the select list:
//
//	field.Formula("employeeCount", field.TypeInt64,
//	    "(SELECT COUNT(*) FROM EMPLOYEE WHERE DEPARTMENT_ID = %alias.ID)")
//
// # Conversion
//
// Convert turns raw driver values into application values of a Type, and
// Check validates application values used as statement parameters.
package field
