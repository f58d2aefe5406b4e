package sql

import (
	"errors"
	"strings"

	"github.com/syssam/veloq/dialect"
)

// Builder accumulates SQL text and its positional arguments. A single
// Builder is shared by a statement and all of its nested sub-queries, so
// numbered placeholders stay sequential across scopes.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
	caps    dialect.Capabilities
	errs    []error
}

// NewBuilder returns a Builder rendering for the given dialect.
func NewBuilder(name string) *Builder {
	return &Builder{dialect: name, caps: dialect.CapabilitiesOf(name)}
}

// Dialect returns the dialect name of the builder.
func (b *Builder) Dialect() string { return b.dialect }

// Capabilities returns the capabilities of the builder dialect.
func (b *Builder) Capabilities() dialect.Capabilities { return b.caps }

// WriteString appends s to the query text.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte appends c to the query text.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Pad appends a single space.
func (b *Builder) Pad() *Builder { return b.WriteByte(' ') }

// Ident appends an identifier, quoting it only when it is not a plain
// SQL identifier.
func (b *Builder) Ident(s string) *Builder {
	switch {
	case isValidIdentifier(s):
		b.sb.WriteString(s)
	case b.dialect == dialect.MySQL:
		b.sb.WriteByte('`')
		b.sb.WriteString(strings.ReplaceAll(s, "`", "``"))
		b.sb.WriteByte('`')
	default:
		b.sb.WriteByte('"')
		b.sb.WriteString(strings.ReplaceAll(s, `"`, `""`))
		b.sb.WriteByte('"')
	}
	return b
}

// Column appends alias.column, or the bare column when alias is empty.
func (b *Builder) Column(alias, column string) *Builder {
	if alias != "" {
		b.sb.WriteString(alias)
		b.sb.WriteByte('.')
	}
	return b.Ident(column)
}

// Arg appends a placeholder bound to v.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	b.sb.WriteString(b.caps.Placeholder(len(b.args)))
	return b
}

// Args appends comma separated placeholders bound to vs.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		b.Arg(v)
	}
	return b
}

// Wrap writes f's output inside parentheses.
func (b *Builder) Wrap(f func(*Builder)) *Builder {
	b.sb.WriteByte('(')
	f(b)
	b.sb.WriteByte(')')
	return b
}

// Join calls f for each index in [0, n), separating outputs with sep.
func (b *Builder) Join(n int, sep string, f func(i int)) *Builder {
	for i := 0; i < n; i++ {
		if i > 0 {
			b.sb.WriteString(sep)
		}
		f(i)
	}
	return b
}

// AddError records an error that is returned by Query.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns the errors recorded so far.
func (b *Builder) Err() error { return errors.Join(b.errs...) }

// Len returns the current length of the query text.
func (b *Builder) Len() int { return b.sb.Len() }

// String returns the query text.
func (b *Builder) String() string { return b.sb.String() }

// Query returns the query text and its arguments.
func (b *Builder) Query() (string, []any) { return b.sb.String(), b.args }

// isValidIdentifier reports whether s can be written unquoted: a letter or
// underscore followed by letters, digits, underscores or dots.
func isValidIdentifier(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r == '.' || r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return true
}
