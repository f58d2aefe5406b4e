package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilitiesOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		dialect   string
		rowValues bool
		ph        string
	}{
		{"Postgres", Postgres, true, "$3"},
		{"MySQL", MySQL, true, "?"},
		{"SQLite", SQLite, false, "?"},
		{"Unknown", "oracle", false, "?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := CapabilitiesOf(tt.dialect)
			assert.Equal(t, tt.rowValues, c.RowValues)
			assert.Equal(t, tt.ph, c.Placeholder(3))
		})
	}
}
