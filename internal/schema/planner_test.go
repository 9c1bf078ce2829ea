package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/logger"
)

func identity(doc *document.Node) (*document.Node, error) { return doc, nil }

func edgeRule(from, to string) MigrationRule {
	return MigrationRule{From: from, To: to, Required: true, Transform: identity}
}

func newTestRegistry(t *testing.T, rules ...MigrationRule) *Registry {
	t.Helper()
	r := NewRegistry(logger.NewNop())
	for _, rule := range rules {
		require.NoError(t, r.RegisterMigration(rule))
	}
	return r
}

func TestPlanPath(t *testing.T) {
	r := newTestRegistry(t,
		edgeRule("1.0.0", "1.1.0"),
		edgeRule("1.1.0", "1.2.0"),
		edgeRule("1.2.0", "2.0.0"),
		edgeRule("1.1.0", "2.0.0"),
		edgeRule("3.0.0", "3.1.0"),
	)

	tests := []struct {
		name     string
		from, to string
		want     []string
	}{
		{"two hops", "1.0.0", "1.2.0", []string{"1.0.0", "1.1.0", "1.2.0"}},
		{"same version", "1.0.0", "1.0.0", []string{"1.0.0"}},
		{"unregistered target", "1.0.0", "9.9.9", nil},
		{"shortest wins", "1.0.0", "2.0.0", []string{"1.0.0", "1.1.0", "2.0.0"}},
		{"disconnected", "1.0.0", "3.1.0", nil},
		{"no reverse edges", "1.1.0", "1.0.0", nil},
		{"unknown source same as target", "7.0.0", "7.0.0", []string{"7.0.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.PlanPath(tt.from, tt.to))
		})
	}
}

func TestPlanPath_Cycle(t *testing.T) {
	r := newTestRegistry(t,
		edgeRule("1.0.0", "1.1.0"),
		edgeRule("1.1.0", "1.0.0"),
		edgeRule("1.1.0", "1.2.0"),
	)
	assert.Equal(t, []string{"1.0.0", "1.1.0", "1.2.0"}, r.PlanPath("1.0.0", "1.2.0"))
	assert.Nil(t, r.PlanPath("1.0.0", "2.0.0"))
}

func TestPlanPath_TieGoesToFirstRegistered(t *testing.T) {
	r := newTestRegistry(t,
		edgeRule("1.0.0", "1.5.0"),
		edgeRule("1.0.0", "1.1.0"),
		edgeRule("1.5.0", "2.0.0"),
		edgeRule("1.1.0", "2.0.0"),
	)
	assert.Equal(t, []string{"1.0.0", "1.5.0", "2.0.0"}, r.PlanPath("1.0.0", "2.0.0"))
}
