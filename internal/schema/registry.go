// Package schema holds migration and validation rules for save documents,
// plans version-to-version migration paths and evaluates validations.
package schema

import (
	"fmt"
	"sync"

	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/logger"
)

// TransformFunc rewrites a document from one schema version to the next.
// It receives a private copy and may mutate and return it.
type TransformFunc func(doc *document.Node) (*document.Node, error)

// PredicateFunc reports whether a document satisfies a rule. A returned
// error counts as a failed check.
type PredicateFunc func(doc *document.Node) (bool, error)

// MigrationRule transforms documents between two versions. The pair
// (From, To) identifies the rule.
type MigrationRule struct {
	From        string
	To          string
	Description string
	Required    bool
	Transform   TransformFunc
}

// ValidationRule is a named check. An empty AppliesTo applies to every
// version.
type ValidationRule struct {
	Name        string
	Description string
	Required    bool
	AppliesTo   string
	Predicate   PredicateFunc
}

func (r ValidationRule) appliesTo(version string) bool {
	return r.AppliesTo == "" || r.AppliesTo == version
}

type edge struct {
	from, to string
}

// Registry stores rules keyed by identity, in registration order.
type Registry struct {
	mu          sync.RWMutex
	migrations  map[edge]MigrationRule
	edges       []edge
	validations map[string]ValidationRule
	names       []string
	sealed      bool
	log         logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Registry{
		migrations:  make(map[edge]MigrationRule),
		validations: make(map[string]ValidationRule),
		log:         log.WithFields(logger.String("component", "schema")),
	}
}

// RegisterMigration adds rule, replacing any rule for the same pair.
func (r *Registry) RegisterMigration(rule MigrationRule) error {
	if rule.Transform == nil {
		return fmt.Errorf("%w: migration %s -> %s has no transform", ErrInvalidRule, rule.From, rule.To)
	}
	if !ValidVersion(rule.From) || !ValidVersion(rule.To) {
		return fmt.Errorf("%w: migration %q -> %q", ErrInvalidVersion, rule.From, rule.To)
	}
	if rule.From == rule.To {
		return fmt.Errorf("%w: migration %s maps a version onto itself", ErrInvalidRule, rule.From)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := edge{rule.From, rule.To}
	if _, exists := r.migrations[key]; !exists {
		r.edges = append(r.edges, key)
	} else {
		r.log.Debug("Replacing migration rule",
			logger.String("from", rule.From),
			logger.String("to", rule.To))
	}
	r.migrations[key] = rule
	return nil
}

// RegisterValidation adds rule, replacing any rule with the same name.
func (r *Registry) RegisterValidation(rule ValidationRule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: validation rule has no name", ErrInvalidRule)
	}
	if rule.Predicate == nil {
		return fmt.Errorf("%w: validation %s has no predicate", ErrInvalidRule, rule.Name)
	}
	if rule.AppliesTo != "" && !ValidVersion(rule.AppliesTo) {
		return fmt.Errorf("%w: validation %s applies to %q", ErrInvalidVersion, rule.Name, rule.AppliesTo)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.validations[rule.Name]; !exists {
		r.names = append(r.names, rule.Name)
	}
	r.validations[rule.Name] = rule
	return nil
}

// Migration returns the rule registered for from -> to.
func (r *Registry) Migration(from, to string) (MigrationRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.migrations[edge{from, to}]
	return rule, ok
}

// Migrations returns all migration rules in registration order.
func (r *Registry) Migrations() []MigrationRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MigrationRule, 0, len(r.edges))
	for _, e := range r.edges {
		out = append(out, r.migrations[e])
	}
	return out
}

// Validations returns all validation rules in registration order.
func (r *Registry) Validations() []ValidationRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ValidationRule, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.validations[name])
	}
	return out
}

// Versions returns every version that appears in a migration rule, sorted.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	seen := make(map[string]struct{})
	var out []string
	for _, e := range r.edges {
		for _, v := range []string{e.from, e.to} {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	r.mu.RUnlock()
	SortVersions(out)
	return out
}

// Seal marks initialization complete. Rules registered afterwards are
// still accepted.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sealed {
		r.sealed = true
		r.log.Info("Schema registry sealed",
			logger.Int("migrations", len(r.edges)),
			logger.Int("validations", len(r.names)))
	}
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
