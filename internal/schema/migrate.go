package schema

import (
	"errors"
	"fmt"

	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/metrics"
)

// MigrationResult reports a migration run. ToVersion is the last version
// the document reached, which equals the target on success.
type MigrationResult struct {
	Success     bool     `json:"success"`
	FromVersion string   `json:"from_version"`
	ToVersion   string   `json:"to_version"`
	Messages    []string `json:"messages"`
	Applied     int      `json:"applied"`
}

func (m *MigrationResult) addf(format string, args ...any) {
	m.Messages = append(m.Messages, fmt.Sprintf(format, args...))
}

// Migrate plans a path from one version to another and applies it to a
// copy of doc. An already current document and an unreachable target both
// succeed and return the document unchanged.
func (r *Registry) Migrate(doc *document.Node, from, to string) (*document.Node, MigrationResult) {
	if from == to {
		metrics.MigrationsTotal.WithLabelValues("noop").Inc()
		return doc, MigrationResult{
			Success:     true,
			FromVersion: from,
			ToVersion:   to,
			Messages:    []string{fmt.Sprintf("Document already at version %s", to)},
		}
	}

	path := r.PlanPath(from, to)
	if len(path) == 0 {
		metrics.MigrationsTotal.WithLabelValues("unreachable").Inc()
		r.log.Info("No migration path found, proceeding without transform",
			logger.String("from", from),
			logger.String("to", to))
		return doc, MigrationResult{
			Success:     true,
			FromVersion: from,
			ToVersion:   from,
			Messages:    []string{fmt.Sprintf("No migration path from %s to %s", from, to)},
		}
	}

	return r.ApplyPath(doc, path)
}

// ApplyPath runs the rule for each consecutive pair of versions in path.
// Steps without a rule are skipped. A failing required rule aborts and
// keeps the document produced so far. A failing optional rule is skipped
// and the next step runs against the unchanged document. After a path
// that did not abort, the last version in path is stamped on the result.
func (r *Registry) ApplyPath(doc *document.Node, path []string) (*document.Node, MigrationResult) {
	res := MigrationResult{Success: true}
	if len(path) == 0 {
		return doc, res
	}
	res.FromVersion = path[0]
	res.ToVersion = path[0]
	if len(path) == 1 {
		return doc, res
	}

	current := doc.Clone()
	for i := 0; i+1 < len(path); i++ {
		from, to := path[i], path[i+1]
		rule, ok := r.Migration(from, to)
		if !ok {
			res.addf("No migration rule for %s -> %s, skipped", from, to)
			res.ToVersion = to
			continue
		}

		next, err := runTransform(rule, current)
		if err != nil {
			metrics.MigrationStepsTotal.WithLabelValues("failed").Inc()
			if rule.Required {
				res.Success = false
				res.addf("Required migration %s -> %s failed: %v", from, to, err)
				r.log.Error("Required migration failed, aborting",
					logger.String("from", from),
					logger.String("to", to),
					logger.Error(err))
				metrics.MigrationsTotal.WithLabelValues("failed").Inc()
				return current, res
			}
			res.addf("Warning: optional migration %s -> %s failed and was skipped: %v", from, to, err)
			r.log.Warn("Optional migration failed, continuing",
				logger.String("from", from),
				logger.String("to", to),
				logger.Error(err))
			res.ToVersion = to
			continue
		}

		current = next
		res.ToVersion = to
		res.Applied++
		res.addf("Migrated %s -> %s: %s", from, to, rule.Description)
		metrics.MigrationStepsTotal.WithLabelValues("applied").Inc()
		r.log.Info("Applied migration",
			logger.String("from", from),
			logger.String("to", to))
	}

	target := path[len(path)-1]
	if current.IsObject() {
		document.SetVersion(current, target)
	}
	res.ToVersion = target
	metrics.MigrationsTotal.WithLabelValues("success").Inc()
	return current, res
}

func runTransform(rule MigrationRule, doc *document.Node) (out *document.Node, err error) {
	name := rule.From + "->" + rule.To
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = &RuleError{Rule: name, Err: fmt.Errorf("%v", p), Panic: true}
		}
	}()

	out, err = rule.Transform(doc.Clone())
	if err != nil {
		return nil, &RuleError{Rule: name, Err: err}
	}
	if out == nil {
		return nil, &RuleError{Rule: name, Err: errors.New("transform returned no document")}
	}
	return out, nil
}
