package schema

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/logger"
)

// RuleFile is the YAML form of caller-supplied rules.
//
//	validations:
//	  - name: level_cap
//	    description: At most 500 levels
//	    required: false
//	    appliesTo: 1.0.0
//	    expr: len(doc.levels ?? []) <= 500
//	migrations:
//	  - from: 1.0.0
//	    to: 1.1.0
//	    description: Rename bestTimeSeconds
//	    required: true
//	    rename:
//	      - {path: levels, from: bestTimeSeconds, to: bestTime}
//	    set:
//	      theme: classic
//	    remove: [legacyFlag]
type RuleFile struct {
	Validations []ValidationSpec `yaml:"validations"`
	Migrations  []MigrationSpec  `yaml:"migrations"`
}

// ValidationSpec declares an expression validation.
type ValidationSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	AppliesTo   string `yaml:"appliesTo"`
	Expr        string `yaml:"expr"`
}

// RenameSpec renames one field of the object, or of every object in the
// array, found under Path. An empty Path is the root.
type RenameSpec struct {
	Path string `yaml:"path"`
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// MigrationSpec declares a migration built from renames, removals of
// top-level keys and top-level constants, applied in that order.
type MigrationSpec struct {
	From        string            `yaml:"from"`
	To          string            `yaml:"to"`
	Description string            `yaml:"description"`
	Required    bool              `yaml:"required"`
	Rename      []RenameSpec      `yaml:"rename"`
	Remove      []string          `yaml:"remove"`
	Set         map[string]string `yaml:"set"`
}

// ParseRuleFile decodes YAML rule definitions.
func ParseRuleFile(data []byte) (*RuleFile, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	return &rf, nil
}

// LoadRuleFile reads path and registers its rules.
func LoadRuleFile(r *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rule file: %w", err)
	}
	rf, err := ParseRuleFile(data)
	if err != nil {
		return err
	}
	if err := rf.Register(r); err != nil {
		return err
	}
	r.log.Info("Loaded rule file",
		logger.String("path", path),
		logger.Int("validations", len(rf.Validations)),
		logger.Int("migrations", len(rf.Migrations)))
	return nil
}

// Register adds every rule in rf to r.
func (rf *RuleFile) Register(r *Registry) error {
	for _, v := range rf.Validations {
		rule, err := ExprRule(v.Name, v.Description, v.Expr, v.Required, v.AppliesTo)
		if err != nil {
			return err
		}
		if err := r.RegisterValidation(rule); err != nil {
			return err
		}
	}
	for _, m := range rf.Migrations {
		if err := r.RegisterMigration(m.Rule()); err != nil {
			return err
		}
	}
	return nil
}

// Rule converts m into a migration rule.
func (m MigrationSpec) Rule() MigrationRule {
	renames := append([]RenameSpec(nil), m.Rename...)
	removes := append([]string(nil), m.Remove...)
	keys := make([]string, 0, len(m.Set))
	for k := range m.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	set := make(map[string]string, len(m.Set))
	for k, v := range m.Set {
		set[k] = v
	}

	return MigrationRule{
		From:        m.From,
		To:          m.To,
		Description: m.Description,
		Required:    m.Required,
		Transform: func(doc *document.Node) (*document.Node, error) {
			if !doc.IsObject() {
				return nil, fmt.Errorf("document root is a %s, not an object", doc.Kind())
			}
			for _, rn := range renames {
				RenameFields(doc, rn.Path, []FieldRename{{From: rn.From, To: rn.To}})
			}
			for _, key := range removes {
				doc.Remove(key)
			}
			for _, k := range keys {
				doc.SetString(k, set[k])
			}
			return doc, nil
		},
	}
}
