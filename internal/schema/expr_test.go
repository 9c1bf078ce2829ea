package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neogan74/savekit/internal/logger"
)

func TestExprRule(t *testing.T) {
	tests := []struct {
		name string
		expr string
		doc  string
		want bool
	}{
		{"field equality", `doc.version == "1.0.0"`, `{"version":"1.0.0"}`, true},
		{"num helper", `all(doc.levels, {num(.starsAchieved) <= 3})`, `{"levels":[{"starsAchieved":"1"},{"starsAchieved":"3"}]}`, true},
		{"num helper fails", `all(doc.levels, {num(.starsAchieved) <= 3})`, `{"levels":[{"starsAchieved":"4"}]}`, false},
		{"has helper", `has(doc, "coins")`, `{"coins":"10"}`, true},
		{"has helper missing", `has(doc, "coins")`, `{"gems":"10"}`, false},
		{"length", `len(doc.levels) < 2`, `{"levels":["a","b"]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := ExprRule("r", "", tt.expr, true, "")
			require.NoError(t, err)
			ok, err := rule.Predicate(mustParse(t, tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestExprRule_Errors(t *testing.T) {
	_, err := ExprRule("broken", "", `doc.version ==`, true, "")
	assert.ErrorIs(t, err, ErrInvalidRule)

	rule, err := ExprRule("bad_num", "", `num(doc.coins) > 0`, true, "")
	require.NoError(t, err)

	r := NewRegistry(logger.NewNop())
	require.NoError(t, r.RegisterValidation(rule))
	res := r.Validate(mustParse(t, `{"coins":"many"}`), "1.0.0")
	assert.False(t, res.IsValid)
}

const sampleRules = `
validations:
  - name: level_cap
    description: At most two levels
    required: false
    appliesTo: 1.1.0
    expr: len(doc.levels) <= 2
migrations:
  - from: 1.0.0
    to: 1.1.0
    description: Shorten level time field
    required: true
    rename:
      - {path: levels, from: bestTimeSeconds, to: bestTime}
      - {path: "", from: coins, to: gold}
    remove: [legacyFlag]
    set:
      theme: classic
`

func TestRuleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	r := NewRegistry(logger.NewNop())
	require.NoError(t, LoadRuleFile(r, path))
	require.Len(t, r.Validations(), 1)
	require.Len(t, r.Migrations(), 1)

	doc := mustParse(t, `{"version":"1.0.0","coins":"5","legacyFlag":"1","levels":[{"levelId":"a","bestTimeSeconds":"9"},{"levelId":"b"},{"levelId":"c"}]}`)
	out, res := r.Migrate(doc, "1.0.0", "1.1.0")
	require.True(t, res.Success, res.Messages)

	want := mustParse(t, `{"version":"1.1.0","gold":"5","theme":"classic","levels":[{"levelId":"a","bestTime":"9"},{"levelId":"b"},{"levelId":"c"}]}`)
	assert.True(t, want.Equal(out))

	vr := r.Validate(out, "1.1.0")
	assert.True(t, vr.IsValid)
	assert.Len(t, vr.Warnings, 1)
}

func TestRuleFile_Errors(t *testing.T) {
	_, err := ParseRuleFile([]byte("validations: [: bad"))
	assert.Error(t, err)

	r := NewRegistry(logger.NewNop())
	assert.Error(t, LoadRuleFile(r, filepath.Join(t.TempDir(), "missing.yaml")))

	rf, err := ParseRuleFile([]byte("validations:\n  - name: x\n    expr: 'doc.a =='\n"))
	require.NoError(t, err)
	assert.ErrorIs(t, rf.Register(r), ErrInvalidRule)
}
