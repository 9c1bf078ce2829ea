package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/logger"
)

func builtinRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(logger.NewNop())
	require.NoError(t, RegisterBuiltins(r))
	return r
}

func TestValidate_Builtins(t *testing.T) {
	r := builtinRegistry(t)

	tests := []struct {
		name    string
		doc     string
		version string
		valid   bool
		rule    string
	}{
		{"valid current", `{"version":"1.0.0","levels":[{"levelId":"a","starsAchieved":"3","bestTimeSeconds":"10"}]}`, "1.0.0", true, ""},
		{"no levels", `{"saveVersion":"1.0.0"}`, "1.0.0", true, ""},
		{"missing version key", `{"levels":[]}`, "1.0.0", false, "required_fields"},
		{"missing level id", `{"version":"1.0.0","levels":[{"starsAchieved":"1"}]}`, "1.0.0", false, "level_ids_present"},
		{"duplicate level id", `{"version":"1.0.0","levels":[{"levelId":"a"},{"levelId":"a"}]}`, "1.0.0", false, "unique_level_ids"},
		{"stars out of range", `{"version":"1.0.0","levels":[{"levelId":"a","starsAchieved":5}]}`, "1.0.0", false, "numeric_ranges"},
		{"stars not numeric", `{"version":"1.0.0","levels":[{"levelId":"a","starsAchieved":"lots"}]}`, "1.0.0", false, "numeric_ranges"},
		{"negative time", `{"version":"1.0.0","levels":[{"levelId":"a","completionTime":"-1"}]}`, "1.0.0", false, "numeric_ranges"},
		{"levels not an array", `{"version":"1.0.0","levels":"none"}`, "1.0.0", false, "level_ids_present"},
		{"legacy shape at legacy version", `{"version":"0.9.0","levels":[{"id":"a","stars":"9"}]}`, "0.9.0", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, doc := r.ValidateText(tt.doc, tt.version)
			require.NotNil(t, doc)
			assert.Equal(t, tt.valid, res.IsValid, res.Errors)
			if tt.rule != "" {
				require.NotEmpty(t, res.Errors)
				assert.Contains(t, res.Errors[0], tt.rule)
			}
		})
	}
}

func TestValidateText_MalformedShortCircuits(t *testing.T) {
	r := builtinRegistry(t)
	res, doc := r.ValidateText(`{"version":"1.0.0"`, "1.0.0")
	assert.Nil(t, doc)
	assert.False(t, res.IsValid)
	assert.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "malformed")
}

func TestValidate_WarningsDoNotInvalidate(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	require.NoError(t, r.RegisterValidation(ValidationRule{
		Name:      "advisory",
		Predicate: func(*document.Node) (bool, error) { return false, nil },
	}))
	require.NoError(t, r.RegisterValidation(ValidationRule{
		Name:      "advisory_error",
		Predicate: func(*document.Node) (bool, error) { return true, errors.New("unreadable") },
	}))

	res := r.Validate(document.NewObject(), "1.0.0")
	assert.True(t, res.IsValid)
	assert.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[1], "unreadable")
	assert.Empty(t, res.Errors)
}

func TestValidate_PanickingPredicate(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	require.NoError(t, r.RegisterValidation(ValidationRule{
		Name:     "explodes",
		Required: true,
		Predicate: func(doc *document.Node) (bool, error) {
			var items []string
			return items[3] == "", nil
		},
	}))

	res := r.Validate(document.NewObject(), "1.0.0")
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors[0], "panicked")
}

func TestValidate_AppliesToVersion(t *testing.T) {
	r := NewRegistry(logger.NewNop())
	require.NoError(t, r.RegisterValidation(ValidationRule{
		Name:      "only_two",
		Required:  true,
		AppliesTo: "2.0.0",
		Predicate: func(*document.Node) (bool, error) { return false, nil },
	}))

	assert.True(t, r.Validate(document.NewObject(), "1.0.0").IsValid)
	assert.False(t, r.Validate(document.NewObject(), "2.0.0").IsValid)
}

func TestValidate_NilDocument(t *testing.T) {
	res := builtinRegistry(t).Validate(nil, "1.0.0")
	assert.False(t, res.IsValid)
	assert.Len(t, res.Errors, 1)
}

func TestValidationResult_Merge(t *testing.T) {
	a := NewValidationResult()
	a.AddWarning("w1")
	b := NewValidationResult()
	b.AddError("e1")

	a.Merge(b)
	assert.False(t, a.IsValid)
	assert.Equal(t, []string{"e1"}, a.Errors)
	assert.Equal(t, []string{"w1"}, a.Warnings)
}
