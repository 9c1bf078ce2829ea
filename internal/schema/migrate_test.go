package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neogan74/savekit/internal/document"
)

func mustParse(t *testing.T, text string) *document.Node {
	t.Helper()
	doc, err := document.Parse(text)
	require.NoError(t, err)
	return doc
}

func setField(key, value string) TransformFunc {
	return func(doc *document.Node) (*document.Node, error) {
		doc.SetString(key, value)
		return doc, nil
	}
}

func failing(doc *document.Node) (*document.Node, error) {
	doc.SetString("partial", "yes")
	return nil, errors.New("boom")
}

func TestMigrate_BuiltinLegacyLevels(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, RegisterBuiltins(r))

	doc := mustParse(t, `{"levels":[{"id":"level1","stars":2,"bestTime":120.5}]}`)
	out, res := r.Migrate(doc, "0.9.0", "1.0.0")

	require.True(t, res.Success, res.Messages)
	assert.Equal(t, "0.9.0", res.FromVersion)
	assert.Equal(t, "1.0.0", res.ToVersion)
	assert.Equal(t, 1, res.Applied)

	version, ok := out.GetString("version")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", version)

	lv, ok := out.Get("levels")
	require.True(t, ok)
	level, ok := lv.At(0)
	require.True(t, ok)
	want := mustParse(t, `{"levelId":"level1","starsAchieved":"2","bestTimeSeconds":"120.5"}`)
	assert.True(t, want.Equal(level), document.MustSerialize(level))
	for _, old := range []string{"id", "stars", "bestTime"} {
		assert.False(t, level.ContainsKey(old), old)
	}

	// The input document is not modified.
	original, _ := doc.Get("levels")
	first, _ := original.At(0)
	assert.True(t, first.ContainsKey("id"))
	assert.False(t, doc.ContainsKey("version"))

	// The migrated document passes validation at the target version.
	vr := r.Validate(out, "1.0.0")
	assert.True(t, vr.IsValid, vr.Errors)
}

func TestMigrate_AlreadyAtTarget(t *testing.T) {
	called := false
	r := newTestRegistry(t, MigrationRule{
		From: "1.0.0", To: "1.1.0", Required: true,
		Transform: func(doc *document.Node) (*document.Node, error) {
			called = true
			return doc, nil
		},
	})

	doc := mustParse(t, `{"version":"1.1.0"}`)
	out, res := r.Migrate(doc, "1.1.0", "1.1.0")
	assert.True(t, res.Success)
	assert.False(t, called)
	assert.Same(t, doc, out)
}

func TestMigrate_Unreachable(t *testing.T) {
	r := newTestRegistry(t, edgeRule("1.0.0", "1.1.0"))
	doc := mustParse(t, `{"version":"1.0.0"}`)

	out, res := r.Migrate(doc, "1.0.0", "5.0.0")
	assert.True(t, res.Success)
	assert.Equal(t, "1.0.0", res.ToVersion)
	assert.Len(t, res.Messages, 1)
	v, _ := out.GetString("version")
	assert.Equal(t, "1.0.0", v)
}

func TestApplyPath_RequiredFailureAborts(t *testing.T) {
	r := newTestRegistry(t,
		MigrationRule{From: "1.0.0", To: "1.1.0", Required: true, Transform: setField("a", "1")},
		MigrationRule{From: "1.1.0", To: "1.2.0", Required: true, Transform: failing},
		MigrationRule{From: "1.2.0", To: "1.3.0", Required: true, Transform: setField("c", "3")},
	)
	doc := mustParse(t, `{"version":"1.0.0"}`)

	out, res := r.Migrate(doc, "1.0.0", "1.3.0")
	assert.False(t, res.Success)
	assert.Equal(t, "1.1.0", res.ToVersion)
	assert.Equal(t, 1, res.Applied)

	// The document from the last good step is kept, unstamped.
	a, _ := out.GetString("a")
	assert.Equal(t, "1", a)
	assert.False(t, out.ContainsKey("partial"))
	assert.False(t, out.ContainsKey("c"))
	v, _ := out.GetString("version")
	assert.Equal(t, "1.0.0", v)
}

func TestApplyPath_OptionalFailureContinuesWithUnchangedDocument(t *testing.T) {
	var seen *document.Node
	r := newTestRegistry(t,
		MigrationRule{From: "1.0.0", To: "1.1.0", Required: false, Transform: failing},
		MigrationRule{From: "1.1.0", To: "1.2.0", Required: true, Transform: func(doc *document.Node) (*document.Node, error) {
			seen = doc.Clone()
			doc.SetString("b", "2")
			return doc, nil
		}},
	)
	doc := mustParse(t, `{"version":"1.0.0"}`)

	out, res := r.Migrate(doc, "1.0.0", "1.2.0")
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Applied)
	assert.Contains(t, res.Messages[0], "Warning")

	require.NotNil(t, seen)
	assert.False(t, seen.ContainsKey("partial"))

	b, _ := out.GetString("b")
	assert.Equal(t, "2", b)
	v, _ := out.GetString("version")
	assert.Equal(t, "1.2.0", v)
}

func TestApplyPath_MissingRuleSkipped(t *testing.T) {
	r := newTestRegistry(t, MigrationRule{From: "1.0.0", To: "1.1.0", Required: true, Transform: setField("a", "1")})
	doc := mustParse(t, `{"dataVersion":"1.0.0"}`)

	out, res := r.ApplyPath(doc, []string{"1.0.0", "1.1.0", "1.2.0"})
	require.True(t, res.Success)
	assert.Len(t, res.Messages, 2)
	assert.Contains(t, res.Messages[1], "No migration rule")

	// The existing version key is reused.
	v, _ := out.GetString("dataVersion")
	assert.Equal(t, "1.2.0", v)
	assert.False(t, out.ContainsKey("version"))
}

func TestApplyPath_PanicIsRecovered(t *testing.T) {
	r := newTestRegistry(t, MigrationRule{
		From: "1.0.0", To: "1.1.0", Required: true,
		Transform: func(doc *document.Node) (*document.Node, error) {
			panic("bad transform")
		},
	})
	doc := mustParse(t, `{"version":"1.0.0"}`)

	out, res := r.Migrate(doc, "1.0.0", "1.1.0")
	assert.False(t, res.Success)
	assert.Contains(t, res.Messages[0], "panicked")
	assert.True(t, doc.Equal(out))
}

func TestApplyPath_NilResultIsFailure(t *testing.T) {
	r := newTestRegistry(t, MigrationRule{
		From: "1.0.0", To: "1.1.0", Required: true,
		Transform: func(*document.Node) (*document.Node, error) { return nil, nil },
	})
	_, res := r.Migrate(mustParse(t, `{"version":"1.0.0"}`), "1.0.0", "1.1.0")
	assert.False(t, res.Success)
}
