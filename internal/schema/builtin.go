package schema

import (
	"fmt"
	"math"
	"strconv"

	"github.com/neogan74/savekit/internal/document"
)

const (
	// LegacyVersion is the schema written before level fields were renamed.
	LegacyVersion = "0.9.0"
	// CurrentVersion is the schema the built-in rules describe.
	CurrentVersion = "1.0.0"

	MinStars = 0
	MaxStars = 3
)

var (
	starFields = []string{"starsAchieved"}
	timeFields = []string{"bestTimeSeconds", "completionTime"}
)

// RegisterBuiltins installs the built-in validations and the legacy
// level-field migration.
func RegisterBuiltins(r *Registry) error {
	rules := []ValidationRule{
		{
			Name:        "required_fields",
			Description: "Document must carry a version, dataVersion or saveVersion key",
			Required:    true,
			Predicate:   hasVersionKey,
		},
		{
			Name:        "level_ids_present",
			Description: "Every level must carry a levelId",
			Required:    true,
			AppliesTo:   CurrentVersion,
			Predicate:   levelIDsPresent,
		},
		{
			Name:        "unique_level_ids",
			Description: "Level IDs must be unique",
			Required:    true,
			AppliesTo:   CurrentVersion,
			Predicate:   uniqueLevelIDs,
		},
		{
			Name:        "numeric_ranges",
			Description: fmt.Sprintf("Star counts must be within %d-%d and times must be non-negative", MinStars, MaxStars),
			Required:    true,
			AppliesTo:   CurrentVersion,
			Predicate:   numericRanges,
		},
	}
	for _, rule := range rules {
		if err := r.RegisterValidation(rule); err != nil {
			return err
		}
	}

	return r.RegisterMigration(MigrationRule{
		From:        LegacyVersion,
		To:          CurrentVersion,
		Description: "Rename level fields id, stars and bestTime",
		Required:    true,
		Transform: RenameTransform("levels",
			FieldRename{From: "id", To: "levelId"},
			FieldRename{From: "stars", To: "starsAchieved"},
			FieldRename{From: "bestTime", To: "bestTimeSeconds"},
		),
	})
}

func hasVersionKey(doc *document.Node) (bool, error) {
	return document.HasVersionKey(doc), nil
}

// levels returns the levels array, or nil when the document has none.
func levels(doc *document.Node) (*document.Node, error) {
	v, ok := doc.Get("levels")
	if !ok {
		return nil, nil
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("levels is a %s, not an array", v.Kind())
	}
	return v, nil
}

func levelIDsPresent(doc *document.Node) (bool, error) {
	lv, err := levels(doc)
	if err != nil {
		return false, err
	}
	if lv == nil {
		return true, nil
	}
	for i := 0; i < lv.Len(); i++ {
		item, _ := lv.At(i)
		if _, ok := item.GetString("levelId"); !ok {
			return false, fmt.Errorf("level %d has no levelId", i)
		}
	}
	return true, nil
}

func uniqueLevelIDs(doc *document.Node) (bool, error) {
	lv, err := levels(doc)
	if err != nil {
		return false, err
	}
	if lv == nil {
		return true, nil
	}
	seen := make(map[string]int, lv.Len())
	for i := 0; i < lv.Len(); i++ {
		item, _ := lv.At(i)
		id, ok := item.GetString("levelId")
		if !ok {
			continue
		}
		if first, dup := seen[id]; dup {
			return false, fmt.Errorf("levelId %q repeated at %d and %d", id, first, i)
		}
		seen[id] = i
	}
	return true, nil
}

func numericRanges(doc *document.Node) (bool, error) {
	lv, err := levels(doc)
	if err != nil {
		return false, err
	}
	if lv == nil {
		return true, nil
	}
	for i := 0; i < lv.Len(); i++ {
		item, _ := lv.At(i)
		for _, field := range starFields {
			raw, ok := item.GetString(field)
			if !ok {
				continue
			}
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(n) {
				return false, fmt.Errorf("level %d %s %q is not a number", i, field, raw)
			}
			if n < MinStars || n > MaxStars {
				return false, fmt.Errorf("level %d %s %s out of range", i, field, raw)
			}
		}
		for _, field := range timeFields {
			raw, ok := item.GetString(field)
			if !ok {
				continue
			}
			n, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(n) {
				return false, fmt.Errorf("level %d %s %q is not a number", i, field, raw)
			}
			if n < 0 {
				return false, fmt.Errorf("level %d %s %s is negative", i, field, raw)
			}
		}
	}
	return true, nil
}
