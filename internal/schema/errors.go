package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidVersion is returned for a tag that is not MAJOR.MINOR.PATCH.
	ErrInvalidVersion = errors.New("invalid version tag")

	// ErrInvalidRule is returned when a rule lacks its identity or function.
	ErrInvalidRule = errors.New("invalid rule")
)

// RuleError wraps a failure raised while running a caller-supplied rule,
// including a recovered panic.
type RuleError struct {
	Rule  string
	Err   error
	Panic bool
}

func (e *RuleError) Error() string {
	if e.Panic {
		return fmt.Sprintf("rule %s panicked: %v", e.Rule, e.Err)
	}
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// IsRuleError checks if an error is a RuleError
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}
