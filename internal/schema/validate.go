package schema

import (
	"errors"
	"fmt"

	"github.com/neogan74/savekit/internal/document"
	"github.com/neogan74/savekit/internal/logger"
	"github.com/neogan74/savekit/internal/metrics"
)

// ValidationResult collects errors, which invalidate the document, and
// advisory warnings.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NewValidationResult returns a valid, empty result.
func NewValidationResult() ValidationResult {
	return ValidationResult{IsValid: true}
}

// AddError records an error and marks the result invalid.
func (v *ValidationResult) AddError(msg string) {
	v.Errors = append(v.Errors, msg)
	v.IsValid = false
}

// AddWarning records an advisory message.
func (v *ValidationResult) AddWarning(msg string) {
	v.Warnings = append(v.Warnings, msg)
}

// Merge appends other's messages; the result is valid only if both are.
func (v *ValidationResult) Merge(other ValidationResult) {
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
	v.IsValid = v.IsValid && other.IsValid
}

// ValidateText parses text and validates the result. A parse failure is
// reported as a single error without running any rule.
func (r *Registry) ValidateText(text, version string) (ValidationResult, *document.Node) {
	doc, err := document.Parse(text)
	if err != nil {
		res := NewValidationResult()
		res.AddError(fmt.Sprintf("Document is malformed: %v", err))
		metrics.ValidationTotal.WithLabelValues("malformed").Inc()
		return res, nil
	}
	return r.Validate(doc, version), doc
}

// Validate runs every rule that applies to version against doc.
func (r *Registry) Validate(doc *document.Node, version string) ValidationResult {
	res := NewValidationResult()
	if doc == nil {
		res.AddError("Document is empty")
		metrics.ValidationTotal.WithLabelValues("malformed").Inc()
		return res
	}

	for _, rule := range r.Validations() {
		if !rule.appliesTo(version) {
			continue
		}

		ok, err := runPredicate(rule, doc)
		if ok {
			continue
		}

		msg := fmt.Sprintf("Validation rule '%s' failed: %s", rule.Name, rule.Description)
		if err != nil {
			msg = fmt.Sprintf("%s (%v)", msg, err)
		}
		if rule.Required {
			res.AddError(msg)
			metrics.ValidationRuleFailuresTotal.WithLabelValues(rule.Name, "error").Inc()
		} else {
			res.AddWarning(msg)
			metrics.ValidationRuleFailuresTotal.WithLabelValues(rule.Name, "warning").Inc()
		}
		r.log.Debug("Validation rule failed",
			logger.String("rule", rule.Name),
			logger.Bool("required", rule.Required),
			logger.String("version", version))
	}

	result := "valid"
	if !res.IsValid {
		result = "invalid"
	} else if len(res.Warnings) > 0 {
		result = "warnings"
	}
	metrics.ValidationTotal.WithLabelValues(result).Inc()
	return res
}

func runPredicate(rule ValidationRule, doc *document.Node) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok = false
			err = &RuleError{Rule: rule.Name, Err: fmt.Errorf("%v", p), Panic: true}
		}
	}()

	ok, err = rule.Predicate(doc)
	if err != nil {
		var re *RuleError
		if !errors.As(err, &re) {
			err = &RuleError{Rule: rule.Name, Err: err}
		}
		return false, err
	}
	return ok, nil
}
