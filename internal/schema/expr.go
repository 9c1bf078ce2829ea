package schema

import (
	"fmt"
	"strconv"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/neogan74/savekit/internal/document"
)

// ExprEnv is the environment an expression rule is evaluated in. The
// document is exposed as "doc": objects become maps, arrays slices and
// leaves strings.
type ExprEnv struct {
	Doc any `expr:"doc"`
}

var exprFunctions = []expr.Option{
	expr.Function("num", func(params ...any) (any, error) {
		s, ok := params[0].(string)
		if !ok {
			return nil, fmt.Errorf("num: expected a string, got %T", params[0])
		}
		return strconv.ParseFloat(s, 64)
	}, new(func(any) float64)),
	expr.Function("has", func(params ...any) (any, error) {
		m, ok := params[0].(map[string]any)
		if !ok {
			return false, nil
		}
		key, ok := params[1].(string)
		if !ok {
			return nil, fmt.Errorf("has: key must be a string, got %T", params[1])
		}
		_, found := m[key]
		return found, nil
	}, new(func(any, string) bool)),
}

// CompileExpr compiles a boolean expression against ExprEnv.
func CompileExpr(expression string) (*vm.Program, error) {
	opts := append([]expr.Option{
		expr.Env(ExprEnv{}),
		expr.AsBool(),
		expr.AllowUndefinedVariables(),
	}, exprFunctions...)

	program, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	return program, nil
}

// ExprPredicate returns a predicate that evaluates expression.
func ExprPredicate(expression string) (PredicateFunc, error) {
	program, err := CompileExpr(expression)
	if err != nil {
		return nil, err
	}
	return func(doc *document.Node) (bool, error) {
		out, err := expr.Run(program, ExprEnv{Doc: document.ToNative(doc)})
		if err != nil {
			return false, err
		}
		ok, isBool := out.(bool)
		if !isBool {
			return false, fmt.Errorf("expression returned %T, not bool", out)
		}
		return ok, nil
	}, nil
}

// ExprRule builds a validation rule from an expression.
func ExprRule(name, description, expression string, required bool, appliesTo string) (ValidationRule, error) {
	pred, err := ExprPredicate(expression)
	if err != nil {
		return ValidationRule{}, fmt.Errorf("%w: %s: %v", ErrInvalidRule, name, err)
	}
	return ValidationRule{
		Name:        name,
		Description: description,
		Required:    required,
		AppliesTo:   appliesTo,
		Predicate:   pred,
	}, nil
}
