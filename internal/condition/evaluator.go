// Package condition evaluates rule condition expressions against a
// calculation context. Rule text is admin-editable data, not trusted code:
// expressions are compiled with CEL, which has no attribute access, imports
// or calls outside the declared variables and the small function allow-list.
package condition

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// Evaluator compiles condition expressions and caches the compiled programs.
// Safe for concurrent use.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]cel.Program
}

// New creates an evaluator with an empty program cache
func New() *Evaluator {
	return &Evaluator{programs: make(map[string]cel.Program)}
}

// Evaluate runs expr against ctx and reports whether the condition holds.
// An empty expression is an unconditional rule and evaluates to true.
// Identifiers absent from ctx, syntax errors and non-boolean results all
// return (false, err) so the caller can warn and skip the rule; nothing
// panics past this function.
func (e *Evaluator) Evaluate(expr string, ctx map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}

	vars := normalizeContext(ctx)
	prg, err := e.program(normalize(expr), vars)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", expr, err)
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q: result is not a boolean", expr)
	}
	return b, nil
}

// ValidateSyntax parses expr without resolving identifiers. Used at
// config write time so unparsable rules are rejected before they are
// stored; unknown identifiers are a runtime concern, not a syntax error.
func ValidateSyntax(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}
	env, err := cel.NewEnv()
	if err != nil {
		return err
	}
	if _, iss := env.Parse(normalize(expr)); iss != nil && iss.Err() != nil {
		return fmt.Errorf("condition %q: %w", expr, iss.Err())
	}
	return nil
}

// program returns a cached compiled program, compiling on first use.
// The cache key includes the context key signature because the variable
// declarations depend on which keys are present.
func (e *Evaluator) program(expr string, vars map[string]any) (cel.Program, error) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cacheKey := expr + "\x00" + strings.Join(keys, ",")

	e.mu.RLock()
	prg, ok := e.programs[cacheKey]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	opts := []cel.EnvOption{
		cel.CrossTypeNumericComparisons(true),
		absFunc, minFunc, maxFunc,
	}
	for _, k := range keys {
		opts = append(opts, cel.Variable(k, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prg, err = env.Program(ast)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[cacheKey] = prg
	e.mu.Unlock()
	return prg, nil
}

// Legacy rule text uses python-style operator spellings
var (
	reAnd   = regexp.MustCompile(`\band\b`)
	reOr    = regexp.MustCompile(`\bor\b`)
	reNot   = regexp.MustCompile(`\bnot\b`)
	reTrue  = regexp.MustCompile(`\bTrue\b`)
	reFalse = regexp.MustCompile(`\bFalse\b`)
)

func normalize(expr string) string {
	expr = reAnd.ReplaceAllString(expr, "&&")
	expr = reOr.ReplaceAllString(expr, "||")
	expr = reNot.ReplaceAllString(expr, "!")
	expr = reTrue.ReplaceAllString(expr, "true")
	expr = reFalse.ReplaceAllString(expr, "false")
	return expr
}

// normalizeContext coerces all numeric values to float64 so rule authors
// never have to care whether a measurement arrived as int or float
func normalizeContext(ctx map[string]any) map[string]any {
	vars := make(map[string]any, len(ctx))
	for k, v := range ctx {
		switch n := v.(type) {
		case int:
			vars[k] = float64(n)
		case int32:
			vars[k] = float64(n)
		case int64:
			vars[k] = float64(n)
		case float32:
			vars[k] = float64(n)
		default:
			vars[k] = v
		}
	}
	return vars
}

// Allow-listed helper functions available to rule conditions
var (
	absFunc = cel.Function("abs",
		cel.Overload("abs_double", []*cel.Type{cel.DoubleType}, cel.DoubleType,
			cel.UnaryBinding(func(v ref.Val) ref.Val {
				d, ok := v.Value().(float64)
				if !ok {
					return types.NewErr("abs: argument is not a number")
				}
				return types.Double(math.Abs(d))
			})))

	minFunc = cel.Function("min",
		cel.Overload("min_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
			cel.BinaryBinding(binaryMath(math.Min))))

	maxFunc = cel.Function("max",
		cel.Overload("max_double_double", []*cel.Type{cel.DoubleType, cel.DoubleType}, cel.DoubleType,
			cel.BinaryBinding(binaryMath(math.Max))))
)

func binaryMath(fn func(float64, float64) float64) func(ref.Val, ref.Val) ref.Val {
	return func(lhs, rhs ref.Val) ref.Val {
		a, ok := lhs.Value().(float64)
		if !ok {
			return types.NewErr("argument is not a number")
		}
		b, ok := rhs.Value().(float64)
		if !ok {
			return types.NewErr("argument is not a number")
		}
		return types.Double(fn(a, b))
	}
}
