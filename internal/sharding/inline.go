package sharding

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/roach88/sluice/internal/algo"
	"github.com/roach88/sluice/internal/ir"
)

const (
	propExpression = "algorithm-expression"
	propAllowRange = "allow-range-query-with-inline-sharding"
)

// expression is a compiled CEL program that names a target.
type expression struct {
	source string
	prg    cel.Program
}

// compileExpression compiles src with each of vars bound as a dynamic value.
// Inline templates such as t_order_${order_id % 2} are rewritten to CEL
// string concatenation first.
func compileExpression(src string, vars ...string) (*expression, error) {
	translated, err := translateTemplate(src)
	if err != nil {
		return nil, ir.NewConfigError(propExpression, "%v", err)
	}

	opts := make([]cel.EnvOption, 0, len(vars))
	for _, v := range vars {
		opts = append(opts, cel.Variable(v, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, ir.NewConfigError(propExpression, "environment: %v", err)
	}

	ast, iss := env.Compile(translated)
	if iss != nil && iss.Err() != nil {
		return nil, ir.NewConfigError(propExpression, "compile %q: %v", src, iss.Err())
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.StringType) && !out.IsExactType(cel.DynType) {
		return nil, ir.NewConfigError(propExpression, "%q yields %s, want string", src, out)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, ir.NewConfigError(propExpression, "program %q: %v", src, err)
	}
	return &expression{source: src, prg: prg}, nil
}

// eval runs the program and returns the target name it produced.
func (e *expression) eval(bindings map[string]any) (string, error) {
	out, _, err := e.prg.Eval(bindings)
	if err != nil {
		return "", ir.NewRoutingError(ir.ReasonInvalidShardingValue, "evaluate %q: %v", e.source, err)
	}
	name, ok := out.Value().(string)
	if !ok {
		return "", ir.NewRoutingError(ir.ReasonInvalidShardingValue, "%q produced %T, want string", e.source, out.Value())
	}
	return name, nil
}

// translateTemplate turns "prefix_${expr}" into "prefix_" + string(expr).
// Sources without ${ are returned unchanged as plain CEL.
func translateTemplate(src string) (string, error) {
	if !strings.Contains(src, "${") {
		return src, nil
	}
	var parts []string
	rest := src
	for rest != "" {
		start := strings.Index(rest, "${")
		if start < 0 {
			parts = append(parts, strconv.Quote(rest))
			break
		}
		if start > 0 {
			parts = append(parts, strconv.Quote(rest[:start]))
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return "", fmt.Errorf("unterminated ${ in %q", src)
		}
		inner := strings.TrimSpace(rest[start+2 : start+end])
		if inner == "" {
			return "", fmt.Errorf("empty ${} in %q", src)
		}
		parts = append(parts, "string("+inner+")")
		rest = rest[start+end+1:]
	}
	return strings.Join(parts, " + "), nil
}

// inline evaluates an expression over a single sharding column.
type inline struct {
	base
	column     string
	expr       *expression
	allowRange bool
}

func (*inline) Type() string { return "INLINE" }

func (a *inline) Init(props algo.Props) error {
	column, err := props.Require("sharding-column")
	if err != nil {
		return err
	}
	src, err := props.Require(propExpression)
	if err != nil {
		return err
	}
	expr, err := compileExpression(src, column)
	if err != nil {
		return err
	}
	allow, err := props.Bool(propAllowRange, false)
	if err != nil {
		return err
	}
	a.column, a.expr, a.allowRange = column, expr, allow
	return nil
}

func (a *inline) RoutePrecise(_ []string, column string, value ir.IRValue) (string, error) {
	name, err := a.expr.eval(map[string]any{a.column: ir.Native(value)})
	if err != nil {
		return "", ir.Annotate(err, "", column, a.Type())
	}
	return name, nil
}

func (a *inline) RouteRange(targets []string, column string, r Range) ([]string, error) {
	if !a.allowRange {
		e := ir.NewRoutingError(ir.ReasonRangeNotSupported, "range %s cannot be routed by an inline expression", r)
		e.Column = column
		e.Algorithm = a.Type()
		e.Property = propAllowRange
		return nil, e
	}
	return clone(targets), nil
}

// complexInline evaluates an expression over several sharding columns.
type complexInline struct {
	base
	columns    []string
	expr       *expression
	allowRange bool
}

func (*complexInline) Type() string { return "COMPLEX_INLINE" }

func (a *complexInline) Init(props algo.Props) error {
	columns, err := props.StringList("sharding-columns")
	if err != nil {
		return err
	}
	src, err := props.Require(propExpression)
	if err != nil {
		return err
	}
	expr, err := compileExpression(src, columns...)
	if err != nil {
		return err
	}
	allow, err := props.Bool(propAllowRange, false)
	if err != nil {
		return err
	}
	a.columns, a.expr, a.allowRange = columns, expr, allow
	return nil
}

func (a *complexInline) Columns() []string {
	return append([]string(nil), a.columns...)
}

// RouteComplex evaluates the expression over the cartesian product of the
// per-column values. A column without values broadcasts.
func (a *complexInline) RouteComplex(targets []string, columns []ColumnValues) ([]string, error) {
	values := make([][]ir.IRValue, len(a.columns))
	for i, name := range a.columns {
		var cv *ColumnValues
		for j := range columns {
			if strings.EqualFold(columns[j].Column, name) && !columns[j].empty() {
				cv = &columns[j]
				break
			}
		}
		if cv == nil {
			return clone(targets), nil
		}
		if len(cv.Values) == 0 {
			if !a.allowRange {
				e := ir.NewRoutingError(ir.ReasonRangeNotSupported, "range %s cannot be routed by an inline expression", *cv.Range)
				e.Column = name
				e.Algorithm = a.Type()
				e.Property = propAllowRange
				return nil, e
			}
			return clone(targets), nil
		}
		values[i] = cv.Values
	}

	var picked []string
	bindings := make(map[string]any, len(a.columns))
	var walk func(depth int) error
	walk = func(depth int) error {
		if depth == len(a.columns) {
			name, err := a.expr.eval(bindings)
			if err != nil {
				return ir.Annotate(err, "", strings.Join(a.columns, ","), a.Type())
			}
			picked = append(picked, name)
			return nil
		}
		for _, v := range values[depth] {
			bindings[a.columns[depth]] = ir.Native(v)
			if err := walk(depth + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}
	return picked, nil
}

// hintInline evaluates an expression over a hint value bound as "value".
type hintInline struct {
	base
	expr *expression
}

func (*hintInline) Type() string { return "HINT_INLINE" }

func (a *hintInline) Init(props algo.Props) error {
	src, ok := props.Get(propExpression)
	if !ok || strings.TrimSpace(src) == "" {
		src = "${value}"
	}
	expr, err := compileExpression(strings.TrimSpace(src), "value")
	if err != nil {
		return err
	}
	a.expr = expr
	return nil
}

func (a *hintInline) RouteHint(_ []string, value ir.IRValue) (string, error) {
	name, err := a.expr.eval(map[string]any{"value": ir.Native(value)})
	if err != nil {
		return "", ir.Annotate(err, "", "", a.Type())
	}
	return name, nil
}
