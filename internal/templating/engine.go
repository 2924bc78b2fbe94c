// Package templating expands variable references, list iterations,
// conditionals and computed expressions in a document body.
//
// The body is tokenized once into an ordered node stream, parsed into a tree
// and interpreted in a single walk. The walk honours a fixed evaluation
// order:
//
//  1. {{name}} yields a declared variable's raw value, whatever its type.
//     Declared variables shadow list record fields of the same name.
//  2. {{#list}}...{{/list}} repeats its body once per record of a list
//     variable; record fields resolve references that step 1 did not.
//  3. {{#if name}}...{{/if}} keeps its body only when the value is truthy.
//  4. {{#unless name}}...{{/unless}} keeps its body only when it is not.
//  5. {{= expr}} evaluates an arithmetic expression over the typed variables.
//
// A value substituted by step 1 is walked again with steps 2 to 5 active, so
// a value holding list, conditional or expression tags is expanded. Plain
// references inside it resolve only against list record fields. No failure
// aborts an expansion: the offending tag stays literal and a diagnostic is
// recorded.
package templating

import (
	"context"
	"strconv"
	"strings"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/expr"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/variables"
)

// Result is the outcome of one expansion.
type Result struct {
	Text        string
	Diagnostics []*errors.Diagnostic
}

// Engine expands template bodies.
type Engine struct {
	logger logging.Logger
}

// NewEngine creates an engine. A nil logger discards output.
func NewEngine(logger logging.Logger) *Engine {
	return &Engine{logger: logging.OrNop(logger).WithComponent("templating")}
}

// Expand expands body against vars. It never fails.
func (e *Engine) Expand(body string, vars *variables.Set) Result {
	if !strings.Contains(body, openDelim) {
		return Result{Text: body}
	}

	w := &walker{
		vars:     vars,
		bindings: vars.Bindings(),
		seen:     make(map[string]bool),
	}
	if vars == nil {
		w.vars = variables.NewSet()
	}

	var out strings.Builder
	out.Grow(len(body))
	w.walk(&out, parse(lex(body)), nil)

	for _, d := range w.diags {
		e.logger.Debug(context.Background(), d.Message, "kind", d.Kind, "code", d.Code)
	}

	return Result{Text: out.String(), Diagnostics: w.diags}
}

// Expand is a convenience wrapper around a default engine.
func Expand(body string, vars *variables.Set) Result {
	return NewEngine(nil).Expand(body, vars)
}

type walker struct {
	vars     *variables.Set
	bindings map[string]expr.Value
	diags    []*errors.Diagnostic
	// seen dedupes diagnostics raised repeatedly inside list iterations.
	seen map[string]bool
	// anchor is the reference whose substituted value is being walked.
	anchor *varNode
}

func (w *walker) report(d *errors.Diagnostic, pos, end int) {
	key := d.Code + "@" + strconv.Itoa(pos)
	if w.anchor != nil {
		key += "/" + strconv.Itoa(w.anchor.pos)
		pos, end = w.anchor.pos, w.anchor.pos+len(w.anchor.raw)
	}
	if w.seen[key] {
		return
	}
	w.seen[key] = true
	w.diags = append(w.diags, d.WithSpan(pos, end))
}

func (w *walker) walk(out *strings.Builder, nodes []node, scope variables.Record) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *textNode:
			out.WriteString(n.text)

		case *varNode:
			w.substitute(out, n, scope)

		case *exprNode:
			out.WriteString(w.evaluate(n, scope))

		case *blockNode:
			switch n.kind {
			case blockList:
				w.iterate(out, n, scope)
			case blockIf, blockUnless:
				w.conditional(out, n, scope)
			}
		}
	}
}

func (w *walker) substitute(out *strings.Builder, n *varNode, scope variables.Record) {
	if w.anchor == nil {
		if v, ok := w.vars.Get(n.name); ok {
			w.expandValue(out, n, v.Value, scope)
			return
		}
	}
	if value, ok := scope.Get(n.name); ok {
		out.WriteString(value)
		return
	}
	out.WriteString(n.raw)
}

// expandValue writes a substituted value, walking any tags it holds with
// plain substitution switched off.
func (w *walker) expandValue(out *strings.Builder, n *varNode, value string, scope variables.Record) {
	if !strings.Contains(value, openDelim) {
		out.WriteString(value)
		return
	}
	w.anchor = n
	w.walk(out, parse(lex(value)), scope)
	w.anchor = nil
}

func (w *walker) iterate(out *strings.Builder, n *blockNode, scope variables.Record) {
	v, ok := w.vars.Get(n.name)
	if !ok || v.EffectiveType() != variables.TypeList {
		w.literal(out, n, scope)
		return
	}

	records, err := variables.DecodeList(v.Value)
	if err != nil {
		w.report(errors.ListParseFailed(n.name, err), n.pos, n.pos+len(n.open))
		w.literal(out, n, scope)
		return
	}

	for _, rec := range records {
		w.walk(out, n.children, rec)
	}
}

func (w *walker) conditional(out *strings.Builder, n *blockNode, scope variables.Record) {
	v, ok := w.vars.Get(n.name)
	if !ok {
		w.report(errors.UndeclaredVariable(n.name), n.pos, n.pos+len(n.open))
		w.literal(out, n, scope)
		return
	}

	keep := variables.Truthy(v.Value)
	if n.kind == blockUnless {
		keep = !keep
	}
	if keep {
		w.walk(out, n.children, scope)
	}
}

// literal writes a block's wrapper tags verbatim around its walked body.
func (w *walker) literal(out *strings.Builder, n *blockNode, scope variables.Record) {
	out.WriteString(n.open)
	w.walk(out, n.children, scope)
	out.WriteString(n.close)
}

func (w *walker) evaluate(n *exprNode, scope variables.Record) string {
	bindings := w.bindings
	if len(scope) > 0 {
		bindings = make(map[string]expr.Value, len(w.bindings)+len(scope))
		for _, f := range scope {
			bindings[f.Key] = recordBinding(f.Value)
		}
		for k, v := range w.bindings {
			bindings[k] = v
		}
	}

	result, err := expr.Evaluate(expr.Sanitize(n.src), bindings)
	if err != nil {
		w.report(errors.ExpressionEvalFailed(n.src, err), n.pos, n.pos+len(n.raw))
		return n.raw
	}
	return result
}

// recordBinding types a record field: numeric text binds as a number.
func recordBinding(raw string) expr.Value {
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return expr.Number(f)
	}
	return expr.String(raw)
}
