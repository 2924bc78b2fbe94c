package templating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/variables"
)

func TestExpand(t *testing.T) {
	testCases := []struct {
		name     string
		vars     []variables.Variable
		body     string
		expected string
	}{
		{
			name:     "plain substitution",
			vars:     []variables.Variable{{Name: "city", Value: "Paris"}},
			body:     "Hello {{city}}!",
			expected: "Hello Paris!",
		},
		{
			name:     "substitution ignores type",
			vars:     []variables.Variable{{Name: "n", Value: "007", Type: variables.TypeNumber}},
			body:     "{{n}}",
			expected: "007",
		},
		{
			name:     "spaces inside braces",
			vars:     []variables.Variable{{Name: "city", Value: "Paris"}},
			body:     "{{ city }}",
			expected: "Paris",
		},
		{
			name: "list iteration",
			vars: []variables.Variable{
				{Name: "items", Value: `[{label:"A"},{label:"B"}]`, Type: variables.TypeList},
			},
			body:     "{{#items}}-{{label}}\n{{/items}}",
			expected: "-A\n-B\n",
		},
		{
			name: "declared variable shadows record field",
			vars: []variables.Variable{
				{Name: "label", Value: "fixed"},
				{Name: "items", Value: `[{"label":"A"}]`, Type: variables.TypeList},
			},
			body:     "{{#items}}{{label}}{{/items}}",
			expected: "fixed",
		},
		{
			name: "empty list drops region",
			vars: []variables.Variable{
				{Name: "items", Value: `[]`, Type: variables.TypeList},
			},
			body:     "a{{#items}}x{{/items}}b",
			expected: "ab",
		},
		{
			name:     "falsy conditional",
			vars:     []variables.Variable{{Name: "flag", Value: "false"}},
			body:     "{{#if flag}}X{{/if}}Y",
			expected: "Y",
		},
		{
			name:     "zero is falsy",
			vars:     []variables.Variable{{Name: "flag", Value: "0"}},
			body:     "{{#if flag}}X{{/if}}Y",
			expected: "Y",
		},
		{
			name:     "truthy conditional",
			vars:     []variables.Variable{{Name: "flag", Value: "yes"}},
			body:     "{{#if flag}}X{{/if}}Y",
			expected: "XY",
		},
		{
			name:     "unless keeps on falsy",
			vars:     []variables.Variable{{Name: "paid", Value: ""}},
			body:     "{{#unless paid}}Due{{/unless}}",
			expected: "Due",
		},
		{
			name:     "unless drops on truthy",
			vars:     []variables.Variable{{Name: "paid", Value: "true"}},
			body:     "{{#unless paid}}Due{{/unless}}.",
			expected: ".",
		},
		{
			name:     "same variable agrees everywhere",
			vars:     []variables.Variable{{Name: "f", Value: "1"}},
			body:     "{{#if f}}a{{/if}}-{{#if f}}b{{/if}}-{{#unless f}}c{{/unless}}",
			expected: "a-b-",
		},
		{
			name: "nested blocks",
			vars: []variables.Variable{
				{Name: "show", Value: "true"},
				{Name: "rows", Value: `[{"n":"1"},{"n":"2"}]`, Type: variables.TypeList},
			},
			body:     "{{#if show}}[{{#rows}}{{n}},{{/rows}}]{{/if}}",
			expected: "[1,2,]",
		},
		{
			name: "expression over typed bindings",
			vars: []variables.Variable{
				{Name: "price", Value: "19.5", Type: variables.TypeNumber},
				{Name: "qty", Value: "4", Type: variables.TypeNumber},
			},
			body:     "Total: {{= price * qty}}",
			expected: "Total: 78",
		},
		{
			name: "expression inside iteration sees record fields",
			vars: []variables.Variable{
				{Name: "rate", Value: "2", Type: variables.TypeNumber},
				{Name: "lines", Value: `[{"h":3},{"h":5}]`, Type: variables.TypeList},
			},
			body:     "{{#lines}}{{= h * rate}} {{/lines}}",
			expected: "6 10 ",
		},
		{
			name:     "unknown reference stays literal",
			body:     "Dear {{name}},",
			expected: "Dear {{name}},",
		},
		{
			name:     "non-tag braces stay literal",
			vars:     []variables.Variable{{Name: "x", Value: "1"}},
			body:     "{{ not a tag }} {{{x}}}",
			expected: "{{ not a tag }} {1}",
		},
		{
			name:     "references inside substituted values stay literal",
			vars:     []variables.Variable{{Name: "a", Value: "{{b}}"}, {Name: "b", Value: "boom"}},
			body:     "{{a}}",
			expected: "{{b}}",
		},
		{
			name:     "unclosed block stays literal",
			vars:     []variables.Variable{{Name: "flag", Value: "false"}, {Name: "x", Value: "1"}},
			body:     "{{#if flag}}a{{x}}",
			expected: "{{#if flag}}a1",
		},
		{
			name:     "stray closer stays literal",
			vars:     []variables.Variable{{Name: "x", Value: "1"}},
			body:     "{{x}}{{/if}}",
			expected: "1{{/if}}",
		},
		{
			name:     "block section over non-list stays literal",
			vars:     []variables.Variable{{Name: "t", Value: "v"}},
			body:     "{{#t}}{{t}}{{/t}}",
			expected: "{{#t}}v{{/t}}",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := Expand(tc.body, variables.NewSet(tc.vars...))
			assert.Equal(t, tc.expected, result.Text)
		})
	}
}

func TestExpandListParseFailure(t *testing.T) {
	vars := variables.NewSet(
		variables.Variable{Name: "items", Value: `{"label":"A"}`, Type: variables.TypeList},
		variables.Variable{Name: "who", Value: "me"},
	)

	result := Expand("{{#items}}{{who}}{{/items}}", vars)

	assert.Equal(t, "{{#items}}me{{/items}}", result.Text)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, errors.KindListParseFailed, result.Diagnostics[0].Kind)
	assert.Equal(t, &errors.Span{Start: 0, End: 10}, result.Diagnostics[0].Span)
}

func TestExpandExpressionFailure(t *testing.T) {
	vars := variables.NewSet(variables.Variable{Name: "n", Value: "0", Type: variables.TypeNumber})

	result := Expand("a {{= 10 / n}} b {{= nope + 1}}", vars)

	assert.Equal(t, "a {{= 10 / n}} b {{= nope + 1}}", result.Text)
	require.Len(t, result.Diagnostics, 2)
	for _, d := range result.Diagnostics {
		assert.ErrorIs(t, d, errors.ErrExpressionEvalFailed)
	}
}

func TestExpandExpressionIsSanitized(t *testing.T) {
	vars := variables.NewSet(variables.Variable{Name: "n", Value: "3", Type: variables.TypeNumber})

	result := Expand("{{= n; * 2}}", vars)

	assert.Equal(t, "6", result.Text)
	assert.Empty(t, result.Diagnostics)
}

func TestExpandUndeclaredConditional(t *testing.T) {
	vars := variables.NewSet(variables.Variable{Name: "x", Value: "1"})

	result := Expand("{{#if ghost}}body {{x}}{{/if}} {{#unless ghost}}u{{/unless}}", vars)

	assert.Equal(t, "{{#if ghost}}body 1{{/if}} {{#unless ghost}}u{{/unless}}", result.Text)
	require.Len(t, result.Diagnostics, 2)
	for _, d := range result.Diagnostics {
		assert.Equal(t, errors.KindUndeclaredVariable, d.Kind)
	}
}

func TestExpandDedupesDiagnosticsAcrossIterations(t *testing.T) {
	vars := variables.NewSet(
		variables.Variable{Name: "rows", Value: `[{"a":"1"},{"a":"2"},{"a":"3"}]`, Type: variables.TypeList},
	)

	result := Expand("{{#rows}}{{= a / 0}}{{/rows}}", vars)

	assert.Equal(t, "{{= a / 0}}{{= a / 0}}{{= a / 0}}", result.Text)
	assert.Len(t, result.Diagnostics, 1)
}

func TestExpandIdempotentOnResolvedText(t *testing.T) {
	vars := variables.NewSet(
		variables.Variable{Name: "city", Value: "Paris"},
		variables.Variable{Name: "flag", Value: "true"},
	)

	first := Expand("Hello {{city}}{{#if flag}}!{{/if}}", vars)
	second := Expand(first.Text, vars)

	assert.Equal(t, "Hello Paris!", first.Text)
	assert.Equal(t, first.Text, second.Text)
}

func TestExpandWalksSubstitutedValues(t *testing.T) {
	testCases := []struct {
		name     string
		vars     []variables.Variable
		body     string
		expected string
	}{
		{
			name: "conditional inside a value",
			vars: []variables.Variable{
				{Name: "tmpl", Value: "{{#if flag}}inner{{/if}}"},
				{Name: "flag", Value: "false"},
			},
			body:     "[{{tmpl}}]",
			expected: "[]",
		},
		{
			name: "unless inside a value",
			vars: []variables.Variable{
				{Name: "tmpl", Value: "{{#unless flag}}shown{{/unless}}"},
				{Name: "flag", Value: "0"},
			},
			body:     "{{tmpl}}",
			expected: "shown",
		},
		{
			name: "expression inside a value",
			vars: []variables.Variable{
				{Name: "total", Value: "{{= n * 2}}"},
				{Name: "n", Value: "4", Type: variables.TypeNumber},
			},
			body:     "total: {{total}}",
			expected: "total: 8",
		},
		{
			name: "list inside a value",
			vars: []variables.Variable{
				{Name: "rows", Value: "{{#items}}- {{label}}\n{{/items}}"},
				{Name: "items", Value: `[{"label":"a"},{"label":"b"}]`, Type: variables.TypeList},
			},
			body:     "{{rows}}",
			expected: "- a\n- b\n",
		},
		{
			name: "value inside a list body sees record fields",
			vars: []variables.Variable{
				{Name: "line", Value: "<{{label}}>"},
				{Name: "items", Value: `[{"label":"a"},{"label":"b"}]`, Type: variables.TypeList},
			},
			body:     "{{#items}}{{line}}{{/items}}",
			expected: "<a><b>",
		},
		{
			name: "self reference does not recurse",
			vars: []variables.Variable{{Name: "loop", Value: "x{{loop}}"}},
			body:     "{{loop}}",
			expected: "x{{loop}}",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := Expand(tc.body, variables.NewSet(tc.vars...))
			assert.Equal(t, tc.expected, result.Text)
			assert.Empty(t, result.Diagnostics)
		})
	}
}

func TestExpandValueDiagnosticsPointAtReference(t *testing.T) {
	vars := variables.NewSet(variables.Variable{Name: "bad", Value: "{{= 1 / 0}}"})

	result := Expand("ab {{bad}}", vars)

	assert.Equal(t, "ab {{= 1 / 0}}", result.Text)
	require.Len(t, result.Diagnostics, 1)
	assert.ErrorIs(t, result.Diagnostics[0], errors.ErrExpressionEvalFailed)
	require.NotNil(t, result.Diagnostics[0].Span)
	assert.Equal(t, errors.Span{Start: 3, End: 10}, *result.Diagnostics[0].Span)
}

func TestExpandNilVariables(t *testing.T) {
	result := Expand("{{a}} {{= 1 + 1}}", nil)
	assert.Equal(t, "{{a}} 2", result.Text)
}

func TestLex(t *testing.T) {
	tokens := lex("a{{x}}b{{#if y}}{{/if}}{{= 1+2 }}{{/z}}")

	kinds := make([]tokenKind, len(tokens))
	for i, tok := range tokens {
		kinds[i] = tok.kind
	}
	assert.Equal(t, []tokenKind{tokText, tokVar, tokText, tokIfOpen, tokIfClose, tokExpr, tokListClose}, kinds)
	assert.Equal(t, "1+2", tokens[5].arg)
	assert.Equal(t, 1, tokens[1].pos)
}
