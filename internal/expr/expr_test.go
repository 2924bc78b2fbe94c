package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	bindings := map[string]Value{
		"price":   Number(19.5),
		"qty":     Number(4),
		"paid":    Bool(true),
		"city":    String("Paris"),
		"zero":    Number(0),
		"under_s": Number(2),
	}

	testCases := []struct {
		name     string
		expr     string
		expected string
	}{
		{"integer arithmetic", "1 + 2 * 3", "7"},
		{"parentheses", "(1 + 2) * 3", "9"},
		{"left associative subtraction", "10 - 4 - 3", "3"},
		{"left associative division", "100 / 10 / 5", "2"},
		{"fractional result", "7 / 2", "3.5"},
		{"bound numbers", "price * qty", "78"},
		{"unary minus", "-qty + 1", "-3"},
		{"double unary", "- -qty", "4"},
		{"boolean coerces", "paid + 1", "2"},
		{"string concatenation", "city + 2024", "Paris2024"},
		{"number then string", "qty + city", "4Paris"},
		{"underscore identifier", "under_s * under_s", "4"},
		{"decimal literal", "0.25 * 4", "1"},
		{"whitespace only padding", "  3  ", "3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.expr, bindings)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	bindings := map[string]Value{
		"zero": Number(0),
		"name": String("x"),
	}

	testCases := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"dangling operator", "1 +"},
		{"unbalanced open", "(1 + 2"},
		{"unbalanced close", "1 + 2)"},
		{"unknown identifier", "missing * 2"},
		{"division by zero", "4 / zero"},
		{"string multiplication", "name * 2"},
		{"adjacent operands", "1 2"},
		{"bad character", "1 % 2"},
		{"string negation", "-name"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Evaluate(tc.expr, bindings)
			require.Error(t, err)
			var evalErr *EvalError
			assert.True(t, errors.As(err, &evalErr))
		})
	}
}

func TestSanitize(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"a + b", "a + b"},
		{"price*1.2", "price*12"},
		{"alert('x'); 1+1", "alert(x) 1+1"},
		{"qty;\n\tdrop", "qtydrop"},
		{"(a_b - 3) / 2", "(a_b - 3) / 2"},
		{"window.location", "windowlocation"},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.expected, Sanitize(tc.in))
		})
	}
}

func TestSanitizeDropsDecimalPoint(t *testing.T) {
	bindings := map[string]Value{"n": Number(3), "rate": Number(2.5)}

	got, err := Evaluate(Sanitize("n * 2.5"), bindings)
	require.NoError(t, err)
	assert.Equal(t, "75", got)

	got, err = Evaluate(Sanitize("n * rate"), bindings)
	require.NoError(t, err)
	assert.Equal(t, "7.5", got)
}

func TestValueFormat(t *testing.T) {
	assert.Equal(t, "6", Number(6).Format())
	assert.Equal(t, "-2.5", Number(-2.5).Format())
	assert.Equal(t, "0.1", Number(0.1).Format())
	assert.Equal(t, "true", Bool(true).Format())
	assert.Equal(t, "hi", String("hi").Format())
}
