package variables

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/expr"
)

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy("yes"))
	assert.True(t, Truthy("true"))
	assert.True(t, Truthy(" "))
	assert.True(t, Truthy("00"))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy("false"))
	assert.False(t, Truthy("0"))
}

func TestBinding(t *testing.T) {
	testCases := []struct {
		name     string
		variable Variable
		expected expr.Value
	}{
		{"number", Variable{Name: "n", Value: "12.5", Type: TypeNumber}, expr.Number(12.5)},
		{"unparsable number", Variable{Name: "n", Value: "twelve", Type: TypeNumber}, expr.String("twelve")},
		{"boolean", Variable{Name: "b", Value: "true", Type: TypeBoolean}, expr.Bool(true)},
		{"text", Variable{Name: "t", Value: "42"}, expr.String("42")},
		{"date", Variable{Name: "d", Value: "2024-01-02", Type: TypeDate}, expr.String("2024-01-02")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Binding(tc.variable))
		})
	}
}

func TestSet(t *testing.T) {
	s := NewSet(
		Variable{Name: "a", Value: "1", Type: TypeNumber, Description: "first"},
		Variable{Name: "b", Value: "x"},
	)

	assert.Equal(t, []string{"a", "b"}, s.Names())

	s.Set("a", "2")
	a, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, Variable{Name: "a", Value: "2", Type: TypeNumber, Description: "first"}, a)
	assert.Equal(t, []string{"a", "b"}, s.Names(), "update keeps position")

	s.Put(Variable{Name: "c", Value: "z"})
	assert.True(t, s.Remove("a"))
	assert.False(t, s.Remove("a"))
	assert.Equal(t, []string{"b", "c"}, s.Names())
	c, ok := s.Get("c")
	require.True(t, ok)
	assert.Equal(t, "z", c.Value)

	clone := s.Clone()
	clone.Set("b", "changed")
	b, _ := s.Get("b")
	assert.Equal(t, "x", b.Value)

	s.Replace([]Variable{{Name: "only", Value: "1"}})
	assert.Equal(t, []string{"only"}, s.Names())
	assert.False(t, s.Has("b"))
}

func TestNilSet(t *testing.T) {
	var s *Set
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Has("x"))
	assert.Nil(t, s.Names())
}

func TestDecodeList(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected []Record
	}{
		{
			name: "strict json",
			raw:  `[{"label":"A","n":1},{"label":"B","n":2.5}]`,
			expected: []Record{
				{{Key: "label", Value: "A"}, {Key: "n", Value: "1"}},
				{{Key: "label", Value: "B"}, {Key: "n", Value: "2.5"}},
			},
		},
		{
			name: "unquoted keys",
			raw:  `[{label:"A"},{label:"B"}]`,
			expected: []Record{
				{{Key: "label", Value: "A"}},
				{{Key: "label", Value: "B"}},
			},
		},
		{
			name: "field order preserved",
			raw:  `[{"z":"1","a":"2"}]`,
			expected: []Record{
				{{Key: "z", Value: "1"}, {Key: "a", Value: "2"}},
			},
		},
		{
			name: "null and bool",
			raw:  `[{"x":null,"y":true}]`,
			expected: []Record{
				{{Key: "x", Value: ""}, {Key: "y", Value: "true"}},
			},
		},
		{
			name:     "empty",
			raw:      "  ",
			expected: nil,
		},
		{
			name:     "empty array",
			raw:      "[]",
			expected: []Record{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeList(tc.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("DecodeList() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeListRejectsNonLists(t *testing.T) {
	for _, raw := range []string{`{"label":"A"}`, `["a","b"]`, `42`} {
		_, err := DecodeList(raw)
		assert.Error(t, err, raw)
	}
}

func TestEncodeListRoundTrip(t *testing.T) {
	records := []Record{
		{{Key: "label", Value: `say "hi"`}, {Key: "n", Value: "3"}},
	}
	raw, err := EncodeList(records)
	require.NoError(t, err)
	assert.Equal(t, `[{"label":"say \"hi\"","n":"3"}]`, raw)

	decoded, err := DecodeList(raw)
	require.NoError(t, err)
	assert.Equal(t, records, decoded)
}

func TestParseAssignment(t *testing.T) {
	v, err := ParseAssignment("city=Paris")
	require.NoError(t, err)
	assert.Equal(t, Variable{Name: "city", Value: "Paris"}, v)

	v, err = ParseAssignment("total:number=1=2")
	require.NoError(t, err)
	assert.Equal(t, Variable{Name: "total", Value: "1=2", Type: TypeNumber}, v)

	for _, bad := range []string{"novalue", "=x", "1abc=x", "a b=x", "x:weird=1"} {
		_, err := ParseAssignment(bad)
		assert.Error(t, err, bad)
	}
}

func TestDecodeSequence(t *testing.T) {
	data := []byte(`
- name: client
  value: Acme
  description: Billed party
- name: total
  value: "120"
  type: number
`)
	vars, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []Variable{
		{Name: "client", Value: "Acme", Description: "Billed party"},
		{Name: "total", Value: "120", Type: TypeNumber},
	}, vars)
}

func TestDecodeMapping(t *testing.T) {
	data := []byte(`
city: Paris
count: 3
paid: false
items:
  - label: A
  - label: B
`)
	vars, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, vars, 4)

	assert.Equal(t, Variable{Name: "city", Value: "Paris", Type: TypeText}, vars[0])
	assert.Equal(t, Variable{Name: "count", Value: "3", Type: TypeNumber}, vars[1])
	assert.Equal(t, Variable{Name: "paid", Value: "false", Type: TypeBoolean}, vars[2])
	assert.Equal(t, TypeList, vars[3].Type)
	assert.Equal(t, `[{"label":"A"},{"label":"B"}]`, vars[3].Value)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("just a string"))
	assert.Error(t, err)

	_, err = Decode([]byte("- name: x\n  type: nope\n"))
	assert.Error(t, err)

	vars, err := Decode(nil)
	assert.NoError(t, err)
	assert.Empty(t, vars)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars.yml")
	vars := []Variable{
		{Name: "a", Value: "1", Type: TypeNumber},
		{Name: "b", Value: "two"},
	}
	require.NoError(t, SaveFile(path, vars))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, vars, loaded)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
