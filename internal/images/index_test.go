package images

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathVariants(t *testing.T) {
	variants := PathVariants("diagram.PNG")

	expected := []string{
		"diagram.PNG", "./diagram.PNG",
		"images/diagram.PNG", "./images/diagram.PNG",
		"img/diagram.PNG", "./img/diagram.PNG",
		"assets/diagram.PNG", "./assets/diagram.PNG",
		"media/diagram.PNG", "./media/diagram.PNG",
		"diagram.png", "./diagram.png",
		"images/diagram.png", "./images/diagram.png",
		"img/diagram.png", "./img/diagram.png",
		"assets/diagram.png", "./assets/diagram.png",
		"media/diagram.png", "./media/diagram.png",
	}
	assert.Equal(t, expected, variants)
	assert.Equal(t, variants, PathVariants("diagram.PNG"), "deterministic")
}

func TestPathVariantsEdgeCases(t *testing.T) {
	noExt := PathVariants("README")
	assert.Len(t, noExt, 10)

	spaced := PathVariants("my chart.png")
	assert.Contains(t, spaced, "my%20chart.png")
	assert.Contains(t, spaced, "./assets/my%20chart.PNG")
	assert.Len(t, spaced, 40)

	assert.Equal(t, PathVariants("x.png"), PathVariants("./x.png"))
	assert.Nil(t, PathVariants(""))

	seen := map[string]bool{}
	for _, v := range spaced {
		assert.False(t, seen[v], "duplicate %q", v)
		seen[v] = true
	}
}

func TestIndex(t *testing.T) {
	idx := NewIndex()
	first := &EmbeddedImage{Name: "a.png", DataURI: "data:image/png;base64,AA=="}
	idx.Add(first)
	idx.Add(&EmbeddedImage{Name: "b.jpg", DataURI: "data:image/jpeg;base64,AA=="})

	got, ok := idx.Lookup("./images/a.PNG")
	require.True(t, ok)
	assert.Same(t, first, got)

	replacement := &EmbeddedImage{Name: "a.png", DataURI: "data:image/png;base64,AQ=="}
	idx.Add(replacement)
	got, _ = idx.Lookup("a.png")
	assert.Same(t, replacement, got)

	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []string{"a.png", "b.jpg"}, idx.Names())
	assert.Len(t, idx.Images(), 2)

	epoch := idx.Epoch()
	idx.Reset()
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, epoch+1, idx.Epoch())
	_, ok = idx.Lookup("a.png")
	assert.False(t, ok)
}

func TestLookupUnescapes(t *testing.T) {
	idx := NewIndex()
	idx.Add(&EmbeddedImage{Name: "my chart.png", DataURI: "data:x"})

	_, ok := idx.Lookup("img/my%20chart.png")
	assert.True(t, ok)
	_, ok = idx.Lookup("my chart.png")
	assert.True(t, ok)
}

func TestResolveReferences(t *testing.T) {
	idx := NewIndex()
	idx.Add(&EmbeddedImage{Name: "diagram.PNG", DataURI: "data:image/png;base64,AA=="})

	text := strings.Join([]string{
		`![x](diagram.png)`,
		`![Alt text](./images/diagram.PNG "Figure 1")`,
		`![remote](https://example.com/a.png)`,
		`![gone](missing.png)`,
		`![[diagram.png]]`,
		`![[diagram.png|300x200]]`,
		`![[diagram.png|120]]`,
		`![[nope.png|10]]`,
		`![inline](data:image/png;base64,BB==)`,
	}, "\n")

	out, status := ResolveReferences(text, idx)

	lines := strings.Split(out, "\n")
	assert.Equal(t, `![x](data:image/png;base64,AA==)`, lines[0])
	assert.Equal(t, `![Alt text](data:image/png;base64,AA== "Figure 1")`, lines[1])
	assert.Equal(t, `![remote](https://example.com/a.png)`, lines[2])
	assert.Equal(t, `![gone](missing.png)`, lines[3])
	assert.Equal(t, `![diagram.png](data:image/png;base64,AA==)`, lines[4])
	assert.Equal(t, `<img src="data:image/png;base64,AA==" alt="diagram.png" width="300" height="200">`, lines[5])
	assert.Equal(t, `<img src="data:image/png;base64,AA==" alt="diagram.png" width="120">`, lines[6])
	assert.Equal(t, `![[nope.png|10]]`, lines[7])
	assert.Equal(t, `![inline](data:image/png;base64,BB==)`, lines[8])

	assert.Equal(t, 5, status.Matched)
	assert.Equal(t, 2, status.Unmatched)
	assert.Equal(t, []string{"missing.png", "nope.png"}, status.Missing)
	assert.Equal(t, 7, status.Total())
}

func TestResolveAngleBracketPath(t *testing.T) {
	idx := NewIndex()
	idx.Add(&EmbeddedImage{Name: "my chart.png", DataURI: "data:c"})

	out, status := ResolveReferences("![c](<my chart.png>)", idx)

	assert.Equal(t, "![c](data:c)", out)
	assert.Equal(t, 1, status.Matched)
}

func TestResolveIsStableOnResolvedText(t *testing.T) {
	idx := NewIndex()
	idx.Add(&EmbeddedImage{Name: "a.png", DataURI: "data:image/png;base64,AA=="})

	once, _ := ResolveReferences("![a](a.png)", idx)
	twice, status := ResolveReferences(once, idx)

	assert.Equal(t, once, twice)
	assert.Equal(t, 0, status.Total())
}

func TestIsLocal(t *testing.T) {
	assert.True(t, IsLocal("a.png"))
	assert.True(t, IsLocal("../a.png"))
	assert.False(t, IsLocal("http://x/a.png"))
	assert.False(t, IsLocal("//cdn/a.png"))
	assert.False(t, IsLocal("DATA:image/png;base64,AA"))
	assert.False(t, IsLocal("#anchor"))
	assert.False(t, IsLocal(""))
}
