package placeholder

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/scanner"
)

func fixedNonce(n string) Option {
	return WithNonceSource(func() string { return n })
}

func TestRewriteInline(t *testing.T) {
	text := "Status [progress:42:Done] today"
	descs := scanner.Scan(text).Descriptors

	out, cm, diags := Rewrite(text, descs, fixedNonce("abcdef012345"), WithGeneration(7))

	assert.Empty(t, diags)
	assert.Equal(t, "Status FOLIOabcdef012345C0X today", out)
	require.Equal(t, 1, cm.Len())
	assert.Equal(t, uint64(7), cm.Generation())

	d, ok := cm.Get("FOLIOabcdef012345C0X")
	require.True(t, ok)
	assert.Equal(t, scanner.ProgressPayload{Value: 42, Label: "Done"}, d.Payload)
}

func TestRewriteDuplicateRawText(t *testing.T) {
	text := "[progress:5] and again [progress:5]"
	descs := scanner.Scan(text).Descriptors
	require.Len(t, descs, 2)

	out, cm, _ := Rewrite(text, descs, fixedNonce("000000000000"))

	assert.Equal(t, "FOLIO000000000000C0X and again FOLIO000000000000C1X", out)
	assert.Equal(t, []string{"FOLIO000000000000C0X", "FOLIO000000000000C1X"}, cm.Markers())
}

func TestRewriteBlockBecomesParagraph(t *testing.T) {
	text := "Intro\n```tasks\n[x] a\n```\nOutro"
	descs := scanner.Scan(text).Descriptors
	require.Len(t, descs, 1)

	out, _, _ := Rewrite(text, descs, fixedNonce("111111111111"))

	assert.Equal(t, "Intro\n\nFOLIO111111111111C0X\n\nOutro", out)
}

func TestRewriteBlockAtEdges(t *testing.T) {
	text := ":::info\nhi\n:::"
	descs := scanner.Scan(text).Descriptors

	out, _, _ := Rewrite(text, descs, fixedNonce("222222222222"))

	assert.Equal(t, "FOLIO222222222222C0X", out)
}

func TestRewriteOverlapLeftmostLongest(t *testing.T) {
	text := ":::info\n[progress:10]\n:::\n[progress:20]"
	descs := scanner.Scan(text).Descriptors
	require.Len(t, descs, 3)

	out, cm, diags := Rewrite(text, descs, fixedNonce("333333333333"))

	require.Equal(t, 2, cm.Len())
	entries := cm.Entries()
	assert.Equal(t, scanner.KindAlert, entries[0].Descriptor.Kind)
	assert.Equal(t, scanner.KindProgress, entries[1].Descriptor.Kind)
	assert.Equal(t, "FOLIO333333333333C0X\n\nFOLIO333333333333C1X", out)

	require.Len(t, diags, 1)
	assert.ErrorIs(t, diags[0], &errors.Diagnostic{Kind: errors.KindOverlappingComponent})
	assert.Equal(t, "alert", diags[0].Context["winner"])
}

func TestRewriteEqualStartPrefersLonger(t *testing.T) {
	text := "xxxxxxxxxx"
	short := scanner.Descriptor{Kind: scanner.KindProgress, Span: errors.Span{Start: 2, End: 4}, Raw: "xx"}
	long := scanner.Descriptor{Kind: scanner.KindAlert, Span: errors.Span{Start: 2, End: 8}, Raw: "xxxxxx"}

	_, cm, diags := Rewrite(text, []scanner.Descriptor{short, long}, fixedNonce("444444444444"))

	require.Equal(t, 1, cm.Len())
	assert.Equal(t, scanner.KindAlert, cm.Entries()[0].Descriptor.Kind)
	assert.Len(t, diags, 1)
}

func TestRewriteDropsStaleDescriptors(t *testing.T) {
	text := "[progress:1]"
	stale := scanner.Descriptor{Kind: scanner.KindProgress, Span: errors.Span{Start: 0, End: 12}, Raw: "[progress:2]"}
	outOfRange := scanner.Descriptor{Kind: scanner.KindProgress, Span: errors.Span{Start: 5, End: 50}, Raw: "x"}

	out, cm, diags := Rewrite(text, []scanner.Descriptor{stale, outOfRange})

	assert.Equal(t, text, out)
	assert.Equal(t, 0, cm.Len())
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.True(t, errors.Is(d, errors.KindStaleResult))
	}
}

func TestNonceAvoidsAuthorText(t *testing.T) {
	text := "FOLIOaaaaaaaaaaaa is literal [progress:3]"
	calls := 0
	next := func() string {
		calls++
		if calls == 1 {
			return "aaaaaaaaaaaa"
		}
		return "bbbbbbbbbbbb"
	}

	out, cm, _ := Rewrite(text, scanner.Scan(text).Descriptors, WithNonceSource(next))

	assert.Equal(t, "FOLIOaaaaaaaaaaaa is literal FOLIObbbbbbbbbbbbC0X", out)
	assert.Equal(t, []string{"FOLIObbbbbbbbbbbbC0X"}, cm.Markers())
}

func TestRandomMarkersAreDisjointFromText(t *testing.T) {
	text := "a [progress:1] b"

	out, cm, _ := Rewrite(text, scanner.Scan(text).Descriptors)

	marker := cm.Markers()[0]
	assert.NotContains(t, text, marker)
	assert.Equal(t, 1, strings.Count(out, marker))
	assert.Regexp(t, `^FOLIO[0-9a-f]{12}C0X$`, marker)
}

func TestRestoreRoundTrip(t *testing.T) {
	text := "Build [progress:42:Done] and\n\n```stats\nUsers|10\n```\n"
	descs := scanner.Scan(text).Descriptors

	out, cm, _ := Rewrite(text, descs)

	restored := cm.Restore(out, func(e Entry) string {
		switch p := e.Descriptor.Payload.(type) {
		case scanner.ProgressPayload:
			return fmt.Sprintf("<progress value=%d label=%s>", p.Value, p.Label)
		case scanner.StatsPayload:
			return fmt.Sprintf("<stats n=%d>", len(p.Items))
		}
		return ""
	})

	assert.Equal(t, "Build <progress value=42 label=Done> and\n\n<stats n=1>\n\n", restored)
}

func TestRestoreLeavesForeignMarkers(t *testing.T) {
	text := "[progress:1]"
	out, cm, _ := Rewrite(text, scanner.Scan(text).Descriptors, fixedNonce("555555555555"))

	foreign := out + " FOLIO555555555555C9X FOLIO999999999999C0X"
	restored := cm.Restore(foreign, func(Entry) string { return "P" })

	assert.Equal(t, "P FOLIO555555555555C9X FOLIO999999999999C0X", restored)
}

func TestNilComponentMap(t *testing.T) {
	var cm *ComponentMap
	assert.Equal(t, 0, cm.Len())
	assert.Nil(t, cm.Markers())
	assert.Equal(t, "text", cm.Restore("text", nil))
	_, ok := cm.Get("x")
	assert.False(t, ok)
}
