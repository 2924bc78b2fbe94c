// Package placeholder replaces scanned component spans with opaque markers
// and keeps the marker to descriptor map that renderers use to splice live
// component output back in.
package placeholder

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/scanner"
)

// markerPrefix starts every marker. Markers are plain alphanumerics so that
// markdown renderers pass them through untouched.
const markerPrefix = "FOLIO"

// Entry pairs a marker with the descriptor it stands for.
type Entry struct {
	Marker     string
	Descriptor scanner.Descriptor
}

// ComponentMap is the immutable marker to descriptor map produced by one
// Rewrite call.
type ComponentMap struct {
	nonce      string
	generation uint64
	entries    []Entry
	byMarker   map[string]int
	pattern    *regexp.Regexp
}

// Get returns the descriptor for marker.
func (m *ComponentMap) Get(marker string) (scanner.Descriptor, bool) {
	if m == nil {
		return scanner.Descriptor{}, false
	}
	i, ok := m.byMarker[marker]
	if !ok {
		return scanner.Descriptor{}, false
	}
	return m.entries[i].Descriptor, true
}

// Markers returns every marker in text order.
func (m *ComponentMap) Markers() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Marker
	}
	return out
}

// Entries returns a copy of the entries in text order.
func (m *ComponentMap) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of markers.
func (m *ComponentMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Generation returns the pipeline generation the map was built for.
func (m *ComponentMap) Generation() uint64 {
	if m == nil {
		return 0
	}
	return m.generation
}

// Pattern returns a regexp matching this map's markers. The first group is
// the entry index.
func (m *ComponentMap) Pattern() *regexp.Regexp {
	if m == nil {
		return nil
	}
	return m.pattern
}

// Restore replaces every marker in text with render's output for its entry.
// Markers from other maps are left alone.
func (m *ComponentMap) Restore(text string, render func(Entry) string) string {
	if m.Len() == 0 {
		return text
	}
	return m.pattern.ReplaceAllStringFunc(text, func(marker string) string {
		i, ok := m.byMarker[marker]
		if !ok {
			return marker
		}
		return render(m.entries[i])
	})
}

// Option configures a Rewrite call.
type Option func(*options)

type options struct {
	generation uint64
	nonce      func() string
}

// WithGeneration stamps the resulting map with a pipeline generation.
func WithGeneration(gen uint64) Option {
	return func(o *options) { o.generation = gen }
}

// WithNonceSource overrides nonce generation.
func WithNonceSource(next func() string) Option {
	return func(o *options) { o.nonce = next }
}

func randomNonce() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:12]
}

// Rewrite replaces each descriptor's span in text with a fresh marker.
//
// Spans are spliced directly by offset, so identical raw text appearing
// twice is handled per occurrence. Overlapping descriptors are resolved
// leftmost-longest: the earliest start wins and, on a tie, the longer span;
// losers are dropped with a diagnostic. Descriptors whose span no longer
// matches the text are dropped as stale.
func Rewrite(text string, descs []scanner.Descriptor, opts ...Option) (string, *ComponentMap, []*errors.Diagnostic) {
	o := options{nonce: randomNonce}
	for _, opt := range opts {
		opt(&o)
	}

	nonce := o.nonce()
	for attempts := 0; strings.Contains(text, markerPrefix+nonce); attempts++ {
		if attempts > 16 {
			nonce = randomNonce()
		} else {
			nonce = o.nonce()
		}
	}

	cm := &ComponentMap{
		nonce:      nonce,
		generation: o.generation,
		byMarker:   make(map[string]int),
		pattern:    regexp.MustCompile(markerPrefix + regexp.QuoteMeta(nonce) + `C(\d+)X`),
	}

	kept, diags := selectDescriptors(text, descs)
	if len(kept) == 0 {
		return text, cm, diags
	}

	var b strings.Builder
	b.Grow(len(text) + len(kept)*32)
	last := 0
	for i, d := range kept {
		marker := markerPrefix + nonce + "C" + strconv.Itoa(i) + "X"

		b.WriteString(text[last:d.Span.Start])
		if d.Kind.Inline() {
			b.WriteString(marker)
		} else {
			b.WriteString(paragraphBreak(text[:d.Span.Start], true))
			b.WriteString(marker)
			b.WriteString(paragraphBreak(text[d.Span.End:], false))
		}
		last = d.Span.End

		cm.byMarker[marker] = len(cm.entries)
		cm.entries = append(cm.entries, Entry{Marker: marker, Descriptor: d})
	}
	b.WriteString(text[last:])

	return b.String(), cm, diags
}

// selectDescriptors orders descriptors and drops overlapping or stale ones.
func selectDescriptors(text string, descs []scanner.Descriptor) ([]scanner.Descriptor, []*errors.Diagnostic) {
	sorted := make([]scanner.Descriptor, len(descs))
	copy(sorted, descs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Span, sorted[j].Span
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Len() > b.Len()
	})

	var kept []scanner.Descriptor
	var diags []*errors.Diagnostic
	lastEnd := 0
	var winner scanner.Kind

	for i := range sorted {
		d := sorted[i]
		if d.Span.Start < 0 || d.Span.End > len(text) || d.Span.Start > d.Span.End ||
			text[d.Span.Start:d.Span.End] != d.Raw {
			diags = append(diags, errors.New(errors.KindStaleResult, errors.CodeStaleResult,
				fmt.Sprintf("%s component span no longer matches the text", d.Kind)).
				WithSpan(d.Span.Start, d.Span.End))
			continue
		}

		if len(kept) > 0 && d.Span.Start < lastEnd {
			diags = append(diags, errors.New(errors.KindOverlappingComponent, errors.CodeOverlap,
				fmt.Sprintf("%s component overlaps %s component", d.Kind, winner)).
				WithSpan(d.Span.Start, d.Span.End).
				WithContext("winner", string(winner)))
			continue
		}

		kept = append(kept, d)
		winner = d.Kind
		lastEnd = d.Span.End
	}

	return kept, diags
}

// paragraphBreak returns the newlines needed to separate a block marker from
// the neighbouring text so it forms a paragraph of its own.
func paragraphBreak(neighbour string, before bool) string {
	if neighbour == "" {
		return ""
	}
	newlines := 0
	if before {
		for i := len(neighbour) - 1; i >= 0 && neighbour[i] == '\n' && newlines < 2; i-- {
			newlines++
		}
	} else {
		for i := 0; i < len(neighbour) && neighbour[i] == '\n' && newlines < 2; i++ {
			newlines++
		}
	}
	return strings.Repeat("\n", 2-newlines)
}
