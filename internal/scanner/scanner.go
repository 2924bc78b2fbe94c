// Package scanner discovers smart component syntax embedded in document text.
//
// Each component kind has its own detector that scans the whole text for its
// own syntax. Detectors are independent: a block that is valid syntax for two
// kinds produces two descriptors, and overlaps are left for the placeholder
// rewriter to resolve. Detectors run concurrently on large documents and the
// merged result is sorted, so scanning the same text twice always yields the
// same descriptors in the same order.
package scanner

import (
	"context"
	"sort"
	"sync"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
)

// Kind identifies a smart component.
type Kind string

const (
	KindChart    Kind = "chart"
	KindTimeline Kind = "timeline"
	KindProgress Kind = "progress"
	KindTasks    Kind = "tasks"
	KindAlert    Kind = "alert"
	KindStats    Kind = "stats"
)

// Kinds lists every component kind in detection order.
var Kinds = []Kind{KindChart, KindTimeline, KindProgress, KindTasks, KindAlert, KindStats}

// Inline reports whether the kind is written inside a line of text rather
// than as a block of its own.
func (k Kind) Inline() bool {
	return k == KindProgress
}

// Descriptor is one recognized component occurrence.
type Descriptor struct {
	Kind Kind
	// Span covers Raw in the scanned text.
	Span    errors.Span
	Raw     string
	Payload Payload
}

// ScanResult holds everything found in one scan pass.
type ScanResult struct {
	Descriptors []Descriptor
	Diagnostics []*errors.Diagnostic
}

// detector finds every occurrence of one component kind.
type detector interface {
	kind() Kind
	detect(text string) ([]Descriptor, []*errors.Diagnostic)
}

// ComponentScanner runs every detector over a text.
type ComponentScanner struct {
	detectors []detector
	logger    logging.Logger
	// parallelThreshold is the text size above which detectors run concurrently.
	parallelThreshold int
}

// Option configures a ComponentScanner.
type Option func(*ComponentScanner)

// WithLogger sets the scanner's logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *ComponentScanner) {
		s.logger = logging.OrNop(logger).WithComponent("scanner")
	}
}

// NewComponentScanner creates a scanner with every detector enabled.
func NewComponentScanner(opts ...Option) *ComponentScanner {
	s := &ComponentScanner{
		detectors: []detector{
			chartDetector{},
			timelineDetector{},
			progressDetector{},
			tasksDetector{},
			alertDetector{},
			statsDetector{},
		},
		logger:            logging.NopLogger{},
		parallelThreshold: 64 * 1024,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan finds every component occurrence in text.
func (s *ComponentScanner) Scan(text string) ScanResult {
	results := make([]ScanResult, len(s.detectors))

	// Small documents are scanned synchronously to avoid goroutine overhead.
	if len(text) < s.parallelThreshold {
		for i, d := range s.detectors {
			descs, diags := d.detect(text)
			results[i] = ScanResult{Descriptors: descs, Diagnostics: diags}
		}
	} else {
		var wg sync.WaitGroup
		for i, d := range s.detectors {
			wg.Add(1)
			go func(i int, d detector) {
				defer wg.Done()
				descs, diags := d.detect(text)
				results[i] = ScanResult{Descriptors: descs, Diagnostics: diags}
			}(i, d)
		}
		wg.Wait()
	}

	var merged ScanResult
	for _, r := range results {
		merged.Descriptors = append(merged.Descriptors, r.Descriptors...)
		merged.Diagnostics = append(merged.Diagnostics, r.Diagnostics...)
	}

	SortDescriptors(merged.Descriptors)
	sort.SliceStable(merged.Diagnostics, func(i, j int) bool {
		return spanStart(merged.Diagnostics[i]) < spanStart(merged.Diagnostics[j])
	})

	s.logger.Debug(context.Background(), "scan complete",
		"descriptors", len(merged.Descriptors),
		"diagnostics", len(merged.Diagnostics))

	return merged
}

// Scan runs a default scanner over text.
func Scan(text string) ScanResult {
	return NewComponentScanner().Scan(text)
}

// SortDescriptors orders descriptors by span start, then kind.
func SortDescriptors(descs []Descriptor) {
	sort.SliceStable(descs, func(i, j int) bool {
		if descs[i].Span.Start != descs[j].Span.Start {
			return descs[i].Span.Start < descs[j].Span.Start
		}
		return descs[i].Kind < descs[j].Kind
	})
}

func spanStart(d *errors.Diagnostic) int {
	if d.Span == nil {
		return -1
	}
	return d.Span.Start
}
