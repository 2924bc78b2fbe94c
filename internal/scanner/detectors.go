package scanner

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/conneroisu/folio/internal/errors"
)

// fenceRegexp matches a fenced block whose info string is exactly kind. The
// first group is the body, including its trailing newline.
func fenceRegexp(kind Kind) *regexp.Regexp {
	return regexp.MustCompile("(?ms)^```" + string(kind) + "[ \\t]*\\r?\\n(.*?)^```[ \\t]*\\r?$")
}

var (
	chartFence    = fenceRegexp(KindChart)
	timelineFence = fenceRegexp(KindTimeline)
	tasksFence    = fenceRegexp(KindTasks)
	statsFence    = fenceRegexp(KindStats)

	chartPointLine = regexp.MustCompile(`^(.+?)\s*:\s*(-?\d+(?:\.\d+)?)\s*$`)
	timelineLine   = regexp.MustCompile(`^(\d{4}(?:-\d{2}(?:-\d{2})?)?)\s*:\s*(.*)$`)
	taskLine       = regexp.MustCompile(`^\s*(?:[-*+]\s+)?\[([ xX])\]\s*(.*)$`)
	progressMarker = regexp.MustCompile(`\[progress:(\d{1,3})(?::([^\]\n]*))?\]`)
	alertBlock     = regexp.MustCompile(`(?ms)^:::[ \t]*(\w+)[ \t]*([^\n]*?)[ \t]*\r?\n(.*?)^:::[ \t]*\r?$`)
)

// fenceMatch is one fenced block occurrence.
type fenceMatch struct {
	span errors.Span
	raw  string
	body string
}

func findFences(re *regexp.Regexp, text string) []fenceMatch {
	var out []fenceMatch
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, fenceMatch{
			span: errors.Span{Start: m[0], End: m[1]},
			raw:  text[m[0]:m[1]],
			body: text[m[2]:m[3]],
		})
	}
	return out
}

// bodyLines returns the trimmed, non-empty lines of a block body.
func bodyLines(body string) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

type chartDetector struct{}

func (chartDetector) kind() Kind { return KindChart }

func (chartDetector) detect(text string) ([]Descriptor, []*errors.Diagnostic) {
	var descs []Descriptor
	var diags []*errors.Diagnostic

	for _, f := range findFences(chartFence, text) {
		lines := bodyLines(f.body)
		keyword := ""
		if len(lines) > 0 {
			keyword = strings.ToLower(lines[0])
		}

		chartType := ChartType(keyword)
		switch chartType {
		case ChartBar, ChartLine, ChartPie, ChartDonut:
		default:
			diags = append(diags, errors.UnknownKeyword(errors.CodeUnknownChartType, "chart", keyword).
				WithSpan(f.span.Start, f.span.End))
			continue
		}

		payload := ChartPayload{Type: chartType, Points: []DataPoint{}}
		for _, line := range lines[1:] {
			m := chartPointLine.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			value, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			payload.Points = append(payload.Points, DataPoint{Label: m[1], Value: value})
		}

		descs = append(descs, Descriptor{Kind: KindChart, Span: f.span, Raw: f.raw, Payload: payload})
	}

	return descs, diags
}

type timelineDetector struct{}

func (timelineDetector) kind() Kind { return KindTimeline }

func (timelineDetector) detect(text string) ([]Descriptor, []*errors.Diagnostic) {
	var descs []Descriptor

	for _, f := range findFences(timelineFence, text) {
		payload := TimelinePayload{Entries: []TimelineEntry{}}
		for _, line := range bodyLines(f.body) {
			if m := timelineLine.FindStringSubmatch(line); m != nil {
				payload.Entries = append(payload.Entries, TimelineEntry{
					Date:        m[1],
					Description: strings.TrimSpace(m[2]),
				})
				continue
			}
			payload.Entries = append(payload.Entries, TimelineEntry{Description: line})
		}
		descs = append(descs, Descriptor{Kind: KindTimeline, Span: f.span, Raw: f.raw, Payload: payload})
	}

	return descs, nil
}

type progressDetector struct{}

func (progressDetector) kind() Kind { return KindProgress }

func (progressDetector) detect(text string) ([]Descriptor, []*errors.Diagnostic) {
	var descs []Descriptor

	for _, m := range progressMarker.FindAllStringSubmatchIndex(text, -1) {
		value, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil || value > 100 {
			continue
		}
		label := ""
		if m[4] >= 0 {
			label = strings.TrimSpace(text[m[4]:m[5]])
		}
		descs = append(descs, Descriptor{
			Kind:    KindProgress,
			Span:    errors.Span{Start: m[0], End: m[1]},
			Raw:     text[m[0]:m[1]],
			Payload: ProgressPayload{Value: value, Label: label},
		})
	}

	return descs, nil
}

type tasksDetector struct{}

func (tasksDetector) kind() Kind { return KindTasks }

func (tasksDetector) detect(text string) ([]Descriptor, []*errors.Diagnostic) {
	var descs []Descriptor

	for _, f := range findFences(tasksFence, text) {
		payload := TasksPayload{Items: []TaskItem{}}
		for _, line := range bodyLines(f.body) {
			m := taskLine.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			payload.Items = append(payload.Items, TaskItem{
				Label: strings.TrimSpace(m[2]),
				Done:  m[1] != " ",
			})
		}
		payload.Percent = percent(payload.Completed(), len(payload.Items))
		descs = append(descs, Descriptor{Kind: KindTasks, Span: f.span, Raw: f.raw, Payload: payload})
	}

	return descs, nil
}

// percent returns round(done/total*100), or 0 for an empty list.
func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

type alertDetector struct{}

func (alertDetector) kind() Kind { return KindAlert }

func (alertDetector) detect(text string) ([]Descriptor, []*errors.Diagnostic) {
	var descs []Descriptor
	var diags []*errors.Diagnostic

	for _, m := range alertBlock.FindAllStringSubmatchIndex(text, -1) {
		span := errors.Span{Start: m[0], End: m[1]}
		keyword := strings.ToLower(text[m[2]:m[3]])

		alertType := AlertType(keyword)
		switch alertType {
		case AlertInfo, AlertWarning, AlertError, AlertSuccess, AlertTip:
		default:
			diags = append(diags, errors.UnknownKeyword(errors.CodeUnknownAlertType, "alert", keyword).
				WithSpan(span.Start, span.End))
			continue
		}

		descs = append(descs, Descriptor{
			Kind: KindAlert,
			Span: span,
			Raw:  text[m[0]:m[1]],
			Payload: AlertPayload{
				Type:  alertType,
				Title: strings.TrimSpace(text[m[4]:m[5]]),
				Body:  strings.TrimSpace(text[m[6]:m[7]]),
			},
		})
	}

	return descs, diags
}

type statsDetector struct{}

func (statsDetector) kind() Kind { return KindStats }

func (statsDetector) detect(text string) ([]Descriptor, []*errors.Diagnostic) {
	var descs []Descriptor

	for _, f := range findFences(statsFence, text) {
		payload := StatsPayload{Items: []StatItem{}}
		for _, line := range bodyLines(f.body) {
			fields := strings.SplitN(line, "|", 4)
			for len(fields) < 4 {
				fields = append(fields, "")
			}
			for i := range fields {
				fields[i] = strings.TrimSpace(fields[i])
			}
			payload.Items = append(payload.Items, StatItem{
				Title:  fields[0],
				Value:  fields[1],
				Change: fields[2],
				Icon:   fields[3],
			})
		}
		descs = append(descs, Descriptor{Kind: KindStats, Span: f.span, Raw: f.raw, Payload: payload})
	}

	return descs, nil
}
