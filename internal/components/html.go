// Package components renders scanned smart component descriptors into live
// output: templ components for HTML documents and plain text for terminals
// and markdown export.
package components

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/folio/internal/scanner"
)

// Title capitalizes a keyword for display. A Caser holds state, so each
// call builds its own.
func Title(s string) string {
	return cases.Title(language.English).String(s)
}

// htmlWriter remembers the first write error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) printf(format string, args ...any) {
	h.raw(fmt.Sprintf(format, args...))
}

// HTML returns the templ component for a descriptor.
func HTML(d scanner.Descriptor) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		switch p := d.Payload.(type) {
		case scanner.ChartPayload:
			chartHTML(h, p)
		case scanner.TimelinePayload:
			timelineHTML(h, p)
		case scanner.ProgressPayload:
			progressHTML(h, p)
		case scanner.TasksPayload:
			tasksHTML(h, p)
		case scanner.AlertPayload:
			alertHTML(h, p)
		case scanner.StatsPayload:
			statsHTML(h, p)
		default:
			h.raw(`<pre class="folio-raw">`)
			h.text(d.Raw)
			h.raw(`</pre>`)
		}
		return h.err
	})
}

// RenderHTML renders a descriptor to a string.
func RenderHTML(ctx context.Context, d scanner.Descriptor) (string, error) {
	var buf bytes.Buffer
	if err := HTML(d).Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("failed to render %s component: %w", d.Kind, err)
	}
	return buf.String(), nil
}

func chartHTML(h *htmlWriter, p scanner.ChartPayload) {
	h.printf(`<figure class="folio-chart folio-chart-%s">`, templ.EscapeString(string(p.Type)))
	h.printf(`<figcaption>%s chart</figcaption>`, templ.EscapeString(Title(string(p.Type))))

	if len(p.Points) == 0 {
		h.raw(`<p class="folio-empty">No data</p></figure>`)
		return
	}

	switch p.Type {
	case scanner.ChartPie, scanner.ChartDonut:
		total := p.Total()
		h.raw(`<ul class="folio-chart-slices">`)
		for _, pt := range p.Points {
			share := 0.0
			if total > 0 {
				share = pt.Value / total * 100
			}
			h.printf(`<li style="--share:%.1f%%"><span class="label">`, share)
			h.text(pt.Label)
			h.printf(`</span> <span class="value">%s (%.0f%%)</span></li>`, formatNumber(pt.Value), share)
		}
		h.raw(`</ul>`)
	case scanner.ChartLine:
		h.raw(lineSVG(p))
	default:
		peak := p.Max()
		h.raw(`<div class="folio-chart-bars">`)
		for _, pt := range p.Points {
			width := 0.0
			if peak > 0 && pt.Value > 0 {
				width = pt.Value / peak * 100
			}
			h.raw(`<div class="folio-bar"><span class="label">`)
			h.text(pt.Label)
			h.printf(`</span><span class="bar" style="width:%.1f%%"></span><span class="value">%s</span></div>`,
				width, formatNumber(pt.Value))
		}
		h.raw(`</div>`)
	}
	h.raw(`</figure>`)
}

func lineSVG(p scanner.ChartPayload) string {
	const width, height = 300.0, 100.0

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, pt := range p.Points {
		lo = math.Min(lo, pt.Value)
		hi = math.Max(hi, pt.Value)
	}
	spread := hi - lo
	if spread == 0 {
		spread = 1
	}

	points := make([]string, len(p.Points))
	for i, pt := range p.Points {
		x := 0.0
		if len(p.Points) > 1 {
			x = float64(i) / float64(len(p.Points)-1) * width
		}
		y := height - (pt.Value-lo)/spread*height
		points[i] = fmt.Sprintf("%.1f,%.1f", x, y)
	}

	return fmt.Sprintf(`<svg viewBox="0 0 %.0f %.0f" class="folio-line"><polyline fill="none" stroke="currentColor" points="%s"/></svg>`,
		width, height, strings.Join(points, " "))
}

func timelineHTML(h *htmlWriter, p scanner.TimelinePayload) {
	h.raw(`<ol class="folio-timeline">`)
	for _, e := range p.Entries {
		h.raw(`<li>`)
		if e.Date != "" {
			h.raw(`<time>`)
			h.text(e.Date)
			h.raw(`</time> `)
		}
		h.text(e.Description)
		h.raw(`</li>`)
	}
	h.raw(`</ol>`)
}

func progressHTML(h *htmlWriter, p scanner.ProgressPayload) {
	h.printf(`<span class="folio-progress"><progress max="100" value="%d"></progress> %d%%`, p.Value, p.Value)
	if p.Label != "" {
		h.raw(` `)
		h.text(p.Label)
	}
	h.raw(`</span>`)
}

func tasksHTML(h *htmlWriter, p scanner.TasksPayload) {
	h.printf(`<div class="folio-tasks"><p class="folio-tasks-summary">%d/%d done (%d%%)</p><ul>`,
		p.Completed(), len(p.Items), p.Percent)
	for _, item := range p.Items {
		if item.Done {
			h.raw(`<li class="done"><input type="checkbox" checked disabled> `)
		} else {
			h.raw(`<li><input type="checkbox" disabled> `)
		}
		h.text(item.Label)
		h.raw(`</li>`)
	}
	h.raw(`</ul></div>`)
}

func alertHTML(h *htmlWriter, p scanner.AlertPayload) {
	h.printf(`<aside class="folio-alert folio-alert-%s" role="note">`, templ.EscapeString(string(p.Type)))
	title := p.Title
	if title == "" {
		title = Title(string(p.Type))
	}
	h.raw(`<strong>`)
	h.text(title)
	h.raw(`</strong>`)
	for _, para := range strings.Split(strings.TrimSpace(p.Body), "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		h.raw(`<p>`)
		h.text(strings.TrimSpace(para))
		h.raw(`</p>`)
	}
	h.raw(`</aside>`)
}

func statsHTML(h *htmlWriter, p scanner.StatsPayload) {
	h.raw(`<div class="folio-stats">`)
	for _, s := range p.Items {
		h.raw(`<div class="folio-stat">`)
		if s.Icon != "" {
			h.raw(`<span class="icon">`)
			h.text(s.Icon)
			h.raw(`</span>`)
		}
		h.raw(`<span class="title">`)
		h.text(s.Title)
		h.raw(`</span><span class="value">`)
		h.text(s.Value)
		h.raw(`</span>`)
		if s.Change != "" {
			h.printf(`<span class="change %s">`, changeClass(s.Change))
			h.text(s.Change)
			h.raw(`</span>`)
		}
		h.raw(`</div>`)
	}
	h.raw(`</div>`)
}

func changeClass(change string) string {
	switch {
	case strings.HasPrefix(change, "+"):
		return "up"
	case strings.HasPrefix(change, "-"):
		return "down"
	default:
		return "flat"
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
