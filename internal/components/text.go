package components

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/conneroisu/folio/internal/scanner"
)

const barWidth = 20

// Text renders a descriptor as plain text for terminal output. Inline kinds
// produce a single line.
func Text(d scanner.Descriptor) string {
	switch p := d.Payload.(type) {
	case scanner.ChartPayload:
		return chartText(p)
	case scanner.TimelinePayload:
		lines := make([]string, 0, len(p.Entries))
		for _, e := range p.Entries {
			if e.Date == "" {
				lines = append(lines, "• "+e.Description)
				continue
			}
			lines = append(lines, fmt.Sprintf("• %s  %s", e.Date, e.Description))
		}
		return strings.Join(lines, "\n")
	case scanner.ProgressPayload:
		return progressText(p)
	case scanner.TasksPayload:
		lines := []string{fmt.Sprintf("Tasks %d/%d (%d%%)", p.Completed(), len(p.Items), p.Percent)}
		for _, item := range p.Items {
			box := "[ ]"
			if item.Done {
				box = "[x]"
			}
			lines = append(lines, box+" "+item.Label)
		}
		return strings.Join(lines, "\n")
	case scanner.AlertPayload:
		head := strings.ToUpper(string(p.Type))
		if p.Title != "" {
			head += ": " + p.Title
		}
		body := strings.TrimSpace(p.Body)
		if body == "" {
			return head
		}
		return head + "\n" + body
	case scanner.StatsPayload:
		lines := make([]string, 0, len(p.Items))
		for _, s := range p.Items {
			line := s.Title + ": " + s.Value
			if s.Icon != "" {
				line = s.Icon + " " + line
			}
			if s.Change != "" {
				line += " (" + s.Change + ")"
			}
			lines = append(lines, line)
		}
		return strings.Join(lines, "\n")
	default:
		return d.Raw
	}
}

func chartText(p scanner.ChartPayload) string {
	lines := []string{Title(string(p.Type)) + " chart"}
	if len(p.Points) == 0 {
		return lines[0] + "\n(no data)"
	}

	labelWidth := 0
	for _, pt := range p.Points {
		if n := utf8.RuneCountInString(pt.Label); n > labelWidth {
			labelWidth = n
		}
	}

	scale := p.Max()
	suffix := ""
	if p.Type == scanner.ChartPie || p.Type == scanner.ChartDonut {
		scale = p.Total()
		suffix = "%"
	}

	for _, pt := range p.Points {
		n := 0
		if scale > 0 && pt.Value > 0 {
			n = int(pt.Value / scale * barWidth)
		}
		value := formatNumber(pt.Value)
		if suffix != "" && scale > 0 {
			value = fmt.Sprintf("%s (%.0f%s)", value, pt.Value/scale*100, suffix)
		}
		pad := strings.Repeat(" ", labelWidth-utf8.RuneCountInString(pt.Label))
		lines = append(lines, fmt.Sprintf("%s%s │%s %s", pt.Label, pad, strings.Repeat("█", n), value))
	}
	return strings.Join(lines, "\n")
}

func progressText(p scanner.ProgressPayload) string {
	filled := p.Value * 10 / 100
	s := fmt.Sprintf("[%s%s] %d%%", strings.Repeat("█", filled), strings.Repeat("░", 10-filled), p.Value)
	if p.Label != "" {
		s += " " + p.Label
	}
	return s
}

// Markdown renders a descriptor as portable markdown for export.
func Markdown(d scanner.Descriptor) string {
	switch p := d.Payload.(type) {
	case scanner.ProgressPayload:
		return "`" + progressText(p) + "`"
	case scanner.TasksPayload:
		lines := make([]string, 0, len(p.Items))
		for _, item := range p.Items {
			box := "[ ]"
			if item.Done {
				box = "[x]"
			}
			lines = append(lines, "- "+box+" "+item.Label)
		}
		return strings.Join(lines, "\n")
	case scanner.AlertPayload:
		title := p.Title
		if title == "" {
			title = Title(string(p.Type))
		}
		lines := []string{"> **" + title + "**"}
		if body := strings.TrimSpace(p.Body); body != "" {
			lines = append(lines, ">")
			for _, line := range strings.Split(body, "\n") {
				lines = append(lines, strings.TrimRight("> "+line, " "))
			}
		}
		return strings.Join(lines, "\n")
	case scanner.TimelinePayload:
		lines := make([]string, 0, len(p.Entries))
		for _, e := range p.Entries {
			if e.Date == "" {
				lines = append(lines, "- "+e.Description)
				continue
			}
			lines = append(lines, "- **"+e.Date+"** "+e.Description)
		}
		return strings.Join(lines, "\n")
	case scanner.StatsPayload:
		lines := []string{"| Metric | Value | Change |", "|---|---|---|"}
		for _, s := range p.Items {
			title := s.Title
			if s.Icon != "" {
				title = s.Icon + " " + title
			}
			lines = append(lines, fmt.Sprintf("| %s | %s | %s |", title, s.Value, s.Change))
		}
		return strings.Join(lines, "\n")
	default:
		return "```text\n" + Text(d) + "\n```"
	}
}
