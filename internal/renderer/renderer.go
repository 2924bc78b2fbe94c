// Package renderer turns resolved markdown plus its component map into
// final output.
//
// Every renderer receives markdown whose smart components have been
// replaced by opaque markers. The HTML renderer converts the markdown with
// goldmark first and then splices component HTML into the marker sites; the
// terminal and markdown renderers swap markers for text before formatting.
package renderer

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/folio/internal/placeholder"
)

// Format selects a renderer.
type Format string

const (
	FormatHTML     Format = "html"
	FormatTerminal Format = "terminal"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name. "term" and "md" are accepted aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html":
		return FormatHTML, nil
	case "terminal", "term":
		return FormatTerminal, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown render format %q (want html, terminal or markdown)", s)
	}
}

// Renderer produces output for one format.
type Renderer interface {
	Render(ctx context.Context, markdown string, components *placeholder.ComponentMap) (string, error)
	Format() Format
}

// Options configures New.
type Options struct {
	// Style is the glamour style for terminal output.
	Style string
	// WordWrap is the terminal wrap width; 0 uses 80.
	WordWrap int
}

// New returns the renderer for format.
func New(format Format, opts Options) (Renderer, error) {
	switch format {
	case FormatHTML, "":
		return NewHTMLRenderer(), nil
	case FormatTerminal:
		return NewTerminalRenderer(opts.Style, opts.WordWrap)
	case FormatMarkdown:
		return NewMarkdownRenderer(), nil
	default:
		return nil, fmt.Errorf("unknown render format %q", format)
	}
}
