package renderer

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/conneroisu/folio/internal/components"
	"github.com/conneroisu/folio/internal/placeholder"
)

const defaultWordWrap = 80

// TerminalRenderer renders ANSI-styled output through glamour.
type TerminalRenderer struct {
	term *glamour.TermRenderer
}

// NewTerminalRenderer builds a glamour renderer. An empty style picks one
// from the terminal background.
func NewTerminalRenderer(style string, wordWrap int) (*TerminalRenderer, error) {
	if wordWrap <= 0 {
		wordWrap = defaultWordWrap
	}

	styleOption := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOption = glamour.WithStandardStyle(style)
	}

	term, err := glamour.NewTermRenderer(styleOption, glamour.WithWordWrap(wordWrap))
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	return &TerminalRenderer{term: term}, nil
}

func (r *TerminalRenderer) Format() Format { return FormatTerminal }

// Render swaps markers for text renderings and formats the result. Block
// components go into code fences so glamour keeps their layout.
func (r *TerminalRenderer) Render(ctx context.Context, markdown string, cm *placeholder.ComponentMap) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text := cm.Restore(markdown, func(e placeholder.Entry) string {
		if e.Descriptor.Kind.Inline() {
			return "`" + components.Text(e.Descriptor) + "`"
		}
		return fence(components.Text(e.Descriptor))
	})

	out, err := r.term.Render(text)
	if err != nil {
		return "", fmt.Errorf("failed to render terminal output: %w", err)
	}
	return out, nil
}

// MarkdownRenderer exports portable markdown with components flattened to
// plain markdown.
type MarkdownRenderer struct{}

// NewMarkdownRenderer returns a MarkdownRenderer.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

func (r *MarkdownRenderer) Format() Format { return FormatMarkdown }

// Render replaces every marker with its markdown fallback.
func (r *MarkdownRenderer) Render(ctx context.Context, markdown string, cm *placeholder.ComponentMap) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return cm.Restore(markdown, func(e placeholder.Entry) string {
		return components.Markdown(e.Descriptor)
	}), nil
}

// Fallback restores descriptors to their original source text. It is what
// callers show when rendering fails.
func Fallback(markdown string, cm *placeholder.ComponentMap) string {
	return cm.Restore(markdown, func(e placeholder.Entry) string {
		return e.Descriptor.Raw
	})
}

func fence(body string) string {
	ticks := "```"
	for strings.Contains(body, ticks) {
		ticks += "`"
	}
	return ticks + "\n" + body + "\n" + ticks
}
