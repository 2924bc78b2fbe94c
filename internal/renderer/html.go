package renderer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/folio/internal/components"
	"github.com/conneroisu/folio/internal/placeholder"
)

// HTMLRenderer renders markdown to an HTML fragment.
type HTMLRenderer struct {
	md goldmark.Markdown
}

// NewHTMLRenderer returns a GFM renderer that passes raw HTML through, so
// sized image embeds survive.
func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

func (r *HTMLRenderer) Format() Format { return FormatHTML }

// Render converts markdown and splices component HTML into marker sites.
func (r *HTMLRenderer) Render(ctx context.Context, markdown string, cm *placeholder.ComponentMap) (string, error) {
	var opts []parser.ParseOption
	if cm.Len() > 0 {
		opts = append(opts, parser.WithContext(headingContext(cm.Pattern())))
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf, opts...); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	if cm.Len() == 0 {
		return buf.String(), nil
	}

	rendered := make(map[string]string, cm.Len())
	for _, e := range cm.Entries() {
		out, err := components.RenderHTML(ctx, e.Descriptor)
		if err != nil {
			return "", err
		}
		rendered[e.Marker] = out
	}

	return splice(buf.String(), cm, rendered)
}

// markerFreeIDs derives heading anchors with component markers removed, so
// an anchor does not change between renders.
type markerFreeIDs struct {
	parser.IDs
	markers *regexp.Regexp
}

func (ids markerFreeIDs) Generate(value []byte, kind ast.NodeKind) []byte {
	return ids.IDs.Generate(ids.markers.ReplaceAll(value, nil), kind)
}

func headingContext(markers *regexp.Regexp) parser.Context {
	ids := markerFreeIDs{IDs: parser.NewContext().IDs(), markers: markers}
	return parser.NewContext(parser.WithIDs(ids))
}

type htmlToken struct {
	typ  nethtml.TokenType
	atom atom.Atom
	raw  string
}

// splice walks the HTML token stream. A paragraph holding nothing but a
// marker is replaced by the component; markers elsewhere in text are
// replaced inline; tag attributes are never touched.
func splice(doc string, cm *placeholder.ComponentMap, rendered map[string]string) (string, error) {
	z := nethtml.NewTokenizer(strings.NewReader(doc))

	var tokens []htmlToken
	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return "", fmt.Errorf("failed to tokenize rendered html: %w", err)
			}
			break
		}
		raw := string(z.Raw())
		tok := htmlToken{typ: tt, raw: raw}
		if tt == nethtml.StartTagToken || tt == nethtml.EndTagToken {
			name, _ := z.TagName()
			tok.atom = atom.Lookup(name)
		}
		tokens = append(tokens, tok)
	}

	replace := func(e placeholder.Entry) string {
		return rendered[e.Marker]
	}

	var out strings.Builder
	out.Grow(len(doc))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if tok.typ == nethtml.StartTagToken && tok.atom == atom.P && i+2 < len(tokens) {
			text, end := tokens[i+1], tokens[i+2]
			if text.typ == nethtml.TextToken && end.typ == nethtml.EndTagToken && end.atom == atom.P {
				if block, ok := rendered[strings.TrimSpace(text.raw)]; ok {
					out.WriteString(block)
					i += 2
					continue
				}
			}
		}

		if tok.typ == nethtml.TextToken {
			out.WriteString(cm.Restore(tok.raw, replace))
			continue
		}
		out.WriteString(tok.raw)
	}

	return out.String(), nil
}
