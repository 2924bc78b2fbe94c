package templating

import (
	"strings"

	"github.com/conneroisu/folio/internal/variables"
)

// tokenKind classifies one lexed piece of a template body.
type tokenKind int

const (
	tokText tokenKind = iota
	tokVar
	tokExpr
	tokListOpen
	tokListClose
	tokIfOpen
	tokIfClose
	tokUnlessOpen
	tokUnlessClose
)

type token struct {
	kind tokenKind
	// raw is the exact source text of the token.
	raw string
	// arg is the variable name, or the expression source for tokExpr.
	arg string
	pos int
}

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// lex splits body into a flat token stream. Anything between delimiters that
// is not a recognized tag is emitted as text.
func lex(body string) []token {
	var tokens []token
	textStart := 0
	pos := 0

	flushText := func(end int) {
		if end > textStart {
			tokens = append(tokens, token{kind: tokText, raw: body[textStart:end], pos: textStart})
		}
	}

	for pos < len(body) {
		i := strings.Index(body[pos:], openDelim)
		if i < 0 {
			break
		}
		start := pos + i

		j := strings.Index(body[start+len(openDelim):], closeDelim)
		if j < 0 {
			break
		}
		end := start + len(openDelim) + j + len(closeDelim)
		inner := body[start+len(openDelim) : end-len(closeDelim)]

		tok, ok := classify(inner)
		if !ok {
			// Not a tag: step past one brace so "{{{x}}}" still finds "{{x}}".
			pos = start + 1
			continue
		}

		flushText(start)
		tok.raw = body[start:end]
		tok.pos = start
		tokens = append(tokens, tok)
		pos = end
		textStart = end
	}

	flushText(len(body))
	return tokens
}

func classify(inner string) (token, bool) {
	trimmed := strings.TrimSpace(inner)
	if trimmed == "" || strings.Contains(trimmed, openDelim) {
		return token{}, false
	}

	switch trimmed[0] {
	case '=':
		src := strings.TrimSpace(trimmed[1:])
		if src == "" {
			return token{}, false
		}
		return token{kind: tokExpr, arg: src}, true

	case '#':
		rest := strings.TrimSpace(trimmed[1:])
		if name, ok := keywordArg(rest, "if"); ok {
			return token{kind: tokIfOpen, arg: name}, true
		}
		if name, ok := keywordArg(rest, "unless"); ok {
			return token{kind: tokUnlessOpen, arg: name}, true
		}
		if variables.ValidName(rest) {
			return token{kind: tokListOpen, arg: rest}, true
		}
		return token{}, false

	case '/':
		rest := strings.TrimSpace(trimmed[1:])
		switch rest {
		case "if":
			return token{kind: tokIfClose}, true
		case "unless":
			return token{kind: tokUnlessClose}, true
		}
		if variables.ValidName(rest) {
			return token{kind: tokListClose, arg: rest}, true
		}
		return token{}, false
	}

	if variables.ValidName(trimmed) {
		return token{kind: tokVar, arg: trimmed}, true
	}
	return token{}, false
}

// keywordArg matches "keyword name" and returns name.
func keywordArg(s, keyword string) (string, bool) {
	if !strings.HasPrefix(s, keyword) || len(s) == len(keyword) {
		return "", false
	}
	rest := s[len(keyword):]
	if rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	name := strings.TrimSpace(rest)
	if !variables.ValidName(name) {
		return "", false
	}
	return name, true
}
