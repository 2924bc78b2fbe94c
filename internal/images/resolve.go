package images

import (
	"html"
	"regexp"
	"strings"
)

var (
	// ![alt](path "title"); the path may be wrapped in angle brackets.
	markdownImage = regexp.MustCompile(`!\[([^\]\n]*)\]\(\s*(<[^>\n]*>|[^)\s]+)((?:\s+"[^"\n]*")?\s*)\)`)
	// ![[path]], ![[path|W]] and ![[path|WxH]].
	embedImage = regexp.MustCompile(`!\[\[([^\]|\n]+?)(?:\|(\d+)(?:x(\d+))?)?\]\]`)
)

// MatchStatus counts local image references by outcome.
type MatchStatus struct {
	Matched   int      `json:"matched"`
	Unmatched int      `json:"unmatched"`
	Missing   []string `json:"missing,omitempty"`
}

// Total returns the number of local references seen.
func (m MatchStatus) Total() int {
	return m.Matched + m.Unmatched
}

// IsLocal reports whether ref points at an uploaded file rather than a URL
// or an already embedded image.
func IsLocal(ref string) bool {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return false
	case strings.HasPrefix(strings.ToLower(ref), "data:"):
		return false
	case strings.HasPrefix(ref, "//"), strings.HasPrefix(ref, "#"):
		return false
	case strings.Contains(ref, "://"):
		return false
	case strings.HasPrefix(strings.ToLower(ref), "mailto:"):
		return false
	}
	return true
}

// ResolveReferences replaces the path of every local image reference found
// in index with its data URI. Alt text and titles are kept. References that
// do not resolve are left exactly as written.
func ResolveReferences(text string, index *Index) (string, MatchStatus) {
	var status MatchStatus
	if index == nil {
		index = NewIndex()
	}

	miss := func(ref string) {
		status.Unmatched++
		status.Missing = append(status.Missing, ref)
	}

	text = replaceSubmatches(markdownImage, text, func(m []string, whole string) string {
		ref := strings.TrimSuffix(strings.TrimPrefix(m[2], "<"), ">")
		if !IsLocal(ref) {
			return whole
		}
		img, ok := index.Lookup(ref)
		if !ok {
			miss(ref)
			return whole
		}
		status.Matched++
		return "![" + m[1] + "](" + img.DataURI + m[3] + ")"
	})

	text = replaceSubmatches(embedImage, text, func(m []string, whole string) string {
		ref := strings.TrimSpace(m[1])
		if !IsLocal(ref) {
			return whole
		}
		img, ok := index.Lookup(ref)
		if !ok {
			miss(ref)
			return whole
		}
		status.Matched++

		if m[2] == "" {
			return "![" + ref + "](" + img.DataURI + ")"
		}
		var b strings.Builder
		b.WriteString(`<img src="`)
		b.WriteString(img.DataURI)
		b.WriteString(`" alt="`)
		b.WriteString(html.EscapeString(ref))
		b.WriteString(`" width="`)
		b.WriteString(m[2])
		b.WriteString(`"`)
		if m[3] != "" {
			b.WriteString(` height="`)
			b.WriteString(m[3])
			b.WriteString(`"`)
		}
		b.WriteString(`>`)
		return b.String()
	})

	return text, status
}

// replaceSubmatches is ReplaceAllStringFunc with access to submatches.
// Unmatched optional groups are empty strings.
func replaceSubmatches(re *regexp.Regexp, text string, fn func(m []string, whole string) string) string {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, loc := range matches {
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(fn(groups, groups[0]))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
