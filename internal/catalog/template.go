// Package catalog provides the document templates a session can start from:
// a fixed set of built-ins shipped with the binary plus user templates saved
// to the key-value store.
package catalog

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/folio/internal/variables"
)

// UserPrefix marks templates saved by the user.
const UserPrefix = "user-"

// Template is a reusable document body with its default variables.
type Template struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Category    string               `yaml:"category,omitempty"`
	Description string               `yaml:"description,omitempty"`
	Variables   []variables.Variable `yaml:"variables,omitempty"`
	Body        string               `yaml:"-"`
}

// BuiltIn reports whether the template ships with folio.
func (t *Template) BuiltIn() bool {
	return !strings.HasPrefix(t.ID, UserPrefix)
}

// Parse reads a markdown document with YAML frontmatter into a template.
func Parse(data []byte) (*Template, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "---" {
		return nil, fmt.Errorf("missing frontmatter")
	}

	var front []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		front = append(front, line)
	}
	if !closed {
		return nil, fmt.Errorf("unterminated frontmatter")
	}

	var body []string
	for scanner.Scan() {
		body = append(body, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	var t Template
	if err := yaml.Unmarshal([]byte(strings.Join(front, "\n")), &t); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	if t.ID == "" {
		return nil, fmt.Errorf("template has no id")
	}
	if t.Name == "" {
		t.Name = t.ID
	}
	t.Body = strings.TrimLeft(strings.Join(body, "\n"), "\n")
	if t.Body != "" && !strings.HasSuffix(t.Body, "\n") {
		t.Body += "\n"
	}

	return &t, nil
}

// Marshal writes the template in the format Parse reads.
func Marshal(t *Template) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}

	buf.WriteString("---\n\n")
	buf.WriteString(t.Body)
	if !strings.HasSuffix(t.Body, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}
