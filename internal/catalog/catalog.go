package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/conneroisu/folio/internal/kvstore"
	"github.com/conneroisu/folio/internal/variables"
)

//go:embed builtin/*.md
var builtinFS embed.FS

// builtinOrder is the order built-ins are listed in.
var builtinOrder = []string{"report", "meeting-notes", "invoice", "project-status"}

const keyPrefix = "template/"

var (
	// ErrNotFound is returned for an unknown template id.
	ErrNotFound = errors.New("template not found")
	// ErrBuiltIn is returned when trying to modify a built-in.
	ErrBuiltIn = errors.New("built-in templates cannot be modified")
)

// Catalog lists built-in and user templates.
type Catalog struct {
	store    kvstore.Store
	builtins []*Template
}

// New loads the embedded built-ins. A nil store keeps user templates in
// memory.
func New(store kvstore.Store) (*Catalog, error) {
	if store == nil {
		store = kvstore.NewMemoryStore()
	}

	byID := make(map[string]*Template)
	err := fs.WalkDir(builtinFS, "builtin", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".md" {
			return err
		}
		data, err := builtinFS.ReadFile(p)
		if err != nil {
			return err
		}
		t, err := Parse(data)
		if err != nil {
			return fmt.Errorf("built-in %s: %w", p, err)
		}
		byID[t.ID] = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	c := &Catalog{store: store}
	for _, id := range builtinOrder {
		if t, ok := byID[id]; ok {
			c.builtins = append(c.builtins, t)
		}
	}
	return c, nil
}

// List returns the built-ins followed by user templates sorted by id.
func (c *Catalog) List() ([]*Template, error) {
	out := make([]*Template, 0, len(c.builtins))
	for _, t := range c.builtins {
		out = append(out, clone(t))
	}

	keys, err := c.store.Keys(keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list user templates: %w", err)
	}
	user := make([]*Template, 0, len(keys))
	for _, key := range keys {
		t, err := c.load(key)
		if err != nil {
			continue
		}
		user = append(user, t)
	}
	sort.Slice(user, func(i, j int) bool { return user[i].ID < user[j].ID })

	return append(out, user...), nil
}

// Get returns a copy of the template with id.
func (c *Catalog) Get(id string) (*Template, error) {
	for _, t := range c.builtins {
		if t.ID == id {
			return clone(t), nil
		}
	}
	if !strings.HasPrefix(id, UserPrefix) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.load(keyPrefix + id)
}

// Save stores a user template. The id gets the user prefix when it lacks
// one; the stored template is returned.
func (c *Catalog) Save(t *Template) (*Template, error) {
	if t == nil || strings.TrimSpace(t.Name) == "" && strings.TrimSpace(t.ID) == "" {
		return nil, errors.New("template needs a name or id")
	}

	saved := clone(t)
	if saved.ID == "" {
		saved.ID = Slug(saved.Name)
		if saved.ID == "" {
			return nil, fmt.Errorf("cannot derive an id from %q", saved.Name)
		}
	}
	for _, b := range c.builtins {
		if b.ID == saved.ID {
			return nil, fmt.Errorf("%w: %s", ErrBuiltIn, saved.ID)
		}
	}
	if !strings.HasPrefix(saved.ID, UserPrefix) {
		saved.ID = UserPrefix + saved.ID
	}
	if saved.Name == "" {
		saved.Name = strings.TrimPrefix(saved.ID, UserPrefix)
	}

	data, err := Marshal(saved)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(keyPrefix+saved.ID, data); err != nil {
		return nil, fmt.Errorf("failed to save template %s: %w", saved.ID, err)
	}
	return saved, nil
}

// Delete removes a user template.
func (c *Catalog) Delete(id string) error {
	if !strings.HasPrefix(id, UserPrefix) {
		for _, b := range c.builtins {
			if b.ID == id {
				return fmt.Errorf("%w: %s", ErrBuiltIn, id)
			}
		}
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	err := c.store.Delete(keyPrefix + id)
	if errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// Search fuzzy-matches query against name, category and description. An
// empty query returns every template.
func (c *Catalog) Search(query string) ([]*Template, error) {
	all, err := c.List()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return all, nil
	}

	haystack := make([]string, len(all))
	for i, t := range all {
		haystack[i] = fmt.Sprintf("%s %s %s %s", t.Name, t.Category, t.Description, t.ID)
	}

	matches := fuzzy.Find(query, haystack)
	results := make([]*Template, 0, len(matches))
	for _, m := range matches {
		results = append(results, all[m.Index])
	}
	return results, nil
}

// Load returns the template body and a fresh variable set holding its
// defaults. Callers replace their whole set with it.
func (c *Catalog) Load(id string) (string, *variables.Set, error) {
	t, err := c.Get(id)
	if err != nil {
		return "", nil, err
	}
	return t.Body, variables.NewSet(t.Variables...), nil
}

func (c *Catalog) load(key string) (*Template, error) {
	data, err := c.store.Get(key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimPrefix(key, keyPrefix))
	}
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Slug turns a display name into an id.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func clone(t *Template) *Template {
	c := *t
	c.Variables = append([]variables.Variable(nil), t.Variables...)
	return &c
}
