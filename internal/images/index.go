package images

import (
	"net/url"
	"path"
	"strings"
	"sync"
)

// folderPrefixes are the conventional asset folders an author may reference.
var folderPrefixes = []string{"images", "img", "assets", "media"}

// PathVariants returns every reference form that should resolve to an image
// uploaded as displayName: the bare name, "./name", each conventional folder
// with and without "./", all of those again with the extension's letter case
// swapped, and %20-escaped forms when the name contains spaces. The order is
// deterministic and free of duplicates.
func PathVariants(displayName string) []string {
	name := strings.TrimPrefix(path.Clean(strings.ReplaceAll(displayName, "\\", "/")), "./")
	if name == "" || name == "." {
		return nil
	}

	names := []string{name}
	if swapped := swapExtCase(name); swapped != name {
		names = append(names, swapped)
	}

	var forms []string
	for _, n := range names {
		forms = append(forms, n, "./"+n)
		for _, prefix := range folderPrefixes {
			forms = append(forms, prefix+"/"+n, "./"+prefix+"/"+n)
		}
	}

	if strings.Contains(name, " ") {
		count := len(forms)
		for _, f := range forms[:count] {
			forms = append(forms, strings.ReplaceAll(f, " ", "%20"))
		}
	}

	seen := make(map[string]bool, len(forms))
	out := forms[:0]
	for _, f := range forms {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// swapExtCase flips the case of the file extension: lower becomes upper and
// anything else becomes lower.
func swapExtCase(name string) string {
	ext := path.Ext(name)
	if ext == "" || ext == "." {
		return name
	}
	base := name[:len(name)-len(ext)]
	if ext == strings.ToLower(ext) {
		return base + strings.ToUpper(ext)
	}
	return base + strings.ToLower(ext)
}

// Index maps path variants to embedded images. It is safe for concurrent
// use.
type Index struct {
	mu     sync.RWMutex
	byPath map[string]*EmbeddedImage
	images map[string]*EmbeddedImage
	order  []string
	epoch  uint64
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byPath: make(map[string]*EmbeddedImage),
		images: make(map[string]*EmbeddedImage),
	}
}

// Add indexes img under every variant of its name. Re-adding a name replaces
// the earlier image.
func (x *Index) Add(img *EmbeddedImage) {
	if img == nil {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.images[img.Name]; !exists {
		x.order = append(x.order, img.Name)
	}
	x.images[img.Name] = img
	for _, v := range PathVariants(img.Name) {
		x.byPath[v] = img
	}
}

// Lookup resolves a reference as written in the text. Percent-escaped
// references are also tried unescaped.
func (x *Index) Lookup(ref string) (*EmbeddedImage, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if img, ok := x.byPath[ref]; ok {
		return img, true
	}
	if unescaped, err := url.PathUnescape(ref); err == nil && unescaped != ref {
		if img, ok := x.byPath[unescaped]; ok {
			return img, true
		}
	}
	return nil, false
}

// Get returns the image uploaded under name.
func (x *Index) Get(name string) (*EmbeddedImage, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	img, ok := x.images[name]
	return img, ok
}

// Len returns the number of distinct images.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.images)
}

// Names returns image names in upload order.
func (x *Index) Names() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, len(x.order))
	copy(out, x.order)
	return out
}

// Images returns the images in upload order.
func (x *Index) Images() []*EmbeddedImage {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]*EmbeddedImage, 0, len(x.order))
	for _, name := range x.order {
		out = append(out, x.images[name])
	}
	return out
}

// Reset removes every image and starts a new epoch.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byPath = make(map[string]*EmbeddedImage)
	x.images = make(map[string]*EmbeddedImage)
	x.order = nil
	x.epoch++
}

// Epoch counts resets. Work started against an older epoch is stale.
func (x *Index) Epoch() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.epoch
}
