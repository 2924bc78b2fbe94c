package errors

import (
	"sort"
	"sync"
)

// Collector collects diagnostics from the stages of one pipeline run.
type Collector struct {
	diagnostics []*Diagnostic
	mutex       sync.RWMutex
}

// NewCollector creates a new diagnostic collector.
func NewCollector() *Collector {
	return &Collector{
		diagnostics: make([]*Diagnostic, 0),
	}
}

// Add adds diagnostics to the collector, skipping nils.
func (c *Collector) Add(diags ...*Diagnostic) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, d := range diags {
		if d != nil {
			c.diagnostics = append(c.diagnostics, d)
		}
	}
}

// AddError adds an error, converting it to a Diagnostic of the fallback kind
// when it is not one already.
func (c *Collector) AddError(err error, fallback Kind, code string) {
	if err == nil {
		return
	}
	if d, ok := As(err); ok {
		c.Add(d)
		return
	}
	c.Add(Wrap(fallback, code, err.Error(), err))
}

// All returns a copy of the collected diagnostics in insertion order.
func (c *Collector) All() []*Diagnostic {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]*Diagnostic, len(c.diagnostics))
	copy(result, c.diagnostics)
	return result
}

// Counts returns the number of diagnostics per kind.
func (c *Collector) Counts() map[Kind]int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	counts := make(map[Kind]int)
	for _, d := range c.diagnostics {
		counts[d.Kind]++
	}
	return counts
}

// Kinds returns the distinct kinds present, sorted.
func (c *Collector) Kinds() []Kind {
	counts := c.Counts()
	kinds := make([]Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
