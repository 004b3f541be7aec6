package actuation

import (
	"sort"
	"sync"
)

// Catalog maps gesture names to the animations the robot bridge
// understands. The dialogue engine names gestures loosely; the catalog
// folds synonyms onto the canonical vocabulary so the bridge only ever
// sees names it has animations for.
type Catalog struct {
	mu      sync.RWMutex
	names   map[string]bool
	aliases map[string]string
}

// NewCatalog creates a catalog preloaded with the built-in vocabulary.
func NewCatalog() *Catalog {
	c := &Catalog{
		names:   make(map[string]bool),
		aliases: make(map[string]string),
	}
	for _, name := range []string{
		"greet", "happy", "explain", "thinking", "calm", "showing", "farewell",
	} {
		c.names[name] = true
	}
	for alias, canonical := range map[string]string{
		"hello":   "greet",
		"wave":    "greet",
		"hi":      "greet",
		"joy":     "happy",
		"smile":   "happy",
		"talk":    "explain",
		"think":   "thinking",
		"ponder":  "thinking",
		"relax":   "calm",
		"point":   "showing",
		"show":    "showing",
		"goodbye": "farewell",
		"bye":     "farewell",
	} {
		c.aliases[alias] = canonical
	}
	return c
}

// Register adds a gesture name, with optional aliases.
func (c *Catalog) Register(name string, aliases ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[name] = true
	for _, alias := range aliases {
		c.aliases[alias] = name
	}
}

// Resolve maps a requested gesture to its canonical name. The second
// return is false for names the bridge has no animation for.
func (c *Catalog) Resolve(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.names[name] {
		return name, true
	}
	if canonical, ok := c.aliases[name]; ok {
		return canonical, true
	}
	return "", false
}

// List returns all canonical gesture names, sorted alphabetically.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.names))
	for name := range c.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
