// Package templates loads the phrase sets handlers choose their wording from.
package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Set names a group of interchangeable phrasings.
type Set string

const (
	Gratitude Set = "gratitude"
	Repeat    Set = "repeat"
	Clarify   Set = "clarify"
	Fallback  Set = "fallback"
	Failure   Set = "failure"
)

// AnswerPlaceholder is replaced with the earlier answer in repeat templates.
const AnswerPlaceholder = "{answer}"

// RequiredSets lists every set a catalog must define.
var RequiredSets = []Set{Gratitude, Repeat, Clarify, Fallback, Failure}

// ErrInvalidCatalog is returned when a catalog document fails validation.
var ErrInvalidCatalog = errors.New("invalid template catalog")

//go:embed default.yaml
var defaultYAML []byte

// Catalog holds the phrase sets. It is safe for concurrent use.
type Catalog struct {
	mu   sync.RWMutex
	sets map[Set][]string
}

// Default returns a catalog built from the embedded phrase sets.
func Default() *Catalog {
	sets, err := Parse(defaultYAML)
	if err != nil {
		panic("templates: embedded catalog is invalid: " + err.Error())
	}
	return &Catalog{sets: sets}
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	sets, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return &Catalog{sets: sets}, nil
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (map[Set][]string, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	sets := make(map[Set][]string, len(raw))
	for name, entries := range raw {
		cleaned := make([]string, 0, len(entries))
		for _, e := range entries {
			if e = strings.TrimSpace(e); e != "" {
				cleaned = append(cleaned, e)
			}
		}
		sets[Set(name)] = cleaned
	}

	for _, s := range RequiredSets {
		if len(sets[s]) == 0 {
			return nil, fmt.Errorf("%w: set %q is empty", ErrInvalidCatalog, s)
		}
	}
	for _, tmpl := range sets[Repeat] {
		if !strings.Contains(tmpl, AnswerPlaceholder) {
			return nil, fmt.Errorf("%w: repeat template %q lacks %s", ErrInvalidCatalog, tmpl, AnswerPlaceholder)
		}
	}
	return sets, nil
}

// Phrases returns a copy of the phrasings in a set.
func (c *Catalog) Phrases(s Set) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.sets[s]))
	copy(out, c.sets[s])
	return out
}

// Len returns the number of phrasings in a set.
func (c *Catalog) Len(s Set) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets[s])
}

// Pick returns phrasing i of a set, wrapping out-of-range indexes.
// It returns "" for an empty set.
func (c *Catalog) Pick(s Set, i int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	phrases := c.sets[s]
	if len(phrases) == 0 {
		return ""
	}
	if i < 0 {
		i = -i
	}
	return phrases[i%len(phrases)]
}

// Replace swaps in new sets atomically.
func (c *Catalog) Replace(sets map[Set][]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = sets
}

func readFile(path string) (map[Set][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template catalog %s: %w", path, err)
	}
	sets, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse template catalog %s: %w", path, err)
	}
	return sets, nil
}
