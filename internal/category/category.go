// Package category maps executable names to activity categories.
package category

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Categorizer assigns a category to an executable. Implementations must be
// pure and never return an empty category.
type Categorizer interface {
	Lookup(exeName string) string
}

// Table is a static executable -> category mapping with a fallback.
// Lookups are case-insensitive and ignore surrounding whitespace.
type Table struct {
	fallback string
	entries  map[string]string
}

// NewTable builds a table from an executable -> category map.
func NewTable(fallback string, entries map[string]string) (*Table, error) {
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		return nil, fmt.Errorf("fallback category cannot be empty")
	}

	t := &Table{
		fallback: fallback,
		entries:  make(map[string]string, len(entries)),
	}
	for exe, cat := range entries {
		if err := t.add(exe, cat); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) add(exe, cat string) error {
	key := normalize(exe)
	cat = strings.TrimSpace(cat)
	if key == "" {
		return fmt.Errorf("empty executable name for category %q", cat)
	}
	if cat == "" {
		return fmt.Errorf("empty category for executable %q", exe)
	}
	if prev, ok := t.entries[key]; ok && prev != cat {
		return fmt.Errorf("executable %q mapped to both %q and %q", exe, prev, cat)
	}
	t.entries[key] = cat
	return nil
}

// Lookup returns the category of exeName, or the fallback when unmapped.
func (t *Table) Lookup(exeName string) string {
	if cat, ok := t.entries[normalize(exeName)]; ok {
		return cat
	}
	return t.fallback
}

// Fallback returns the category used for unmapped executables.
func (t *Table) Fallback() string {
	return t.fallback
}

// Categories lists every category the table can produce, sorted, fallback included.
func (t *Table) Categories() []string {
	seen := map[string]bool{t.fallback: true}
	for _, cat := range t.entries {
		seen[cat] = true
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of mapped executables.
func (t *Table) Len() int {
	return len(t.entries)
}

// fileFormat is the YAML layout of a category file:
//
//	default: utilities
//	categories:
//	  productivity: [Code.exe, firefox]
//	  entertainment: [Discord.exe]
type fileFormat struct {
	Default    string              `yaml:"default"`
	Categories map[string][]string `yaml:"categories"`
}

// Parse reads a YAML category file. fallback is used when the file does not
// set its own default.
func Parse(data []byte, fallback string) (*Table, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse category file: %w", err)
	}
	if strings.TrimSpace(f.Default) != "" {
		fallback = f.Default
	}

	t, err := NewTable(fallback, nil)
	if err != nil {
		return nil, err
	}
	for cat, exes := range f.Categories {
		for _, exe := range exes {
			if err := t.add(exe, cat); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// Load builds the table from a YAML file, or an empty table when path is empty.
func Load(path, fallback string) (*Table, error) {
	if path == "" {
		return NewTable(fallback, nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category file: %w", err)
	}
	return Parse(data, fallback)
}

func normalize(exe string) string {
	return strings.ToLower(strings.TrimSpace(exe))
}
