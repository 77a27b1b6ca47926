// Package alias holds the versioned table that maps observed raw entity
// spellings to canonical names.
package alias

import (
	"cmp"
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ebcovid/caseledger/internal/domain"
)

//go:embed aliases.yaml
var builtinAliases []byte

// Entry maps one raw spelling to its canonical name.
type Entry struct {
	Kind      domain.EntityKind
	Raw       string
	Canonical string
}

// Table is an immutable alias table. Lookups are exact matches on
// normalized names.
type Table struct {
	canonical map[domain.EntityKind][]string
	// raw -> canonical, per kind. Canonical names map to themselves.
	lookup map[domain.EntityKind]map[string]string
}

type canonicalDef struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// Builtin returns the table embedded in the binary.
func Builtin() (*Table, error) {
	t, err := Parse(builtinAliases)
	if err != nil {
		return nil, fmt.Errorf("builtin aliases: %w", err)
	}
	return t, nil
}

// Load reads the table at path. An empty path returns the builtin table.
func Load(path string) (*Table, error) {
	if path == "" {
		return Builtin()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("aliases %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a YAML alias table. Every raw spelling must
// resolve to exactly one canonical name within its kind.
func Parse(data []byte) (*Table, error) {
	var raw map[string][]canonicalDef
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	t := &Table{
		canonical: make(map[domain.EntityKind][]string),
		lookup:    make(map[domain.EntityKind]map[string]string),
	}

	for key, defs := range raw {
		kind := domain.EntityKind(key)
		if !kind.IsValid() {
			return nil, domain.NewValidationError(key, "unknown entity kind")
		}

		lookup := make(map[string]string)
		var names []string

		for _, def := range defs {
			name := domain.NormalizeName(def.Name)
			if name == "" {
				return nil, domain.NewValidationError(key, "canonical name is required")
			}
			if prev, ok := lookup[name]; ok {
				return nil, fmt.Errorf("%s %q: already mapped to %q: %w", kind, name, prev, domain.ErrAlreadyExists)
			}
			lookup[name] = name
			names = append(names, name)
		}

		for _, def := range defs {
			name := domain.NormalizeName(def.Name)
			for _, a := range def.Aliases {
				a = domain.NormalizeName(a)
				if a == "" {
					return nil, domain.NewValidationError(key, fmt.Sprintf("empty alias for %q", name))
				}
				if prev, ok := lookup[a]; ok {
					if prev == name {
						continue
					}
					return nil, fmt.Errorf("%s alias %q: maps to both %q and %q: %w", kind, a, prev, name, domain.ErrAlreadyExists)
				}
				lookup[a] = name
			}
		}

		slices.Sort(names)
		t.canonical[kind] = names
		t.lookup[kind] = lookup
	}

	return t, nil
}

// Canonical returns the canonical name for raw. Names the table does not know
// are their own canonical name; known reports whether the table matched.
func (t *Table) Canonical(kind domain.EntityKind, raw string) (name string, known bool) {
	raw = domain.NormalizeName(raw)
	if c, ok := t.lookup[kind][raw]; ok {
		return c, true
	}
	return raw, false
}

// Names returns the sorted canonical names of kind.
func (t *Table) Names(kind domain.EntityKind) []string {
	return slices.Clone(t.canonical[kind])
}

// Entries returns every raw spelling of kind that differs from its canonical
// name, sorted by raw spelling.
func (t *Table) Entries(kind domain.EntityKind) []Entry {
	var out []Entry
	for raw, c := range t.lookup[kind] {
		if raw == c {
			continue
		}
		out = append(out, Entry{Kind: kind, Raw: raw, Canonical: c})
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.Raw, b.Raw) })
	return out
}

// Len returns the number of aliases across all kinds.
func (t *Table) Len() int {
	n := 0
	for _, k := range domain.EntityKinds {
		n += len(t.Entries(k))
	}
	return n
}

// Unmapped returns the distinct normalized names the table does not know,
// sorted. Empty names are dropped.
func (t *Table) Unmapped(kind domain.EntityKind, names []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, n := range names {
		n = domain.NormalizeName(n)
		if n == "" {
			continue
		}
		if _, ok := t.lookup[kind][n]; ok {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
