// Package registry loads the per-vintage extraction schemas.
//
// The registry is read once at startup and never mutated afterwards. Every
// pattern is compiled and checked for a capture group at load time so that a
// broken configuration stops the process before any record is touched.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/samirrijal/housingetl/internal/core/domain"
)

//go:embed vintages.yaml
var embedded []byte

var (
	ErrInvalidSchema    = errors.New("invalid vintage schema")
	ErrUnknownField     = errors.New("pattern refers to a field the vintage does not extract")
	ErrBadPattern       = errors.New("pattern does not compile")
	ErrNoCaptureGroup   = errors.New("pattern has no capture group")
	ErrDuplicateVintage = errors.New("vintage declared twice")
)

type fileDoc struct {
	Aliases     map[string]string `yaml:"aliases"`
	Collections []collectionDoc   `yaml:"collections"`
}

type collectionDoc struct {
	Name     string       `yaml:"name"`
	Vintages []vintageDoc `yaml:"vintages"`
}

type vintageDoc struct {
	Year   int       `yaml:"year"`
	URL    string    `yaml:"url"`
	Schema schemaDoc `yaml:"schema"`
}

type schemaDoc struct {
	Fields   []string     `yaml:"fields"`
	Patterns []patternDoc `yaml:"patterns"`
}

type patternDoc struct {
	Field string   `yaml:"field"`
	Match []string `yaml:"match"`
}

// Registry holds every known vintage schema and the alias table.
type Registry struct {
	collections []string
	order       []domain.VintageKey
	vintages    map[domain.VintageKey]*domain.VintageSchema
	aliases     domain.AliasTable
}

// Load reads the registry from path, or the embedded default when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Parse(embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded registry.
func Default() (*Registry, error) {
	return Parse(embedded)
}

// Parse decodes and validates a registry document.
func Parse(data []byte) (*Registry, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	r := &Registry{
		vintages: make(map[domain.VintageKey]*domain.VintageSchema),
		aliases:  make(domain.AliasTable, len(doc.Aliases)),
	}
	for k, v := range doc.Aliases {
		r.aliases[k] = v
	}

	var errs []error
	for _, c := range doc.Collections {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("%w: collection without a name", ErrInvalidSchema))
			continue
		}
		r.collections = append(r.collections, c.Name)
		for _, v := range c.Vintages {
			key := domain.VintageKey{Collection: c.Name, Year: v.Year}
			if _, dup := r.vintages[key]; dup {
				errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateVintage, key))
				continue
			}
			schema, err := compile(key, v)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			r.vintages[key] = schema
			r.order = append(r.order, key)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(r.order) == 0 {
		return nil, fmt.Errorf("%w: registry declares no vintages", ErrInvalidSchema)
	}
	return r, nil
}

func compile(key domain.VintageKey, v vintageDoc) (*domain.VintageSchema, error) {
	fields := v.Schema.Fields
	if len(fields) < 3 || fields[0] != domain.NameField {
		return nil, fmt.Errorf("%w: %s: fields must start with %q and end with the coordinate pair",
			ErrInvalidSchema, key, domain.NameField)
	}
	a, b := fields[len(fields)-2], fields[len(fields)-1]
	if !isCoordinatePair(a, b) {
		return nil, fmt.Errorf("%w: %s: last two fields must be %s and %s, got %q, %q",
			ErrInvalidSchema, key, domain.ColLatitude, domain.ColLongitude, a, b)
	}

	extracted := make(map[string]bool, len(fields))
	for _, f := range fields[1 : len(fields)-2] {
		if extracted[f] {
			return nil, fmt.Errorf("%w: %s: field %q listed twice", ErrInvalidSchema, key, f)
		}
		extracted[f] = true
	}

	schema := &domain.VintageSchema{
		Key:    key,
		URL:    v.URL,
		Fields: append([]string(nil), fields...),
	}
	seen := make(map[string]bool, len(v.Schema.Patterns))
	for _, p := range v.Schema.Patterns {
		if !extracted[p.Field] {
			return nil, fmt.Errorf("%w: %s: %q", ErrUnknownField, key, p.Field)
		}
		if seen[p.Field] {
			return nil, fmt.Errorf("%w: %s: patterns for %q declared twice", ErrInvalidSchema, key, p.Field)
		}
		seen[p.Field] = true
		if len(p.Match) == 0 {
			return nil, fmt.Errorf("%w: %s: field %q has no patterns", ErrInvalidSchema, key, p.Field)
		}

		fp := domain.FieldPatterns{Field: p.Field}
		for _, expr := range p.Match {
			re, err := CompilePattern(expr)
			if err != nil {
				return nil, fmt.Errorf("%s: field %q: %w", key, p.Field, err)
			}
			fp.Patterns = append(fp.Patterns, re)
		}
		schema.Patterns = append(schema.Patterns, fp)
	}
	return schema, nil
}

// CompilePattern compiles expr and requires at least one capture group.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadPattern, expr, err)
	}
	if re.NumSubexp() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoCaptureGroup, expr)
	}
	return re, nil
}

func isCoordinatePair(a, b string) bool {
	return (a == domain.ColLatitude && b == domain.ColLongitude) ||
		(a == domain.ColLongitude && b == domain.ColLatitude)
}

// Lookup returns the schema for key.
func (r *Registry) Lookup(key domain.VintageKey) (*domain.VintageSchema, bool) {
	s, ok := r.vintages[key]
	return s, ok
}

// Keys returns every vintage in declaration order (collection, then year as listed).
func (r *Registry) Keys() []domain.VintageKey {
	return append([]domain.VintageKey(nil), r.order...)
}

// Collections returns the collection names in declaration order.
func (r *Registry) Collections() []string {
	return append([]string(nil), r.collections...)
}

// Years returns the distinct years across all collections, ascending.
func (r *Registry) Years() []int {
	set := make(map[int]struct{})
	for _, k := range r.order {
		set[k.Year] = struct{}{}
	}
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Aliases returns a copy of the alias table.
func (r *Registry) Aliases() domain.AliasTable {
	out := make(domain.AliasTable, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}
