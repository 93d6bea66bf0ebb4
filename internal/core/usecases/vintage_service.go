package usecases

import (
	"github.com/samirrijal/housingetl/internal/core/domain"
	"github.com/samirrijal/housingetl/internal/core/ports"
)

// VintageService describes the registered vintages.
type VintageService struct {
	registry ports.SchemaRegistry
}

func NewVintageService(registry ports.SchemaRegistry) *VintageService {
	return &VintageService{registry: registry}
}

// List returns every registered vintage, optionally narrowed to one collection.
func (s *VintageService) List(collection string) []domain.VintageInfo {
	var out []domain.VintageInfo
	for _, key := range s.registry.Keys() {
		if collection != "" && key.Collection != collection {
			continue
		}
		schema, ok := s.registry.Lookup(key)
		if !ok {
			continue
		}
		out = append(out, describe(schema))
	}
	return out
}

// Get returns one vintage.
func (s *VintageService) Get(key domain.VintageKey) (domain.VintageInfo, error) {
	schema, ok := s.registry.Lookup(key)
	if !ok {
		return domain.VintageInfo{}, ports.ErrNotFound
	}
	return describe(schema), nil
}

func describe(schema *domain.VintageSchema) domain.VintageInfo {
	first, second := schema.CoordinateFields()
	n := 0
	for _, fp := range schema.Patterns {
		n += len(fp.Patterns)
	}
	return domain.VintageInfo{
		Key:             schema.Key,
		URL:             schema.URL,
		Fields:          append([]string(nil), schema.Fields...),
		CoordinateOrder: [2]string{first, second},
		Patterns:        n,
	}
}
