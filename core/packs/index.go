package packs

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// IndexSource loads the desired-state index document. The index itself is
// addressed by a locator, so the same schemes used for artifacts apply.
type IndexSource struct {
	locator   string
	resolvers ResolverSet
}

func NewIndexSource(locator string, resolvers ResolverSet) (*IndexSource, error) {
	if _, err := ParseLocator(locator); err != nil {
		return nil, fmt.Errorf("index locator: %w", err)
	}
	return &IndexSource{locator: locator, resolvers: resolvers}, nil
}

// Load fetches and parses the index. The document may be JSON or YAML; it is
// schema-validated before decoding.
func (s *IndexSource) Load(ctx context.Context) (*Index, error) {
	if s == nil {
		return nil, fmt.Errorf("nil index source")
	}
	doc, err := s.resolvers.Resolve(ctx, s.locator)
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", s.locator, err)
	}
	return ParseIndex(doc)
}

// ParseIndex decodes an index document and checks it against the index schema.
func ParseIndex(doc []byte) (*Index, error) {
	jsonDoc, err := toJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	if err := validateIndexDoc(jsonDoc); err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	tenants := make(map[string]TenantIndexEntry)
	if err := json.Unmarshal(jsonDoc, &tenants); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	idx := &Index{Tenants: tenants}
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

// toJSON normalizes a JSON or YAML document to JSON bytes.
func toJSON(doc []byte) ([]byte, error) {
	if json.Valid(doc) {
		return doc, nil
	}
	var value any
	if err := yaml.Unmarshal(doc, &value); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	out, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize yaml: %w", err)
	}
	return out, nil
}
