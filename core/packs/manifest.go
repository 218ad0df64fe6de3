package packs

import (
	"encoding/json"
	"fmt"

	"github.com/packhost/packhost/core/flow"
)

// PackMeta is the self-description inside a pack artifact.
type PackMeta struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	EntryFlows []string `json:"entry_flows,omitempty"`
}

// Manifest is a parsed pack artifact: metadata plus its flow definitions.
type Manifest struct {
	Pack  PackMeta                    `json:"pack"`
	Flows map[string]*flow.Definition `json:"flows"`
}

// ParseManifest decodes a pack artifact (JSON or YAML), schema-validates it,
// and checks each flow graph. Flow ids default to their map key.
func ParseManifest(doc []byte) (*Manifest, error) {
	jsonDoc, err := toJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("parse pack: %w", err)
	}
	if err := validateManifestDoc(jsonDoc); err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(jsonDoc, &manifest); err != nil {
		return nil, fmt.Errorf("decode pack: %w", err)
	}
	for id, def := range manifest.Flows {
		if def == nil {
			return nil, fmt.Errorf("pack %s: flow %s is empty", manifest.Pack.Name, id)
		}
		if def.ID == "" {
			def.ID = id
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("pack %s: %w", manifest.Pack.Name, err)
		}
	}
	return &manifest, nil
}
