package packs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDigest = "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestParseIndexJSON(t *testing.T) {
	doc := `{
	  "demo": {
	    "main_pack": {"name": "greeter", "version": "1.0.0", "locator": "file:///packs/greeter.json", "digest": "` + sampleDigest + `"},
	    "overlays": [
	      {"name": "branding", "version": "0.2.0", "locator": "https://packs.example.com/branding.json", "digest": "` + sampleDigest + `"}
	    ]
	  }
	}`
	idx, err := ParseIndex([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	entry, ok := idx.Tenants["demo"]
	if !ok {
		t.Fatal("tenant demo missing")
	}
	if entry.MainPack.Name != "greeter" || len(entry.Overlays) != 1 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	digests := entry.DigestSet()
	if len(digests) != 2 || digests[0] != sampleDigest {
		t.Fatalf("unexpected digest set: %v", digests)
	}
}

func TestParseIndexYAML(t *testing.T) {
	doc := `
demo:
  main_pack:
    name: greeter
    version: 1.0.0
    locator: file:///packs/greeter.yaml
    digest: ` + sampleDigest + `
`
	idx, err := ParseIndex([]byte(doc))
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if idx.Tenants["demo"].MainPack.Version != "1.0.0" {
		t.Fatalf("unexpected index: %+v", idx.Tenants)
	}
}

func TestParseIndexRejectsMissingDigest(t *testing.T) {
	doc := `{"demo": {"main_pack": {"name": "greeter", "version": "1.0.0", "locator": "/p.json"}}}`
	if _, err := ParseIndex([]byte(doc)); err == nil {
		t.Fatal("expected schema rejection for missing digest")
	}
}

func TestIndexSourceLoadsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	doc := `{"demo": {"main_pack": {"name": "greeter", "version": "1.0.0", "locator": "/p.json", "digest": "` + sampleDigest + `"}}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	source, err := NewIndexSource(path, NewResolverSet(FSResolver{}))
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	idx, err := source.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(idx.Tenants) != 1 {
		t.Fatalf("unexpected tenants: %v", idx.Tenants)
	}

	missing, err := NewIndexSource(filepath.Join(dir, "nope.json"), NewResolverSet(FSResolver{}))
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	if _, err := missing.Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParseManifest(t *testing.T) {
	doc := `{
	  "pack": {"name": "greeter", "version": "1.0.0", "entry_flows": ["greet"]},
	  "flows": {
	    "greet": {
	      "start": "hello",
	      "nodes": {
	        "hello": {"component": "reply", "payload": {"text": "hi"}, "routes": [{"out": true}]}
	      }
	    }
	  }
	}`
	manifest, err := ParseManifest([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	def := manifest.Flows["greet"]
	if def == nil || def.ID != "greet" || def.Start != "hello" {
		t.Fatalf("unexpected flow: %+v", def)
	}
	if manifest.Pack.EntryFlows[0] != "greet" {
		t.Fatalf("unexpected entry flows: %v", manifest.Pack.EntryFlows)
	}
}

func TestParseManifestRejectsBrokenGraph(t *testing.T) {
	doc := `{
	  "pack": {"name": "broken", "version": "1.0.0"},
	  "flows": {
	    "oops": {
	      "start": "a",
	      "nodes": {
	        "a": {"component": "reply", "routes": [{"to": "ghost"}]}
	      }
	    }
	  }
	}`
	_, err := ParseManifest([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Fatalf("expected unknown-node error, got %v", err)
	}
}
