package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDigestCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pack.json")
	data := []byte(`{"pack":{"name":"x","version":"1"}}`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cmd := digestCmd()
	if err := cmd.RunE(cmd, []string{path}); err != nil {
		t.Fatalf("digest: %v", err)
	}
	if err := cmd.RunE(cmd, []string{path + ".missing"}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("PACKHOSTCTL_TEST_KEY", "set")
	if envOr("PACKHOSTCTL_TEST_KEY", "fallback") != "set" {
		t.Fatal("env value ignored")
	}
	if envOr("PACKHOSTCTL_TEST_MISSING", "fallback") != "fallback" {
		t.Fatal("fallback ignored")
	}
}
