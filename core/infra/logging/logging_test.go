package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)
	fn()
	return buf.String()
}

func TestInfoFormatsFields(t *testing.T) {
	out := capture(t, func() {
		Info("watcher", "reload complete", "tenant", "demo", "count", 2)
	})
	if !strings.Contains(out, "[WATCHER] reload complete tenant=demo count=2") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestErrorMarksLevel(t *testing.T) {
	out := capture(t, func() {
		Error("cache", "fetch failed", "digest", "sha256:abc")
	})
	if !strings.Contains(out, "[CACHE] ERROR fetch failed digest=sha256:abc") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestOddFieldCount(t *testing.T) {
	out := capture(t, func() {
		Warn("bus", "dropping", "subject")
	})
	if !strings.Contains(out, "subject=(missing)") {
		t.Fatalf("expected placeholder for missing value: %s", out)
	}
}
