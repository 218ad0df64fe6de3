package bus

import (
	"errors"
	"testing"
	"time"
)

func TestNilBusGuards(t *testing.T) {
	var b *NatsBus
	if err := b.Publish(SubjectReload, map[string]string{}); !errors.Is(err, errNilBus) {
		t.Fatalf("expected nil-bus error, got %v", err)
	}
	if err := b.Subscribe(SubjectReload, "", func([]byte, func(any) error) {}); !errors.Is(err, errNilBus) {
		t.Fatalf("expected nil-bus error, got %v", err)
	}
	if _, err := b.Request(SubjectStatus, nil, time.Second); !errors.Is(err, errNilBus) {
		t.Fatalf("expected nil-bus error, got %v", err)
	}
	b.Close()
}

func TestEmptySubjectRejected(t *testing.T) {
	b := &NatsBus{}
	if err := b.Publish("", nil); !errors.Is(err, errNilBus) {
		t.Fatalf("expected nil-bus error for zero-value bus, got %v", err)
	}
}
