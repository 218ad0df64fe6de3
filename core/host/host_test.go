package host

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/packhost/packhost/core/flow"
	"github.com/packhost/packhost/core/infra/kvstore"
	"github.com/packhost/packhost/core/infra/metrics"
	"github.com/packhost/packhost/core/ingress"
	"github.com/packhost/packhost/core/runtime"
)

func newTestHost(t *testing.T) (*Host, *runtime.Registry) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	registry := runtime.NewRegistry()
	ledger := ingress.NewLedger(store, time.Minute, metrics.Noop{})
	machine := flow.NewMachine(flow.NewSnapshotStore(store, time.Hour), flow.LocalExecutor{}, metrics.Noop{})
	h, err := New(registry, ledger, machine)
	require.NoError(t, err)
	return h, registry
}

func demoRuntime(replyText string) *runtime.TenantRuntime {
	return &runtime.TenantRuntime{
		Tenant: "demo",
		Flows: map[string]*flow.Definition{
			"greet": {
				ID:    "greet",
				Start: "say",
				Nodes: map[string]*flow.Node{
					"say": {
						Component: "reply",
						Payload:   json.RawMessage(`{"text":"` + replyText + `"}`),
						Routes:    []flow.Route{{Out: true}},
					},
				},
			},
		},
		EntryFlows: []string{"greet"},
		Digests:    []string{"sha256:0"},
	}
}

func telegramEvent(eventID string) *ingress.Envelope {
	return &ingress.Envelope{
		Tenant:   "demo",
		Provider: "telegram",
		ProviderIDs: ingress.ProviderIDs{
			EventID:        eventID,
			ConversationID: "42",
			UserID:         "1",
		},
		Text: "hello",
	}
}

func TestHandleEventEndToEnd(t *testing.T) {
	h, registry := newTestHost(t)
	registry.Swap(demoRuntime("hi"))

	env := telegramEvent("e1")
	result, err := h.HandleEvent(context.Background(), env)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, flow.EventCompleted, result.Status)
	require.Equal(t, "hi", result.Outcome.Message)
	require.Equal(t, "demo:telegram:42:1", env.Session.Key)
}

func TestHandleEventSuppressesDuplicates(t *testing.T) {
	h, registry := newTestHost(t)
	registry.Swap(demoRuntime("hi"))

	first, err := h.HandleEvent(context.Background(), telegramEvent("dup"))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := h.HandleEvent(context.Background(), telegramEvent("dup"))
	require.NoError(t, err)
	require.Nil(t, second, "duplicate delivery must produce no result")
}

func TestHandleEventRejectsUnknownTenant(t *testing.T) {
	h, _ := newTestHost(t)
	_, err := h.HandleEvent(context.Background(), telegramEvent("e2"))
	require.Error(t, err)
}

func TestHandleEventValidatesEnvelope(t *testing.T) {
	h, _ := newTestHost(t)
	_, err := h.HandleEvent(context.Background(), &ingress.Envelope{Provider: "telegram"})
	require.Error(t, err)
}

func TestConcurrentEventsAcrossSessions(t *testing.T) {
	h, registry := newTestHost(t)
	registry.Swap(demoRuntime("hi"))

	const events = 32
	var wg sync.WaitGroup
	errs := make([]error, events)
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env := telegramEvent("") // no event id: never deduped
			env.ProviderIDs.ConversationID = string(rune('A' + i%8))
			env.ProviderIDs.UserID = string(rune('a' + i%4))
			_, errs[i] = h.HandleEvent(context.Background(), env)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "event %d", i)
	}
}

func TestRuntimeSwapVisibleToNextEvent(t *testing.T) {
	h, registry := newTestHost(t)
	registry.Swap(demoRuntime("hi"))

	result, err := h.HandleEvent(context.Background(), telegramEvent("a1"))
	require.NoError(t, err)
	require.Equal(t, "hi", result.Outcome.Message)

	registry.Swap(demoRuntime("hello v2"))
	result, err = h.HandleEvent(context.Background(), telegramEvent("a2"))
	require.NoError(t, err)
	require.Equal(t, "hello v2", result.Outcome.Message)
}
