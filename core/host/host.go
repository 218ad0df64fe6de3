package host

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/packhost/packhost/core/flow"
	"github.com/packhost/packhost/core/infra/bus"
	"github.com/packhost/packhost/core/infra/logging"
	"github.com/packhost/packhost/core/ingress"
	"github.com/packhost/packhost/core/runtime"
	"github.com/packhost/packhost/core/watcher"
)

// Host is the inbound-event pipeline: envelope in, outcome out. It derives
// the session identity, suppresses duplicate deliveries, picks the tenant's
// current runtime, and steps the flow state machine. Many events are handled
// concurrently; serialization happens per session key inside the machine.
type Host struct {
	registry *runtime.Registry
	ledger   *ingress.Ledger
	machine  *flow.Machine
}

func New(registry *runtime.Registry, ledger *ingress.Ledger, machine *flow.Machine) (*Host, error) {
	if registry == nil || ledger == nil || machine == nil {
		return nil, fmt.Errorf("host: registry, ledger, and machine are all required")
	}
	return &Host{registry: registry, ledger: ledger, machine: machine}, nil
}

// HandleEvent processes one canonical envelope. A duplicate delivery returns
// (nil, nil): nothing happened, and nothing should.
func (h *Host) HandleEvent(ctx context.Context, env *ingress.Envelope) (*flow.EventResult, error) {
	if h == nil {
		return nil, fmt.Errorf("nil host")
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if env.Session.Key == "" {
		env.Session.Key = ingress.DeriveSessionKey(env)
	}

	verdict, err := h.ledger.Observe(ctx, env)
	if err != nil {
		return nil, err
	}
	if verdict == ingress.VerdictDuplicate {
		logging.Info("host", "duplicate event suppressed", "tenant", env.Tenant, "provider", env.Provider, "event", env.EventID())
		return nil, nil
	}

	rt := h.registry.Get(env.Tenant)
	if rt == nil {
		return nil, fmt.Errorf("tenant %q has no runtime", env.Tenant)
	}
	return h.machine.Step(ctx, rt, env)
}

type eventReply struct {
	Status  string        `json:"status"`
	Outcome *flow.Outcome `json:"outcome,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// AttachIngress subscribes the host to the adapter-facing event subject.
// Adapters publish canonical envelopes and, on request/reply, get back the
// step result so they can render user-facing messaging.
func AttachIngress(b *bus.NatsBus, h *Host) error {
	if b == nil || h == nil {
		return fmt.Errorf("bus and host required")
	}
	return b.Subscribe(bus.SubjectIngress, "packhost", func(data []byte, reply func(any) error) {
		var env ingress.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn("host", "bad ingress envelope", "error", err)
			_ = reply(eventReply{Status: "rejected", Error: "bad envelope: " + err.Error()})
			return
		}
		result, err := h.HandleEvent(context.Background(), &env)
		switch {
		case err != nil:
			logging.Error("host", "event handling failed", "tenant", env.Tenant, "error", err)
			_ = reply(eventReply{Status: "failed", Error: err.Error()})
		case result == nil:
			_ = reply(eventReply{Status: "duplicate"})
		default:
			_ = reply(eventReply{Status: string(result.Status), Outcome: result.Outcome})
		}
	})
}

// reloadRequest is the control-plane payload for a manual reload.
type reloadRequest struct {
	Tenant string `json:"tenant,omitempty"`
}

type reloadReply struct {
	Statuses []watcher.TenantStatus `json:"statuses,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// AttachControlPlane wires the watcher's reload and status operations to the
// bus so operators can drive them remotely.
func AttachControlPlane(b *bus.NatsBus, w *watcher.Watcher) error {
	if b == nil || w == nil {
		return fmt.Errorf("bus and watcher required")
	}
	err := b.Subscribe(bus.SubjectReload, "packhost", func(data []byte, reply func(any) error) {
		var req reloadRequest
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				logging.Warn("host", "bad reload request", "error", err)
				_ = reply(reloadReply{Error: "bad request: " + err.Error()})
				return
			}
		}
		statuses, err := w.Reload(context.Background(), req.Tenant)
		if err != nil {
			_ = reply(reloadReply{Error: err.Error()})
			return
		}
		_ = reply(reloadReply{Statuses: statuses})
	})
	if err != nil {
		return fmt.Errorf("subscribe reload: %w", err)
	}
	err = b.Subscribe(bus.SubjectStatus, "packhost", func(_ []byte, reply func(any) error) {
		_ = reply(w.Status())
	})
	if err != nil {
		return fmt.Errorf("subscribe status: %w", err)
	}
	return nil
}
