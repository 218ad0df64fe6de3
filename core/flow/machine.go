package flow

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/packhost/packhost/core/infra/logging"
	"github.com/packhost/packhost/core/infra/metrics"
	"github.com/packhost/packhost/core/ingress"
)

// RuntimeView is the slice of a tenant runtime the state machine needs:
// flow lookup plus the entry flow for events that name none.
type RuntimeView interface {
	Flow(id string) *Definition
	DefaultFlow() string
}

// ResumeError reports that a suspended session could not be resumed because
// its flow no longer exists in the current runtime. The stale snapshot is
// deleted before this is returned, so the next event starts fresh.
type ResumeError struct {
	SessionKey string
	FlowID     string
}

func (e *ResumeError) Error() string {
	return fmt.Sprintf("session %s: flow %q no longer present in runtime", e.SessionKey, e.FlowID)
}

// EventStatus describes how handling one event ended.
type EventStatus string

const (
	EventCompleted EventStatus = "completed"
	EventSuspended EventStatus = "suspended"
)

// EventResult is the caller-visible result of one event step. Outcome is set
// only for completed events; a suspended event returns control with no
// user-visible outcome.
type EventResult struct {
	Status  EventStatus
	Outcome *Outcome
	Resumed bool
}

const lockStripes = 64

// Machine drives the per-session pause/resume lifecycle. Events for the same
// session key are serialized through striped locks so resume, mutate, and
// re-suspend are atomic with respect to other events on that key; events on
// different keys proceed concurrently.
type Machine struct {
	snapshots *SnapshotStore
	exec      Executor
	metrics   metrics.Metrics
	locks     [lockStripes]sync.Mutex
}

func NewMachine(snapshots *SnapshotStore, exec Executor, m metrics.Metrics) *Machine {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Machine{snapshots: snapshots, exec: exec, metrics: m}
}

// Step handles one inbound event for its session: resume the suspended flow
// if a snapshot exists, otherwise start the flow the event selects. A
// suspension persists a snapshot; a terminal outcome or fault deletes it.
func (m *Machine) Step(ctx context.Context, rt RuntimeView, env *ingress.Envelope) (*EventResult, error) {
	if m == nil || m.exec == nil || m.snapshots == nil {
		return nil, fmt.Errorf("flow machine not configured")
	}
	if rt == nil {
		return nil, fmt.Errorf("no runtime for event")
	}
	sessionKey := env.Session.Key
	if sessionKey == "" {
		return nil, fmt.Errorf("envelope missing session key")
	}

	lock := m.lockFor(sessionKey)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	result, err := m.step(ctx, rt, env, sessionKey)
	status := "faulted"
	if err == nil && result != nil {
		status = string(result.Status)
	}
	m.metrics.IncFlowStep(status)
	m.metrics.ObserveFlowStepDuration(status, time.Since(started).Seconds())
	return result, err
}

func (m *Machine) step(ctx context.Context, rt RuntimeView, env *ingress.Envelope, sessionKey string) (*EventResult, error) {
	snap, err := m.snapshots.Load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}

	var (
		def     *Definition
		pointer string
		state   map[string]any
		resumed bool
	)
	if snap != nil {
		// resume against the current runtime, not the one that suspended
		def = rt.Flow(snap.FlowID)
		if def == nil {
			if delErr := m.snapshots.Delete(ctx, sessionKey); delErr != nil {
				logging.Warn("flow", "failed to delete stale snapshot", "session", sessionKey, "error", delErr)
			}
			return nil, &ResumeError{SessionKey: sessionKey, FlowID: snap.FlowID}
		}
		pointer = snap.NodePointer
		state = snap.State
		resumed = true
	} else {
		flowID := env.FlowHint()
		if flowID == "" {
			flowID = rt.DefaultFlow()
		}
		if flowID == "" {
			return nil, fmt.Errorf("session %s: no flow selected and runtime has no entry flow", sessionKey)
		}
		def = rt.Flow(flowID)
		if def == nil {
			return nil, fmt.Errorf("session %s: flow %q not found in runtime", sessionKey, flowID)
		}
		state = map[string]any{}
	}

	result, err := m.exec.Execute(ctx, def, pointer, state, env)
	if err != nil {
		if delErr := m.snapshots.Delete(ctx, sessionKey); delErr != nil {
			logging.Warn("flow", "failed to delete snapshot after executor error", "session", sessionKey, "error", delErr)
		}
		return nil, fmt.Errorf("session %s: execute flow %s: %w", sessionKey, def.ID, err)
	}

	switch result.Status {
	case StepSuspended:
		next := &Snapshot{
			SessionKey:  sessionKey,
			FlowID:      def.ID,
			NodePointer: result.NodePointer,
			State:       result.State,
			SuspendedAt: time.Now().UTC(),
		}
		if err := m.snapshots.Save(ctx, next); err != nil {
			return nil, fmt.Errorf("session %s: persist snapshot: %w", sessionKey, err)
		}
		return &EventResult{Status: EventSuspended, Resumed: resumed}, nil
	case StepCompleted:
		if err := m.snapshots.Delete(ctx, sessionKey); err != nil {
			return nil, fmt.Errorf("session %s: clear snapshot: %w", sessionKey, err)
		}
		return &EventResult{Status: EventCompleted, Outcome: result.Outcome, Resumed: resumed}, nil
	case StepFaulted:
		// never leave a stuck session behind a failed execution
		if delErr := m.snapshots.Delete(ctx, sessionKey); delErr != nil {
			logging.Warn("flow", "failed to delete snapshot after fault", "session", sessionKey, "error", delErr)
		}
		return nil, fmt.Errorf("session %s: flow %s faulted: %s", sessionKey, def.ID, result.FaultMessage)
	default:
		return nil, fmt.Errorf("session %s: executor returned unknown status %q", sessionKey, result.Status)
	}
}

func (m *Machine) lockFor(sessionKey string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionKey))
	return &m.locks[h.Sum32()%lockStripes]
}
