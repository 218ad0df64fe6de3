package flow

import (
	"encoding/json"
	"fmt"
	"time"
)

// Definition is a single flow graph: a start node plus named nodes with
// routing edges. Definitions are immutable once composed into a runtime.
type Definition struct {
	ID    string           `json:"id" yaml:"id"`
	Type  string           `json:"type,omitempty" yaml:"type,omitempty"`
	Start string           `json:"start" yaml:"start"`
	Nodes map[string]*Node `json:"nodes" yaml:"nodes"`
}

// Node is one step in a flow. The component names the behavior, the payload
// is its opaque configuration, and routes name the outgoing edges.
type Node struct {
	Component string          `json:"component" yaml:"component"`
	Payload   json.RawMessage `json:"payload,omitempty" yaml:"payload,omitempty"`
	Routes    []Route         `json:"routes,omitempty" yaml:"routes,omitempty"`
}

// Route is an outgoing edge: either a jump to another node or an exit.
type Route struct {
	To  string `json:"to,omitempty" yaml:"to,omitempty"`
	Out bool   `json:"out,omitempty" yaml:"out,omitempty"`
}

// Validate checks the graph invariants: a start node that exists, and every
// route target resolving to a node in the same flow.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("nil flow definition")
	}
	if d.ID == "" {
		return fmt.Errorf("flow missing id")
	}
	if len(d.Nodes) == 0 {
		return fmt.Errorf("flow %s: no nodes", d.ID)
	}
	if _, ok := d.Nodes[d.Start]; !ok {
		return fmt.Errorf("flow %s: start node %q not defined", d.ID, d.Start)
	}
	for name, node := range d.Nodes {
		if node == nil || node.Component == "" {
			return fmt.Errorf("flow %s: node %s missing component", d.ID, name)
		}
		for _, route := range node.Routes {
			if route.Out {
				continue
			}
			if _, ok := d.Nodes[route.To]; !ok {
				return fmt.Errorf("flow %s: node %s routes to unknown node %q", d.ID, name, route.To)
			}
		}
	}
	return nil
}

// Outcome is the terminal result of a flow run, surfaced to the caller.
type Outcome struct {
	FlowID  string          `json:"flow_id"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Snapshot captures a paused flow so a later event can resume it. At most one
// snapshot exists per session key.
type Snapshot struct {
	SessionKey  string         `json:"session_key"`
	FlowID      string         `json:"flow_id"`
	NodePointer string         `json:"node_pointer"`
	State       map[string]any `json:"state,omitempty"`
	SuspendedAt time.Time      `json:"suspended_at"`
}

// StepStatus tags the outcome of one executor step.
type StepStatus string

const (
	StepSuspended StepStatus = "suspended"
	StepCompleted StepStatus = "completed"
	StepFaulted   StepStatus = "faulted"
)

// StepResult is the executor's report for one step. Exactly the fields for
// its status are populated: NodePointer and State when suspended, Outcome
// when completed, FaultMessage when faulted.
type StepResult struct {
	Status       StepStatus
	NodePointer  string
	State        map[string]any
	Outcome      *Outcome
	FaultMessage string
}

func Suspended(nodePointer string, state map[string]any) StepResult {
	return StepResult{Status: StepSuspended, NodePointer: nodePointer, State: state}
}

func Completed(outcome *Outcome) StepResult {
	return StepResult{Status: StepCompleted, Outcome: outcome}
}

func Faulted(msg string) StepResult {
	return StepResult{Status: StepFaulted, FaultMessage: msg}
}
