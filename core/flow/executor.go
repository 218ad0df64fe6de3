package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/packhost/packhost/core/ingress"
)

// Executor runs flow steps. The state machine decides which definition, node
// pointer, and execution state to hand it; the executor owns component
// semantics and reports back how the step ended.
type Executor interface {
	Execute(ctx context.Context, def *Definition, nodePointer string, state map[string]any, env *ingress.Envelope) (StepResult, error)
}

// LocalExecutor is the built-in component interpreter. It understands a small
// component set sufficient for conversational packs:
//
//	set     merge the payload object into execution state
//	prompt  emit the payload text, suspend until the next event, then store
//	        the reply under the payload's "var" name
//	reply   complete the flow with the payload text as the outcome message
//
// Payload text supports ${name} expansion from execution state.
type LocalExecutor struct{}

const maxStepsPerEvent = 256

func (LocalExecutor) Execute(_ context.Context, def *Definition, nodePointer string, state map[string]any, env *ingress.Envelope) (StepResult, error) {
	if def == nil {
		return StepResult{}, fmt.Errorf("nil flow definition")
	}
	if state == nil {
		state = map[string]any{}
	}

	cursor := nodePointer
	resuming := cursor != ""
	if cursor == "" {
		cursor = def.Start
	}

	for steps := 0; steps < maxStepsPerEvent; steps++ {
		node := def.Nodes[cursor]
		if node == nil {
			return Faulted(fmt.Sprintf("flow %s: node %q not found", def.ID, cursor)), nil
		}
		switch node.Component {
		case "set":
			var payload map[string]any
			if len(node.Payload) > 0 {
				if err := json.Unmarshal(node.Payload, &payload); err != nil {
					return Faulted(fmt.Sprintf("flow %s: node %s: bad payload: %v", def.ID, cursor, err)), nil
				}
			}
			for k, v := range payload {
				state[k] = v
			}
		case "prompt":
			if !resuming {
				// first visit: suspend here, the next event is the answer
				return Suspended(cursor, state), nil
			}
			resuming = false
			var payload struct {
				Var string `json:"var"`
			}
			if len(node.Payload) > 0 {
				if err := json.Unmarshal(node.Payload, &payload); err != nil {
					return Faulted(fmt.Sprintf("flow %s: node %s: bad payload: %v", def.ID, cursor, err)), nil
				}
			}
			if payload.Var != "" && env != nil {
				state[payload.Var] = env.Text
			}
		case "reply":
			var payload struct {
				Text string `json:"text"`
			}
			if len(node.Payload) > 0 {
				if err := json.Unmarshal(node.Payload, &payload); err != nil {
					return Faulted(fmt.Sprintf("flow %s: node %s: bad payload: %v", def.ID, cursor, err)), nil
				}
			}
			return Completed(&Outcome{FlowID: def.ID, Message: expand(payload.Text, state)}), nil
		default:
			return Faulted(fmt.Sprintf("flow %s: node %s: unknown component %q", def.ID, cursor, node.Component)), nil
		}

		next, done := nextNode(node)
		if done {
			return Completed(&Outcome{FlowID: def.ID}), nil
		}
		if next == "" {
			return Faulted(fmt.Sprintf("flow %s: node %s has no route", def.ID, cursor)), nil
		}
		cursor = next
	}
	return Faulted(fmt.Sprintf("flow %s: step limit exceeded", def.ID)), nil
}

func nextNode(node *Node) (next string, done bool) {
	for _, route := range node.Routes {
		if route.Out {
			return "", true
		}
		if route.To != "" {
			return route.To, false
		}
	}
	return "", false
}

func expand(text string, state map[string]any) string {
	return os.Expand(text, func(name string) string {
		if v, ok := state[name]; ok {
			return fmt.Sprint(v)
		}
		return ""
	})
}
