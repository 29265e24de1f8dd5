package model

import "context"

// CompletionRequest is everything a sub-agent hands to the language model for one turn.
type CompletionRequest struct {
	AgentID     AgentID
	SessionID   string
	Instruction string
	StateView   map[string]any
	History     []Interaction
	Message     string
	// Fields lists the keys the model may return.
	Fields []string
}

// Completion is the model's reply plus any extracted field values.
type Completion struct {
	Reply  string
	Fields map[string]any
	// CostUSD is the accumulated usage cost of the call, when known.
	CostUSD float64
}

// Completer is the opaque "complete a turn given instructions and context" capability.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompletionState is per-invocation state of the completion graph.
// It is only touched inside Eino state handlers.
type CompletionState struct {
	AgentID      AgentID
	SessionID    string
	TotalCostUSD float64
}
