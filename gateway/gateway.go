// Package gateway provides core.Gateway adapters for wiring participants
// into the turn coordinator without a full sandbox deployment: in-process
// personas as plain functions, canned responders for demos, and a mux that
// routes per participant.
//
// The actual sandboxing and execution of external agents lives behind the
// core.Gateway contract and is supplied by the embedding application.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/quorum-ai/quorum/core"
)

// Func adapts a plain function into a core.Gateway, the idiomatic way to
// run an in-process persona. The function receives the participant ID and
// prompt and must honor ctx cancellation for long computations.
type Func func(ctx context.Context, participantID, prompt string) (*core.InvokeResult, error)

// Invoke implements core.Gateway.
func (f Func) Invoke(ctx context.Context, participantID, prompt string) (*core.InvokeResult, error) {
	return f(ctx, participantID, prompt)
}

// Static replies with fixed content regardless of prompt. Useful for demos
// and as a placeholder participant.
type Static struct {
	Content    string
	Confidence *float64
}

// Invoke implements core.Gateway.
func (s Static) Invoke(_ context.Context, _ string, _ string) (*core.InvokeResult, error) {
	return &core.InvokeResult{Content: s.Content, SelfConfidence: s.Confidence}, nil
}

// Mux routes invocations to per-participant gateways with an optional
// fallback. It is safe for concurrent use; registration typically happens
// during setup.
type Mux struct {
	mu       sync.RWMutex
	routes   map[string]core.Gateway
	fallback core.Gateway
}

// NewMux constructs an empty Mux with an optional fallback gateway used for
// participants without a dedicated route. A nil fallback makes unrouted
// invocations fail.
func NewMux(fallback core.Gateway) *Mux {
	return &Mux{routes: make(map[string]core.Gateway), fallback: fallback}
}

// Route binds a participant ID to a gateway, replacing any previous route.
func (m *Mux) Route(participantID string, gw core.Gateway) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[participantID] = gw
}

// Invoke implements core.Gateway.
func (m *Mux) Invoke(ctx context.Context, participantID, prompt string) (*core.InvokeResult, error) {
	m.mu.RLock()
	gw, ok := m.routes[participantID]
	if !ok {
		gw = m.fallback
	}
	m.mu.RUnlock()

	if gw == nil {
		return nil, fmt.Errorf("no gateway route for participant %s", participantID)
	}
	return gw.Invoke(ctx, participantID, prompt)
}
