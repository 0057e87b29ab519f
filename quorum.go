// Package quorum provides a high-level façade over the session manager and
// its collaborators (participant registry, execution gateway, storage,
// audit sink & logging) enabling rapid construction of moderated
// multi-agent roundtables. Most applications interact with this package by:
//  1. Creating a Quorum via New() (optionally overriding default in-memory collaborators)
//  2. Registering participants (personas, external agents, humans)
//  3. Creating sessions and driving rounds with RunTurn
//
// The façade delegates orchestration to session.Manager while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply a durable storage
// implementation (see the vault package), a real audit sink and a
// structured logger.
package quorum

import (
	"context"
	"sync"
	"time"

	"github.com/quorum-ai/quorum/audit"
	"github.com/quorum-ai/quorum/config"
	"github.com/quorum-ai/quorum/core"
	"github.com/quorum-ai/quorum/gateway"
	"github.com/quorum-ai/quorum/logging"
	"github.com/quorum-ai/quorum/memory"
	"github.com/quorum-ai/quorum/moderator"
	"github.com/quorum-ai/quorum/registry"
	"github.com/quorum-ai/quorum/session"
	"github.com/quorum-ai/quorum/turn"
)

// writableRegistry is the registry surface the façade needs: core read
// access plus registration. registry.InMemoryRegistry satisfies it.
type writableRegistry interface {
	core.Registry
	Register(p core.Participant)
}

// Options configures a Quorum instance.
type Options struct {
	// Config carries the runtime tuning knobs. Defaults to config.Default();
	// use config.Load() to honor QUORUM_* environment variables.
	Config config.Config

	// Registry tracks known participants. Defaults to an in-memory registry.
	Registry writableRegistry

	// Gateway executes participant invocations. Defaults to an empty
	// gateway.Mux; route participants before running turns.
	Gateway core.Gateway

	// Storage backs the memory relay. Defaults to in-memory storage; see
	// vault.Open for the durable BadgerDB implementation.
	Storage core.Storage

	// AuditSink receives every audit event. Defaults to an in-memory sink.
	AuditSink core.AuditSink

	// Strategy overrides the moderator's scoring strategy.
	Strategy moderator.Strategy

	// Signals optionally carries inbound Kill/Override commands from the
	// security sink. The façade consumes it until Close.
	Signals <-chan core.Signal

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Quorum is the high-level façade aggregating the session manager and its
// collaborators.
type Quorum struct {
	registry    writableRegistry
	gatewayMux  *gateway.Mux
	auditRelay  *audit.Relay
	memoryRelay *memory.Relay
	manager     *session.Manager
	logger      logging.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a Quorum instance with optional overrides. Any unset
// collaborator is initialized with an in-memory implementation. Callers
// must Close the instance to flush the audit relay.
func New(optFns ...func(o *Options)) *Quorum {
	opts := Options{
		Config:    config.Default(),
		Registry:  registry.NewInMemoryRegistry(),
		Storage:   memory.NewInMemoryStorage(),
		AuditSink: audit.NewInMemorySink(),
		Strategy:  moderator.LexicalStrategy{},
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var mux *gateway.Mux
	gw := opts.Gateway
	if gw == nil {
		mux = gateway.NewMux(nil)
		gw = mux
	}

	auditRelay := audit.NewRelay(opts.AuditSink, func(o *audit.Options) {
		o.MaxRetries = opts.Config.AuditMaxRetries
		o.BaseBackoff = opts.Config.AuditBaseBackoff
		o.MaxBackoff = opts.Config.AuditMaxBackoff
		o.Logger = opts.Logger
	})
	memoryRelay := memory.NewRelay(opts.Storage, func(o *memory.Options) {
		o.MaxRetries = opts.Config.MemoryMaxRetries
		o.Logger = opts.Logger
	})
	mod := moderator.New(moderator.WithStrategy(opts.Strategy))
	coordinator := turn.NewCoordinator(gw, mod, auditRelay, func(o *turn.Options) {
		o.Logger = opts.Logger
	})
	manager := session.NewManager(opts.Registry, coordinator, mod, auditRelay, memoryRelay, func(o *session.Options) {
		o.DefaultDeadline = opts.Config.DefaultDeadline
		o.DefaultSettings = core.Settings{
			FeedVerbosity:      opts.Config.FeedVerbosity,
			Weights:            core.DefaultRubricWeights(),
			InsightThreshold:   opts.Config.InsightThreshold,
			CheckpointInterval: opts.Config.CheckpointInterval,
		}
		o.Logger = opts.Logger
	})

	q := &Quorum{
		registry:    opts.Registry,
		gatewayMux:  mux,
		auditRelay:  auditRelay,
		memoryRelay: memoryRelay,
		manager:     manager,
		logger:      opts.Logger,
		done:        make(chan struct{}),
	}
	if opts.Signals != nil {
		q.wg.Add(1)
		go q.consumeSignals(opts.Signals)
	}
	return q
}

// consumeSignals dispatches inbound security-sink commands until the
// channel closes or the façade shuts down.
func (q *Quorum) consumeSignals(signals <-chan core.Signal) {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			q.manager.HandleSignal(sig)
		}
	}
}

// RegisterParticipant adds a participant to the registry.
func (q *Quorum) RegisterParticipant(p core.Participant) {
	q.registry.Register(p)
}

// Route binds a participant to a gateway on the default mux. It panics if a
// custom Gateway was supplied at construction, since routing then belongs
// to that implementation.
func (q *Quorum) Route(participantID string, gw core.Gateway) {
	if q.gatewayMux == nil {
		panic("quorum: Route requires the default gateway mux")
	}
	q.gatewayMux.Route(participantID, gw)
}

// CreateSession creates a new roundtable session.
func (q *Quorum) CreateSession(actor, topic string, participantIDs []string, settings *core.Settings) (string, error) {
	return q.manager.CreateSession(actor, topic, participantIDs, settings)
}

// UpdateParticipants adds and removes participants on an active session.
func (q *Quorum) UpdateParticipants(actor, sessionID string, add, remove []string) error {
	return q.manager.UpdateParticipants(actor, sessionID, add, remove)
}

// UpdateSettings merges a settings patch into an active session.
func (q *Quorum) UpdateSettings(actor, sessionID string, patch map[string]any) error {
	return q.manager.UpdateSettings(actor, sessionID, patch)
}

// RunTurn drives one round on a session or breakout.
func (q *Quorum) RunTurn(ctx context.Context, actor, targetID, prompt string, deadline time.Duration) (*core.TurnResult, error) {
	return q.manager.RunTurn(ctx, actor, targetID, prompt, deadline)
}

// CreateBreakout creates a nested sub-session on an active parent.
func (q *Quorum) CreateBreakout(actor, parentSessionID, topic string, subset []string) (string, error) {
	return q.manager.CreateBreakout(actor, parentSessionID, topic, subset)
}

// DissolveBreakout dissolves a breakout; its log stays addressable.
func (q *Quorum) DissolveBreakout(actor, breakoutID string) error {
	return q.manager.DissolveBreakout(actor, breakoutID)
}

// EndSession ends a session (idempotent).
func (q *Quorum) EndSession(actor, sessionID string) error {
	return q.manager.EndSession(actor, sessionID)
}

// GetLog returns the full exportable history of a session or breakout,
// hidden responses included.
func (q *Quorum) GetLog(targetID string) (core.SessionLog, error) {
	return q.manager.GetLog(targetID)
}

// Summary returns the lightweight view of one session.
func (q *Quorum) Summary(sessionID string) (core.Summary, error) {
	return q.manager.Summary(sessionID)
}

// ActiveSessions lists summaries of all active sessions.
func (q *Quorum) ActiveSessions() []core.Summary {
	return q.manager.ActiveSessions()
}

// AuditOverflow exposes audit events that exhausted their delivery retries.
func (q *Quorum) AuditOverflow() []core.AuditEvent {
	return q.auditRelay.Overflow()
}

// Close stops the signal loop and flushes the audit relay. Safe to call
// more than once.
func (q *Quorum) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
	q.auditRelay.Close()
}
