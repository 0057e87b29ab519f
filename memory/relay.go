package memory

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/quorum-ai/quorum/core"
	"github.com/quorum-ai/quorum/logging"
)

// SchemaVersion tags every persisted record so future readers can migrate
// old layouts forward.
const SchemaVersion = 1

// Record is the persisted state of one session or breakout.
type Record struct {
	SchemaVersion int            `json:"schema_version"`
	ID            string         `json:"id"`
	ParentID      string         `json:"parent_id,omitempty"`
	Topic         string         `json:"topic"`
	State         core.LifecycleState `json:"state"`
	Participants  []string       `json:"participants"`
	Turns         []core.Turn    `json:"turns"`
	AuditRefs     []string       `json:"audit_refs,omitempty"`
	WrittenAt     time.Time      `json:"written_at"`
}

// Options configures a Relay.
type Options struct {
	// MaxRetries is the number of additional store attempts after the
	// first failure.
	MaxRetries int
	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration
	// Logger receives writeback diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Relay persists transcripts through a core.Storage. Writebacks at the same
// (entity, round) overwrite one record, so retries after a crash never
// duplicate history.
type Relay struct {
	storage     core.Storage
	logger      logging.Logger
	maxRetries  int
	baseBackoff time.Duration

	mu      sync.Mutex
	written map[string]struct{}
}

// NewRelay constructs a Relay over the given storage.
func NewRelay(storage core.Storage, optFns ...func(o *Options)) *Relay {
	opts := Options{
		MaxRetries:  3,
		BaseBackoff: 50 * time.Millisecond,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Relay{
		storage:     storage,
		logger:      opts.Logger,
		maxRetries:  opts.MaxRetries,
		baseBackoff: opts.BaseBackoff,
		written:     make(map[string]struct{}),
	}
}

// Key is the storage key for an entity's writeback at a given round.
func Key(entityID string, round int) string {
	return fmt.Sprintf("transcript:%s:%d", entityID, round)
}

// Writeback persists the full log of a session or breakout, keyed by the
// entity ID and its current round. A checkpoint writeback already performed
// for the same key is a no-op; a final writeback (the log's state is no
// longer active) always overwrites, so an entity that ends on a
// checkpointed round still persists its closing state and audit refs.
// Transient storage failures are retried with backoff; the final error is
// returned only once retries are exhausted.
func (r *Relay) Writeback(entityID string, round int, log core.SessionLog) error {
	key := Key(entityID, round)

	r.mu.Lock()
	if _, done := r.written[key]; done && log.State == core.StateActive {
		r.mu.Unlock()
		r.logger.Debug("writeback already performed key=%s", key)
		return nil
	}
	r.mu.Unlock()

	rec := Record{
		SchemaVersion: SchemaVersion,
		ID:            log.ID,
		ParentID:      log.ParentID,
		Topic:         log.Topic,
		State:         log.State,
		Participants:  log.Participants,
		Turns:         log.Turns,
		AuditRefs:     log.AuditRefs,
		WrittenAt:     time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode transcript record: %w", err)
	}

	var storeErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(r.baseBackoff << (attempt - 1))
		}
		if storeErr = r.storage.Store(key, data); storeErr == nil {
			r.mu.Lock()
			r.written[key] = struct{}{}
			r.mu.Unlock()
			r.logger.Debug("transcript written key=%s turns=%d", key, len(log.Turns))
			return nil
		}
		r.logger.Warn("transcript writeback failed key=%s attempt=%d err=%v", key, attempt+1, storeErr)
	}
	return fmt.Errorf("writeback exhausted retries for %s: %w", key, storeErr)
}

// Fetch loads a previously written record.
func (r *Relay) Fetch(entityID string, round int) (*Record, error) {
	data, err := r.storage.Fetch(Key(entityID, round))
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode transcript record: %w", err)
	}
	return &rec, nil
}
