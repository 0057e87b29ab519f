// Package turn drives one round of a roundtable: broadcast the prompt to
// every active participant concurrently, collect replies under a single
// deadline, hand the batch to the moderator and close the turn.
//
// The coordinator is stateless with respect to sessions; the session
// manager snapshots the participant set, serializes rounds per target and
// owns the resulting turn history.
package turn

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/quorum-ai/quorum/audit"
	"github.com/quorum-ai/quorum/core"
	"github.com/quorum-ai/quorum/logging"
	"github.com/quorum-ai/quorum/moderator"
)

// Request describes one round to run. The participant slice is the
// immutable snapshot taken by the caller at dispatch time.
type Request struct {
	TargetID         string
	Number           int
	Prompt           string
	Actor            string
	Deadline         time.Duration
	Participants     []core.Participant
	Weights          core.RubricWeights
	FeedVerbosity    string
	InsightThreshold float64
}

// Options configures a Coordinator.
type Options struct {
	// Logger receives round diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Coordinator fans a prompt out to participants through the execution
// gateway and moderates the collected batch. It is safe for concurrent use
// across distinct targets; per-target serialization is the caller's job.
type Coordinator struct {
	gateway   core.Gateway
	moderator *moderator.Moderator
	relay     *audit.Relay
	logger    logging.Logger

	discardMu sync.Mutex
	discarded []core.Response
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(gw core.Gateway, mod *moderator.Moderator, relay *audit.Relay, optFns ...func(o *Options)) *Coordinator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Coordinator{gateway: gw, moderator: mod, relay: relay, logger: opts.Logger}
}

// invocation is the outcome of one participant's gateway call.
type invocation struct {
	response core.Response
}

// callResult carries a raw gateway reply between the call sub-goroutine and
// its classifier.
type callResult struct {
	res *core.InvokeResult
	err error
}

// Run executes one round. It blocks until every participant has completed
// or the round deadline passes, whichever comes first, then closes and
// moderates the turn. A single participant's failure never aborts the
// round; the round fails outright only when no participant returned a
// usable response, reported as RoundEmpty.
//
// Cancelling ctx (session end, breakout dissolve, kill signal) cancels all
// still-pending invocations. A reply landing after cancellation is recorded
// in the coordinator's discard log, never in the closed turn.
func (c *Coordinator) Run(ctx context.Context, req Request) (*core.Turn, *core.TurnResult, error) {
	started := time.Now().UTC()
	turn := &core.Turn{
		Number:   req.Number,
		Prompt:   req.Prompt,
		Started:  started,
		Deadline: started.Add(req.Deadline),
	}

	roundCtx, cancel := context.WithDeadline(ctx, turn.Deadline)
	defer cancel()

	results := make(chan invocation, len(req.Participants))
	var wg sync.WaitGroup
	for _, p := range req.Participants {
		wg.Add(1)
		go func(p core.Participant) {
			defer wg.Done()
			results <- c.invoke(roundCtx, p, req.Prompt)
		}(p)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Arrival order is the raw insertion order; the moderated priority
	// order lives in Ranking.
	for inv := range results {
		turn.Responses = append(turn.Responses, inv.response)
	}
	turn.Closed = time.Now().UTC()

	timeouts, errs, usable := tally(turn.Responses)
	if usable == 0 {
		c.auditEmpty(req, turn, timeouts, errs)
		return nil, nil, core.NewError(core.CodeRoundEmpty, "no participant returned a usable response in turn %d", req.Number)
	}

	ranking, err := c.moderator.Score(req.Prompt, turn.Responses, req.Weights)
	if err != nil {
		return nil, nil, err
	}
	turn.Ranking = ranking
	c.moderator.Surface(turn.Responses, ranking, req.FeedVerbosity)
	turn.Regenerate = c.moderator.ShouldRegenerate(turn.Responses, req.InsightThreshold)

	top := ""
	if len(ranking) > 0 {
		if r := turn.Response(ranking[0]); r != nil {
			top = r.ParticipantID
		}
	}
	c.logger.Info("turn closed target_id=%s turn=%d participants=%d timeouts=%d errors=%d", req.TargetID, req.Number, len(req.Participants), timeouts, errs)

	result := &core.TurnResult{
		TurnNumber:   turn.Number,
		Responses:    append([]core.Response{}, turn.Responses...),
		Timeouts:     timeouts,
		Errors:       errs,
		TopScored:    top,
		Regenerate:   turn.Regenerate,
		Participants: len(req.Participants),
	}
	return turn, result, nil
}

// invoke runs one participant's gateway call bounded by the round context
// and classifies the outcome. The call itself runs in a sub-goroutine so a
// gateway that ignores cancellation cannot hold the round open past the
// deadline; its eventual reply goes to the discard log.
func (c *Coordinator) invoke(ctx context.Context, p core.Participant, prompt string) invocation {
	start := time.Now().UTC()
	base := core.Response{
		ID:            core.NewID(),
		ParticipantID: p.ID,
		SubmittedAt:   start,
	}

	done := make(chan callResult, 1)
	go func() {
		res, err := c.gateway.Invoke(ctx, p.ID, prompt)
		done <- callResult{res: res, err: err}
	}()

	select {
	case cr := <-done:
		base.SubmittedAt = time.Now().UTC()
		base.Latency = base.SubmittedAt.Sub(start)
		switch {
		case cr.err == nil && cr.res != nil:
			base.Outcome = core.OutcomeResponded
			base.Content = cr.res.Content
			base.SelfConfidence = cr.res.SelfConfidence
			base.References = cr.res.References
		case errors.Is(cr.err, context.DeadlineExceeded):
			base.Outcome = core.OutcomeTimeout
		case errors.Is(cr.err, context.Canceled):
			base.Outcome = core.OutcomeDiscarded
		default:
			base.Outcome = core.OutcomeError
			if cr.err != nil {
				base.Metadata = map[string]string{"error": cr.err.Error()}
			} else {
				base.Metadata = map[string]string{"error": "gateway returned no result"}
			}
		}
		return invocation{response: base}

	case <-ctx.Done():
		base.SubmittedAt = time.Now().UTC()
		base.Latency = base.SubmittedAt.Sub(start)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			base.Outcome = core.OutcomeTimeout
		} else {
			base.Outcome = core.OutcomeDiscarded
		}
		// Collect the straggler's eventual reply off-turn.
		go c.collectLate(done, p.ID)
		return invocation{response: base}
	}
}

// collectLate records a reply that arrived after its turn closed. It is
// kept for the exportable discard log but never applied to session state.
func (c *Coordinator) collectLate(done <-chan callResult, participantID string) {
	cr := <-done
	if cr.err != nil || cr.res == nil {
		return
	}
	late := core.Response{
		ID:            core.NewID(),
		ParticipantID: participantID,
		Outcome:       core.OutcomeDiscarded,
		Content:       cr.res.Content,
		SubmittedAt:   time.Now().UTC(),
	}
	c.discardMu.Lock()
	c.discarded = append(c.discarded, late)
	c.discardMu.Unlock()
	c.logger.Debug("late reply discarded participant_id=%s", participantID)
}

// Discarded returns a copy of replies that completed after their turn was
// cancelled or closed.
func (c *Coordinator) Discarded() []core.Response {
	c.discardMu.Lock()
	defer c.discardMu.Unlock()
	out := make([]core.Response, len(c.discarded))
	copy(out, c.discarded)
	return out
}

// auditEmpty records a round that failed outright. Committed rounds are
// audited by the session manager once the turn has been applied to history,
// so a round discarded between close and commit never leaves a success
// event behind.
func (c *Coordinator) auditEmpty(req Request, turn *core.Turn, timeouts, errs int) {
	if c.relay == nil {
		return
	}
	ev := core.NewAuditEvent("turn", "turn.run", req.Actor, req.TargetID)
	ev.Status = core.AuditFailure
	ev.Reason = "no usable response"
	ev.Detail = map[string]string{
		"turn":         strconv.Itoa(turn.Number),
		"participants": strconv.Itoa(len(req.Participants)),
		"timeouts":     strconv.Itoa(timeouts),
		"errors":       strconv.Itoa(errs),
	}
	c.relay.Emit(ev)
}

func tally(responses []core.Response) (timeouts, errs, usable int) {
	for _, r := range responses {
		switch r.Outcome {
		case core.OutcomeTimeout, core.OutcomeWithdrawn:
			timeouts++
		case core.OutcomeError:
			errs++
		case core.OutcomeResponded:
			usable++
		}
	}
	return
}
