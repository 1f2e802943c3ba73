// Package arbiter races a turn's real work against the dialog platform's
// fulfillment deadline. Work that misses the deadline is not abandoned: the
// arbiter answers with a "request more time" followup event and keeps the
// work running against the same result slot, so the platform's continuation
// turn can collect the result without restarting it.
package arbiter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/voxsurf/voxsurf/api/schemas"
	"github.com/voxsurf/voxsurf/internal/cursor"
)

// Handler executes the real work of one turn. Implementations must publish
// the turn's cursor through the snapshot as soon as it exists so escalation
// responses can echo the current navigational state.
type Handler interface {
	HandleTurn(ctx context.Context, turn *schemas.Turn, snap *Snapshot) *schemas.WebhookResponse
}

// Snapshot is the handler's view of the in-flight cursor, shared with the
// deadline watchdog. Publish may race with Cursor; the pointer swap is atomic.
type Snapshot struct {
	ptr atomic.Pointer[cursor.Cursor]
}

// Publish makes the cursor visible to the watchdog.
func (s *Snapshot) Publish(c *cursor.Cursor) {
	s.ptr.Store(c)
}

// Cursor returns the last published cursor, or a zero cursor if the handler
// has not gotten that far yet.
func (s *Snapshot) Cursor() *cursor.Cursor {
	if c := s.ptr.Load(); c != nil {
		return c
	}
	return &cursor.Cursor{}
}

// slot is the single-use handoff for one fresh turn's result. The handler
// goroutine performs the only write; each arbitration cycle performs at most
// one read.
type slot struct {
	ch     chan *schemas.WebhookResponse
	snap   *Snapshot
	action string
}

// Arbiter implements the turn deadline protocol, keyed by conversation
// session so concurrent conversations do not corrupt each other's slots.
type Arbiter struct {
	handler  Handler
	deadline time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	slots map[string]*slot
}

// New creates an Arbiter that answers every turn within the given deadline.
func New(handler Handler, deadline time.Duration, logger *zap.Logger) *Arbiter {
	return &Arbiter{
		handler:  handler,
		deadline: deadline,
		logger:   logger.Named("arbiter"),
		slots:    make(map[string]*slot),
	}
}

// Handle arbitrates one inbound turn. It always returns within roughly the
// configured deadline: either the handler's payload, or an escalation asking
// the platform to re-invoke with a continuation turn.
func (a *Arbiter) Handle(ctx context.Context, turn *schemas.Turn) *schemas.WebhookResponse {
	s := a.slotFor(turn)

	timer := time.NewTimer(a.deadline)
	defer timer.Stop()

	select {
	case res := <-s.ch:
		a.finish(turn.Session)
		a.logger.Info("Turn completed", zap.String("session", turn.Session),
			zap.String("action", s.action), zap.Object("cursor", s.snap.Cursor()))
		return res
	case <-timer.C:
		a.logger.Info("Deadline expired, requesting more time",
			zap.String("session", turn.Session), zap.String("action", s.action))
		return a.escalate(turn, s)
	case <-ctx.Done():
		// The platform hung up; the work keeps running for the continuation.
		a.logger.Warn("Caller gone before deadline", zap.String("session", turn.Session))
		return a.escalate(turn, s)
	}
}

// slotFor returns the slot this turn should wait on. A fresh turn allocates a
// new slot and starts the handler; a continuation reuses the pending slot and
// starts nothing, so the handler body runs exactly once per fresh turn no
// matter how many continuations probe it.
func (a *Arbiter) slotFor(turn *schemas.Turn) *slot {
	a.mu.Lock()
	defer a.mu.Unlock()

	if turn.IsContinuation() {
		if s, ok := a.slots[turn.Session]; ok {
			return s
		}
		// A continuation with no pending work: nothing was started for it on
		// this instance (restart, eviction). Register an empty slot so the
		// protocol degrades to repeated escalation instead of blocking.
		a.logger.Warn("Continuation without pending work", zap.String("session", turn.Session))
		s := &slot{
			ch:     make(chan *schemas.WebhookResponse, 1),
			snap:   &Snapshot{},
			action: strings.TrimPrefix(turn.QueryText, schemas.ContinuationPrefix),
		}
		a.slots[turn.Session] = s
		return s
	}

	if _, ok := a.slots[turn.Session]; ok {
		// A second fresh turn while work is still pending discards the old
		// slot without cancelling its handler; the orphaned write lands in an
		// unread channel. Matches the historical behavior of the protocol.
		a.logger.Warn("Discarding pending slot for new fresh turn",
			zap.String("session", turn.Session))
	}

	s := &slot{
		ch:     make(chan *schemas.WebhookResponse, 1),
		snap:   &Snapshot{},
		action: turn.Action,
	}
	a.slots[turn.Session] = s

	go a.run(turn, s)
	return s
}

// run executes the handler on its own goroutine, detached from the inbound
// request's lifetime. There is no cancellation on escalation: the result must
// survive until a continuation collects it.
func (a *Arbiter) run(turn *schemas.Turn, s *slot) {
	defer func() {
		if r := recover(); r != nil {
			// A handler panic still completes the turn, degraded to an
			// explanatory message.
			a.logger.Error("Handler panicked", zap.String("session", turn.Session),
				zap.Any("panic", r))
			s.ch <- &schemas.WebhookResponse{
				FulfillmentText: fmt.Sprintf("Something went wrong while handling %s.", s.action),
			}
		}
	}()

	s.ch <- a.handler.HandleTurn(context.Background(), turn, s.snap)
}

// escalate builds the request-more-time response, echoing the in-flight
// cursor and a continuation event name derived from the original action.
func (a *Arbiter) escalate(turn *schemas.Turn, s *slot) *schemas.WebhookResponse {
	lang := turn.LanguageCode
	if lang == "" {
		lang = "en-US"
	}
	return &schemas.WebhookResponse{
		FollowupEventInput: &schemas.FollowupEventInput{
			Name:         schemas.ContinuationPrefix + s.action,
			Parameters:   s.snap.Cursor().Params(),
			LanguageCode: lang,
		},
	}
}

// finish returns the session to a clean state once its result is delivered.
func (a *Arbiter) finish(session string) {
	a.mu.Lock()
	delete(a.slots, session)
	a.mu.Unlock()
}

// Pending reports whether the session has undelivered work. Exposed for
// operational introspection and tests.
func (a *Arbiter) Pending(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.slots[session]
	return ok
}
