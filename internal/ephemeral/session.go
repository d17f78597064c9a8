package ephemeral

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/chatline/internal/chat"
)

// DefaultBudget is the lifetime of a temporary chat, in seconds.
const DefaultBudget = 1800

var ErrSessionEnded = errors.New("ephemeral: session has ended")

type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeTemporary Mode = "temporary"
)

// Reason names the path that ended a session.
type Reason string

const (
	ReasonExpired   Reason = "expired"
	ReasonExited    Reason = "exited"
	ReasonTeardown  Reason = "teardown"
	ReasonPreempted Reason = "preempted"
)

// Ended is emitted exactly once per activation.
type Ended struct {
	Owner     string    `json:"owner"`
	Reason    Reason    `json:"reason"`
	Remaining int       `json:"remaining_seconds"`
	At        time.Time `json:"at"`
}

// Notifier receives session-ended notifications.
type Notifier interface {
	SessionEnded(ctx context.Context, ev Ended)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(ctx context.Context, ev Ended)

func (f NotifierFunc) SessionEnded(ctx context.Context, ev Ended) { f(ctx, ev) }

// Ticker delivers the once-per-second session tick.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers. Tests swap in a manual clock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker { return systemTicker{time.NewTicker(d)} }

type systemTicker struct{ t *time.Ticker }

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// Status is a point-in-time view of the session.
type Status struct {
	Active           bool   `json:"active"`
	Mode             Mode   `json:"mode"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Owner            string `json:"owner,omitempty"`
	Messages         int    `json:"messages"`
}

// Session is the lifecycle wrapper of the temporary chat. A process holds a
// single Session and passes it to whoever may enter temporary mode;
// ownership is taken with Acquire and given back through the Handle.
type Session struct {
	clock    Clock
	budget   int
	notifier Notifier
	logger   *slog.Logger

	timeline Timeline

	mu        sync.RWMutex
	active    bool
	mode      Mode
	remaining int
	owner     string
	epoch     uint64
	ended     bool // teardown already ran for epoch
	cancel    context.CancelFunc
}

// SessionOpts holds parameters for creating a Session.
type SessionOpts struct {
	Budget   int // seconds; defaults to DefaultBudget
	Notifier Notifier
	Logger   *slog.Logger
	Clock    Clock // defaults to the system clock
}

func NewSession(opts SessionOpts) *Session {
	s := &Session{
		clock:    opts.Clock,
		budget:   opts.Budget,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		mode:     ModeNormal,
		ended:    true,
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.budget <= 0 {
		s.budget = DefaultBudget
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Acquire enters temporary mode on behalf of owner. Any session still held by
// another owner is torn down first.
func (s *Session) Acquire(owner string) *Handle {
	s.mu.RLock()
	prev, wasActive := s.epoch, s.active
	s.mu.RUnlock()
	if wasActive {
		s.end(prev, ReasonPreempted)
	}

	s.mu.Lock()
	if s.active {
		// Lost a race with another Acquire; its session goes too.
		s.mu.Unlock()
		s.end(s.currentEpoch(), ReasonPreempted)
		return s.Acquire(owner)
	}
	s.epoch++
	epoch := s.epoch
	s.active = true
	s.mode = ModeTemporary
	s.remaining = s.budget
	s.owner = owner
	s.ended = false
	s.timeline.reset()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	ticker := s.clock.NewTicker(time.Second)
	s.mu.Unlock()

	go s.run(ctx, epoch, ticker)

	s.logger.Info("temporary session started", "owner", owner, "budget_seconds", s.budget)
	return &Handle{session: s, epoch: epoch, owner: owner}
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Active:           s.active,
		Mode:             s.mode,
		RemainingSeconds: s.remaining,
		Owner:            s.owner,
		Messages:         s.timeline.Len(),
	}
}

func (s *Session) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *Session) run(ctx context.Context, epoch uint64, ticker Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if s.tick(epoch) {
				return
			}
		}
	}
}

// tick decrements the counter and reports whether the session is over.
func (s *Session) tick(epoch uint64) bool {
	s.mu.Lock()
	if epoch != s.epoch || !s.active {
		s.mu.Unlock()
		return true
	}
	if s.mode != ModeTemporary {
		s.mu.Unlock()
		return false
	}
	s.remaining--
	expired := s.remaining <= 0
	if expired {
		s.remaining = 0
	}
	s.mu.Unlock()

	if expired {
		s.end(epoch, ReasonExpired)
	}
	return expired
}

// end runs the teardown for epoch at most once: clear the timeline, cancel
// the tick and notify. It reports whether this call performed the teardown.
func (s *Session) end(epoch uint64, reason Reason) bool {
	s.mu.Lock()
	if epoch != s.epoch || s.ended {
		s.mu.Unlock()
		return false
	}
	s.ended = true
	s.active = false
	s.mode = ModeNormal
	s.timeline.reset()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	ev := Ended{
		Owner:     s.owner,
		Reason:    reason,
		Remaining: s.remaining,
		At:        s.clock.Now(),
	}
	s.owner = ""
	s.mu.Unlock()

	s.logger.Info("temporary session ended",
		"owner", ev.Owner,
		"reason", ev.Reason,
		"remaining_seconds", ev.Remaining,
	)
	if s.notifier != nil {
		s.notifier.SessionEnded(context.Background(), ev)
	}
	return true
}

// Handle is one owner's claim on the Session. It stops working once its
// activation has ended, whatever the path.
type Handle struct {
	session *Session
	epoch   uint64
	owner   string
}

func (h *Handle) Owner() string { return h.owner }

// Exit leaves temporary mode at the user's request.
func (h *Handle) Exit() bool {
	return h.session.end(h.epoch, ReasonExited)
}

// Release tears the session down when the owning view goes away. Safe to
// call after the session already ended.
func (h *Handle) Release() bool {
	return h.session.end(h.epoch, ReasonTeardown)
}

// Active reports whether this handle still owns a running session.
func (h *Handle) Active() bool {
	h.session.mu.RLock()
	defer h.session.mu.RUnlock()
	return h.liveLocked()
}

func (h *Handle) liveLocked() bool {
	return h.session.epoch == h.epoch && h.session.active
}

// with runs fn against the timeline while holding the session so the
// activation cannot end half way through.
func (h *Handle) with(fn func(t *Timeline) error) error {
	h.session.mu.RLock()
	defer h.session.mu.RUnlock()
	if !h.liveLocked() {
		return ErrSessionEnded
	}
	return fn(&h.session.timeline)
}

func (h *Handle) Messages() ([]Message, error) {
	var out []Message
	err := h.with(func(t *Timeline) error {
		out = t.Messages()
		return nil
	})
	return out, err
}

func (h *Handle) Append(msg Message) (int, error) {
	idx := -1
	err := h.with(func(t *Timeline) error {
		var err error
		idx, err = t.Append(msg)
		return err
	})
	return idx, err
}

func (h *Handle) DeleteAt(i int) (bool, error) {
	var ok bool
	err := h.with(func(t *Timeline) error {
		ok = t.DeleteAt(i)
		return nil
	})
	return ok, err
}

func (h *Handle) DeleteAfter(i int) (chat.Cascade, error) {
	var res chat.Cascade
	err := h.with(func(t *Timeline) error {
		var err error
		res, err = t.DeleteAfter(i)
		return err
	})
	return res, err
}

func (h *Handle) TruncateForRegeneration(ctx context.Context, i int, locate chat.Locator) (chat.Truncation, error) {
	var tr chat.Truncation
	err := h.with(func(t *Timeline) error {
		var err error
		tr, err = t.TruncateForRegeneration(ctx, i, locate)
		return err
	})
	return tr, err
}
