package timeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry opens timelines by conversation id, loading each one from the
// store only once.
type Registry struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	loc    *time.Location

	mu        sync.Mutex
	timelines map[string]*Timeline
}

func NewRegistry(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:     store,
		logger:    logger,
		now:       time.Now,
		timelines: make(map[string]*Timeline),
	}
}

// WithClock overrides the clock and day-boundary location handed to timelines
// opened afterwards.
func (r *Registry) WithClock(now func() time.Time, loc *time.Location) *Registry {
	r.now = now
	r.loc = loc
	return r
}

// Open returns the cached timeline for conversationID, loading it on first
// use.
func (r *Registry) Open(ctx context.Context, conversationID string) (*Timeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timelines[conversationID]; ok {
		return t, nil
	}
	t, err := Load(ctx, Opts{
		ConversationID: conversationID,
		Store:          r.store,
		Logger:         r.logger,
		Now:            r.now,
		Location:       r.loc,
	})
	if err != nil {
		return nil, err
	}
	r.timelines[conversationID] = t
	r.logger.Debug("timeline opened", "conversation_id", conversationID, "messages", t.Len())
	return t, nil
}
