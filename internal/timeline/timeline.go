// Package timeline is the durable, ordered message history of a
// conversation.
package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/chatline/internal/chat"
)

// Store is the key-value persistence the timeline is read from at
// construction and written to after every mutation. A timeline that becomes
// empty is deleted rather than written.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Key returns the store key for a conversation.
func Key(conversationID string) string {
	return "timeline:" + conversationID
}

// Timeline owns the ordered messages of one conversation. All methods are
// safe for concurrent use and each one is atomic.
type Timeline struct {
	conversationID string
	store          Store
	logger         *slog.Logger
	now            func() time.Time
	loc            *time.Location

	mu       sync.RWMutex
	messages []chat.Message
}

// Opts holds parameters for loading a Timeline.
type Opts struct {
	ConversationID string
	Store          Store
	Logger         *slog.Logger
	Now            func() time.Time // defaults to time.Now
	Location       *time.Location   // day boundaries; defaults to time.Local
}

// Load reads the conversation from the store and returns its Timeline. A
// conversation the store has never seen starts empty.
func Load(ctx context.Context, opts Opts) (*Timeline, error) {
	if opts.ConversationID == "" {
		return nil, fmt.Errorf("timeline: conversation id is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("timeline: store is required")
	}
	t := &Timeline{
		conversationID: opts.ConversationID,
		store:          opts.Store,
		logger:         opts.Logger,
		now:            opts.Now,
		loc:            opts.Location,
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.logger = t.logger.With("conversation_id", opts.ConversationID)
	if t.now == nil {
		t.now = time.Now
	}
	if t.loc == nil {
		t.loc = time.Local
	}

	raw, ok, err := opts.Store.Get(ctx, Key(opts.ConversationID))
	if err != nil {
		return nil, fmt.Errorf("timeline: load %s: %w", opts.ConversationID, err)
	}
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &t.messages); err != nil {
			return nil, fmt.Errorf("timeline: decode %s: %w", opts.ConversationID, err)
		}
	}
	return t, nil
}

func (t *Timeline) ConversationID() string {
	return t.conversationID
}

// Messages returns a copy of the messages in conversation order.
func (t *Timeline) Messages() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]chat.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Get returns the message with the given id.
func (t *Timeline) Get(id uuid.UUID) (chat.Message, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i := t.indexOf(id)
	if i < 0 {
		return chat.Message{}, &chat.NotFoundError{Ref: id.String()}
	}
	return t.messages[i], nil
}

// Append adds msg at the end. The caller guarantees a fresh id; a zero id or
// timestamp is filled in.
func (t *Timeline) Append(ctx context.Context, msg chat.Message) chat.Message {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = t.now()
	}
	if msg.Status == "" {
		msg.Status = chat.StatusComplete
	}

	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.persistLocked(ctx)
	t.mu.Unlock()

	return msg
}

// DeleteMessage removes the message with the given id. Unknown ids are a
// no-op and leave the store untouched. It reports whether a message was
// removed.
func (t *Timeline) DeleteMessage(ctx context.Context, id uuid.UUID) bool {
	t.mu.Lock()
	i := t.indexOf(id)
	if i < 0 {
		t.mu.Unlock()
		return false
	}
	t.messages = append(t.messages[:i:i], t.messages[i+1:]...)
	t.persistLocked(ctx)
	t.mu.Unlock()

	return true
}

// DeleteMessagesAfter removes the message with the given id and everything
// after it.
func (t *Timeline) DeleteMessagesAfter(ctx context.Context, id uuid.UUID) (chat.Cascade, error) {
	t.mu.Lock()
	i := t.indexOf(id)
	if i < 0 {
		t.mu.Unlock()
		return chat.Cascade{}, &chat.NotFoundError{Ref: id.String()}
	}
	res := t.cutLocked(i)
	t.persistLocked(ctx)
	t.mu.Unlock()

	return res, nil
}

// TruncateForRegeneration locates the anchor for the message with the given
// id, cuts the timeline at that message and returns the anchor's content.
// Nothing is removed when locate fails.
func (t *Timeline) TruncateForRegeneration(ctx context.Context, id uuid.UUID, locate chat.Locator) (chat.Truncation, error) {
	t.mu.Lock()
	i := t.indexOf(id)
	if i < 0 {
		t.mu.Unlock()
		return chat.Truncation{}, &chat.NotFoundError{Ref: id.String()}
	}
	u, err := locate(t.rolesLocked(), i)
	if err != nil {
		t.mu.Unlock()
		return chat.Truncation{}, err
	}
	prompt := t.messages[u].Content
	res := t.cutLocked(i)
	t.persistLocked(ctx)
	t.mu.Unlock()

	return chat.Truncation{Cascade: res, Anchor: u, Prompt: prompt}, nil
}

func (t *Timeline) cutLocked(i int) chat.Cascade {
	removed := len(t.messages) - i
	clear(t.messages[i:])
	t.messages = t.messages[:i]
	return chat.Cascade{
		Removed:         removed,
		IsSingleMessage: chat.IsSingleUserTurn(t.rolesLocked()),
	}
}

func (t *Timeline) indexOf(id uuid.UUID) int {
	for i := range t.messages {
		if t.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Timeline) rolesLocked() []chat.Role {
	roles := make([]chat.Role, len(t.messages))
	for i := range t.messages {
		roles[i] = t.messages[i].Role
	}
	return roles
}

// persistLocked writes the current messages while the write lock is held, so
// snapshots reach the store in mutation order. Failures are logged and never
// change the in-memory timeline.
func (t *Timeline) persistLocked(ctx context.Context) {
	key := Key(t.conversationID)
	if len(t.messages) == 0 {
		if err := t.store.Delete(ctx, key); err != nil {
			t.logger.Warn("delete empty timeline failed", "error", err)
		}
		return
	}
	b, err := json.Marshal(t.messages)
	if err != nil {
		t.logger.Error("encode timeline", "error", err)
		return
	}
	if err := t.store.Put(ctx, key, b); err != nil {
		t.logger.Warn("persist timeline failed", "error", err)
	}
}
