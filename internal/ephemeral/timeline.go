// Package ephemeral implements the temporary chat: an in-memory timeline
// owned by a self-expiring session.
package ephemeral

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/MikeSquared-Agency/chatline/internal/chat"
)

var ErrInvalidRole = errors.New("ephemeral: role must be user or assistant")

// Message is the reduced message shape kept by a temporary chat.
type Message struct {
	Content        string    `json:"content"`
	Role           chat.Role `json:"role"`
	ResponseTimeMs int64     `json:"response_time_ms,omitempty"`
	ResponseTokens *int      `json:"response_tokens,omitempty"`
	Model          string    `json:"model,omitempty"`
}

// Timeline is an index-addressed, never persisted message sequence. Only the
// owning Session may clear it wholesale.
type Timeline struct {
	mu       sync.RWMutex
	messages []Message
}

func (t *Timeline) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Append adds msg at the end and returns its index.
func (t *Timeline) Append(msg Message) (int, error) {
	if msg.Role != chat.RoleUser && msg.Role != chat.RoleAssistant {
		return -1, fmt.Errorf("%w: %q", ErrInvalidRole, msg.Role)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
	return len(t.messages) - 1, nil
}

// DeleteAt removes the message at index i. Out of range is a no-op.
func (t *Timeline) DeleteAt(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.messages) {
		return false
	}
	t.messages = append(t.messages[:i:i], t.messages[i+1:]...)
	return true
}

// DeleteAfter removes the message at index i and everything after it.
func (t *Timeline) DeleteAfter(i int) (chat.Cascade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.messages) {
		return chat.Cascade{}, &chat.NotFoundError{Ref: "index " + strconv.Itoa(i)}
	}
	return t.cutLocked(i), nil
}

// TruncateForRegeneration is the index-addressed counterpart of the durable
// timeline's operation of the same name.
func (t *Timeline) TruncateForRegeneration(_ context.Context, i int, locate chat.Locator) (chat.Truncation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.messages) {
		return chat.Truncation{}, &chat.NotFoundError{Ref: "index " + strconv.Itoa(i)}
	}
	u, err := locate(t.rolesLocked(), i)
	if err != nil {
		return chat.Truncation{}, err
	}
	prompt := t.messages[u].Content
	return chat.Truncation{Cascade: t.cutLocked(i), Anchor: u, Prompt: prompt}, nil
}

func (t *Timeline) reset() {
	t.mu.Lock()
	t.messages = nil
	t.mu.Unlock()
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

func (t *Timeline) rolesLocked() []chat.Role {
	roles := make([]chat.Role, len(t.messages))
	for i := range t.messages {
		roles[i] = t.messages[i].Role
	}
	return roles
}
