// Package regen replaces an assistant response, and everything after it, by
// re-running the completion provider on the user turn that triggered it.
package regen

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/MikeSquared-Agency/chatline/internal/chat"
)

// Provider produces new assistant messages from a prompt. Implementations
// append the result to the conversation they were built for.
type Provider interface {
	Complete(ctx context.Context, prompt string, isSingleMessage bool) error
}

// ProviderFunc adapts a function to a Provider.
type ProviderFunc func(ctx context.Context, prompt string, isSingleMessage bool) error

func (f ProviderFunc) Complete(ctx context.Context, prompt string, isSingleMessage bool) error {
	return f(ctx, prompt, isSingleMessage)
}

// Conversation is a timeline addressed by positions of type P. Truncation
// must locate the anchor, cut the sequence and read the prompt as one atomic
// step.
type Conversation[P any] interface {
	TruncateForRegeneration(ctx context.Context, pos P, locate chat.Locator) (chat.Truncation, error)
}

// PrecedingUser checks that pos holds an assistant message, then scans
// strictly backward from pos-1 for a user message.
func PrecedingUser(roles []chat.Role, pos int) (int, error) {
	if pos < 0 || pos >= len(roles) {
		return -1, &chat.NotFoundError{Ref: "position " + strconv.Itoa(pos)}
	}
	if roles[pos] != chat.RoleAssistant {
		return -1, chat.ErrNotAssistantMessage
	}
	for i := pos - 1; i >= 0; i-- {
		if roles[i] == chat.RoleUser {
			return i, nil
		}
	}
	return -1, chat.ErrNoPrecedingUserMessage
}

// Orchestrator runs regenerations for one view and exposes its
// "regenerating" indicator. The indicator stays on while any provider call
// started since the last Detach is pending.
type Orchestrator[P any] struct {
	logger *slog.Logger

	mu       sync.Mutex
	gen      uint64
	inFlight int
}

func New[P any](logger *slog.Logger) *Orchestrator[P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator[P]{logger: logger}
}

// Regenerating reports whether a provider call is in flight.
func (o *Orchestrator[P]) Regenerating() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight > 0
}

// Detach clears the indicator without touching an in-flight provider call.
// Calls already pending no longer count once they settle. Used when the
// owning view goes away.
func (o *Orchestrator[P]) Detach() {
	o.mu.Lock()
	o.gen++
	o.inFlight = 0
	o.mu.Unlock()
}

func (o *Orchestrator[P]) begin() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight++
	return o.gen
}

func (o *Orchestrator[P]) settle(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen == o.gen {
		o.inFlight--
	}
}

// Regenerate truncates conv at pos and asks provider for a new response to
// the nearest preceding user message. A provider failure leaves the
// conversation truncated.
func (o *Orchestrator[P]) Regenerate(ctx context.Context, conv Conversation[P], pos P, provider Provider) (chat.Truncation, error) {
	tr, err := conv.TruncateForRegeneration(ctx, pos, PrecedingUser)
	if err != nil {
		return chat.Truncation{}, fmt.Errorf("regenerate: %w", err)
	}

	o.logger.Info("regenerating response",
		"anchor", tr.Anchor,
		"removed", tr.Removed,
		"single_message", tr.IsSingleMessage,
	)

	gen := o.begin()
	defer o.settle(gen)

	if err := provider.Complete(ctx, tr.Prompt, tr.IsSingleMessage); err != nil {
		o.logger.Error("regeneration failed, conversation left truncated",
			"anchor", tr.Anchor,
			"error", err,
		)
		return tr, &chat.CompletionError{Err: err}
	}
	return tr, nil
}
