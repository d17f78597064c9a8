package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/chatline/internal/anthropic"
	"github.com/MikeSquared-Agency/chatline/internal/chat"
	"github.com/MikeSquared-Agency/chatline/internal/ephemeral"
	"github.com/MikeSquared-Agency/chatline/internal/hermes"
	"github.com/MikeSquared-Agency/chatline/internal/regen"
)

// EnterTemporary starts a temporary chat for owner, ending any other one.
func (s *Service) EnterTemporary(owner string) ephemeral.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempRegen.Detach()
	s.temp = s.session.Acquire(owner)
	s.tempRegen = regen.New[int](s.logger.With("owner", owner))
	return s.session.Status()
}

// ExitTemporary ends the temporary chat. It reports false when none was
// running.
func (s *Service) ExitTemporary() bool {
	s.mu.Lock()
	h := s.temp
	s.temp = nil
	s.tempRegen.Detach()
	s.mu.Unlock()

	if h == nil {
		return false
	}
	return h.Exit()
}

// Close releases the temporary chat, if any. Called on shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	h := s.temp
	s.temp = nil
	s.mu.Unlock()
	if h != nil {
		h.Release()
	}
}

func (s *Service) TemporaryStatus() ephemeral.Status {
	return s.session.Status()
}

func (s *Service) TemporaryRegenerating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempRegen.Regenerating()
}

func (s *Service) handle() (*ephemeral.Handle, *regen.Orchestrator[int], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.temp == nil || !s.temp.Active() {
		return nil, nil, ephemeral.ErrSessionEnded
	}
	return s.temp, s.tempRegen, nil
}

func (s *Service) TemporaryMessages() ([]TemporaryView, error) {
	h, _, err := s.handle()
	if err != nil {
		return nil, err
	}
	msgs, err := h.Messages()
	if err != nil {
		return nil, err
	}
	return s.temporaryViews(msgs), nil
}

// SendTemporary appends a user message to the temporary chat and completes
// it. The reply is discarded if the session ends while the call is pending.
func (s *Service) SendTemporary(ctx context.Context, content string) (TemporaryExchange, error) {
	if strings.TrimSpace(content) == "" {
		return TemporaryExchange{}, ErrEmptyContent
	}
	h, _, err := s.handle()
	if err != nil {
		return TemporaryExchange{}, err
	}
	user := ephemeral.Message{Role: chat.RoleUser, Content: content}
	idx, err := h.Append(user)
	if err != nil {
		return TemporaryExchange{}, fmt.Errorf("send temporary: %w", err)
	}
	ex := TemporaryExchange{User: s.temporaryView(idx, user)}

	var reply TemporaryView
	if err := s.temporaryProvider(h, &reply).Complete(ctx, content, false); err != nil {
		if errors.Is(err, ephemeral.ErrSessionEnded) {
			return ex, err
		}
		return ex, &chat.CompletionError{Err: err}
	}
	ex.Assistant = &reply
	return ex, nil
}

func (s *Service) DeleteTemporaryAt(i int) (bool, error) {
	h, _, err := s.handle()
	if err != nil {
		return false, err
	}
	ok, err := h.DeleteAt(i)
	if err != nil || !ok {
		return false, err
	}
	s.publish(hermes.SubjectMessageDeleted, hermes.MessageDeleted{
		Temporary: true,
		Message:   fmt.Sprintf("index %d", i),
		Timestamp: s.now().UTC(),
	})
	return true, nil
}

func (s *Service) DeleteTemporaryAfter(i int) (chat.Cascade, error) {
	h, _, err := s.handle()
	if err != nil {
		return chat.Cascade{}, err
	}
	res, err := h.DeleteAfter(i)
	if err != nil {
		return chat.Cascade{}, fmt.Errorf("delete after: %w", err)
	}
	s.publish(hermes.SubjectTimelineTruncated, hermes.TimelineTruncated{
		Temporary:       true,
		From:            fmt.Sprintf("index %d", i),
		Removed:         res.Removed,
		IsSingleMessage: res.IsSingleMessage,
		Timestamp:       s.now().UTC(),
	})
	return res, nil
}

func (s *Service) RegenerateTemporary(ctx context.Context, i int) (TemporaryRegeneration, error) {
	h, o, err := s.handle()
	if err != nil {
		return TemporaryRegeneration{}, err
	}

	var reply TemporaryView
	tr, err := o.Regenerate(ctx, h, i, s.temporaryProvider(h, &reply))
	if err != nil {
		var cerr *chat.CompletionError
		if errors.As(err, &cerr) {
			return TemporaryRegeneration{Truncation: tr}, err
		}
		return TemporaryRegeneration{}, err
	}

	s.publish(hermes.SubjectTimelineRegenerated, hermes.TimelineRegenerated{
		Temporary:      true,
		Removed:        tr.Removed,
		Model:          reply.Model,
		ResponseTimeMs: reply.ResponseTimeMs,
		ResponseTokens: reply.ResponseTokens,
		Timestamp:      s.now().UTC(),
	})
	return TemporaryRegeneration{Truncation: tr, Message: &reply}, nil
}

// temporaryProvider appends the completion to the temporary chat and stores
// its view in out.
func (s *Service) temporaryProvider(h *ephemeral.Handle, out *TemporaryView) regen.Provider {
	return regen.ProviderFunc(func(ctx context.Context, prompt string, isSingleMessage bool) error {
		var history []anthropic.Message
		if !isSingleMessage {
			msgs, err := h.Messages()
			if err != nil {
				return err
			}
			history = temporaryHistory(msgs)
		}
		reply, elapsed, err := s.complete(ctx, prompt, history)
		if err != nil {
			return err
		}
		msg := ephemeral.Message{
			Role:           chat.RoleAssistant,
			Content:        reply.Text,
			ResponseTimeMs: elapsed.Milliseconds(),
			ResponseTokens: tokens(reply.OutputTokens),
			Model:          reply.Model,
		}
		idx, err := h.Append(msg)
		if err != nil {
			s.logger.Info("temporary chat ended before the reply arrived", "owner", h.Owner())
			return err
		}
		*out = s.temporaryView(idx, msg)
		return nil
	})
}

func temporaryHistory(msgs []ephemeral.Message) []anthropic.Message {
	out := make([]anthropic.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Content == "" {
			continue
		}
		out = append(out, anthropic.Message{Role: string(m.Role), Content: m.Content})
	}
	return trimToLastUser(out)
}
