// Package conversation coordinates timelines, the temporary session, the
// completion client and the renderer behind the HTTP API.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/chatline/internal/anthropic"
	"github.com/MikeSquared-Agency/chatline/internal/chat"
	"github.com/MikeSquared-Agency/chatline/internal/ephemeral"
	"github.com/MikeSquared-Agency/chatline/internal/hermes"
	"github.com/MikeSquared-Agency/chatline/internal/regen"
	"github.com/MikeSquared-Agency/chatline/internal/render"
	"github.com/MikeSquared-Agency/chatline/internal/timeline"
)

var ErrEmptyContent = errors.New("conversation: message content is empty")

// Completer is the model backend. *anthropic.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (anthropic.Reply, error)
}

// Publisher emits lifecycle events. *hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

type Service struct {
	registry  *timeline.Registry
	session   *ephemeral.Session
	completer Completer
	renderer  *render.Renderer
	publisher Publisher
	logger    *slog.Logger
	system    string
	maxTokens int
	now       func() time.Time

	mu            sync.Mutex
	orchestrators map[string]*regen.Orchestrator[uuid.UUID]
	temp          *ephemeral.Handle
	tempRegen     *regen.Orchestrator[int]
}

// Opts holds parameters for creating a Service.
type Opts struct {
	Registry     *timeline.Registry
	Session      *ephemeral.Session
	Completer    Completer
	Renderer     *render.Renderer
	Publisher    Publisher // optional
	Logger       *slog.Logger
	SystemPrompt string
	MaxTokens    int // defaults to 4096
	Now          func() time.Time
}

func New(opts Opts) *Service {
	s := &Service{
		registry:      opts.Registry,
		session:       opts.Session,
		completer:     opts.Completer,
		renderer:      opts.Renderer,
		publisher:     opts.Publisher,
		logger:        opts.Logger,
		system:        opts.SystemPrompt,
		maxTokens:     opts.MaxTokens,
		now:           opts.Now,
		orchestrators: make(map[string]*regen.Orchestrator[uuid.UUID]),
		tempRegen:     regen.New[int](opts.Logger),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.renderer == nil {
		s.renderer = render.New(s.logger)
	}
	if s.maxTokens <= 0 {
		s.maxTokens = 4096
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) orchestrator(conversationID string) *regen.Orchestrator[uuid.UUID] {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orchestrators[conversationID]
	if !ok {
		o = regen.New[uuid.UUID](s.logger.With("conversation_id", conversationID))
		s.orchestrators[conversationID] = o
	}
	return o
}

// lookupOrchestrator returns the orchestrator of a conversation that has
// regenerated before, without creating one.
func (s *Service) lookupOrchestrator(conversationID string) (*regen.Orchestrator[uuid.UUID], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orchestrators[conversationID]
	return o, ok
}

func (s *Service) open(ctx context.Context, conversationID string) (*timeline.Timeline, error) {
	t, err := s.registry.Open(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("open conversation %s: %w", conversationID, err)
	}
	return t, nil
}

// Messages returns the display view of a conversation.
func (s *Service) Messages(ctx context.Context, conversationID string) ([]MessageView, error) {
	t, err := s.open(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.views(t.Messages()), nil
}

// Days returns the conversation bucketed by local calendar day.
func (s *Service) Days(ctx context.Context, conversationID string) ([]DayView, error) {
	t, err := s.open(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	groups := t.GroupedByDay()
	out := make([]DayView, 0, len(groups))
	for _, g := range groups {
		out = append(out, DayView{Label: g.Label, Day: g.Day, Messages: s.views(g.Messages)})
	}
	return out, nil
}

// Send appends a user message and the assistant's reply to it. If the
// completion fails the user message stays.
func (s *Service) Send(ctx context.Context, conversationID, content, agentType string) (Exchange, error) {
	if strings.TrimSpace(content) == "" {
		return Exchange{}, ErrEmptyContent
	}
	t, err := s.open(ctx, conversationID)
	if err != nil {
		return Exchange{}, err
	}

	user := t.Append(ctx, chat.Message{
		Role:      chat.RoleUser,
		Content:   content,
		Status:    chat.StatusComplete,
		AgentType: agentType,
	})
	ex := Exchange{User: s.view(user)}

	var reply chat.Message
	if err := s.durableProvider(t, agentType, &reply).Complete(ctx, content, false); err != nil {
		return ex, &chat.CompletionError{Err: err}
	}
	v := s.view(reply)
	ex.Assistant = &v
	return ex, nil
}

// DeleteMessage removes one message. Unknown ids report false.
func (s *Service) DeleteMessage(ctx context.Context, conversationID string, id uuid.UUID) (bool, error) {
	t, err := s.open(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if !t.DeleteMessage(ctx, id) {
		return false, nil
	}
	s.publish(hermes.SubjectMessageDeleted, hermes.MessageDeleted{
		ConversationID: conversationID,
		Message:        id.String(),
		Timestamp:      s.now().UTC(),
	})
	return true, nil
}

// DeleteAfter removes the message at id and everything after it.
func (s *Service) DeleteAfter(ctx context.Context, conversationID string, id uuid.UUID) (chat.Cascade, error) {
	t, err := s.open(ctx, conversationID)
	if err != nil {
		return chat.Cascade{}, err
	}
	res, err := t.DeleteMessagesAfter(ctx, id)
	if err != nil {
		return chat.Cascade{}, fmt.Errorf("delete after: %w", err)
	}
	s.publish(hermes.SubjectTimelineTruncated, hermes.TimelineTruncated{
		ConversationID:  conversationID,
		From:            id.String(),
		Removed:         res.Removed,
		IsSingleMessage: res.IsSingleMessage,
		Timestamp:       s.now().UTC(),
	})
	return res, nil
}

// Regenerate replaces the message at id, and everything after it, with a
// fresh response to the nearest preceding user message.
func (s *Service) Regenerate(ctx context.Context, conversationID string, id uuid.UUID) (Regeneration, error) {
	t, err := s.open(ctx, conversationID)
	if err != nil {
		return Regeneration{}, err
	}
	agentType := ""
	if m, err := t.Get(id); err == nil {
		agentType = m.AgentType
	}

	var reply chat.Message
	tr, err := s.orchestrator(conversationID).Regenerate(ctx, t, id, s.durableProvider(t, agentType, &reply))
	if err != nil {
		var cerr *chat.CompletionError
		if errors.As(err, &cerr) {
			return Regeneration{Truncation: tr}, err
		}
		return Regeneration{}, err
	}

	s.publish(hermes.SubjectTimelineRegenerated, hermes.TimelineRegenerated{
		ConversationID: conversationID,
		Removed:        tr.Removed,
		Model:          reply.Model,
		ResponseTimeMs: reply.ResponseTimeMs,
		ResponseTokens: reply.ResponseTokens,
		Timestamp:      s.now().UTC(),
	})
	v := s.view(reply)
	return Regeneration{Truncation: tr, Message: &v}, nil
}

// Regenerating reports whether a regeneration is in flight for the
// conversation.
func (s *Service) Regenerating(conversationID string) bool {
	o, ok := s.lookupOrchestrator(conversationID)
	return ok && o.Regenerating()
}

// Detach clears the conversation's regenerating indicator when its view
// goes away. An in-flight completion still lands in the timeline.
func (s *Service) Detach(conversationID string) {
	if o, ok := s.lookupOrchestrator(conversationID); ok {
		o.Detach()
	}
}

// durableProvider appends the completion to t and stores it in out.
func (s *Service) durableProvider(t *timeline.Timeline, agentType string, out *chat.Message) regen.Provider {
	return regen.ProviderFunc(func(ctx context.Context, prompt string, isSingleMessage bool) error {
		var history []anthropic.Message
		if !isSingleMessage {
			history = durableHistory(t.Messages())
		}
		reply, elapsed, err := s.complete(ctx, prompt, history)
		if err != nil {
			return err
		}
		*out = t.Append(ctx, chat.Message{
			Role:           chat.RoleAssistant,
			Content:        reply.Text,
			Status:         chat.StatusComplete,
			ResponseTimeMs: elapsed.Milliseconds(),
			ResponseTokens: tokens(reply.OutputTokens),
			Model:          reply.Model,
			AgentType:      agentType,
		})
		return nil
	})
}

// complete sends history, or just prompt when history is empty, and times
// the call.
func (s *Service) complete(ctx context.Context, prompt string, history []anthropic.Message) (anthropic.Reply, time.Duration, error) {
	if s.completer == nil {
		return anthropic.Reply{}, 0, errors.New("no completion backend configured")
	}
	if len(history) == 0 {
		history = []anthropic.Message{{Role: string(chat.RoleUser), Content: prompt}}
	}
	start := s.now()
	reply, err := s.completer.Complete(ctx, s.system, history, s.maxTokens)
	elapsed := s.now().Sub(start)
	if err != nil {
		return anthropic.Reply{}, elapsed, fmt.Errorf("complete: %w", err)
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return reply, elapsed, nil
}

// durableHistory keeps user and assistant turns up to the last user message.
func durableHistory(msgs []chat.Message) []anthropic.Message {
	out := make([]anthropic.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == chat.RoleSystem || m.Status == chat.StatusError || m.Content == "" {
			continue
		}
		out = append(out, anthropic.Message{Role: string(m.Role), Content: m.Content})
	}
	return trimToLastUser(out)
}

func trimToLastUser(history []anthropic.Message) []anthropic.Message {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == string(chat.RoleUser) {
			return history[:i+1]
		}
	}
	return nil
}

func tokens(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

func (s *Service) publish(subject string, ev any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(subject, ev); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
