package conversation

import (
	"github.com/MikeSquared-Agency/chatline/internal/chat"
	"github.com/MikeSquared-Agency/chatline/internal/ephemeral"
	"github.com/MikeSquared-Agency/chatline/internal/identity"
	"github.com/MikeSquared-Agency/chatline/internal/render"
)

// MessageView is a message ready for display.
type MessageView struct {
	chat.Message
	Avatar identity.Descriptor `json:"avatar"`
	HTML   string              `json:"html"`
}

type DayView struct {
	Label    string        `json:"label"`
	Day      string        `json:"day"`
	Messages []MessageView `json:"messages"`
}

// Exchange is a user message and, when the completion succeeded, its reply.
type Exchange struct {
	User      MessageView  `json:"user"`
	Assistant *MessageView `json:"assistant,omitempty"`
}

type Regeneration struct {
	chat.Truncation
	Message *MessageView `json:"message,omitempty"`
}

// TemporaryView is a temporary chat message with its position.
type TemporaryView struct {
	Index int `json:"index"`
	ephemeral.Message
	Avatar identity.Descriptor `json:"avatar"`
	HTML   string              `json:"html"`
}

type TemporaryExchange struct {
	User      TemporaryView  `json:"user"`
	Assistant *TemporaryView `json:"assistant,omitempty"`
}

type TemporaryRegeneration struct {
	chat.Truncation
	Message *TemporaryView `json:"message,omitempty"`
}

// Preview is the result of rendering arbitrary content.
type Preview struct {
	HTML   string         `json:"html"`
	Blocks []render.Block `json:"blocks"`
}

func (s *Service) view(m chat.Message) MessageView {
	return MessageView{
		Message: m,
		Avatar:  identity.Resolve(m.Model, m.Role),
		HTML:    s.renderer.RenderMessage(m),
	}
}

func (s *Service) views(msgs []chat.Message) []MessageView {
	out := make([]MessageView, len(msgs))
	for i, m := range msgs {
		out[i] = s.view(m)
	}
	return out
}

func (s *Service) temporaryView(i int, m ephemeral.Message) TemporaryView {
	return TemporaryView{
		Index:   i,
		Message: m,
		Avatar:  identity.Resolve(m.Model, m.Role),
		HTML:    s.renderer.Render(m.Content),
	}
}

func (s *Service) temporaryViews(msgs []ephemeral.Message) []TemporaryView {
	out := make([]TemporaryView, len(msgs))
	for i, m := range msgs {
		out[i] = s.temporaryView(i, m)
	}
	return out
}

// Preview normalizes and renders content without storing it.
func (s *Service) Preview(content string) Preview {
	return Preview{
		HTML:   s.renderer.Render(content),
		Blocks: s.renderer.Classify(content),
	}
}
