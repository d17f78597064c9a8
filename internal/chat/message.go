// Package chat holds the message model shared by the durable and ephemeral
// timelines.
package chat

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Message is one turn in a conversation.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`

	// Assistant only. ResponseTimeMs is 0 when unknown.
	ResponseTimeMs int64 `json:"response_time_ms,omitempty"`
	ResponseTokens *int  `json:"response_tokens,omitempty"`

	Model     string `json:"model,omitempty"`
	AgentType string `json:"agent_type,omitempty"`

	IsImageGeneration bool   `json:"is_image_generation,omitempty"`
	ImageURL          string `json:"image_url,omitempty"`
}

// Cascade reports the outcome of a delete-after operation.
type Cascade struct {
	Removed         int  `json:"removed"`
	IsSingleMessage bool `json:"is_single_message"`
}

// Truncation is a Cascade that also carries the prompt of the user turn the
// regeneration is anchored on.
type Truncation struct {
	Cascade
	Anchor int    `json:"anchor"`
	Prompt string `json:"prompt"`
}

// Locator picks the anchor position for a regeneration of the message at pos,
// given the roles of the whole sequence.
type Locator func(roles []Role, pos int) (int, error)

// IsSingleUserTurn reports whether roles is exactly one user message.
func IsSingleUserTurn(roles []Role) bool {
	return len(roles) == 1 && roles[0] == RoleUser
}
