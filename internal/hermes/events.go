package hermes

import "time"

const (
	SubjectSessionEnded        = "chat.session.ended"
	SubjectTimelineTruncated   = "chat.timeline.truncated"
	SubjectMessageDeleted      = "chat.timeline.message_deleted"
	SubjectTimelineRegenerated = "chat.timeline.regenerated"
)

// SessionEnded is emitted once per temporary session activation.
type SessionEnded struct {
	Owner            string    `json:"owner"`
	Reason           string    `json:"reason"`
	RemainingSeconds int       `json:"remaining_seconds"`
	EndedAt          time.Time `json:"ended_at"`
}

// TimelineTruncated is emitted after a cascading delete. ConversationID is
// empty and Temporary is true for the temporary session timeline.
type TimelineTruncated struct {
	ConversationID  string    `json:"conversation_id,omitempty"`
	Temporary       bool      `json:"temporary"`
	From            string    `json:"from"`
	Removed         int       `json:"removed"`
	IsSingleMessage bool      `json:"is_single_message"`
	Timestamp       time.Time `json:"timestamp"`
}

// MessageDeleted is emitted when a single message is removed.
type MessageDeleted struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	Temporary      bool      `json:"temporary"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
}

// TimelineRegenerated is emitted when a regenerated response lands.
type TimelineRegenerated struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	Temporary      bool      `json:"temporary"`
	Removed        int       `json:"removed"`
	Model          string    `json:"model"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	ResponseTokens *int      `json:"response_tokens,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
