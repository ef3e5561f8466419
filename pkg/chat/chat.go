package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/icusim/icu-sim/pkg/scenario"
)

const (
	RoleNurse  = "nurse"  // virtual ICU nurse (NLG collaborator)
	RoleUser   = "user"   // the learner
	RoleSystem = "system" // order confirmations, exam results, notices
)

// Message is a single entry in a session's transcript. Order is append
// order; the timestamp is for display only and never drives ordering.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a transcript entry with a fresh id and timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Request is a chat turn sent to the nurse NLG collaborator.
type Request struct {
	SessionID           uuid.UUID               `json:"session_id"`
	Message             string                  `json:"message"`
	HistoryContext      scenario.HistoryContext `json:"history_context"`
	ConversationHistory []Message               `json:"conversation_history,omitempty"`
}

// Response is a full (non-streaming) nurse reply.
type Response struct {
	SessionID uuid.UUID `json:"session_id,omitempty"`
	Reply     string    `json:"reply,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func (r *Request) Validate() error {
	if r.SessionID == uuid.Nil {
		return fmt.Errorf("session_id is required")
	}
	if r.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return nil
}

// TurnHistory returns the prior conversation with system-role entries
// removed, the shape the NLG collaborator accepts as turn history.
func TurnHistory(messages []Message) []Message {
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		turns = append(turns, m)
	}
	return turns
}
