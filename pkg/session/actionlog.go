package session

import (
	"time"

	"github.com/google/uuid"
)

// ActionType classifies a player-initiated action for the audit trail.
type ActionType string

const (
	ActionChat         ActionType = "chat"
	ActionPhysicalExam ActionType = "physical_exam"
	ActionLabOrder     ActionType = "lab_order"
	ActionLabView      ActionType = "lab_view"
	ActionImaging      ActionType = "pocus"
	ActionMedication   ActionType = "medication"
	ActionHandoff      ActionType = "handoff"
	ActionGameStart    ActionType = "game_start"
	ActionGameEnd      ActionType = "game_end"
)

// Action is one audit-trail entry. The log feeds the debrief and the
// handoff grader's action summary; gameplay logic never reads it.
type Action struct {
	ID        uuid.UUID      `json:"id"`
	Type      ActionType     `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    string         `json:"detail"`
	Data      map[string]any `json:"data,omitempty"`
}

func newAction(t ActionType, detail string, data map[string]any) Action {
	return Action{
		ID:        uuid.New(),
		Type:      t,
		Timestamp: time.Now(),
		Detail:    detail,
		Data:      data,
	}
}
