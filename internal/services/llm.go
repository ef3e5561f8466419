package services

import (
	"context"

	"github.com/icusim/icu-sim/pkg/chat"
	"github.com/icusim/icu-sim/pkg/handoff"
)

// NLGService is the language-generation collaborator behind the
// nurse chat and the handoff grader.
type NLGService interface {
	// ChatReply generates one nurse turn. history is the visible
	// conversation (nurse and user turns, no system entries).
	ChatReply(ctx context.Context, system string, history []chat.Message) (string, error)

	// ChatReplyStream generates one nurse turn incrementally,
	// calling chunk for each text fragment as it arrives. A
	// non-nil error from chunk aborts the stream.
	ChatReplyStream(ctx context.Context, system string, history []chat.Message, chunk func(text string) error) error

	// EvaluateHandoff grades a handoff report against a grading
	// prompt and returns structured feedback.
	EvaluateHandoff(ctx context.Context, prompt string) (*handoff.Feedback, error)
}
