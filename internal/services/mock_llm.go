package services

import (
	"context"
	"sync"

	"github.com/icusim/icu-sim/pkg/chat"
	"github.com/icusim/icu-sim/pkg/handoff"
)

// MockNLG is a mock implementation of NLGService for testing.
type MockNLG struct {
	ChatReplyFunc       func(ctx context.Context, system string, history []chat.Message) (string, error)
	ChatReplyStreamFunc func(ctx context.Context, system string, history []chat.Message, chunk func(string) error) error
	EvaluateHandoffFunc func(ctx context.Context, prompt string) (*handoff.Feedback, error)

	// Track calls for testing
	ChatReplyCalls       []ChatReplyCall
	EvaluateHandoffCalls []string

	mu sync.Mutex // protects all fields above
}

type ChatReplyCall struct {
	System  string
	History []chat.Message
}

func NewMockNLG() *MockNLG {
	return &MockNLG{
		ChatReplyCalls:       make([]ChatReplyCall, 0),
		EvaluateHandoffCalls: make([]string, 0),
	}
}

var _ NLGService = (*MockNLG)(nil)

func (m *MockNLG) ChatReply(ctx context.Context, system string, history []chat.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ChatReplyCalls = append(m.ChatReplyCalls, ChatReplyCall{System: system, History: history})

	if m.ChatReplyFunc != nil {
		return m.ChatReplyFunc(ctx, system, history)
	}
	return "Mock nurse reply", nil
}

func (m *MockNLG) ChatReplyStream(ctx context.Context, system string, history []chat.Message, chunk func(string) error) error {
	m.mu.Lock()
	fn := m.ChatReplyStreamFunc
	m.ChatReplyCalls = append(m.ChatReplyCalls, ChatReplyCall{System: system, History: history})
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, system, history, chunk)
	}
	for _, piece := range []string{"Mock ", "nurse ", "reply"} {
		if err := chunk(piece); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockNLG) EvaluateHandoff(ctx context.Context, prompt string) (*handoff.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EvaluateHandoffCalls = append(m.EvaluateHandoffCalls, prompt)

	if m.EvaluateHandoffFunc != nil {
		return m.EvaluateHandoffFunc(ctx, prompt)
	}
	return &handoff.Feedback{
		Overall:       handoff.OverallGood,
		Score:         80,
		Strengths:     []string{"Clear structure"},
		MissedPoints:  []string{},
		Suggestions:   []string{},
		SeniorComment: "Solid handoff.",
	}, nil
}

// SetChatReplyError sets up the mock to fail chat generation.
func (m *MockNLG) SetChatReplyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatReplyFunc = func(ctx context.Context, system string, history []chat.Message) (string, error) {
		return "", err
	}
	m.ChatReplyStreamFunc = func(ctx context.Context, system string, history []chat.Message, chunk func(string) error) error {
		return err
	}
}

// SetEvaluateHandoffError sets up the mock to fail grading.
func (m *MockNLG) SetEvaluateHandoffError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EvaluateHandoffFunc = func(ctx context.Context, prompt string) (*handoff.Feedback, error) {
		return nil, err
	}
}
