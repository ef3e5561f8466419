package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icusim/icu-sim/pkg/chat"
	"github.com/icusim/icu-sim/pkg/handoff"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, handler http.HandlerFunc) *AnthropicService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewAnthropicService("test-key", "claude-test", discardLogger())
	svc.baseURL = server.URL
	return svc
}

func TestToAnthropicMessages(t *testing.T) {
	history := []chat.Message{
		chat.NewMessage(chat.RoleNurse, "Doctor, bed 3 is hypotensive."),
		chat.NewMessage(chat.RoleUser, "What are the vitals?"),
		chat.NewMessage(chat.RoleSystem, "Ordered: biochemistry"),
		chat.NewMessage(chat.RoleNurse, "BP 82/54, HR 118."),
	}

	msgs := toAnthropicMessages(history)
	require.Len(t, msgs, 3)
	assert.Equal(t, "assistant", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "BP 82/54, HR 118.", msgs[2].Content)
}

func TestChatReply(t *testing.T) {
	var gotReq AnthropicChatRequest
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := AnthropicChatResponse{
			Content: []AnthropicContentBlock{
				{Type: "text", Text: "Yes doctor, "},
				{Type: "text", Text: "right away."},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	reply, err := svc.ChatReply(context.Background(), "You are the nurse.", []chat.Message{
		chat.NewMessage(chat.RoleUser, "Start norepinephrine."),
	})
	require.NoError(t, err)
	assert.Equal(t, "Yes doctor, right away.", reply)
	assert.Equal(t, "You are the nurse.", gotReq.System)
	assert.False(t, gotReq.Stream)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
}

func TestChatReply_APIError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := svc.ChatReply(context.Background(), "", []chat.Message{
		chat.NewMessage(chat.RoleUser, "hi"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestChatReplyStream(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req AnthropicChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\n")
		fmt.Fprint(w, "data: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"He is \"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"drowsy.\"}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	})

	var got string
	err := svc.ChatReplyStream(context.Background(), "sys", []chat.Message{
		chat.NewMessage(chat.RoleUser, "How is he?"),
	}, func(text string) error {
		got += text
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "He is drowsy.", got)
}

func TestChatReplyStream_ChunkErrorAborts(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 10; i++ {
			fmt.Fprint(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"x\"}}\n\n")
		}
		fmt.Fprint(w, "data: {\"type\":\"message_stop\"}\n\n")
	})

	calls := 0
	err := svc.ChatReplyStream(context.Background(), "", []chat.Message{
		chat.NewMessage(chat.RoleUser, "hi"),
	}, func(text string) error {
		calls++
		return fmt.Errorf("client gone")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestEvaluateHandoff(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		resp := AnthropicChatResponse{
			Content: []AnthropicContentBlock{{
				Type: "text",
				Text: "Here is my evaluation:\n{\"overall\":\"excellent\",\"score\":92,\"strengths\":[\"Concise SBAR\"],\"missedPoints\":[],\"suggestions\":[],\"seniorComment\":\"Well done.\"}",
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	fb, err := svc.EvaluateHandoff(context.Background(), "grade this")
	require.NoError(t, err)
	assert.Equal(t, handoff.OverallExcellent, fb.Overall)
	assert.Equal(t, 92, fb.Score)
	assert.Equal(t, "Well done.", fb.SeniorComment)
}

func TestEvaluateHandoff_UnparseableReply(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		resp := AnthropicChatResponse{
			Content: []AnthropicContentBlock{{Type: "text", Text: "I cannot grade this."}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	_, err := svc.EvaluateHandoff(context.Background(), "grade this")
	assert.Error(t, err)
}

func TestParseFeedbackResponse(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr bool
	}{
		{
			name:  "bare JSON",
			reply: `{"overall":"good","score":75,"strengths":[],"missedPoints":[],"suggestions":[],"seniorComment":"ok"}`,
		},
		{
			name:  "fenced JSON",
			reply: "```json\n{\"overall\":\"good\",\"score\":75,\"strengths\":[],\"missedPoints\":[],\"suggestions\":[],\"seniorComment\":\"ok\"}\n```",
		},
		{
			name:    "no JSON at all",
			reply:   "Sorry, I can only answer in prose.",
			wantErr: true,
		},
		{
			name:    "invalid overall",
			reply:   `{"overall":"amazing","score":75}`,
			wantErr: true,
		},
		{
			name:    "score out of range",
			reply:   `{"overall":"good","score":150}`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fb, err := parseFeedbackResponse(tc.reply)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, fb.Valid())
		})
	}
}
