package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/icusim/icu-sim/internal/services"
	"github.com/icusim/icu-sim/internal/storage"
	"github.com/icusim/icu-sim/pkg/chat"
	"github.com/icusim/icu-sim/pkg/prompts"
	"github.com/icusim/icu-sim/pkg/session"
)

// ChatHandler handles nurse chat turns. Clients that accept
// text/event-stream get the reply incrementally; everyone else gets
// a single JSON response.
type ChatHandler struct {
	storage storage.Storage
	nlg     services.NLGService
	logger  *slog.Logger
}

func NewChatHandler(storage storage.Storage, nlg services.NLGService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		storage: storage,
		nlg:     nlg,
		logger:  logger,
	}
}

// ServeHTTP handles POST /v1/chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid chat request body", "error", err)
		writeJSON(w, h.logger, http.StatusBadRequest, chat.Response{
			Error: "Invalid request body. Expected JSON with 'session_id' and 'message' fields.",
		})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest, chat.Response{Error: err.Error()})
		return
	}

	s, err := h.storage.LoadSession(r.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			writeJSON(w, h.logger, http.StatusNotFound, chat.Response{Error: "Session not found"})
			return
		}
		h.logger.Error("Failed to load session for chat", "session_id", req.SessionID, "error", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, chat.Response{Error: "Failed to load session"})
		return
	}

	sc, err := h.storage.GetScenario(r.Context(), s.ScenarioID)
	if err != nil {
		h.logger.Error("Failed to load scenario for chat", "scenario_id", s.ScenarioID, "error", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, chat.Response{Error: "Failed to load scenario"})
		return
	}

	if err := s.AppendUserMessage(req.Message); err != nil {
		if session.IsWrongPhase(err) {
			writeJSON(w, h.logger, http.StatusConflict, chat.Response{Error: err.Error()})
			return
		}
		writeJSON(w, h.logger, http.StatusBadRequest, chat.Response{Error: err.Error()})
		return
	}
	if err := h.storage.SaveSession(r.Context(), s); err != nil {
		h.logger.Error("Failed to save session", "session_id", s.ID, "error", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, chat.Response{Error: "Failed to save session"})
		return
	}

	system := prompts.BuildNurseSystem(sc.HistoryContext)

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.serveStream(w, r, s, system)
		return
	}

	reply, err := h.nlg.ChatReply(r.Context(), system, s.Messages)
	if err != nil {
		h.logger.Error("Failed to generate nurse reply", "session_id", s.ID, "error", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, chat.Response{
			Error: "Failed to generate response. Please try again.",
		})
		return
	}

	h.commitReply(r, s.ID, reply)

	writeJSON(w, h.logger, http.StatusOK, chat.Response{
		SessionID: s.ID,
		Reply:     reply,
	})
}

// commitReply appends a nurse reply to the session as it exists NOW,
// not as it was when the NLG call started. A reply landing after the
// case ended or the session was reset is discarded; saving the
// pre-call snapshot would resurrect superseded state.
func (h *ChatHandler) commitReply(r *http.Request, id uuid.UUID, reply string) {
	fresh, err := h.storage.LoadSession(r.Context(), id)
	if err != nil {
		h.logger.Warn("Session gone after nurse reply, transcript not updated",
			"session_id", id, "error", err)
		return
	}
	if err := fresh.AppendNurseMessage(reply); err != nil {
		h.logger.Warn("Nurse reply dropped", "session_id", id, "error", err)
		return
	}
	if err := h.storage.SaveSession(r.Context(), fresh); err != nil {
		h.logger.Error("Failed to save session after reply", "session_id", id, "error", err)
	}
}

// serveStream writes the nurse reply as SSE frames: one JSON chunk
// per data line, then a [DONE] sentinel. The full reply is appended
// to the transcript when the stream completes.
func (h *ChatHandler) serveStream(w http.ResponseWriter, r *http.Request, s *session.Session, system string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, h.logger, http.StatusInternalServerError, chat.Response{Error: "Streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	var buf chat.StreamBuffer
	err := h.nlg.ChatReplyStream(r.Context(), system, s.Messages, func(text string) error {
		buf.Append(text)
		frame, err := json.Marshal(chat.StreamChunk{Text: text})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		h.logger.Error("Nurse reply stream failed", "session_id", s.ID, "error", err)
		fmt.Fprintf(w, "data: %s\n\n", chat.StreamDone)
		flusher.Flush()
		return
	}
	buf.Finish()

	fmt.Fprintf(w, "data: %s\n\n", chat.StreamDone)
	flusher.Flush()

	if buf.String() == "" {
		return
	}
	h.commitReply(r, s.ID, buf.String())
}
