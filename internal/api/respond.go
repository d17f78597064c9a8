package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/chatline/internal/chat"
	"github.com/MikeSquared-Agency/chatline/internal/conversation"
	"github.com/MikeSquared-Agency/chatline/internal/ephemeral"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, conversation.ErrEmptyContent),
		errors.Is(err, ephemeral.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ephemeral.ErrSessionEnded),
		errors.Is(err, chat.ErrNoPrecedingUserMessage),
		errors.Is(err, chat.ErrNotAssistantMessage):
		return http.StatusConflict
	}
	var cerr *chat.CompletionError
	if errors.As(err, &cerr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writePartial reports a failure that still changed state, such as a
// regeneration whose completion failed after the truncation.
func writePartial(w http.ResponseWriter, r *http.Request, err error, partial any) {
	status := statusFor(err)
	slog.Warn("request partially applied", "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, map[string]any{"error": err.Error(), "result": partial})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func messageID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "msgID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return id, nil
}

func messageIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return i, nil
}
