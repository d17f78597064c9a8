package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/chatline/internal/chat"
)

type sendRequest struct {
	Content   string `json:"content"`
	AgentType string `json:"agent_type,omitempty"`
}

// GET /api/v1/conversations/{convID}/messages
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.svc.Messages(r.Context(), chi.URLParam(r, "convID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}

// GET /api/v1/conversations/{convID}/days
func (s *Server) listDays(w http.ResponseWriter, r *http.Request) {
	days, err := s.svc.Days(r.Context(), chi.URLParam(r, "convID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// POST /api/v1/conversations/{convID}/messages
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ex, err := s.svc.Send(r.Context(), chi.URLParam(r, "convID"), req.Content, req.AgentType)
	if err != nil {
		if isCompletionFailure(err) {
			writePartial(w, r, err, ex)
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ex)
}

// DELETE /api/v1/conversations/{convID}/messages/{msgID}
func (s *Server) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := s.svc.DeleteMessage(r.Context(), chi.URLParam(r, "convID"), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// POST /api/v1/conversations/{convID}/messages/{msgID}/truncate
func (s *Server) truncate(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.DeleteAfter(r.Context(), chi.URLParam(r, "convID"), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/v1/conversations/{convID}/messages/{msgID}/regenerate
func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.Regenerate(r.Context(), chi.URLParam(r, "convID"), id)
	if err != nil {
		if isCompletionFailure(err) {
			writePartial(w, r, err, res)
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/v1/conversations/{convID}/regenerating
func (s *Server) regenerating(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"regenerating": s.svc.Regenerating(chi.URLParam(r, "convID")),
	})
}

// DELETE /api/v1/conversations/{convID}/regenerating
func (s *Server) detach(w http.ResponseWriter, r *http.Request) {
	s.svc.Detach(chi.URLParam(r, "convID"))
	w.WriteHeader(http.StatusNoContent)
}

type renderRequest struct {
	Content string `json:"content"`
}

// POST /api/v1/render
func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Preview(req.Content))
}

func isCompletionFailure(err error) bool {
	var cerr *chat.CompletionError
	return errors.As(err, &cerr) && statusFor(err) == http.StatusBadGateway
}
