package api

import (
	"net/http"
)

type enterRequest struct {
	Owner string `json:"owner"`
}

// POST /api/v1/temporary
func (s *Server) enterTemporary(w http.ResponseWriter, r *http.Request) {
	var req enterRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Owner == "" {
		req.Owner = "default"
	}
	writeJSON(w, http.StatusCreated, s.svc.EnterTemporary(req.Owner))
}

// GET /api/v1/temporary
func (s *Server) temporaryStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.TemporaryStatus())
}

// DELETE /api/v1/temporary
func (s *Server) exitTemporary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ended": s.svc.ExitTemporary()})
}

// GET /api/v1/temporary/messages
func (s *Server) listTemporary(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.svc.TemporaryMessages()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}

// POST /api/v1/temporary/messages
func (s *Server) sendTemporary(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ex, err := s.svc.SendTemporary(r.Context(), req.Content)
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

// DELETE /api/v1/temporary/messages/{index}
func (s *Server) deleteTemporary(w http.ResponseWriter, r *http.Request) {
	i, err := messageIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := s.svc.DeleteTemporaryAt(i)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// POST /api/v1/temporary/messages/{index}/truncate
func (s *Server) truncateTemporary(w http.ResponseWriter, r *http.Request) {
	i, err := messageIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.DeleteTemporaryAfter(i)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/v1/temporary/messages/{index}/regenerate
func (s *Server) regenerateTemporary(w http.ResponseWriter, r *http.Request) {
	i, err := messageIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.RegenerateTemporary(r.Context(), i)
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

// GET /api/v1/temporary/regenerating
func (s *Server) temporaryRegenerating(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"regenerating": s.svc.TemporaryRegenerating()})
}
