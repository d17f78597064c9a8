package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MikeSquared-Agency/chatline/internal/anthropic"
	"github.com/MikeSquared-Agency/chatline/internal/chat"
	"github.com/MikeSquared-Agency/chatline/internal/conversation"
	"github.com/MikeSquared-Agency/chatline/internal/ephemeral"
	"github.com/MikeSquared-Agency/chatline/internal/store"
	"github.com/MikeSquared-Agency/chatline/internal/timeline"
)

type stubCompleter struct {
	mu  sync.Mutex
	err error
}

func (c *stubCompleter) Complete(_ context.Context, _ string, msgs []anthropic.Message, _ int) (anthropic.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return anthropic.Reply{}, c.err
	}
	return anthropic.Reply{Text: "echo: " + msgs[len(msgs)-1].Content, Model: "claude-test", OutputTokens: 3}, nil
}

func (c *stubCompleter) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func newTestServer(t *testing.T, apiToken string) (*Server, *stubCompleter) {
	t.Helper()
	completer := &stubCompleter{}
	svc := conversation.New(conversation.Opts{
		Registry:  timeline.NewRegistry(store.NewMemory(), nil),
		Session:   ephemeral.NewSession(ephemeral.SessionOpts{}),
		Completer: completer,
	})
	t.Cleanup(svc.Close)
	return NewServer(8760, apiToken, svc), completer
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

type messageBody struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
	HTML    string `json:"html"`
	Index   int    `json:"index"`
	Avatar  struct {
		Family string `json:"family"`
	} `json:"avatar"`
}

type exchangeBody struct {
	User      messageBody  `json:"user"`
	Assistant *messageBody `json:"assistant"`
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(t, srv, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	decodeBody(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(t, srv, "GET", "/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSendAndList(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(t, srv, "POST", "/api/v1/conversations/c1/messages", sendRequest{Content: "hello *there*"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
	var ex exchangeBody
	decodeBody(t, w, &ex)
	if ex.Assistant == nil || ex.Assistant.Content != "echo: hello *there*" {
		t.Fatalf("unexpected exchange %+v", ex)
	}
	if ex.Assistant.Avatar.Family != "anthropic" {
		t.Errorf("expected anthropic avatar, got %q", ex.Assistant.Avatar.Family)
	}

	w = do(t, srv, "GET", "/api/v1/conversations/c1/messages", nil)
	var list struct {
		Messages []messageBody `json:"messages"`
		Count    int           `json:"count"`
	}
	decodeBody(t, w, &list)
	if list.Count != 2 {
		t.Fatalf("expected 2 messages, got %d", list.Count)
	}
	if !strings.Contains(list.Messages[1].HTML, "<em>there</em>") {
		t.Errorf("expected rendered html, got %q", list.Messages[1].HTML)
	}

	w = do(t, srv, "GET", "/api/v1/conversations/c1/days", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"label":"Today"`) {
		t.Errorf("expected today bucket, got %d %s", w.Code, w.Body)
	}
}

func TestSend_EmptyContent(t *testing.T) {
	srv, _ := newTestServer(t, "")
	w := do(t, srv, "POST", "/api/v1/conversations/c1/messages", sendRequest{Content: ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSend_InvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t, "")
	req := httptest.NewRequest("POST", "/api/v1/conversations/c1/messages", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestRegenerateFlow(t *testing.T) {
	srv, completer := newTestServer(t, "")

	w := do(t, srv, "POST", "/api/v1/conversations/c1/messages", sendRequest{Content: "q"})
	var ex exchangeBody
	decodeBody(t, w, &ex)

	w = do(t, srv, "POST", "/api/v1/conversations/c1/messages/"+ex.Assistant.ID+"/regenerate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var res struct {
		Removed         int          `json:"removed"`
		IsSingleMessage bool         `json:"is_single_message"`
		Message         *messageBody `json:"message"`
	}
	decodeBody(t, w, &res)
	if res.Removed != 1 || !res.IsSingleMessage || res.Message == nil {
		t.Errorf("unexpected regeneration %+v", res)
	}

	w = do(t, srv, "POST", "/api/v1/conversations/c1/messages/"+ex.User.ID+"/regenerate", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for a user message, got %d", w.Code)
	}

	completer.fail(errors.New("upstream down"))
	w = do(t, srv, "POST", "/api/v1/conversations/c1/messages/"+res.Message.ID+"/regenerate", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var failed struct {
		Error  string `json:"error"`
		Result struct {
			Removed int `json:"removed"`
		} `json:"result"`
	}
	decodeBody(t, w, &failed)
	if failed.Error == "" || failed.Result.Removed != 1 {
		t.Errorf("expected truncation reported with error, got %+v", failed)
	}

	w = do(t, srv, "GET", "/api/v1/conversations/c1/regenerating", nil)
	if !strings.Contains(w.Body.String(), `"regenerating":false`) {
		t.Errorf("expected indicator cleared, got %s", w.Body)
	}
	w = do(t, srv, "DELETE", "/api/v1/conversations/c1/regenerating", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}

func TestMessageRoutes_Errors(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(t, srv, "DELETE", "/api/v1/conversations/c1/messages/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", w.Code)
	}

	w = do(t, srv, "POST", "/api/v1/conversations/c1/messages/00000000-0000-0000-0000-000000000001/truncate", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", w.Code)
	}

	w = do(t, srv, "DELETE", "/api/v1/conversations/c1/messages/00000000-0000-0000-0000-000000000001", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"deleted":false`) {
		t.Errorf("expected no-op delete, got %d %s", w.Code, w.Body)
	}
}

func TestRegenerate_UserMessageRejected(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(t, srv, "POST", "/api/v1/conversations/c1/messages", sendRequest{Content: "q1"})
	var first exchangeBody
	decodeBody(t, w, &first)
	w = do(t, srv, "POST", "/api/v1/conversations/c1/messages", sendRequest{Content: "q2"})
	var second exchangeBody
	decodeBody(t, w, &second)

	w = do(t, srv, "POST", "/api/v1/conversations/c1/messages/"+second.User.ID+"/regenerate", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), chat.ErrNotAssistantMessage.Error()) {
		t.Errorf("expected not-assistant error, got %s", w.Body)
	}

	w = do(t, srv, "GET", "/api/v1/conversations/c1/messages", nil)
	if !strings.Contains(w.Body.String(), `"count":4`) {
		t.Errorf("expected conversation untouched, got %s", w.Body)
	}

	w = do(t, srv, "POST", "/api/v1/temporary", enterRequest{Owner: "tab-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	_ = do(t, srv, "POST", "/api/v1/temporary/messages", sendRequest{Content: "hi"})
	w = do(t, srv, "POST", "/api/v1/temporary/messages/0/regenerate", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for a temporary user message, got %d: %s", w.Code, w.Body)
	}
}

func TestTemporaryRoutes(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(t, srv, "POST", "/api/v1/temporary/messages", sendRequest{Content: "hi"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 without a session, got %d", w.Code)
	}

	w = do(t, srv, "POST", "/api/v1/temporary", enterRequest{Owner: "tab-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var st ephemeral.Status
	decodeBody(t, w, &st)
	if !st.Active || st.Owner != "tab-1" || st.RemainingSeconds != ephemeral.DefaultBudget {
		t.Errorf("unexpected status %+v", st)
	}

	w = do(t, srv, "POST", "/api/v1/temporary/messages", sendRequest{Content: "hi"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}

	w = do(t, srv, "POST", "/api/v1/temporary/messages/1/regenerate", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body)
	}

	w = do(t, srv, "DELETE", "/api/v1/temporary/messages/x", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad index, got %d", w.Code)
	}

	w = do(t, srv, "POST", "/api/v1/temporary/messages/7/truncate", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for out of range, got %d", w.Code)
	}

	w = do(t, srv, "GET", "/api/v1/temporary/messages", nil)
	if !strings.Contains(w.Body.String(), `"count":2`) {
		t.Errorf("expected 2 temporary messages, got %s", w.Body)
	}

	w = do(t, srv, "DELETE", "/api/v1/temporary", nil)
	if !strings.Contains(w.Body.String(), `"ended":true`) {
		t.Errorf("expected session ended, got %s", w.Body)
	}

	w = do(t, srv, "GET", "/api/v1/temporary", nil)
	decodeBody(t, w, &st)
	if st.Active || st.Mode != ephemeral.ModeNormal {
		t.Errorf("expected inactive normal mode, got %+v", st)
	}
}

func TestRenderEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")

	w := do(t, srv, "POST", "/api/v1/render", renderRequest{Content: "|a|\n\n|-|\n\n|1|"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "table-scroll") {
		t.Errorf("expected table wrapped for scrolling, got %s", w.Body)
	}
}

func TestBearerAuth(t *testing.T) {
	srv, _ := newTestServer(t, "s3cr3t")

	w := do(t, srv, "GET", "/api/v1/temporary", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/temporary", nil)
	req.Header.Set("Authorization", "Bearer s3cr3t")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", rec.Code)
	}

	if w := do(t, srv, "GET", "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health must stay open, got %d", w.Code)
	}
}
