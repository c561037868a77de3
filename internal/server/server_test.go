package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"briefly/internal/app"
	"briefly/pkg/ai"
	"briefly/pkg/domain"
	"briefly/pkg/store"
)

type scriptedGenerator struct {
	reply string
	err   error
	calls int
	opts  []ai.Options
}

func (g *scriptedGenerator) Generate(_ context.Context, _ ai.Prompt, opts ai.Options) ([]string, error) {
	g.calls++
	g.opts = append(g.opts, opts)
	if g.err != nil {
		return nil, g.err
	}
	return []string{g.reply}, nil
}

func newTestServer(t *testing.T, gen ai.Generator) *httptest.Server {
	t.Helper()
	a, err := app.New(app.Config{
		Generator: gen,
		Store:     store.NewMemoryStore(),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	srv := httptest.NewServer(New(Config{App: a}).Router())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, session string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("X-Session-Id", session)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{reply: "ok"})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
	if got := resp.Header.Get("X-Request-Id"); got == "" {
		t.Fatal("missing X-Request-Id header")
	}
}

func TestSummariesEndpoint(t *testing.T) {
	gen := &scriptedGenerator{reply: "the summary"}
	srv := newTestServer(t, gen)

	resp := postJSON(t, srv.URL+"/v1/summaries", "", map[string]any{"text": "long article", "maxTokens": 64})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	result := decodeBody[domain.GenerationResult](t, resp)
	if result.Text != "the summary" {
		t.Fatalf("Text = %q", result.Text)
	}
	if gen.opts[0].MaxTokens != 64 {
		t.Fatalf("MaxTokens = %d, want 64", gen.opts[0].MaxTokens)
	}
}

func TestSummariesEmptyInputReturnsGuidance(t *testing.T) {
	gen := &scriptedGenerator{reply: "unused"}
	srv := newTestServer(t, gen)

	resp := postJSON(t, srv.URL+"/v1/summaries", "", map[string]any{"text": "   "})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	result := decodeBody[domain.GenerationResult](t, resp)
	if result.Text != app.EmptyInputGuidance {
		t.Fatalf("Text = %q", result.Text)
	}
	if gen.calls != 0 {
		t.Fatalf("backend calls = %d, want 0", gen.calls)
	}
}

func TestSummariesBackendFailureMapsTo502(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{err: ai.ErrNoCandidates})

	resp := postJSON(t, srv.URL+"/v1/summaries", "", map[string]any{"text": "hello"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["error"] == "" {
		t.Fatal("missing error message")
	}
}

func TestSummariesBatchEndpoint(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{reply: "s"})

	resp := postJSON(t, srv.URL+"/v1/summaries/batch", "", map[string]any{"texts": []string{"a", "b"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string][]domain.GenerationResult](t, resp)
	if len(body["results"]) != 2 {
		t.Fatalf("results = %v", body["results"])
	}

	resp = postJSON(t, srv.URL+"/v1/summaries/batch", "", map[string]any{"texts": []string{}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty texts status = %d", resp.StatusCode)
	}
}

func TestSummariesFileEndpoint(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{reply: "file summary"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("plain file text")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	resp, err := http.Post(srv.URL+"/v1/summaries/file", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post file: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	result := decodeBody[domain.GenerationResult](t, resp)
	if result.Text != "file summary" {
		t.Fatalf("Text = %q", result.Text)
	}
}

func TestChatFlow(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{reply: "chat reply"})

	resp := postJSON(t, srv.URL+"/v1/chats", "sess-1", map[string]any{"message": "hello there"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
	reply := decodeBody[domain.ChatReply](t, resp)
	if reply.Reply != "chat reply" || reply.ConversationID == "" {
		t.Fatalf("reply = %+v", reply)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/conversations", nil)
	req.Header.Set("X-Session-Id", "sess-1")
	listResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", listResp.StatusCode)
	}
	convs := decodeBody[map[string][]domain.Conversation](t, listResp)
	if len(convs["conversations"]) != 1 {
		t.Fatalf("conversations = %v", convs)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/v1/conversations/"+reply.ConversationID+"/messages", nil)
	req.Header.Set("X-Session-Id", "sess-1")
	msgResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if msgResp.StatusCode != http.StatusOK {
		t.Fatalf("messages status = %d", msgResp.StatusCode)
	}
	msgs := decodeBody[map[string][]domain.Message](t, msgResp)
	if len(msgs["messages"]) != 2 {
		t.Fatalf("messages = %v", msgs)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/v1/conversations/"+reply.ConversationID, nil)
	req.Header.Set("X-Session-Id", "sess-1")
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", delResp.StatusCode)
	}
}

func TestChatValidationErrors(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{reply: "ok"})

	resp := postJSON(t, srv.URL+"/v1/chats", "", map[string]any{"message": "hello"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing session status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/chats", "sess-1", map[string]any{"message": ""})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty message status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/chats", "sess-1", map[string]any{"conversationId": "missing", "message": "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown conversation status = %d", resp.StatusCode)
	}
}

func TestSettingsEndpoint(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{reply: "ok"})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/settings", nil)
	req.Header.Set("X-Session-Id", "sess-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	settings := decodeBody[domain.Settings](t, resp)
	if settings != domain.DefaultSettings() {
		t.Fatalf("defaults = %+v", settings)
	}

	body, _ := json.Marshal(domain.Settings{AssistantName: "Ada", ResponseStyle: "Direct", HistoryLimit: 5, ShowTimestamps: false})
	req, _ = http.NewRequest(http.MethodPut, srv.URL+"/v1/settings", bytes.NewReader(body))
	req.Header.Set("X-Session-Id", "sess-1")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put settings: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", resp.StatusCode)
	}
	saved := decodeBody[domain.Settings](t, resp)
	if saved.AssistantName != "Ada" || saved.ResponseStyle != "Direct" {
		t.Fatalf("saved = %+v", saved)
	}
}

func TestExportsDisabledReturns503(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{reply: "ok"})

	resp := postJSON(t, srv.URL+"/v1/exports", "sess-1", map[string]any{"conversationId": "conv-1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{reply: "ok"})

	resp, err := http.Post(srv.URL+"/v1/summaries", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &scriptedGenerator{reply: "ok"})

	resp, err := http.Get(srv.URL + "/v1/summaries")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
