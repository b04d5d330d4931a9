package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vexaai/vexa/pkg/auth"
	"github.com/vexaai/vexa/pkg/errors"
)

func authedStore(t *testing.T) *auth.MemStore {
	t.Helper()
	store := auth.NewMemStore()
	err := store.SetAuth(auth.Session{
		AccessToken: "tok-abc",
		TokenType:   "bearer",
		ExpiresIn:   3600,
		User:        auth.Identity{ID: "u-1", Email: "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func newTestClient(t *testing.T, server *httptest.Server, store auth.Store, opts Options) *Client {
	t.Helper()
	c, err := New(server.URL+"/api", store, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"full url", "https://vexa.example.com/api", false},
		{"scheme-less host gets http", "localhost:8000/api", false},
		{"empty url", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.baseURL, auth.NewMemStore(), Options{})
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}
}

func TestBearerInjection(t *testing.T) {
	var gotAuth, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		json.NewEncoder(w).Encode([]Document{})
	}))
	defer server.Close()

	c := newTestClient(t, server, authedStore(t), Options{})
	if _, err := c.ListDocuments(context.Background()); err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}

	if gotAuth != "Bearer tok-abc" {
		t.Errorf("Authorization = %q, want Bearer tok-abc", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestNoBearerWhenUnauthenticated(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
	}))
	defer server.Close()

	c := newTestClient(t, server, auth.NewMemStore(), Options{})
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

// A 401 from any endpoint clears the session store and fires the expiry
// callback exactly once, with no retry.
func TestUnauthorizedClearsStoreAndNotifies(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "token expired"})
	}))
	defer server.Close()

	store := authedStore(t)
	callbacks := 0
	c := newTestClient(t, server, store, Options{OnAuthExpired: func() { callbacks++ }})

	_, err := c.ListDocuments(context.Background())
	if err == nil {
		t.Fatal("expected error from 401")
	}
	if !errors.IsCode(err, errors.ErrCodeAuthExpired) {
		t.Errorf("code = %v, want AUTH_EXPIRED", errors.GetCode(err))
	}
	if user, token := store.GetAuth(); user != nil || token != "" {
		t.Error("store should be cleared after 401")
	}
	if callbacks != 1 {
		t.Errorf("expiry callback fired %d times, want 1", callbacks)
	}
	if requests != 1 {
		t.Errorf("server saw %d requests, want 1 (no retry)", requests)
	}

	// The policy fires regardless of which operation issued the request.
	_, err = c.Profile(context.Background())
	if !errors.IsCode(err, errors.ErrCodeAuthExpired) {
		t.Errorf("profile code = %v, want AUTH_EXPIRED", errors.GetCode(err))
	}
	if callbacks != 2 {
		t.Errorf("expiry callback fired %d times after second 401, want 2", callbacks)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode errors.ErrorCode
		wantMsg  string
	}{
		{"not found", 404, `{"detail":"document not found"}`, errors.ErrCodeNotFound, "document not found"},
		{"validation", 422, `{"detail":"file too large"}`, errors.ErrCodeValidation, "file too large"},
		{"message fallback", 400, `{"message":"bad request"}`, errors.ErrCodeValidation, "bad request"},
		{"server error", 500, `{"detail":"boom"}`, errors.ErrCodeServer, "boom"},
		{"opaque body", 502, `bad gateway`, errors.ErrCodeServer, "bad gateway"},
		{"empty body", 503, ``, errors.ErrCodeServer, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server, authedStore(t), Options{})
			_, err := c.GetDocument(context.Background(), "doc-1")
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.GetCode(err) != tt.wantCode {
				t.Errorf("code = %v, want %v", errors.GetCode(err), tt.wantCode)
			}
			if errors.HTTPStatusOf(err) != tt.status {
				t.Errorf("status = %d, want %d", errors.HTTPStatusOf(err), tt.status)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestNetworkFailureIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // immediately, so the dial fails

	store := authedStore(t)
	c, err := New(server.URL+"/api", store, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.ListDocuments(context.Background())
	if !errors.IsCode(err, errors.ErrCodeTransport) {
		t.Errorf("code = %v, want TRANSPORT", errors.GetCode(err))
	}
	// Network failures are not auth failures: the credential stays put.
	if !store.IsAuthenticated() {
		t.Error("store should keep the credential on a network failure")
	}
}

func TestLoginStoresSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "ada@example.com" || req.Password != "s3cret" {
			t.Errorf("unexpected payload: %+v", req)
		}
		json.NewEncoder(w).Encode(auth.Session{
			AccessToken: "fresh-token",
			TokenType:   "bearer",
			ExpiresIn:   3600,
			User:        auth.Identity{ID: "u-1", Email: "ada@example.com"},
		})
	}))
	defer server.Close()

	store := auth.NewMemStore()
	c := newTestClient(t, server, store, Options{})

	session, err := c.Login(context.Background(), "ada@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if session.AccessToken != "fresh-token" {
		t.Errorf("token = %q", session.AccessToken)
	}
	user, token := store.GetAuth()
	if token != "fresh-token" {
		t.Errorf("stored token = %q", token)
	}
	if user == nil || user.Email != "ada@example.com" {
		t.Errorf("stored user = %+v", user)
	}
}

func TestLogoutClearsStoreEvenOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := authedStore(t)
	c := newTestClient(t, server, store, Options{})

	err := c.Logout(context.Background())
	if err == nil {
		t.Fatal("expected server error to surface")
	}
	if store.IsAuthenticated() {
		t.Error("store should be cleared even when logout fails server-side")
	}
}

func TestUploadDocumentMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/documents/upload" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		if header.Filename != "report.pdf" {
			t.Errorf("filename = %q", header.Filename)
		}
		json.NewEncoder(w).Encode(UploadResponse{DocumentID: "doc-1", Status: DocumentStatusProcessing})
	}))
	defer server.Close()

	c := newTestClient(t, server, authedStore(t), Options{})
	result, err := c.UploadDocument(context.Background(), "report.pdf", strings.NewReader("%PDF-1.7 ..."))
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if result.DocumentID != "doc-1" {
		t.Errorf("DocumentID = %q", result.DocumentID)
	}
}

func TestSendMessageMapsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/sessions/s-1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Message != "What is this about?" || req.DocumentID != "doc-1" {
			t.Errorf("unexpected payload: %+v", req)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			MessageID:      "m1",
			Content:        "It's about X",
			CreatedAt:      "T",
			TokensUsed:     12,
			ProcessingTime: 0.5,
		})
	}))
	defer server.Close()

	c := newTestClient(t, server, authedStore(t), Options{})
	resp, err := c.SendMessage(context.Background(), "s-1", ChatRequest{
		Message:    "What is this about?",
		DocumentID: "doc-1",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if resp.MessageID != "m1" || resp.Content != "It's about X" || resp.CreatedAt != "T" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.TokensUsed != 12 || resp.ProcessingTime != 0.5 {
		t.Errorf("unexpected metadata: %+v", resp)
	}
}

func TestGetChatSessionIncludesMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"id": "s-1", "title": "Chat with report.pdf", "status": "active",
			"created_at": "2026-01-01T00:00:00Z", "updated_at": "2026-01-01T00:01:00Z",
			"messages": [
				{"id": "m-1", "role": "user", "content": "hi", "created_at": "2026-01-01T00:00:30Z"},
				{"id": "m-2", "role": "assistant", "content": "hello", "created_at": "2026-01-01T00:00:31Z"}
			]
		}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, authedStore(t), Options{})
	detail, err := c.GetChatSession(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("GetChatSession: %v", err)
	}
	if detail.ID != "s-1" || detail.Title != "Chat with report.pdf" {
		t.Errorf("session = %+v", detail.ChatSession)
	}
	if len(detail.Messages) != 2 || detail.Messages[1].Role != RoleAssistant {
		t.Errorf("messages = %+v", detail.Messages)
	}
}

func TestDocumentStatusHelpers(t *testing.T) {
	if !(Document{Status: DocumentStatusCompleted}).Processed() {
		t.Error("completed should be Processed")
	}
	if !(Document{Status: DocumentStatusFailed}).Failed() {
		t.Error("failed should be Failed")
	}
	if (Document{Status: DocumentStatusProcessing}).Terminal() {
		t.Error("processing is not terminal")
	}
	for _, status := range []string{DocumentStatusCompleted, DocumentStatusFailed, DocumentStatusDeleted} {
		if !(Document{Status: status}).Terminal() {
			t.Errorf("%s should be terminal", status)
		}
	}
}
