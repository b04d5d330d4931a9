package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/vexaai/vexa/pkg/auth"
	"github.com/vexaai/vexa/pkg/errors"
	"github.com/vexaai/vexa/pkg/logging"
)

// Register creates a new account. The server response is opaque to the
// client beyond success or failure.
func (c *Client) Register(ctx context.Context, email, password, displayName string) error {
	req := RegisterRequest{Email: email, Password: password, DisplayName: displayName}
	return c.doJSON(ctx, http.MethodPost, "/auth/register", req, nil)
}

// Login authenticates and persists the returned session into the auth
// store so subsequent requests carry the credential.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	var session auth.Session
	req := LoginRequest{Email: email, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", req, &session); err != nil {
		return nil, err
	}
	if c.store != nil {
		if err := c.store.SetAuth(session); err != nil {
			return nil, err
		}
	}
	c.logger.Info(logging.CategoryAuth, "login", session.User.Email, nil)
	return &session, nil
}

// Logout ends the server session. The local credential is cleared even
// when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if c.store != nil {
		if clearErr := c.store.ClearAuth(); clearErr != nil && err == nil {
			err = clearErr
		}
	}
	c.logger.Info(logging.CategoryAuth, "logout", "", nil)
	return err
}

// Profile fetches the authenticated user's identity.
func (c *Client) Profile(ctx context.Context) (*auth.Identity, error) {
	var identity auth.Identity
	if err := c.doJSON(ctx, http.MethodGet, "/auth/profile", nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// UploadDocument sends the file as multipart form data. The caller is
// responsible for pre-validating type and size; the server enforces its
// own policy and violations surface as transport errors.
func (c *Client) UploadDocument(ctx context.Context, filename string, content io.Reader) (*UploadResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "create multipart body")
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "read upload content")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "finalize multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("/documents/upload"), &buf)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTransport, "build upload request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setCommonHeaders(req)

	var result UploadResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	c.logger.Info(logging.CategoryDocument, "uploaded", filename, map[string]any{
		"document_id": result.DocumentID,
	})
	return &result, nil
}

// ListDocuments fetches the full document list. The returned slice is
// authoritative; order is server-defined.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.doJSON(ctx, http.MethodGet, "/documents", nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// GetDocument fetches a single document by ID.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	var doc Document
	if err := c.doJSON(ctx, http.MethodGet, "/documents/"+documentID, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument soft-deletes a document. A second delete surfaces the
// server's error; it is never swallowed client-side.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/documents/"+documentID, nil, nil)
}

// CreateChatSession creates a session, optionally titled and bound to a
// document. The document association is immutable after creation.
func (c *Client) CreateChatSession(ctx context.Context, title, documentID string) (*ChatSession, error) {
	var session ChatSession
	req := CreateSessionRequest{Title: title, DocumentID: documentID}
	if err := c.doJSON(ctx, http.MethodPost, "/chat/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListChatSessions fetches the full session list.
func (c *Client) ListChatSessions(ctx context.Context) ([]ChatSession, error) {
	var sessions []ChatSession
	if err := c.doJSON(ctx, http.MethodGet, "/chat/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetChatSession fetches one session with its full message history.
func (c *Client) GetChatSession(ctx context.Context, sessionID string) (*SessionDetail, error) {
	var detail SessionDetail
	if err := c.doJSON(ctx, http.MethodGet, "/chat/sessions/"+sessionID, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SendMessage posts a user message and returns the assistant's reply.
func (c *Client) SendMessage(ctx context.Context, sessionID string, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	p := fmt.Sprintf("/chat/sessions/%s/messages", sessionID)
	if err := c.doJSON(ctx, http.MethodPost, p, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteChatSession deletes a session server-side.
func (c *Client) DeleteChatSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/chat/sessions/"+sessionID, nil, nil)
}

// Health checks service availability.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}
