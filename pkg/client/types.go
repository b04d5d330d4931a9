package client

// Wire types for the Vexa REST API. Field names match the server exactly.
// Timestamps are carried as the RFC 3339 strings the server sends; callers
// that need time arithmetic parse at the edge.

// Document status values. The server owns the transitions:
// processing -> completed | failed, completed|failed -> deleted.
// Nothing leaves deleted.
const (
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
	DocumentStatusDeleted    = "deleted"
)

// Chat session status values.
const (
	SessionStatusActive   = "active"
	SessionStatusArchived = "archived"
	SessionStatusDeleted  = "deleted"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Document is the server's record of an uploaded document.
type Document struct {
	ID               string  `json:"id"`
	Filename         string  `json:"filename"`
	OriginalFilename string  `json:"original_filename"`
	FileSize         int64   `json:"file_size"`
	Status           string  `json:"status"`
	ProcessingTime   float64 `json:"processing_time,omitempty"`
	PageCount        int     `json:"page_count,omitempty"`
	TotalChunks      int     `json:"total_chunks,omitempty"`
	PreviewText      string  `json:"preview_text,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	CreatedAt        string  `json:"created_at"`
	ProcessedAt      string  `json:"processed_at,omitempty"`
}

// Processed reports whether server-side processing finished successfully.
func (d Document) Processed() bool {
	return d.Status == DocumentStatusCompleted
}

// Failed reports whether server-side processing failed.
func (d Document) Failed() bool {
	return d.Status == DocumentStatusFailed
}

// Terminal reports whether processing has finished for the document.
// Only processing documents still move on their own; completed, failed,
// and deleted are all settled.
func (d Document) Terminal() bool {
	switch d.Status {
	case DocumentStatusCompleted, DocumentStatusFailed, DocumentStatusDeleted:
		return true
	}
	return false
}

// ChatSession is one conversation thread, optionally bound to a document
// at creation time.
type ChatSession struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count,omitempty"`
}

// ChatMessage is a single turn in a session. Append-only; never edited
// or reordered.
type ChatMessage struct {
	ID             string  `json:"id"`
	Role           string  `json:"role"`
	Content        string  `json:"content"`
	CreatedAt      string  `json:"created_at"`
	TokensUsed     int     `json:"tokens_used,omitempty"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
}

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateSessionRequest is the payload for POST /chat/sessions.
type CreateSessionRequest struct {
	Title      string `json:"title,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// ChatRequest is the payload for POST /chat/sessions/{id}/messages.
type ChatRequest struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id,omitempty"`
	Stream     bool   `json:"stream,omitempty"`
}

// ChatResponse is the assistant's reply to a sent message.
type ChatResponse struct {
	MessageID      string  `json:"message_id"`
	Content        string  `json:"content"`
	CreatedAt      string  `json:"created_at"`
	TokensUsed     int     `json:"tokens_used,omitempty"`
	ProcessingTime float64 `json:"processing_time"`
}

// SessionDetail is the response to GET /chat/sessions/{id}: the session
// fields plus its full message history.
type SessionDetail struct {
	ChatSession
	Messages []ChatMessage `json:"messages"`
}

// UploadResponse is the server's acknowledgement of a document upload.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename,omitempty"`
	Status     string `json:"status,omitempty"`
}

// HealthResponse is the response to GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
