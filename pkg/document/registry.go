package document

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vexaai/vexa/pkg/client"
	"github.com/vexaai/vexa/pkg/errors"
	"github.com/vexaai/vexa/pkg/logging"
)

// API is the slice of the transport client the registry consumes.
type API interface {
	UploadDocument(ctx context.Context, filename string, content io.Reader) (*client.UploadResponse, error)
	ListDocuments(ctx context.Context) ([]client.Document, error)
	GetDocument(ctx context.Context, documentID string) (*client.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// Registry is the client-side cache of document metadata. It owns the
// in-memory document list; status transitions become visible only when
// List or Get is called again; there is no background polling.
type Registry struct {
	api    API
	logger *logging.Logger

	mu   sync.Mutex
	docs []client.Document
}

// NewRegistry creates a registry over the given API surface.
func NewRegistry(api API, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{api: api, logger: logger}
}

// Upload sends the file and returns the new document ID. The registry
// does not enforce type or size limits; use ValidateUpload at the call
// site for the caller-side policy.
func (r *Registry) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	resp, err := r.api.UploadDocument(ctx, filename, content)
	if err != nil {
		return "", err
	}
	return resp.DocumentID, nil
}

// List fetches the document list and replaces the local snapshot
// wholesale. Server ordering is preserved.
func (r *Registry) List(ctx context.Context) ([]client.Document, error) {
	docs, err := r.api.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.docs = docs
	r.mu.Unlock()

	r.logger.Debug(logging.CategoryDocument, "list_refreshed", "", map[string]any{
		"count": len(docs),
	})
	return docs, nil
}

// Get fetches a single document. The local snapshot is not updated; the
// next List is the reconciliation point.
func (r *Registry) Get(ctx context.Context, documentID string) (*client.Document, error) {
	return r.api.GetDocument(ctx, documentID)
}

// Delete removes a document server-side. A delete of an already-deleted
// document surfaces the server's error to be shown.
func (r *Registry) Delete(ctx context.Context, documentID string) error {
	return r.api.DeleteDocument(ctx, documentID)
}

// Snapshot returns a copy of the cached document list.
func (r *Registry) Snapshot() []client.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]client.Document, len(r.docs))
	copy(out, r.docs)
	return out
}

// Find looks up a cached document by ID.
func (r *Registry) Find(documentID string) (*client.Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.docs {
		if r.docs[i].ID == documentID {
			doc := r.docs[i]
			return &doc, true
		}
	}
	return nil, false
}

// ValidateUpload applies the caller-side upload policy: PDF only, within
// the configured size cap. The server enforces its own limits regardless.
func ValidateUpload(filename string, size int64, maxBytes int64) error {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename))).
			WithUserMessage("Only PDF files are supported")
	}
	if maxBytes > 0 && size > maxBytes {
		return errors.New(errors.ErrCodeValidation, fmt.Sprintf("file size %d exceeds limit %d", size, maxBytes)).
			WithUserMessage(fmt.Sprintf("File is too large (limit %d MB)", maxBytes>>20))
	}
	return nil
}
