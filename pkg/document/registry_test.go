package document

import (
	"context"
	"io"
	"testing"

	"github.com/vexaai/vexa/pkg/client"
	"github.com/vexaai/vexa/pkg/errors"
)

// fakeAPI scripts the transport layer without a network.
type fakeAPI struct {
	docs      []client.Document
	uploadID  string
	uploadErr error
	listErr   error
	deleteErr error
	deleted   []string
}

func (f *fakeAPI) UploadDocument(ctx context.Context, filename string, content io.Reader) (*client.UploadResponse, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &client.UploadResponse{DocumentID: f.uploadID, Status: client.DocumentStatusProcessing}, nil
}

func (f *fakeAPI) ListDocuments(ctx context.Context) ([]client.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.docs, nil
}

func (f *fakeAPI) GetDocument(ctx context.Context, documentID string) (*client.Document, error) {
	for i := range f.docs {
		if f.docs[i].ID == documentID {
			return &f.docs[i], nil
		}
	}
	return nil, errors.New(errors.ErrCodeNotFound, "document not found").WithHTTPStatus(404)
}

func (f *fakeAPI) DeleteDocument(ctx context.Context, documentID string) error {
	f.deleted = append(f.deleted, documentID)
	return f.deleteErr
}

func TestListReplacesSnapshot(t *testing.T) {
	api := &fakeAPI{docs: []client.Document{
		{ID: "doc-1", OriginalFilename: "a.pdf", Status: client.DocumentStatusProcessing},
		{ID: "doc-2", OriginalFilename: "b.pdf", Status: client.DocumentStatusCompleted},
	}}
	reg := NewRegistry(api, nil)

	docs, err := reg.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents", len(docs))
	}

	// Server-side status transition shows up on the next List, replacing
	// the prior snapshot wholesale.
	api.docs = []client.Document{
		{ID: "doc-1", OriginalFilename: "a.pdf", Status: client.DocumentStatusCompleted},
	}
	if _, err := reg.List(context.Background()); err != nil {
		t.Fatalf("second List: %v", err)
	}

	snap := reg.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot has %d documents, want 1", len(snap))
	}
	if snap[0].Status != client.DocumentStatusCompleted {
		t.Errorf("status = %q", snap[0].Status)
	}
}

func TestListErrorKeepsSnapshot(t *testing.T) {
	api := &fakeAPI{docs: []client.Document{{ID: "doc-1"}}}
	reg := NewRegistry(api, nil)
	if _, err := reg.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}

	api.listErr = errors.New(errors.ErrCodeServer, "boom")
	if _, err := reg.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(reg.Snapshot()) != 1 {
		t.Error("failed refresh should not clobber the snapshot")
	}
}

func TestFind(t *testing.T) {
	api := &fakeAPI{docs: []client.Document{{ID: "doc-1", OriginalFilename: "report.pdf"}}}
	reg := NewRegistry(api, nil)
	if _, err := reg.List(context.Background()); err != nil {
		t.Fatalf("List: %v", err)
	}

	doc, ok := reg.Find("doc-1")
	if !ok || doc.OriginalFilename != "report.pdf" {
		t.Errorf("Find = %+v, %v", doc, ok)
	}
	if _, ok := reg.Find("doc-404"); ok {
		t.Error("Find should miss unknown ids")
	}
}

func TestDeleteSurfacesSecondDeleteError(t *testing.T) {
	api := &fakeAPI{}
	reg := NewRegistry(api, nil)

	if err := reg.Delete(context.Background(), "doc-1"); err != nil {
		t.Fatalf("first Delete: %v", err)
	}

	api.deleteErr = errors.New(errors.ErrCodeNotFound, "already deleted").WithHTTPStatus(404)
	err := reg.Delete(context.Background(), "doc-1")
	if err == nil {
		t.Fatal("second delete must surface the error, not swallow it")
	}
	if !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("code = %v", errors.GetCode(err))
	}
}

func TestValidateUpload(t *testing.T) {
	const tenMB = 10 << 20

	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  bool
	}{
		{"valid pdf", "report.pdf", 1 << 20, false},
		{"uppercase extension", "REPORT.PDF", 1 << 20, false},
		{"wrong type", "notes.docx", 1 << 20, true},
		{"no extension", "README", 1024, true},
		{"too large", "big.pdf", tenMB + 1, true},
		{"at the limit", "edge.pdf", tenMB, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.filename, tt.size, tenMB)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUpload(%q, %d) error = %v, wantErr %v", tt.filename, tt.size, err, tt.wantErr)
			}
			if err != nil && !errors.IsCode(err, errors.ErrCodeValidation) {
				t.Errorf("ValidateUpload(%q, %d) code = %s, want %s", tt.filename, tt.size, errors.GetCode(err), errors.ErrCodeValidation)
			}
		})
	}
}
