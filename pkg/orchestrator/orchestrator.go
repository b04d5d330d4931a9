// Package orchestrator composes the auth store, API client, document
// registry, and conversation manager into the workflows the CLI exposes.
// It owns cross-component sequences (login then load, upload then chat)
// but no state of its own beyond the offline cache handle.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vexaai/vexa/pkg/auth"
	"github.com/vexaai/vexa/pkg/client"
	"github.com/vexaai/vexa/pkg/config"
	"github.com/vexaai/vexa/pkg/conversation"
	"github.com/vexaai/vexa/pkg/document"
	"github.com/vexaai/vexa/pkg/errors"
	"github.com/vexaai/vexa/pkg/logging"
	"github.com/vexaai/vexa/pkg/storage"
)

// Orchestrator wires the client-side components together.
type Orchestrator struct {
	cfg           *config.Config
	store         auth.Store
	api           *client.Client
	documents     *document.Registry
	conversations *conversation.Manager
	cache         *storage.Cache
	logger        *logging.Logger
}

// New builds an orchestrator over an already-constructed client. cache may
// be nil; offline fallbacks are then disabled. logger may be nil.
func New(cfg *config.Config, store auth.Store, api *client.Client, cache *storage.Cache, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Orchestrator{
		cfg:           cfg,
		store:         store,
		api:           api,
		documents:     document.NewRegistry(api, logger),
		conversations: conversation.NewManager(api, logger),
		cache:         cache,
		logger:        logger,
	}
}

// Documents exposes the registry for read paths the workflows don't cover.
func (o *Orchestrator) Documents() *document.Registry { return o.documents }

// Conversations exposes the manager for read paths the workflows don't cover.
func (o *Orchestrator) Conversations() *conversation.Manager { return o.conversations }

// IsAuthenticated reports whether a stored credential exists. It does not
// validate the token; the first API call does that.
func (o *Orchestrator) IsAuthenticated() bool {
	return o.store.IsAuthenticated()
}

// CurrentUser returns the stored identity, or nil when signed out.
func (o *Orchestrator) CurrentUser() *auth.Identity {
	identity, _ := o.store.GetAuth()
	return identity
}

// Register creates an account. The caller signs in separately afterwards.
func (o *Orchestrator) Register(ctx context.Context, email, password, displayName string) error {
	return o.api.Register(ctx, email, password, displayName)
}

// Login authenticates and persists the session for later invocations.
func (o *Orchestrator) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	session, err := o.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	o.logger.Info(logging.CategoryOrchestrator, "login", "", map[string]any{
		"user_id": session.User.ID,
	})
	return session, nil
}

// Logout clears local state regardless of whether the server call succeeds.
func (o *Orchestrator) Logout(ctx context.Context) error {
	return o.api.Logout(ctx)
}

// Profile fetches the server-side view of the signed-in user.
func (o *Orchestrator) Profile(ctx context.Context) (*auth.Identity, error) {
	return o.api.Profile(ctx)
}

// Health pings the server.
func (o *Orchestrator) Health(ctx context.Context) (*client.HealthResponse, error) {
	return o.api.Health(ctx)
}

// BootstrapResult is the initial view after sign-in: the document and
// session lists, or the last cached snapshot when the server is down.
type BootstrapResult struct {
	Documents []client.Document
	Sessions  []client.ChatSession
	// FromCache is set when the live fetch failed and the lists come from
	// the offline snapshot instead.
	FromCache bool
	// CachedAt is the snapshot age when FromCache is set.
	CachedAt time.Time
}

// Bootstrap loads documents and sessions concurrently. On success the
// offline cache is refreshed; on network failure it falls back to the
// cache when one is available.
func (o *Orchestrator) Bootstrap(ctx context.Context) (*BootstrapResult, error) {
	var (
		docs     []client.Document
		sessions []client.ChatSession
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = o.documents.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sessions, err = o.conversations.ListSessions(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.IsCode(err, errors.ErrCodeAuthExpired) || o.cache == nil {
			return nil, err
		}
		return o.bootstrapFromCache(err)
	}

	if o.cache != nil {
		if err := o.cache.ReplaceDocuments(docs); err != nil {
			o.logger.Warn(logging.CategoryStorage, "cache_refresh_failed", err.Error(), nil)
		}
		if err := o.cache.ReplaceSessions(sessions); err != nil {
			o.logger.Warn(logging.CategoryStorage, "cache_refresh_failed", err.Error(), nil)
		}
	}

	o.logger.Info(logging.CategoryOrchestrator, "bootstrap", "", map[string]any{
		"documents": len(docs),
		"sessions":  len(sessions),
	})
	return &BootstrapResult{Documents: docs, Sessions: sessions}, nil
}

func (o *Orchestrator) bootstrapFromCache(cause error) (*BootstrapResult, error) {
	docs, derr := o.cache.Documents()
	sessions, serr := o.cache.Sessions()
	if derr != nil || serr != nil {
		return nil, cause
	}
	refreshed, _ := o.cache.RefreshedAt()
	if refreshed.IsZero() {
		// Never filled; nothing worth showing.
		return nil, cause
	}

	o.logger.Warn(logging.CategoryOrchestrator, "bootstrap_offline", cause.Error(), map[string]any{
		"cached_at": refreshed.Format(time.RFC3339),
	})
	return &BootstrapResult{
		Documents: docs,
		Sessions:  sessions,
		FromCache: true,
		CachedAt:  refreshed,
	}, nil
}

// StartedChat is the outcome of an upload-then-chat workflow.
type StartedChat struct {
	DocumentID string
	Session    *client.ChatSession
}

// UploadAndStartChat uploads a document and opens a new session bound to
// it, titled "Chat with <original filename>". size is validated against
// the configured upload limit before any bytes leave the machine.
func (o *Orchestrator) UploadAndStartChat(ctx context.Context, filename string, size int64, content io.Reader) (*StartedChat, error) {
	if err := document.ValidateUpload(filename, size, o.cfg.MaxUploadBytes()); err != nil {
		return nil, err
	}

	documentID, err := o.documents.Upload(ctx, filename, content)
	if err != nil {
		return nil, err
	}

	// Refresh so the new document's server-side metadata (original
	// filename in particular) is in the snapshot. Best effort: the upload
	// already succeeded.
	if _, err := o.documents.List(ctx); err != nil {
		o.logger.Warn(logging.CategoryDocument, "post_upload_list_failed", err.Error(), nil)
	}

	title := chatTitle(o.documents, documentID, filename)
	session, err := o.conversations.CreateSession(ctx, title, documentID)
	if err != nil {
		return nil, err
	}

	o.logger.Info(logging.CategoryOrchestrator, "upload_and_chat", "", map[string]any{
		"document_id": documentID,
		"session_id":  session.ID,
	})
	return &StartedChat{DocumentID: documentID, Session: session}, nil
}

// NewChat opens a session, optionally bound to an already-uploaded
// document. With an empty documentID the server creates an untitled
// general session.
func (o *Orchestrator) NewChat(ctx context.Context, documentID string) (*client.ChatSession, error) {
	if documentID == "" {
		return o.conversations.CreateSession(ctx, "", "")
	}

	doc, ok := o.documents.Find(documentID)
	if !ok {
		var err error
		doc, err = o.documents.Get(ctx, documentID)
		if err != nil {
			return nil, err
		}
	}
	if !doc.Processed() {
		return nil, errors.New(errors.ErrCodeValidation, "document is not ready for chat").
			WithContext("document_id", documentID).
			WithContext("status", doc.Status).
			WithUserMessage(fmt.Sprintf("Document %q is still %s. Wait for processing to finish.", doc.OriginalFilename, doc.Status))
	}
	return o.conversations.CreateSession(ctx, chatTitle(o.documents, documentID, doc.OriginalFilename), documentID)
}

// OpenChat activates an existing session and returns its history.
func (o *Orchestrator) OpenChat(ctx context.Context, sessionID string) (*client.ChatSession, []client.ChatMessage, error) {
	return o.conversations.SelectSession(ctx, sessionID)
}

// CloseChat deletes a session server-side and locally. Deleting the
// active session falls back to the idle state, never to another session.
func (o *Orchestrator) CloseChat(ctx context.Context, sessionID string) error {
	return o.conversations.DeleteSession(ctx, sessionID)
}

// Ask sends text to the active session. The returned message is the
// assistant's reply; on failure the error is returned for notification
// and the buffer already holds the fallback reply.
func (o *Orchestrator) Ask(ctx context.Context, text string) (*client.ChatMessage, error) {
	active := o.conversations.Active()
	if active == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no active chat session").
			WithUserMessage("Open or start a chat first.")
	}
	return o.conversations.SendMessage(ctx, active.ID, text, "")
}

// AwaitProcessed polls the document until processing reaches a terminal
// state. It returns the final document on success and an error when
// processing failed or ctx expired.
func (o *Orchestrator) AwaitProcessed(ctx context.Context, documentID string, interval time.Duration) (*client.Document, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		doc, err := o.documents.Get(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if doc.Failed() {
			msg := doc.ErrorMessage
			if msg == "" {
				msg = "processing failed"
			}
			return nil, errors.New(errors.ErrCodeServer, "document processing failed").
				WithContext("document_id", documentID).
				WithUserMessage(fmt.Sprintf("Processing failed for %q: %s", doc.OriginalFilename, msg))
		}
		if doc.Terminal() {
			return doc, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTransport, "wait for processing cancelled").
				WithContext("document_id", documentID)
		case <-ticker.C:
		}
	}
}

// chatTitle derives the session title from the document's original
// filename, falling back to whatever name the caller has.
func chatTitle(registry *document.Registry, documentID, fallback string) string {
	name := fallback
	if doc, ok := registry.Find(documentID); ok && doc.OriginalFilename != "" {
		name = doc.OriginalFilename
	}
	if name == "" {
		return "New chat"
	}
	return "Chat with " + name
}
