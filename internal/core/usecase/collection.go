package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
	"github.com/kirillkom/compass-docsync/internal/core/ports"
)

const (
	refreshResultSuccess   = "success"
	refreshResultError     = "error"
	refreshResultDiscarded = "discarded"
	refreshResultCancelled = "cancelled"
)

type CollectionOptions struct {
	Snapshots   ports.SnapshotStore
	SnapshotKey string
	Events      ports.StatusEventPublisher
	Observer    ports.SyncObserver
	Logger      *slog.Logger
	Now         func() time.Time
}

// DocumentCollection owns the client-side copy of the user's documents.
// Only its own methods mutate the collection. A refresh result is applied
// unless a newer refresh has already been applied; cancelled refreshes never
// apply and never supersede anything.
type DocumentCollection struct {
	backend     ports.DocumentBackend
	snapshots   ports.SnapshotStore
	snapshotKey string
	events      ports.StatusEventPublisher
	observer    ports.SyncObserver
	logger      *slog.Logger
	now         func() time.Time

	mu           sync.Mutex
	docs         []domain.Document
	errMessage   string
	inFlight     int
	issued       uint64
	applied      uint64
	hasBaseline  bool
	fromSnapshot bool
	refreshedAt  time.Time
	listeners    []func(domain.CollectionState)

	// deliverMu orders listener calls, status events and snapshot writes.
	// Lock order is deliverMu before mu.
	deliverMu sync.Mutex
	delivered []domain.Document
	// baseline is set once a collection has been delivered.
	baseline bool
}

func NewDocumentCollection(backend ports.DocumentBackend, opts CollectionOptions) *DocumentCollection {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if strings.TrimSpace(opts.SnapshotKey) == "" {
		opts.SnapshotKey = "default"
	}
	return &DocumentCollection{
		backend:     backend,
		snapshots:   opts.Snapshots,
		snapshotKey: opts.SnapshotKey,
		events:      opts.Events,
		observer:    opts.Observer,
		logger:      opts.Logger.With("component", "document_collection"),
		now:         opts.Now,
		docs:        []domain.Document{},
	}
}

// Subscribe registers fn to receive the state after every applied refresh.
// Listeners are called one at a time and never see an older state after a
// newer one; they must not call Refresh or Warm.
func (c *DocumentCollection) Subscribe(fn func(domain.CollectionState)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Warm seeds an empty collection from the last stored snapshot.
func (c *DocumentCollection) Warm(ctx context.Context) error {
	if c.snapshots == nil {
		return nil
	}
	docs, fetchedAt, err := c.snapshots.LoadSnapshot(ctx, c.snapshotKey)
	if err != nil {
		if domain.IsKind(err, domain.ErrSnapshotNotFound) {
			return nil
		}
		return fmt.Errorf("load snapshot: %w", err)
	}

	if docs == nil {
		docs = []domain.Document{}
	}

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if c.hasBaseline {
		c.mu.Unlock()
		return nil
	}
	c.docs = docs
	c.hasBaseline = true
	c.fromSnapshot = true
	c.refreshedAt = fetchedAt
	state := c.stateLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	c.delivered = docs
	c.baseline = true
	c.logger.Info("collection_warmed", "documents", len(docs), "fetched_at", fetchedAt)
	notify(listeners, state)
	return nil
}

func (c *DocumentCollection) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.inFlight++
	c.mu.Unlock()

	start := c.now()
	docs, fetchErr := c.backend.ListDocuments(ctx)
	elapsed := c.now().Sub(start)

	c.mu.Lock()
	c.inFlight--

	if ctx.Err() != nil {
		c.mu.Unlock()
		c.observer.ObserveRefresh(refreshResultCancelled, elapsed, 0)
		return ctx.Err()
	}
	if seq < c.applied {
		latest := c.applied
		c.mu.Unlock()
		c.observer.ObserveRefresh(refreshResultDiscarded, elapsed, len(docs))
		c.logger.Debug("refresh_discarded", "seq", seq, "applied", latest)
		return nil
	}
	c.applied = seq

	if fetchErr != nil {
		c.errMessage = "Failed to fetch documents: " + fetchErr.Error()
		kept := len(c.docs)
		c.mu.Unlock()

		c.observer.ObserveRefresh(refreshResultError, elapsed, kept)
		c.logger.Warn("refresh_failed", "seq", seq, "error", fetchErr, "kept_documents", kept)
		c.deliver(ctx, seq, nil, time.Time{})
		return domain.WrapError(domain.ErrSyncFailed, "refresh documents", fetchErr)
	}

	if docs == nil {
		docs = []domain.Document{}
	}
	fetchedAt := c.now()
	c.docs = docs
	c.errMessage = ""
	c.hasBaseline = true
	c.fromSnapshot = false
	c.refreshedAt = fetchedAt
	c.mu.Unlock()

	c.observer.ObserveRefresh(refreshResultSuccess, elapsed, len(docs))
	c.logger.Debug("refresh_applied", "seq", seq, "documents", len(docs), "duration_ms", float64(elapsed.Microseconds())/1000.0)
	c.deliver(ctx, seq, docs, fetchedAt)
	return nil
}

// deliver hands the state applied by refresh seq to listeners, status events
// and the snapshot store. It is skipped when a newer refresh has been applied
// in the meantime; that refresh delivers the newer state itself. docs is nil
// for a failed refresh.
func (c *DocumentCollection) deliver(ctx context.Context, seq uint64, docs []domain.Document, fetchedAt time.Time) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if c.applied != seq {
		latest := c.applied
		c.mu.Unlock()
		c.logger.Debug("refresh_delivery_skipped", "seq", seq, "applied", latest)
		return
	}
	state := c.stateLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	if docs != nil {
		if c.baseline {
			c.publishChanges(ctx, domain.DiffStatuses(c.delivered, docs, fetchedAt))
		}
		c.delivered = docs
		c.baseline = true
		c.saveSnapshot(ctx, docs, fetchedAt)
	}
	notify(listeners, state)
}

// Remove deletes one document and refreshes whatever the delete outcome was.
func (c *DocumentCollection) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.WrapError(domain.ErrInvalidInput, "delete document", errors.New("document id is required"))
	}

	deleteErr := c.backend.DeleteDocument(ctx, id)
	if deleteErr != nil {
		c.observer.ObserveDelete(refreshResultError)
		c.logger.Error("delete_failed", "document_id", id, "error", deleteErr)
	} else {
		c.observer.ObserveDelete(refreshResultSuccess)
		c.logger.Info("document_deleted", "document_id", id)
	}

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("refresh_after_delete_failed", "document_id", id, "error", err)
	}

	if deleteErr != nil {
		return domain.WrapError(domain.ErrDeleteFailed, "delete document", deleteErr)
	}
	return nil
}

func (c *DocumentCollection) Snapshot() domain.CollectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *DocumentCollection) Find(id string) (domain.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if doc.ID == id {
			return doc, true
		}
	}
	return domain.Document{}, false
}

func (c *DocumentCollection) stateLocked() domain.CollectionState {
	docs := make([]domain.Document, len(c.docs))
	copy(docs, c.docs)
	return domain.CollectionState{
		Documents:    docs,
		Loading:      c.inFlight > 0,
		Err:          c.errMessage,
		RefreshedAt:  c.refreshedAt,
		FromSnapshot: c.fromSnapshot,
	}
}

func (c *DocumentCollection) listenersLocked() []func(domain.CollectionState) {
	return append([]func(domain.CollectionState){}, c.listeners...)
}

func (c *DocumentCollection) publishChanges(ctx context.Context, changes []domain.StatusChange) {
	if len(changes) == 0 {
		return
	}
	c.observer.ObserveStatusChanges(len(changes))
	for _, change := range changes {
		c.logger.Info("document_status_changed",
			"document_id", change.DocumentID,
			"from", change.From,
			"to", change.To,
		)
	}
	if c.events == nil {
		return
	}
	if err := c.events.PublishStatusChanges(ctx, changes); err != nil {
		c.logger.Warn("publish_status_changes_failed", "changes", len(changes), "error", err)
	}
}

func (c *DocumentCollection) saveSnapshot(ctx context.Context, docs []domain.Document, fetchedAt time.Time) {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.SaveSnapshot(ctx, c.snapshotKey, docs, fetchedAt); err != nil {
		c.logger.Warn("save_snapshot_failed", "error", err)
	}
}

func notify(listeners []func(domain.CollectionState), state domain.CollectionState) {
	for _, fn := range listeners {
		fn(state)
	}
}

type noopObserver struct{}

func (noopObserver) ObserveRefresh(string, time.Duration, int) {}
func (noopObserver) ObserveUpload(string)                      {}
func (noopObserver) ObserveDelete(string)                      {}
func (noopObserver) ObserveStatusChanges(int)                  {}
