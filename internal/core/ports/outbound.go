package ports

import (
	"context"
	"time"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

// DocumentBackend is the document service the client mirrors.
type DocumentBackend interface {
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	UploadDocument(ctx context.Context, file domain.UploadFile) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	DownloadLink(ctx context.Context, id string) (*domain.DownloadLink, error)
}

// TokenSource yields the bearer credential attached to backend calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SnapshotStore keeps the last successfully fetched collection for warm starts.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, key string, docs []domain.Document, fetchedAt time.Time) error
	LoadSnapshot(ctx context.Context, key string) ([]domain.Document, time.Time, error)
}

// StatusEventPublisher announces document status changes observed between refreshes.
type StatusEventPublisher interface {
	PublishStatusChanges(ctx context.Context, changes []domain.StatusChange) error
}

// RefreshSignal asks the synchronizer for an out-of-band refresh.
type RefreshSignal interface {
	Trigger(reason string)
}

// FileInspector reads cheap metadata from a file before upload.
type FileInspector interface {
	PageCount(file domain.UploadFile) int
}

// SyncObserver records synchronization outcomes.
type SyncObserver interface {
	ObserveRefresh(result string, duration time.Duration, size int)
	ObserveUpload(result string)
	ObserveDelete(result string)
	ObserveStatusChanges(n int)
}
