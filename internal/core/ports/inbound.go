package ports

import (
	"context"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

// DocumentCollection is the inbound contract of the synchronized document list.
type DocumentCollection interface {
	Refresh(ctx context.Context) error
	Remove(ctx context.Context, id string) error
	Snapshot() domain.CollectionState
	Find(id string) (domain.Document, bool)
}

// Synchronizer drives refreshes on a cadence and on demand.
type Synchronizer interface {
	RefreshSignal
	RefreshNow(ctx context.Context, reason string) error
}

// Uploader is the inbound contract of the upload accept surface.
type Uploader interface {
	Accept(ctx context.Context, files []domain.UploadFile) (domain.UploadState, error)
	Dismiss() domain.UploadState
	State() domain.UploadState
}

// DownloadLinker resolves a short-lived download URL for a document.
type DownloadLinker interface {
	DownloadLink(ctx context.Context, id string) (*domain.DownloadLink, error)
}

// DocumentFetcher reads one document straight from the backend.
type DocumentFetcher interface {
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
}
