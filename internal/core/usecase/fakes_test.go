package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

type backendFake struct {
	mu        sync.Mutex
	listCalls int
	listFn    func(ctx context.Context, call int) ([]domain.Document, error)
	deleted   []string
	deleteErr error
	uploads   []domain.UploadFile
	uploadFn  func(ctx context.Context, file domain.UploadFile) (*domain.Document, error)
}

func (f *backendFake) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	f.mu.Lock()
	f.listCalls++
	call := f.listCalls
	fn := f.listFn
	f.mu.Unlock()
	if fn == nil {
		return []domain.Document{}, nil
	}
	return fn(ctx, call)
}

func (f *backendFake) GetDocument(context.Context, string) (*domain.Document, error) {
	return nil, errors.New("not implemented")
}

func (f *backendFake) UploadDocument(ctx context.Context, file domain.UploadFile) (*domain.Document, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, file)
	fn := f.uploadFn
	f.mu.Unlock()
	if fn == nil {
		return &domain.Document{ID: "doc-new", OriginalFilename: file.Name, Status: domain.StatusUploaded}, nil
	}
	return fn(ctx, file)
}

func (f *backendFake) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func (f *backendFake) DownloadLink(context.Context, string) (*domain.DownloadLink, error) {
	return nil, errors.New("not implemented")
}

func (f *backendFake) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *backendFake) Uploads() []domain.UploadFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.UploadFile{}, f.uploads...)
}

type signalFake struct {
	mu      sync.Mutex
	reasons []string
	fired   chan string
}

func newSignalFake() *signalFake {
	return &signalFake{fired: make(chan string, 16)}
}

func (f *signalFake) Trigger(reason string) {
	f.mu.Lock()
	f.reasons = append(f.reasons, reason)
	f.mu.Unlock()
	f.fired <- reason
}

func (f *signalFake) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reasons)
}

type eventsFake struct {
	mu      sync.Mutex
	changes []domain.StatusChange
}

func (f *eventsFake) PublishStatusChanges(_ context.Context, changes []domain.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, changes...)
	return nil
}

type snapshotFake struct {
	mu        sync.Mutex
	docs      []domain.Document
	fetchedAt time.Time
	saved     int
	loadErr   error
}

func (f *snapshotFake) SaveSnapshot(_ context.Context, _ string, docs []domain.Document, fetchedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append([]domain.Document{}, docs...)
	f.fetchedAt = fetchedAt
	f.saved++
	return nil
}

func (f *snapshotFake) LoadSnapshot(context.Context, string) ([]domain.Document, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, time.Time{}, f.loadErr
	}
	return append([]domain.Document{}, f.docs...), f.fetchedAt, nil
}

func docs(ids ...string) []domain.Document {
	out := make([]domain.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Document{ID: id, OriginalFilename: id + ".pdf", Status: domain.StatusUploaded})
	}
	return out
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
