package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

type transitionLog struct {
	mu    sync.Mutex
	steps []domain.UploadPhase
}

func (l *transitionLog) record(_, to domain.UploadPhase) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, to)
}

func (l *transitionLog) Steps() []domain.UploadPhase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.UploadPhase{}, l.steps...)
}

func uploadFile(name string) domain.UploadFile {
	return domain.UploadFile{Name: name, Size: 5, Body: strings.NewReader("%PDF-")}
}

func TestUploadLifecycleSignalsRefreshOnce(t *testing.T) {
	backend := &backendFake{}
	signal := newSignalFake()
	log := &transitionLog{}
	uc := NewUploadController(backend, signal, UploadOptions{
		SettleDelay:  10 * time.Millisecond,
		OnTransition: log.record,
	})

	state, err := uc.Accept(context.Background(), []domain.UploadFile{uploadFile("invoice.pdf")})
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if state.Phase != domain.PhaseSettling || state.ProgressText != domain.ProgressUploaded {
		t.Fatalf("unexpected state after upload: %+v", state)
	}
	if state.DocumentID != "doc-new" {
		t.Fatalf("expected document id, got %q", state.DocumentID)
	}

	select {
	case reason := <-signal.fired:
		if reason != "upload" {
			t.Fatalf("unexpected reason %q", reason)
		}
	case <-time.After(time.Second):
		t.Fatalf("refresh was not signalled")
	}
	time.Sleep(30 * time.Millisecond)
	if signal.Count() != 1 {
		t.Fatalf("expected exactly one refresh signal, got %d", signal.Count())
	}

	want := []domain.UploadPhase{domain.PhaseUploading, domain.PhaseUploaded, domain.PhaseSettling, domain.PhaseIdle}
	got := log.Steps()
	if len(got) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, got)
		}
	}

	final := uc.State()
	if final.Phase != domain.PhaseIdle || final.SessionID != "" || !final.AcceptEnabled {
		t.Fatalf("expected cleared idle session, got %+v", final)
	}
	if uploads := backend.Uploads(); len(uploads) != 1 || uploads[0].ContentType != "application/pdf" {
		t.Fatalf("unexpected uploads: %+v", uploads)
	}
}

func TestAcceptSurfaceDisabledWhileUploading(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	backend := &backendFake{uploadFn: func(context.Context, domain.UploadFile) (*domain.Document, error) {
		close(started)
		<-release
		return &domain.Document{ID: "doc-1"}, nil
	}}
	uc := NewUploadController(backend, newSignalFake(), UploadOptions{SettleDelay: time.Hour})
	defer uc.Close()

	done := make(chan error, 1)
	go func() {
		_, err := uc.Accept(context.Background(), []domain.UploadFile{uploadFile("scan.png")})
		done <- err
	}()
	<-started

	state := uc.State()
	if state.Phase != domain.PhaseUploading || state.AcceptEnabled {
		t.Fatalf("expected disabled accept surface while uploading, got %+v", state)
	}
	if state.ProgressText != domain.ProgressUploading || state.Filename != "scan.png" {
		t.Fatalf("unexpected progress: %+v", state)
	}

	_, err := uc.Accept(context.Background(), []domain.UploadFile{uploadFile("second.pdf")})
	if !domain.IsKind(err, domain.ErrUploadInProgress) {
		t.Fatalf("expected ErrUploadInProgress, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if len(backend.Uploads()) != 1 {
		t.Fatalf("expected exactly one upload call")
	}
}

func TestAcceptRejectsUnsupportedTypeBeforeNetwork(t *testing.T) {
	backend := &backendFake{}
	uc := NewUploadController(backend, newSignalFake(), UploadOptions{})

	state, err := uc.Accept(context.Background(), []domain.UploadFile{uploadFile("notes.docx")})
	if !domain.IsKind(err, domain.ErrUnsupportedFileType) {
		t.Fatalf("expected ErrUnsupportedFileType, got %v", err)
	}
	if state.Phase != domain.PhaseIdle {
		t.Fatalf("expected idle phase, got %s", state.Phase)
	}
	if len(backend.Uploads()) != 0 {
		t.Fatalf("expected no upload call")
	}
}

func TestAcceptUsesOnlyFirstFile(t *testing.T) {
	backend := &backendFake{}
	uc := NewUploadController(backend, newSignalFake(), UploadOptions{SettleDelay: time.Hour})
	defer uc.Close()

	_, err := uc.Accept(context.Background(), []domain.UploadFile{uploadFile("a.pdf"), uploadFile("b.pdf")})
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	uploads := backend.Uploads()
	if len(uploads) != 1 || uploads[0].Name != "a.pdf" {
		t.Fatalf("expected only a.pdf uploaded, got %+v", uploads)
	}
}

func TestAcceptEmptyDropIsNoop(t *testing.T) {
	backend := &backendFake{}
	uc := NewUploadController(backend, newSignalFake(), UploadOptions{})

	state, err := uc.Accept(context.Background(), nil)
	if err != nil || state.Phase != domain.PhaseIdle {
		t.Fatalf("expected idle no-op, got %+v %v", state, err)
	}
}

func TestUploadFailureShowsDetailAndNeverSignals(t *testing.T) {
	backend := &backendFake{uploadFn: func(context.Context, domain.UploadFile) (*domain.Document, error) {
		return nil, &domain.DetailError{Detail: "Unsupported file type: image/gif", Err: errors.New("status 400")}
	}}
	signal := newSignalFake()
	uc := NewUploadController(backend, signal, UploadOptions{SettleDelay: time.Millisecond})

	state, err := uc.Accept(context.Background(), []domain.UploadFile{uploadFile("scan.bmp")})
	if !domain.IsKind(err, domain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if state.Phase != domain.PhaseError || state.ErrorMessage != "Unsupported file type: image/gif" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if !state.AcceptEnabled {
		t.Fatalf("expected accept surface re-enabled after error")
	}

	state = uc.Dismiss()
	if state.Phase != domain.PhaseIdle || state.ErrorMessage != "" {
		t.Fatalf("expected idle after dismiss, got %+v", state)
	}
	time.Sleep(10 * time.Millisecond)
	if signal.Count() != 0 {
		t.Fatalf("failed upload must not signal refresh")
	}
}

func TestUploadFailureWithoutDetailShowsCause(t *testing.T) {
	backend := &backendFake{uploadFn: func(context.Context, domain.UploadFile) (*domain.Document, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}
	uc := NewUploadController(backend, newSignalFake(), UploadOptions{ErrorDismiss: 10 * time.Millisecond})

	state, _ := uc.Accept(context.Background(), []domain.UploadFile{uploadFile("scan.tiff")})
	if state.ErrorMessage != "dial tcp: connection refused" {
		t.Fatalf("expected transport cause shown, got %q", state.ErrorMessage)
	}
	if !waitFor(time.Second, func() bool { return uc.State().Phase == domain.PhaseIdle }) {
		t.Fatalf("expected automatic return to idle")
	}
}

func TestUploadFailureWithoutMessageUsesFallback(t *testing.T) {
	backend := &backendFake{uploadFn: func(context.Context, domain.UploadFile) (*domain.Document, error) {
		return nil, errors.New("")
	}}
	uc := NewUploadController(backend, newSignalFake(), UploadOptions{})

	state, _ := uc.Accept(context.Background(), []domain.UploadFile{uploadFile("scan.tiff")})
	if state.ErrorMessage != domain.UploadFailedText {
		t.Fatalf("expected fallback message, got %q", state.ErrorMessage)
	}
}

func TestCloseDuringSettlingSuppressesSignal(t *testing.T) {
	signal := newSignalFake()
	uc := NewUploadController(&backendFake{}, signal, UploadOptions{SettleDelay: 20 * time.Millisecond})

	if _, err := uc.Accept(context.Background(), []domain.UploadFile{uploadFile("invoice.pdf")}); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	uc.Close()

	time.Sleep(50 * time.Millisecond)
	if signal.Count() != 0 {
		t.Fatalf("expected no signal after Close, got %d", signal.Count())
	}
	if uc.State().AcceptEnabled {
		t.Fatalf("closed controller must not accept files")
	}
}

type inspectorFake struct{ pages int }

func (f inspectorFake) PageCount(domain.UploadFile) int { return f.pages }

func TestUploadSessionCarriesPageCount(t *testing.T) {
	uc := NewUploadController(&backendFake{}, newSignalFake(), UploadOptions{
		SettleDelay: time.Hour,
		Inspector:   inspectorFake{pages: 4},
	})
	defer uc.Close()

	state, err := uc.Accept(context.Background(), []domain.UploadFile{uploadFile("contract.pdf")})
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if state.Pages != 4 {
		t.Fatalf("expected 4 pages, got %d", state.Pages)
	}
}
