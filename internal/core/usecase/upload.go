package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
	"github.com/kirillkom/compass-docsync/internal/core/ports"
)

const DefaultSettleDelay = 2 * time.Second

type documentUploader interface {
	UploadDocument(ctx context.Context, file domain.UploadFile) (*domain.Document, error)
}

type UploadOptions struct {
	// SettleDelay is how long the success notice stays before the session
	// is cleared and a refresh is signalled.
	SettleDelay time.Duration
	// ErrorDismiss returns an error session to idle automatically when > 0.
	ErrorDismiss time.Duration
	Inspector    ports.FileInspector
	Observer     ports.SyncObserver
	Logger       *slog.Logger
	// OnTransition runs with the controller locked and must not call back into it.
	OnTransition func(from, to domain.UploadPhase)
}

// UploadController owns the single upload session and its phase machine.
// It never touches the collection; completed uploads are announced through
// the refresh signal exactly once.
type UploadController struct {
	backend      documentUploader
	signal       ports.RefreshSignal
	settleDelay  time.Duration
	errorDismiss time.Duration
	inspector    ports.FileInspector
	observer     ports.SyncObserver
	logger       *slog.Logger
	onTransition func(from, to domain.UploadPhase)

	mu      sync.Mutex
	phase   domain.UploadPhase
	session *domain.UploadSession
	timer   *time.Timer
	closed  bool
}

func NewUploadController(backend documentUploader, signal ports.RefreshSignal, opts UploadOptions) *UploadController {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	return &UploadController{
		backend:      backend,
		signal:       signal,
		settleDelay:  opts.SettleDelay,
		errorDismiss: opts.ErrorDismiss,
		inspector:    opts.Inspector,
		observer:     opts.Observer,
		logger:       opts.Logger.With("component", "upload_controller"),
		onTransition: opts.OnTransition,
		phase:        domain.PhaseIdle,
	}
}

// Accept uploads the first of files. Extra files are ignored, and a file
// outside the allow-list is rejected before any network call.
func (c *UploadController) Accept(ctx context.Context, files []domain.UploadFile) (domain.UploadState, error) {
	if len(files) == 0 {
		return c.State(), nil
	}
	if len(files) > 1 {
		c.logger.Info("upload_extra_files_ignored", "accepted", files[0].Name, "ignored", len(files)-1)
	}

	file := files[0]
	contentType, err := domain.UploadContentType(file.Name)
	if err != nil {
		return c.State(), err
	}
	file.ContentType = contentType

	pages := 0
	if c.inspector != nil {
		pages = c.inspector.PageCount(file)
	}

	c.mu.Lock()
	if c.closed {
		state := c.stateLocked()
		c.mu.Unlock()
		return state, domain.WrapError(domain.ErrTemporary, "accept upload", errors.New("upload surface is closed"))
	}
	if !c.phase.AcceptsFiles() {
		state := c.stateLocked()
		c.mu.Unlock()
		return state, domain.WrapError(domain.ErrUploadInProgress, "accept upload", fmt.Errorf("phase %s", state.Phase))
	}
	c.stopTimerLocked()
	session := &domain.UploadSession{
		ID:       uuid.NewString(),
		Filename: file.Name,
		Pages:    pages,
	}
	c.session = session
	c.transitionLocked(domain.PhaseUploading)
	c.mu.Unlock()

	doc, uploadErr := c.backend.UploadDocument(ctx, file)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.session != session {
		return c.stateLocked(), uploadErr
	}

	if uploadErr != nil {
		session.ErrorMessage = failureReason(uploadErr)
		c.transitionLocked(domain.PhaseError)
		c.observer.ObserveUpload("error")
		c.logger.Warn("upload_failed", "session_id", session.ID, "filename", session.Filename, "error", uploadErr)
		if c.errorDismiss > 0 {
			id := session.ID
			c.timer = time.AfterFunc(c.errorDismiss, func() { c.dismissSession(id) })
		}
		return c.stateLocked(), domain.WrapError(domain.ErrUploadFailed, "upload document", uploadErr)
	}

	session.Document = doc
	c.transitionLocked(domain.PhaseUploaded)
	c.transitionLocked(domain.PhaseSettling)
	id := session.ID
	c.timer = time.AfterFunc(c.settleDelay, func() { c.finishSettling(id) })
	return c.stateLocked(), nil
}

// Dismiss clears an error session.
func (c *UploadController) Dismiss() domain.UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == domain.PhaseError {
		c.stopTimerLocked()
		c.transitionLocked(domain.PhaseIdle)
		c.session = nil
	}
	return c.stateLocked()
}

func (c *UploadController) State() domain.UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Close cancels pending timers; a settling upload will not signal a refresh.
func (c *UploadController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimerLocked()
}

func (c *UploadController) finishSettling(sessionID string) {
	c.mu.Lock()
	if c.closed || c.session == nil || c.session.ID != sessionID || c.phase != domain.PhaseSettling {
		c.mu.Unlock()
		return
	}
	filename := c.session.Filename
	c.timer = nil
	c.transitionLocked(domain.PhaseIdle)
	c.session = nil
	c.mu.Unlock()

	c.observer.ObserveUpload("success")
	c.logger.Info("upload_completed", "session_id", sessionID, "filename", filename)
	if c.signal != nil {
		c.signal.Trigger("upload")
	}
}

func (c *UploadController) dismissSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.session == nil || c.session.ID != sessionID || c.phase != domain.PhaseError {
		return
	}
	c.timer = nil
	c.transitionLocked(domain.PhaseIdle)
	c.session = nil
}

func (c *UploadController) transitionLocked(next domain.UploadPhase) {
	from := c.phase
	if !from.CanTransitionTo(next) {
		c.logger.Error("upload_invalid_transition", "from", from, "to", next)
		return
	}
	c.phase = next
	sessionID := ""
	if c.session != nil {
		c.session.Phase = next
		sessionID = c.session.ID
	}
	c.logger.Info("upload_phase", "session_id", sessionID, "from", from, "to", next)
	if c.onTransition != nil {
		c.onTransition(from, next)
	}
}

func (c *UploadController) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *UploadController) stateLocked() domain.UploadState {
	state := domain.UploadState{
		Phase:         c.phase,
		AcceptEnabled: c.phase.AcceptsFiles() && !c.closed,
	}
	if c.session == nil {
		return state
	}
	state.SessionID = c.session.ID
	state.Filename = c.session.Filename
	state.Pages = c.session.Pages
	state.ErrorMessage = c.session.ErrorMessage
	if c.session.Document != nil {
		state.DocumentID = c.session.Document.ID
	}
	switch c.phase {
	case domain.PhaseUploading:
		state.ProgressText = domain.ProgressUploading
	case domain.PhaseUploaded, domain.PhaseSettling:
		state.ProgressText = domain.ProgressUploaded
	}
	return state
}

// failureReason prefers the backend detail, then the transport error text.
func failureReason(err error) string {
	if msg := domain.UserMessage(err, ""); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return domain.UploadFailedText
}
