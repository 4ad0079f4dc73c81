package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfig              = errors.New("configuration error")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrUploadInProgress    = errors.New("upload already in progress")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTemporary           = errors.New("temporary failure")
	ErrSyncFailed          = errors.New("synchronization failed")
	ErrUploadFailed        = errors.New("upload failed")
	ErrDeleteFailed        = errors.New("delete failed")
	ErrSnapshotNotFound    = errors.New("snapshot not found")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// DetailError carries a backend-provided message that is shown to the user verbatim.
type DetailError struct {
	Detail string
	Err    error
}

func (e *DetailError) Error() string {
	if e.Err == nil {
		return e.Detail
	}
	return e.Detail + ": " + e.Err.Error()
}

func (e *DetailError) Unwrap() error { return e.Err }

// UserMessage extracts the text to present for err, preferring a backend detail.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var detail *DetailError
	if errors.As(err, &detail) && detail.Detail != "" {
		return detail.Detail
	}
	return fallback
}
