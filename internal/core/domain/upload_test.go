package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPhaseTransitions(t *testing.T) {
	allowed := []struct{ from, to UploadPhase }{
		{PhaseIdle, PhaseUploading},
		{PhaseUploading, PhaseUploaded},
		{PhaseUploading, PhaseError},
		{PhaseUploaded, PhaseSettling},
		{PhaseSettling, PhaseIdle},
		{PhaseError, PhaseIdle},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	rejected := []struct{ from, to UploadPhase }{
		{PhaseIdle, PhaseError},
		{PhaseIdle, PhaseSettling},
		{PhaseSettling, PhaseError},
		{PhaseUploading, PhaseIdle},
		{PhaseSettling, PhaseUploading},
	}
	for _, tc := range rejected {
		if tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestAcceptsFilesNeverWhileUploading(t *testing.T) {
	if PhaseUploading.AcceptsFiles() {
		t.Fatalf("uploading phase must not accept files")
	}
	if !PhaseIdle.AcceptsFiles() || !PhaseError.AcceptsFiles() {
		t.Fatalf("idle and error phases must accept files")
	}
}

func TestUploadContentType(t *testing.T) {
	cases := map[string]string{
		"invoice.pdf":  "application/pdf",
		"scan.TIF":     "image/tiff",
		"photo.jpeg":   "image/jpeg",
		"diagram.bmp":  "image/bmp",
		"receipt.png":  "image/png",
		"scan.v2.tiff": "image/tiff",
	}
	for name, want := range cases {
		got, err := UploadContentType(name)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}

	for _, name := range []string{"notes.txt", "archive.zip", "noext"} {
		if _, err := UploadContentType(name); !IsKind(err, ErrUnsupportedFileType) {
			t.Fatalf("%s: expected ErrUnsupportedFileType, got %v", name, err)
		}
	}
}

func TestDiffStatuses(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	prev := []Document{
		{ID: "1", Status: StatusProcessing},
		{ID: "2", Status: StatusUploaded},
	}
	next := []Document{
		{ID: "1", Status: StatusOCRComplete, OriginalFilename: "a.pdf"},
		{ID: "2", Status: StatusUploaded},
		{ID: "3", Status: StatusUploaded},
	}

	changes := DiffStatuses(prev, next, now)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].DocumentID != "1" || changes[0].From != StatusProcessing || changes[0].To != StatusOCRComplete {
		t.Fatalf("unexpected first change: %+v", changes[0])
	}
	if changes[1].DocumentID != "3" || changes[1].From != "" {
		t.Fatalf("unexpected second change: %+v", changes[1])
	}
}

func TestUserMessagePrefersDetail(t *testing.T) {
	err := WrapError(ErrUploadFailed, "upload", &DetailError{Detail: "Unsupported file type: text/plain"})
	if got := UserMessage(err, UploadFailedText); got != "Unsupported file type: text/plain" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := UserMessage(errors.New("boom"), UploadFailedText); got != UploadFailedText {
		t.Fatalf("unexpected fallback %q", got)
	}
}
