package domain

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

type UploadPhase string

const (
	PhaseIdle      UploadPhase = "idle"
	PhaseUploading UploadPhase = "uploading"
	PhaseUploaded  UploadPhase = "uploaded"
	PhaseSettling  UploadPhase = "settling"
	PhaseError     UploadPhase = "error"
)

var phaseTransitions = map[UploadPhase][]UploadPhase{
	PhaseIdle:      {PhaseUploading},
	PhaseUploading: {PhaseUploaded, PhaseError},
	PhaseUploaded:  {PhaseSettling, PhaseError},
	PhaseSettling:  {PhaseIdle},
	PhaseError:     {PhaseIdle, PhaseUploading},
}

func (p UploadPhase) CanTransitionTo(next UploadPhase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AcceptsFiles reports whether a new file may be submitted in this phase.
func (p UploadPhase) AcceptsFiles() bool {
	return p == PhaseIdle || p == PhaseError
}

const (
	ProgressUploading = "Uploading..."
	ProgressUploaded  = "Uploaded successfully! Processing..."
	UploadFailedText  = "Upload failed"
)

// AllowedUploadTypes maps accepted extensions to the content type sent with the file.
var AllowedUploadTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".bmp":  "image/bmp",
}

// UploadContentType validates the filename against the allow-list.
func UploadContentType(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := AllowedUploadTypes[ext]
	if !ok {
		return "", WrapError(ErrUnsupportedFileType, "validate upload", fmt.Errorf("%q: supported PDF, PNG, JPG, TIFF, BMP", filename))
	}
	return contentType, nil
}

// UploadFile is one file offered to the accept surface.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// UploadSession tracks the single in-flight upload.
type UploadSession struct {
	ID           string
	Filename     string
	Phase        UploadPhase
	Pages        int
	ErrorMessage string
	Document     *Document
}

// UploadState is what the accept surface renders.
type UploadState struct {
	Phase         UploadPhase `json:"phase"`
	SessionID     string      `json:"session_id,omitempty"`
	Filename      string      `json:"filename,omitempty"`
	Pages         int         `json:"pages,omitempty"`
	ProgressText  string      `json:"progress_text,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	DocumentID    string      `json:"document_id,omitempty"`
	AcceptEnabled bool        `json:"accept_enabled"`
}
