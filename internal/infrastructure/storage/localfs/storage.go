package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

// Storage reads files to upload and writes exports under one base directory.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "."
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

func (s *Storage) resolve(key string) (string, error) {
	if filepath.IsAbs(key) {
		return filepath.Clean(key), nil
	}
	clean := filepath.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve path", fmt.Errorf("%q escapes %s", key, s.basePath))
	}
	return filepath.Join(s.basePath, clean), nil
}

// OpenUpload opens a local file as an upload candidate. The caller closes the
// returned file once the upload finished.
func (s *Storage) OpenUpload(_ context.Context, key string) (domain.UploadFile, io.Closer, error) {
	path, err := s.resolve(key)
	if err != nil {
		return domain.UploadFile{}, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.UploadFile{}, nil, fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return domain.UploadFile{}, nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return domain.UploadFile{}, nil, domain.WrapError(domain.ErrInvalidInput, "open file", fmt.Errorf("%s is a directory", path))
	}
	return domain.UploadFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		Body: f,
	}, f, nil
}

// Save writes data to key through a temporary file so readers never see a partial export.
func (s *Storage) Save(_ context.Context, key string, data io.Reader) (string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename file: %w", err)
	}
	return path, nil
}
