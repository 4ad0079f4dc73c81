package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
	"github.com/kirillkom/compass-docsync/internal/core/ports"
	"github.com/kirillkom/compass-docsync/internal/infrastructure/resilience"
)

const (
	pathDocuments = "/api/documents"
	pathUpload    = "/api/documents/upload"
	pathDocument  = "/api/documents/{document_id}"
	pathDownload  = "/api/documents/{document_id}/download"
)

type Options struct {
	Timeout        time.Duration
	Executor       *resilience.Executor
	Contract       *Contract
	StrictContract bool
	Logger         *slog.Logger
	HTTPClient     *http.Client
}

// Client talks to the document-processing backend on behalf of one user.
type Client struct {
	baseURL        string
	tokens         ports.TokenSource
	httpClient     *http.Client
	executor       *resilience.Executor
	contract       *Contract
	strictContract bool
	logger         *slog.Logger
}

func New(baseURL string, tokens ports.TokenSource, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		tokens:         tokens,
		httpClient:     httpClient,
		executor:       opts.Executor,
		contract:       opts.Contract,
		strictContract: opts.StrictContract,
		logger:         logger,
	}
}

func (c *Client) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	const op = "list_documents"
	resp, err := resilience.ExecuteValue(ctx, c.executor, "backend.list_documents", func(callCtx context.Context) (listResponse, error) {
		var out listResponse
		err := c.do(callCtx, request{
			method:    http.MethodGet,
			path:      pathDocuments,
			template:  pathDocuments,
			operation: op,
		}, &out)
		return out, err
	}, classifyBackendError)
	if err != nil {
		return nil, classifyKind(op, err)
	}

	docs := make([]domain.Document, 0, len(resp.Documents))
	for _, dto := range resp.Documents {
		docs = append(docs, dto.toDomain())
	}
	return docs, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	const op = "get_document"
	path, err := documentPath(pathDocument, id)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	resp, err := resilience.ExecuteValue(ctx, c.executor, "backend.get_document", func(callCtx context.Context) (documentDTO, error) {
		var out documentDTO
		err := c.do(callCtx, request{
			method:    http.MethodGet,
			path:      path,
			template:  pathDocument,
			operation: op,
		}, &out)
		return out, err
	}, classifyBackendError)
	if err != nil {
		return nil, classifyKind(op, err)
	}
	doc := resp.toDomain()
	return &doc, nil
}

// UploadDocument is never retried: a replay could create a duplicate document.
func (c *Client) UploadDocument(ctx context.Context, file domain.UploadFile) (*domain.Document, error) {
	const op = "upload_document"
	if file.Body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("file body is required"))
	}
	if file.ContentType == "" {
		contentType, err := domain.UploadContentType(file.Name)
		if err != nil {
			return nil, err
		}
		file.ContentType = contentType
	}
	body, contentType, err := encodeUpload(file)
	if err != nil {
		return nil, err
	}

	resp, err := resilience.ExecuteValue(ctx, c.executor, "backend.upload_document", func(callCtx context.Context) (uploadResponse, error) {
		var out uploadResponse
		err := c.do(callCtx, request{
			method:      http.MethodPost,
			path:        pathUpload,
			template:    pathUpload,
			body:        body,
			contentType: contentType,
			operation:   op,
		}, &out)
		return out, err
	}, noRetry)
	if err != nil {
		return nil, classifyKind(op, err)
	}
	if resp.Document == nil {
		return nil, fmt.Errorf("backend %s: response without document", op)
	}
	doc := resp.Document.toDomain()
	return &doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	const op = "delete_document"
	path, err := documentPath(pathDocument, id)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	_, err = resilience.ExecuteValue(ctx, c.executor, "backend.delete_document", func(callCtx context.Context) (struct{}, error) {
		return struct{}{}, c.do(callCtx, request{
			method:    http.MethodDelete,
			path:      path,
			template:  pathDocument,
			operation: op,
		}, nil)
	}, noRetry)
	return classifyKind(op, err)
}

func (c *Client) DownloadLink(ctx context.Context, id string) (*domain.DownloadLink, error) {
	const op = "download_link"
	path, err := documentPath(pathDownload, id)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, err)
	}
	resp, err := resilience.ExecuteValue(ctx, c.executor, "backend.download_link", func(callCtx context.Context) (downloadResponse, error) {
		var out downloadResponse
		err := c.do(callCtx, request{
			method:    http.MethodGet,
			path:      path,
			template:  pathDownload,
			operation: op,
		}, &out)
		return out, err
	}, classifyBackendError)
	if err != nil {
		return nil, classifyKind(op, err)
	}
	return &domain.DownloadLink{URL: resp.DownloadURL, Filename: resp.Filename, ExpiresIn: resp.ExpiresIn}, nil
}

func documentPath(template, id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("document id is required")
	}
	escaped, err := runtime.StyleParamWithLocation("simple", false, "document_id", runtime.ParamLocationPath, id)
	if err != nil {
		return "", fmt.Errorf("escape document id: %w", err)
	}
	return strings.Replace(template, "{document_id}", escaped, 1), nil
}
