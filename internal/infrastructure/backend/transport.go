package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

const maxResponseBytes = 16 << 20

type request struct {
	method      string
	path        string
	template    string
	body        io.Reader
	contentType string
	operation   string
}

// do sends req with the bearer credential, validates a 2xx body against the
// contract and decodes it into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrUnauthorized, req.operation, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, req.body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", req.operation, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("backend %s request: %w", req.operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.operation, err)
	}

	if resp.StatusCode >= 300 {
		return formatBackendHTTPError(req.operation, resp, body)
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := c.contract.ValidateResponse(req.method, req.template, resp.StatusCode, body); err != nil {
		if c.strictContract {
			return err
		}
		c.logger.Warn("backend_contract_violation", "operation", req.operation, "error", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.operation, err)
	}
	return nil
}

// formatBackendHTTPError keeps the status for classification and lifts a
// detail message into a DetailError so it reaches the user verbatim.
func formatBackendHTTPError(operation string, resp *http.Response, body []byte) error {
	raw := string(body)
	if len(raw) > 2048 {
		raw = raw[:2048]
	}
	statusErr := &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(raw),
	}

	var payload errorResponse
	if err := json.Unmarshal(body, &payload); err == nil {
		if detail := detailText(payload.Detail); detail != "" {
			return &domain.DetailError{Detail: detail, Err: statusErr}
		}
	}
	return statusErr
}

// encodeUpload writes the single "file" part. The part carries the file's
// media type because the backend checks it against its allow-list.
func encodeUpload(file domain.UploadFile) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.Name)))
	header.Set("Content-Type", file.ContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create upload part: %w", err)
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return nil, "", fmt.Errorf("copy upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close upload body: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
