package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

// PublishableKey identifies the identity provider instance the user signs in with.
type PublishableKey struct {
	Raw      string
	Live     bool
	Frontend string
}

// ParsePublishableKey decodes pk_test_/pk_live_ keys whose payload is the
// base64 encoded frontend API host terminated by '$'.
func ParsePublishableKey(raw string) (PublishableKey, error) {
	const op = "parse publishable key"
	key := strings.TrimSpace(raw)
	if key == "" {
		return PublishableKey{}, domain.WrapError(domain.ErrConfig, op, fmt.Errorf("missing publishable key"))
	}

	var live bool
	var payload string
	switch {
	case strings.HasPrefix(key, "pk_live_"):
		live = true
		payload = strings.TrimPrefix(key, "pk_live_")
	case strings.HasPrefix(key, "pk_test_"):
		payload = strings.TrimPrefix(key, "pk_test_")
	default:
		return PublishableKey{}, domain.WrapError(domain.ErrConfig, op, fmt.Errorf("unknown key prefix"))
	}

	decoded, err := decodeBase64(payload)
	if err != nil {
		return PublishableKey{}, domain.WrapError(domain.ErrConfig, op, err)
	}
	host, ok := strings.CutSuffix(decoded, "$")
	if !ok || strings.TrimSpace(host) == "" || strings.ContainsAny(host, "$/ ") {
		return PublishableKey{}, domain.WrapError(domain.ErrConfig, op, fmt.Errorf("malformed key payload"))
	}
	return PublishableKey{Raw: key, Live: live, Frontend: host}, nil
}

func decodeBase64(s string) (string, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if out, err := enc.DecodeString(s); err == nil {
			return string(out), nil
		}
	}
	return "", fmt.Errorf("key payload is not base64")
}

// StaticTokenSource returns one fixed session token.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: strings.TrimSpace(token)}
}

func (s *StaticTokenSource) Token(context.Context) (string, error) {
	if s.token == "" {
		return "", domain.WrapError(domain.ErrUnauthorized, "static token", fmt.Errorf("token is empty"))
	}
	return s.token, nil
}

// FileTokenSource re-reads the token file on every call so an external
// sign-in helper can rotate short-lived session tokens.
type FileTokenSource struct {
	path string
}

func NewFileTokenSource(path string) *FileTokenSource {
	return &FileTokenSource{path: path}
}

func (s *FileTokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return "", domain.WrapError(domain.ErrUnauthorized, "read token file", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", domain.WrapError(domain.ErrUnauthorized, "read token file", fmt.Errorf("%s is empty", s.path))
	}
	return token, nil
}
