// Package proof stores payment-proof artifacts uploaded by tenants.
package proof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
)

// Store persists artifacts by key. Deleting a missing key is not an error.
type Store interface {
	Put(ctx context.Context, req PutRequest) (Artifact, error)
	Delete(ctx context.Context, key string) error
}

type PutRequest struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Artifact struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

var (
	ErrInvalidKey         = errors.New("invalid_proof_key")
	ErrInvalidContentType = errors.New("invalid_proof_content_type")
	ErrEmptyBody          = errors.New("empty_proof")
)

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// AllowedContentType reports whether proofs of this media type are accepted.
func AllowedContentType(contentType string) bool {
	_, ok := extensions[normalizeContentType(contentType)]
	return ok
}

// NewKey builds proofs/<invoice id>/<ulid>-<slug>.<ext>. The extension follows
// the content type so a renamed file cannot change how it is served.
func NewKey(invoiceID, filename, contentType string) (string, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return "", ErrInvalidKey
	}
	ext, ok := extensions[normalizeContentType(contentType)]
	if !ok {
		return "", ErrInvalidContentType
	}

	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	name := slug.Make(base)
	if name == "" {
		name = "proof"
	}
	if len(name) > 48 {
		name = strings.Trim(name[:48], "-")
	}

	return fmt.Sprintf("proofs/%s/%s-%s%s", invoiceID, strings.ToLower(ulid.Make().String()), name, ext), nil
}

func validateKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

func normalizeContentType(contentType string) string {
	value := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(value, ";"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	return value
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
