package proof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// LocalStore keeps artifacts on the local filesystem. The HTTP server exposes
// the directory under the public base URL.
type LocalStore struct {
	dir     string
	baseURL string
	log     *zap.Logger
}

func NewLocalStore(dir, baseURL string, log *zap.Logger) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("storage local dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage local dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage local dir: %w", err)
	}
	return &LocalStore{dir: abs, baseURL: baseURL, log: log.Named("proof.local")}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Put(ctx context.Context, req PutRequest) (Artifact, error) {
	if err := validateKey(req.Key); err != nil {
		return Artifact{}, err
	}
	if req.Body == nil {
		return Artifact{}, ErrEmptyBody
	}
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	target := s.path(req.Key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Artifact{}, err
	}

	// write to a temp file in the same directory, then rename into place
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return Artifact{}, err
	}
	written, err := io.Copy(tmp, req.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written == 0 {
		err = ErrEmptyBody
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return Artifact{}, err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return Artifact{}, err
	}

	s.log.Debug("proof stored", zap.String("key", req.Key), zap.Int64("bytes", written))
	return Artifact{Key: req.Key, URL: joinURL(s.baseURL, req.Key)}, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}
