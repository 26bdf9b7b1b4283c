package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Debayan00100101/chatt/internal/apperrors"
)

// LocalStore keeps blobs as flat files under a single directory, the same
// layout the media dir of the original deployment used.
type LocalStore struct {
	fs  afero.Fs
	dir string
	log *zap.SugaredLogger
}

func NewLocalStore(fs afero.Fs, dir string, log *zap.SugaredLogger) (*LocalStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create blob dir: %v", apperrors.ErrStorage, err)
	}
	return &LocalStore{fs: fs, dir: dir, log: log}, nil
}

func (s *LocalStore) path(key string) string { return filepath.Join(s.dir, key) }

func (s *LocalStore) Put(_ context.Context, data []byte, hint string) (string, error) {
	key := ContentKey(data, hint)
	ok, err := afero.Exists(s.fs, s.path(key))
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %v", apperrors.ErrStorage, key, err)
	}
	if ok {
		// identical bytes already stored, nothing to write
		return key, nil
	}
	if err := s.write(key, data); err != nil {
		return "", err
	}
	return key, nil
}

func (s *LocalStore) PutAvatar(_ context.Context, username string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	key := AvatarKey(username)
	if err := s.write(key, data); err != nil {
		return "", err
	}
	return key, nil
}

// write lands data atomically: temp file in the same dir, then rename, so a
// concurrent reader never observes a partial blob.
func (s *LocalStore) write(key string, data []byte) error {
	tmp := s.path(key + ".tmp-" + uuid.NewString())
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", apperrors.ErrStorage, key, err)
	}
	if err := s.fs.Rename(tmp, s.path(key)); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", apperrors.ErrStorage, key, err)
	}
	return nil
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, apperrors.ErrNotFound
	}
	data, err := afero.ReadFile(s.fs, s.path(key))
	if os.IsNotExist(err) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", apperrors.ErrStorage, key, err)
	}
	return data, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return nil
	}
	err := s.fs.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		// best-effort: a blob left behind is inert
		s.log.Warnw("blob delete failed", "key", key, "err", err)
	}
	return nil
}

func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	if !validKey(key) {
		return false, nil
	}
	ok, err := afero.Exists(s.fs, s.path(key))
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", apperrors.ErrStorage, key, err)
	}
	return ok, nil
}
