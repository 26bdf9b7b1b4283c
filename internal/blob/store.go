package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Store is addressable binary storage for message media and avatars.
// Media keys are content-addressed (identical bytes share one object);
// avatar keys are one mutable slot per user, overwritten on update.
type Store interface {
	// Put writes data under its content-addressed key if not already present
	// and returns the key. Writing identical bytes twice is a no-op.
	Put(ctx context.Context, data []byte, hint string) (string, error)
	// PutAvatar overwrites the avatar slot for username. Empty data writes
	// nothing and returns an empty key.
	PutAvatar(ctx context.Context, username string, data []byte) (string, error)
	// Get returns the stored bytes or apperrors.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object. A missing object is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ContentKey derives the storage key for data: sha256 hex plus an extension
// taken from the MIME-type or filename hint.
func ContentKey(data []byte, hint string) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + "." + Ext(hint)
}

// AvatarKey is the single avatar slot for a user. Avatars are normalized to
// PNG before storage, so the extension is fixed.
func AvatarKey(username string) string {
	return username + "_avatar.png"
}

// Ext extracts a file extension from a MIME-type-like hint ("image/png")
// or a filename ("clip.mp4"). Falls back to "bin".
func Ext(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if i := strings.LastIndexByte(hint, '/'); i >= 0 {
		sub := hint[i+1:]
		if j := strings.IndexAny(sub, "+;"); j >= 0 {
			sub = sub[:j]
		}
		if sub == "jpeg" {
			sub = "jpg"
		}
		if sub != "" {
			return sub
		}
		return "bin"
	}
	if ext := strings.TrimPrefix(filepath.Ext(hint), "."); ext != "" {
		return ext
	}
	return "bin"
}

// validKey rejects anything that could escape the storage namespace when a
// key arrives from the outside.
func validKey(key string) bool {
	if key == "" || strings.ContainsAny(key, "/\\") {
		return false
	}
	return key != "." && key != ".."
}
