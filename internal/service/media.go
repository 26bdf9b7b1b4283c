package service

import (
	"bytes"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/Debayan00100101/chatt/internal/models"
)

const (
	thumbWidth  = 320
	avatarWidth = 256
)

// KindFromMIME maps an upload's MIME-type hint to a message kind.
func KindFromMIME(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return models.KindImage
	case strings.HasPrefix(mime, "video/"):
		return models.KindVideo
	case strings.HasPrefix(mime, "audio/"):
		return models.KindAudio
	default:
		return models.KindFile
	}
}

func generateThumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, thumbWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalizeAvatar re-encodes an avatar as a bounded PNG so the per-user slot
// always holds one format. Undecodable input is stored as-is.
func normalizeAvatar(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	if img.Bounds().Dx() > avatarWidth {
		img = imaging.Resize(img, avatarWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return data
	}
	return buf.Bytes()
}
