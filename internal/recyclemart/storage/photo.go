package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxPhotoBytes caps the size of an uploaded waste photo
const MaxPhotoBytes = 5 << 20

// allowed content types and the extension stored objects get
var photoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Photo is a validated image ready to store
type Photo struct {
	Data        []byte
	ContentType string
	Extension   string
}

// PhotoUploader stores waste photos and returns their public URL
type PhotoUploader interface {
	UploadPhoto(ctx context.Context, owner uuid.UUID, photo *Photo) (string, error)
}

// ReadPhoto reads at most MaxPhotoBytes from r and checks that the content is a
// JPEG, PNG or WebP image. The declared content type is ignored.
func ReadPhoto(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if len(data) == 0 {
		return nil, apperr.Invalid("photo", "is empty")
	}
	if len(data) > MaxPhotoBytes {
		return nil, apperr.Invalid("photo", "must be at most %d MB", MaxPhotoBytes>>20)
	}

	mtype := mimetype.Detect(data)
	for allowed, ext := range photoTypes {
		if mtype.Is(allowed) {
			return &Photo{Data: data, ContentType: allowed, Extension: ext}, nil
		}
	}
	return nil, apperr.Invalid("photo", "unsupported type %s, use JPEG, PNG or WebP", mtype.String())
}

// ObjectKey names the stored object for a photo
func ObjectKey(owner uuid.UUID, photo *Photo) string {
	return fmt.Sprintf("waste-photos/%s/%s%s", owner, uuid.New(), photo.Extension)
}

func (p *Photo) reader() io.Reader {
	return bytes.NewReader(p.Data)
}
