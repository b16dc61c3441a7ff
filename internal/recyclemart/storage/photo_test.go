package storage

import (
	"bytes"
	"strings"
	"testing"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

func TestReadPhotoAcceptsImages(t *testing.T) {
	photo, err := ReadPhoto(bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", photo.ContentType)
	assert.Equal(t, ".png", photo.Extension)

	photo, err = ReadPhoto(bytes.NewReader(jpegHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", photo.ContentType)
}

func TestReadPhotoRejections(t *testing.T) {
	_, err := ReadPhoto(strings.NewReader(""))
	assert.True(t, apperr.IsValidation(err))

	_, err = ReadPhoto(strings.NewReader("just some text, not an image"))
	assert.True(t, apperr.IsValidation(err))

	huge := append(append([]byte{}, jpegHeader...), make([]byte, MaxPhotoBytes)...)
	_, err = ReadPhoto(bytes.NewReader(huge))
	assert.True(t, apperr.IsValidation(err))
}

func TestObjectKey(t *testing.T) {
	owner := uuid.New()
	key := ObjectKey(owner, &Photo{Extension: ".webp"})

	assert.True(t, strings.HasPrefix(key, "waste-photos/"+owner.String()+"/"))
	assert.True(t, strings.HasSuffix(key, ".webp"))
}
