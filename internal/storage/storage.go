package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedURL string, err error)
}

// ImageStore turns a rendered image into a handle the UI can display.
type ImageStore interface {
	Save(ctx context.Context, contentType string, data []byte) (handle string, err error)
}

// DataURLStore keeps the image inline: the handle is the data URL itself.
type DataURLStore struct{}

func (DataURLStore) Save(_ context.Context, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	return DataURL(contentType, data), nil
}

// UploadStore writes images under prefix with a random name.
type UploadStore struct {
	Uploader Uploader
	Prefix   string // ex: "images/"
}

func (s UploadStore) Save(ctx context.Context, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	name := s.Prefix + uuid.NewString() + extension(contentType)
	return s.Uploader.Upload(ctx, name, contentType, bytes.NewReader(data))
}

func extension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

var ErrBadDataURL = errors.New("malformed data url")

func DataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL decodes a base64 data URL ("data:<type>;base64,<payload>").
func ParseDataURL(s string) (contentType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrBadDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrBadDataURL
	}
	contentType, ok = strings.CutSuffix(meta, ";base64")
	if !ok || contentType == "" {
		return "", nil, ErrBadDataURL
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return "", nil, ErrBadDataURL
	}
	return contentType, data, nil
}
