package imagegen

import (
	"context"
	"errors"
)

var ErrNoImage = errors.New("model returned no image")

// Image is an encoded picture with its media type.
type Image struct {
	MIMEType string
	Data     []byte
}

type Provider interface {
	// Generate renders prompt. refs are sent ahead of the text as visual
	// references.
	Generate(ctx context.Context, prompt string, refs []Image) (Image, error)
	Close() error
}
