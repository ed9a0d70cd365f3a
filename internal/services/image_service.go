package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/lumina/internal/models"
	"github.com/yoockh/lumina/internal/providers/imagegen"
	"github.com/yoockh/lumina/internal/storage"
	"github.com/yoockh/lumina/internal/utils"
)

type ImageService interface {
	// Generate renders rec and returns a displayable handle. refs are
	// optional data URLs of reference images.
	Generate(ctx context.Context, rec models.FieldRecord, refs []string) (string, error)
}

type imageService struct {
	gen   imagegen.Provider
	store storage.ImageStore
	log   logrus.FieldLogger
}

func NewImageService(gen imagegen.Provider, store storage.ImageStore, log logrus.FieldLogger) ImageService {
	if store == nil {
		store = storage.DataURLStore{}
	}
	return &imageService{gen: gen, store: store, log: log}
}

func (s *imageService) Generate(ctx context.Context, rec models.FieldRecord, refs []string) (string, error) {
	const op = "ImageService.Generate"

	if rec.IsZero() {
		return "", utils.E(utils.CodeInvalidArgument, op, "prompt_data is required", nil)
	}

	img, err := s.gen.Generate(ctx, imagePrompt(rec), s.references(refs))
	if err != nil {
		if errors.Is(err, imagegen.ErrNoImage) {
			return "", utils.E(utils.CodeUnprocessable, op, "no image data found in response", err)
		}
		return "", utils.Remote(op, "image generation failed", err)
	}

	handle, err := s.store.Save(ctx, img.MIMEType, img.Data)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to store image", err)
	}
	return handle, nil
}

// references decodes the usable reference images; anything else is skipped.
func (s *imageService) references(refs []string) []imagegen.Image {
	var out []imagegen.Image
	for i, r := range refs {
		ct, data, err := storage.ParseDataURL(r)
		if err != nil || !strings.HasPrefix(ct, "image/") {
			s.log.WithField("index", i).Warn("skipping malformed reference image")
			continue
		}
		out = append(out, imagegen.Image{MIMEType: ct, Data: data})
	}
	return out
}
