package services

import (
	"context"
	"strings"

	"github.com/yoockh/lumina/internal/providers/stt"
	"github.com/yoockh/lumina/internal/utils"
)

type DictationService interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}

type dictationService struct {
	stt stt.Provider
}

func NewDictationService(p stt.Provider) DictationService {
	return &dictationService{stt: p}
}

func (s *dictationService) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	const op = "DictationService.Transcribe"

	if len(audio) == 0 {
		return "", utils.E(utils.CodeInvalidArgument, op, "audio is required", nil)
	}

	text, _, err := s.stt.Transcribe(ctx, audio, language)
	if err != nil {
		return "", utils.Remote(op, "transcription failed", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "no speech recognised", nil)
	}
	return text, nil
}
