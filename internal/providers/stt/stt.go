package stt

import (
	"context"
	"strings"
)

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (text string, confidence float64, err error)
	Close() error
}

// NormalizeLanguage maps short codes to BCP-47 tags the recognizer accepts.
func NormalizeLanguage(lang string) string {
	switch l := strings.TrimSpace(lang); strings.ToLower(l) {
	case "":
		return "en-US"
	case "en":
		return "en-US"
	case "id":
		return "id-ID"
	default:
		return l
	}
}
