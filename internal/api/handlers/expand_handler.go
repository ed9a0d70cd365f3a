package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/lumina/internal/models"
	"github.com/yoockh/lumina/internal/services"
)

// ExpandHandler exposes the single-shot operations without any session
// bookkeeping.
type ExpandHandler struct {
	expansion services.ExpansionService
	images    services.ImageService
	dictation services.DictationService
}

func NewExpandHandler(expansion services.ExpansionService, images services.ImageService, dictation services.DictationService) *ExpandHandler {
	return &ExpandHandler{expansion: expansion, images: images, dictation: dictation}
}

type expandRequest struct {
	UserInput     string              `json:"user_input"`
	CurrentPrompt *models.FieldRecord `json:"current_prompt"`
	Modification  string              `json:"modification"`
}

// Expand streams the record as server-sent events: "partial" carries the
// changed fields, then exactly one "final" or "error".
func (h *ExpandHandler) Expand(c *gin.Context) {
	const op = "ExpandHandler.Expand"

	var req expandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, op, "invalid json body", err)
		return
	}
	modifying := req.CurrentPrompt != nil && strings.TrimSpace(req.Modification) != ""
	if strings.TrimSpace(req.UserInput) == "" && !modifying {
		badRequest(c, op, "user_input is required", nil)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	rec, err := h.expansion.Expand(c.Request.Context(), services.ExpansionRequest{
		UserInput:    req.UserInput,
		Prior:        req.CurrentPrompt,
		Modification: req.Modification,
	}, func(delta models.Partial) {
		c.SSEvent("partial", delta)
		c.Writer.Flush()
	})
	if err != nil {
		_ = c.Error(err)
		_, body := toAPIError(err)
		c.SSEvent("error", body)
		c.Writer.Flush()
		return
	}
	c.SSEvent("final", rec)
	c.Writer.Flush()
}

type imageRequest struct {
	PromptData models.FieldRecord `json:"prompt_data"`
	Images     []string           `json:"images"`
}

func (h *ExpandHandler) Image(c *gin.Context) {
	const op = "ExpandHandler.Image"

	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, op, "invalid json body", err)
		return
	}

	url, err := h.images.Generate(c.Request.Context(), req.PromptData, req.Images)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": url})
}

type dictateRequest struct {
	AudioBase64 string `json:"audio_base64" binding:"required"`
	Language    string `json:"language"`
}

func (h *ExpandHandler) Dictate(c *gin.Context) {
	const op = "ExpandHandler.Dictate"

	var req dictateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, op, "audio_base64 is required", err)
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil {
		badRequest(c, op, "audio_base64 is not valid base64", err)
		return
	}

	text, err := h.dictation.Transcribe(c.Request.Context(), audio, req.Language)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}
