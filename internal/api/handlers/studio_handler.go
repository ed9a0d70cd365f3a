package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/lumina/internal/models"
	"github.com/yoockh/lumina/internal/services"
	"github.com/yoockh/lumina/internal/utils"
)

type StudioHandler struct {
	studios   *services.Studios
	dictation services.DictationService // nil when dictation is disabled
	maxBatch  int
}

func NewStudioHandler(studios *services.Studios, dictation services.DictationService, maxBatch int) *StudioHandler {
	return &StudioHandler{studios: studios, dictation: dictation, maxBatch: maxBatch}
}

// existing returns the workspace's studio without creating one.
func (h *StudioHandler) existing(c *gin.Context, op string) (*services.Studio, bool) {
	ws, ok := requireWorkspace(c, op)
	if !ok {
		return nil, false
	}
	s, ok := h.studios.Lookup(ws)
	if !ok {
		writeError(c, utils.E(utils.CodeNotFound, op, "workspace not found", nil))
	}
	return s, ok
}

type generateRequest struct {
	UserInput   string   `json:"user_input"`
	AudioBase64 string   `json:"audio_base64"`
	Language    string   `json:"language"`
	Images      []string `json:"images"`
}

// Generate accepts typed or dictated input and starts a session. Progress
// arrives over the workspace websocket.
func (h *StudioHandler) Generate(c *gin.Context) {
	const op = "StudioHandler.Generate"

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, op, "invalid json body", err)
		return
	}

	input := req.UserInput
	if strings.TrimSpace(input) == "" && req.AudioBase64 != "" {
		if h.dictation == nil {
			writeError(c, utils.E(utils.CodeUnavailable, op, "dictation is disabled", nil))
			return
		}
		audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			badRequest(c, op, "audio_base64 is not valid base64", err)
			return
		}
		if input, err = h.dictation.Transcribe(c.Request.Context(), audio, req.Language); err != nil {
			writeError(c, err)
			return
		}
	}

	// reject before a studio is allocated for the workspace
	if strings.TrimSpace(input) == "" {
		badRequest(c, op, "user_input is required", nil)
		return
	}

	sid, err := h.studios.Get(startWorkspace(c)).Generate(input, req.Images)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session_id": sid, "user_input": input})
}

type modifyRequest struct {
	Section     string `json:"section" binding:"required"`
	Instruction string `json:"instruction" binding:"required"`
}

func (h *StudioHandler) Modify(c *gin.Context) {
	const op = "StudioHandler.Modify"

	var req modifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, op, "section and instruction are required", err)
		return
	}
	s, ok := h.existing(c, op)
	if !ok {
		return
	}

	sid, err := s.Modify(req.Section, req.Instruction)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session_id": sid})
}

func (h *StudioHandler) Regenerate(c *gin.Context) {
	s, ok := h.existing(c, "StudioHandler.Regenerate")
	if !ok {
		return
	}

	sid, err := s.Regenerate()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session_id": sid})
}

type batchRequest struct {
	Count int `json:"count" binding:"required"`
}

func (h *StudioHandler) Batch(c *gin.Context) {
	const op = "StudioHandler.Batch"

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, op, "count is required", err)
		return
	}
	if h.maxBatch > 0 && req.Count > h.maxBatch {
		badRequest(c, op, "count exceeds the batch limit", nil)
		return
	}

	s, ok := h.existing(c, op)
	if !ok {
		return
	}

	b, err := s.Batch(req.Count)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session_id": b.SessionID, "placeholders": b.Items()})
}

func (h *StudioHandler) View(c *gin.Context) {
	ws, ok := requireWorkspace(c, "StudioHandler.View")
	if !ok {
		return
	}
	if s, ok := h.studios.Lookup(ws); ok {
		c.JSON(http.StatusOK, s.View())
		return
	}
	c.JSON(http.StatusOK, models.View{Phase: models.PhaseIdle})
}

func (h *StudioHandler) History(c *gin.Context) {
	ws, ok := requireWorkspace(c, "StudioHandler.History")
	if !ok {
		return
	}
	items := []models.HistoryEntry{}
	if s, ok := h.studios.Lookup(ws); ok {
		items = s.History()
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *StudioHandler) SelectHistory(c *gin.Context) {
	s, ok := h.existing(c, "StudioHandler.SelectHistory")
	if !ok {
		return
	}

	sid, err := s.SelectHistory(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sid})
}

func (h *StudioHandler) DeleteHistory(c *gin.Context) {
	s, ok := h.existing(c, "StudioHandler.DeleteHistory")
	if !ok {
		return
	}

	if err := s.DeleteHistory(c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StudioHandler) Notices(c *gin.Context) {
	ws, ok := requireWorkspace(c, "StudioHandler.Notices")
	if !ok {
		return
	}

	list, err := h.studios.Notices(c.Request.Context(), ws)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []models.Notice{}
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (h *StudioHandler) Reclaim(c *gin.Context) {
	ws, ok := requireWorkspace(c, "StudioHandler.Reclaim")
	if !ok {
		return
	}

	sid, err := h.studios.Reclaim(c.Request.Context(), ws, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sid})
}

func (h *StudioHandler) DismissNotice(c *gin.Context) {
	ws, ok := requireWorkspace(c, "StudioHandler.DismissNotice")
	if !ok {
		return
	}

	if err := h.studios.DismissNotice(c.Request.Context(), ws, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
