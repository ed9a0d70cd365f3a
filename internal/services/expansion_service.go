package services

import (
	"context"
	"errors"
	"strings"

	"github.com/yoockh/lumina/internal/models"
	"github.com/yoockh/lumina/internal/providers/llm"
	"github.com/yoockh/lumina/internal/stream"
	"github.com/yoockh/lumina/internal/utils"
)

type ExpansionRequest struct {
	UserInput    string
	Prior        *models.FieldRecord // record being modified, if any
	Modification string
}

type ExpansionService interface {
	// Expand streams a FieldRecord for req. onPartial receives only the
	// fields that changed and may be nil.
	Expand(ctx context.Context, req ExpansionRequest, onPartial stream.Listener) (models.FieldRecord, error)
}

type expansionService struct {
	llm llm.Provider
}

func NewExpansionService(p llm.Provider) ExpansionService {
	return &expansionService{llm: p}
}

func (s *expansionService) Expand(ctx context.Context, req ExpansionRequest, onPartial stream.Listener) (models.FieldRecord, error) {
	const op = "ExpansionService.Expand"

	req.UserInput = strings.TrimSpace(req.UserInput)
	req.Modification = strings.TrimSpace(req.Modification)
	modifying := req.Prior != nil && req.Modification != ""
	if req.UserInput == "" && !modifying {
		return models.FieldRecord{}, utils.E(utils.CodeInvalidArgument, op, "user_input is required", nil)
	}

	// stops the provider if Consume gives up early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, errs := s.llm.StreamJSON(ctx, expansionPrompt(req))
	rec, err := stream.Consume(ctx, chunks, errs, onPartial)
	if err != nil {
		var ie *stream.IncompleteError
		if errors.As(err, &ie) {
			return models.FieldRecord{}, utils.E(utils.CodeUnprocessable, op, ie.Error(), err)
		}
		// includes stream.ErrBufferFull
		return models.FieldRecord{}, utils.Remote(op, "prompt expansion failed", err)
	}
	return rec, nil
}
