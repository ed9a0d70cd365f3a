package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yoockh/lumina/internal/utils"
)

const WorkspaceHeader = "X-Workspace-Id"

type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

func toAPIError(err error) (int, APIError) {
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		return status, APIError{Code: ae.Code, Message: ae.Message}
	}
	return status, APIError{Code: utils.CodeInternal, Message: http.StatusText(status)}
}

func writeError(c *gin.Context, err error) {
	status, body := toAPIError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, op, msg string, err error) {
	writeError(c, utils.E(utils.CodeInvalidArgument, op, msg, err))
}

// workspaceID reads the workspace from the header, or ?workspace= for
// browser websockets.
func workspaceID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader(WorkspaceHeader))
	if id == "" {
		id = strings.TrimSpace(c.Query("workspace"))
	}
	if id == "" {
		return "", false
	}
	c.Header(WorkspaceHeader, id)
	c.Set("workspace", id)
	return id, true
}

// requireWorkspace is workspaceID that answers 400 when none is given.
func requireWorkspace(c *gin.Context, op string) (string, bool) {
	id, ok := workspaceID(c)
	if !ok {
		badRequest(c, op, WorkspaceHeader+" header is required", nil)
	}
	return id, ok
}

// startWorkspace is workspaceID that assigns a fresh id when none is given.
// Only operations that start work use it.
func startWorkspace(c *gin.Context) string {
	if id, ok := workspaceID(c); ok {
		return id
	}
	id := uuid.NewString()
	c.Header(WorkspaceHeader, id)
	c.Set("workspace", id)
	return id
}
