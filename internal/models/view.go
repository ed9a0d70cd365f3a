package models

import "time"

const (
	PhaseIdle            = "idle"
	PhaseExpandingPrompt = "expanding_prompt"
	PhaseGeneratingImage = "generating_image"
	PhaseComplete        = "complete"
	PhaseError           = "error"
)

// View is the primary state a workspace is looking at.
type View struct {
	SessionID string      `json:"session_id"`
	Phase     string      `json:"phase"`
	UserInput string      `json:"user_input"`
	Record    FieldRecord `json:"record"`
	ImageURL  string      `json:"image_url,omitempty"`
	Error     string      `json:"error,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}
