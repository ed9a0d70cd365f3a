package models

import "time"

const (
	NoticeResult  = "result"
	NoticeBatch   = "batch"
	NoticeFailure = "failure"
)

// Notice is a background outcome that was not allowed to touch the view.
type Notice struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"` // session that produced it
	Kind      string    `json:"kind"`       // result|batch|failure
	Message   string    `json:"message"`
	Successes int       `json:"successes,omitempty"`
	Result    *Result   `json:"result,omitempty"` // nil for failures
	CreatedAt time.Time `json:"created_at"`
}

func (n Notice) Reclaimable() bool { return n.Result != nil }

// Result is what a finished generation would have shown.
type Result struct {
	Prompt    string      `json:"prompt"`
	Record    FieldRecord `json:"record"`
	ImageURL  string      `json:"image_url"`
	HistoryID string      `json:"history_id,omitempty"`
}
