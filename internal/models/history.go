package models

import "time"

const (
	StatusPending  = "pending"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

type HistoryEntry struct {
	ID        string      `json:"id"`
	Prompt    string      `json:"prompt"` // user input the record was expanded from
	Record    FieldRecord `json:"record"`
	ImageURL  string      `json:"image_url,omitempty"`
	Status    string      `json:"status"` // pending|complete
	Timestamp time.Time   `json:"timestamp"`
}

type BatchItem struct {
	ID       string      `json:"id"`
	Index    int         `json:"index"` // dispatch order
	Record   FieldRecord `json:"record"`
	Status   string      `json:"status"` // pending|complete|failed
	ImageURL string      `json:"image_url,omitempty"`
	Err      string      `json:"error,omitempty"`
}
