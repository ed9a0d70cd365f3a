// Package events fans workspace state changes out to connected clients.
package events

import (
	"context"
	"encoding/json"

	"github.com/yoockh/lumina/internal/models"
)

const (
	TypeView    = "view"
	TypePartial = "partial"
	TypeHistory = "history"
	TypeNotice  = "notice"
)

type Event struct {
	Type      string                `json:"type"`
	SessionID string                `json:"session_id,omitempty"`
	Fields    models.Partial        `json:"fields,omitempty"`
	View      *models.View          `json:"view,omitempty"`
	History   []models.HistoryEntry `json:"history,omitempty"`
	Notice    *models.Notice        `json:"notice,omitempty"`
}

// Bus delivers JSON-encoded events per workspace. Delivery is best effort:
// a subscriber that falls behind misses events.
type Bus interface {
	Publish(ctx context.Context, workspace string, ev Event) error
	// Subscribe returns a channel of encoded events and a func that ends
	// the subscription and closes the channel.
	Subscribe(ctx context.Context, workspace string) (<-chan []byte, func(), error)
}

func channel(workspace string) string {
	return "studio:" + workspace + ":events"
}

func encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
