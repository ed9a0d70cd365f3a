package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yoockh/lumina/internal/models"
	"github.com/yoockh/lumina/internal/stream"
	"github.com/yoockh/lumina/internal/utils"
)

func TestExpand(t *testing.T) {
	llm := replyWith(recordJSON)
	svc := NewExpansionService(llm)

	var partials int
	rec, err := svc.Expand(context.Background(), ExpansionRequest{UserInput: "  a fox  "}, func(models.Partial) { partials++ })
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if rec != foxRecord {
		t.Errorf("Expand() = %+v", rec)
	}
	if partials == 0 {
		t.Error("no partial updates")
	}
	if got := llm.lastPrompt(); got != `Create a comprehensive prompt for: "a fox"` {
		t.Errorf("prompt = %q", got)
	}
}

func TestExpandModification(t *testing.T) {
	llm := replyWith(recordJSON)
	svc := NewExpansionService(llm)

	prior := foxRecord
	_, err := svc.Expand(context.Background(), ExpansionRequest{
		UserInput:    "a fox",
		Prior:        &prior,
		Modification: ModificationText(models.KeySubject, "make it red"),
	}, nil)
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	p := llm.lastPrompt()
	for _, want := range []string{
		`"subject":"A *glowing* fox"`,
		`Please modify it according to this request: "For the subject, please: make it red"`,
		"Keep the rest of the high-quality details consistent.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt %q missing %q", p, want)
		}
	}
}

func TestExpandErrors(t *testing.T) {
	tests := []struct {
		name     string
		req      ExpansionRequest
		reply    func(string) ([]string, error)
		wantCode utils.Code
		wantMsg  string
	}{
		{
			name:     "empty input",
			req:      ExpansionRequest{UserInput: "   "},
			wantCode: utils.CodeInvalidArgument,
		},
		{
			name: "incomplete document",
			req:  ExpansionRequest{UserInput: "fox"},
			reply: func(string) ([]string, error) {
				return []string{`{"subject": "fox", "environment": "snow", "atmosphere": "fog"`}, nil
			},
			wantCode: utils.CodeUnprocessable,
			wantMsg:  "missing keys: microDetails, techSpecs, colorGrading, composition",
		},
		{
			name: "transport failure",
			req:  ExpansionRequest{UserInput: "fox"},
			reply: func(string) ([]string, error) {
				return []string{recordJSON[:40]}, errors.New("stream reset")
			},
			wantCode: utils.CodeUnavailable,
		},
		{
			name: "oversized response is a transport failure",
			req:  ExpansionRequest{UserInput: "fox"},
			reply: func(string) ([]string, error) {
				return []string{strings.Repeat(" ", stream.MaxBufferBytes), "{"}, nil
			},
			wantCode: utils.CodeUnavailable,
		},
		{
			name: "deadline",
			req:  ExpansionRequest{UserInput: "fox"},
			reply: func(string) ([]string, error) {
				return nil, context.DeadlineExceeded
			},
			wantCode: utils.CodeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &scriptedLLM{respond: tt.reply}
			_, err := NewExpansionService(llm).Expand(context.Background(), tt.req, nil)
			if !utils.IsCode(err, tt.wantCode) {
				t.Fatalf("Expand() error = %v, want code %s", err, tt.wantCode)
			}
			if tt.wantMsg != "" && !strings.Contains(utils.Message(err), tt.wantMsg) {
				t.Errorf("message = %q, want it to contain %q", utils.Message(err), tt.wantMsg)
			}
			if tt.reply == nil && llm.lastPrompt() != "" {
				t.Error("provider called for invalid request")
			}
		})
	}
}
