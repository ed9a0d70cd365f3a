package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/lumina/internal/models"
)

const recordJSON = `{"subject": "A *glowing* fox", "environment": "snowfield", "atmosphere": "blue hour", ` +
	`"microDetails": "frost", "techSpecs": "85mm f/1.4", "colorGrading": "teal", "composition": "low angle"}`

var foxRecord = models.FieldRecord{
	Subject:      "A *glowing* fox",
	Environment:  "snowfield",
	Atmosphere:   "blue hour",
	MicroDetails: "frost",
	TechSpecs:    "85mm f/1.4",
	ColorGrading: "teal",
	Composition:  "low angle",
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func chunk(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

// scriptedLLM streams the reply of respond for every prompt it receives.
type scriptedLLM struct {
	respond func(prompt string) ([]string, error)

	mu      sync.Mutex
	prompts []string
}

func replyWith(doc string) *scriptedLLM {
	return &scriptedLLM{respond: func(string) ([]string, error) { return chunk(doc, 9), nil }}
}

func (f *scriptedLLM) StreamJSON(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		parts, err := f.respond(prompt)
		for _, p := range parts {
			select {
			case out <- p:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err != nil {
			errs <- err
		}
	}()
	return out, errs
}

func (f *scriptedLLM) Close() error { return nil }

func (f *scriptedLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// fakeImages numbers its calls; a call can be held on a gate or failed.
type fakeImages struct {
	mu    sync.Mutex
	calls int
	gates map[int]chan struct{}
	fail  map[int]error
	recs  []models.FieldRecord
}

func newFakeImages() *fakeImages {
	return &fakeImages{gates: map[int]chan struct{}{}, fail: map[int]error{}}
}

func (f *fakeImages) hold(call int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[call] = g
	return g
}

func (f *fakeImages) Generate(ctx context.Context, rec models.FieldRecord, _ []string) (string, error) {
	f.mu.Lock()
	n := f.calls
	f.calls++
	f.recs = append(f.recs, rec)
	gate, err := f.gates[n], f.fail[n]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://img.test/%d.png", n), nil
}

func (f *fakeImages) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
