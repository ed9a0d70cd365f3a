package stream

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/yoockh/lumina/internal/models"
)

const fullDoc = `{"subject": "A *glowing* fox", "environment": "snowfield", "atmosphere": "blue hour",` +
	` "microDetails": "frost on whiskers", "techSpecs": "85mm f/1.4", "colorGrading": "teal and amber",` +
	` "composition": "low angle"}`

var fullRecord = models.FieldRecord{
	Subject:      "A *glowing* fox",
	Environment:  "snowfield",
	Atmosphere:   "blue hour",
	MicroDetails: "frost on whiskers",
	TechSpecs:    "85mm f/1.4",
	ColorGrading: "teal and amber",
	Composition:  "low angle",
}

// provider mimics llm.Provider: chunks first, then at most one error.
func provider(parts []string, err error) (<-chan string, <-chan error) {
	out := make(chan string, len(parts))
	errs := make(chan error, 1)
	for _, p := range parts {
		out <- p
	}
	if err != nil {
		errs <- err
	}
	close(errs)
	close(out)
	return out, errs
}

func split(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

func TestConsumeStrictParse(t *testing.T) {
	chunks, errs := provider(split(fullDoc, 7), nil)

	merged := models.Partial{}
	calls := 0
	got, err := Consume(context.Background(), chunks, errs, func(delta models.Partial) {
		calls++
		if len(delta) == 0 {
			t.Error("listener called with empty delta")
		}
		for k, v := range delta {
			merged[k] = v
		}
	})
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if got != fullRecord {
		t.Errorf("Consume() = %+v, want %+v", got, fullRecord)
	}
	if !reflect.DeepEqual(merged, fullRecord.Partial()) {
		t.Errorf("merged partials = %#v", merged)
	}
	if calls < 2 {
		t.Errorf("listener called %d times, want incremental updates", calls)
	}
}

func TestFinish(t *testing.T) {
	tests := []struct {
		name        string
		buf         string
		want        models.FieldRecord
		wantMissing []string
	}{
		{
			name: "extra keys ignored",
			buf:  strings.TrimSuffix(fullDoc, "}") + `, "mood": "calm"}`,
			want: fullRecord,
		},
		{
			name: "two fields missing degrades",
			buf: `{"subject": "fox", "environment": "snow", "atmosphere": "fog", ` +
				`"microDetails": "frost", "techSpecs": "85mm"`,
			want: models.FieldRecord{
				Subject:      "fox",
				Environment:  "snow",
				Atmosphere:   "fog",
				MicroDetails: "frost",
				TechSpecs:    "85mm",
			},
		},
		{
			name: "truncated inside last value degrades",
			buf: `{"subject": "fox", "environment": "snow", "atmosphere": "fog", ` +
				`"microDetails": "frost", "techSpecs": "85mm", "colorGrading": "warm", "composition": "centr`,
			want: models.FieldRecord{
				Subject:      "fox",
				Environment:  "snow",
				Atmosphere:   "fog",
				MicroDetails: "frost",
				TechSpecs:    "85mm",
				ColorGrading: "warm",
				Composition:  "centr",
			},
		},
		{
			name:        "four fields missing fails",
			buf:         `{"subject": "fox", "environment": "snow", "atmosphere": "fog"`,
			wantMissing: []string{"microDetails", "techSpecs", "colorGrading", "composition"},
		},
		{
			name: "non-string value falls back to provisional values",
			buf: `{"subject": "fox", "environment": "snow", "atmosphere": "fog", "microDetails": "frost", ` +
				`"techSpecs": 85, "colorGrading": "warm", "composition": "low"}`,
			want: models.FieldRecord{
				Subject:      "fox",
				Environment:  "snow",
				Atmosphere:   "fog",
				MicroDetails: "frost",
				ColorGrading: "warm",
				Composition:  "low",
			},
		},
		{
			name: "null values are not strings",
			buf: `{"subject": null, "environment": null, "atmosphere": null, "microDetails": null, ` +
				`"techSpecs": null, "colorGrading": null, "composition": null}`,
			wantMissing: models.FieldKeys(),
		},
		{
			name: "one null value degrades",
			buf: `{"subject": "fox", "environment": "snow", "atmosphere": "fog", "microDetails": "frost", ` +
				`"techSpecs": "85mm", "colorGrading": "warm", "composition": null}`,
			want: models.FieldRecord{
				Subject:      "fox",
				Environment:  "snow",
				Atmosphere:   "fog",
				MicroDetails: "frost",
				TechSpecs:    "85mm",
				ColorGrading: "warm",
			},
		},
		{
			name:        "nothing recognisable",
			buf:         "I cannot help with that.",
			wantMissing: models.FieldKeys(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConsumer()
			if _, err := c.Feed(tt.buf); err != nil {
				t.Fatalf("Feed() error = %v", err)
			}
			got, err := c.Finish()

			if tt.wantMissing != nil {
				var ie *IncompleteError
				if !errors.As(err, &ie) {
					t.Fatalf("Finish() error = %v, want IncompleteError", err)
				}
				if !errors.Is(err, ErrIncomplete) {
					t.Error("errors.Is(err, ErrIncomplete) = false")
				}
				if !reflect.DeepEqual(ie.Missing, tt.wantMissing) {
					t.Errorf("Missing = %v, want %v", ie.Missing, tt.wantMissing)
				}
				for _, k := range tt.wantMissing {
					if !strings.Contains(err.Error(), k) {
						t.Errorf("error %q does not name %s", err, k)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Finish() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Finish() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConsumeTransportErrorNoSalvage(t *testing.T) {
	boom := errors.New("connection reset")
	// enough content for a degraded record, but the transport failed
	chunks, errs := provider([]string{fullDoc[:len(fullDoc)-20]}, boom)

	got, err := Consume(context.Background(), chunks, errs, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Consume() error = %v, want %v", err, boom)
	}
	if !got.IsZero() {
		t.Errorf("Consume() returned record %+v alongside transport error", got)
	}
}

func TestConsumeContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chunks := make(chan string)
	errs := make(chan error)
	if _, err := Consume(ctx, chunks, errs, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Consume() error = %v, want context.Canceled", err)
	}
}

func TestFeedBufferLimit(t *testing.T) {
	c := NewConsumer()
	if _, err := c.Feed(strings.Repeat("x", MaxBufferBytes)); err != nil {
		t.Fatalf("Feed() at limit error = %v", err)
	}
	if _, err := c.Feed("x"); !errors.Is(err, ErrBufferFull) {
		t.Errorf("Feed() past limit error = %v, want ErrBufferFull", err)
	}
}

func TestConsumerSingleUse(t *testing.T) {
	c := NewConsumer()
	_, _ = c.Feed(fullDoc)
	if _, err := c.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if _, err := c.Finish(); !errors.Is(err, ErrConsumed) {
		t.Errorf("second Finish() error = %v, want ErrConsumed", err)
	}
	if _, err := c.Feed("x"); !errors.Is(err, ErrConsumed) {
		t.Errorf("Feed() after Finish error = %v, want ErrConsumed", err)
	}
}
