// Package stream drains a model response into a FieldRecord, reporting
// provisional field values while the response is still arriving.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yoockh/lumina/internal/extract"
	"github.com/yoockh/lumina/internal/models"
)

const (
	// MaxBufferBytes caps one response body.
	MaxBufferBytes = 1 << 20

	// MaxMissing is how many fields a malformed response may lack and
	// still be returned as a degraded record.
	MaxMissing = 2
)

var (
	ErrIncomplete = errors.New("generation incomplete")
	ErrBufferFull = errors.New("stream exceeds buffer limit")
	ErrConsumed   = errors.New("consumer already finished")
)

// IncompleteError names the fields a response never produced.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: missing keys: %s", ErrIncomplete, strings.Join(e.Missing, ", "))
}

func (e *IncompleteError) Is(target error) bool { return target == ErrIncomplete }

// Listener receives the fields that changed since its previous call.
type Listener func(delta models.Partial)

// Consumer owns the buffer of a single response. It is not reusable.
type Consumer struct {
	buf      strings.Builder
	ex       *extract.Extractor
	finished bool
}

func NewConsumer() *Consumer {
	return &Consumer{ex: extract.New()}
}

// Feed appends chunk and returns the fields it changed, or nil.
func (c *Consumer) Feed(chunk string) (models.Partial, error) {
	if c.finished {
		return nil, ErrConsumed
	}
	if c.buf.Len()+len(chunk) > MaxBufferBytes {
		return nil, ErrBufferFull
	}
	if chunk == "" {
		return nil, nil
	}
	c.buf.WriteString(chunk)
	return c.ex.Update(c.buf.String()), nil
}

// Finish parses the whole buffer. A complete, well-formed object wins
// outright. Otherwise the provisional values are used, provided no more than
// MaxMissing fields are without content.
func (c *Consumer) Finish() (models.FieldRecord, error) {
	if c.finished {
		return models.FieldRecord{}, ErrConsumed
	}
	c.finished = true

	if rec, ok := parseStrict(c.buf.String()); ok {
		return rec, nil
	}

	partial := c.ex.Current()
	if missing := partial.Missing(); len(missing) > MaxMissing {
		return models.FieldRecord{}, &IncompleteError{Missing: missing}
	}
	return partial.Record(), nil
}

// parseStrict accepts a single JSON object carrying every known key as a
// string. Unknown keys are ignored.
func parseStrict(s string) (models.FieldRecord, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return models.FieldRecord{}, false
	}

	var rec models.FieldRecord
	for _, k := range models.FieldKeys() {
		v, ok := raw[k]
		if !ok {
			return models.FieldRecord{}, false
		}
		// null decodes into *string without error
		var str *string
		if err := json.Unmarshal(v, &str); err != nil || str == nil {
			return models.FieldRecord{}, false
		}
		rec = rec.With(k, *str)
	}
	return rec, true
}

// Consume drains a provider stream. A value on errs aborts immediately with
// no salvage; closing chunks ends the stream normally.
func Consume(ctx context.Context, chunks <-chan string, errs <-chan error, onPartial Listener) (models.FieldRecord, error) {
	c := NewConsumer()

	for chunks != nil {
		select {
		case <-ctx.Done():
			return models.FieldRecord{}, ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return models.FieldRecord{}, err
			}

		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if err := c.deliver(chunk, onPartial); err != nil {
				return models.FieldRecord{}, err
			}
		}
	}

	// the producer may report its error after closing chunks
	if errs != nil {
		select {
		case err, ok := <-errs:
			if ok && err != nil {
				return models.FieldRecord{}, err
			}
		case <-ctx.Done():
			return models.FieldRecord{}, ctx.Err()
		}
	}

	return c.Finish()
}

func (c *Consumer) deliver(chunk string, onPartial Listener) error {
	delta, err := c.Feed(chunk)
	if err != nil {
		return err
	}
	if delta != nil && onPartial != nil {
		onPartial(delta)
	}
	return nil
}
