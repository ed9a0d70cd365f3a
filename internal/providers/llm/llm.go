package llm

import "context"

type Provider interface {
	// StreamJSON returns the text chunks of a JSON object response. errs
	// carries at most one error and both channels are closed when the
	// response ends.
	StreamJSON(ctx context.Context, prompt string) (chunks <-chan string, errs <-chan error)
	Close() error
}

// Options configure the generation call once, at construction.
type Options struct {
	SystemInstruction string
	// StringFields are the required string properties of the response
	// object, with their descriptions.
	StringFields    []Field
	Temperature     float32
	MaxOutputTokens int32
}

type Field struct {
	Name        string
	Description string
}
