package llm

import (
	"context"
	"errors"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string, opts Options) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	m := c.GenerativeModel(modelName)
	if opts.Temperature > 0 {
		m.SetTemperature(opts.Temperature)
	}
	if opts.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(opts.MaxOutputTokens)
	}
	if opts.SystemInstruction != "" {
		m.SystemInstruction = &vertexgenai.Content{
			Parts: []vertexgenai.Part{vertexgenai.Text(opts.SystemInstruction)},
		}
	}
	if len(opts.StringFields) > 0 {
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = objectSchema(opts.StringFields)
	}

	return &VertexGemini{client: c, model: m}, nil
}

func objectSchema(fields []Field) *vertexgenai.Schema {
	s := &vertexgenai.Schema{
		Type:       vertexgenai.TypeObject,
		Properties: make(map[string]*vertexgenai.Schema, len(fields)),
	}
	for _, f := range fields {
		s.Properties[f.Name] = &vertexgenai.Schema{Type: vertexgenai.TypeString, Description: f.Description}
		s.Required = append(s.Required, f.Name)
	}
	return s
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) StreamJSON(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		it := v.model.GenerateContentStream(ctx, vertexgenai.Text(prompt))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- err
				return
			}

			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					t, ok := part.(vertexgenai.Text)
					if !ok || t == "" {
						continue
					}
					select {
					case out <- string(t):
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
				}
			}
		}
	}()

	return out, errs
}
