package imagegen

import (
	"context"

	vertexgenai "cloud.google.com/go/vertexai/genai"
)

const defaultMIMEType = "image/png"

type VertexImage struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

func NewVertexImage(ctx context.Context, projectID, location, modelName string) (*VertexImage, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash-image"
	}
	return &VertexImage{client: c, model: c.GenerativeModel(modelName)}, nil
}

func (v *VertexImage) Close() error { return v.client.Close() }

func (v *VertexImage) Generate(ctx context.Context, prompt string, refs []Image) (Image, error) {
	parts := make([]vertexgenai.Part, 0, len(refs)+1)
	for _, r := range refs {
		parts = append(parts, vertexgenai.Blob{MIMEType: r.MIMEType, Data: r.Data})
	}
	parts = append(parts, vertexgenai.Text(prompt))

	resp, err := v.model.GenerateContent(ctx, parts...)
	if err != nil {
		return Image{}, err
	}
	return firstImage(resp)
}

func firstImage(resp *vertexgenai.GenerateContentResponse) (Image, error) {
	if resp == nil {
		return Image{}, ErrNoImage
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			b, ok := part.(vertexgenai.Blob)
			if !ok || len(b.Data) == 0 {
				continue
			}
			mime := b.MIMEType
			if mime == "" {
				mime = defaultMIMEType
			}
			return Image{MIMEType: mime, Data: b.Data}, nil
		}
	}
	return Image{}, ErrNoImage
}
