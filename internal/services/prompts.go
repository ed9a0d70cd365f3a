package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yoockh/lumina/internal/models"
	"github.com/yoockh/lumina/internal/providers/llm"
)

const expansionSystemInstruction = `You are a visual director who turns a short concept into a detailed, premium image prompt.

Detect any artistic style the user asks for (manga, oil painting, 3D render, pixel art, ...) and write every field in that style. Without a requested style, aim for photorealism.

Rules:
1. Output JSON only.
2. Be specific and use the technical vocabulary of the chosen medium.
3. Wrap the most important visual elements (colours, key objects, lighting effects) in asterisks, e.g. *crimson red*.
4. Keep all fields consistent with one another.
5. When asked to modify an existing prompt, keep everything else and apply only the requested change.`

var fieldDescriptions = []llm.Field{
	{Name: models.KeySubject, Description: "The main subject, described with physical accuracy."},
	{Name: models.KeyEnvironment, Description: "The setting: textures, flora, materials."},
	{Name: models.KeyAtmosphere, Description: "Lighting, weather, mood, volumetric effects."},
	{Name: models.KeyMicroDetails, Description: "Tiny details that sell realism: dust, droplets, imperfections."},
	{Name: models.KeyTechSpecs, Description: "Camera, lens, shutter speed, ISO, aperture."},
	{Name: models.KeyColorGrading, Description: "Post-processing, palette, grading style."},
	{Name: models.KeyComposition, Description: "Framing, angles, leading lines, focus points."},
}

// ExpansionOptions configures the text model for prompt expansion.
func ExpansionOptions() llm.Options {
	return llm.Options{
		SystemInstruction: expansionSystemInstruction,
		StringFields:      fieldDescriptions,
		Temperature:       0.7,
		MaxOutputTokens:   4096,
	}
}

func expansionPrompt(req ExpansionRequest) string {
	if req.Prior != nil && req.Modification != "" {
		prior, _ := json.Marshal(req.Prior)
		return fmt.Sprintf("Based on the following existing prompt structure:\n%s\n\n"+
			"Please modify it according to this request: \"%s\"\n"+
			"Keep the rest of the high-quality details consistent.", prior, req.Modification)
	}
	return fmt.Sprintf("Create a comprehensive prompt for: \"%s\"", req.UserInput)
}

// ModificationText phrases a change to one section of the record.
func ModificationText(section, instruction string) string {
	return fmt.Sprintf("For the %s, please: %s", section, instruction)
}

var imagePromptLabels = []struct{ key, label string }{
	{models.KeySubject, "Subject"},
	{models.KeyEnvironment, "Environment"},
	{models.KeyAtmosphere, "Atmosphere"},
	{models.KeyMicroDetails, "Micro-Details"},
	{models.KeyTechSpecs, "Technical Specs"},
	{models.KeyColorGrading, "Color Grading"},
	{models.KeyComposition, "Composition"},
}

func imagePrompt(rec models.FieldRecord) string {
	var b strings.Builder
	for _, l := range imagePromptLabels {
		fmt.Fprintf(&b, "%s: %s\n", l.label, rec.Get(l.key))
	}
	b.WriteString("\nRequirements: 16:9 aspect ratio, 4K resolution, high fidelity.")
	return b.String()
}
