// Package provider defines the generation/embedding model boundary used by
// the pipeline. Callers pass a prompt plus a JSON-schema format constraint
// and receive the raw model output; non-conforming output is the caller's
// problem to degrade on, never a crash.
package provider

import "context"

// Provider is the single seam to the model backend. All calls are
// synchronous, blocking HTTP with generous timeouts.
type Provider interface {
	// Generate runs one completion. When format is non-nil the backend is
	// asked to constrain output to the given JSON schema.
	Generate(ctx context.Context, prompt string, format *Schema) (string, error)
	// Embed returns one embedding vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Schema is a minimal JSON-schema document used as a structured-output
// format constraint.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Required    []string           `json:"required,omitempty"`
}
