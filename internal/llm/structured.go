package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// StructuredOutput is a named JSON schema sent with a request and used to
// validate the response before it is decoded.
type StructuredOutput struct {
	Name     string
	Schema   map[string]any
	resolved *jsonschema.Resolved
}

// NewStructuredOutput resolves schema for validation
func NewStructuredOutput(name string, schema map[string]any) (*StructuredOutput, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s schema: %w", name, err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to load %s schema: %w", name, err)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s schema: %w", name, err)
	}
	return &StructuredOutput{Name: name, Schema: schema, resolved: resolved}, nil
}

// MustStructuredOutput is NewStructuredOutput for package-level schemas
func MustStructuredOutput(name string, schema map[string]any) *StructuredOutput {
	out, err := NewStructuredOutput(name, schema)
	if err != nil {
		panic(err)
	}
	return out
}

// Decode validates text against the schema and unmarshals it into out.
// Any failure is reported as ErrMalformedResponse.
func (s *StructuredOutput) Decode(text string, out any) error {
	text = stripCodeBlock(text)

	var instance any
	if err := json.Unmarshal([]byte(text), &instance); err != nil {
		return fmt.Errorf("%w: %s is not JSON: %v (raw: %s)", ErrMalformedResponse, s.Name, err, truncate(text, 200))
	}
	if err := s.resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, s.Name, err)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, s.Name, err)
	}
	return nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
