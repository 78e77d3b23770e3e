package ai

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed evaluation.schema.json
var evaluationSchemaSource string

var evaluationSchema = jsonschema.MustCompileString("evaluation.schema.json", evaluationSchemaSource)

// DecodeEvaluation validates the model reply against the evaluation schema and
// decodes it into out. Any failure is reported as ErrMalformedResponse.
func DecodeEvaluation(content string, out interface{}) error {
	payload := stripCodeFence(content)
	if payload == "" {
		return fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}

	decoder := json.NewDecoder(strings.NewReader(payload))
	decoder.UseNumber()
	var raw interface{}
	if err := decoder.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if err := evaluationSchema.Validate(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// stripCodeFence unwraps ```json fenced replies some models send despite json_object mode.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.Index(trimmed, "\n"); newline >= 0 {
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
