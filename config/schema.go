package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
)

// AnalysisSchema returns the JSON Schema of the analysis file.
func AnalysisSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		DoNotReference:            true,
		Anonymous:                 true,
		FieldNameTag:              "yaml",
	}
	schema := r.Reflect(&Analysis{})
	schema.Title = "chat-tender analysis"
	schema.Description = "Bucketing, pattern, vocabulary and clustering settings."
	return json.MarshalIndent(schema, "", "  ")
}

var (
	compiledOnce   sync.Once
	compiledSchema *validator.Schema
	compileErr     error
)

func analysisValidator() (*validator.Schema, error) {
	compiledOnce.Do(func() {
		data, err := AnalysisSchema()
		if err != nil {
			compileErr = fmt.Errorf("generate analysis schema: %w", err)
			return
		}
		c := validator.NewCompiler()
		if err := c.AddResource("analysis.json", bytes.NewReader(data)); err != nil {
			compileErr = fmt.Errorf("add analysis schema: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("analysis.json")
	})
	return compiledSchema, compileErr
}

// validateDocument checks a decoded YAML or TOML document against the
// analysis schema. Unknown keys and wrongly typed values are rejected.
func validateDocument(doc map[string]any) error {
	s, err := analysisValidator()
	if err != nil {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// Round trip through encoding/json so numbers and maps take the shapes
	// the validator expects.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode analysis config: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("decode analysis config: %w", err)
	}
	if err := s.Validate(v); err != nil {
		var ve *validator.ValidationError
		if errors.As(err, &ve) {
			var msgs []string
			collectErrors(ve, &msgs)
			return fmt.Errorf("schema validation failed:\n%s", strings.Join(msgs, "\n"))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// collectErrors gathers the leaf causes of err.
func collectErrors(err *validator.ValidationError, msgs *[]string) {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*msgs = append(*msgs, fmt.Sprintf("- %s: %s", loc, err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, msgs)
	}
}
