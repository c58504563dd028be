// Package validation checks request bodies against embedded JSON Schemas before
// they are decoded into handler structs.
package validation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pixelforge/forge/internal/domain"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names, one per request body shape.
const (
	SchemaRegister       = "register"
	SchemaLogin          = "login"
	SchemaChangePassword = "change_password"
	SchemaCreateProject  = "create_project"
	SchemaAssignment     = "assignment"
)

const maxMessageLen = 200

// RequestValidator validates JSON documents against named schemas. Compiled
// schemas are kept in an LRU cache.
type RequestValidator struct {
	cache *lru.Cache[string, *jsonschema.Schema]
}

// NewRequestValidator creates a validator caching up to cacheSize compiled schemas.
func NewRequestValidator(cacheSize int) (*RequestValidator, error) {
	cache, err := lru.New[string, *jsonschema.Schema](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create schema cache: %w", err)
	}
	return &RequestValidator{cache: cache}, nil
}

// Validate checks body against the named schema. Malformed JSON and schema
// violations are returned as domain.ErrValidation.
func (v *RequestValidator) Validate(name string, body []byte) error {
	schema, err := v.schema(name)
	if err != nil {
		return err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return domain.Validationf("request body is not valid JSON")
	}

	if err := schema.Validate(inst); err != nil {
		return domain.Validationf("%s", formatValidationError(err))
	}
	return nil
}

func (v *RequestValidator) schema(name string) (*jsonschema.Schema, error) {
	if cached, ok := v.cache.Get(name); ok {
		return cached, nil
	}

	raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q: %w", name, err)
	}
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)

	url := name + ".json"
	if err := compiler.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}

	v.cache.Add(name, schema)
	return schema, nil
}

// formatValidationError reports the first leaf failure as "at '$.field': message".
func formatValidationError(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}

	path := "$"
	var parts []string
	for _, part := range ve.InstanceLocation {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		path = "$." + strings.Join(parts, ".")
	}

	msg := ve.Error()
	if i := strings.LastIndex(msg, "': "); i >= 0 {
		msg = msg[i+3:]
	}
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen] + "... (truncated)"
	}
	return fmt.Sprintf("invalid request at '%s': %s", path, msg)
}
