package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

var (
	generateSchema    = mustSchema("schemas/generate.json")
	uploadSchema      = mustSchema("schemas/upload.json")
	preferencesSchema = mustSchema("schemas/preferences.json")
)

func mustSchema(name string) *jsonschema.Schema {
	raw, err := schemaFiles.ReadFile(name)
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("schema resource %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return s
}

// bodyError is a malformed or schema-violating request body.
type bodyError struct {
	msg string
	err error
}

func (e *bodyError) Error() string { return e.msg }
func (e *bodyError) Unwrap() error { return e.err }

const maxJSONBody = 1 << 20

// decodeBody reads a JSON body, validates it against schema and decodes it into v.
func decodeBody(r *http.Request, schema *jsonschema.Schema, v any, limit int64) error {
	if limit <= 0 {
		limit = maxJSONBody
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return &bodyError{msg: "could not read request body", err: err}
	}
	if int64(len(raw)) > limit {
		return &bodyError{msg: "request body is too large"}
	}
	return decodeJSON(raw, schema, v)
}

func decodeJSON(raw []byte, schema *jsonschema.Schema, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &bodyError{msg: "request body is empty"}
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &bodyError{msg: "invalid JSON: " + err.Error(), err: err}
	}
	if err := schema.Validate(doc); err != nil {
		msg := err.Error()
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			leaf := ve
			for len(leaf.Causes) > 0 {
				leaf = leaf.Causes[0]
			}
			msg = leaf.Message
			if leaf.InstanceLocation != "" {
				msg = leaf.InstanceLocation + ": " + msg
			}
		}
		return &bodyError{msg: "invalid request body: " + msg, err: err}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &bodyError{msg: "invalid request body: " + err.Error(), err: err}
	}
	return nil
}
