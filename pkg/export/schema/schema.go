// Package schema holds the JSON Schema for exported documents, a generator
// that derives schemas from Go types, and validation against the schema.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed document-schema.json
var documentSchema []byte

// Document returns the embedded schema for export.Document.
func Document() []byte {
	out := make([]byte, len(documentSchema))
	copy(out, documentSchema)

	return out
}

// Schema is the subset of JSON Schema draft-07 produced by Generate.
type Schema struct {
	Schema      string             `json:"$schema,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        string             `json:"type,omitempty"`
	Format      string             `json:"format,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	Definitions map[string]*Schema `json:"definitions,omitempty"`
}

const draft07 = "http://json-schema.org/draft-07/schema#"

// Generate derives a schema from the json tags of v's struct type. Named
// nested structs become definitions; fields without omitempty are required.
func Generate(title string, v any) *Schema {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	defs := make(map[string]*Schema)
	props, required := structProperties(t, defs)

	s := &Schema{
		Schema:     draft07,
		Title:      title,
		Type:       "object",
		Properties: props,
		Required:   required,
	}

	if len(defs) > 0 {
		s.Definitions = defs
	}

	return s
}

// Marshal renders a schema as indented JSON with a trailing newline.
func Marshal(s *Schema) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return append(data, '\n'), nil
}

func structProperties(t reflect.Type, defs map[string]*Schema) (map[string]*Schema, []string) {
	props := make(map[string]*Schema)

	var required []string

	for i := range t.NumField() {
		field := t.Field(i)

		tag := field.Tag.Get("json")
		if tag == "" || tag == "-" || !field.IsExported() {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		props[name] = typeSchema(field.Type, defs)

		if !strings.Contains(opts, "omitempty") {
			required = append(required, name)
		}
	}

	sort.Strings(required)

	return props, required
}

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
)

func typeSchema(t reflect.Type, defs map[string]*Schema) *Schema {
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t == durationType {
			return &Schema{Type: "integer", Description: "Duration in nanoseconds"}
		}

		return &Schema{Type: "integer"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: typeSchema(t.Elem(), defs)}
	case reflect.Map:
		return &Schema{Type: "object"}
	case reflect.Pointer:
		return typeSchema(t.Elem(), defs)
	case reflect.Struct:
		if t == timeType {
			return &Schema{Type: "string", Format: "date-time"}
		}

		if t.Name() == "" {
			props, required := structProperties(t, defs)

			return &Schema{Type: "object", Properties: props, Required: required}
		}

		if _, ok := defs[t.Name()]; !ok {
			// Reserve the name before recursing so self references terminate.
			defs[t.Name()] = &Schema{}
			props, required := structProperties(t, defs)
			defs[t.Name()] = &Schema{Type: "object", Properties: props, Required: required}
		}

		return &Schema{Ref: "#/definitions/" + t.Name()}
	default:
		return &Schema{}
	}
}

// Violation is one schema validation failure.
type Violation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// String renders field: description.
func (v Violation) String() string {
	return v.Field + ": " + v.Description
}

// Validate checks a JSON document against the embedded Document schema. A
// nil slice with a nil error means the document is valid.
func Validate(data []byte) ([]Violation, error) {
	return ValidateWith(documentSchema, data)
}

// ValidateWith checks a JSON document against an arbitrary schema.
func ValidateWith(schemaJSON, data []byte) ([]Violation, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	out := make([]Violation, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		out = append(out, Violation{Field: re.Field(), Description: re.Description()})
	}

	return out, nil
}
