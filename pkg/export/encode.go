package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown export format")

// Format names an output encoding.
type Format string

// Supported formats.
const (
	FormatJSON    Format = "json"
	FormatCompact Format = "compact"
	FormatYAML    Format = "yaml"
	FormatTOML    Format = "toml"
	FormatBinary  Format = "binary"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatJSON, FormatCompact, FormatYAML, FormatTOML, FormatBinary}
}

// ParseFormat resolves a case-insensitive format name. "yml" is accepted.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatJSON, FormatCompact, FormatYAML, FormatTOML, FormatBinary:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatCompact:
		return "json"
	case FormatBinary:
		return "plng"
	default:
		return string(f)
	}
}

// Encode writes doc to w in the given format.
func Encode(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return wrap("json", enc.Encode(doc))
	case FormatCompact:
		return wrap("json", json.NewEncoder(w).Encode(doc))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(doc)
		if err != nil {
			return wrap("yaml", err)
		}

		return wrap("yaml", enc.Close())
	case FormatTOML:
		return wrap("toml", toml.NewEncoder(w).Encode(doc))
	case FormatBinary:
		return EncodeBinary(w, doc)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Marshal is Encode into a byte slice.
func Marshal(doc *Document, format Format) ([]byte, error) {
	var buf bytes.Buffer

	err := Encode(&buf, doc, format)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode reads a Document in the given format.
func Decode(r io.Reader, format Format) (*Document, error) {
	var doc Document

	switch format {
	case FormatJSON, FormatCompact:
		err := json.NewDecoder(r).Decode(&doc)
		if err != nil {
			return nil, wrap("json", err)
		}
	case FormatYAML:
		err := yaml.NewDecoder(r).Decode(&doc)
		if err != nil {
			return nil, wrap("yaml", err)
		}
	case FormatTOML:
		_, err := toml.NewDecoder(r).Decode(&doc)
		if err != nil {
			return nil, wrap("toml", err)
		}
	case FormatBinary:
		return DecodeBinary(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return &doc, nil
}

func wrap(codec string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", codec, err)
}
