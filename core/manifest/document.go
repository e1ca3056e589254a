package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Document declares one module: its id, requires and the factory kind that
// builds its exports from config.
type Document struct {
	ID       string         `yaml:"id" json:"id" toml:"id"`
	Requires []string       `yaml:"requires,omitempty" json:"requires,omitempty" toml:"requires,omitempty"`
	Factory  string         `yaml:"factory" json:"factory" toml:"factory"`
	Config   map[string]any `yaml:"config,omitempty" json:"config,omitempty" toml:"config,omitempty"`
}

// DecodeError reports a manifest that could not be parsed.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode manifest: %v", e.Err)
	}
	return fmt.Sprintf("decode manifest %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ErrEmpty is returned for manifests without any document.
var ErrEmpty = errors.New("manifest has no documents")

// tomlFile allows several modules in one TOML file as [[modules]] tables.
type tomlFile struct {
	Modules []Document `toml:"modules"`
}

// Decode parses body by the suffix of name. TOML and JSON files hold one
// document or a list of documents; anything else is read as a YAML stream.
func Decode(name string, body []byte) ([]Document, error) {
	var (
		docs []Document
		err  error
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".toml":
		docs, err = decodeTOML(body)
	case ".json":
		docs, err = decodeJSON(body)
	default:
		docs, err = decodeYAML(body)
	}
	if err != nil {
		return nil, &DecodeError{Path: name, Err: err}
	}
	if len(docs) == 0 {
		return nil, &DecodeError{Path: name, Err: ErrEmpty}
	}
	return docs, nil
}

func decodeYAML(body []byte) ([]Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(body))
	var docs []Document
	for {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		if doc.ID == "" && doc.Factory == "" {
			continue
		}
		docs = append(docs, doc)
	}
}

func decodeTOML(body []byte) ([]Document, error) {
	var file tomlFile
	if err := toml.Unmarshal(body, &file); err != nil {
		return nil, err
	}
	if len(file.Modules) > 0 {
		return file.Modules, nil
	}
	var doc Document
	if err := toml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.ID == "" && doc.Factory == "" {
		return nil, nil
	}
	return []Document{doc}, nil
}

func decodeJSON(body []byte) ([]Document, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var docs []Document
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}
	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return []Document{doc}, nil
}

// Encode renders docs as a YAML stream.
func Encode(docs []Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode manifest %s: %w", doc.ID, err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
