// Package requestfile loads request definitions from YAML files.
//
// A request file looks like:
//
//	method: POST
//	url: https://${[ host ]}/users
//	headers:
//	  Accept: application/json
//	body_type: application/json
//	body: |
//	  {
//	    // created by jcr
//	    "name": "${[ name ]}"
//	  }
//	schema_file: user.schema.json
//	variables:
//	  name: Ada
//
// Headers may also be given as a list of name/value pairs when order or
// repeated names matter.
package requestfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"jcr/internal/action"
)

// File is a decoded request file.
type File struct {
	Request   action.Request
	Variables map[string]string
	// SchemaFile is the schema_file value as written. Load reads it into
	// Request.Schema.
	SchemaFile string
}

type document struct {
	ID         string            `yaml:"id"`
	Method     string            `yaml:"method"`
	URL        string            `yaml:"url"`
	Headers    headers           `yaml:"headers"`
	BodyType   string            `yaml:"body_type"`
	Body       string            `yaml:"body"`
	Schema     string            `yaml:"schema"`
	SchemaFile string            `yaml:"schema_file"`
	Variables  map[string]string `yaml:"variables"`
}

type headers []action.Header

func (h *headers) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			var name, value string
			if err := node.Content[i].Decode(&name); err != nil {
				return err
			}
			if err := node.Content[i+1].Decode(&value); err != nil {
				return fmt.Errorf("header %s: %w", name, err)
			}
			*h = append(*h, action.Header{Name: name, Value: value})
		}
		return nil
	case yaml.SequenceNode:
		var items []struct {
			Name  string `yaml:"name"`
			Value string `yaml:"value"`
		}
		if err := node.Decode(&items); err != nil {
			return err
		}
		for i, item := range items {
			if item.Name == "" {
				return fmt.Errorf("headers[%d]: name is required", i)
			}
			*h = append(*h, action.Header{Name: item.Name, Value: item.Value})
		}
		return nil
	default:
		return fmt.Errorf("line %d: headers must be a mapping or a list", node.Line)
	}
}

// Load reads the request file at path. A schema_file is resolved relative to
// the request file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if f.SchemaFile != "" {
		schemaPath := f.SchemaFile
		if !filepath.IsAbs(schemaPath) {
			schemaPath = filepath.Join(filepath.Dir(path), schemaPath)
		}
		schema, err := os.ReadFile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema file: %w", err)
		}
		f.Request.Schema = string(schema)
	}

	if f.Request.ID == "" {
		f.Request.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return f, nil
}

// Parse decodes a request file without resolving schema_file.
func Parse(data []byte) (*File, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse request file: %w", err)
	}

	if err := validate(&doc); err != nil {
		return nil, err
	}

	method := strings.ToUpper(doc.Method)
	if method == "" {
		method = "GET"
	}

	return &File{
		Request: action.Request{
			ID:       doc.ID,
			Method:   method,
			URL:      doc.URL,
			Headers:  []action.Header(doc.Headers),
			BodyType: doc.BodyType,
			Body:     action.Body{Text: doc.Body},
			Schema:   doc.Schema,
		},
		Variables:  doc.Variables,
		SchemaFile: doc.SchemaFile,
	}, nil
}

func validate(doc *document) error {
	if doc.URL == "" {
		return errors.New("url is required")
	}
	if doc.Schema != "" && doc.SchemaFile != "" {
		return errors.New("schema and schema_file are mutually exclusive")
	}
	return nil
}
