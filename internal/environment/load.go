package environment

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed environments.yaml
var builtinFile []byte

//go:embed schema.json
var schemaJSON []byte

type file struct {
	Default      string        `yaml:"default"`
	Environments []Environment `yaml:"environments"`
}

// Builtin returns the table compiled into the binary.
func Builtin() (*Table, error) {
	return Parse(builtinFile)
}

// LoadFile reads and validates an environments file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read environments file: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Load returns the table at path, or the builtin table when path is empty.
func Load(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin()
	}
	return LoadFile(path)
}

// Parse validates a YAML environments document against the schema and builds
// a table from it.
func Parse(data []byte) (*Table, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse environments yaml: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("environments document is empty")
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode environments: %w", err)
	}
	return NewTable(f.Environments, f.Default)
}

func validate(doc map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate environments: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return fmt.Errorf("invalid environments document: %s", strings.Join(msgs, "; "))
	}
	return nil
}
