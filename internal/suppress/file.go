package suppress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the YAML layout of a suppressions file:
//
//	suppressions:
//	  - files: Foo\.java$
//	    checks: IllegalKind
//	    query: /program/class_declaration[./identifier[@text='Foo']]
type Document struct {
	Suppressions []Rule `yaml:"suppressions"`
}

// Parse decodes a suppressions document; unknown keys are an error.
func Parse(data []byte, tabWidth int) (*Suppressions, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode suppressions: %w", err)
	}
	return NewSuppressions(doc.Suppressions, tabWidth)
}

// Load reads and parses the suppressions file at path.
func Load(path string, tabWidth int) (*Suppressions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suppressions: %w", err)
	}
	s, err := Parse(data, tabWidth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Write encodes rules as a suppressions document.
func Write(w io.Writer, rules []Rule) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Suppressions: rules}); err != nil {
		return fmt.Errorf("encode suppressions: %w", err)
	}
	return enc.Close()
}
