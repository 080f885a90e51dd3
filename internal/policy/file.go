package policy

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/foresight/internal/errors"
)

// File is the on-disk layout of a policy file.
type File struct {
	Policies []Policy `yaml:"policies"`
}

// LoadFile reads and validates the YAML policy file at path.
func LoadFile(path string) ([]Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	policies, err := Parse(data)
	if err != nil {
		var pe *errors.PolicyError
		if errors.As(err, &pe) {
			return nil, pe.WithSource(path)
		}
		return nil, err
	}
	return policies, nil
}

// Parse decodes and validates YAML policy data. Unknown fields and
// duplicate names are rejected.
func Parse(data []byte) ([]Policy, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, errors.NewPolicyError("failed to parse policy file", fmt.Errorf("%w: %w", errors.ErrInvalidPolicy, err))
	}

	seen := make(map[string]bool, len(f.Policies))
	for _, p := range f.Policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, invalid(p.Name, "duplicate policy name")
		}
		seen[p.Name] = true
	}
	return f.Policies, nil
}

// Marshal renders policies in the policy file layout.
func Marshal(policies []Policy) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(File{Policies: policies}); err != nil {
		return nil, fmt.Errorf("failed to encode policies: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode policies: %w", err)
	}
	return buf.Bytes(), nil
}
