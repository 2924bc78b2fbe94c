package variables

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Decode reads a variable document. Two shapes are accepted: a sequence of
// Variable entries, or a plain "name: value" mapping whose entries become
// text variables in key order.
func Decode(data []byte) ([]Variable, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse variables: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		var vars []Variable
		if err := doc.Decode(&vars); err != nil {
			return nil, fmt.Errorf("failed to parse variables: %w", err)
		}
		for i, v := range vars {
			if !ValidName(v.Name) {
				return nil, fmt.Errorf("variable %d: invalid name %q", i, v.Name)
			}
			if _, err := ParseType(string(v.Type)); err != nil {
				return nil, fmt.Errorf("variable %q: %w", v.Name, err)
			}
		}
		return vars, nil

	case yaml.MappingNode:
		vars := make([]Variable, 0, len(doc.Content)/2)
		for i := 0; i+1 < len(doc.Content); i += 2 {
			key, val := doc.Content[i], doc.Content[i+1]
			if !ValidName(key.Value) {
				return nil, fmt.Errorf("invalid variable name %q", key.Value)
			}
			v := Variable{Name: key.Value, Type: TypeText}
			switch val.Kind {
			case yaml.ScalarNode:
				v.Value = val.Value
				v.Type = scalarType(val)
			default:
				// Inline sequences of mappings become list variables.
				encoded, err := encodeYAMLRecords(val)
				if err != nil {
					return nil, fmt.Errorf("variable %q: %w", key.Value, err)
				}
				v.Value, v.Type = encoded, TypeList
			}
			vars = append(vars, v)
		}
		return vars, nil

	default:
		return nil, fmt.Errorf("variables must be a list or a mapping")
	}
}

func scalarType(n *yaml.Node) Type {
	switch n.ShortTag() {
	case "!!int", "!!float":
		return TypeNumber
	case "!!bool":
		return TypeBoolean
	case "!!timestamp":
		return TypeDate
	default:
		return TypeText
	}
}

func encodeYAMLRecords(seq *yaml.Node) (string, error) {
	var records []Record
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			return "", fmt.Errorf("list entries must be mappings")
		}
		var rec Record
		for i := 0; i+1 < len(item.Content); i += 2 {
			rec = append(rec, Field{Key: item.Content[i].Value, Value: item.Content[i+1].Value})
		}
		records = append(records, rec)
	}
	return EncodeList(records)
}

// Encode writes vars as a YAML sequence.
func Encode(vars []Variable) ([]byte, error) {
	return yaml.Marshal(vars)
}

// LoadFile reads a variable file from disk.
func LoadFile(path string) ([]Variable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read variables file: %w", err)
	}
	return Decode(data)
}

// SaveFile writes vars to path.
func SaveFile(path string, vars []Variable) error {
	data, err := Encode(vars)
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write variables file: %w", err)
	}
	return nil
}

// Describe returns "name (type)" labels sorted by name, for listings.
func Describe(vars []Variable) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = fmt.Sprintf("%s (%s)", v.Name, v.EffectiveType())
	}
	sort.Strings(out)
	return out
}
