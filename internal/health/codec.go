package health

import (
	"fmt"
	"slices"

	"go.yaml.in/yaml/v3"
)

const systemdServicesKey = "systemdServices"

var (
	scriptKeys  = []string{"name", "runOn", "interpreter", "content", "path", "arguments"}
	systemdKeys = []string{"name", systemdServicesKey, "timeoutSeconds"}
)

// Checks is a list of checks with structural YAML encoding.
type Checks []Check

// UnmarshalYAML decodes each mapping by the fields it carries.
func (c *Checks) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: health checks must be a list", value.Line)
	}

	out := make(Checks, 0, len(value.Content))
	for _, item := range value.Content {
		check, err := decodeCheck(item)
		if err != nil {
			return err
		}
		out = append(out, check)
	}
	*c = out
	return nil
}

func decodeCheck(node *yaml.Node) (Check, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: invalid health check, expected a mapping", node.Line)
	}

	keys := mappingKeys(node)
	if slices.Contains(keys, systemdServicesKey) {
		if err := knownKeys(node, keys, systemdKeys); err != nil {
			return nil, err
		}
		var sc SystemdCheck
		if err := node.Decode(&sc); err != nil {
			return nil, fmt.Errorf("line %d: invalid systemd check: %w", node.Line, err)
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return sc, nil
	}

	if err := knownKeys(node, keys, scriptKeys); err != nil {
		return nil, err
	}
	var s Script
	if err := node.Decode(&s); err != nil {
		return nil, fmt.Errorf("line %d: invalid script check: %w", node.Line, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("line %d: %w", node.Line, err)
	}
	return s, nil
}

// MarshalYAML encodes each check as its plain variant mapping.
func (c Checks) MarshalYAML() (interface{}, error) {
	out := make([]interface{}, 0, len(c))
	for _, check := range c {
		switch v := check.(type) {
		case Script:
			out = append(out, v)
		case SystemdCheck:
			out = append(out, v)
		default:
			return nil, fmt.Errorf("unsupported health check type %T", check)
		}
	}
	return out, nil
}

func mappingKeys(node *yaml.Node) []string {
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

func knownKeys(node *yaml.Node, keys, allowed []string) error {
	for _, k := range keys {
		if !slices.Contains(allowed, k) {
			return fmt.Errorf("line %d: unknown health check field %q", node.Line, k)
		}
	}
	return nil
}
