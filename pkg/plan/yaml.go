package plan

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlNode mirrors one operator for serialization, since OperatorBase
// deliberately has no exported struct tags (it isn't meant to be
// marshaled directly).
type yamlNode struct {
	Kind     string     `yaml:"kind"`
	Name     string     `yaml:"name,omitempty"`
	Modifies []string   `yaml:"modifies,omitempty"`
	Stats    yamlStats  `yaml:"stats"`
	Children []yamlNode `yaml:"children,omitempty"`
}

type yamlStats struct {
	RecordsProduced int64 `yaml:"records_produced"`
	ElapsedMicros   int64 `yaml:"elapsed_us"`
}

func toYAMLNode(op Operator) yamlNode {
	b := op.Base()
	children := make([]yamlNode, 0, len(b.Children()))
	for _, c := range b.Children() {
		children = append(children, toYAMLNode(c))
	}
	return yamlNode{
		Kind:     b.Kind().String(),
		Name:     b.Name(),
		Modifies: b.Modifies(),
		Stats: yamlStats{
			RecordsProduced: b.Stats().RecordsProduced,
			ElapsedMicros:   b.Stats().Elapsed.Microseconds(),
		},
		Children: children,
	}
}

// DumpYAML renders the plan's operator tree, including accumulated Profile
// stats, as printed by cmd/planviz's create subcommand.
func (p *ExecutionPlan) DumpYAML() (string, error) {
	if p.root == nil {
		return "", fmt.Errorf("plan: DumpYAML: plan has no root operator")
	}
	out, err := yaml.Marshal(toYAMLNode(p.root))
	if err != nil {
		return "", fmt.Errorf("plan: DumpYAML: %w", err)
	}
	return string(out), nil
}
