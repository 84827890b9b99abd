package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultVersion is assigned to definitions compiled without a version.
const DefaultVersion = "1.0.0"

// WorkflowDefinition is the compiled, execution-ready form of a canvas.
type WorkflowDefinition struct {
	ID          string       `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string       `json:"version" yaml:"version"`
	Steps       []Step       `json:"steps" yaml:"steps"`
	Connections []Connection `json:"connections" yaml:"connections"`
	Tags        []string     `json:"tags" yaml:"tags"`
}

// Step is the compiled representation of a node.
type Step struct {
	StepID       string   `json:"step_id" yaml:"step_id"`
	StepType     StepType `json:"step_type" yaml:"step_type"`
	StepName     string   `json:"step_name" yaml:"step_name"`
	StepOrder    int      `json:"step_order" yaml:"step_order"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	Config       Params   `json:"config" yaml:"config"`
}

// Connection is the compiled representation of an edge.
type Connection struct {
	SourceStepID string `json:"source_step_id" yaml:"source_step_id"`
	TargetStepID string `json:"target_step_id" yaml:"target_step_id"`
	SourceHandle string `json:"source_handle,omitempty" yaml:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty" yaml:"target_handle,omitempty"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty"`
	Animated     bool   `json:"animated" yaml:"animated"`
}

// Step returns the step with the given id.
func (d *WorkflowDefinition) Step(id string) (Step, bool) {
	for _, s := range d.Steps {
		if s.StepID == id {
			return s, true
		}
	}
	return Step{}, false
}

// ToJSON converts a WorkflowDefinition to an indented JSON string.
func (d *WorkflowDefinition) ToJSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return string(data), nil
}

// ToYAML converts a WorkflowDefinition to a YAML string.
func (d *WorkflowDefinition) ToYAML() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return string(data), nil
}

// SaveToFile writes the definition to filename; ".yaml"/".yml" selects YAML,
// anything else JSON.
func (d *WorkflowDefinition) SaveToFile(filename string) error {
	var (
		out string
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		out, err = d.ToYAML()
	default:
		out, err = d.ToJSON()
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// ParseDefinition decodes and validates a JSON workflow definition.
func ParseDefinition(data []byte) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	if err := ValidateDefinition(&def); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &def, nil
}

// ValidateDefinition checks the structural invariants of a definition:
// unique step ids, step_order values 1..N in sequence, and connections that
// reference known steps.
func ValidateDefinition(def *WorkflowDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	ids := make(map[string]bool, len(def.Steps))
	for i, s := range def.Steps {
		if s.StepID == "" {
			return fmt.Errorf("step %d: step_id is required", i+1)
		}
		if ids[s.StepID] {
			return fmt.Errorf("duplicate step_id: %s", s.StepID)
		}
		ids[s.StepID] = true
		if s.StepOrder != i+1 {
			return fmt.Errorf("step %s: step_order %d, expected %d", s.StepID, s.StepOrder, i+1)
		}
	}
	for _, c := range def.Connections {
		if !ids[c.SourceStepID] {
			return fmt.Errorf("connection references unknown source: %s", c.SourceStepID)
		}
		if !ids[c.TargetStepID] {
			return fmt.Errorf("connection references unknown target: %s", c.TargetStepID)
		}
	}
	return nil
}

// ParseSnapshot decodes a canvas export (nodes + edges) from JSON.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal canvas: %w", err)
	}
	if s.Nodes == nil {
		s.Nodes = []Node{}
	}
	if s.Edges == nil {
		s.Edges = []Edge{}
	}
	return s, nil
}

// LoadSnapshotFile reads a canvas export from disk.
func LoadSnapshotFile(filename string) (Snapshot, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseSnapshot(data)
}
