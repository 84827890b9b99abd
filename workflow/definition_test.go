package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleDefinition(t *testing.T) *WorkflowDefinition {
	t.Helper()
	s := Snapshot{
		Nodes: []Node{
			{ID: "in", Type: "input_text", Label: "Question"},
			{ID: "bot", Type: "agents_chatbot", Label: "Bot", Parameters: Params{"model": String("gpt-4o")}},
		},
		Edges: []Edge{{Source: "in", Target: "bot"}},
	}
	return NewCompiler().Compile(s, Meta{Name: "sample", Tags: []string{"demo"}}).Definition
}

func TestParseDefinition_AcceptsCompiledOutput(t *testing.T) {
	def := sampleDefinition(t)
	out, err := def.ToJSON()
	require.NoError(t, err)

	parsed, err := ParseDefinition([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, def, parsed)
}

func TestParseDefinition_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{`},
		{"missing name", `{"steps":[]}`},
		{"duplicate step", `{"name":"x","steps":[{"step_id":"a","step_order":1},{"step_id":"a","step_order":2}]}`},
		{"bad order", `{"name":"x","steps":[{"step_id":"a","step_order":2}]}`},
		{"unknown target", `{"name":"x","steps":[{"step_id":"a","step_order":1}],"connections":[{"source_step_id":"a","target_step_id":"b"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestWorkflowDefinition_SaveToFile(t *testing.T) {
	def := sampleDefinition(t)
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "wf.yaml")
	require.NoError(t, def.SaveToFile(yamlPath))
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "sample", doc["name"])
	steps, ok := doc["steps"].([]any)
	require.True(t, ok)
	require.Len(t, steps, 2)
	bot := steps[1].(map[string]any)
	config := bot["config"].(map[string]any)
	assert.Equal(t, "gpt-4o", config["model_name"])

	jsonPath := filepath.Join(dir, "wf.json")
	require.NoError(t, def.SaveToFile(jsonPath))
	data, err = os.ReadFile(jsonPath)
	require.NoError(t, err)
	_, err = ParseDefinition(data)
	assert.NoError(t, err)
}

func TestParseSnapshot(t *testing.T) {
	s, err := ParseSnapshot([]byte(`{"nodes":[{"id":"a","type":"input_text","label":"A","parameters":{"n":1}}]}`))
	require.NoError(t, err)
	require.Len(t, s.Nodes, 1)
	assert.NotNil(t, s.Edges)
	n, ok := s.Nodes[0].Parameters.Number("n")
	assert.True(t, ok)
	assert.Equal(t, float64(1), n)

	_, err = ParseSnapshot([]byte(`[]`))
	assert.Error(t, err)
}
