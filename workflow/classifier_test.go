package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCatalog_Classify(t *testing.T) {
	c := DefaultCatalog()
	tests := []struct {
		typeID string
		want   StepType
	}{
		{"trigger_webhook", StepTypeTrigger},
		{"trigger_schedule", StepTypeTrigger},
		{"input_text", StepTypeInput},
		{"output_email", StepTypeOutput},
		{"prompt_template", StepTypePrompt},
		{"agents_chatbot", StepTypeAgentExecution},
		{"external_salesforce", StepTypeAgentExecution},
		{"action_http_request", StepTypeToolExecution},
		{"logic_router", StepTypeConditional},
		{"custom_widget", StepTypeAgentExecution},
		{"", StepTypeAgentExecution},
	}
	for _, tt := range tests {
		t.Run(tt.typeID, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.typeID))
		})
	}
}

func TestCatalog_Known(t *testing.T) {
	c := DefaultCatalog()
	assert.True(t, c.Known("agents_rag"))
	assert.False(t, c.Known("custom_widget"))
}

func TestNewCatalog_FirstSetWins(t *testing.T) {
	c := NewCatalog(Catalog{
		Inputs:  []string{"shared"},
		Actions: []string{"shared", "action_only"},
	})
	assert.Equal(t, StepTypeInput, c.Classify("shared"))
	assert.Equal(t, StepTypeToolExecution, c.Classify("action_only"))
}

func TestExtractSubType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"agents_chatbot", "chatbot"},
		{"action_http_request", "http_request"},
		{"logic_router", "router"},
		{"trigger_", ""},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractSubType(tt.in), tt.in)
	}
}
