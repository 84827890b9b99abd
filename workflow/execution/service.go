package execution

import (
	"context"

	"github.com/BaSui01/agentstudio/workflow"
)

// Execution status values reported by the workflow engine.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusWaiting   = "waiting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// DefaultTerminalStatuses returns the statuses that end polling.
func DefaultTerminalStatuses() []string {
	return []string{StatusCompleted, StatusFailed, StatusError, StatusCancelled}
}

// StatusFetcher is the part of the engine API the poller needs.
type StatusFetcher interface {
	GetStatus(ctx context.Context, executionID string) (*Status, error)
	GetResults(ctx context.Context, executionID string) (*Results, error)
}

// Service starts executions and reports on them.
type Service interface {
	StatusFetcher
	Submit(ctx context.Context, workflowID string, req SubmitRequest) (string, error)
}

// Engine is a Service that can also register compiled workflows.
type Engine interface {
	Service
	CreateWorkflow(ctx context.Context, def *workflow.WorkflowDefinition) (string, error)
}

// SubmitRequest is the body of an execute call.
type SubmitRequest struct {
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	InputData map[string]any `json:"input_data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Trigger   *Trigger       `json:"trigger,omitempty"`
}

// Trigger describes what started an execution.
type Trigger struct {
	Kind           string           `json:"kind"`
	Data           map[string]any   `json:"data,omitempty"`
	CurrentMessage string           `json:"current_message,omitempty"`
	History        []map[string]any `json:"history,omitempty"`
}

// Status is a point-in-time view of an execution.
type Status struct {
	ExecutionID    string            `json:"execution_id"`
	WorkflowID     string            `json:"workflow_id,omitempty"`
	Status         string            `json:"status"`
	StepStatuses   map[string]string `json:"step_statuses,omitempty"`
	CurrentStep    string            `json:"current_step,omitempty"`
	CompletedSteps int               `json:"completed_steps,omitempty"`
	FailedSteps    int               `json:"failed_steps,omitempty"`
	PendingSteps   int               `json:"pending_steps,omitempty"`
	TotalSteps     int               `json:"total_steps,omitempty"`
	StartedAt      string            `json:"started_at,omitempty"`
	CompletedAt    string            `json:"completed_at,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// Clone deep copies s.
func (s *Status) Clone() *Status {
	if s == nil {
		return nil
	}
	out := *s
	if s.StepStatuses != nil {
		out.StepStatuses = make(map[string]string, len(s.StepStatuses))
		for k, v := range s.StepStatuses {
			out.StepStatuses[k] = v
		}
	}
	return &out
}

// StepResult is the outcome of one step.
type StepResult struct {
	StepID          string         `json:"step_id"`
	Status          string         `json:"status"`
	OutputData      map[string]any `json:"output_data,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ExecutionTimeMs float64        `json:"execution_time_ms,omitempty"`
}

// Results is the final outcome of an execution.
type Results struct {
	ExecutionID      string                `json:"execution_id"`
	Status           string                `json:"status"`
	StepResults      map[string]StepResult `json:"step_results"`
	StepIOData       map[string]any        `json:"step_io_data,omitempty"`
	GlobalVariables  map[string]any        `json:"global_variables,omitempty"`
	ExecutionSummary *Status               `json:"execution_summary,omitempty"`
}
