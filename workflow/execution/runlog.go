package execution

import (
	"sort"
	"sync"
	"time"
)

// DefaultRunLogCapacity is the number of runs a RunLog keeps.
const DefaultRunLogCapacity = 100

// RunRecord is what the studio observed about one execution.
type RunRecord struct {
	ExecutionID  string            `json:"execution_id"`
	WorkflowID   string            `json:"workflow_id"`
	WorkflowName string            `json:"workflow_name,omitempty"`
	Status       string            `json:"status"`
	StepStatuses map[string]string `json:"step_statuses,omitempty"`
	SubmittedAt  time.Time         `json:"submitted_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	FinishedAt   time.Time         `json:"finished_at,omitempty"`
	Duration     time.Duration     `json:"duration,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// Finished reports whether the run has settled.
func (r RunRecord) Finished() bool {
	return !r.FinishedAt.IsZero()
}

func (r RunRecord) clone() RunRecord {
	out := r
	if r.StepStatuses != nil {
		out.StepStatuses = make(map[string]string, len(r.StepStatuses))
		for k, v := range r.StepStatuses {
			out.StepStatuses[k] = v
		}
	}
	return out
}

// RunLog keeps the most recent runs in memory, evicting the oldest
// submission once capacity is reached.
type RunLog struct {
	capacity int
	records  map[string]*RunRecord
	order    []string
	now      func() time.Time
	mu       sync.RWMutex
}

// NewRunLog creates a run log. capacity < 1 uses DefaultRunLogCapacity.
func NewRunLog(capacity int) *RunLog {
	if capacity < 1 {
		capacity = DefaultRunLogCapacity
	}
	return &RunLog{
		capacity: capacity,
		records:  make(map[string]*RunRecord),
		now:      time.Now,
	}
}

// Start records a submitted execution.
func (l *RunLog) Start(executionID, workflowID, workflowName string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if r, ok := l.records[executionID]; ok {
		r.WorkflowID = workflowID
		r.WorkflowName = workflowName
		r.UpdatedAt = now
		return
	}

	l.records[executionID] = &RunRecord{
		ExecutionID:  executionID,
		WorkflowID:   workflowID,
		WorkflowName: workflowName,
		Status:       StatusPending,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	l.order = append(l.order, executionID)

	for len(l.order) > l.capacity {
		delete(l.records, l.order[0])
		l.order = l.order[1:]
	}
}

// Observe updates a run from a fetched status. Unknown executions are ignored.
func (l *RunLog) Observe(st *Status) {
	if st == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[st.ExecutionID]
	if !ok || r.Finished() {
		return
	}
	r.Status = st.Status
	r.UpdatedAt = l.now()
	if len(st.StepStatuses) > 0 {
		r.StepStatuses = make(map[string]string, len(st.StepStatuses))
		for k, v := range st.StepStatuses {
			r.StepStatuses[k] = v
		}
	}
	if st.Error != "" {
		r.Error = st.Error
	}
}

// Finish marks a run as settled with its final results.
func (l *RunLog) Finish(res *Results) {
	if res == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[res.ExecutionID]
	if !ok {
		return
	}
	now := l.now()
	if res.Status != "" {
		r.Status = res.Status
	}
	for id, step := range res.StepResults {
		if r.StepStatuses == nil {
			r.StepStatuses = make(map[string]string, len(res.StepResults))
		}
		r.StepStatuses[id] = step.Status
		if r.Error == "" && step.ErrorMessage != "" {
			r.Error = step.ErrorMessage
		}
	}
	r.UpdatedAt = now
	r.FinishedAt = now
	r.Duration = now.Sub(r.SubmittedAt)
}

// Fail marks a run as settled without results.
func (l *RunLog) Fail(executionID string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[executionID]
	if !ok {
		return
	}
	now := l.now()
	if err != nil {
		r.Error = err.Error()
	}
	r.UpdatedAt = now
	r.FinishedAt = now
	r.Duration = now.Sub(r.SubmittedAt)
}

// Get returns a copy of one run.
func (l *RunLog) Get(executionID string) (RunRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.records[executionID]
	if !ok {
		return RunRecord{}, false
	}
	return r.clone(), true
}

// List returns runs newest first, optionally filtered.
func (l *RunLog) List(filter func(RunRecord) bool) []RunRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]RunRecord, 0, len(l.order))
	for i := len(l.order) - 1; i >= 0; i-- {
		r := l.records[l.order[i]].clone()
		if filter == nil || filter(r) {
			out = append(out, r)
		}
	}
	return out
}

// ListByWorkflow returns the runs of one workflow, newest first.
func (l *RunLog) ListByWorkflow(workflowID string) []RunRecord {
	return l.List(func(r RunRecord) bool { return r.WorkflowID == workflowID })
}

// ListByStatus returns the runs whose last known status matches.
func (l *RunLog) ListByStatus(status string) []RunRecord {
	return l.List(func(r RunRecord) bool { return r.Status == status })
}

// Len returns the number of runs kept.
func (l *RunLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// StatusCounts returns how many kept runs are in each status.
func (l *RunLog) StatusCounts() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[string]int)
	for _, r := range l.records {
		counts[r.Status]++
	}
	return counts
}

// SortedStepIDs returns the step ids of a record in lexical order.
func (r RunRecord) SortedStepIDs() []string {
	ids := make([]string, 0, len(r.StepStatuses))
	for id := range r.StepStatuses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
