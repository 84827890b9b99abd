package workflow

import "fmt"

// Severity grades a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DiagnosticCode identifies the kind of issue a diagnostic reports.
type DiagnosticCode string

const (
	DiagUnknownNodeType DiagnosticCode = "unknown_node_type"
	DiagUnresolvedModel DiagnosticCode = "unresolved_model"
	DiagUnboundVariable DiagnosticCode = "unbound_variable"
	DiagDanglingEdge    DiagnosticCode = "dangling_edge"
	DiagDuplicateEdge   DiagnosticCode = "duplicate_edge"
	DiagDuplicateNodeID DiagnosticCode = "duplicate_node_id"
	DiagCycleDetected   DiagnosticCode = "cycle_detected"
	DiagSelfLoop        DiagnosticCode = "self_loop"
)

// DiagInvalidParameter marks a parameter of the wrong type that was replaced
// by its default.
const DiagInvalidParameter DiagnosticCode = "invalid_parameter"

// Diagnostic reports a fallback taken by the compiler or a structural issue
// in the canvas. Diagnostics never stop compilation.
type Diagnostic struct {
	Code     DiagnosticCode `json:"code" yaml:"code"`
	Severity Severity       `json:"severity" yaml:"severity"`
	NodeID   string         `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	Message  string         `json:"message" yaml:"message"`
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate runs the structural checks on a canvas: duplicate node ids,
// edges pointing at unknown nodes, self loops, duplicate edges and cycles.
func Validate(s Snapshot) []Diagnostic {
	var diags []Diagnostic

	ids := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		if ids[n.ID] {
			diags = append(diags, Diagnostic{
				Code:     DiagDuplicateNodeID,
				Severity: SeverityError,
				NodeID:   n.ID,
				Message:  fmt.Sprintf("node id %q is used more than once", n.ID),
			})
		}
		ids[n.ID] = true
	}

	type pair struct{ source, target string }
	seen := make(map[pair]bool, len(s.Edges))
	adjacency := make(map[string][]string)
	for _, e := range s.Edges {
		if !ids[e.Source] || !ids[e.Target] {
			diags = append(diags, Diagnostic{
				Code:     DiagDanglingEdge,
				Severity: SeverityError,
				NodeID:   e.Target,
				Message:  fmt.Sprintf("edge %s -> %s references an unknown node", e.Source, e.Target),
			})
			continue
		}
		if e.Source == e.Target {
			diags = append(diags, Diagnostic{
				Code:     DiagSelfLoop,
				Severity: SeverityError,
				NodeID:   e.Source,
				Message:  fmt.Sprintf("node %s is connected to itself", e.Source),
			})
		}
		p := pair{e.Source, e.Target}
		if seen[p] {
			diags = append(diags, Diagnostic{
				Code:     DiagDuplicateEdge,
				Severity: SeverityWarning,
				NodeID:   e.Target,
				Message:  fmt.Sprintf("edge %s -> %s appears more than once; the dependency is listed twice", e.Source, e.Target),
			})
			continue
		}
		seen[p] = true
		if e.Source != e.Target {
			adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		}
	}

	if nodeID, ok := findCycle(s.Nodes, adjacency); ok {
		diags = append(diags, Diagnostic{
			Code:     DiagCycleDetected,
			Severity: SeverityError,
			NodeID:   nodeID,
			Message:  fmt.Sprintf("cycle detected in graph involving node: %s", nodeID),
		})
	}

	return diags
}

// findCycle walks nodes in iteration order so the reported node is stable.
func findCycle(nodes []Node, adjacency map[string][]string) (string, bool) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycleDFS func(nodeID string) (string, bool)
	hasCycleDFS = func(nodeID string) (string, bool) {
		visited[nodeID] = true
		recStack[nodeID] = true
		for _, next := range adjacency[nodeID] {
			if !visited[next] {
				if id, ok := hasCycleDFS(next); ok {
					return id, true
				}
			} else if recStack[next] {
				// back edge
				return next, true
			}
		}
		recStack[nodeID] = false
		return "", false
	}

	for _, n := range nodes {
		if visited[n.ID] {
			continue
		}
		if id, ok := hasCycleDFS(n.ID); ok {
			return id, true
		}
	}
	return "", false
}
