package workflow

// CategoryExternalAgents is the node category of agents hosted outside the
// studio and reached over A2A.
const CategoryExternalAgents = "external agents"

// Position represents node position in visual canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node represents a configured unit on the visual canvas.
type Node struct {
	ID         string    `json:"id" yaml:"id"`
	Type       string    `json:"type" yaml:"type"`
	Label      string    `json:"label" yaml:"label"`
	Category   string    `json:"category,omitempty" yaml:"category,omitempty"`
	Parameters Params    `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Position   *Position `json:"position,omitempty" yaml:"position,omitempty"`
}

// Clone deep copies the node.
func (n Node) Clone() Node {
	out := n
	out.Parameters = n.Parameters.Clone()
	if n.Position != nil {
		p := *n.Position
		out.Position = &p
	}
	return out
}

// Edge represents a directed data-flow arrow between two nodes.
type Edge struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"source_handle,omitempty" yaml:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty" yaml:"target_handle,omitempty"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty"`
	Animated     bool   `json:"animated,omitempty" yaml:"animated,omitempty"`
}

// Snapshot is one point in editing time: the full set of nodes and edges.
// Snapshots are treated as immutable values; editors derive a new snapshot
// instead of mutating one in place.
type Snapshot struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// EmptySnapshot returns a snapshot with no nodes and no edges.
func EmptySnapshot() Snapshot {
	return Snapshot{Nodes: []Node{}, Edges: []Edge{}}
}

// Clone deep copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	copy(out.Edges, s.Edges)
	return out
}

// Node returns the node with the given id.
func (s Snapshot) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodeIndex returns the position of the node in iteration order, or -1.
func (s Snapshot) NodeIndex(id string) int {
	for i, n := range s.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
