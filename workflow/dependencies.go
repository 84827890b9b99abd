package workflow

// ResolveDependencies maps every edge target to the source ids of its
// incoming edges, in edge encounter order. Duplicate edges between the same
// pair yield duplicate entries; the compiler reports them as diagnostics
// instead of dropping them.
func ResolveDependencies(edges []Edge) map[string][]string {
	deps := make(map[string][]string)
	for _, e := range edges {
		deps[e.Target] = append(deps[e.Target], e.Source)
	}
	return deps
}

// DependenciesOf returns the dependency list for nodeID, never nil.
func DependenciesOf(deps map[string][]string, nodeID string) []string {
	list := deps[nodeID]
	out := make([]string, len(list))
	copy(out, list)
	return out
}
