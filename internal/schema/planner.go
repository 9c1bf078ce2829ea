package schema

// PlanPath returns the shortest sequence of versions leading from one
// version to another over the registered migration edges. It returns
// [from] when from equals to and nil when no route exists. Ties between
// equally short routes go to the edges registered first.
func (r *Registry) PlanPath(from, to string) []string {
	if from == to {
		return []string{from}
	}

	r.mu.RLock()
	adjacency := make(map[string][]string)
	for _, e := range r.edges {
		adjacency[e.from] = append(adjacency[e.from], e.to)
	}
	r.mu.RUnlock()

	parent := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range adjacency[current] {
			if _, visited := parent[next]; visited {
				continue
			}
			parent[next] = current
			if next == to {
				return reconstruct(parent, from, to)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func reconstruct(parent map[string]string, from, to string) []string {
	var reversed []string
	for v := to; v != from; v = parent[v] {
		reversed = append(reversed, v)
	}
	reversed = append(reversed, from)

	path := make([]string, len(reversed))
	for i, v := range reversed {
		path[len(reversed)-1-i] = v
	}
	return path
}
