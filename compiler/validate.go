package compiler

import "strings"

// ---------------------------------------------------------------------------
// Graph validation
//
// Runs before any emission so a malformed graph never produces text.
// ---------------------------------------------------------------------------

type visitState uint8

const (
	stateVisiting visitState = iota + 1
	stateDone
)

// validate checks the root set and walks the graph depth-first, reporting
// the first cycle, nil input, dangling reference or bad literal.
func validate(roots []Root, required []string) error {
	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		if !isIdentifier(r.Target) {
			return configErr(r.Target, "output target is not an identifier")
		}
		if strings.HasPrefix(r.Target, cachePrefix) {
			return structureErr(nil, "output %q uses the reserved prefix %q", r.Target, cachePrefix)
		}
		if seen[r.Target] {
			return structureErr(nil, "output %q is bound twice", r.Target)
		}
		seen[r.Target] = true
		if r.Node == nil {
			return structureErr(nil, "output %q has no node", r.Target)
		}
	}
	for _, name := range required {
		if !seen[name] {
			return structureErr(nil, "missing required output %q", name)
		}
	}

	states := make(map[NodeID]visitState)
	var path []Node
	var visit func(n Node) error
	visit = func(n Node) error {
		switch states[n.ID()] {
		case stateVisiting:
			return structureErr(n, "cycle: %s", cyclePath(path, n))
		case stateDone:
			return nil
		}
		switch x := n.(type) {
		case *badLiteral:
			return structureErr(n, "unsupported literal %v: %v", x.value, x.err)
		case *RefNode:
			if x.target == nil {
				return structureErr(n, "dangling reference %q", x.name)
			}
		}

		states[n.ID()] = stateVisiting
		path = append(path, n)
		for i, in := range n.Inputs() {
			if in == nil {
				return structureErr(n, "input %d is nil", i)
			}
			if err := visit(in); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		states[n.ID()] = stateDone
		return nil
	}

	for _, r := range roots {
		if err := visit(r.Node); err != nil {
			return err
		}
		if want, ok := TargetShapes[r.Target]; ok && r.Node.Shape() != want && r.Node.Shape().Valid() {
			return shapeErr(r.Node, "output %q must be %s, got %s", r.Target, want, r.Node.Shape())
		}
	}
	return nil
}

// cyclePath renders the loop that closes at n.
func cyclePath(path []Node, n Node) string {
	start := 0
	for i, p := range path {
		if p.ID() == n.ID() {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(path)-start+1)
	for _, p := range path[start:] {
		parts = append(parts, describe(p))
	}
	parts = append(parts, describe(n))
	return strings.Join(parts, " -> ")
}
