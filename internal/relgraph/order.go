package relgraph

import "fmt"

// CycleError is raised by Validate when a node's table reappears on its own
// ancestor path. The Builder's ancestor check already prevents this during
// construction; Validate exists as a cheap defense-in-depth pass over a
// Graph assembled by any caller, not just Builder.
type CycleError struct {
	Table string
	Path  []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("table %q revisits an ancestor on path %v", e.Table, e.Path)
}

// Validate walks the tree and fails if any node's table matches one of its
// own ancestors.
func (g *Graph) Validate() error {
	var walk func(n *Node, seen map[string]bool, path []string) error
	walk = func(n *Node, seen map[string]bool, path []string) error {
		if seen[n.Table] {
			return &CycleError{Table: n.Table, Path: append(path, n.Table)}
		}
		seen[n.Table] = true
		path = append(path, n.Table)
		for _, c := range n.Children {
			childSeen := make(map[string]bool, len(seen)+1)
			for k := range seen {
				childSeen[k] = true
			}
			if err := walk(c, childSeen, path); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(g.Root, make(map[string]bool), nil)
}

// PreOrder returns every node in the tree in pre-order, including the root.
func (g *Graph) PreOrder() []*Node {
	var out []*Node
	g.Walk(func(n *Node) { out = append(out, n) })
	return out
}
