// Package reachability implements the Reachability Engine: a breadth-first
// closure over the module dependency graph starting from the packages the
// Export Resolver marked as entry points.
//
// Only reachable modules are retained in the final ApiIndex: the graph
// never contains a package nothing reaches. The entity-level walk
// (WalkEntities) also follows interface-implementer edges, so the
// implementers of a reachable interface stay reachable.
package reachability

import "context"

// Graph is the minimal adjacency view the BFS needs: for a given package
// path, the set of package paths it directly depends on.
type Graph interface {
	Edges(pkgPath string) []string
}

// Result is the outcome of a reachability walk.
type Result struct {
	// Reachable is the set of every package path reached.
	Reachable map[string]bool
	// Order lists reached packages in BFS discovery order, used for
	// deterministic iteration downstream.
	Order []string
}

// Walk performs a BFS from entryPoints over g, returning every reachable
// package path. Cancellation is checked once per dequeue, so a
// long-running BFS over a large dependency graph stays responsive.
func Walk(ctx context.Context, g Graph, entryPoints []string) (*Result, error) {
	reachable := map[string]bool{}
	var order []string
	queue := make([]string, 0, len(entryPoints))

	for _, ep := range entryPoints {
		if !reachable[ep] {
			reachable[ep] = true
			order = append(order, ep)
			queue = append(queue, ep)
		}
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.Edges(cur) {
			if reachable[dep] {
				continue
			}
			reachable[dep] = true
			order = append(order, dep)
			queue = append(queue, dep)
		}
	}

	return &Result{Reachable: reachable, Order: order}, nil
}

// EntityNode is one BFS node in an EntityGraph: an entity's id, the bare
// names (unqualified, as they appear in ReferencedTypes) it mentions, and
// whether it is itself an entry point.
type EntityNode struct {
	Id              string
	Name            string
	EntryPoint      bool
	ReferencedTypes []string
}

// EntityGraph is the per-entity analogue of Graph: an unreachable entity
// inside an otherwise-retained module must still be pruned, not just an
// unreachable whole package. Edges are named by bare type name rather
// than id, since ReferencedTypes is populated from a go/types walk that
// has no notion of the assembler's id scheme; the graph resolves a name
// to zero or more node ids via byName.
type EntityGraph struct {
	nodes []EntityNode
	byName map[string][]string
	byId   map[string]*EntityNode

	// implementers, when non-nil, maps an interface name to the ids of
	// entities that implement it. WalkEntities follows these edges so an
	// entity that references an interface also marks every concrete
	// implementer reachable.
	implementers map[string][]string
}

// NewEntityGraph builds an EntityGraph from every entity's
// (id, name, entryPoint, referencedTypes) tuple.
func NewEntityGraph(nodes []EntityNode, implementers map[string][]string) *EntityGraph {
	g := &EntityGraph{
		nodes:        nodes,
		byName:       map[string][]string{},
		byId:         map[string]*EntityNode{},
		implementers: implementers,
	}
	for i := range g.nodes {
		n := &g.nodes[i]
		g.byId[n.Id] = n
		g.byName[n.Name] = append(g.byName[n.Name], n.Id)
	}
	return g
}

// WalkEntities performs a BFS over g starting from every entity flagged
// EntryPoint, following ReferencedTypes edges (and, when g carries an
// implementers map, interface-name -> implementer-id edges), returning
// the set of reachable entity ids.
func WalkEntities(ctx context.Context, g *EntityGraph) (map[string]bool, error) {
	reachable := map[string]bool{}
	var queue []string
	for i := range g.nodes {
		if g.nodes[i].EntryPoint && !reachable[g.nodes[i].Id] {
			reachable[g.nodes[i].Id] = true
			queue = append(queue, g.nodes[i].Id)
		}
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		curId := queue[0]
		queue = queue[1:]
		cur := g.byId[curId]
		if cur == nil {
			continue
		}
		for _, name := range cur.ReferencedTypes {
			for _, id := range g.byName[name] {
				if !reachable[id] {
					reachable[id] = true
					queue = append(queue, id)
				}
			}
			for _, id := range g.implementers[name] {
				if !reachable[id] {
					reachable[id] = true
					queue = append(queue, id)
				}
			}
		}
	}

	return reachable, nil
}
