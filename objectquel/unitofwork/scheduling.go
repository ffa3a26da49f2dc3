package unitofwork

import (
	"go.uber.org/zap"

	"github.com/krew-solutions/objectquel-go/objectquel/proxy"
)

// graph is a dependency graph over entities: an edge p -> e means p has to be
// written before e.
type graph struct {
	nodes    []any
	index    map[any]int
	edges    map[any][]any
	inDegree map[any]int
}

func newGraph(nodes []any) *graph {
	g := &graph{
		nodes:    nodes,
		index:    make(map[any]int, len(nodes)),
		edges:    make(map[any][]any),
		inDegree: make(map[any]int, len(nodes)),
	}
	for i, n := range nodes {
		g.index[n] = i
		g.inDegree[n] = 0
	}
	return g
}

func (g *graph) has(n any) bool {
	_, ok := g.index[n]
	return ok
}

func (g *graph) addEdge(from, to any) {
	g.edges[from] = append(g.edges[from], to)
	g.inDegree[to]++
}

// sort orders the nodes with Kahn's algorithm. Ties keep node order. The
// second result lists the nodes left over by a cycle.
func (g *graph) sort() (ordered, cyclic []any) {
	inDegree := make(map[any]int, len(g.inDegree))
	var queue []any
	for _, n := range g.nodes {
		inDegree[n] = g.inDegree[n]
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		ordered = append(ordered, n)
		for _, dependent := range g.edges[n] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	if len(ordered) < len(g.nodes) {
		for _, n := range g.nodes {
			if inDegree[n] > 0 {
				cyclic = append(cyclic, n)
			}
		}
	}
	return ordered, cyclic
}

// ScheduleEntities orders every tracked entity that is neither scheduled for
// deletion nor an unloaded placeholder so that referenced entities come
// before the entities referencing them.
func (u *UnitOfWork) ScheduleEntities() ([]any, error) {
	var candidates []any
	for _, e := range u.identityMap.Entities() {
		if _, removed := u.removals[e]; removed || !proxy.IsInitialized(e) {
			continue
		}
		candidates = append(candidates, e)
	}
	return u.schedule(candidates)
}

func (u *UnitOfWork) schedule(entities []any) ([]any, error) {
	g := newGraph(entities)
	if err := u.addRelationEdges(g); err != nil {
		return nil, err
	}
	ordered, cyclic := g.sort()
	if len(cyclic) > 0 {
		return nil, u.cycleError(cyclic)
	}
	return ordered, nil
}

// addRelationEdges adds an edge from every loaded parent in g to the entities
// of g referencing it.
func (u *UnitOfWork) addRelationEdges(g *graph) error {
	for _, e := range g.nodes {
		d, err := u.descriptorOf(e)
		if err != nil {
			return err
		}
		relations, err := u.parentRelations(d)
		if err != nil {
			return err
		}
		for _, r := range relations {
			value, err := u.accessor.Get(e, r.Property)
			if err != nil {
				return err
			}
			parent, ok := proxy.Resolve(value)
			if !ok || !g.has(parent) {
				continue
			}
			g.addEdge(parent, e)
		}
	}
	return nil
}

// deletionOrder orders the entities scheduled for deletion so that
// referencing entities come before the entities they reference. Mutually
// referencing entities go first, in reverse scheduling order.
func (u *UnitOfWork) deletionOrder() ([]any, error) {
	var deleted []any
	for _, e := range u.removalOrder {
		if u.identityMap.Has(e) {
			deleted = append(deleted, e)
		}
	}
	if len(deleted) == 0 {
		return nil, nil
	}
	g := newGraph(deleted)
	if err := u.addRelationEdges(g); err != nil {
		return nil, err
	}
	for _, e := range deleted {
		for _, parent := range u.cascadedFrom[e] {
			if g.has(parent) {
				g.addEdge(parent, e)
			}
		}
	}
	ordered, cyclic := g.sort()
	if len(cyclic) > 0 {
		// Entities on a cycle keep their removal order. The database decides
		// whether the statements succeed, e.g. with deferred constraints.
		u.logger.Debug("deleting entities on a reference cycle",
			zap.Strings("entities", u.cycleError(cyclic).Entities))
		ordered = append(ordered, cyclic...)
	}
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered, nil
}

func (u *UnitOfWork) cycleError(entities []any) *CycleError {
	err := &CycleError{}
	for _, e := range entities {
		name, _ := u.identityMap.EntityName(e)
		err.Entities = append(err.Entities, name)
	}
	return err
}
