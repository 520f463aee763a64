package graph

import (
	"container/heap"
	"context"
	"fmt"
)

// TraversalOptions bounds a BFS/DFS walk.
type TraversalOptions struct {
	MaxDepth   int      `json:"max_depth"`
	Predicates []string `json:"predicates,omitempty"`
	Direction  string   `json:"direction"` // "out", "in", "both"
	Limit      int      `json:"limit"`
}

// PathResult is a path through the graph: the entities visited, the triples
// traversed between them, and its length and cumulative weight.
type PathResult struct {
	Entities []*Entity      `json:"entities"`
	Triples  []*GraphTriple `json:"triples"`
	Distance int            `json:"distance"`
	Weight   float64        `json:"weight"`
}

// Neighbors performs a breadth-first walk from entityID and returns every
// entity reached within opts.MaxDepth hops.
func (g *GraphStore) Neighbors(ctx context.Context, tenantID, entityID string, opts TraversalOptions) ([]*Entity, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1
	}
	if opts.Direction == "" {
		opts.Direction = "both"
	}

	visited := map[string]bool{entityID: true}
	queue := []struct {
		id    string
		depth int
	}{{entityID, 0}}

	var neighbors []*Entity

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= opts.MaxDepth {
			continue
		}

		triples, err := g.GetTriples(ctx, tenantID, current.id, opts.Direction)
		if err != nil {
			return nil, fmt.Errorf("failed to get triples: %w", err)
		}

		for _, tr := range triples {
			if len(opts.Predicates) > 0 && !contains(opts.Predicates, tr.Predicate) {
				continue
			}

			var neighborID string
			if tr.Subject == current.id {
				neighborID = tr.Object
			} else {
				neighborID = tr.Subject
			}
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true

			entity, err := g.GetEntity(ctx, tenantID, neighborID)
			if err != nil {
				continue
			}

			neighbors = append(neighbors, entity)
			if current.depth+1 < opts.MaxDepth {
				queue = append(queue, struct {
					id    string
					depth int
				}{neighborID, current.depth + 1})
			}
			if opts.Limit > 0 && len(neighbors) >= opts.Limit {
				return neighbors, nil
			}
		}
	}

	return neighbors, nil
}

// ShortestPath finds the shortest path between two entities by hop count
// (breadth-first, unweighted).
func (g *GraphStore) ShortestPath(ctx context.Context, tenantID, fromID, toID string) (*PathResult, error) {
	if fromID == toID {
		entity, err := g.GetEntity(ctx, tenantID, fromID)
		if err != nil {
			return nil, err
		}
		return &PathResult{Entities: []*Entity{entity}, Triples: []*GraphTriple{}}, nil
	}

	type queueItem struct {
		id       string
		path     []string
		triples  []string
		distance int
		weight   float64
	}

	visited := map[string]bool{}
	queue := []queueItem{{id: fromID, path: []string{fromID}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.id == toID {
			result := &PathResult{Distance: current.distance, Weight: current.weight}
			for _, id := range current.path {
				entity, err := g.GetEntity(ctx, tenantID, id)
				if err != nil {
					return nil, err
				}
				result.Entities = append(result.Entities, entity)
			}
			for _, tid := range current.triples {
				tr, err := g.getTripleByID(ctx, tenantID, tid)
				if err != nil {
					return nil, err
				}
				result.Triples = append(result.Triples, tr)
			}
			return result, nil
		}

		if visited[current.id] {
			continue
		}
		visited[current.id] = true

		triples, err := g.GetTriples(ctx, tenantID, current.id, "out")
		if err != nil {
			return nil, err
		}

		for _, tr := range triples {
			if visited[tr.Object] {
				continue
			}
			newPath := append(append([]string{}, current.path...), tr.Object)
			newTriples := append(append([]string{}, current.triples...), tr.ID)
			conf := tr.Confidence
			if conf <= 0 {
				conf = 1.0
			}
			queue = append(queue, queueItem{
				id:       tr.Object,
				path:     newPath,
				triples:  newTriples,
				distance: current.distance + 1,
				weight:   current.weight + 1.0/conf,
			})
		}
	}

	return nil, fmt.Errorf("no path found from %s to %s", fromID, toID)
}

// dijkstraItem is one entry of the priority queue used by ShortestWeightedPath.
type dijkstraItem struct {
	id      string
	dist    float64
	path    []string
	triples []string
}

type dijkstraQueue []*dijkstraItem

func (q dijkstraQueue) Len() int            { return len(q) }
func (q dijkstraQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q dijkstraQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *dijkstraQueue) Push(x interface{}) { *q = append(*q, x.(*dijkstraItem)) }
func (q *dijkstraQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// ShortestWeightedPath finds the minimum-cost path between two entities
// using Dijkstra's algorithm, where each triple's edge weight is 1/confidence
// — a highly confident relation is "closer" than a tentative one.
func (g *GraphStore) ShortestWeightedPath(ctx context.Context, tenantID, fromID, toID string) (*PathResult, error) {
	if fromID == toID {
		entity, err := g.GetEntity(ctx, tenantID, fromID)
		if err != nil {
			return nil, err
		}
		return &PathResult{Entities: []*Entity{entity}, Triples: []*GraphTriple{}}, nil
	}

	dist := map[string]float64{fromID: 0}
	visited := map[string]bool{}

	pq := &dijkstraQueue{{id: fromID, dist: 0, path: []string{fromID}}}
	heap.Init(pq)

	for pq.Len() > 0 {
		current := heap.Pop(pq).(*dijkstraItem)
		if visited[current.id] {
			continue
		}
		visited[current.id] = true

		if current.id == toID {
			result := &PathResult{Distance: len(current.path) - 1, Weight: current.dist}
			for _, id := range current.path {
				entity, err := g.GetEntity(ctx, tenantID, id)
				if err != nil {
					return nil, err
				}
				result.Entities = append(result.Entities, entity)
			}
			for _, tid := range current.triples {
				tr, err := g.getTripleByID(ctx, tenantID, tid)
				if err != nil {
					return nil, err
				}
				result.Triples = append(result.Triples, tr)
			}
			return result, nil
		}

		triples, err := g.GetTriples(ctx, tenantID, current.id, "out")
		if err != nil {
			return nil, err
		}

		for _, tr := range triples {
			if visited[tr.Object] {
				continue
			}
			weight := 1.0
			if tr.Confidence > 0 {
				weight = 1.0 / tr.Confidence
			}
			newDist := current.dist + weight
			if existing, ok := dist[tr.Object]; !ok || newDist < existing {
				dist[tr.Object] = newDist
				heap.Push(pq, &dijkstraItem{
					id:      tr.Object,
					dist:    newDist,
					path:    append(append([]string{}, current.path...), tr.Object),
					triples: append(append([]string{}, current.triples...), tr.ID),
				})
			}
		}
	}

	return nil, fmt.Errorf("no path found from %s to %s", fromID, toID)
}

// Subgraph extracts the entities in entityIDs plus every triple whose
// subject and object are both within that set.
func (g *GraphStore) Subgraph(ctx context.Context, tenantID string, entityIDs []string) (*GraphResult, error) {
	idSet := map[string]bool{}
	for _, id := range entityIDs {
		idSet[id] = true
	}

	var entities []*Entity
	for _, id := range entityIDs {
		entity, err := g.GetEntity(ctx, tenantID, id)
		if err != nil {
			continue
		}
		entities = append(entities, entity)
	}

	var triples []*GraphTriple
	seen := map[string]bool{}
	for _, id := range entityIDs {
		outTriples, err := g.GetTriples(ctx, tenantID, id, "out")
		if err != nil {
			continue
		}
		for _, tr := range outTriples {
			if idSet[tr.Object] && !seen[tr.ID] {
				seen[tr.ID] = true
				triples = append(triples, tr)
			}
		}
	}

	return &GraphResult{Entities: entities, Triples: triples}, nil
}

// Connected reports whether id2 is reachable from id1 within maxDepth hops,
// following triples in either direction.
func (g *GraphStore) Connected(ctx context.Context, tenantID, id1, id2 string, maxDepth int) (bool, error) {
	if id1 == id2 {
		return true, nil
	}
	if maxDepth <= 0 {
		maxDepth = 6
	}

	visited := map[string]bool{id1: true}
	queue := []struct {
		id    string
		depth int
	}{{id1, 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		triples, err := g.GetTriples(ctx, tenantID, current.id, "both")
		if err != nil {
			return false, err
		}

		for _, tr := range triples {
			var next string
			if tr.Subject == current.id {
				next = tr.Object
			} else {
				next = tr.Subject
			}
			if next == id2 {
				return true, nil
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, struct {
					id    string
					depth int
				}{next, current.depth + 1})
			}
		}
	}

	return false, nil
}
