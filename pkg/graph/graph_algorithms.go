package graph

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// PageRankResult is the importance score computed for one entity.
type PageRankResult struct {
	EntityID string  `json:"entity_id"`
	Score    float64 `json:"score"`
}

// PageRank computes PageRank scores over a tenant's graph and persists each
// score back onto the corresponding Entity.Importance. Loads only topology
// (IDs and triples), not full entity rows, to stay cheap on large graphs.
func (g *GraphStore) PageRank(ctx context.Context, tenantID string, iterations int, dampingFactor float64) ([]PageRankResult, error) {
	if iterations <= 0 {
		iterations = 100
	}
	if dampingFactor <= 0 || dampingFactor > 1 {
		dampingFactor = 0.85
	}

	rows, err := g.db.QueryContext(ctx, "SELECT id FROM graph_entities WHERE tenant_id = ?", tenantID)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}

	var ids []string
	idToIndex := make(map[string]int)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		idToIndex[id] = len(ids)
		ids = append(ids, id)
	}
	rows.Close()

	if len(ids) == 0 {
		return []PageRankResult{}, nil
	}

	edgeRows, err := g.db.QueryContext(ctx, "SELECT subject_id, object_id FROM graph_triples WHERE tenant_id = ?", tenantID)
	if err != nil {
		return nil, fmt.Errorf("query triples: %w", err)
	}

	outDegree := make([]int, len(ids))
	inLinks := make([][]int, len(ids))

	for edgeRows.Next() {
		var from, to string
		if err := edgeRows.Scan(&from, &to); err != nil {
			edgeRows.Close()
			return nil, err
		}
		u, ok1 := idToIndex[from]
		v, ok2 := idToIndex[to]
		if ok1 && ok2 {
			outDegree[u]++
			inLinks[v] = append(inLinks[v], u)
		}
	}
	edgeRows.Close()

	nodeCount := float64(len(ids))
	scores := make([]float64, len(ids))
	newScores := make([]float64, len(ids))
	initialScore := 1.0 / nodeCount
	for i := range scores {
		scores[i] = initialScore
	}

	for iter := 0; iter < iterations; iter++ {
		maxDiff := 0.0
		for i := range ids {
			rank := (1.0 - dampingFactor) / nodeCount
			for _, inIdx := range inLinks[i] {
				if outDegree[inIdx] > 0 {
					rank += dampingFactor * scores[inIdx] / float64(outDegree[inIdx])
				}
			}
			newScores[i] = rank
			if diff := math.Abs(newScores[i] - scores[i]); diff > maxDiff {
				maxDiff = diff
			}
		}
		copy(scores, newScores)
		if maxDiff < 1e-6 {
			break
		}
	}

	results := make([]PageRankResult, len(ids))
	for i, id := range ids {
		results[i] = PageRankResult{EntityID: id, Score: scores[i]}
		if _, err := g.db.ExecContext(ctx,
			"UPDATE graph_entities SET importance = ? WHERE tenant_id = ? AND id = ?",
			scores[i], tenantID, id,
		); err != nil {
			return nil, fmt.Errorf("persist importance for %s: %w", id, err)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// Community is a detected cluster of entities.
type Community struct {
	ID       int      `json:"id"`
	Entities []string `json:"entities"`
	Score    float64  `json:"score"` // fraction of the graph this community covers
}

// CommunityDetection groups a tenant's entities using the Louvain method:
// repeated local moves of each node to the neighboring community that
// maximizes its connection weight, until no further move improves anything.
func (g *GraphStore) CommunityDetection(ctx context.Context, tenantID string) ([]Community, error) {
	rows, err := g.db.QueryContext(ctx, "SELECT id FROM graph_entities WHERE tenant_id = ?", tenantID)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}

	var ids []string
	idToIndex := make(map[string]int)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		idToIndex[id] = len(ids)
		ids = append(ids, id)
	}
	rows.Close()

	if len(ids) == 0 {
		return []Community{}, nil
	}

	adj := make([]map[int]float64, len(ids))
	for i := range adj {
		adj[i] = make(map[int]float64)
	}

	edgeRows, err := g.db.QueryContext(ctx, "SELECT subject_id, object_id, confidence FROM graph_triples WHERE tenant_id = ?", tenantID)
	if err != nil {
		return nil, fmt.Errorf("query triples: %w", err)
	}
	for edgeRows.Next() {
		var from, to string
		var weight float64
		if err := edgeRows.Scan(&from, &to, &weight); err != nil {
			edgeRows.Close()
			return nil, err
		}
		u, ok1 := idToIndex[from]
		v, ok2 := idToIndex[to]
		if ok1 && ok2 {
			adj[u][v] += weight
			adj[v][u] += weight
		}
	}
	edgeRows.Close()

	communities := make([]int, len(ids))
	for i := range communities {
		communities[i] = i
	}

	changed := true
	iterations := 0
	for changed && iterations < 100 {
		changed = false
		iterations++

		for i := range ids {
			currentComm := communities[i]
			bestComm := currentComm

			commWeights := make(map[int]float64)
			for neighbor, weight := range adj[i] {
				commWeights[communities[neighbor]] += weight
			}
			bestGain := commWeights[currentComm]

			for comm, weight := range commWeights {
				if comm != currentComm && weight > bestGain {
					bestGain = weight
					bestComm = comm
				}
			}

			if bestComm != currentComm {
				communities[i] = bestComm
				changed = true
			}
		}
	}

	groups := make(map[int][]string)
	for i, commID := range communities {
		groups[commID] = append(groups[commID], ids[i])
	}

	results := make([]Community, 0, len(groups))
	idCounter := 0
	for _, members := range groups {
		results = append(results, Community{
			ID:       idCounter,
			Entities: members,
			Score:    float64(len(members)) / float64(len(ids)),
		})
		idCounter++
	}

	sort.Slice(results, func(i, j int) bool { return len(results[i].Entities) > len(results[j].Entities) })
	return results, nil
}

// GraphStatistics summarizes the shape of a tenant's graph.
type GraphStatistics struct {
	EntityCount         int     `json:"entity_count"`
	TripleCount         int     `json:"triple_count"`
	AverageDegree       float64 `json:"average_degree"`
	Density             float64 `json:"density"`
	ConnectedComponents int     `json:"connected_components"`
}

// GetGraphStatistics computes summary statistics for a tenant's graph.
func (g *GraphStore) GetGraphStatistics(ctx context.Context, tenantID string) (*GraphStatistics, error) {
	stats := &GraphStatistics{}

	if err := g.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM graph_entities WHERE tenant_id = ?", tenantID).Scan(&stats.EntityCount); err != nil {
		return nil, err
	}
	if stats.EntityCount == 0 {
		return stats, nil
	}

	if err := g.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM graph_triples WHERE tenant_id = ?", tenantID).Scan(&stats.TripleCount); err != nil {
		return nil, err
	}

	stats.AverageDegree = 2.0 * float64(stats.TripleCount) / float64(stats.EntityCount)
	if maxEdges := float64(stats.EntityCount) * float64(stats.EntityCount-1); maxEdges > 0 {
		stats.Density = float64(stats.TripleCount) / maxEdges
	}

	edgeRows, err := g.db.QueryContext(ctx, "SELECT subject_id, object_id FROM graph_triples WHERE tenant_id = ?", tenantID)
	if err != nil {
		return nil, err
	}
	adj := make(map[string][]string)
	for edgeRows.Next() {
		var u, v string
		if err := edgeRows.Scan(&u, &v); err != nil {
			edgeRows.Close()
			return nil, err
		}
		adj[u] = append(adj[u], v)
		adj[v] = append(adj[v], u)
	}
	edgeRows.Close()

	idRows, err := g.db.QueryContext(ctx, "SELECT id FROM graph_entities WHERE tenant_id = ?", tenantID)
	if err != nil {
		return nil, err
	}
	var allIDs []string
	for idRows.Next() {
		var id string
		if err := idRows.Scan(&id); err != nil {
			idRows.Close()
			return nil, err
		}
		allIDs = append(allIDs, id)
	}
	idRows.Close()

	visited := make(map[string]bool)
	components := 0
	for _, id := range allIDs {
		if visited[id] {
			continue
		}
		components++
		queue := []string{id}
		visited[id] = true
		for len(queue) > 0 {
			curr := queue[0]
			queue = queue[1:]
			for _, neighbor := range adj[curr] {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}
	}
	stats.ConnectedComponents = components

	return stats, nil
}
