package relation

import (
	"sort"
	"strings"

	"github.com/trama-ai/trama/pkg/common"
)

// BuildGraph derives the relation graph from a run's resolved relations.
// Every endpoint referenced by a relation becomes a node exactly once,
// keyed by its resolved entity ID when bound and by its lowercase text
// otherwise, so edges never dangle. Node size counts endpoint references.
// Entities supply labels and types for bound nodes; nil is fine.
//
// Edges carry one entry per relation, but density is computed over distinct
// ordered endpoint pairs: parallel predicates between the same pair count
// once and self-references not at all, keeping density in [0, 1] for any
// relation set.
func BuildGraph(relations []common.ResolvedRelation, entities []common.ResolvedEntity) *common.RelationGraph {
	graph := &common.RelationGraph{
		Nodes: []common.GraphNode{},
		Edges: []common.GraphEdge{},
	}
	if len(relations) == 0 {
		return graph
	}

	byID := make(map[string]common.ResolvedEntity, len(entities))
	for _, ent := range entities {
		byID[ent.ID] = ent
	}

	nodes := make(map[string]*common.GraphNode)
	adjacency := make(map[string][]string)
	pairs := make(map[[2]string]struct{}, len(relations))

	touch := func(id, text string) string {
		key := id
		if key == "" {
			key = strings.ToLower(text)
		}
		node, ok := nodes[key]
		if !ok {
			node = &common.GraphNode{ID: key, Label: text}
			if ent, bound := byID[id]; bound {
				node.Label = ent.Text
				node.Type = ent.Type
			}
			nodes[key] = node
		}
		node.Size++
		return key
	}

	for _, rel := range relations {
		from := touch(rel.SubjectID, rel.Subject)
		to := touch(rel.ObjectID, rel.Object)

		graph.Edges = append(graph.Edges, common.GraphEdge{
			From:      from,
			To:        to,
			Predicate: rel.Predicate,
			Weight:    rel.Confidence,
		})
		if from != to {
			pairs[[2]string{from, to}] = struct{}{}
		}
		adjacency[from] = append(adjacency[from], to)
		adjacency[to] = append(adjacency[to], from)
	}

	for _, node := range nodes {
		graph.Nodes = append(graph.Nodes, *node)
	}
	sort.Slice(graph.Nodes, func(i, j int) bool {
		if graph.Nodes[i].Size != graph.Nodes[j].Size {
			return graph.Nodes[i].Size > graph.Nodes[j].Size
		}
		return graph.Nodes[i].Label < graph.Nodes[j].Label
	})

	n := len(graph.Nodes)
	if n > 1 {
		graph.Density = float64(len(pairs)) / float64(n*(n-1))
	}
	graph.ConnectedComponents = countComponents(nodes, adjacency)

	return graph
}

// countComponents runs a depth-first traversal over the undirected
// adjacency list and counts how many roots it needs to visit every node.
func countComponents(nodes map[string]*common.GraphNode, adjacency map[string][]string) int {
	visited := make(map[string]struct{}, len(nodes))
	count := 0

	for key := range nodes {
		if _, ok := visited[key]; ok {
			continue
		}
		count++

		stack := []string{key}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := visited[cur]; ok {
				continue
			}
			visited[cur] = struct{}{}
			stack = append(stack, adjacency[cur]...)
		}
	}

	return count
}
