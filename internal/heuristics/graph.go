package heuristics

import (
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/ledger"
	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

// Transaction Graph
//
// Directed weighted multigraph over account ids. Every transaction becomes
// one edge; parallel edges between the same pair and self loops are kept.
// Nodes are numbered in first-seen order (sender before receiver, walking
// the ledger in time order) and that numbering is the tie-break used by
// every ordered output.

// GraphEdge is one transaction between two node indices.
type GraphEdge struct {
	From int
	To   int
	Tx   models.Transaction
}

// Graph is an adjacency list keyed by node index. Read-only once built.
type Graph struct {
	ids   []string
	index map[string]int
	edges []GraphEdge
	out   [][]int // node -> edge indices
	in    [][]int
}

// BuildGraph inserts one edge per transaction of set.
func BuildGraph(set ledger.Set) *Graph {
	g := &Graph{
		index: make(map[string]int),
		edges: make([]GraphEdge, 0, set.Len()),
	}
	for i := 0; i < set.Len(); i++ {
		tx := set.At(i)
		from := g.addNode(tx.SenderID)
		to := g.addNode(tx.ReceiverID)

		e := len(g.edges)
		g.edges = append(g.edges, GraphEdge{From: from, To: to, Tx: tx})
		g.out[from] = append(g.out[from], e)
		g.in[to] = append(g.in[to], e)
	}
	return g
}

func (g *Graph) addNode(id string) int {
	if idx, ok := g.index[id]; ok {
		return idx
	}
	idx := len(g.ids)
	g.ids = append(g.ids, id)
	g.index[id] = idx
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return idx
}

// NodeCount returns the number of distinct accounts.
func (g *Graph) NodeCount() int { return len(g.ids) }

// EdgeCount returns the number of transactions.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// NodeID returns the account id of node i.
func (g *Graph) NodeID(i int) string { return g.ids[i] }

// Index returns the node index of an account id.
func (g *Graph) Index(id string) (int, bool) {
	idx, ok := g.index[id]
	return idx, ok
}

// Edge returns edge e in insertion order.
func (g *Graph) Edge(e int) GraphEdge { return g.edges[e] }

// OutEdges returns the indices of edges leaving node i, in insertion order.
func (g *Graph) OutEdges(i int) []int { return g.out[i] }

// InEdges returns the indices of edges entering node i, in insertion order.
func (g *Graph) InEdges(i int) []int { return g.in[i] }

// InDegree counts transactions received by node i.
func (g *Graph) InDegree(i int) int { return len(g.in[i]) }

// OutDegree counts transactions sent by node i.
func (g *Graph) OutDegree(i int) int { return len(g.out[i]) }
