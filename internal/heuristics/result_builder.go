package heuristics

import (
	"sort"
	"time"

	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

const (
	DefaultVizNodeLimit = 300
	DefaultVizEdgeLimit = 600
	TopAccounts         = 10
	FlaggedScore        = 30.0
)

// BuildResult assembles the full and visualization payloads. Accounts are
// ordered by descending score with first-seen order breaking ties; edges keep
// graph insertion order.
func BuildResult(g *Graph, scores []AccountScore, rings []models.FraudRing, opts Options, elapsed time.Duration) *models.AnalysisResult {
	opts = opts.withDefaults()

	order := make([]int, g.NodeCount())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]].Score > scores[order[b]].Score
	})

	nodesFull := make([]models.AccountNode, 0, len(order))
	flagged := 0
	for _, n := range order {
		s := scores[n]
		if s.Score >= FlaggedScore {
			flagged++
		}
		nodesFull = append(nodesFull, models.AccountNode{
			ID:               g.NodeID(n),
			SuspicionScore:   s.Score,
			Risk:             s.Score,
			DetectedPatterns: s.Patterns,
			Flags:            s.Patterns,
			RingID:           s.Ring,
			InDegree:         g.InDegree(n),
			OutDegree:        g.OutDegree(n),
		})
	}

	vizCount := min(opts.VizNodeLimit, len(order))
	inViz := make([]bool, g.NodeCount())
	for _, n := range order[:vizCount] {
		inViz[n] = true
	}

	edgesFull := make([]models.Edge, 0, g.EdgeCount())
	edgesViz := make([]models.Edge, 0, min(opts.VizEdgeLimit, g.EdgeCount()))
	for e := 0; e < g.EdgeCount(); e++ {
		ge := g.Edge(e)
		edge := models.Edge{
			Source:        g.NodeID(ge.From),
			Target:        g.NodeID(ge.To),
			Amount:        ge.Tx.Amount.InexactFloat64(),
			TransactionID: ge.Tx.TransactionID,
		}
		edgesFull = append(edgesFull, edge)
		if inViz[ge.From] && inViz[ge.To] && len(edgesViz) < opts.VizEdgeLimit {
			edgesViz = append(edgesViz, edge)
		}
	}

	if rings == nil {
		rings = []models.FraudRing{}
	}

	return &models.AnalysisResult{
		Nodes:      nodesFull[:vizCount],
		Edges:      edgesViz,
		Top10:      nodesFull[:min(TopAccounts, len(nodesFull))],
		FraudRings: rings,
		Summary: models.Summary{
			TotalAccountsAnalyzed:     g.NodeCount(),
			TotalTransactions:         g.EdgeCount(),
			SuspiciousAccountsFlagged: flagged,
			FraudRingsDetected:        len(rings),
			ProcessingTimeSeconds:     round4(elapsed.Seconds()),
			VizNodesShown:             vizCount,
		},
		NodesFull: nodesFull,
		EdgesFull: edgesFull,
	}
}
