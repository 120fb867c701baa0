package heuristics

import (
	"sort"
	"time"
)

// Velocity (Layering) Detector
//
// An account is a pass-through when it sends funds within the velocity
// window after receiving funds: receive at T, send at T' with
// 0 <= T' - T <= window. One qualifying pair is enough; the award is made
// once per account.
//
// Per account the receive and send times are sorted once and scanned with
// two monotone pointers, so the whole pass is O(E log E). The first hit in
// receive-time order is kept as evidence.

const (
	DefaultVelocityWindow = 15 * time.Minute
	VelocityPoints        = 20.0
)

// VelocityHit is the first qualifying receive/send pair of an account.
type VelocityHit struct {
	ReceiveTxID string
	SendTxID    string
	Latency     time.Duration
}

type timedEdge struct {
	at   time.Time
	edge int
}

// DetectVelocity returns the flagged accounts keyed by node index.
func DetectVelocity(g *Graph, window time.Duration) map[int]VelocityHit {
	if window <= 0 {
		window = DefaultVelocityWindow
	}

	hits := make(map[int]VelocityHit)
	for v := 0; v < g.NodeCount(); v++ {
		ins, outs := g.InEdges(v), g.OutEdges(v)
		if len(ins) == 0 || len(outs) == 0 {
			continue
		}

		received := sortedByTime(g, ins)
		sent := sortedByTime(g, outs)

		j := 0
		for _, r := range received {
			for j < len(sent) && sent[j].at.Before(r.at) {
				j++
			}
			if j == len(sent) {
				break
			}
			// sent[j] is the earliest send at or after this receive
			if latency := sent[j].at.Sub(r.at); latency <= window {
				hits[v] = VelocityHit{
					ReceiveTxID: g.Edge(r.edge).Tx.TransactionID,
					SendTxID:    g.Edge(sent[j].edge).Tx.TransactionID,
					Latency:     latency,
				}
				break
			}
		}
	}
	return hits
}

func sortedByTime(g *Graph, edges []int) []timedEdge {
	out := make([]timedEdge, len(edges))
	for k, e := range edges {
		out[k] = timedEdge{at: g.Edge(e).Tx.Timestamp, edge: e}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].at.Before(out[b].at) })
	return out
}
