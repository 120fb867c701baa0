package heuristics

// Fan-In (Smurfing) Detector
//
// Counts the distinct senders each account received from. Beyond
// FanInThreshold senders, every extra sender is worth FanInPointsPerSender,
// capped at FanInCap. Ring membership plays no part here.

const (
	FanInThreshold       = 5
	FanInPointsPerSender = 5.0
	FanInCap             = 30.0
)

// FanInHit records a flagged receiver.
type FanInHit struct {
	DistinctSenders int
	Points          float64
}

// DetectFanIn returns the flagged receivers keyed by node index.
func DetectFanIn(g *Graph) map[int]FanInHit {
	hits := make(map[int]FanInHit)
	for v := 0; v < g.NodeCount(); v++ {
		ins := g.InEdges(v)
		if len(ins) <= FanInThreshold {
			continue
		}

		senders := make(map[int]struct{}, len(ins))
		for _, e := range ins {
			senders[g.Edge(e).From] = struct{}{}
		}
		count := len(senders)
		if count <= FanInThreshold {
			continue
		}

		hits[v] = FanInHit{
			DistinctSenders: count,
			Points:          FanInPoints(count),
		}
	}
	return hits
}

// FanInPoints returns the score for an account with distinctSenders senders.
func FanInPoints(distinctSenders int) float64 {
	if distinctSenders <= FanInThreshold {
		return 0
	}
	return min(FanInCap, float64(distinctSenders-FanInThreshold)*FanInPointsPerSender)
}
