package heuristics

import (
	"math"

	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

// Score Aggregation
//
// Detector contributions are additive per account:
//   cycle    +50   (ring member)
//   smurfing +5..30 (fan-in)
//   layering +20   (velocity)
// The sum is rounded to one decimal and clamped to [0, 100]. Tags are a set
// kept in that fixed order. Ring risk is the mean of the final, clamped
// member scores, so it runs only after every account is scored.

const MaxSuspicionScore = 100.0

// AccountScore is the final verdict for one node.
type AccountScore struct {
	Score    float64
	Patterns []models.Pattern
	Ring     models.RingMembership
}

// Findings bundles the raw outputs of the three detectors.
type Findings struct {
	Rings    []RawRing
	FanIn    map[int]FanInHit
	Velocity map[int]VelocityHit
}

// AggregateScores merges findings into one AccountScore per node, indexed
// like the graph.
func AggregateScores(nodeCount int, f Findings) []AccountScore {
	raw := make([]float64, nodeCount)
	scores := make([]AccountScore, nodeCount)
	for i := range scores {
		scores[i].Patterns = []models.Pattern{}
	}

	for _, ring := range f.Rings {
		for _, n := range ring.Members {
			raw[n] += CyclePoints
			scores[n].Ring = models.InRing(ring.RingID)
			scores[n].Patterns = addPattern(scores[n].Patterns, models.PatternCycle)
		}
	}
	for n, hit := range f.FanIn {
		raw[n] += hit.Points
		scores[n].Patterns = addPattern(scores[n].Patterns, models.PatternSmurfing)
	}
	for n := range f.Velocity {
		raw[n] += VelocityPoints
		scores[n].Patterns = addPattern(scores[n].Patterns, models.PatternLayering)
	}

	for i := range scores {
		scores[i].Score = clampScore(round1(raw[i]))
	}
	return scores
}

// ScoreRings attaches the mean final member score to every ring.
func ScoreRings(rings []RawRing, scores []AccountScore) []models.FraudRing {
	out := make([]models.FraudRing, 0, len(rings))
	for _, ring := range rings {
		var sum float64
		for _, n := range ring.Members {
			sum += scores[n].Score
		}
		risk := 0.0
		if len(ring.Members) > 0 {
			risk = round1(sum / float64(len(ring.Members)))
		}
		out = append(out, models.FraudRing{
			RingID:         ring.RingID,
			MemberAccounts: append([]string(nil), ring.MemberIDs...),
			PatternType:    ring.PatternType,
			RiskScore:      risk,
		})
	}
	return out
}

func addPattern(patterns []models.Pattern, p models.Pattern) []models.Pattern {
	for _, existing := range patterns {
		if existing == p {
			return patterns
		}
	}
	return append(patterns, p)
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(MaxSuspicionScore, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
