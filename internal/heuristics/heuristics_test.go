package heuristics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhinav-singh-5383/rift-money-mulling/internal/common"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/ledger"
	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

var base = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

type txSpec struct {
	from, to string
	at       time.Duration
}

func buildSet(specs ...txSpec) ledger.Set {
	txs := make([]models.Transaction, 0, len(specs))
	for i, s := range specs {
		txs = append(txs, models.Transaction{
			TransactionID: fmt.Sprintf("T%03d", i+1),
			SenderID:      s.from,
			ReceiverID:    s.to,
			Amount:        decimal.NewFromInt(100),
			Timestamp:     base.Add(s.at),
		})
	}
	return ledger.NewSet(txs)
}

func sequentialRingIDs() RingIDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("RING-%06d", n)
	}
}

func analyze(t *testing.T, opts Options, set ledger.Set) *models.AnalysisResult {
	t.Helper()
	if opts.RingID == nil {
		opts.RingID = sequentialRingIDs()
	}
	res, err := NewEngine(opts).Analyze(context.Background(), set)
	require.NoError(t, err)
	return res
}

func nodeByID(res *models.AnalysisResult, id string) (models.AccountNode, bool) {
	for _, n := range res.NodesFull {
		if n.ID == id {
			return n, true
		}
	}
	return models.AccountNode{}, false
}

func fanInSpecs(receiver string, senders int) []txSpec {
	specs := make([]txSpec, 0, senders)
	for i := 0; i < senders; i++ {
		specs = append(specs, txSpec{fmt.Sprintf("S%02d", i), receiver, time.Duration(i) * time.Minute})
	}
	return specs
}

func TestBuildGraph_DegreesMatchEdgeCount(t *testing.T) {
	g := BuildGraph(buildSet(
		txSpec{"A", "B", 0},
		txSpec{"A", "B", time.Minute},
		txSpec{"B", "C", 2 * time.Minute},
		txSpec{"C", "C", 3 * time.Minute},
	))

	require.Equal(t, 3, g.NodeCount())
	require.Equal(t, 4, g.EdgeCount())

	var in, out int
	for n := 0; n < g.NodeCount(); n++ {
		in += g.InDegree(n)
		out += g.OutDegree(n)
	}
	assert.Equal(t, g.EdgeCount(), in)
	assert.Equal(t, g.EdgeCount(), out)

	b, ok := g.Index("B")
	require.True(t, ok)
	assert.Equal(t, 2, g.InDegree(b), "parallel edges each count")
	assert.Equal(t, []string{"A", "B", "C"}, []string{g.NodeID(0), g.NodeID(1), g.NodeID(2)})
}

func TestAnalyze_TriangleIsCircularWash(t *testing.T) {
	res := analyze(t, Options{}, buildSet(
		txSpec{"A", "B", 0},
		txSpec{"B", "C", time.Hour},
		txSpec{"C", "A", 2 * time.Hour},
	))

	require.Len(t, res.FraudRings, 1)
	ring := res.FraudRings[0]
	assert.Equal(t, []string{"A", "B", "C"}, ring.MemberAccounts)
	assert.Equal(t, models.RingCircularWash, ring.PatternType)
	assert.Equal(t, 50.0, ring.RiskScore)

	for _, id := range []string{"A", "B", "C"} {
		n, ok := nodeByID(res, id)
		require.True(t, ok)
		assert.Equal(t, 50.0, n.SuspicionScore)
		assert.Equal(t, []models.Pattern{models.PatternCycle}, n.DetectedPatterns)
		got, inRing := n.RingID.Get()
		assert.True(t, inRing)
		assert.Equal(t, ring.RingID, got)
	}
	assert.Equal(t, 3, res.Summary.SuspiciousAccountsFlagged)
	assert.Equal(t, 1, res.Summary.FraudRingsDetected)
}

func TestAnalyze_RingIDOnlyOnMembers(t *testing.T) {
	res := analyze(t, Options{}, buildSet(
		txSpec{"A", "B", 0},
		txSpec{"B", "A", time.Hour},
		txSpec{"B", "OUT", 3 * time.Hour},
	))

	require.Len(t, res.FraudRings, 1)
	out, ok := nodeByID(res, "OUT")
	require.True(t, ok)
	_, inRing := out.RingID.Get()
	assert.False(t, inRing)
	assert.Equal(t, 0.0, out.SuspicionScore)
	assert.Empty(t, out.DetectedPatterns)
	assert.NotNil(t, out.DetectedPatterns)
}

func TestAnalyze_SmurfingRingAboveMeanInDegree(t *testing.T) {
	res := analyze(t, Options{}, buildSet(
		txSpec{"A", "B", 0},
		txSpec{"B", "A", time.Hour},
		txSpec{"X1", "A", 2 * time.Hour},
		txSpec{"X2", "A", 3 * time.Hour},
		txSpec{"X3", "B", 4 * time.Hour},
		txSpec{"X4", "B", 5 * time.Hour},
	))
	require.Len(t, res.FraudRings, 1)
	assert.Equal(t, models.RingSmurfing, res.FraudRings[0].PatternType)
}

func TestAnalyze_MeanInDegreeOfTwoIsCircularWash(t *testing.T) {
	res := analyze(t, Options{}, buildSet(
		txSpec{"A", "B", 0},
		txSpec{"B", "A", time.Hour},
		txSpec{"X1", "A", 2 * time.Hour},
		txSpec{"X2", "B", 3 * time.Hour},
	))
	require.Len(t, res.FraudRings, 1)
	assert.Equal(t, models.RingCircularWash, res.FraudRings[0].PatternType)
}

func TestAnalyze_FanInPoints(t *testing.T) {
	cases := []struct {
		senders int
		want    float64
		flagged bool
	}{
		{5, 0, false},
		{6, 5, true},
		{8, 15, true},
		{11, 30, true},
		{15, 30, true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d senders", tc.senders), func(t *testing.T) {
			res := analyze(t, Options{}, buildSet(fanInSpecs("HUB", tc.senders)...))
			hub, ok := nodeByID(res, "HUB")
			require.True(t, ok)
			assert.Equal(t, tc.want, hub.SuspicionScore)
			if tc.flagged {
				assert.Equal(t, []models.Pattern{models.PatternSmurfing}, hub.DetectedPatterns)
			} else {
				assert.Empty(t, hub.DetectedPatterns)
			}
		})
	}
}

func TestDetectFanIn_CountsDistinctSenders(t *testing.T) {
	var specs []txSpec
	for i := 0; i < 10; i++ {
		specs = append(specs, txSpec{"S1", "HUB", time.Duration(i) * time.Minute})
	}
	g := BuildGraph(buildSet(specs...))
	assert.Empty(t, DetectFanIn(g))
}

func TestAnalyze_HubWithFastForwardIsSmurfingAndLayering(t *testing.T) {
	specs := fanInSpecs("HUB", 11)
	specs = append(specs, txSpec{"HUB", "OUT", 15 * time.Minute})

	res := analyze(t, Options{}, buildSet(specs...))
	hub, ok := nodeByID(res, "HUB")
	require.True(t, ok)
	assert.Equal(t, 50.0, hub.SuspicionScore)
	assert.Equal(t, []models.Pattern{models.PatternSmurfing, models.PatternLayering}, hub.DetectedPatterns)
	assert.Equal(t, hub.DetectedPatterns, hub.Flags)
	assert.Equal(t, hub.SuspicionScore, hub.Risk)
	assert.Equal(t, "HUB", res.Top10[0].ID)
}

func TestDetectVelocity_WindowIsInclusive(t *testing.T) {
	flagged := BuildGraph(buildSet(
		txSpec{"A", "B", 0},
		txSpec{"B", "C", 900 * time.Second},
	))
	hits := DetectVelocity(flagged, DefaultVelocityWindow)
	b, _ := flagged.Index("B")
	require.Contains(t, hits, b)
	assert.Equal(t, "T001", hits[b].ReceiveTxID)
	assert.Equal(t, "T002", hits[b].SendTxID)
	assert.Equal(t, 15*time.Minute, hits[b].Latency)

	missed := BuildGraph(buildSet(
		txSpec{"A", "B", 0},
		txSpec{"B", "C", 901 * time.Second},
	))
	assert.Empty(t, DetectVelocity(missed, DefaultVelocityWindow))
}

func TestDetectVelocity_SendBeforeReceiveIgnored(t *testing.T) {
	g := BuildGraph(buildSet(
		txSpec{"B", "C", 0},
		txSpec{"A", "B", time.Minute},
	))
	assert.Empty(t, DetectVelocity(g, DefaultVelocityWindow))
}

func TestDetectVelocity_AwardedOncePerAccount(t *testing.T) {
	res := analyze(t, Options{}, buildSet(
		txSpec{"A", "B", 0},
		txSpec{"B", "C", time.Minute},
		txSpec{"D", "B", 2 * time.Minute},
		txSpec{"B", "E", 3 * time.Minute},
	))
	b, ok := nodeByID(res, "B")
	require.True(t, ok)
	assert.Equal(t, 20.0, b.SuspicionScore)
	assert.Equal(t, []models.Pattern{models.PatternLayering}, b.DetectedPatterns)
}

func TestDetectVelocity_SelfLoopHasZeroLatency(t *testing.T) {
	g := BuildGraph(buildSet(txSpec{"A", "A", 0}))
	hits := DetectVelocity(g, DefaultVelocityWindow)
	require.Len(t, hits, 1)
	assert.Equal(t, time.Duration(0), hits[0].Latency)
	assert.Empty(t, DetectCycles(g, sequentialRingIDs()))
}

func TestAggregateScores_ClampsAndOrdersPatterns(t *testing.T) {
	scores := AggregateScores(2, Findings{
		Rings:    []RawRing{{RingID: "RING-000001", Members: []int{0}, MemberIDs: []string{"A"}}},
		FanIn:    map[int]FanInHit{0: {DistinctSenders: 20, Points: FanInCap}},
		Velocity: map[int]VelocityHit{0: {}},
	})

	assert.Equal(t, MaxSuspicionScore, scores[0].Score)
	assert.Equal(t, []models.Pattern{models.PatternCycle, models.PatternSmurfing, models.PatternLayering}, scores[0].Patterns)
	assert.Equal(t, 0.0, scores[1].Score)
	assert.Equal(t, models.NoRing, scores[1].Ring)

	assert.Equal(t, 100.0, clampScore(130))
	assert.Equal(t, 0.0, clampScore(-4))
}

func TestScoreRings_UsesClampedMemberMean(t *testing.T) {
	rings := []RawRing{{RingID: "R", Members: []int{0, 1}, MemberIDs: []string{"A", "B"}}}
	scores := []AccountScore{{Score: 100}, {Score: 50}}
	out := ScoreRings(rings, scores)
	require.Len(t, out, 1)
	assert.Equal(t, 75.0, out[0].RiskScore)
}

func TestDetectCycles_UniqueRingIDs(t *testing.T) {
	g := BuildGraph(buildSet(
		txSpec{"A", "B", 0},
		txSpec{"B", "A", time.Hour},
		txSpec{"C", "D", 2 * time.Hour},
		txSpec{"D", "C", 3 * time.Hour},
	))
	ids := []string{"RING-AAAAAA", "RING-AAAAAA", "RING-BBBBBB"}
	next := 0
	rings := DetectCycles(g, func() string {
		id := ids[next]
		next++
		return id
	})
	require.Len(t, rings, 2)
	assert.NotEqual(t, rings[0].RingID, rings[1].RingID)
}

func TestNewRingID_Format(t *testing.T) {
	id := NewRingID()
	assert.Regexp(t, `^RING-[0-9A-F]{6}$`, id)
}

func TestStronglyConnectedComponents_LongChain(t *testing.T) {
	const n = 200000
	specs := make([]txSpec, 0, n)
	for i := 0; i < n-1; i++ {
		specs = append(specs, txSpec{fmt.Sprintf("N%06d", i), fmt.Sprintf("N%06d", i+1), time.Duration(i) * time.Hour})
	}
	specs = append(specs, txSpec{fmt.Sprintf("N%06d", n-1), "N000000", time.Duration(n) * time.Hour})

	g := BuildGraph(buildSet(specs...))
	comps := StronglyConnectedComponents(g)
	require.Len(t, comps, 1)
	assert.Len(t, comps[0], n)
}

func TestStronglyConnectedComponents_PartitionsNodes(t *testing.T) {
	g := BuildGraph(buildSet(
		txSpec{"A", "B", 0},
		txSpec{"B", "C", time.Hour},
		txSpec{"C", "A", 2 * time.Hour},
		txSpec{"C", "D", 3 * time.Hour},
		txSpec{"D", "E", 4 * time.Hour},
	))
	seen := make(map[int]int)
	for _, comp := range StronglyConnectedComponents(g) {
		for _, n := range comp {
			seen[n]++
		}
	}
	assert.Len(t, seen, g.NodeCount())
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestBuildResult_VisualizationBounds(t *testing.T) {
	specs := fanInSpecs("HUB", 12)
	specs = append(specs,
		txSpec{"A", "B", 0},
		txSpec{"B", "C", time.Hour},
		txSpec{"C", "A", 2 * time.Hour},
	)
	res := analyze(t, Options{VizNodeLimit: 4, VizEdgeLimit: 2}, buildSet(specs...))

	assert.Len(t, res.NodesFull, 16)
	assert.Len(t, res.EdgesFull, 15)
	assert.Len(t, res.Nodes, 4)
	assert.LessOrEqual(t, len(res.Edges), 2)
	assert.Equal(t, 4, res.Summary.VizNodesShown)
	assert.Equal(t, 16, res.Summary.TotalAccountsAnalyzed)
	assert.Equal(t, 15, res.Summary.TotalTransactions)

	shown := make(map[string]bool)
	for _, n := range res.Nodes {
		shown[n.ID] = true
	}
	for _, e := range res.Edges {
		assert.True(t, shown[e.Source] && shown[e.Target], "edge %s leaves the shown node set", e.TransactionID)
	}
	for i := 1; i < len(res.NodesFull); i++ {
		assert.GreaterOrEqual(t, res.NodesFull[i-1].SuspicionScore, res.NodesFull[i].SuspicionScore)
	}
	assert.Len(t, res.Top10, TopAccounts)
}

func TestAnalyze_EmptySet(t *testing.T) {
	res := analyze(t, Options{}, ledger.NewSet(nil))
	assert.Empty(t, res.NodesFull)
	assert.Empty(t, res.Edges)
	assert.NotNil(t, res.FraudRings)
	assert.Equal(t, 0, res.Summary.TotalAccountsAnalyzed)
}

func TestAnalyze_DeterministicAcrossRuns(t *testing.T) {
	specs := fanInSpecs("HUB", 9)
	specs = append(specs,
		txSpec{"HUB", "A", 10 * time.Minute},
		txSpec{"A", "B", time.Hour},
		txSpec{"B", "HUB", 2 * time.Hour},
	)
	set := buildSet(specs...)

	first := analyze(t, Options{RingID: sequentialRingIDs()}, set)
	second := analyze(t, Options{RingID: sequentialRingIDs()}, set)
	first.Summary.ProcessingTimeSeconds = 0
	second.Summary.ProcessingTimeSeconds = 0
	assert.Equal(t, first, second)
}

func TestAnalyze_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(Options{}).Analyze(ctx, buildSet(txSpec{"A", "B", 0}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_DetectorPanicBecomesError(t *testing.T) {
	engine := NewEngine(Options{RingID: func() string { panic("boom") }})

	var (
		res *models.AnalysisResult
		err error
	)
	require.NotPanics(t, func() {
		res, err = engine.Analyze(context.Background(), buildSet(txSpec{"A", "B", 0}, txSpec{"B", "A", time.Minute}))
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, common.ErrInternal)
	assert.Equal(t, "Analysis failed: panic: boom", common.Detail(err))
}
