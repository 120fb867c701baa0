// Package heuristics is the transaction analysis engine: it builds the
// transaction graph, runs the cycle, fan-in and velocity detectors over it,
// aggregates account and ring scores and shapes the result payloads.
package heuristics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/abhinav-singh-5383/rift-money-mulling/internal/common"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/ledger"
	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

// Options tunes the engine. Zero fields fall back to the defaults.
type Options struct {
	VizNodeLimit   int
	VizEdgeLimit   int
	VelocityWindow time.Duration
	RingID         RingIDFunc
}

func (o Options) withDefaults() Options {
	if o.VizNodeLimit <= 0 {
		o.VizNodeLimit = DefaultVizNodeLimit
	}
	if o.VizEdgeLimit <= 0 {
		o.VizEdgeLimit = DefaultVizEdgeLimit
	}
	if o.VelocityWindow <= 0 {
		o.VelocityWindow = DefaultVelocityWindow
	}
	if o.RingID == nil {
		o.RingID = NewRingID
	}
	return o
}

// Engine runs the analysis pipeline. It holds no per-run state, so one
// Engine may serve any number of concurrent runs.
type Engine struct {
	opts   Options
	logger zerolog.Logger
}

// NewEngine creates an engine with the given options.
func NewEngine(opts Options) *Engine {
	return &Engine{
		opts:   opts.withDefaults(),
		logger: log.With().Str("component", "engine").Logger(),
	}
}

// Analyze runs graph construction, the three detectors, score and ring
// aggregation and result building over set. Detectors run concurrently on
// the read-only graph; their findings are merged in a fixed order.
func (e *Engine) Analyze(ctx context.Context, set ledger.Set) (result *models.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = common.Internal("Analysis failed", fmt.Errorf("panic: %v", r))
		}
	}()

	start := time.Now()
	g := BuildGraph(set)

	var f Findings
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(detector(gctx, func() { f.Rings = DetectCycles(g, e.opts.RingID) }))
	grp.Go(detector(gctx, func() { f.FanIn = DetectFanIn(g) }))
	grp.Go(detector(gctx, func() { f.Velocity = DetectVelocity(g, e.opts.VelocityWindow) }))
	if err := grp.Wait(); err != nil {
		return nil, fmt.Errorf("detectors: %w", err)
	}

	if e.logger.GetLevel() <= zerolog.DebugLevel {
		for n, hit := range f.Velocity {
			e.logger.Debug().
				Str("account", g.NodeID(n)).
				Str("receive_tx", hit.ReceiveTxID).
				Str("send_tx", hit.SendTxID).
				Dur("latency", hit.Latency).
				Msg("layering pass-through")
		}
	}

	scores := AggregateScores(g.NodeCount(), f)
	rings := ScoreRings(f.Rings, scores)
	result = BuildResult(g, scores, rings, e.opts, time.Since(start))

	e.logger.Info().
		Int("accounts", result.Summary.TotalAccountsAnalyzed).
		Int("transactions", result.Summary.TotalTransactions).
		Int("flagged", result.Summary.SuspiciousAccountsFlagged).
		Int("rings", result.Summary.FraudRingsDetected).
		Int("fan_in_hits", len(f.FanIn)).
		Int("velocity_hits", len(f.Velocity)).
		Float64("seconds", result.Summary.ProcessingTimeSeconds).
		Msg("analysis complete")

	return result, nil
}

// detector adapts run to an errgroup task, turning a panic in run into an
// internal error.
func detector(ctx context.Context, run func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = common.Internal("Analysis failed", fmt.Errorf("panic: %v", r))
			}
		}()
		if err := ctx.Err(); err != nil {
			return err
		}
		run()
		return nil
	}
}
