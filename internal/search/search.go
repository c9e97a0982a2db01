// Package search runs a global query: it weights and filters the community
// reports, maps each selected report to key points concurrently, and reduces
// all key points to one answer.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"globalsearch/internal/community"
	"globalsearch/internal/keypoints"
	"globalsearch/internal/logger"
	"globalsearch/internal/store"
)

const DefaultConcurrency = 4

type FailurePolicy int

const (
	// FailFast aborts the query on the first map failure.
	FailFast FailurePolicy = iota
	// SkipFailed drops communities whose map call failed and reduces the rest.
	SkipFailed
)

func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "fail"
	case SkipFailed:
		return "skip"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "fail":
		return FailFast, nil
	case "skip":
		return SkipFailed, nil
	default:
		return FailFast, fmt.Errorf("unknown failure policy %q (want fail or skip)", s)
	}
}

type Options struct {
	Artifacts      store.ArtifactReader
	CommunityLevel int
	Weights        community.WeightCalculator
	Generator      keypoints.Generator
	Aggregator     keypoints.Aggregator
	Concurrency    int
	FailurePolicy  FailurePolicy
	Logger         *logger.Logger
}

// GlobalSearch holds only its collaborators; every invocation loads the
// artifacts afresh through the reader.
type GlobalSearch struct {
	artifacts   store.ArtifactReader
	level       int
	weights     community.WeightCalculator
	generator   keypoints.Generator
	aggregator  keypoints.Aggregator
	concurrency int
	policy      FailurePolicy
	log         *logger.Logger
}

func New(opts Options) (*GlobalSearch, error) {
	switch {
	case opts.Artifacts == nil:
		return nil, errors.New("artifact reader is required")
	case opts.Weights == nil:
		return nil, errors.New("weight calculator is required")
	case opts.Generator == nil:
		return nil, errors.New("key points generator is required")
	case opts.Aggregator == nil:
		return nil, errors.New("key points aggregator is required")
	case opts.CommunityLevel < 0:
		return nil, fmt.Errorf("community level must be >= 0, got %d", opts.CommunityLevel)
	}
	if opts.FailurePolicy != FailFast && opts.FailurePolicy != SkipFailed {
		return nil, fmt.Errorf("unknown failure policy %v", opts.FailurePolicy)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &GlobalSearch{
		artifacts:   opts.Artifacts,
		level:       opts.CommunityLevel,
		weights:     opts.Weights,
		generator:   opts.Generator,
		aggregator:  opts.Aggregator,
		concurrency: concurrency,
		policy:      opts.FailurePolicy,
		log:         log,
	}, nil
}

// Invoke answers query and returns only the answer text.
func (s *GlobalSearch) Invoke(ctx context.Context, query string) (string, error) {
	res, err := s.Search(ctx, query)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

func (s *GlobalSearch) Search(ctx context.Context, query string) (*Result, error) {
	res := &Result{QueryID: uuid.NewString()}
	r := &run{log: s.log.With("query_id", res.QueryID), result: res, stage: StageIdle}
	r.log.Info("global search started", "level", s.level, "policy", s.policy.String())

	selected, err := s.selectReports(ctx, r, s.level)
	if err != nil {
		return nil, r.fail(err)
	}
	res.Selected = selected

	r.enter(StageMapping)
	collected, skipped, err := s.mapReports(ctx, r.log, query, selected)
	if err != nil {
		return nil, r.fail(err)
	}
	res.KeyPoints = collected
	res.Skipped = skipped

	r.enter(StageReducing)
	answer, err := s.aggregator.Aggregate(ctx, query, collected)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, r.fail(ctxErr)
		}
		return nil, r.fail(&AggregationError{Err: err})
	}
	res.Answer = answer

	r.enter(StageDone)
	r.log.Info("global search finished",
		"selected", len(selected),
		"key_points", len(collected),
		"skipped", len(skipped),
	)
	return res, nil
}

// Select runs the loading, weighting and filtering stages only.
func (s *GlobalSearch) Select(ctx context.Context) ([]community.Report, error) {
	return s.SelectAtLevel(ctx, s.level)
}

// SelectAtLevel is Select with the configured community level replaced by
// level for this call only.
func (s *GlobalSearch) SelectAtLevel(ctx context.Context, level int) ([]community.Report, error) {
	if level < 0 {
		return nil, fmt.Errorf("community level must be >= 0, got %d", level)
	}
	r := &run{log: s.log, result: &Result{}, stage: StageIdle}
	selected, err := s.selectReports(ctx, r, level)
	if err != nil {
		return nil, r.fail(err)
	}
	r.enter(StageDone)
	return selected, nil
}

func (s *GlobalSearch) selectReports(ctx context.Context, r *run, level int) ([]community.Report, error) {
	r.enter(StageLoading)
	snap, err := store.Load(ctx, s.artifacts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	r.log.Debug("artifacts loaded", "entities", len(snap.Entities), "reports", len(snap.Reports))

	r.enter(StageWeighting)
	weights, err := s.weights.Calculate(snap.Entities, snap.Reports)
	if err != nil {
		return nil, &WeightCalculationError{Err: err}
	}

	r.enter(StageFiltering)
	selected, err := community.Select(snap.Reports, level, weights)
	if err != nil {
		return nil, err
	}
	r.log.Debug("communities selected", "count", len(selected), "total", len(snap.Reports))
	return selected, nil
}

// mapReports calls the generator once per report with at most s.concurrency
// calls in flight. Results land in the slot of their report so the returned
// collection follows filter order whatever the completion order.
func (s *GlobalSearch) mapReports(ctx context.Context, log *logger.Logger, query string, reports []community.Report) ([]keypoints.KeyPoints, []SkippedCommunity, error) {
	slots := make([]keypoints.KeyPoints, len(reports))
	failed := make([]error, len(reports))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var doneMu sync.Mutex
	done := 0

	for i := range reports {
		report := reports[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			kp, err := s.generator.Generate(gctx, query, []community.Report{report})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				genErr := &GenerationError{CommunityID: report.ID, Err: err}
				if s.policy == FailFast {
					return genErr
				}
				log.Warn("skipping community after generation failure", "community", report.ID, "error", err)
				failed[i] = genErr
				return nil
			}
			slots[i] = kp

			doneMu.Lock()
			done++
			log.Debug("key points generated", "community", report.ID, "points", len(kp.Points), "done", done, "total", len(reports))
			doneMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, err
	}

	collected := make([]keypoints.KeyPoints, 0, len(reports))
	var skipped []SkippedCommunity
	for i, report := range reports {
		if failed[i] != nil {
			skipped = append(skipped, SkippedCommunity{CommunityID: report.ID, Error: failed[i].Error()})
			continue
		}
		collected = append(collected, slots[i])
	}
	return collected, skipped, nil
}

type run struct {
	log     *logger.Logger
	result  *Result
	stage   Stage
	started time.Time
}

func (r *run) enter(next Stage) {
	now := time.Now()
	if r.stage != StageIdle && r.stage != StageDone {
		r.result.Stages = append(r.result.Stages, StageTiming{Stage: r.stage, Duration: now.Sub(r.started)})
	}
	r.log.Debug("stage transition", "from", r.stage, "to", next)
	r.stage = next
	r.started = now
}

func (r *run) fail(err error) error {
	r.log.Error("global search failed", "stage", r.stage, "error", err)
	failedIn := r.stage
	r.stage = StageFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("global search %s: %w", failedIn, err)
	}
	return err
}
