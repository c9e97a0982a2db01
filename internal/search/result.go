package search

import (
	"time"

	"globalsearch/internal/community"
	"globalsearch/internal/keypoints"
	"globalsearch/internal/store"
)

type Stage string

const (
	StageIdle      Stage = "idle"
	StageLoading   Stage = "loading"
	StageWeighting Stage = "weighting"
	StageFiltering Stage = "filtering"
	StageMapping   Stage = "mapping"
	StageReducing  Stage = "reducing"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

type StageTiming struct {
	Stage    Stage
	Duration time.Duration
}

// SkippedCommunity records a map failure tolerated under SkipFailed.
type SkippedCommunity struct {
	CommunityID store.CommunityID
	Error       string
}

type Result struct {
	QueryID   string
	Answer    string
	Selected  []community.Report
	KeyPoints []keypoints.KeyPoints
	Skipped   []SkippedCommunity
	Stages    []StageTiming
}

// NoData reports whether the answer is the fixed reply given when no key
// point survived the map step.
func (r *Result) NoData() bool {
	return r.Answer == keypoints.NoDataAnswer
}
