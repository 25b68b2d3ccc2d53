package build

import (
	"sync"
	"time"
)

// BuildMetrics tracks build performance across a session
type BuildMetrics struct {
	totalBuilds      int64
	successfulBuilds int64
	failedBuilds     int64
	pagesRendered    int64
	totalDuration    time.Duration
	lastBuild        time.Time
	lastError        string
	mutex            sync.RWMutex
}

// Snapshot is a point-in-time copy of BuildMetrics.
type Snapshot struct {
	TotalBuilds      int64         `json:"total_builds"`
	SuccessfulBuilds int64         `json:"successful_builds"`
	FailedBuilds     int64         `json:"failed_builds"`
	PagesRendered    int64         `json:"pages_rendered"`
	AverageDuration  time.Duration `json:"average_duration_ns"`
	LastBuild        time.Time     `json:"last_build"`
	LastError        string        `json:"last_error,omitempty"`
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// RecordBuild records the outcome of a full build or an applied plan.
// Empty plans are not builds and are ignored.
func (bm *BuildMetrics) RecordBuild(result *Result, err error) {
	if err == nil && result != nil && result.Plan.Empty() && result.Pages == 0 {
		return
	}

	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.totalBuilds++
	bm.lastBuild = time.Now()
	if result != nil {
		bm.totalDuration += result.Duration
		bm.pagesRendered += int64(result.Pages)
	}

	if err != nil {
		bm.failedBuilds++
		bm.lastError = err.Error()
	} else {
		bm.successfulBuilds++
		bm.lastError = ""
	}
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() Snapshot {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	s := Snapshot{
		TotalBuilds:      bm.totalBuilds,
		SuccessfulBuilds: bm.successfulBuilds,
		FailedBuilds:     bm.failedBuilds,
		PagesRendered:    bm.pagesRendered,
		LastBuild:        bm.lastBuild,
		LastError:        bm.lastError,
	}
	if bm.totalBuilds > 0 {
		s.AverageDuration = bm.totalDuration / time.Duration(bm.totalBuilds)
	}
	return s
}

// GetSuccessRate returns the success rate as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.totalBuilds == 0 {
		return 0.0
	}

	return float64(bm.successfulBuilds) / float64(bm.totalBuilds) * 100.0
}
