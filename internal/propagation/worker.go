package propagation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/neowatch/neowatch/internal/catalog"
)

// evalJob is a unit of work for the worker pool.
type evalJob struct {
	obj       *catalog.TrackedObject
	placement FallbackPlacement
	frame     frameContext
	elapsed   time.Duration
}

// evalResult is the output of a single object evaluation.
type evalResult struct {
	position ObjectPosition
	ok       bool
	id       string
}

// batchStats counts evaluation outcomes for one keyframe.
type batchStats struct {
	elements      int
	fallback      int
	indeterminate int
}

// WorkerPool manages a fixed number of goroutines for parallel position
// evaluation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// EvaluateBatch evaluates every object in the snapshot at the target time.
// Objects whose position cannot be determined are logged and skipped.
func (wp *WorkerPool) EvaluateBatch(ctx context.Context, snap *sessionSnapshot, targetTime time.Time) ([]ObjectPosition, batchStats) {
	objects := snap.dataset.Objects
	if len(objects) == 0 {
		return nil, batchStats{}
	}

	// The Julian day, GMST and Earth position are identical for every
	// object in the frame; compute them once.
	frame := newFrameContext(targetTime)
	elapsed := targetTime.Sub(snap.fallbackStart)

	jobs := make(chan evalJob, wp.workers*2)
	results := make(chan evalResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := evaluateSingle(job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, obj := range objects {
			job := evalJob{
				obj:       obj,
				placement: snap.placements[obj.ID],
				frame:     frame,
				elapsed:   elapsed,
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	positions := make([]ObjectPosition, 0, len(objects))
	var stats batchStats

	for result := range results {
		if !result.ok {
			stats.indeterminate++
			wp.logger.Warn("position indeterminate", "id", result.id)
			continue
		}
		if result.position.Fallback {
			stats.fallback++
		} else {
			stats.elements++
		}
		positions = append(positions, result.position)
	}

	return positions, stats
}

// evaluateSingle evaluates one object's position and builds its render record.
func evaluateSingle(job evalJob) evalResult {
	pos, dist, ok := positionAt(job.frame, job.obj, job.placement, job.elapsed)
	if !ok {
		return evalResult{id: job.obj.ID}
	}
	return evalResult{
		id: job.obj.ID,
		ok: true,
		position: ObjectPosition{
			ID:           job.obj.ID,
			PositionECEF: pos.Array(),
			DistanceM:    dist,
			Label:        objectLabel(job.obj.DisplayName, dist),
			Fallback:     job.obj.Elements == nil,
		},
	}
}
