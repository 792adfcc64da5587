package interp

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/michellexbui/BirdBeaks/internal/align"
	"github.com/michellexbui/BirdBeaks/internal/models"
	"github.com/michellexbui/BirdBeaks/internal/quality"
)

// Result is the complete output of one interpolation run. Steps is
// parallel to the grid's time axis; a slot is nil only when the run was
// cancelled before that step was computed — a present step is always
// complete.
type Result struct {
	Steps        []*models.FieldEstimate
	Report       *quality.Report
	EmptySteps   int
	NeverAligned []string // stations that survived filtering but contributed to no step
}

// Runner drives the engine across all time steps of a grid. Steps are
// independent given their aligned inputs, so they are computed by a
// bounded pool of workers writing to disjoint output slots.
type Runner struct {
	Workers    int
	Quality    quality.Params
	Tolerance  time.Duration
	Params     Params
	OnProgress func(done, total int)                                // optional
	OnStep     func(est *models.FieldEstimate, elapsed time.Duration) // optional
}

// NewRunner creates a runner with the given worker count; zero or
// negative means one worker per CPU.
func NewRunner(workers int, qp quality.Params, tolerance time.Duration, ep Params) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		Workers:   workers,
		Quality:   qp,
		Tolerance: tolerance,
		Params:    ep,
	}
}

// Run filters the dataset, aligns it to the grid's time axis and
// interpolates every step. The dataset and grid are only read. A step
// with zero usable stations yields a fully unestimated field and the run
// continues. Cancellation stops dispatching further steps and returns
// ctx.Err() alongside the partial result.
func (r *Runner) Run(ctx context.Context, ds *models.StationDataset, grid *models.GridDefinition) (*Result, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	engine, err := NewEngine(r.Params)
	if err != nil {
		return nil, err
	}

	filtered, report := quality.Apply(ds, r.Quality)
	log.Printf("[Runner] Quality filter kept %d stations, excluded %d, flagged %d outliers",
		report.StationsKept, report.StationsExcluded, report.OutliersFlagged)

	aligner := align.New(r.Tolerance)
	result := &Result{
		Steps:  make([]*models.FieldEstimate, len(grid.Steps)),
		Report: report,
	}

	var (
		mu          sync.Mutex
		done        int
		emptySteps  int
		contributed = make(map[string]bool, len(filtered.Stations))
	)

	jobs := make(chan int, r.Workers*2)

	var wg sync.WaitGroup
	for w := 0; w < r.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				step := grid.Steps[i]
				started := time.Now()
				pairs := aligner.Slice(filtered, step)

				est, err := engine.Interpolate(pairs, grid, step, filtered.Components)
				if errors.Is(err, ErrInsufficientData) {
					est = models.Unestimated(step, filtered.Components, len(grid.Points))
				}
				result.Steps[i] = est
				if r.OnStep != nil {
					r.OnStep(est, time.Since(started))
				}

				mu.Lock()
				if len(pairs) == 0 {
					emptySteps++
				}
				for _, p := range pairs {
					contributed[p.StationID] = true
				}
				done++
				n := done
				mu.Unlock()
				if r.OnProgress != nil {
					r.OnProgress(n, len(grid.Steps))
				}
			}
		}()
	}

	// Feed step indices, stopping on cancellation.
	var dispatchErr error
	for i := range grid.Steps {
		select {
		case jobs <- i:
		case <-ctx.Done():
			dispatchErr = ctx.Err()
		}
		if dispatchErr != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	result.EmptySteps = emptySteps
	for _, id := range filtered.StationIDs() {
		if !contributed[id] {
			result.NeverAligned = append(result.NeverAligned, id)
		}
	}
	sort.Strings(result.NeverAligned)

	if emptySteps > 0 {
		log.Printf("[Runner] %d of %d steps had no usable stations", emptySteps, len(grid.Steps))
	}
	return result, dispatchErr
}
