// Package interp implements the spatial interpolation core: a pure
// per-time-step engine mapping scattered station values onto a grid, and
// a runner that fans the engine out over the time axis.
package interp

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/michellexbui/BirdBeaks/internal/align"
	"github.com/michellexbui/BirdBeaks/internal/models"
	"github.com/michellexbui/BirdBeaks/internal/spatial"
	"github.com/michellexbui/BirdBeaks/internal/stats"
)

// WeightingScheme selects the distance-decay kernel
type WeightingScheme string

const (
	// SchemeInversePower weights stations by w = 1 / d^p
	SchemeInversePower WeightingScheme = "inverse-power"
	// SchemeGaussian weights stations by w = exp(-(d/L)^2)
	SchemeGaussian WeightingScheme = "gaussian"
)

// ErrInsufficientData is returned when a time step has zero usable
// stations. The caller marks that step fully unestimated and continues.
var ErrInsufficientData = errors.New("interp: no usable stations for time step")

// Params holds the interpolation configuration for one run. The scheme
// is fixed for the lifetime of a run and recorded with its results.
type Params struct {
	Scheme               WeightingScheme
	DecayParameter       float64 // exponent for inverse-power, length scale in km for gaussian
	MaxInfluenceRadiusKm float64
	MinContributors      int
	CoincidentEpsilonKm  float64
}

// DefaultParams provides the documented default configuration
var DefaultParams = Params{
	Scheme:               SchemeGaussian,
	DecayParameter:       500,
	MaxInfluenceRadiusKm: 1500,
	MinContributors:      3,
	CoincidentEpsilonKm:  0.5,
}

// Validate checks parameter sanity. Invalid parameters are fatal at run
// start, before any computation begins.
func (p Params) Validate() error {
	switch p.Scheme {
	case SchemeInversePower, SchemeGaussian:
	default:
		return fmt.Errorf("unknown weighting scheme %q", p.Scheme)
	}
	if p.DecayParameter <= 0 {
		return fmt.Errorf("decay parameter must be positive, got %g", p.DecayParameter)
	}
	if p.MaxInfluenceRadiusKm <= 0 {
		return fmt.Errorf("max influence radius must be positive, got %g km", p.MaxInfluenceRadiusKm)
	}
	if p.MinContributors < 1 {
		return fmt.Errorf("min contributors must be at least 1, got %d", p.MinContributors)
	}
	if p.CoincidentEpsilonKm < 0 {
		return fmt.Errorf("coincident epsilon must not be negative, got %g km", p.CoincidentEpsilonKm)
	}
	return nil
}

// Engine interpolates one time step. It holds no cross-step state; the
// same inputs always produce bit-identical output.
type Engine struct {
	params Params
}

// NewEngine creates an engine with validated parameters
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: params}, nil
}

// Interpolate computes the field estimate for a single time step from
// the aligned (position, value) pairs. Pairs must be ordered by station
// id, as produced by align.Aligner; contributions accumulate in that
// order so results do not depend on scheduling. Partial coverage yields
// unestimated or low-confidence cells, never an error; only an empty
// pair set fails.
func (e *Engine) Interpolate(pairs []align.Pair, grid *models.GridDefinition, step time.Time, components []string) (*models.FieldEstimate, error) {
	if len(pairs) == 0 {
		return nil, ErrInsufficientData
	}

	lats := make([]float64, len(pairs))
	lons := make([]float64, len(pairs))
	for i, p := range pairs {
		lats[i] = p.Lat
		lons[i] = p.Lon
	}
	index := spatial.NewIndex(lats, lons)

	est := &models.FieldEstimate{
		Step:       step,
		Components: components,
		Cells:      make([]models.CellEstimate, len(grid.Points)),
	}
	for i, pt := range grid.Points {
		est.Cells[i] = e.estimateCell(pairs, index, pt, len(components))
	}
	return est, nil
}

// estimateCell performs the per-cell reduction over contributing stations
func (e *Engine) estimateCell(pairs []align.Pair, index *spatial.Index, pt models.GridPoint, nComp int) models.CellEstimate {
	contributors := index.Within(e.params.MaxInfluenceRadiusKm, pt.Lat, pt.Lon)
	if len(contributors) == 0 {
		return models.CellEstimate{Status: models.CellUnestimated}
	}

	dists := make([]float64, len(contributors))
	nearest := math.Inf(1)
	nearestIdx := -1
	for k, i := range contributors {
		d := spatial.DistanceKm(pt.Lat, pt.Lon, pairs[i].Lat, pairs[i].Lon)
		dists[k] = d
		if d < nearest {
			nearest = d
			nearestIdx = i
		}
	}

	cell := models.CellEstimate{
		Contributors: len(contributors),
		Status:       models.CellEstimated,
	}
	if len(contributors) < e.params.MinContributors {
		cell.Status = models.CellLowConfidence
	}

	// A cell sitting on a station takes that station's value exactly;
	// this is the w -> infinity limit of both kernels, handled without
	// dividing by a vanishing distance.
	if nearest <= e.params.CoincidentEpsilonKm {
		cell.Values = append([]float64(nil), pairs[nearestIdx].Values...)
		cell.Variances = make([]float64, nComp)
		cell.WeightSum = 1
		return cell
	}

	weights := make([]float64, len(contributors))
	var total float64
	for k, d := range dists {
		var w float64
		switch e.params.Scheme {
		case SchemeGaussian:
			r := d / e.params.DecayParameter
			w = math.Exp(-r * r)
		case SchemeInversePower:
			w = 1 / math.Pow(d, e.params.DecayParameter)
		}
		weights[k] = w
		total += w
	}

	// Every weight can underflow to zero when all contributors sit far
	// beyond the decay scale. With no finite weight there is nothing to
	// normalize, so the cell stays unestimated instead of carrying NaN.
	if total == 0 {
		return models.CellEstimate{Status: models.CellUnestimated}
	}

	// Normalize so the weights sum to exactly 1; uneven station density
	// must not bias the estimate.
	var weightSum float64
	for k := range weights {
		weights[k] /= total
		weightSum += weights[k]
	}
	cell.WeightSum = weightSum

	vals := make([]float64, len(contributors))
	cell.Values = make([]float64, nComp)
	cell.Variances = make([]float64, nComp)
	for c := 0; c < nComp; c++ {
		for k, i := range contributors {
			vals[k] = pairs[i].Values[c]
		}
		cell.Values[c] = stats.WeightedMean(vals, weights)

		// Uncertainty from the weighted spread of contributor values
		// about the estimate, inflated with the distance to the nearest
		// contributor: sparse, remote neighborhoods report more variance.
		cell.Variances[c] = stats.WeightedVariance(vals, weights) * (1 + nearest/e.params.MaxInfluenceRadiusKm)
	}
	return cell
}
