package interp

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/michellexbui/BirdBeaks/internal/align"
	"github.com/michellexbui/BirdBeaks/internal/models"
)

var step = time.Date(2023, 9, 15, 6, 0, 0, 0, time.UTC)

func pair(id string, lat, lon float64, values ...float64) align.Pair {
	return align.Pair{StationID: id, Lat: lat, Lon: lon, Values: values}
}

func singleCellGrid(lat, lon float64) *models.GridDefinition {
	return &models.GridDefinition{
		Points: []models.GridPoint{{Lat: lat, Lon: lon}},
		Steps:  []time.Time{step},
	}
}

func mustEngine(t *testing.T, p Params) *Engine {
	t.Helper()
	e, err := NewEngine(p)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		ok     bool
	}{
		{"defaults", func(p *Params) {}, true},
		{"inverse power", func(p *Params) { p.Scheme = SchemeInversePower; p.DecayParameter = 2 }, true},
		{"unknown scheme", func(p *Params) { p.Scheme = "spline" }, false},
		{"zero decay", func(p *Params) { p.DecayParameter = 0 }, false},
		{"zero radius", func(p *Params) { p.MaxInfluenceRadiusKm = 0 }, false},
		{"zero min contributors", func(p *Params) { p.MinContributors = 0 }, false},
		{"negative epsilon", func(p *Params) { p.CoincidentEpsilonKm = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() accepted invalid parameters")
			}
		})
	}
}

func TestInterpolateNoStations(t *testing.T) {
	e := mustEngine(t, DefaultParams)
	_, err := e.Interpolate(nil, singleCellGrid(45, -75), step, []string{"b"})
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("err = %v, want ErrInsufficientData", err)
	}
}

func TestInterpolateUniformField(t *testing.T) {
	// Three equidistant-ish stations all reporting 10: the estimate is
	// exactly 10 regardless of the weights, with zero spread.
	pairs := []align.Pair{
		pair("A", 46, -75, 10),
		pair("B", 44, -75, 10),
		pair("C", 45, -74, 10),
	}
	e := mustEngine(t, DefaultParams)

	est, err := e.Interpolate(pairs, singleCellGrid(45, -75), step, []string{"b"})
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	cell := est.Cells[0]

	if cell.Status != models.CellEstimated {
		t.Errorf("status = %s, want estimated", cell.Status)
	}
	if cell.Contributors != 3 {
		t.Errorf("contributors = %d, want 3", cell.Contributors)
	}
	if math.Abs(cell.Values[0]-10) > 1e-9 {
		t.Errorf("value = %g, want 10", cell.Values[0])
	}
	if cell.Variances[0] > 1e-18 {
		t.Errorf("variance = %g, want ~0", cell.Variances[0])
	}
	if math.Abs(cell.WeightSum-1) > 1e-12 {
		t.Errorf("weight sum = %g, want 1", cell.WeightSum)
	}
}

func TestInterpolateLowConfidence(t *testing.T) {
	pairs := []align.Pair{
		pair("A", 46, -75, 10),
		pair("B", 44, -75, 20),
	}
	p := DefaultParams
	p.MinContributors = 3
	e := mustEngine(t, p)

	est, err := e.Interpolate(pairs, singleCellGrid(45, -75), step, []string{"b"})
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	cell := est.Cells[0]

	if cell.Status != models.CellLowConfidence {
		t.Errorf("status = %s, want low-confidence", cell.Status)
	}
	if cell.Contributors != 2 {
		t.Errorf("contributors = %d, want 2", cell.Contributors)
	}
	if cell.Values == nil {
		t.Error("low-confidence cell carries no values")
	}
}

func TestInterpolateOutsideRadius(t *testing.T) {
	pairs := []align.Pair{pair("A", 45, -75, 10)}
	p := DefaultParams
	p.MaxInfluenceRadiusKm = 100
	e := mustEngine(t, p)

	// Europe is far more than 100 km from Ottawa.
	est, err := e.Interpolate(pairs, singleCellGrid(48, 2), step, []string{"b"})
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	cell := est.Cells[0]

	if cell.Status != models.CellUnestimated {
		t.Errorf("status = %s, want unestimated", cell.Status)
	}
	if cell.Values != nil || cell.Variances != nil {
		t.Errorf("unestimated cell carries values: %+v", cell)
	}
	if cell.Contributors != 0 {
		t.Errorf("contributors = %d, want 0", cell.Contributors)
	}
}

func TestInterpolateCoincidentStation(t *testing.T) {
	pairs := []align.Pair{
		pair("A", 45, -75, 37.5),
		pair("B", 47, -75, 900),
		pair("C", 43, -75, -900),
	}
	e := mustEngine(t, DefaultParams)

	est, err := e.Interpolate(pairs, singleCellGrid(45, -75), step, []string{"b"})
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	cell := est.Cells[0]

	if cell.Values[0] != 37.5 {
		t.Errorf("coincident cell value = %g, want exactly 37.5", cell.Values[0])
	}
	if cell.Variances[0] != 0 {
		t.Errorf("coincident cell variance = %g, want 0", cell.Variances[0])
	}
	if cell.Contributors != 3 {
		t.Errorf("contributors = %d, want 3", cell.Contributors)
	}
}

func TestInterpolateWeightUnderflow(t *testing.T) {
	// A 1 km gaussian length scale against a station 556 km away drives
	// every kernel weight to zero. The cell must come back unestimated,
	// never an estimated cell holding NaN.
	pairs := []align.Pair{pair("A", 40, -75, 10)}
	p := DefaultParams
	p.DecayParameter = 1
	p.MinContributors = 1
	e := mustEngine(t, p)

	est, err := e.Interpolate(pairs, singleCellGrid(45, -75), step, []string{"b"})
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	cell := est.Cells[0]

	if cell.Status != models.CellUnestimated {
		t.Errorf("status = %s, want unestimated", cell.Status)
	}
	if cell.Values != nil || cell.Variances != nil {
		t.Errorf("underflowed cell carries values: %+v", cell)
	}
	if math.IsNaN(cell.WeightSum) || cell.WeightSum != 0 {
		t.Errorf("weight sum = %g, want 0", cell.WeightSum)
	}
}

func TestInterpolateDistanceDecay(t *testing.T) {
	// The cell sits much nearer to A than to B; the estimate must land
	// strictly between the two values, closer to A's.
	pairs := []align.Pair{
		pair("A", 45.5, -75, 0),
		pair("B", 40, -75, 100),
	}

	for _, scheme := range []WeightingScheme{SchemeGaussian, SchemeInversePower} {
		p := DefaultParams
		p.Scheme = scheme
		if scheme == SchemeInversePower {
			p.DecayParameter = 2
		}
		p.MinContributors = 2
		e := mustEngine(t, p)

		est, err := e.Interpolate(pairs, singleCellGrid(45, -75), step, []string{"b"})
		if err != nil {
			t.Fatalf("%s: Interpolate failed: %v", scheme, err)
		}
		v := est.Cells[0].Values[0]
		if v <= 0 || v >= 50 {
			t.Errorf("%s: value = %g, want in (0, 50)", scheme, v)
		}
		if est.Cells[0].Variances[0] <= 0 {
			t.Errorf("%s: variance = %g, want > 0", scheme, est.Cells[0].Variances[0])
		}
	}
}

func TestInterpolateVarianceGrowsWithDistance(t *testing.T) {
	// Same contributors, same spread; the cell farther from its nearest
	// station reports more variance.
	pairs := []align.Pair{
		pair("A", 46, -75, 0),
		pair("B", 44, -75, 100),
		pair("C", 45, -73, 50),
	}
	e := mustEngine(t, DefaultParams)

	near, err := e.Interpolate(pairs, singleCellGrid(45.8, -75), step, []string{"b"})
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	far, err := e.Interpolate(pairs, singleCellGrid(48, -80), step, []string{"b"})
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}

	if far.Cells[0].Variances[0] <= near.Cells[0].Variances[0] {
		t.Errorf("variance near=%g far=%g, want far > near",
			near.Cells[0].Variances[0], far.Cells[0].Variances[0])
	}
}

func TestInterpolateMultiComponent(t *testing.T) {
	pairs := []align.Pair{
		pair("A", 46, -75, 10, 100),
		pair("B", 44, -75, 10, 100),
		pair("C", 45, -74, 10, 100),
	}
	e := mustEngine(t, DefaultParams)

	est, err := e.Interpolate(pairs, singleCellGrid(45, -75), step, []string{"b", "bmax"})
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	cell := est.Cells[0]
	if len(cell.Values) != 2 || len(cell.Variances) != 2 {
		t.Fatalf("component counts: values=%d variances=%d, want 2/2", len(cell.Values), len(cell.Variances))
	}
	if math.Abs(cell.Values[0]-10) > 1e-9 || math.Abs(cell.Values[1]-100) > 1e-9 {
		t.Errorf("values = %v, want [10 100]", cell.Values)
	}
}

func TestInterpolateDeterministic(t *testing.T) {
	pairs := []align.Pair{
		pair("A", 46.3, -75.1, 12.5),
		pair("B", 44.2, -74.8, -3.25),
		pair("C", 45.1, -73.9, 88),
		pair("D", 45.9, -76.2, 7),
	}
	grid := &models.GridDefinition{
		Points: []models.GridPoint{
			{Lat: 45, Lon: -75},
			{Lat: 45.5, Lon: -74.5},
			{Lat: 46, Lon: -74},
		},
		Steps: []time.Time{step},
	}
	e := mustEngine(t, DefaultParams)

	first, err := e.Interpolate(pairs, grid, step, []string{"b"})
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := e.Interpolate(pairs, grid, step, []string{"b"})
		if err != nil {
			t.Fatalf("Interpolate failed: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d produced different output", i)
		}
	}
}

func TestInterpolateWeightsSumToOne(t *testing.T) {
	pairs := []align.Pair{
		pair("A", 46, -75, 1),
		pair("B", 44.5, -74, 2),
		pair("C", 45.2, -76, 3),
		pair("D", 43.8, -75.5, 4),
	}
	e := mustEngine(t, DefaultParams)

	est, err := e.Interpolate(pairs, singleCellGrid(45, -75), step, []string{"b"})
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	if got := est.Cells[0].WeightSum; math.Abs(got-1) > 1e-12 {
		t.Errorf("weight sum = %.15f, want 1", got)
	}
}
