// Package quality screens station datasets before interpolation. It
// applies two rules: a robust MAD-based outlier screen on individual
// observations and a coverage rule that excludes stations with too little
// valid data over the analysis window.
package quality

import (
	"fmt"
	"math"
	"sort"

	"github.com/michellexbui/BirdBeaks/internal/models"
	"github.com/michellexbui/BirdBeaks/internal/stats"
)

// outlierWindow is the number of finite-valued neighbor observations
// taken on each side when computing an observation's local median/MAD.
const outlierWindow = 12

// Params defines configurable thresholds for quality screening
type Params struct {
	CoverageThreshold    float64 // minimum valid-observation fraction, 0..1
	OutlierMADMultiplier float64 // deviation multiple of local MAD marking an outlier
}

// DefaultParams provides default screening thresholds
var DefaultParams = Params{
	CoverageThreshold:    0.5, // exclude stations below 50% coverage
	OutlierMADMultiplier: 6.0,
}

// Exclusion records why a station was removed from the dataset
type Exclusion struct {
	StationID string `json:"station_id"`
	Reason    string `json:"reason"`
}

// Report summarizes the filter's decisions for auditability
type Report struct {
	Exclusions       []Exclusion        `json:"exclusions"`
	Coverage         map[string]float64 `json:"coverage"`
	OutliersFlagged  int                `json:"outliers_flagged"`
	StationsKept     int                `json:"stations_kept"`
	StationsExcluded int                `json:"stations_excluded"`
}

// Apply screens the dataset and returns a new filtered dataset plus a
// report. The input dataset is never mutated. Validity is recomputed
// from raw observation values on every call, so applying the filter to
// its own output yields the same result. An empty output dataset (all
// stations excluded) is a legitimate outcome, not an error.
func Apply(ds *models.StationDataset, p Params) (*models.StationDataset, *Report) {
	report := &Report{Coverage: make(map[string]float64)}

	var kept []models.Station
	keptSeries := make(map[string][]models.Observation)

	for _, id := range ds.StationIDs() {
		obs := ds.Series[id]
		screened, flagged := screenSeries(obs, len(ds.Components), p.OutlierMADMultiplier)
		report.OutliersFlagged += flagged

		coverage := coverageOf(screened)
		report.Coverage[id] = coverage

		if len(screened) == 0 {
			report.Exclusions = append(report.Exclusions, Exclusion{
				StationID: id, Reason: "no observations in analysis window",
			})
			continue
		}
		if coverage < p.CoverageThreshold {
			report.Exclusions = append(report.Exclusions, Exclusion{
				StationID: id,
				Reason:    fmt.Sprintf("coverage %.2f below threshold %.2f", coverage, p.CoverageThreshold),
			})
			continue
		}

		kept = append(kept, ds.Stations[id])
		keptSeries[id] = screened
	}

	sort.Slice(report.Exclusions, func(i, j int) bool {
		return report.Exclusions[i].StationID < report.Exclusions[j].StationID
	})
	report.StationsKept = len(kept)
	report.StationsExcluded = len(report.Exclusions)

	// Invariants hold by construction: series are per-station copies of
	// an already validated dataset.
	filtered, err := models.NewStationDataset(ds.Components, kept, keptSeries)
	if err != nil {
		// Cannot happen for a valid input dataset.
		panic(err)
	}
	return filtered, report
}

// screenSeries copies a station's series, recomputing each observation's
// validity: a value vector is valid when every component is finite and
// no component deviates from its local temporal median by more than
// k * MAD. Returns the screened copy and the number of newly flagged
// outliers (finite-valued observations marked invalid).
func screenSeries(obs []models.Observation, nComp int, madMultiplier float64) ([]models.Observation, int) {
	out := make([]models.Observation, len(obs))
	copy(out, obs)

	// Indices of observations with fully finite value vectors.
	var finite []int
	for i, o := range obs {
		if allFinite(o.Values) {
			finite = append(finite, i)
		}
	}

	flagged := 0
	for i := range out {
		if !allFinite(out[i].Values) {
			out[i].Valid = false
			continue
		}
		valid := true
		for c := 0; c < nComp; c++ {
			if isLocalOutlier(obs, finite, i, c, madMultiplier) {
				valid = false
				break
			}
		}
		if !valid {
			flagged++
		}
		out[i].Valid = valid
	}
	return out, flagged
}

// isLocalOutlier tests component c of observation i against the median
// and MAD of up to outlierWindow finite neighbors on each side. A window
// with zero MAD (constant values) never flags, mirroring the zero-spread
// guards in the stats package.
func isLocalOutlier(obs []models.Observation, finite []int, i, c int, k float64) bool {
	// Locate i within the finite index list.
	pos := sort.SearchInts(finite, i)
	if pos >= len(finite) || finite[pos] != i {
		return false
	}

	lo := pos - outlierWindow
	if lo < 0 {
		lo = 0
	}
	hi := pos + outlierWindow + 1
	if hi > len(finite) {
		hi = len(finite)
	}

	window := make([]float64, 0, hi-lo)
	for _, j := range finite[lo:hi] {
		window = append(window, obs[j].Values[c])
	}
	if len(window) < 3 {
		return false
	}

	med := stats.Median(window)
	mad := stats.MAD(window)
	if mad == 0 {
		return false
	}
	return math.Abs(obs[i].Values[c]-med) > k*mad
}

func coverageOf(obs []models.Observation) float64 {
	if len(obs) == 0 {
		return 0
	}
	valid := 0
	for _, o := range obs {
		if o.Valid {
			valid++
		}
	}
	return float64(valid) / float64(len(obs))
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
