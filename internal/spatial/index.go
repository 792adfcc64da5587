package spatial

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// sitePoint is a station position projected onto the unit sphere,
// tagged with its index in the caller's slice.
type sitePoint struct {
	x, y, z float64
	idx     int
}

// Compare implements the kdtree.Comparable interface
func (p sitePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(sitePoint)
	switch d {
	case 0:
		return p.x - q.x
	case 1:
		return p.y - q.y
	case 2:
		return p.z - q.z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p sitePoint) Dims() int { return 3 }

// Distance returns the squared Euclidean (chord) distance between points
func (p sitePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(sitePoint)
	dx := p.x - q.x
	dy := p.y - q.y
	dz := p.z - q.z
	return dx*dx + dy*dy + dz*dz
}

// sitePoints is a collection of sitePoint that satisfies kdtree.Interface
type sitePoints []sitePoint

func (p sitePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p sitePoints) Len() int                              { return len(p) }
func (p sitePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p sitePoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(sitePlane{sitePoints: p, Dim: d}, kdtree.MedianOfMedians(sitePlane{sitePoints: p, Dim: d}))
}

// sitePlane implements sort.Interface and kdtree.SortSlicer for sitePoints
type sitePlane struct {
	sitePoints
	kdtree.Dim
}

func (p sitePlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.sitePoints[i].x < p.sitePoints[j].x
	case 1:
		return p.sitePoints[i].y < p.sitePoints[j].y
	case 2:
		return p.sitePoints[i].z < p.sitePoints[j].z
	default:
		panic("illegal dimension")
	}
}

func (p sitePlane) Slice(start, end int) kdtree.SortSlicer {
	return sitePlane{sitePoints: p.sitePoints[start:end], Dim: p.Dim}
}

func (p sitePlane) Swap(i, j int) {
	p.sitePoints[i], p.sitePoints[j] = p.sitePoints[j], p.sitePoints[i]
}

// Index is a KD-tree over station positions used to find every station
// within a great-circle radius of a grid cell.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// NewIndex builds an index from parallel latitude/longitude slices
// (degrees). The returned Index is read-only and safe for concurrent use.
func NewIndex(lats, lons []float64) *Index {
	points := make(sitePoints, len(lats))
	for i := range lats {
		points[i] = unitPoint(lats[i], lons[i], i)
	}
	return &Index{
		tree: kdtree.New(points, false),
		n:    len(points),
	}
}

// Within returns the indices of all stations within radiusKm great-circle
// kilometers of the given point, sorted ascending. Sorting keeps the
// result independent of tree layout, so downstream accumulation order is
// stable.
func (ix *Index) Within(radiusKm, lat, lon float64) []int {
	if ix.n == 0 {
		return nil
	}

	// A great-circle arc of d km subtends a chord of 2R*sin(d/2R) on the
	// sphere; search the tree with the squared unit-sphere chord.
	arc := radiusKm / EarthRadiusKm
	if arc > math.Pi {
		arc = math.Pi
	}
	chord := 2 * math.Sin(arc/2)

	keeper := kdtree.NewDistKeeper(chord * chord)
	ix.tree.NearestSet(keeper, unitPoint(lat, lon, -1))

	var out []int
	for _, item := range keeper.Heap {
		if item.Comparable == nil {
			continue
		}
		out = append(out, item.Comparable.(sitePoint).idx)
	}
	sort.Ints(out)
	return out
}

func unitPoint(lat, lon float64, idx int) sitePoint {
	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180
	return sitePoint{
		x:   math.Cos(phi) * math.Cos(lam),
		y:   math.Cos(phi) * math.Sin(lam),
		z:   math.Sin(phi),
		idx: idx,
	}
}
