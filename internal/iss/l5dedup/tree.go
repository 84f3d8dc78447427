package l5dedup

import (
	"gonum.org/v1/gonum/spatial/kdtree"
)

// centre is a tile centre in global yx, or a query point when tile < 0.
type centre struct {
	tile int
	yx   [2]float64
}

var _ kdtree.Comparable = centre{}

func (c centre) Compare(o kdtree.Comparable, d kdtree.Dim) float64 {
	return c.yx[d] - o.(centre).yx[d]
}

func (c centre) Dims() int { return 2 }

// Distance is the squared Euclidean distance, as kdtree expects.
func (c centre) Distance(o kdtree.Comparable) float64 {
	q := o.(centre)
	dy, dx := c.yx[0]-q.yx[0], c.yx[1]-q.yx[1]
	return dy*dy + dx*dx
}

// centres implements kdtree.Interface.
type centres []centre

var _ kdtree.Interface = centres(nil)

func (c centres) Index(i int) kdtree.Comparable { return c[i] }
func (c centres) Len() int                      { return len(c) }
func (c centres) Slice(start, end int) kdtree.Interface {
	return c[start:end]
}
func (c centres) Pivot(d kdtree.Dim) int {
	return plane{Dim: d, centres: c}.Pivot()
}

// plane sorts centres along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	centres
}

func (p plane) Less(i, j int) bool { return p.centres[i].yx[p.Dim] < p.centres[j].yx[p.Dim] }
func (p plane) Swap(i, j int)      { p.centres[i], p.centres[j] = p.centres[j], p.centres[i] }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{Dim: p.Dim, centres: p.centres[start:end]}
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

// tieTol is the relative slack under which two squared distances count as
// equal.
const tieTol = 1e-9

// owner returns the tile whose centre is nearest to (y, x), the lowest tile
// index among equally near centres.
func owner(tree *kdtree.Tree, y, x float64) int {
	q := centre{tile: -1, yx: [2]float64{y, x}}
	nearest, dist := tree.Nearest(q)
	best := nearest.(centre).tile

	keep := kdtree.NewDistKeeper(dist + tieTol*(1+dist))
	tree.NearestSet(keep, q)
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		if t := cd.Comparable.(centre).tile; t < best {
			best = t
		}
	}
	return best
}
