package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// basicPointCloud keeps points in insertion order, so a cloud built from correspondence pairs
// iterates in pair order.
type basicPointCloud struct {
	points storage
	meta   MetaData
}

// New returns an empty PointCloud.
func New() PointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty PointCloud with room for size points.
func NewWithPrealloc(size int) PointCloud {
	return &basicPointCloud{
		points: &matrixStorage{
			points:   make([]PointAndData, 0, size),
			indexMap: make(map[r3.Vector]uint, size),
		},
		meta: NewMetaData(),
	}
}

func (cloud *basicPointCloud) Size() int {
	return cloud.points.Size()
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}

func (cloud *basicPointCloud) At(x, y, z float64) (Data, bool) {
	return cloud.points.At(x, y, z)
}

// Set rejects coordinates that cannot be represented exactly. Replacing the payload of an
// existing point leaves the bounds and centroid unchanged.
func (cloud *basicPointCloud) Set(p r3.Vector, d Data) error {
	if err := checkPrecise(p); err != nil {
		return err
	}
	_, replacing := cloud.points.At(p.X, p.Y, p.Z)
	if err := cloud.points.Set(p, d); err != nil {
		return err
	}
	if !replacing {
		cloud.meta.Merge(p, d)
	}
	return nil
}

func (cloud *basicPointCloud) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	cloud.points.Iterate(numBatches, myBatch, fn)
}

func checkPrecise(p r3.Vector) error {
	for axis, v := range [3]float64{p.X, p.Y, p.Z} {
		if v < minPreciseFloat64 || v > maxPreciseFloat64 || math.IsNaN(v) {
			return errors.Errorf("%c component (%v) is out of range [%v,%v]", "xyz"[axis], v, minPreciseFloat64, maxPreciseFloat64)
		}
	}
	return nil
}
