package pointcloud

import (
	"github.com/golang/geo/r3"
)

// PointAndData pairs a position with its payload.
type PointAndData struct {
	P r3.Vector
	D Data
}

// storage backs a basicPointCloud.
type storage interface {
	Size() int
	Set(p r3.Vector, d Data) error
	At(x, y, z float64) (Data, bool)
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
}

// matrixStorage keeps points in insertion order with an index for lookups.
type matrixStorage struct {
	points   []PointAndData
	indexMap map[r3.Vector]uint
}

func (ms *matrixStorage) Size() int {
	return len(ms.points)
}

func (ms *matrixStorage) Set(p r3.Vector, d Data) error {
	if i, found := ms.indexMap[p]; found {
		ms.points[i].D = d
		return nil
	}
	ms.points = append(ms.points, PointAndData{P: p, D: d})
	ms.indexMap[p] = uint(len(ms.points) - 1)
	return nil
}

func (ms *matrixStorage) At(x, y, z float64) (Data, bool) {
	if i, found := ms.indexMap[r3.Vector{X: x, Y: y, Z: z}]; found {
		return ms.points[i].D, true
	}
	return nil, false
}

func (ms *matrixStorage) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	if numBatches <= 0 {
		for _, pd := range ms.points {
			if !fn(pd.P, pd.D) {
				return
			}
		}
		return
	}
	lowerBound, upperBound := batchBounds(len(ms.points), numBatches, myBatch)
	for i := lowerBound; i < upperBound; i++ {
		if !fn(ms.points[i].P, ms.points[i].D) {
			return
		}
	}
}

// batchBounds splits size items into numBatches contiguous ranges and returns the range of myBatch.
func batchBounds(size, numBatches, myBatch int) (int, int) {
	batchSize := (size + numBatches - 1) / numBatches
	lowerBound := myBatch * batchSize
	upperBound := lowerBound + batchSize
	if lowerBound > size {
		lowerBound = size
	}
	if upperBound > size {
		upperBound = size
	}
	return lowerBound, upperBound
}
