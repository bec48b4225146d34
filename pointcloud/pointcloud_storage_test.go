package pointcloud

import (
	"image/color"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"go.viam.com/utils"
)

func newTestStorage() *matrixStorage {
	return &matrixStorage{indexMap: map[r3.Vector]uint{}}
}

func TestMatrixStorageSetAt(t *testing.T) {
	ms := newTestStorage()
	test.That(t, ms.Size(), test.ShouldEqual, 0)
	_, found := ms.At(0, 0, 0)
	test.That(t, found, test.ShouldBeFalse)

	first := NewValueData(0)
	test.That(t, ms.Set(r3.Vector{X: 1, Y: 2, Z: 500}, first), test.ShouldBeNil)
	second := NewColoredData(color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	test.That(t, ms.Set(r3.Vector{X: -40, Y: 2, Z: 650}, second), test.ShouldBeNil)
	test.That(t, ms.Size(), test.ShouldEqual, 2)

	got, found := ms.At(1, 2, 500)
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, got, test.ShouldEqual, first)

	// a repeated position replaces the payload in place
	replacement := NewValueData(7)
	test.That(t, ms.Set(r3.Vector{X: 1, Y: 2, Z: 500}, replacement), test.ShouldBeNil)
	test.That(t, ms.Size(), test.ShouldEqual, 2)
	got, _ = ms.At(1, 2, 500)
	test.That(t, got.Value(), test.ShouldEqual, 7)
	test.That(t, ms.points[0].D, test.ShouldEqual, replacement)

	got, found = ms.At(1, 2, 501)
	test.That(t, found, test.ShouldBeFalse)
	test.That(t, got, test.ShouldBeNil)
}

func TestMatrixStorageIterationOrder(t *testing.T) {
	ms := newTestStorage()
	for i := 0; i < 5; i++ {
		test.That(t, ms.Set(r3.Vector{X: float64(i), Z: 100}, NewValueData(i)), test.ShouldBeNil)
	}

	var seen []int
	ms.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		seen = append(seen, d.Value())
		return true
	})
	test.That(t, seen, test.ShouldResemble, []int{0, 1, 2, 3, 4})

	seen = nil
	ms.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		seen = append(seen, d.Value())
		return len(seen) < 2
	})
	test.That(t, seen, test.ShouldResemble, []int{0, 1})
}

func TestBatchBounds(t *testing.T) {
	for _, tc := range []struct {
		size, numBatches, myBatch int
		lower, upper             int
	}{
		{10, 3, 0, 0, 4},
		{10, 3, 2, 8, 10},
		{3, 6, 1, 1, 2},
		{3, 6, 5, 3, 3},
		{0, 4, 2, 0, 0},
	} {
		lower, upper := batchBounds(tc.size, tc.numBatches, tc.myBatch)
		test.That(t, lower, test.ShouldEqual, tc.lower)
		test.That(t, upper, test.ShouldEqual, tc.upper)
	}
}

// Every point is visited exactly once no matter how the work is split.
func TestMatrixStorageBatchedIterate(t *testing.T) {
	ms := newTestStorage()
	const numPoints = 11
	var want r3.Vector
	for i := 0; i < numPoints; i++ {
		p := r3.Vector{X: float64(i), Y: float64(2 * i), Z: 300 + float64(i)}
		want = want.Add(p)
		test.That(t, ms.Set(p, NewValueData(i)), test.ShouldBeNil)
	}

	for _, numBatches := range []int{1, 2, 4, numPoints, 2 * numPoints} {
		sums := make([]r3.Vector, numBatches)
		counts := make([]int, numBatches)
		var wg sync.WaitGroup
		wg.Add(numBatches)
		for batch := 0; batch < numBatches; batch++ {
			batch := batch
			utils.PanicCapturingGo(func() {
				defer wg.Done()
				ms.Iterate(numBatches, batch, func(p r3.Vector, d Data) bool {
					sums[batch] = sums[batch].Add(p)
					counts[batch]++
					return true
				})
			})
		}
		wg.Wait()

		var total r3.Vector
		var count int
		for i := range sums {
			total = total.Add(sums[i])
			count += counts[i]
		}
		test.That(t, count, test.ShouldEqual, numPoints)
		test.That(t, total, test.ShouldResemble, want)
	}
}
