package transform

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestNewHomography(t *testing.T) {
	_, err := NewHomography([]float64{1, 2, 3})
	test.That(t, err, test.ShouldBeError, "input to NewHomography must have length of 9. Has length of 3")

	vals := []float64{2, 0.5, 10, -0.25, 1.5, -4, 0.001, 0.002, 1}
	h, err := NewHomography(vals)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.At(0, 2), test.ShouldEqual, 10.)
	test.That(t, h.At(2, 1), test.ShouldEqual, 0.002)
	test.That(t, h.Data(), test.ShouldResemble, vals)
	test.That(t, mat.Equal(h.Dense(), mat.NewDense(3, 3, vals)), test.ShouldBeTrue)

	fromDense, err := NewHomographyFromDense(h.Dense())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fromDense, test.ShouldResemble, h)
	_, err = NewHomographyFromDense(mat.NewDense(2, 3, nil))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestHomographyApply(t *testing.T) {
	test.That(t, NewIdentityHomography().Apply(r2.Point{X: 12.5, Y: -3}), test.ShouldResemble, r2.Point{X: 12.5, Y: -3})

	shift, err := NewHomography([]float64{1, 0, 2, 0, 1, -3, 0, 0, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, shift.Apply(r2.Point{X: 202, Y: 243}), test.ShouldResemble, r2.Point{X: 204, Y: 240})

	// the last row divides through
	projective, err := NewHomography([]float64{1, 0, 0, 0, 1, 0, 0, 0, 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, projective.Apply(r2.Point{X: 10, Y: 4}), test.ShouldResemble, r2.Point{X: 5, Y: 2})

	h, err := NewHomography([]float64{2, 0.5, 10, -0.25, 1.5, -4, 0.001, 0.002, 1})
	test.That(t, err, test.ShouldBeNil)
	inv, err := h.Inverse()
	test.That(t, err, test.ShouldBeNil)
	for _, p := range []r2.Point{{X: 0, Y: 0}, {X: 320, Y: 240}, {X: -50, Y: 600}} {
		testPointAlmostEqual(t, inv.Apply(h.Apply(p)), p, 1e-9)
	}

	var singular Homography
	_, err = singular.Inverse()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "homography cannot be inverted")
}
