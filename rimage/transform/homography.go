package transform

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 matrix used to transform a plane from the perspective of one 2D
// camera to the perspective of another. Indices are [row][column].
type Homography [3][3]float64

// NewHomography creates a Homography from a slice of 9 row-major values.
func NewHomography(vals []float64) (*Homography, error) {
	if len(vals) != 9 {
		return nil, errors.Errorf("input to NewHomography must have length of 9. Has length of %d", len(vals))
	}
	var h Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[i][j] = vals[3*i+j]
		}
	}
	return &h, nil
}

// NewIdentityHomography returns the homography that leaves every point unchanged.
func NewIdentityHomography() *Homography {
	return &Homography{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// NewHomographyFromDense copies a 3x3 gonum matrix into a Homography.
func NewHomographyFromDense(m mat.Matrix) (*Homography, error) {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return nil, errors.Errorf("homography must be 3x3, got %dx%d", r, c)
	}
	var h Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h[i][j] = m.At(i, j)
		}
	}
	return &h, nil
}

// At returns the value of the homography at the given index.
func (h *Homography) At(row, col int) float64 {
	return h[row][col]
}

// Data returns the 9 values in row-major order.
func (h *Homography) Data() []float64 {
	out := make([]float64, 0, 9)
	for _, row := range h {
		out = append(out, row[:]...)
	}
	return out
}

// Dense returns the homography as a gonum matrix.
func (h *Homography) Dense() *mat.Dense {
	return mat.NewDense(3, 3, h.Data())
}

// Apply will transform the input point according to the homography.
func (h *Homography) Apply(pt r2.Point) r2.Point {
	x := h.At(0, 0)*pt.X + h.At(0, 1)*pt.Y + h.At(0, 2)
	y := h.At(1, 0)*pt.X + h.At(1, 1)*pt.Y + h.At(1, 2)
	z := h.At(2, 0)*pt.X + h.At(2, 1)*pt.Y + h.At(2, 2)
	return r2.Point{X: x / z, Y: y / z}
}

// Inverse inverts the homography. If homography went from color -> depth, Inverse makes it point
// from depth -> color.
func (h *Homography) Inverse() (*Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.Dense()); err != nil {
		return nil, errors.Wrap(err, "homography cannot be inverted")
	}
	return NewHomographyFromDense(&inv)
}
