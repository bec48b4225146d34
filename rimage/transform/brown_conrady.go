package transform

import (
	"math"

	"github.com/pkg/errors"
)

// BrownConrady is the four coefficient radial and tangential lens model:
//
//	r² = x² + y²
//	k  = 1 + k1*r² + k2*r⁴
//	x_d = k*x + 2*p1*x*y + p2*(r² + 2*x²)
//	y_d = k*y + p1*(r² + 2*y²) + 2*p2*x*y
//
// where (x, y) are normalized undistorted coordinates.
type BrownConrady struct {
	RadialK1     float64 `json:"rk1"`
	RadialK2     float64 `json:"rk2"`
	TangentialP1 float64 `json:"tp1"`
	TangentialP2 float64 `json:"tp2"`
}

// NewBrownConrady takes in a slice of floats that will be passed into the struct in order.
// Missing trailing values are zero.
func NewBrownConrady(inp []float64) (*BrownConrady, error) {
	if len(inp) > 4 {
		return nil, errors.Errorf("list of parameters too long, expected max 4, got %d", len(inp))
	}
	var params [4]float64
	copy(params[:], inp)
	return &BrownConrady{params[0], params[1], params[2], params[3]}, nil
}

// CheckValid checks if the fields for BrownConrady have valid inputs.
func (bc *BrownConrady) CheckValid() error {
	if bc == nil {
		return InvalidDistortionError("BrownConrady shaped distortion_parameters not provided")
	}
	for _, p := range bc.Parameters() {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return InvalidDistortionError("coefficients must be finite")
		}
	}
	return nil
}

// ModelType returns the type of distortion model.
func (bc *BrownConrady) ModelType() DistortionType {
	return BrownConradyDistortionType
}

// Parameters returns the distortion parameters as (d1, d2, d3, d4).
func (bc *BrownConrady) Parameters() []float64 {
	if bc == nil {
		return []float64{}
	}
	return []float64{bc.RadialK1, bc.RadialK2, bc.TangentialP1, bc.TangentialP2}
}

// IsZero reports whether the model leaves every point unchanged.
func (bc *BrownConrady) IsZero() bool {
	return bc == nil || *bc == BrownConrady{}
}

// Transform distorts normalized coordinates.
func (bc *BrownConrady) Transform(x, y float64) (float64, float64) {
	if bc.IsZero() {
		return x, y
	}
	k := bc.radialFactor(x, y)
	dx, dy := bc.tangentialOffset(x, y)
	return k*x + dx, k*y + dy
}

func (bc *BrownConrady) radialFactor(x, y float64) float64 {
	r2 := x*x + y*y
	return 1 + bc.RadialK1*r2 + bc.RadialK2*r2*r2
}

func (bc *BrownConrady) tangentialOffset(x, y float64) (float64, float64) {
	r2 := x*x + y*y
	dx := 2*bc.TangentialP1*x*y + bc.TangentialP2*(r2+2*x*x)
	dy := bc.TangentialP1*(r2+2*y*y) + 2*bc.TangentialP2*x*y
	return dx, dy
}
