package transform

// UndistortIterations is the fixed number of fixed-point iterations used to invert the
// Brown-Conrady model. Convergence is not checked, so strongly distorted points may keep
// a residual error.
const UndistortIterations = 10

// InverseBrownConrady applies the inverse of the Brown-Conrady distortion model.
// Given distorted points, it computes the corresponding undistorted points by
// fixed-point iteration seeded with the distorted coordinates.
type InverseBrownConrady struct {
	BrownConrady
}

// NewInverseBrownConrady takes in a slice of floats that will be passed into the struct in order.
func NewInverseBrownConrady(inp []float64) (*InverseBrownConrady, error) {
	bc, err := NewBrownConrady(inp)
	if err != nil {
		return nil, err
	}
	return &InverseBrownConrady{*bc}, nil
}

// ModelType returns the type of distortion model.
func (ibc *InverseBrownConrady) ModelType() DistortionType {
	return InverseBrownConradyDistortionType
}

// Transform undistorts normalized coordinates, solving
//
//	x = (x_d - dx(x, y)) / k(x, y)
//	y = (y_d - dy(x, y)) / k(x, y)
//
// for exactly UndistortIterations rounds.
func (ibc *InverseBrownConrady) Transform(xd, yd float64) (float64, float64) {
	if ibc.IsZero() {
		return xd, yd
	}
	x, y := xd, yd
	for i := 0; i < UndistortIterations; i++ {
		k := ibc.radialFactor(x, y)
		dx, dy := ibc.tangentialOffset(x, y)
		x = (xd - dx) / k
		y = (yd - dy) / k
	}
	return x, y
}
