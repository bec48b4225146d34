package transform

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is wrapped by every intrinsics validation failure.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError wraps ErrNoIntrinsics with msg.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics is the image size, focal lengths and principal point of a camera, in
// pixels.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid requires a positive image size and nonzero focal lengths. Negative focal
// lengths describe mirrored sensors and are allowed.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	switch {
	case params == nil:
		return NewNoIntrinsicsError("Intrinsics do not exist")
	case params.Width <= 0 || params.Height <= 0:
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%d, %d)", params.Width, params.Height))
	case params.Fx == 0:
		return NewNoIntrinsicsError("Invalid focal length Fx = 0")
	case params.Fy == 0:
		return NewNoIntrinsicsError("Invalid focal length Fy = 0")
	}
	return nil
}

// PixelToPoint lifts pixel (x, y) at depth z into the camera frame.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	n := params.Normalize(r2.Point{X: x, Y: y})
	return n.X * z, n.Y * z, z
}

// PointToPixel projects a 3D point in the camera frame to the image plane. No rounding
// is applied and a point with z == 0 projects to infinity.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	return params.Ppx + params.Fx*x/z, params.Ppy + params.Fy*y/z
}

// Normalize maps a pixel to normalized image coordinates (x/z, y/z).
func (params *PinholeCameraIntrinsics) Normalize(pt r2.Point) r2.Point {
	return r2.Point{X: (pt.X - params.Ppx) / params.Fx, Y: (pt.Y - params.Ppy) / params.Fy}
}

// Denormalize maps normalized image coordinates back to a pixel.
func (params *PinholeCameraIntrinsics) Denormalize(pt r2.Point) r2.Point {
	return r2.Point{X: params.Fx*pt.X + params.Ppx, Y: params.Fy*pt.Y + params.Ppy}
}

// GetCameraMatrix returns K = [fx 0 ppx; 0 fy ppy; 0 0 1], or nil for nil intrinsics.
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	return mat.NewDense(3, 3, []float64{
		params.Fx, 0, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}

// getInverseCameraMatrix returns K⁻¹ in closed form. A zero focal length yields infinities
// rather than an error.
func (params *PinholeCameraIntrinsics) getInverseCameraMatrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1 / params.Fx, 0, -params.Ppx / params.Fx,
		0, 1 / params.Fy, -params.Ppy / params.Fy,
		0, 0, 1,
	})
}
