package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camgeom/spatialmath"
)

// Default intrinsics of a freshly constructed Calibration.
const (
	DefaultWidth       = 640
	DefaultHeight      = 480
	DefaultFocalLength = 580.
)

// Calibration is the model of a single pinhole camera with lens distortion placed in a world frame.
//
// Extrinsics map world to camera coordinates, x_c = R*x_w + t. The inverse transform
// x_w = Rᵗ*x_c - Rᵗ*t is cached and refreshed by every setter that touches R or t, so
// TranslationInverse is always the camera centre in world coordinates.
//
// A Calibration owns all of its state; use Set or Clone to copy one.
type Calibration struct {
	intrinsics  PinholeCameraIntrinsics
	distortion  BrownConrady
	rotation    spatialmath.RotationMatrix
	translation r3.Vector

	rotationInverse    spatialmath.RotationMatrix
	translationInverse r3.Vector
}

// NewCalibration returns a 640x480 camera with f=580, the principal point at the image centre,
// no distortion and identity extrinsics.
func NewCalibration() *Calibration {
	c := &Calibration{
		intrinsics: PinholeCameraIntrinsics{
			Width:  DefaultWidth,
			Height: DefaultHeight,
			Fx:     DefaultFocalLength,
			Fy:     DefaultFocalLength,
			Ppx:    DefaultWidth / 2,
			Ppy:    DefaultHeight / 2,
		},
	}
	c.SetExtrinsic(spatialmath.NewIdentityRotationMatrix(), r3.Vector{})
	return c
}

// Set copies the full state of other into c.
func (c *Calibration) Set(other *Calibration) {
	*c = *other
}

// Clone returns an independent copy of c.
func (c *Calibration) Clone() *Calibration {
	out := *c
	return &out
}

// SetCameraParameters sets every intrinsic, distortion and extrinsic parameter at once.
func (c *Calibration) SetCameraParameters(
	fx, fy, cx, cy float64,
	d1, d2, d3, d4 float64,
	rotation *spatialmath.RotationMatrix,
	translation r3.Vector,
	width, height int,
) {
	c.intrinsics = PinholeCameraIntrinsics{Width: width, Height: height, Fx: fx, Fy: fy, Ppx: cx, Ppy: cy}
	c.SetDistortion(d1, d2, d3, d4)
	c.SetExtrinsic(rotation, translation)
}

// SetIntrinsicBase sets the principal point and focal length.
func (c *Calibration) SetIntrinsicBase(cx, cy, fx, fy float64) {
	c.intrinsics.Ppx = cx
	c.intrinsics.Ppy = cy
	c.intrinsics.Fx = fx
	c.intrinsics.Fy = fy
}

// SetIntrinsics replaces the sensor size, principal point and focal length.
func (c *Calibration) SetIntrinsics(intrinsics PinholeCameraIntrinsics) {
	c.intrinsics = intrinsics
}

// SetDistortion sets the radial (d1, d2) and tangential (d3, d4) coefficients.
func (c *Calibration) SetDistortion(d1, d2, d3, d4 float64) {
	c.distortion = BrownConrady{RadialK1: d1, RadialK2: d2, TangentialP1: d3, TangentialP2: d4}
}

// SetRotation sets the world to camera rotation and refreshes the inverse transform.
func (c *Calibration) SetRotation(rotation *spatialmath.RotationMatrix) {
	c.rotation = *rotation
	c.updateInverse()
}

// SetTranslation sets the world to camera translation and refreshes the inverse transform.
func (c *Calibration) SetTranslation(translation r3.Vector) {
	c.translation = translation
	c.updateInverse()
}

// SetExtrinsic sets rotation and translation together and refreshes the inverse transform.
func (c *Calibration) SetExtrinsic(rotation *spatialmath.RotationMatrix, translation r3.Vector) {
	c.rotation = *rotation
	c.translation = translation
	c.updateInverse()
}

func (c *Calibration) updateInverse() {
	c.rotationInverse = *c.rotation.Transpose()
	c.translationInverse = c.rotationInverse.MulVector(c.translation).Mul(-1)
}

// Intrinsics returns a copy of the intrinsic parameters.
func (c *Calibration) Intrinsics() PinholeCameraIntrinsics {
	return c.intrinsics
}

// Distortion returns a copy of the distortion model.
func (c *Calibration) Distortion() *BrownConrady {
	out := c.distortion
	return &out
}

// Rotation returns a copy of the world to camera rotation.
func (c *Calibration) Rotation() *spatialmath.RotationMatrix {
	out := c.rotation
	return &out
}

// Translation returns the world to camera translation.
func (c *Calibration) Translation() r3.Vector {
	return c.translation
}

// RotationInverse returns a copy of the cached camera to world rotation.
func (c *Calibration) RotationInverse() *spatialmath.RotationMatrix {
	out := c.rotationInverse
	return &out
}

// TranslationInverse returns the cached camera to world translation, i.e. the camera centre.
func (c *Calibration) TranslationInverse() r3.Vector {
	return c.translationInverse
}

// WorldToCameraCoordinates computes R*p + t.
func (c *Calibration) WorldToCameraCoordinates(worldPoint r3.Vector) r3.Vector {
	return c.rotation.MulVector(worldPoint).Add(c.translation)
}

// CameraToWorldCoordinates computes Rᵗ*p - Rᵗ*t using the cached inverse.
func (c *Calibration) CameraToWorldCoordinates(cameraPoint r3.Vector) r3.Vector {
	return c.rotationInverse.MulVector(cameraPoint).Add(c.translationInverse)
}

// CameraToImageCoordinates projects a camera frame point with the pinhole model and
// optionally distorts the result.
func (c *Calibration) CameraToImageCoordinates(cameraPoint r3.Vector, applyDistortion bool) r2.Point {
	u, v := c.intrinsics.PointToPixel(cameraPoint.X, cameraPoint.Y, cameraPoint.Z)
	imagePoint := r2.Point{X: u, Y: v}
	if applyDistortion {
		return c.DistortImageCoordinates(imagePoint)
	}
	return imagePoint
}

// ImageToCameraCoordinates back-projects an image point onto the plane z = zc of the camera
// frame. The pixel is optionally undistorted first.
func (c *Calibration) ImageToCameraCoordinates(imagePoint r2.Point, zc float64, applyDistortion bool) r3.Vector {
	if applyDistortion {
		imagePoint = c.UndistortImageCoordinates(imagePoint)
	}
	x, y, z := c.intrinsics.PixelToPoint(imagePoint.X, imagePoint.Y, zc)
	return r3.Vector{X: x, Y: y, Z: z}
}

// WorldToImageCoordinates projects a world point into the image.
func (c *Calibration) WorldToImageCoordinates(worldPoint r3.Vector, applyDistortion bool) r2.Point {
	return c.CameraToImageCoordinates(c.WorldToCameraCoordinates(worldPoint), applyDistortion)
}

// ImageToWorldCoordinates back-projects an image point at camera depth zc into the world frame.
func (c *Calibration) ImageToWorldCoordinates(imagePoint r2.Point, zc float64, applyDistortion bool) r3.Vector {
	return c.CameraToWorldCoordinates(c.ImageToCameraCoordinates(imagePoint, zc, applyDistortion))
}

// DistortImageCoordinates maps an undistorted pixel to where the lens images it.
func (c *Calibration) DistortImageCoordinates(undistorted r2.Point) r2.Point {
	if c.distortion.IsZero() {
		return undistorted
	}
	n := c.intrinsics.Normalize(undistorted)
	x, y := c.distortion.Transform(n.X, n.Y)
	return c.intrinsics.Denormalize(r2.Point{X: x, Y: y})
}

// UndistortImageCoordinates inverts DistortImageCoordinates with UndistortIterations
// fixed-point iterations.
func (c *Calibration) UndistortImageCoordinates(distorted r2.Point) r2.Point {
	if c.distortion.IsZero() {
		return distorted
	}
	inverse := InverseBrownConrady{c.distortion}
	n := c.intrinsics.Normalize(distorted)
	x, y := inverse.Transform(n.X, n.Y)
	return c.intrinsics.Denormalize(r2.Point{X: x, Y: y})
}

// GetCalibrationMatrix returns K = [[fx, 0, cx], [0, fy, cy], [0, 0, 1]].
func (c *Calibration) GetCalibrationMatrix() *mat.Dense {
	return c.intrinsics.GetCameraMatrix()
}

// GetProjectionMatrix returns P = K*R and p = K*t.
func (c *Calibration) GetProjectionMatrix() (*mat.Dense, r3.Vector) {
	return projectionWithCameraMatrix(c.GetCalibrationMatrix(), &c.rotation, c.translation)
}

// GetProjectionMatrix3x4 returns the full projection [K*R | K*t].
func (c *Calibration) GetProjectionMatrix3x4() *mat.Dense {
	p, t := c.GetProjectionMatrix()
	var out mat.Dense
	out.Augment(p, mat.NewDense(3, 1, []float64{t.X, t.Y, t.Z}))
	return &out
}

func projectionWithCameraMatrix(k mat.Matrix, rotation *spatialmath.RotationMatrix, translation r3.Vector) (*mat.Dense, r3.Vector) {
	var p mat.Dense
	p.Mul(k, rotation.Dense())
	return &p, mulVec(k, translation)
}

// mulVec computes m*v for a 3x3 matrix.
func mulVec(m mat.Matrix, v r3.Vector) r3.Vector {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{v.X, v.Y, v.Z}))
	return r3.Vector{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}
