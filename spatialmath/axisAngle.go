package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/camgeom/utils"
)

// R4AA is a rotation of Theta radians about the axis (RX, RY, RZ). The axis need not be unit
// length; it is normalized on conversion. This is the form camera rotations take in json
// configs.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA returns the zero rotation about +z.
func NewR4AA() *R4AA {
	return &R4AA{RZ: 1}
}

// R3ToR4 converts a rotation vector, whose length is the angle, to axis-angle form.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta == 0 {
		return NewR4AA()
	}
	axis := aa.Mul(1 / theta)
	return &R4AA{Theta: theta, RX: axis.X, RY: axis.Y, RZ: axis.Z}
}

func (r4 *R4AA) axis() r3.Vector {
	return r3.Vector{X: r4.RX, Y: r4.RY, Z: r4.RZ}
}

// CheckValid rejects non-finite components and a zero axis paired with a nonzero angle.
func (r4 *R4AA) CheckValid() error {
	if !utils.IsFinite(r4.Theta, r4.RX, r4.RY, r4.RZ) {
		return errors.Errorf("axis-angle components must be finite, got %+v", *r4)
	}
	if r4.Theta != 0 && r4.axis().Norm() == 0 {
		return errors.New("axis-angle rotation needs a nonzero axis")
	}
	return nil
}

// ToR3 returns the rotation vector: the unit axis scaled by Theta.
func (r4 *R4AA) ToR3() r3.Vector {
	if r4.Theta == 0 {
		return r3.Vector{}
	}
	return r4.axis().Normalize().Mul(r4.Theta)
}

// Quaternion returns the unit quaternion for the rotation. An angle of zero, or a zero axis,
// gives the identity.
func (r4 *R4AA) Quaternion() quat.Number {
	axis := r4.axis()
	if r4.Theta == 0 || axis.Norm() == 0 {
		return quat.Number{Real: 1}
	}
	axis = axis.Normalize()
	sin, cos := math.Sincos(r4.Theta / 2)
	return quat.Number{Real: cos, Imag: axis.X * sin, Jmag: axis.Y * sin, Kmag: axis.Z * sin}
}

// RotationMatrix returns the rotation as a 3x3 matrix.
func (r4 *R4AA) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(r4.Quaternion())
}
