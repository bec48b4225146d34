package transform

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camgeom/spatialmath"
)

// RelativePose is a stereo pair expressed in the frame of its left camera, together with the
// fundamental matrix of the pair.
type RelativePose struct {
	// F satisfies x_rightᵗ * F * x_left = 0 for corresponding homogeneous pixels.
	F     *mat.Dense
	Left  *Calibration
	Right *Calibration
}

// ComputeRelativePose moves a copy of the pair into the left camera's frame and computes F there.
// The right camera's relative extrinsics are R' = R_right*R_leftᵗ and t' = t_right - R'*t_left.
// Neither input is modified.
func ComputeRelativePose(left, right *Calibration) *RelativePose {
	relRotation := right.rotation.Mul(left.rotation.Transpose())
	relTranslation := right.translation.Sub(relRotation.MulVector(left.translation))

	l := left.Clone()
	l.SetExtrinsic(spatialmath.NewIdentityRotationMatrix(), r3.Vector{})
	r := right.Clone()
	r.SetExtrinsic(relRotation, relTranslation)

	return &RelativePose{
		F:     fundamentalMatrix(l, r),
		Left:  l,
		Right: r,
	}
}

// fundamentalMatrix returns F = K_rightᵗ⁻¹ * [t]ₓ * R * K_left⁻¹ for a pair whose left camera
// sits at the origin.
func fundamentalMatrix(left, right *Calibration) *mat.Dense {
	var essential, tmp, f mat.Dense
	essential.Mul(getCrossProductMatFromPoint(right.translation), right.rotation.Dense())
	tmp.Mul(right.intrinsics.getInverseCameraMatrix().T(), &essential)
	f.Mul(&tmp, left.intrinsics.getInverseCameraMatrix())
	return &f
}
