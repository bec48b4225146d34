package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camgeom/spatialmath"
)

// CamPose stores the 3x4 pose matrix as well as the 3D Rotation and Translation matrices.
type CamPose struct {
	PoseMat     *mat.Dense
	Rotation    *mat.Dense
	Translation *mat.Dense
}

// NewCamPoseFromMat creates a pointer to a Camera pose from a 3x4 pose dense matrix.
func NewCamPoseFromMat(pose *mat.Dense) *CamPose {
	u3 := pose.ColView(3)
	t := mat.NewDense(3, 1, []float64{u3.AtVec(0), u3.AtVec(1), u3.AtVec(2)})
	rot := mat.DenseCopyOf(pose.Slice(0, 3, 0, 3))
	return &CamPose{
		PoseMat:     pose,
		Rotation:    rot,
		Translation: t,
	}
}

// Pose returns the extrinsics of c as a CamPose [R|t].
func (c *Calibration) Pose() *CamPose {
	var pose mat.Dense
	pose.Augment(c.rotation.Dense(), mat.NewDense(3, 1, []float64{c.translation.X, c.translation.Y, c.translation.Z}))
	return NewCamPoseFromMat(&pose)
}

// RotationMatrix returns the rotation part of the pose.
func (cp *CamPose) RotationMatrix() (*spatialmath.RotationMatrix, error) {
	return spatialmath.NewRotationMatrixFromDense(cp.Rotation)
}

// TranslationVector returns the translation part of the pose.
func (cp *CamPose) TranslationVector() r3.Vector {
	return r3.Vector{X: cp.Translation.At(0, 0), Y: cp.Translation.At(1, 0), Z: cp.Translation.At(2, 0)}
}

// adjustPoseSign flips the sign of a pose whose rotation has a negative determinant.
func adjustPoseSign(pose *mat.Dense) *mat.Dense {
	if mat.Det(pose.Slice(0, 3, 0, 3)) < 0 {
		pose.Scale(-1, pose)
	}
	return pose
}

// GetPossibleCameraPoses computes all 4 possible poses from the essential matrix.
func GetPossibleCameraPoses(essMat *mat.Dense) ([]*mat.Dense, error) {
	r1, r2, t, err := DecomposeEssentialMatrix(essMat)
	if err != nil {
		return nil, err
	}
	var tOpp mat.Dense
	tOpp.Scale(-1, t)
	poses := make([]mat.Dense, 4)
	poses[0].Augment(r1, t)
	poses[1].Augment(r1, &tOpp)
	poses[2].Augment(r2, t)
	poses[3].Augment(r2, &tOpp)
	return lo.Map(poses, func(_ mat.Dense, i int) *mat.Dense {
		return mat.DenseCopyOf(adjustPoseSign(&poses[i]))
	}), nil
}

// GetNumberPositiveDepth counts the matched normalized points that triangulate in front of both the
// camera at the origin and the camera with the given 3x4 pose.
func GetNumberPositiveDepth(pose *mat.Dense, pts1, pts2 []r3.Vector) int {
	pts3D, err := GetLinearTriangulatedPoints(pose, pts1, pts2)
	if err != nil {
		return 0
	}
	cp := NewCamPoseFromMat(pose)
	rot3 := r3.Vector{X: pose.At(2, 0), Y: pose.At(2, 1), Z: pose.At(2, 2)}
	tz := cp.TranslationVector().Z
	return lo.CountBy(pts3D, func(pt r3.Vector) bool {
		return pt.Z > 0 && rot3.Dot(pt)+tz > 0
	})
}

// GetCorrectCameraPose returns the pose with the most points in front of both cameras.
func GetCorrectCameraPose(poses []*mat.Dense, pts1, pts2 []r3.Vector) *mat.Dense {
	maxNumPosDepth := -1
	var correctPose *mat.Dense
	for _, pose := range poses {
		if n := GetNumberPositiveDepth(pose, pts1, pts2); n > maxNumPosDepth {
			maxNumPosDepth = n
			correctPose = pose
		}
	}
	return mat.DenseCopyOf(correctPose)
}

// EstimateNewPose estimates the pose of the camera that saw pts2 relative to the camera that saw
// pts1, with intrinsics k1 and k2. The translation has unit norm.
func EstimateNewPose(pts1, pts2 []r2.Point, k1, k2 *PinholeCameraIntrinsics) (*CamPose, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("the 2 sets of points don't have the same number of elements")
	}
	fundamentalMatrix, err := ComputeFundamentalMatrixAllPoints(pts1, pts2, true)
	if err != nil {
		return nil, err
	}
	essentialMatrix, err := GetEssentialMatrixFromFundamental(k1.GetCameraMatrix(), k2.GetCameraMatrix(), fundamentalMatrix)
	if err != nil {
		return nil, err
	}
	poses, err := GetPossibleCameraPoses(essentialMatrix)
	if err != nil {
		return nil, err
	}
	normalized := func(k *PinholeCameraIntrinsics, pts []r2.Point) []r3.Vector {
		return Convert2DPointsToHomogeneousPoints(lo.Map(pts, func(pt r2.Point, _ int) r2.Point {
			return k.Normalize(pt)
		}))
	}
	pose := GetCorrectCameraPose(poses, normalized(k1, pts1), normalized(k2, pts2))
	return NewCamPoseFromMat(pose), nil
}
