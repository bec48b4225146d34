package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camgeom/spatialmath"
)

// twoViewScene is a noise-free pair of views of a non planar point set, with the first camera at
// the origin and the second at (rotation, translation).
type twoViewScene struct {
	k1, k2      *PinholeCameraIntrinsics
	rotation    *spatialmath.RotationMatrix
	translation r3.Vector
	points      []r3.Vector
	pts1, pts2  []r2.Point
}

func makeTwoViewScene() *twoViewScene {
	scene := &twoViewScene{
		k1:          &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 580, Fy: 575, Ppx: 321, Ppy: 238},
		k2:          &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 600, Fy: 601, Ppx: 315, Ppy: 245},
		rotation:    rotationFromDegrees(10, 0.2, 1, -0.1),
		translation: r3.Vector{X: -150, Y: 12, Z: 20},
	}
	for i := 0; i < 24; i++ {
		fi := float64(i)
		scene.points = append(scene.points, r3.Vector{
			X: 400 * math.Sin(1.7*fi),
			Y: 300 * math.Cos(2.3*fi),
			Z: 1500 + 700*math.Sin(0.9*fi+0.4),
		})
	}
	for _, p := range scene.points {
		u, v := scene.k1.PointToPixel(p.X, p.Y, p.Z)
		scene.pts1 = append(scene.pts1, r2.Point{X: u, Y: v})
		q := scene.rotation.MulVector(p).Add(scene.translation)
		u, v = scene.k2.PointToPixel(q.X, q.Y, q.Z)
		scene.pts2 = append(scene.pts2, r2.Point{X: u, Y: v})
	}
	return scene
}

// fundamentalMatrix of the scene built through the stereo rig.
func (scene *twoViewScene) fundamentalMatrix() *mat.Dense {
	left := NewCalibration()
	left.SetIntrinsics(*scene.k1)
	right := NewCalibration()
	right.SetIntrinsics(*scene.k2)
	right.SetExtrinsic(scene.rotation, scene.translation)
	return ComputeRelativePose(left, right).F
}

func TestComputeFundamentalMatrixAllPoints(t *testing.T) {
	scene := makeTwoViewScene()
	want := scene.fundamentalMatrix()

	f, err := ComputeFundamentalMatrixAllPoints(scene.pts1, scene.pts2, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.At(2, 2), test.ShouldAlmostEqual, 1)
	test.That(t, fundamentalMatricesEqualUpToScale(f, want, 1e-6), test.ShouldBeTrue)

	// rank 2
	var svd mat.SVD
	test.That(t, svd.Factorize(f, mat.SVDNone), test.ShouldBeTrue)
	values := svd.Values(nil)
	test.That(t, values[2]/values[0], test.ShouldBeLessThan, 1e-12)

	unnormalized, err := ComputeFundamentalMatrixAllPoints(scene.pts1, scene.pts2, false)
	test.That(t, err, test.ShouldBeNil)
	for i := range scene.pts1 {
		x1 := Convert2DPointToHomogeneousPoint(scene.pts1[i])
		x2 := Convert2DPointToHomogeneousPoint(scene.pts2[i])
		fx1 := mulVec(unnormalized, x1)
		test.That(t, x2.Dot(fx1), test.ShouldAlmostEqual, 0, 1e-5*x2.Norm()*fx1.Norm())
	}

	_, err = ComputeFundamentalMatrixAllPoints(scene.pts1[:7], scene.pts2[:7], true)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "at least 8")
	_, err = ComputeFundamentalMatrixAllPoints(scene.pts1, scene.pts2[:10], true)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEssentialMatrix(t *testing.T) {
	scene := makeTwoViewScene()
	e, err := GetEssentialMatrixFromFundamental(scene.k1.GetCameraMatrix(), scene.k2.GetCameraMatrix(), scene.fundamentalMatrix())
	test.That(t, err, test.ShouldBeNil)

	var svd mat.SVD
	test.That(t, svd.Factorize(e, mat.SVDNone), test.ShouldBeTrue)
	values := svd.Values(nil)
	test.That(t, values[0], test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, values[1], test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, values[2], test.ShouldAlmostEqual, 0, 1e-9)

	r1, r2, tr, err := DecomposeEssentialMatrix(e)
	test.That(t, err, test.ShouldBeNil)
	rot1, err := spatialmath.NewRotationMatrixFromDense(r1)
	test.That(t, err, test.ShouldBeNil)
	rot2, err := spatialmath.NewRotationMatrixFromDense(r2)
	test.That(t, err, test.ShouldBeNil)
	for _, rot := range []*spatialmath.RotationMatrix{rot1, rot2} {
		test.That(t, rot.IsOrthonormal(1e-9), test.ShouldBeTrue)
		test.That(t, rot.Determinant(), test.ShouldAlmostEqual, 1, 1e-9)
	}
	test.That(t,
		spatialmath.RotationMatrixAlmostEqual(rot1, scene.rotation, 1e-9) || spatialmath.RotationMatrixAlmostEqual(rot2, scene.rotation, 1e-9),
		test.ShouldBeTrue)

	// the translation is the baseline direction up to sign
	dir := r3.Vector{X: tr.At(0, 0), Y: tr.At(1, 0), Z: tr.At(2, 0)}
	test.That(t, math.Abs(dir.Dot(scene.translation.Normalize())), test.ShouldAlmostEqual, 1, 1e-9)

	poses, err := GetPossibleCameraPoses(e)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, poses, test.ShouldHaveLength, 4)
}

func TestEstimateNewPose(t *testing.T) {
	scene := makeTwoViewScene()
	pose, err := EstimateNewPose(scene.pts1, scene.pts2, scene.k1, scene.k2)
	test.That(t, err, test.ShouldBeNil)

	rotation, err := pose.RotationMatrix()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.RotationMatrixAlmostEqual(rotation, scene.rotation, 1e-6), test.ShouldBeTrue)
	testVectorAlmostEqual(t, pose.TranslationVector(), scene.translation.Normalize(), 1e-6)
	r, c := pose.PoseMat.Dims()
	test.That(t, []int{r, c}, test.ShouldResemble, []int{3, 4})

	// every point is in front of both cameras for the chosen pose only
	pts1 := Convert2DPointsToHomogeneousPoints(normalizeAll(scene.k1, scene.pts1))
	pts2 := Convert2DPointsToHomogeneousPoints(normalizeAll(scene.k2, scene.pts2))
	test.That(t, GetNumberPositiveDepth(pose.PoseMat, pts1, pts2), test.ShouldEqual, len(scene.points))

	_, err = EstimateNewPose(scene.pts1, scene.pts2[:9], scene.k1, scene.k2)
	test.That(t, err, test.ShouldNotBeNil)
}

func normalizeAll(k *PinholeCameraIntrinsics, pts []r2.Point) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, pt := range pts {
		out[i] = k.Normalize(pt)
	}
	return out
}
