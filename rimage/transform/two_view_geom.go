package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
)

// GetEssentialMatrixFromFundamental returns the essential matrix E = K2ᵗ*F*K1 with its two
// non-zero singular values set to 1.
func GetEssentialMatrixFromFundamental(k1, k2, f mat.Matrix) (*mat.Dense, error) {
	var essMat, tmp mat.Dense
	tmp.Mul(k2.T(), f)
	essMat.Mul(&tmp, k1)
	// enforce rank 2
	mats, err := performSVD(&essMat)
	if err != nil {
		return nil, err
	}
	s := eye(3)
	s.Set(2, 2, 0)

	var us mat.Dense
	us.Mul(mats.U, s)
	essMat.Mul(&us, mats.VT)
	return &essMat, nil
}

// DecomposeEssentialMatrix decomposes the Essential matrix into 2 possible 3D rotations and a 3D translation.
func DecomposeEssentialMatrix(essMat *mat.Dense) (*mat.Dense, *mat.Dense, *mat.Dense, error) {
	mats, err := performSVD(essMat)
	if err != nil {
		return nil, nil, nil, err
	}
	// U and V must be proper rotations
	if mat.Det(mats.U) < 0 {
		mats.U.Scale(-1, mats.U)
	}
	if mat.Det(mats.VT) < 0 {
		mats.VT.Scale(-1, mats.VT)
	}
	w := mat.NewDense(3, 3, []float64{
		0, 1, 0,
		-1, 0, 0,
		0, 0, 1,
	})
	// UWVᵗ and UWᵗVᵗ
	var uw, uwt, r1, r2 mat.Dense
	uw.Mul(mats.U, w)
	r1.Mul(&uw, mats.VT)
	uwt.Mul(mats.U, w.T())
	r2.Mul(&uwt, mats.VT)

	u3 := mats.U.ColView(2)
	t := mat.NewDense(3, 1, []float64{u3.AtVec(0), u3.AtVec(1), u3.AtVec(2)})
	return &r1, &r2, t, nil
}

// Convert2DPointToHomogeneousPoint returns (x, y, 1).
func Convert2DPointToHomogeneousPoint(pt r2.Point) r3.Vector {
	return r3.Vector{X: pt.X, Y: pt.Y, Z: 1}
}

// Convert2DPointsToHomogeneousPoints converts float64 image coordinates to homogeneous float64 coordinates.
func Convert2DPointsToHomogeneousPoints(pts []r2.Point) []r3.Vector {
	return lo.Map(pts, func(pt r2.Point, _ int) r3.Vector {
		return Convert2DPointToHomogeneousPoint(pt)
	})
}

// ComputeFundamentalMatrixAllPoints estimates the fundamental matrix from at least 8 matched points
// such that pts2ᵗ*F*pts1 = 0, with the normalized 8-point algorithm when normalize is set.
// The result is scaled so that F[2][2] = 1.
func ComputeFundamentalMatrixAllPoints(pts1, pts2 []r2.Point, normalize bool) (*mat.Dense, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	if len(pts1) < 8 {
		return nil, errors.New("sets of points must have at least 8 elements")
	}
	nPoints := len(pts1)

	points1, points2 := pts1, pts2
	t1, t2 := eye(3), eye(3)
	if normalize {
		points1, t1 = normalizePoints(pts1)
		points2, t2 = normalizePoints(pts2)
	}

	m := mat.NewDense(nPoints, 9, nil)
	for i := range points1 {
		v1 := points1[i]
		v2 := points2[i]
		m.SetRow(i, []float64{
			v2.X * v1.X, v2.X * v1.Y, v2.X,
			v2.Y * v1.X, v2.Y * v1.Y, v2.Y,
			v1.X, v1.Y, 1,
		})
	}

	mats1, err := performSVD(m)
	if err != nil {
		return nil, err
	}
	lastColV := mats1.V.ColView(8)
	f := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		f.Set(i/3, i%3, lastColV.AtVec(i))
	}

	// enforce rank 2 of F
	mats2, err := performSVD(f)
	if err != nil {
		return nil, err
	}
	mats2.S.Set(2, 2, 0)
	var us, fHat mat.Dense
	us.Mul(mats2.U, mats2.S)
	fHat.Mul(&us, mats2.VT)

	// undo the normalization: T2ᵗ*F*T1
	var tmp, out mat.Dense
	tmp.Mul(t2.T(), &fHat)
	out.Mul(&tmp, t1)
	out.Scale(1/out.At(2, 2), &out)
	return &out, nil
}

// normalizePoints normalizes points as described in Multiple View Geometry, Alg 11.1.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense) {
	nPoints := float64(len(pts))
	mu := r2.Point{}
	for _, pt := range pts {
		mu = mu.Add(pt)
	}
	mu = mu.Mul(1. / nPoints)

	d := 0.0
	for _, pt := range pts {
		d += pt.Sub(mu).Norm() / nPoints
	}
	scale := math.Sqrt(2) / d
	t := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	})
	pointsTransformed := lo.Map(pts, func(pt r2.Point, _ int) r2.Point {
		return pt.Sub(mu).Mul(scale)
	})
	return pointsTransformed, t
}

// eye create an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// getCrossProductMatFromPoint returns [p]ₓ, the matrix with [p]ₓ*q = p×q.
func getCrossProductMatFromPoint(p r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -p.Z, p.Y,
		p.Z, 0, -p.X,
		-p.Y, p.X, 0,
	})
}

// matsSVD stores the matrices from SVD decomposition.
type matsSVD struct {
	U  *mat.Dense
	V  *mat.Dense
	VT *mat.Dense
	S  *mat.Dense
}

// performSVD performs SVD on inputMatrix and returns matrices U, Sigma and V from the decomposition.
func performSVD(inputMatrix mat.Matrix) (*matsSVD, error) {
	var svd mat.SVD
	if ok := svd.Factorize(inputMatrix, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize matrix")
	}

	u, v, sigma, vt := &mat.Dense{}, &mat.Dense{}, &mat.Dense{}, &mat.Dense{}
	svd.UTo(u)
	svd.VTo(v)
	vt.CloneFrom(v.T())
	singularValues := svd.Values(nil)
	sigma.CloneFrom(mat.NewDiagDense(len(singularValues), singularValues))
	return &matsSVD{u, v, vt, sigma}, nil
}
