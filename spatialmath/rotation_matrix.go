package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/camgeom/utils"
)

// RotationMatrix is a 3x3 matrix in row major order.
// m[3*r + c] is the element in the r'th row and c'th column.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates the rotation matrix from a 9 element slice in row major order.
func NewRotationMatrix(m []float64) (*RotationMatrix, error) {
	if len(m) != 9 {
		return nil, errors.Errorf("input slice has %d elements, need exactly 9", len(m))
	}
	var rm RotationMatrix
	copy(rm.mat[:], m)
	return &rm, nil
}

// NewIdentityRotationMatrix returns the rotation matrix that does not rotate.
func NewIdentityRotationMatrix() *RotationMatrix {
	return &RotationMatrix{[9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// NewRotationMatrixFromDense copies the upper left 3x3 block of a dense matrix.
func NewRotationMatrixFromDense(m mat.Matrix) (*RotationMatrix, error) {
	r, c := m.Dims()
	if r < 3 || c < 3 {
		return nil, errors.Errorf("matrix of size %dx%d cannot hold a rotation", r, c)
	}
	var rm RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rm.mat[3*i+j] = m.At(i, j)
		}
	}
	return &rm, nil
}

// QuatToRotationMatrix converts a unit quaternion to a rotation matrix.
func QuatToRotationMatrix(q quat.Number) *RotationMatrix {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{[9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}}
}

// At returns the element in the given row and column.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[3*row+col]
}

// Row returns the given row as a vector.
func (rm *RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm.mat[3*row], Y: rm.mat[3*row+1], Z: rm.mat[3*row+2]}
}

// Col returns the given column as a vector.
func (rm *RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.mat[col], Y: rm.mat[3+col], Z: rm.mat[6+col]}
}

// Data returns a row major copy of the matrix elements.
func (rm *RotationMatrix) Data() []float64 {
	out := make([]float64, 9)
	copy(out, rm.mat[:])
	return out
}

// Dense returns the matrix as a gonum dense matrix.
func (rm *RotationMatrix) Dense() *mat.Dense {
	return mat.NewDense(3, 3, rm.Data())
}

// Transpose returns the transposed matrix, which is the inverse for a proper rotation.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.mat[3*j+i] = rm.mat[3*i+j]
		}
	}
	return &out
}

// Mul returns the product rm * other.
func (rm *RotationMatrix) Mul(other *RotationMatrix) *RotationMatrix {
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.mat[3*i+j] = rm.mat[3*i]*other.mat[j] + rm.mat[3*i+1]*other.mat[3+j] + rm.mat[3*i+2]*other.mat[6+j]
		}
	}
	return &out
}

// MulVector returns the product rm * v.
func (rm *RotationMatrix) MulVector(v r3.Vector) r3.Vector {
	return r3.Vector{X: rm.Row(0).Dot(v), Y: rm.Row(1).Dot(v), Z: rm.Row(2).Dot(v)}
}

// Determinant returns the determinant of the matrix; 1 for a proper rotation.
func (rm *RotationMatrix) Determinant() float64 {
	return rm.Row(0).Dot(rm.Row(1).Cross(rm.Row(2)))
}

// IsOrthonormal reports whether RᵗR is the identity and det(R) is 1 within epsilon.
func (rm *RotationMatrix) IsOrthonormal(epsilon float64) bool {
	prod := rm.Transpose().Mul(rm)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.
			if i == j {
				want = 1.
			}
			if !utils.Float64AlmostEqual(prod.At(i, j), want, epsilon) {
				return false
			}
		}
	}
	return utils.Float64AlmostEqual(rm.Determinant(), 1, epsilon)
}

// RotationMatrixAlmostEqual returns whether two rotation matrices are elementwise equal within epsilon.
func RotationMatrixAlmostEqual(a, b *RotationMatrix, epsilon float64) bool {
	for i := range a.mat {
		if !utils.Float64AlmostEqual(a.mat[i], b.mat[i], epsilon) {
			return false
		}
	}
	return true
}
