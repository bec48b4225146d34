package pointcloud

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// CloudMatrixCol is a type that represents the columns of a CloudMatrix.
type CloudMatrixCol int

const (
	// CloudMatrixColX is the x column in the cloud matrix.
	CloudMatrixColX CloudMatrixCol = iota
	// CloudMatrixColY is the y column in the cloud matrix.
	CloudMatrixColY
	// CloudMatrixColZ is the z column in the cloud matrix.
	CloudMatrixColZ
	// CloudMatrixColR is the r column in the cloud matrix.
	CloudMatrixColR
	// CloudMatrixColG is the g column in the cloud matrix.
	CloudMatrixColG
	// CloudMatrixColB is the b column in the cloud matrix.
	CloudMatrixColB
	// CloudMatrixColV is the value column in the cloud matrix.
	CloudMatrixColV
)

// CloudMatrix Returns a Matrix representation of a Cloud along with a Header list.
// The Header list is a list of CloudMatrixCols that correspond to the columns in the matrix.
// CloudMatrix is not guaranteed to return points in the same order as the cloud.
func CloudMatrix(pc PointCloud) (*mat.Dense, []CloudMatrixCol) {
	if pc.Size() == 0 {
		return nil, nil
	}
	header := []CloudMatrixCol{CloudMatrixColX, CloudMatrixColY, CloudMatrixColZ}
	meta := pc.MetaData()
	if meta.HasColor {
		header = append(header, CloudMatrixColR, CloudMatrixColG, CloudMatrixColB)
	}
	if meta.HasValue {
		header = append(header, CloudMatrixColV)
	}
	nCols := len(header)

	matData := make([]float64, 0, pc.Size()*nCols)
	pc.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		matData = append(matData, p.X, p.Y, p.Z)
		if meta.HasColor {
			var r, g, b uint8
			if d != nil && d.HasColor() {
				r, g, b = d.RGB255()
			}
			matData = append(matData, float64(r), float64(g), float64(b))
		}
		if meta.HasValue {
			var v int
			if d != nil && d.HasValue() {
				v = d.Value()
			}
			matData = append(matData, float64(v))
		}
		return true
	})
	return mat.NewDense(pc.Size(), nCols, matData), header
}
