package transform

import "github.com/pkg/errors"

// DistortionType names a lens model.
type DistortionType string

const (
	// BrownConradyDistortionType applies radial and tangential distortion to undistorted points.
	BrownConradyDistortionType = DistortionType("brown_conrady")
	// InverseBrownConradyDistortionType removes Brown-Conrady distortion from distorted points.
	InverseBrownConradyDistortionType = DistortionType("inverse_brown_conrady")
)

// Distorter maps normalized image coordinates through a lens model.
type Distorter interface {
	ModelType() DistortionType
	CheckValid() error
	Parameters() []float64
	Transform(x, y float64) (float64, float64)
}

var errInvalidDistortion = errors.New("invalid distortion_parameters")

// InvalidDistortionError reports bad distortion coefficients; msg says what was wrong.
func InvalidDistortionError(msg string) error {
	return errors.Wrap(errInvalidDistortion, msg)
}

var distorterConstructors = map[DistortionType]func([]float64) (Distorter, error){
	BrownConradyDistortionType: func(p []float64) (Distorter, error) {
		bc, err := NewBrownConrady(p)
		if err != nil {
			return nil, err
		}
		return bc, nil
	},
	InverseBrownConradyDistortionType: func(p []float64) (Distorter, error) {
		ibc, err := NewInverseBrownConrady(p)
		if err != nil {
			return nil, err
		}
		return ibc, nil
	},
}

// NewDistorter builds the named model from its coefficients and checks them.
func NewDistorter(distortionType DistortionType, parameters []float64) (Distorter, error) {
	newDistorter, ok := distorterConstructors[distortionType]
	if !ok {
		return nil, errors.Errorf("do not know how to parse %q distortion model", distortionType)
	}
	d, err := newDistorter(parameters)
	if err != nil {
		return nil, err
	}
	if err := d.CheckValid(); err != nil {
		return nil, err
	}
	return d, nil
}
