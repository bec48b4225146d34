package transform

import (
	"encoding/json"
	"io"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.viam.com/utils"

	"go.viam.com/camgeom/logging"
	"go.viam.com/camgeom/spatialmath"
)

// CameraConfig describes a single camera. Parameters are read from ParametersFile when it is set
// and every other non-empty field then overrides what was loaded.
type CameraConfig struct {
	ParametersFile   string                   `json:"parameters_file,omitempty"`
	CameraIndex      int                      `json:"camera_index,omitempty"`
	ResetExtrinsic   bool                     `json:"reset_extrinsic,omitempty"`
	IntrinsicParams  *PinholeCameraIntrinsics `json:"intrinsic_parameters,omitempty"`
	DistortionParams *BrownConrady            `json:"distortion_parameters,omitempty"`
	Rotation         *spatialmath.R4AA        `json:"rotation,omitempty"`
	RotationMatrix   []float64                `json:"rotation_matrix,omitempty"`
	Translation      *r3.Vector               `json:"translation,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *CameraConfig) Validate(path string) error {
	if conf.ParametersFile == "" && conf.IntrinsicParams == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "intrinsic_parameters")
	}
	if conf.CameraIndex < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("camera_index must be non-negative, got %d", conf.CameraIndex))
	}
	if conf.IntrinsicParams != nil {
		if err := conf.IntrinsicParams.CheckValid(); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if conf.DistortionParams != nil {
		if err := conf.DistortionParams.CheckValid(); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if conf.Rotation != nil && conf.RotationMatrix != nil {
		return utils.NewConfigValidationError(path, errors.New("only one of rotation and rotation_matrix may be set"))
	}
	if conf.Rotation != nil {
		if err := conf.Rotation.CheckValid(); err != nil {
			return utils.NewConfigValidationError(path, errors.Wrap(err, "invalid rotation"))
		}
	}
	if conf.RotationMatrix != nil {
		if _, err := spatialmath.NewRotationMatrix(conf.RotationMatrix); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

func (conf *CameraConfig) rotationMatrix() (*spatialmath.RotationMatrix, error) {
	switch {
	case conf.RotationMatrix != nil:
		return spatialmath.NewRotationMatrix(conf.RotationMatrix)
	case conf.Rotation != nil:
		return conf.Rotation.RotationMatrix(), nil
	default:
		return nil, nil
	}
}

// StereoConfig describes a stereo rig, either as a stereo parameter file or as two cameras.
type StereoConfig struct {
	ParametersFile               string        `json:"parameters_file,omitempty"`
	Left                         *CameraConfig `json:"left,omitempty"`
	Right                        *CameraConfig `json:"right,omitempty"`
	KeepIdentityFrame            bool          `json:"keep_identity_frame,omitempty"`
	RectificationHomographyLeft  []float64     `json:"rectification_homography_left,omitempty"`
	RectificationHomographyRight []float64     `json:"rectification_homography_right,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *StereoConfig) Validate(path string) error {
	if conf.ParametersFile != "" {
		if conf.Left != nil || conf.Right != nil {
			return utils.NewConfigValidationError(path, errors.New("cameras cannot be given together with parameters_file"))
		}
	} else {
		if conf.Left == nil {
			return utils.NewConfigValidationFieldRequiredError(path, "left")
		}
		if conf.Right == nil {
			return utils.NewConfigValidationFieldRequiredError(path, "right")
		}
		if err := conf.Left.Validate(path + ".left"); err != nil {
			return err
		}
		if err := conf.Right.Validate(path + ".right"); err != nil {
			return err
		}
	}
	if (conf.RectificationHomographyLeft == nil) != (conf.RectificationHomographyRight == nil) {
		return utils.NewConfigValidationError(path, errors.New("rectification homographies must be given in pairs"))
	}
	for _, h := range [][]float64{conf.RectificationHomographyLeft, conf.RectificationHomographyRight} {
		if h == nil {
			continue
		}
		if _, err := NewHomography(h); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// NewStereoConfigFromJSONFile reads a StereoConfig from a JSON file and validates it. The file
// may use JSON5 syntax, so comments and trailing commas are accepted.
func NewStereoConfigFromJSONFile(jsonPath string) (*StereoConfig, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)

	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	// JSON5 is only the surface syntax; fields bind through their json tags.
	var raw interface{}
	if err := json5.Unmarshal(byteValue, &raw); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	byteValue, err = json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	conf := &StereoConfig{}
	if err := json.Unmarshal(byteValue, conf); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if err := conf.Validate(jsonPath); err != nil {
		return nil, err
	}
	return conf, nil
}

// NewCalibrationFromConfig builds a Calibration from a validated CameraConfig.
func NewCalibrationFromConfig(conf *CameraConfig, logger logging.Logger) (*Calibration, error) {
	if err := conf.Validate(""); err != nil {
		return nil, err
	}
	c := NewCalibration()
	if conf.ParametersFile != "" {
		if err := c.LoadCameraParameters(conf.ParametersFile, conf.CameraIndex, conf.ResetExtrinsic); err != nil {
			return nil, err
		}
		logger.Debugw("loaded camera parameters", "file", conf.ParametersFile, "index", conf.CameraIndex)
	}
	if conf.IntrinsicParams != nil {
		c.SetIntrinsics(*conf.IntrinsicParams)
	}
	if conf.DistortionParams != nil {
		d := conf.DistortionParams
		c.SetDistortion(d.RadialK1, d.RadialK2, d.TangentialP1, d.TangentialP2)
	}
	rotation, err := conf.rotationMatrix()
	if err != nil {
		return nil, err
	}
	if rotation != nil {
		if !rotation.IsOrthonormal(1e-6) {
			logger.Warnw("camera rotation is not orthonormal", "rotation", rotation.Data())
		}
		c.SetRotation(rotation)
	}
	if conf.Translation != nil {
		c.SetTranslation(*conf.Translation)
	}
	return c, nil
}

// NewStereoCalibrationFromConfig builds a StereoCalibration from a validated StereoConfig.
func NewStereoCalibrationFromConfig(conf *StereoConfig, logger logging.Logger) (*StereoCalibration, error) {
	if err := conf.Validate(""); err != nil {
		return nil, err
	}
	s := NewStereoCalibration()
	if conf.ParametersFile != "" {
		if err := s.LoadCameraParameters(conf.ParametersFile, conf.KeepIdentityFrame); err != nil {
			return nil, err
		}
		logger.Debugw("loaded stereo parameters", "file", conf.ParametersFile)
	} else {
		left, err := NewCalibrationFromConfig(conf.Left, logger.Sublogger("left"))
		if err != nil {
			return nil, errors.Wrap(err, "left camera")
		}
		right, err := NewCalibrationFromConfig(conf.Right, logger.Sublogger("right"))
		if err != nil {
			return nil, errors.Wrap(err, "right camera")
		}
		s.SetSingleCalibrations(left, right, conf.KeepIdentityFrame)
	}
	if conf.RectificationHomographyLeft != nil {
		hl, err := NewHomography(conf.RectificationHomographyLeft)
		if err != nil {
			return nil, err
		}
		hr, err := NewHomography(conf.RectificationHomographyRight)
		if err != nil {
			return nil, err
		}
		s.SetRectificationHomographies(hl, hr)
	}
	logger.Debugw("stereo rig ready", "width", s.Width(), "height", s.Height(), "baseline", s.Right().TranslationInverse().Sub(s.Left().TranslationInverse()).Norm())
	return s, nil
}
