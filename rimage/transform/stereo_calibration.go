package transform

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/camgeom/spatialmath"
)

// DefaultBaseline is the right camera translation of a freshly constructed StereoCalibration.
var DefaultBaseline = r3.Vector{X: -100}

// StereoCalibration is a calibrated pair of cameras. It derives the fundamental matrix of the
// pair and exposes epipolar and triangulation queries over it.
//
// F always reflects the relative pose of the two cameras, whichever world frame they are
// currently expressed in. It is recomputed eagerly by every method that changes extrinsics.
type StereoCalibration struct {
	left  Calibration
	right Calibration

	width, height int

	f  mat.Dense
	ft mat.Dense

	rectificationHomographyLeft  Homography
	rectificationHomographyRight Homography
}

// NewStereoCalibration returns a pair of default cameras with the right camera at DefaultBaseline.
func NewStereoCalibration() *StereoCalibration {
	s := &StereoCalibration{
		rectificationHomographyLeft:  *NewIdentityHomography(),
		rectificationHomographyRight: *NewIdentityHomography(),
	}
	left := NewCalibration()
	right := NewCalibration()
	right.SetTranslation(DefaultBaseline)
	s.SetSingleCalibrations(left, right, false)
	return s
}

// Set copies the full state of other into s.
func (s *StereoCalibration) Set(other *StereoCalibration) {
	s.left.Set(&other.left)
	s.right.Set(&other.right)
	s.width, s.height = other.width, other.height
	s.f.CloneFrom(&other.f)
	s.ft.CloneFrom(&other.ft)
	s.rectificationHomographyLeft = other.rectificationHomographyLeft
	s.rectificationHomographyRight = other.rectificationHomographyRight
}

// Clone returns an independent copy of s.
func (s *StereoCalibration) Clone() *StereoCalibration {
	out := &StereoCalibration{}
	out.Set(s)
	return out
}

// SetSingleCalibrations copies both cameras into the rig and recomputes F. With
// keepIdentityFrame the cameras are left in the left camera's frame, otherwise their
// extrinsics are kept as given.
func (s *StereoCalibration) SetSingleCalibrations(left, right *Calibration, keepIdentityFrame bool) {
	s.left.Set(left)
	s.right.Set(right)
	s.width = left.intrinsics.Width
	s.height = left.intrinsics.Height
	s.updateRelativePose(keepIdentityFrame)
}

// SetExtrinsicParameters sets the extrinsics of both cameras and recomputes F. With
// keepIdentityFrame the cameras are left in the left camera's frame, otherwise the given
// extrinsics are kept.
func (s *StereoCalibration) SetExtrinsicParameters(
	leftRotation *spatialmath.RotationMatrix, leftTranslation r3.Vector,
	rightRotation *spatialmath.RotationMatrix, rightTranslation r3.Vector,
	keepIdentityFrame bool,
) {
	s.left.SetExtrinsic(leftRotation, leftTranslation)
	s.right.SetExtrinsic(rightRotation, rightTranslation)
	s.updateRelativePose(keepIdentityFrame)
}

// TransformLeftCameraToIdentity re-expresses both cameras in the left camera's frame.
// F is unchanged by construction.
func (s *StereoCalibration) TransformLeftCameraToIdentity() {
	rp := ComputeRelativePose(&s.left, &s.right)
	s.left.Set(rp.Left)
	s.right.Set(rp.Right)
}

// CalculateFundamentalMatrix recomputes F and Fᵗ from the current cameras.
func (s *StereoCalibration) CalculateFundamentalMatrix() {
	s.setFundamentalMatrix(ComputeRelativePose(&s.left, &s.right).F)
}

func (s *StereoCalibration) updateRelativePose(keepIdentityFrame bool) {
	rp := ComputeRelativePose(&s.left, &s.right)
	s.setFundamentalMatrix(rp.F)
	if keepIdentityFrame {
		s.left.Set(rp.Left)
		s.right.Set(rp.Right)
	}
}

func (s *StereoCalibration) setFundamentalMatrix(f *mat.Dense) {
	s.f.CloneFrom(f)
	s.ft.CloneFrom(f.T())
}

// Left returns a copy of the left camera.
func (s *StereoCalibration) Left() *Calibration {
	return s.left.Clone()
}

// Right returns a copy of the right camera.
func (s *StereoCalibration) Right() *Calibration {
	return s.right.Clone()
}

// Width is the left camera's image width, used for epipolar segment clipping.
func (s *StereoCalibration) Width() int {
	return s.width
}

// Height is the left camera's image height, used for epipolar segment clipping.
func (s *StereoCalibration) Height() int {
	return s.height
}

// FundamentalMatrix returns a copy of F.
func (s *StereoCalibration) FundamentalMatrix() *mat.Dense {
	return mat.DenseCopyOf(&s.f)
}

// RectificationHomographyLeft returns the homography mapping rectified left pixels to original ones.
func (s *StereoCalibration) RectificationHomographyLeft() *Homography {
	h := s.rectificationHomographyLeft
	return &h
}

// RectificationHomographyRight returns the homography mapping rectified right pixels to original ones.
func (s *StereoCalibration) RectificationHomographyRight() *Homography {
	h := s.rectificationHomographyRight
	return &h
}

// SetRectificationHomographies stores the homographies of an external rectification.
// Each maps pixels of the rectified image back to the original image.
func (s *StereoCalibration) SetRectificationHomographies(left, right *Homography) {
	s.rectificationHomographyLeft = *left
	s.rectificationHomographyRight = *right
}

// GetProjectionMatricesForRectifiedImages returns P = K'*R and p = K'*t for both cameras,
// where K' = H⁻¹*K folds in the camera's rectification homography.
func (s *StereoCalibration) GetProjectionMatricesForRectifiedImages() (
	leftP *mat.Dense, leftT r3.Vector, rightP *mat.Dense, rightT r3.Vector, err error,
) {
	leftP, leftT, err = rectifiedProjection(&s.left, &s.rectificationHomographyLeft)
	if err != nil {
		return nil, r3.Vector{}, nil, r3.Vector{}, errors.Wrap(err, "left camera")
	}
	rightP, rightT, err = rectifiedProjection(&s.right, &s.rectificationHomographyRight)
	if err != nil {
		return nil, r3.Vector{}, nil, r3.Vector{}, errors.Wrap(err, "right camera")
	}
	return leftP, leftT, rightP, rightT, nil
}

func rectifiedProjection(c *Calibration, h *Homography) (*mat.Dense, r3.Vector, error) {
	inv, err := h.Inverse()
	if err != nil {
		return nil, r3.Vector{}, err
	}
	var k mat.Dense
	k.Mul(inv.Dense(), c.GetCalibrationMatrix())
	p, t := projectionWithCameraMatrix(&k, &c.rotation, c.translation)
	return p, t, nil
}

// LoadCameraParameters reads a stereo parameter file. Extrinsics are handled as in
// SetExtrinsicParameters. The rig is only modified if the whole file parses.
func (s *StereoCalibration) LoadCameraParameters(path string, keepIdentityFrame bool) error {
	pr, err := newParameterReader(path)
	if err != nil {
		return err
	}
	if err := pr.readCameraCount(2); err != nil {
		return err
	}
	left, err := pr.readCamera()
	if err != nil {
		return errors.Wrap(err, "left camera")
	}
	right, err := pr.readCamera()
	if err != nil {
		return errors.Wrap(err, "right camera")
	}
	if err := pr.skip("placeholder", stereoPlaceholderFieldCount); err != nil {
		return err
	}
	hl, err := pr.readHomography("left rectification homography")
	if err != nil {
		return err
	}
	hr, err := pr.readHomography("right rectification homography")
	if err != nil {
		return err
	}

	loaded := &StereoCalibration{}
	loaded.SetSingleCalibrations(left, right, keepIdentityFrame)
	loaded.SetRectificationHomographies(hl, hr)
	s.Set(loaded)
	return nil
}

func (pr *parameterReader) readHomography(field string) (*Homography, error) {
	vals, err := pr.nextFloats(field, homographyFieldCount)
	if err != nil {
		return nil, err
	}
	return NewHomography(vals)
}

// SaveCameraParameters writes the rig as a stereo parameter file. Each camera block carries
// that camera's own image size.
func (s *StereoCalibration) SaveCameraParameters(path string) error {
	return writeParameterFile(path, func(w io.Writer) error {
		if _, err := fmt.Fprint(w, "2\n\n"); err != nil {
			return err
		}
		if err := writeCamera(w, &s.left); err != nil {
			return err
		}
		if err := writeCamera(w, &s.right); err != nil {
			return err
		}
		placeholder := strings.TrimSpace(strings.Repeat("0 ", stereoPlaceholderFieldCount/2))
		if _, err := fmt.Fprintf(w, "%s\n%s\n\n", placeholder, placeholder); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%s\n%s\n",
			formatFloats(s.rectificationHomographyLeft.Data()...),
			formatFloats(s.rectificationHomographyRight.Data()...),
		)
		return err
	})
}
