package transform

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/camgeom/spatialmath"
)

// Layout of the whitespace separated parameter files. A camera block is
//
//	width height fx 0 cx 0 fy cy 0 0 1 d1 d2 d3 d4 r1..r9 tx ty tz
//
// where the zeros and the trailing one fill out an OpenCV style camera matrix.
const (
	cameraBlockFieldCount = 27
	// stereo files carry two 8 value rows of unused quad calibration data.
	stereoPlaceholderFieldCount = 16
	homographyFieldCount        = 9
)

// parameterReader walks the tokens of a parameter file.
type parameterReader struct {
	path   string
	tokens []string
	pos    int
}

func newParameterReader(path string) (*parameterReader, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening camera parameter file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)
	pr := &parameterReader{path: path}
	for scanner.Scan() {
		pr.tokens = append(pr.tokens, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "error reading camera parameter file %q", path)
	}
	return pr, nil
}

func (pr *parameterReader) next(field string) (string, error) {
	if pr.pos >= len(pr.tokens) {
		return "", errors.Errorf("%s: unexpected end of file reading %s (field %d)", pr.path, field, pr.pos)
	}
	tok := pr.tokens[pr.pos]
	pr.pos++
	return tok, nil
}

func (pr *parameterReader) nextFloat(field string) (float64, error) {
	tok, err := pr.next(field)
	if err != nil {
		return 0, err
	}
	v, err := cast.ToFloat64E(tok)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: invalid %s (field %d)", pr.path, field, pr.pos-1)
	}
	return v, nil
}

func (pr *parameterReader) nextInt(field string) (int, error) {
	tok, err := pr.next(field)
	if err != nil {
		return 0, err
	}
	v, err := cast.ToIntE(tok)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: invalid %s (field %d)", pr.path, field, pr.pos-1)
	}
	return v, nil
}

func (pr *parameterReader) nextFloats(field string, n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		v, err := pr.nextFloat(fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// skip reads and discards n numeric fields.
func (pr *parameterReader) skip(field string, n int) error {
	_, err := pr.nextFloats(field, n)
	return err
}

// readCameraCount reads the leading camera count and checks that it covers want cameras.
func (pr *parameterReader) readCameraCount(want int) error {
	count, err := pr.nextInt("camera count")
	if err != nil {
		return err
	}
	if count < want {
		return errors.Errorf("%s: file declares %d cameras, need at least %d", pr.path, count, want)
	}
	return nil
}

// readCamera parses one camera block into a new Calibration.
func (pr *parameterReader) readCamera() (*Calibration, error) {
	width, err := pr.nextInt("width")
	if err != nil {
		return nil, err
	}
	height, err := pr.nextInt("height")
	if err != nil {
		return nil, err
	}
	// fx 0 cx 0 fy cy 0 0 1
	k, err := pr.nextFloats("camera matrix", 9)
	if err != nil {
		return nil, err
	}
	d, err := pr.nextFloats("distortion", 4)
	if err != nil {
		return nil, err
	}
	r, err := pr.nextFloats("rotation", 9)
	if err != nil {
		return nil, err
	}
	t, err := pr.nextFloats("translation", 3)
	if err != nil {
		return nil, err
	}
	rotation, err := spatialmath.NewRotationMatrix(r)
	if err != nil {
		return nil, err
	}

	c := NewCalibration()
	c.SetCameraParameters(k[0], k[4], k[2], k[5], d[0], d[1], d[2], d[3],
		rotation, r3.Vector{X: t[0], Y: t[1], Z: t[2]}, width, height)
	return c, nil
}

func formatFloats(values ...float64) string {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(strs, " ")
}

// writeCamera writes one camera block.
func writeCamera(w io.Writer, c *Calibration) error {
	intr := c.Intrinsics()
	t := c.Translation()
	_, err := fmt.Fprintf(w, "%d %d %s\n%s\n%s\n%s\n\n",
		intr.Width, intr.Height,
		formatFloats(intr.Fx, 0, intr.Ppx, 0, intr.Fy, intr.Ppy, 0, 0, 1),
		formatFloats(c.distortion.Parameters()...),
		formatFloats(c.rotation.Data()...),
		formatFloats(t.X, t.Y, t.Z),
	)
	return err
}

// writeParameterFile creates path and hands a buffered writer to write.
func writeParameterFile(path string, write func(w io.Writer) error) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "error creating camera parameter file")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	buf := bufio.NewWriter(f)
	if err := write(buf); err != nil {
		return errors.Wrapf(err, "error writing camera parameter file %q", path)
	}
	return buf.Flush()
}

// LoadCameraParameters reads the cameraIndex'th block (0 indexed) of a parameter file.
// The receiver is only modified if the whole block parses. With resetExtrinsicToIdentity
// the loaded rotation and translation are replaced by identity and zero.
func (c *Calibration) LoadCameraParameters(path string, cameraIndex int, resetExtrinsicToIdentity bool) error {
	if cameraIndex < 0 {
		return errors.Errorf("invalid camera index %d", cameraIndex)
	}
	pr, err := newParameterReader(path)
	if err != nil {
		return err
	}
	if err := pr.readCameraCount(cameraIndex + 1); err != nil {
		return err
	}
	for i := 0; i < cameraIndex; i++ {
		if err := pr.skip(fmt.Sprintf("camera %d", i), cameraBlockFieldCount); err != nil {
			return err
		}
	}
	loaded, err := pr.readCamera()
	if err != nil {
		return err
	}
	if resetExtrinsicToIdentity {
		loaded.SetExtrinsic(spatialmath.NewIdentityRotationMatrix(), r3.Vector{})
	}
	c.Set(loaded)
	return nil
}

// SaveCameraParameters writes c as a single camera parameter file.
func (c *Calibration) SaveCameraParameters(path string) error {
	return writeParameterFile(path, func(w io.Writer) error {
		if _, err := fmt.Fprint(w, "1\n\n"); err != nil {
			return err
		}
		return writeCamera(w, c)
	})
}
