package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/camgeom/logging"
)

// PCDType is the DATA layout of a pcd file.
type PCDType int

const (
	// PCDAscii writes one whitespace separated record per line.
	PCDAscii PCDType = iota
	// PCDBinary writes packed little endian records.
	PCDBinary
	// PCDCompressed is recognized but not supported.
	PCDCompressed
)

// Clouds are kept in millimeters while PCD files are written in meters.
const pcdUnitsPerMeter = 1000.

// pcdField is one column of a record. Every supported field is 4 bytes wide with a count of 1.
type pcdField struct {
	name string
	kind byte // F, I or U
}

const pcdFieldSize = 4

var (
	pcdFieldX     = pcdField{"x", 'F'}
	pcdFieldY     = pcdField{"y", 'F'}
	pcdFieldZ     = pcdField{"z", 'F'}
	pcdFieldRGB   = pcdField{"rgb", 'I'}
	pcdFieldValue = pcdField{"label", 'I'}
)

// NewFromFile reads a point cloud from disk. Only .pcd files are understood.
func NewFromFile(fn string, logger logging.Logger) (PointCloud, error) {
	if ext := filepath.Ext(fn); ext != ".pcd" {
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	pc, err := ReadPCD(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %q", fn)
	}
	logger.Debugw("read point cloud", "file", fn, "points", pc.Size())
	return pc, nil
}

// WriteToPCDFile writes cloud to fn, replacing any existing file.
func WriteToPCDFile(cloud PointCloud, fn string, outputType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := ToPCD(cloud, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}

// colorToPCDInt packs a color as 0x00RRGGBB. Uncolored points come out red.
func colorToPCDInt(d Data) int {
	if d == nil || !d.HasColor() {
		return 0xFF0000
	}
	r, g, b := d.RGB255()
	return int(r)<<16 | int(g)<<8 | int(b)
}

func pcdIntToColor(c int) color.NRGBA {
	return color.NRGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 255}
}

// pcdFieldsFor lists the columns needed to store clouds with the given metadata.
func pcdFieldsFor(meta MetaData) []pcdField {
	fields := []pcdField{pcdFieldX, pcdFieldY, pcdFieldZ}
	if meta.HasColor {
		fields = append(fields, pcdFieldRGB)
	}
	if meta.HasValue {
		fields = append(fields, pcdFieldValue)
	}
	return fields
}

// ToPCD encodes cloud in PCD v0.7. Point values, when present, are stored in a label column.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	var data string
	switch outputType {
	case PCDAscii:
		data = "ascii"
	case PCDBinary:
		data = "binary"
	case PCDCompressed:
		return errors.New("compressed PCD not yet implemented")
	default:
		return errors.Errorf("unknown pcd type %v", outputType)
	}

	fields := pcdFieldsFor(cloud.MetaData())
	column := func(f func(pcdField) string) string {
		return strings.Join(lo.Map(fields, func(field pcdField, _ int) string { return f(field) }), " ")
	}
	header := fmt.Sprintf("VERSION .7\nFIELDS %s\nSIZE %s\nTYPE %s\nCOUNT %s\n"+
		"WIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA %s\n",
		column(func(f pcdField) string { return f.name }),
		column(func(pcdField) string { return strconv.Itoa(pcdFieldSize) }),
		column(func(f pcdField) string { return string(f.kind) }),
		column(func(pcdField) string { return "1" }),
		cloud.Size(), cloud.Size(), data)
	if _, err := io.WriteString(out, header); err != nil {
		return err
	}

	var err error
	record := make([]float64, len(fields))
	buf := make([]byte, pcdFieldSize*len(fields))
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		for i, field := range fields {
			record[i] = fieldValue(field, p, d)
		}
		if outputType == PCDBinary {
			encodeBinaryRecord(buf, fields, record)
			_, err = out.Write(buf)
		} else {
			_, err = io.WriteString(out, formatASCIIRecord(fields, record))
		}
		return err == nil
	})
	return err
}

func fieldValue(field pcdField, p r3.Vector, d Data) float64 {
	switch field {
	case pcdFieldX:
		return p.X / pcdUnitsPerMeter
	case pcdFieldY:
		return p.Y / pcdUnitsPerMeter
	case pcdFieldZ:
		return p.Z / pcdUnitsPerMeter
	case pcdFieldRGB:
		return float64(colorToPCDInt(d))
	default:
		if d == nil {
			return 0
		}
		return float64(d.Value())
	}
}

func formatASCIIRecord(fields []pcdField, record []float64) string {
	var sb strings.Builder
	for i, v := range record {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if fields[i].kind == 'F' {
			sb.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
		} else {
			sb.WriteString(strconv.FormatInt(int64(v), 10))
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

func encodeBinaryRecord(buf []byte, fields []pcdField, record []float64) {
	for i, v := range record {
		var raw uint32
		switch fields[i].kind {
		case 'F':
			raw = math.Float32bits(float32(v))
		case 'I':
			raw = uint32(int32(v))
		default:
			raw = uint32(v)
		}
		binary.LittleEndian.PutUint32(buf[i*pcdFieldSize:], raw)
	}
}

// decodeBinaryField rounds floats to a tenth of a millimeter to hide float32 noise.
func decodeBinaryField(kind byte, raw uint32) float64 {
	switch kind {
	case 'F':
		f := float64(math.Float32frombits(raw))
		return math.Round(f*10000) / 10000
	case 'I':
		return float64(int32(raw))
	default:
		return float64(raw)
	}
}

type pcdHeader struct {
	fields    []pcdField
	width     uint64
	height    uint64
	viewpoint [7]float64
	points    uint64
	data      PCDType

	// column of each known field, -1 when absent
	x, y, z, rgb, value int
}

func (h *pcdHeader) column(name string) int {
	return lo.IndexOf(lo.Map(h.fields, func(f pcdField, _ int) string { return f.name }), name)
}

func parseUint(key, token string) (uint64, error) {
	v, err := strconv.ParseUint(token, 10, 64)
	return v, errors.Wrapf(err, "invalid %s field %s", key, token)
}

// checkColumns requires one token per declared field.
func (h *pcdHeader) checkColumns(key string, tokens []string) error {
	if len(tokens) != len(h.fields) {
		return errors.Errorf("unexpected number of fields in %s line", key)
	}
	return nil
}

// pcdHeaderLines are the header keys in the order they must appear, each with its parser.
var pcdHeaderLines = []struct {
	key   string
	parse func(h *pcdHeader, tokens []string) error
}{
	{"VERSION", func(h *pcdHeader, tokens []string) error {
		if len(tokens) != 1 || (tokens[0] != ".7" && tokens[0] != "0.7") {
			return errors.Errorf("unsupported pcd version %s", strings.Join(tokens, " "))
		}
		return nil
	}},
	{"FIELDS", func(h *pcdHeader, tokens []string) error {
		h.fields = lo.Map(tokens, func(name string, _ int) pcdField { return pcdField{name: name} })
		h.x, h.y, h.z = h.column("x"), h.column("y"), h.column("z")
		if h.x < 0 || h.y < 0 || h.z < 0 {
			return errors.Errorf("unsupported pcd fields %s, need x y z", strings.Join(tokens, " "))
		}
		h.rgb, h.value = h.column("rgb"), h.column("label")
		return nil
	}},
	{"SIZE", func(h *pcdHeader, tokens []string) error {
		if err := h.checkColumns("SIZE", tokens); err != nil {
			return err
		}
		for _, token := range tokens {
			size, err := parseUint("SIZE", token)
			if err != nil {
				return err
			}
			if size != pcdFieldSize {
				return errors.Errorf("unsupported field size %d", size)
			}
		}
		return nil
	}},
	{"TYPE", func(h *pcdHeader, tokens []string) error {
		if err := h.checkColumns("TYPE", tokens); err != nil {
			return err
		}
		for i, token := range tokens {
			if len(token) != 1 || !strings.Contains("FIU", token) {
				return errors.Errorf("unsupported TYPE field %s", token)
			}
			h.fields[i].kind = token[0]
		}
		return nil
	}},
	{"COUNT", func(h *pcdHeader, tokens []string) error {
		if err := h.checkColumns("COUNT", tokens); err != nil {
			return err
		}
		for _, token := range tokens {
			count, err := parseUint("COUNT", token)
			if err != nil {
				return err
			}
			if count != 1 {
				return errors.Errorf("unsupported field count %d", count)
			}
		}
		return nil
	}},
	{"WIDTH", func(h *pcdHeader, tokens []string) (err error) {
		h.width, err = parseUint("WIDTH", strings.Join(tokens, " "))
		return err
	}},
	{"HEIGHT", func(h *pcdHeader, tokens []string) (err error) {
		h.height, err = parseUint("HEIGHT", strings.Join(tokens, " "))
		return err
	}},
	{"VIEWPOINT", func(h *pcdHeader, tokens []string) error {
		if len(tokens) != len(h.viewpoint) {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
		for i, token := range tokens {
			v, err := strconv.ParseFloat(token, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid VIEWPOINT field %s", token)
			}
			h.viewpoint[i] = v
		}
		return nil
	}},
	{"POINTS", func(h *pcdHeader, tokens []string) error {
		points, err := parseUint("POINTS", strings.Join(tokens, " "))
		if err != nil {
			return err
		}
		if points != h.width*h.height {
			return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", points, h.width*h.height)
		}
		h.points = points
		return nil
	}},
	{"DATA", func(h *pcdHeader, tokens []string) error {
		switch strings.Join(tokens, " ") {
		case "ascii":
			h.data = PCDAscii
		case "binary":
			h.data = PCDBinary
		case "binary_compressed":
			h.data = PCDCompressed
		default:
			return errors.Errorf("unsupported pcd data type %s", strings.Join(tokens, " "))
		}
		return nil
	}},
}

func readPCDHeader(in *bufio.Reader) (*pcdHeader, error) {
	h := &pcdHeader{}
	next := 0
	for next < len(pcdHeaderLines) {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "error reading header line %d", next)
		}
		line, _, _ = strings.Cut(line, "#")
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		expected := pcdHeaderLines[next]
		if tokens[0] != expected.key {
			return nil, errors.Errorf("line is supposed to start with %s but is %s", expected.key, strings.TrimSpace(line))
		}
		if err := expected.parse(h, tokens[1:]); err != nil {
			return nil, err
		}
		next++
	}
	return h, nil
}

// ReadPCD decodes an ascii or binary PCD v0.7 stream. Coordinates are converted from meters to
// millimeters; rgb and label columns become point colors and values. Other columns are skipped.
func ReadPCD(inRaw io.Reader) (PointCloud, error) {
	in := bufio.NewReader(inRaw)
	h, err := readPCDHeader(in)
	if err != nil {
		return nil, err
	}
	if h.data == PCDCompressed {
		return nil, errors.New("compressed pcd not yet supported")
	}

	pc := NewWithPrealloc(int(h.points))
	record := make([]float64, len(h.fields))
	buf := make([]byte, pcdFieldSize*len(h.fields))
	for i := 0; i < int(h.points); i++ {
		if h.data == PCDBinary {
			err = readBinaryRecord(in, h, buf, record)
		} else {
			err = readASCIIRecord(in, record)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "error reading point %d", i)
		}
		if err := pc.Set(h.position(record), h.payload(record)); err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
	}
	return pc, nil
}

func readASCIIRecord(in *bufio.Reader, record []float64) error {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return err
	}
	tokens := strings.Fields(line)
	if len(tokens) != len(record) {
		return errors.Errorf("unexpected number of fields, got %d want %d", len(tokens), len(record))
	}
	for j, token := range tokens {
		if record[j], err = strconv.ParseFloat(token, 64); err != nil {
			return errors.Wrapf(err, "invalid field %s", token)
		}
	}
	return nil
}

func readBinaryRecord(in *bufio.Reader, h *pcdHeader, buf []byte, record []float64) error {
	if _, err := io.ReadFull(in, buf); err != nil {
		return err
	}
	for j, field := range h.fields {
		raw := binary.LittleEndian.Uint32(buf[j*pcdFieldSize:])
		if j == h.rgb {
			// packed colors are bit patterns regardless of the declared type
			record[j] = float64(raw)
			continue
		}
		record[j] = decodeBinaryField(field.kind, raw)
	}
	return nil
}

func (h *pcdHeader) position(record []float64) r3.Vector {
	return r3.Vector{X: record[h.x], Y: record[h.y], Z: record[h.z]}.Mul(pcdUnitsPerMeter)
}

func (h *pcdHeader) payload(record []float64) Data {
	d := NewBasicData()
	if h.rgb >= 0 {
		d.SetColor(pcdIntToColor(int(record[h.rgb])))
	}
	if h.value >= 0 {
		d.SetValue(int(record[h.value]))
	}
	return d
}
