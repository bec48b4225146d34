package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
)

// NewVector is shorthand for an r3.Vector literal.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// Data is the payload carried by a point besides its position: an optional color sampled from
// the source image and an optional integer value, typically the index of the pixel
// correspondence the point was triangulated from.
type Data interface {
	HasColor() bool
	// RGB255 is meaningless unless HasColor. There is no alpha channel.
	RGB255() (uint8, uint8, uint8)
	Color() color.Color
	SetColor(c color.NRGBA) Data

	HasValue() bool
	Value() int
	SetValue(v int) Data
}

type dataFields uint8

const (
	fieldColor dataFields = 1 << iota
	fieldPointValue
)

type pointData struct {
	set   dataFields
	rgb   color.NRGBA
	value int
}

// NewBasicData returns empty data; the point is positional only.
func NewBasicData() Data {
	return &pointData{}
}

// NewColoredData returns data holding c.
func NewColoredData(c color.NRGBA) Data {
	return &pointData{set: fieldColor, rgb: c}
}

// NewValueData returns data holding v.
func NewValueData(v int) Data {
	return &pointData{set: fieldPointValue, value: v}
}

func (d *pointData) has(f dataFields) bool {
	return d.set&f != 0
}

func (d *pointData) HasColor() bool {
	return d.has(fieldColor)
}

func (d *pointData) RGB255() (uint8, uint8, uint8) {
	return d.rgb.R, d.rgb.G, d.rgb.B
}

func (d *pointData) Color() color.Color {
	c := d.rgb
	return &c
}

func (d *pointData) SetColor(c color.NRGBA) Data {
	d.rgb = c
	d.set |= fieldColor
	return d
}

func (d *pointData) HasValue() bool {
	return d.has(fieldPointValue)
}

func (d *pointData) Value() int {
	return d.value
}

func (d *pointData) SetValue(v int) Data {
	d.value = v
	d.set |= fieldPointValue
	return d
}
