package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// GetCameraCoordinates forwards to ImageToCameraCoordinates.
//
// Deprecated: use ImageToCameraCoordinates.
func (c *Calibration) GetCameraCoordinates(imagePoint r2.Point, zc float64, applyDistortion bool) r3.Vector {
	return c.ImageToCameraCoordinates(imagePoint, zc, applyDistortion)
}

// GetWorldCoordinates forwards to ImageToWorldCoordinates.
//
// Deprecated: use ImageToWorldCoordinates.
func (c *Calibration) GetWorldCoordinates(imagePoint r2.Point, zc float64, applyDistortion bool) r3.Vector {
	return c.ImageToWorldCoordinates(imagePoint, zc, applyDistortion)
}

// UndistortCameraCoordinates forwards to UndistortImageCoordinates.
//
// Deprecated: use UndistortImageCoordinates.
func (c *Calibration) UndistortCameraCoordinates(distorted r2.Point) r2.Point {
	return c.UndistortImageCoordinates(distorted)
}

// DistortCameraCoordinates forwards to DistortImageCoordinates.
//
// Deprecated: use DistortImageCoordinates.
func (c *Calibration) DistortCameraCoordinates(undistorted r2.Point) r2.Point {
	return c.DistortImageCoordinates(undistorted)
}
