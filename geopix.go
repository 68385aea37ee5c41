// Package geopix reads raw sample values from strip-organized GeoTIFF files
// at geographic coordinates.
package geopix

import (
	"errors"
	"math"
)

var (
	ErrFile                   = errors.New("file error")
	ErrFormat                 = errors.New("format error")
	ErrGeoReference           = errors.New("georeference error")
	ErrInputRange             = errors.New("coordinate out of range")
	ErrOutOfBounds            = errors.New("pixel out of bounds")
	ErrBounds                 = errors.New("sample index out of bounds")
	ErrUnsupportedSampleWidth = errors.New("unsupported sample width")
	ErrIO                     = errors.New("i/o error")
)

// A Coordinate is a geographic coordinate in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Valid returns whether c is within lat∈[-90,90] and lng∈[-180,180]. NaNs
// are never valid.
func (c Coordinate) Valid() bool {
	return -90 <= c.Lat && c.Lat <= 90 && -180 <= c.Lng && c.Lng <= 180
}

// A PixelCoord is a raster pixel coordinate. X is the column and Y is the
// row, counted from the top left.
type PixelCoord struct {
	X int
	Y int
}

// Corners are the geographic corner coordinates of a raster.
type Corners struct {
	UpperLeft  Coordinate
	LowerLeft  Coordinate
	UpperRight Coordinate
	LowerRight Coordinate
}

// Contains returns whether coord lies within c.
func (c Corners) Contains(coord Coordinate) bool {
	minLng := math.Min(c.UpperLeft.Lng, c.LowerRight.Lng)
	maxLng := math.Max(c.UpperLeft.Lng, c.LowerRight.Lng)
	minLat := math.Min(c.UpperLeft.Lat, c.LowerRight.Lat)
	maxLat := math.Max(c.UpperLeft.Lat, c.LowerRight.Lat)
	return minLng <= coord.Lng && coord.Lng <= maxLng && minLat <= coord.Lat && coord.Lat <= maxLat
}

// A Looker looks up samples at geographic coordinates.
type Looker interface {
	Lookup(lat, lng float64) (float64, int, error)
}
