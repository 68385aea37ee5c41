package geopix

import (
	"fmt"
	"math"
)

// A TagSource returns the numeric values of TIFF tags.
type TagSource interface {
	TagDoubles(tag uint16) []float64
}

// A GeoTransform maps between geographic coordinates and raster pixels. The
// origin is the model-space position of pixel (0, 0).
type GeoTransform struct {
	OriginLongitude float64
	OriginLatitude  float64
	PixelScaleX     float64
	PixelScaleY     float64
}

// ResolveGeoTransform builds a GeoTransform from the ModelTiepoint and
// ModelPixelScale tags in tags.
func ResolveGeoTransform(tags TagSource) (GeoTransform, error) {
	tiepoints := tags.TagDoubles(TagModelTiepoint)
	switch {
	case len(tiepoints) == 0:
		return GeoTransform{}, fmt.Errorf("%w: missing ModelTiepoint", ErrGeoReference)
	case len(tiepoints)%6 != 0:
		return GeoTransform{}, fmt.Errorf("%w: ModelTiepoint has %d values", ErrGeoReference, len(tiepoints))
	case len(tiepoints) > 6:
		return GeoTransform{}, fmt.Errorf("%w: %w: %d tie points, expected 1", ErrGeoReference, ErrFormat, len(tiepoints)/6)
	}

	pixelScale := tags.TagDoubles(TagModelPixelScale)
	if len(pixelScale) < 2 {
		return GeoTransform{}, fmt.Errorf("%w: missing ModelPixelScale", ErrGeoReference)
	}
	scaleX, scaleY := pixelScale[0], pixelScale[1]
	if !validScale(scaleX) || !validScale(scaleY) {
		return GeoTransform{}, fmt.Errorf("%w: invalid pixel scale %g, %g", ErrGeoReference, scaleX, scaleY)
	}

	i, j := tiepoints[0], tiepoints[1]
	x, y := tiepoints[3], tiepoints[4]
	if !finite(i) || !finite(j) || !finite(x) || !finite(y) {
		return GeoTransform{}, fmt.Errorf("%w: invalid tie point", ErrGeoReference)
	}

	return GeoTransform{
		OriginLongitude: x - i*scaleX,
		OriginLatitude:  y + j*scaleY,
		PixelScaleX:     scaleX,
		PixelScaleY:     scaleY,
	}, nil
}

// Fractional returns the unrounded pixel position of (lat, lng). Raster rows
// increase southwards.
func (t GeoTransform) Fractional(lat, lng float64) (float64, float64) {
	return (lng - t.OriginLongitude) / t.PixelScaleX, (t.OriginLatitude - lat) / t.PixelScaleY
}

// Pixel returns the position of (lat, lng) rounded half away from zero. The
// result is not bounds-checked.
func (t GeoTransform) Pixel(lat, lng float64) (float64, float64) {
	x, y := t.Fractional(lat, lng)
	return math.Round(x), math.Round(y)
}

// Coordinate returns the geographic coordinate of pixelCoord.
func (t GeoTransform) Coordinate(pixelCoord PixelCoord) Coordinate {
	return Coordinate{
		Lat: t.OriginLatitude - float64(pixelCoord.Y)*t.PixelScaleY,
		Lng: t.OriginLongitude + float64(pixelCoord.X)*t.PixelScaleX,
	}
}

// Corners returns the corner coordinates of a raster of the given size.
func (t GeoTransform) Corners(width, height int) Corners {
	west := t.OriginLongitude
	east := t.OriginLongitude + float64(width)*t.PixelScaleX
	north := t.OriginLatitude
	south := t.OriginLatitude - float64(height)*t.PixelScaleY
	return Corners{
		UpperLeft:  Coordinate{Lat: north, Lng: west},
		LowerLeft:  Coordinate{Lat: south, Lng: west},
		UpperRight: Coordinate{Lat: north, Lng: east},
		LowerRight: Coordinate{Lat: south, Lng: east},
	}
}

func validScale(scale float64) bool {
	return scale > 0 && !math.IsInf(scale, 1)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
