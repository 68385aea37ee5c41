package geopix

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// A FilenameFunc returns the filename of the raster covering a coordinate.
type FilenameFunc func(Coordinate) (string, bool)

// A RasterSet is a set of rasters in a filesystem, one of which covers each
// coordinate.
type RasterSet struct {
	fsys           fs.FS
	filenameFunc   FilenameFunc
	rasterOptions  []Option
	cacheSize      int
	missingRasters sync.Map
	openGroup      singleflight.Group
	rasterCache    *lru.Cache[string, *Raster]
}

// A RasterSetOption sets an option on a RasterSet.
type RasterSetOption func(*RasterSet)

// NewRasterSet returns a new RasterSet reading rasters from fsys.
func NewRasterSet(fsys fs.FS, filenameFunc FilenameFunc, options ...RasterSetOption) (*RasterSet, error) {
	s := &RasterSet{
		fsys:         fsys,
		filenameFunc: filenameFunc,
		cacheSize:    32,
	}
	for _, option := range options {
		option(s)
	}

	var err error
	s.rasterCache, err = lru.NewWithEvict(s.cacheSize, func(filename string, raster *Raster) {
		raster.retire()
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// WithCacheSize sets the maximum number of open rasters.
func WithCacheSize(cacheSize int) RasterSetOption {
	return func(s *RasterSet) {
		s.cacheSize = cacheSize
	}
}

// WithRasterOptions sets the options used to open each raster.
func WithRasterOptions(options ...Option) RasterSetOption {
	return func(s *RasterSet) {
		s.rasterOptions = options
	}
}

// OneDegreeFilenameFunc returns a FilenameFunc for rasters covering one
// degree cells named by their south west corner, e.g. N45E006.tif.
func OneDegreeFilenameFunc(suffix string) FilenameFunc {
	return func(coord Coordinate) (string, bool) {
		if !coord.Valid() {
			return "", false
		}
		lat := int(math.Floor(coord.Lat))
		lng := int(math.Floor(coord.Lng))
		latHemisphere, lngHemisphere := 'N', 'E'
		if lat < 0 {
			latHemisphere, lat = 'S', -lat
		}
		if lng < 0 {
			lngHemisphere, lng = 'W', -lng
		}
		return fmt.Sprintf("%c%02d%c%03d%s", latHemisphere, lat, lngHemisphere, lng, suffix), true
	}
}

// Lookup returns the sample at (lat, lng) from the raster covering it.
func (s *RasterSet) Lookup(lat, lng float64) (float64, int, error) {
	coord := Coordinate{Lat: lat, Lng: lng}
	if !coord.Valid() {
		return 0, 0, fmt.Errorf("%w: lat %g, lng %g", ErrInputRange, lat, lng)
	}
	filename, ok := s.filenameFunc(coord)
	if !ok {
		return 0, 0, fmt.Errorf("%w: no raster covers lat %g, lng %g", ErrOutOfBounds, lat, lng)
	}
	raster, err := s.getRasterCached(filename)
	if err != nil {
		return 0, 0, err
	}
	if raster == nil {
		return 0, 0, fmt.Errorf("%w: %s: %w", ErrOutOfBounds, filename, fs.ErrNotExist)
	}
	return raster.Lookup(lat, lng)
}

// Close closes every open raster. Rasters that were never decoded are closed
// without decoding.
func (s *RasterSet) Close() {
	for _, filename := range s.rasterCache.Keys() {
		if raster, ok := s.rasterCache.Peek(filename); ok {
			_ = raster.Close()
		}
	}
	s.rasterCache.Purge()
}

// getRaster opens filename. It returns nil if filename does not exist.
func (s *RasterSet) getRaster(filename string) (*Raster, error) {
	switch raster, err := Open(s.fsys, filename, s.rasterOptions...); {
	case errors.Is(err, fs.ErrNotExist):
		s.missingRasters.Store(filename, struct{}{})
		missingRasterCacheMisses.Inc()
		return nil, nil
	case err != nil:
		return nil, err
	default:
		return raster, nil
	}
}

// getRasterCached returns the raster filename, using the cache if possible.
// Concurrent callers for the same filename share a single open.
func (s *RasterSet) getRasterCached(filename string) (*Raster, error) {
	if _, ok := s.missingRasters.Load(filename); ok {
		missingRasterCacheHits.Inc()
		return nil, nil
	}

	if raster, ok := s.rasterCache.Get(filename); ok {
		rasterCacheHits.Inc()
		return raster, nil
	}

	value, err, _ := s.openGroup.Do(filename, func() (any, error) {
		if raster, ok := s.rasterCache.Get(filename); ok {
			rasterCacheHits.Inc()
			return raster, nil
		}

		rasterCacheMisses.Inc()

		raster, err := s.getRaster(filename)
		if err != nil || raster == nil {
			return raster, err
		}

		if eviction := s.rasterCache.Add(filename, raster); eviction {
			rasterCacheEvictions.Inc()
		}

		return raster, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Raster), nil
}
