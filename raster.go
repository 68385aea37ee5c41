package geopix

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// A Raster is an open GeoTIFF raster. Once its strips are decoded it is
// immutable and safe for concurrent use.
type Raster struct {
	filename     string
	logger       *slog.Logger
	lazyDecode   bool
	descriptor   RasterDescriptor
	geoTransform GeoTransform
	geoKeys      *GeoKeys
	geoKeysErr   error
	buffer       func() (PixelBuffer, error)

	mutex     sync.Mutex
	container *Container
}

// An Option sets an option on a Raster.
type Option func(*Raster)

// WithLazyDecode defers reading strips until the first lookup. The file stays
// open until then.
func WithLazyDecode() Option {
	return func(r *Raster) {
		r.lazyDecode = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Raster) {
		r.logger = logger
	}
}

// OpenFile opens the raster at path.
func OpenFile(path string, options ...Option) (*Raster, error) {
	return Open(os.DirFS(filepath.Dir(path)), filepath.Base(path), options...)
}

// Open opens the raster filename in fsys.
func Open(fsys fs.FS, filename string, options ...Option) (*Raster, error) {
	r := &Raster{
		filename: filename,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(r)
	}

	container, err := OpenContainer(fsys, filename)
	if err != nil {
		return nil, err
	}
	r.container = container
	ok := false
	defer func() {
		if !ok {
			_ = r.Close()
		}
	}()

	r.descriptor = container.Descriptor()
	r.geoTransform, err = ResolveGeoTransform(container)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	r.geoKeys, r.geoKeysErr = parseGeoKeyTags(container, container.TagASCII(TagGeoASCIIParams))

	r.logger.Debug("opened raster",
		"filename", filename,
		"width", r.descriptor.Width,
		"height", r.descriptor.Height,
		"bitsPerSample", r.descriptor.BitsPerSample,
		"signed", r.descriptor.Signed,
		"strips", len(r.descriptor.StripOffsets),
	)

	r.buffer = sync.OnceValues(r.decode)
	if !r.lazyDecode {
		if _, err := r.buffer(); err != nil {
			return nil, err
		}
	}

	ok = true
	return r, nil
}

// Close releases r's file handle, if it still holds one.
func (r *Raster) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.releaseLocked()
}

// retire decodes r if it has not been decoded yet and then releases its file,
// so lookups through r continue to work after it is dropped from a cache.
func (r *Raster) retire() {
	_, _ = r.buffer()
	_ = r.Close()
}

// Descriptor returns r's raster descriptor.
func (r *Raster) Descriptor() RasterDescriptor {
	return r.descriptor.clone()
}

// GeoTransform returns r's geo transform.
func (r *Raster) GeoTransform() GeoTransform {
	return r.geoTransform
}

// GeoKeys returns r's GeoKeys, or nil if r has no GeoKeyDirectory.
func (r *Raster) GeoKeys() (*GeoKeys, error) {
	return r.geoKeys, r.geoKeysErr
}

// Bounds returns the corner coordinates of r.
func (r *Raster) Bounds() Corners {
	return r.geoTransform.Corners(r.descriptor.Width, r.descriptor.Height)
}

// Lookup returns the sample at (lat, lng) and the number of bits per sample.
func (r *Raster) Lookup(lat, lng float64) (float64, int, error) {
	lookupsTotal.Inc()
	pixelCoord, err := r.Pixel(lat, lng)
	if err != nil {
		lookupErrorsTotal.WithLabelValues(errorReason(err)).Inc()
		return 0, 0, err
	}
	value, err := r.sample(pixelCoord)
	if err != nil {
		lookupErrorsTotal.WithLabelValues(errorReason(err)).Inc()
		return 0, 0, err
	}
	return value, r.descriptor.BitsPerSample, nil
}

// Pixel returns the pixel coordinate of (lat, lng).
func (r *Raster) Pixel(lat, lng float64) (PixelCoord, error) {
	if !(Coordinate{Lat: lat, Lng: lng}).Valid() {
		return PixelCoord{}, fmt.Errorf("%w: lat %g, lng %g", ErrInputRange, lat, lng)
	}
	x, y := r.geoTransform.Pixel(lat, lng)
	if x < 0 || float64(r.descriptor.Width) <= x || y < 0 || float64(r.descriptor.Height) <= y {
		return PixelCoord{}, fmt.Errorf("%w: pixel (%g, %g) outside %dx%d raster", ErrOutOfBounds, x, y, r.descriptor.Width, r.descriptor.Height)
	}
	return PixelCoord{X: int(x), Y: int(y)}, nil
}

// SamplePixels returns the samples at pixelCoords.
func (r *Raster) SamplePixels(pixelCoords []PixelCoord) ([]float64, error) {
	samples := make([]float64, len(pixelCoords))
	for i, pixelCoord := range pixelCoords {
		if pixelCoord.X < 0 || r.descriptor.Width <= pixelCoord.X || pixelCoord.Y < 0 || r.descriptor.Height <= pixelCoord.Y {
			return nil, fmt.Errorf("%w: pixel (%d, %d) outside %dx%d raster", ErrOutOfBounds, pixelCoord.X, pixelCoord.Y, r.descriptor.Width, r.descriptor.Height)
		}
		sample, err := r.sample(pixelCoord)
		if err != nil {
			return nil, err
		}
		samples[i] = sample
	}
	return samples, nil
}

// sample returns the sample at pixelCoord, decoding strips if needed.
func (r *Raster) sample(pixelCoord PixelCoord) (float64, error) {
	buffer, err := r.buffer()
	if err != nil {
		return 0, err
	}
	return buffer.SampleAt(&r.descriptor, pixelCoord.Y*r.descriptor.Width+pixelCoord.X)
}

// decode reads every strip and releases the file handle, whatever the
// outcome.
func (r *Raster) decode() (PixelBuffer, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.container == nil {
		return nil, fmt.Errorf("%w: %s: closed before decoding", ErrFile, r.filename)
	}
	defer func() {
		_ = r.releaseLocked()
	}()

	start := time.Now()
	buffer, err := DecodeStrips(r.container, &r.descriptor)
	duration := time.Since(start)
	decodeDurationSeconds.Observe(duration.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.filename, err)
	}
	stripBytesDecodedTotal.Add(float64(len(buffer)))

	r.logger.Debug("decoded strips",
		"filename", r.filename,
		"strips", len(r.descriptor.StripOffsets),
		"bytes", len(buffer),
		"duration", duration,
	)
	return buffer, nil
}

func (r *Raster) releaseLocked() error {
	if r.container == nil {
		return nil
	}
	err := r.container.Close()
	r.container = nil
	return err
}
