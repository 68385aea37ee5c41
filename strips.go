package geopix

import (
	"errors"
	"fmt"
	"io"
)

var errShortRead = errors.New("short read")

// A PixelBuffer holds the concatenated bytes of every strip of a raster, in
// strip order.
type PixelBuffer []byte

// DecodeStrips reads every strip described by d from r. It never returns a
// partially filled buffer.
func DecodeStrips(r io.ReaderAt, d *RasterDescriptor) (PixelBuffer, error) {
	buffer := make(PixelBuffer, d.StripBytes())
	offset := 0
	for strip, stripOffset := range d.StripOffsets {
		byteCount := int(d.StripByteCounts[strip])
		switch n, err := r.ReadAt(buffer[offset:offset+byteCount], int64(stripOffset)); {
		case n == byteCount:
			// ReadAt may return io.EOF with a full read at the end of the file.
		case err != nil && !errors.Is(err, io.EOF):
			return nil, fmt.Errorf("%w: strip %d: %w", ErrIO, strip, err)
		default:
			return nil, fmt.Errorf("%w: strip %d: %w: read %d of %d bytes", ErrIO, strip, errShortRead, n, byteCount)
		}
		offset += byteCount
	}
	return buffer, nil
}

// SampleAt returns the sample at index, interpreted according to d.
func (b PixelBuffer) SampleAt(d *RasterDescriptor, index int) (float64, error) {
	if index < 0 || d.SampleCount() <= index {
		return 0, fmt.Errorf("%w: index %d, %d samples", ErrBounds, index, d.SampleCount())
	}
	switch d.BitsPerSample {
	case 8:
		if len(b) <= index {
			return 0, fmt.Errorf("%w: index %d, %d bytes decoded", ErrBounds, index, len(b))
		}
		if d.Signed {
			return float64(int8(b[index])), nil
		}
		return float64(b[index]), nil
	case 16:
		if len(b) < 2*(index+1) {
			return 0, fmt.Errorf("%w: index %d, %d bytes decoded", ErrBounds, index, len(b))
		}
		v := d.ByteOrder.Uint16(b[2*index : 2*(index+1)])
		if d.Signed {
			return float64(int16(v)), nil
		}
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %d bits", ErrUnsupportedSampleWidth, d.BitsPerSample)
	}
}
