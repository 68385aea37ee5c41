package geopix

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"slices"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
)

// TIFF tags.
const (
	TagImageWidth      uint16 = 256
	TagImageLength     uint16 = 257
	TagBitsPerSample   uint16 = 258
	TagCompression     uint16 = 259
	TagStripOffsets    uint16 = 273
	TagSamplesPerPixel uint16 = 277
	TagRowsPerStrip    uint16 = 278
	TagStripByteCounts uint16 = 279
	TagTileWidth       uint16 = 322
	TagTileLength      uint16 = 323
	TagTileOffsets     uint16 = 324
	TagTileByteCounts  uint16 = 325
	TagSampleFormat    uint16 = 339
	TagModelPixelScale uint16 = 33550
	TagModelTiepoint   uint16 = 33922
	TagGeoKeyDirectory uint16 = 34735
	TagGeoDoubleParams uint16 = 34736
	TagGeoASCIIParams  uint16 = 34737
)

const (
	compressionNone      = 1
	sampleFormatUnsigned = 1
	sampleFormatSigned   = 2
	maxDimension         = math.MaxInt32
)

// TIFF field type IDs.
const (
	fieldTypeByte      = 1
	fieldTypeASCII     = 2
	fieldTypeShort     = 3
	fieldTypeLong      = 4
	fieldTypeRational  = 5
	fieldTypeSByte     = 6
	fieldTypeSShort    = 8
	fieldTypeSLong     = 9
	fieldTypeSRational = 10
	fieldTypeFloat     = 11
	fieldTypeDouble    = 12
	fieldTypeLong8     = 16
	fieldTypeSLong8    = 17
)

// A RasterDescriptor describes the layout of a raster's samples.
type RasterDescriptor struct {
	Width           int
	Height          int
	BitsPerSample   int
	Signed          bool
	ByteOrder       binary.ByteOrder
	StripOffsets    []uint64
	StripByteCounts []uint64
}

// SampleCount returns the number of samples in the raster.
func (d *RasterDescriptor) SampleCount() int {
	return d.Width * d.Height
}

// BytesPerSample returns the number of bytes in each sample.
func (d *RasterDescriptor) BytesPerSample() int {
	return d.BitsPerSample / 8
}

// StripBytes returns the total number of bytes across all strips.
func (d *RasterDescriptor) StripBytes() int {
	total := 0
	for _, byteCount := range d.StripByteCounts {
		total += int(byteCount)
	}
	return total
}

func (d *RasterDescriptor) clone() RasterDescriptor {
	clone := *d
	clone.StripOffsets = slices.Clone(d.StripOffsets)
	clone.StripByteCounts = slices.Clone(d.StripByteCounts)
	return clone
}

// A rasterIFD is a struct into which github.com/google/tiff can unmarshal
// the tags that describe a strip-organized raster.
type rasterIFD struct {
	ImageWidth      uint64   `tiff:"field,tag=256"`
	ImageLength     uint64   `tiff:"field,tag=257"`
	BitsPerSample   []uint16 `tiff:"field,tag=258"`
	Compression     uint16   `tiff:"field,tag=259"`
	StripOffsets    []uint64 `tiff:"field,tag=273"`
	SamplesPerPixel uint16   `tiff:"field,tag=277"`
	StripByteCounts []uint64 `tiff:"field,tag=279"`
	SampleFormat    []uint16 `tiff:"field,tag=339"`
}

type readAtSeeker interface {
	io.ReaderAt
	io.ReadSeeker
}

// A Container is an open TIFF file with a single strip-organized image.
type Container struct {
	file       fs.File
	r          io.ReaderAt
	ifd        tiff.IFD
	descriptor RasterDescriptor
}

// OpenContainer opens filename in fsys and parses its image file directory.
func OpenContainer(fsys fs.FS, filename string) (*Container, error) {
	ok := false

	file, err := fsys.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFile, err)
	}
	defer func() {
		if !ok {
			_ = file.Close()
		}
	}()

	if _, ok := file.(readAtSeeker); !ok {
		return nil, fmt.Errorf("%w: %s: %w", ErrFile, filename, errors.ErrUnsupported)
	}
	r := file.(readAtSeeker)

	tiffTIFF, err := tiff.Parse(r, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFormat, filename, err)
	}

	if n := len(tiffTIFF.IFDs()); n != 1 {
		return nil, fmt.Errorf("%w: %s: found %d IFDs, expected 1", ErrFormat, filename, n)
	}
	ifd := tiffTIFF.IFDs()[0]

	// Order returns the two byte marker, "II" or "MM".
	byteOrder := tiff.GetByteOrder(binary.BigEndian.Uint16([]byte(tiffTIFF.Order())))
	if byteOrder == nil {
		return nil, fmt.Errorf("%w: %s: invalid byte order %q", ErrFormat, filename, tiffTIFF.Order())
	}

	descriptor, err := parseRasterIFD(ifd, byteOrder)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	ok = true
	return &Container{
		file:       file,
		r:          r,
		ifd:        ifd,
		descriptor: descriptor,
	}, nil
}

func parseRasterIFD(ifd tiff.IFD, byteOrder binary.ByteOrder) (RasterDescriptor, error) {
	for _, tag := range []uint16{
		TagImageWidth,
		TagImageLength,
		TagBitsPerSample,
		TagStripOffsets,
		TagStripByteCounts,
	} {
		if !ifd.HasField(tag) {
			return RasterDescriptor{}, fmt.Errorf("%w: missing tag %d", ErrFormat, tag)
		}
	}
	for _, tag := range []uint16{
		TagTileWidth,
		TagTileLength,
		TagTileOffsets,
		TagTileByteCounts,
	} {
		if ifd.HasField(tag) {
			return RasterDescriptor{}, fmt.Errorf("%w: tiled layout", ErrFormat)
		}
	}

	var rifd rasterIFD
	if err := tiff.UnmarshalIFD(ifd, &rifd); err != nil {
		return RasterDescriptor{}, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	switch {
	case rifd.ImageWidth == 0 || rifd.ImageWidth > maxDimension:
		return RasterDescriptor{}, fmt.Errorf("%w: invalid image width %d", ErrFormat, rifd.ImageWidth)
	case rifd.ImageLength == 0 || rifd.ImageLength > maxDimension:
		return RasterDescriptor{}, fmt.Errorf("%w: invalid image length %d", ErrFormat, rifd.ImageLength)
	case rifd.ImageWidth*rifd.ImageLength > maxDimension:
		return RasterDescriptor{}, fmt.Errorf("%w: image too large", ErrFormat)
	case ifd.HasField(TagCompression) && rifd.Compression != compressionNone:
		return RasterDescriptor{}, fmt.Errorf("%w: unsupported compression %d", ErrFormat, rifd.Compression)
	case ifd.HasField(TagSamplesPerPixel) && rifd.SamplesPerPixel != 1:
		return RasterDescriptor{}, fmt.Errorf("%w: %d samples per pixel", ErrFormat, rifd.SamplesPerPixel)
	case len(rifd.BitsPerSample) != 1:
		return RasterDescriptor{}, fmt.Errorf("%w: %d bits per sample values", ErrFormat, len(rifd.BitsPerSample))
	case len(rifd.StripOffsets) == 0:
		return RasterDescriptor{}, fmt.Errorf("%w: no strips", ErrFormat)
	case len(rifd.StripOffsets) != len(rifd.StripByteCounts):
		return RasterDescriptor{}, fmt.Errorf("%w: %d strip offsets but %d strip byte counts", ErrFormat, len(rifd.StripOffsets), len(rifd.StripByteCounts))
	}

	bitsPerSample := int(rifd.BitsPerSample[0])
	if bitsPerSample != 8 && bitsPerSample != 16 {
		return RasterDescriptor{}, fmt.Errorf("%w: %w: %d bits", ErrFormat, ErrUnsupportedSampleWidth, bitsPerSample)
	}

	signed := false
	if len(rifd.SampleFormat) > 0 {
		switch rifd.SampleFormat[0] {
		case sampleFormatUnsigned:
		case sampleFormatSigned:
			signed = true
		default:
			return RasterDescriptor{}, fmt.Errorf("%w: unsupported sample format %d", ErrFormat, rifd.SampleFormat[0])
		}
	}

	var stripBytes uint64
	for _, byteCount := range rifd.StripByteCounts {
		stripBytes += byteCount
		if byteCount > maxDimension || stripBytes > maxDimension {
			return RasterDescriptor{}, fmt.Errorf("%w: strips too large", ErrFormat)
		}
	}

	return RasterDescriptor{
		Width:           int(rifd.ImageWidth),
		Height:          int(rifd.ImageLength),
		BitsPerSample:   bitsPerSample,
		Signed:          signed,
		ByteOrder:       byteOrder,
		StripOffsets:    rifd.StripOffsets,
		StripByteCounts: rifd.StripByteCounts,
	}, nil
}

// Descriptor returns c's raster descriptor.
func (c *Container) Descriptor() RasterDescriptor {
	return c.descriptor.clone()
}

// ReadAt implements io.ReaderAt.
func (c *Container) ReadAt(p []byte, off int64) (int, error) {
	return c.r.ReadAt(p, off)
}

// Close closes the underlying file.
func (c *Container) Close() error {
	return c.file.Close()
}

// TagDoubles returns the values of tag widened to float64. It returns nil if
// the tag is absent or is not numeric. The returned slice is owned by the
// caller.
func (c *Container) TagDoubles(tag uint16) []float64 {
	if !c.ifd.HasField(tag) {
		return nil
	}
	field := c.ifd.GetField(tag)
	value := field.Value()
	return decodeDoubles(field.Type().ID(), value.Order(), value.Bytes(), field.Count())
}

// TagASCII returns the value of the ASCII tag, or the empty string if the tag
// is absent.
func (c *Container) TagASCII(tag uint16) string {
	if !c.ifd.HasField(tag) {
		return ""
	}
	field := c.ifd.GetField(tag)
	if field.Type().ID() != fieldTypeASCII {
		return ""
	}
	return strings.TrimRight(string(field.Value().Bytes()), "\x00")
}

// decodeDoubles decodes count values of the TIFF field type typeID from b.
func decodeDoubles(typeID uint16, order binary.ByteOrder, b []byte, count uint64) []float64 {
	var size int
	switch typeID {
	case fieldTypeByte, fieldTypeSByte:
		size = 1
	case fieldTypeShort, fieldTypeSShort:
		size = 2
	case fieldTypeLong, fieldTypeSLong, fieldTypeFloat:
		size = 4
	case fieldTypeRational, fieldTypeSRational, fieldTypeDouble, fieldTypeLong8, fieldTypeSLong8:
		size = 8
	default:
		return nil
	}
	n := min(int(count), len(b)/size)
	if n <= 0 {
		return nil
	}

	values := make([]float64, n)
	for i := range n {
		v := b[i*size : (i+1)*size]
		switch typeID {
		case fieldTypeByte:
			values[i] = float64(v[0])
		case fieldTypeSByte:
			values[i] = float64(int8(v[0]))
		case fieldTypeShort:
			values[i] = float64(order.Uint16(v))
		case fieldTypeSShort:
			values[i] = float64(int16(order.Uint16(v)))
		case fieldTypeLong:
			values[i] = float64(order.Uint32(v))
		case fieldTypeSLong:
			values[i] = float64(int32(order.Uint32(v)))
		case fieldTypeFloat:
			values[i] = float64(math.Float32frombits(order.Uint32(v)))
		case fieldTypeRational:
			values[i] = float64(order.Uint32(v[:4])) / float64(order.Uint32(v[4:]))
		case fieldTypeSRational:
			values[i] = float64(int32(order.Uint32(v[:4]))) / float64(int32(order.Uint32(v[4:])))
		case fieldTypeDouble:
			values[i] = math.Float64frombits(order.Uint64(v))
		case fieldTypeLong8:
			values[i] = float64(order.Uint64(v))
		case fieldTypeSLong8:
			values[i] = float64(int64(order.Uint64(v)))
		}
	}
	return values
}
