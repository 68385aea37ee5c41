package geopix

import (
	"encoding/binary"
	"io/fs"
	"math"
	"slices"
	"sync"
	"testing"
	"testing/fstest"
)

// A testField is an extra or replacement IFD entry. Rational values are given
// as numerator, denominator pairs.
type testField struct {
	tag    uint16
	typeID uint16
	values []float64
	ascii  string
}

// A testByteOrder is binary.LittleEndian or binary.BigEndian.
type testByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// A testTIFF describes a synthetic strip-organized TIFF.
type testTIFF struct {
	byteOrder     testByteOrder
	width         int
	height        int
	bitsPerSample int
	sampleFormat  int
	rowsPerStrip  int
	samples       []int
	tiepoints     []float64
	pixelScale    []float64
	fields        []testField
	omit          []uint16
	stripOffsets  []uint32
	secondIFD     bool
}

// newTestTIFF returns an 8-bit little endian raster anchored at (lat, lng) =
// (0, 0) with unit pixel scale whose samples are their linear indexes.
func newTestTIFF(width, height int) *testTIFF {
	samples := make([]int, width*height)
	for i := range samples {
		samples[i] = i % 256
	}
	return &testTIFF{
		byteOrder:     binary.LittleEndian,
		width:         width,
		height:        height,
		bitsPerSample: 8,
		samples:       samples,
		tiepoints:     []float64{0, 0, 0, 0, 0, 0},
		pixelScale:    []float64{1, 1, 0},
	}
}

// stripData returns the encoded strips of t.
func (t *testTIFF) stripData() [][]byte {
	rowsPerStrip := t.rowsPerStrip
	if rowsPerStrip == 0 {
		rowsPerStrip = t.height
	}
	bytesPerSample := t.bitsPerSample / 8
	var strips [][]byte
	for row := 0; row < t.height; row += rowsPerStrip {
		rows := min(rowsPerStrip, t.height-row)
		strip := make([]byte, rows*t.width*bytesPerSample)
		for i := range rows * t.width {
			sample := t.samples[row*t.width+i]
			switch bytesPerSample {
			case 1:
				strip[i] = byte(sample)
			case 2:
				t.byteOrder.PutUint16(strip[2*i:], uint16(sample))
			}
		}
		strips = append(strips, strip)
	}
	return strips
}

// encode returns the bytes of t.
func (t *testTIFF) encode() []byte {
	order := t.byteOrder
	buf := make([]byte, 8)
	if order == binary.BigEndian {
		copy(buf, "MM")
	} else {
		copy(buf, "II")
	}
	order.PutUint16(buf[2:], 42)

	strips := t.stripData()
	stripOffsets := make([]float64, len(strips))
	stripByteCounts := make([]float64, len(strips))
	for i, strip := range strips {
		stripOffsets[i] = float64(len(buf))
		stripByteCounts[i] = float64(len(strip))
		buf = append(buf, strip...)
	}
	if t.stripOffsets != nil {
		stripOffsets = stripOffsets[:0]
		for _, offset := range t.stripOffsets {
			stripOffsets = append(stripOffsets, float64(offset))
		}
	}

	fields := []testField{
		{tag: TagImageWidth, typeID: fieldTypeLong, values: []float64{float64(t.width)}},
		{tag: TagImageLength, typeID: fieldTypeLong, values: []float64{float64(t.height)}},
		{tag: TagBitsPerSample, typeID: fieldTypeShort, values: []float64{float64(t.bitsPerSample)}},
		{tag: TagCompression, typeID: fieldTypeShort, values: []float64{1}},
		{tag: TagStripOffsets, typeID: fieldTypeLong, values: stripOffsets},
		{tag: TagSamplesPerPixel, typeID: fieldTypeShort, values: []float64{1}},
		{tag: TagStripByteCounts, typeID: fieldTypeLong, values: stripByteCounts},
	}
	if t.sampleFormat != 0 {
		fields = append(fields, testField{tag: TagSampleFormat, typeID: fieldTypeShort, values: []float64{float64(t.sampleFormat)}})
	}
	if t.tiepoints != nil {
		fields = append(fields, testField{tag: TagModelTiepoint, typeID: fieldTypeDouble, values: t.tiepoints})
	}
	if t.pixelScale != nil {
		fields = append(fields, testField{tag: TagModelPixelScale, typeID: fieldTypeDouble, values: t.pixelScale})
	}
	for _, field := range t.fields {
		fields = slices.DeleteFunc(fields, func(f testField) bool { return f.tag == field.tag })
		fields = append(fields, field)
	}
	fields = slices.DeleteFunc(fields, func(f testField) bool { return slices.Contains(t.omit, f.tag) })
	slices.SortFunc(fields, func(a, b testField) int { return int(a.tag) - int(b.tag) })

	// Write values that do not fit in an entry after the strips.
	type entry struct {
		field testField
		count int
		value []byte
	}
	entries := make([]entry, 0, len(fields))
	for _, field := range fields {
		value, count := encodeTestField(order, field)
		if len(value) > 4 {
			if len(buf)%2 != 0 {
				buf = append(buf, 0)
			}
			offset := make([]byte, 4)
			order.PutUint32(offset, uint32(len(buf)))
			buf = append(buf, value...)
			value = offset
		}
		entries = append(entries, entry{field: field, count: count, value: value})
	}

	ifdCount := 1
	if t.secondIFD {
		ifdCount = 2
	}
	for i := range ifdCount {
		if len(buf)%2 != 0 {
			buf = append(buf, 0)
		}
		ifdOffset := uint32(len(buf))
		if i == 0 {
			order.PutUint32(buf[4:], ifdOffset)
		} else {
			order.PutUint32(buf[ifdOffset-4:], ifdOffset)
		}
		buf = order.AppendUint16(buf, uint16(len(entries)))
		for _, e := range entries {
			buf = order.AppendUint16(buf, e.field.tag)
			buf = order.AppendUint16(buf, e.field.typeID)
			buf = order.AppendUint32(buf, uint32(e.count))
			value := make([]byte, 4)
			copy(value, e.value)
			buf = append(buf, value...)
		}
		buf = order.AppendUint32(buf, 0)
	}
	return buf
}

func encodeTestField(order testByteOrder, field testField) ([]byte, int) {
	if field.typeID == fieldTypeASCII {
		return append([]byte(field.ascii), 0), len(field.ascii) + 1
	}
	var value []byte
	for _, v := range field.values {
		switch field.typeID {
		case fieldTypeByte:
			value = append(value, byte(v))
		case fieldTypeSByte:
			value = append(value, byte(int8(v)))
		case fieldTypeShort:
			value = order.AppendUint16(value, uint16(v))
		case fieldTypeSShort:
			value = order.AppendUint16(value, uint16(int16(v)))
		case fieldTypeLong, fieldTypeRational:
			value = order.AppendUint32(value, uint32(v))
		case fieldTypeSLong, fieldTypeSRational:
			value = order.AppendUint32(value, uint32(int32(v)))
		case fieldTypeFloat:
			value = order.AppendUint32(value, math.Float32bits(float32(v)))
		case fieldTypeDouble:
			value = order.AppendUint64(value, math.Float64bits(v))
		}
	}
	count := len(field.values)
	if field.typeID == fieldTypeRational || field.typeID == fieldTypeSRational {
		count /= 2
	}
	return value, count
}

// testFS returns a filesystem containing each TIFF under its name.
func testFS(tiffs map[string]*testTIFF) fstest.MapFS {
	fsys := make(fstest.MapFS)
	for name, t := range tiffs {
		fsys[name] = &fstest.MapFile{Data: t.encode()}
	}
	return fsys
}

// A trackingFS counts the files opened and closed through it.
type trackingFS struct {
	fs.FS
	mutex  sync.Mutex
	opened int
	closed int
}

type trackingFile struct {
	readAtSeeker
	fs.File
	fsys *trackingFS
}

func (f *trackingFile) Read(p []byte) (int, error) {
	return f.File.Read(p)
}

func (f *trackingFile) Close() error {
	f.fsys.mutex.Lock()
	f.fsys.closed++
	f.fsys.mutex.Unlock()
	return f.File.Close()
}

func (s *trackingFS) Open(name string) (fs.File, error) {
	file, err := s.FS.Open(name)
	if err != nil {
		return nil, err
	}
	s.mutex.Lock()
	s.opened++
	s.mutex.Unlock()
	return &trackingFile{
		readAtSeeker: file.(readAtSeeker),
		File:         file,
		fsys:         s,
	}, nil
}

func (s *trackingFS) openFiles(t *testing.T) int {
	t.Helper()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.opened - s.closed
}
