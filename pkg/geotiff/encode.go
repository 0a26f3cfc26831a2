package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// Minimal TIFF/GeoTIFF constant set. Defining our own avoids pulling in a
// full TIFF library for the handful of tags backscatter rasters need.
const (
	DataType_Byte     = 1
	DataType_ASCII    = 2
	DataType_Short    = 3
	DataType_Long     = 4
	DataType_Rational = 5
	DataType_Float    = 11
	DataType_Double   = 12

	TagType_ImageWidth                = 256
	TagType_ImageLength               = 257
	TagType_BitsPerSample             = 258
	TagType_Compression               = 259
	TagType_PhotometricInterpretation = 262
	TagType_StripOffsets              = 273
	TagType_SamplesPerPixel           = 277
	TagType_RowsPerStrip              = 278
	TagType_StripByteCounts           = 279
	TagType_SampleFormat              = 339

	// GeoTIFF tags
	TagType_ModelPixelScaleTag = 33550
	TagType_ModelTiepointTag   = 33922
	TagType_GeoKeyDirectoryTag = 34735
	TagType_GeoAsciiParamsTag  = 34737
)

// Sample formats (tag 339)
const (
	SampleFormatUint  = 1
	SampleFormatFloat = 3
)

var enc = binary.LittleEndian

type ifdEntry struct {
	tag      uint16
	datatype uint16
	count    uint32
	data     []byte
}

type byTag []ifdEntry

func (d byTag) Len() int           { return len(d) }
func (d byTag) Less(i, j int) bool { return d[i].tag < d[j].tag }
func (d byTag) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }

// Raster is a single-band geocoded raster in memory. Pixels are stored
// row-major, top row first. Geotransform uses the GDAL convention:
// {originX, pixelWidth, 0, originY, 0, pixelHeight} with pixelHeight
// negative for north-up rasters.
type Raster struct {
	Width        int
	Height       int
	Geotransform [6]float64
	Projection   string
	Pixels       []float32
}

// PixelSize returns the absolute pixel width of the raster in map units.
func (r *Raster) PixelSize() float64 {
	return math.Abs(r.Geotransform[1])
}

// Bounds returns (minX, minY, maxX, maxY) of the raster footprint in map
// coordinates.
func (r *Raster) Bounds() (minX, minY, maxX, maxY float64) {
	gt := r.Geotransform
	x0 := gt[0]
	y0 := gt[3]
	x1 := gt[0] + float64(r.Width)*gt[1]
	y1 := gt[3] + float64(r.Height)*gt[5]
	return math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)
}

// Encode writes r to w as an uncompressed single-band float32 GeoTIFF
// (little-endian, one strip). The projection string is stored in the
// GeoAsciiParams tag via a GTCitation geokey so it round-trips through
// Decode verbatim.
func Encode(w io.Writer, r *Raster) error {
	return encode(w, r, SampleFormatFloat)
}

// EncodeByte writes r as an unsigned 8-bit GeoTIFF. Pixel values are
// clamped to [0,255] and truncated.
func EncodeByte(w io.Writer, r *Raster) error {
	return encode(w, r, SampleFormatUint)
}

func encode(w io.Writer, r *Raster, sampleFormat uint16) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid raster dimensions %dx%d", r.Width, r.Height)
	}
	if len(r.Pixels) != r.Width*r.Height {
		return fmt.Errorf("pixel buffer length %d does not match %dx%d", len(r.Pixels), r.Width, r.Height)
	}

	// Header: LittleEndian (II), version 42, first IFD at offset 8.
	header := []byte{'I', 'I', 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}
	if _, err := w.Write(header); err != nil {
		return err
	}

	// Pixel payload, one strip.
	pixelData := new(bytes.Buffer)
	switch sampleFormat {
	case SampleFormatFloat:
		for _, v := range r.Pixels {
			var b [4]byte
			enc.PutUint32(b[:], math.Float32bits(v))
			pixelData.Write(b[:])
		}
	case SampleFormatUint:
		for _, v := range r.Pixels {
			clamped := v
			if clamped < 0 {
				clamped = 0
			}
			if clamped > 255 {
				clamped = 255
			}
			pixelData.WriteByte(uint8(clamped))
		}
	default:
		return fmt.Errorf("unsupported sample format %d", sampleFormat)
	}
	pixels := pixelData.Bytes()

	var entries []ifdEntry
	addEntry := func(tag uint16, datatype uint16, count uint32, data []byte) {
		entries = append(entries, ifdEntry{tag, datatype, count, data})
	}

	bits := uint16(32)
	if sampleFormat == SampleFormatUint {
		bits = 8
	}

	addEntry(TagType_ImageWidth, DataType_Long, 1, enc32(uint32(r.Width)))
	addEntry(TagType_ImageLength, DataType_Long, 1, enc32(uint32(r.Height)))
	addEntry(TagType_BitsPerSample, DataType_Short, 1, enc16(bits))
	addEntry(TagType_Compression, DataType_Short, 1, enc16(1))               // none
	addEntry(TagType_PhotometricInterpretation, DataType_Short, 1, enc16(1)) // BlackIsZero
	addEntry(TagType_SamplesPerPixel, DataType_Short, 1, enc16(1))
	addEntry(TagType_RowsPerStrip, DataType_Long, 1, enc32(uint32(r.Height)))
	addEntry(TagType_SampleFormat, DataType_Short, 1, enc16(sampleFormat))

	// Placeholders, fixed up once the pixel offset is known.
	addEntry(TagType_StripOffsets, DataType_Long, 1, make([]byte, 4))
	addEntry(TagType_StripByteCounts, DataType_Long, 1, enc32(uint32(len(pixels))))

	// Georeferencing: pixel scale + tiepoint tie raster (0,0) to the
	// origin, the citation geokey carries the projection string.
	gt := r.Geotransform
	addEntry(TagType_ModelPixelScaleTag, DataType_Double, 3,
		encDoubles([]float64{math.Abs(gt[1]), math.Abs(gt[5]), 0}))
	addEntry(TagType_ModelTiepointTag, DataType_Double, 6,
		encDoubles([]float64{0, 0, 0, gt[0], gt[3], 0}))

	if r.Projection != "" {
		ascii := append([]byte(r.Projection), '|', 0)
		addEntry(TagType_GeoAsciiParamsTag, DataType_ASCII, uint32(len(ascii)), ascii)
		// Version 1.1.0, one key: GTCitationGeoKey (1026) stored in the
		// ascii params tag.
		keys := []uint16{
			1, 1, 0, 1,
			1026, TagType_GeoAsciiParamsTag, uint16(len(ascii)), 0,
		}
		addEntry(TagType_GeoKeyDirectoryTag, DataType_Short, uint32(len(keys)), enc16s(keys))
	}

	sort.Sort(byTag(entries))

	// IFD layout: count + 12 bytes per entry + next-IFD pointer, then the
	// spillover value area, then pixels.
	ifdSize := 2 + 12*len(entries) + 4
	valueDataOffset := 8 + ifdSize

	var largeDataBuf bytes.Buffer
	for i := range entries {
		e := &entries[i]
		if len(e.data) > 4 {
			currentOffset := uint32(valueDataOffset + largeDataBuf.Len())
			largeDataBuf.Write(e.data)
			e.data = enc32(currentOffset)
		}
	}

	pixelsOffset := uint32(valueDataOffset + largeDataBuf.Len())
	for i := range entries {
		if entries[i].tag == TagType_StripOffsets {
			entries[i].data = enc32(pixelsOffset)
		}
	}

	if err := binary.Write(w, enc, uint16(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := binary.Write(w, enc, e.tag); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.datatype); err != nil {
			return err
		}
		if err := binary.Write(w, enc, e.count); err != nil {
			return err
		}
		var val [4]byte
		copy(val[:], e.data)
		if _, err := w.Write(val[:]); err != nil {
			return err
		}
	}
	if err := binary.Write(w, enc, uint32(0)); err != nil {
		return err
	}
	if _, err := largeDataBuf.WriteTo(w); err != nil {
		return err
	}
	if _, err := w.Write(pixels); err != nil {
		return err
	}
	return nil
}

// Helpers

func enc16(v uint16) []byte {
	b := make([]byte, 2)
	enc.PutUint16(b, v)
	return b
}

func enc32(v uint32) []byte {
	b := make([]byte, 4)
	enc.PutUint32(b, v)
	return b
}

func enc16s(vs []uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		enc.PutUint16(b[i*2:], v)
	}
	return b
}

func encDoubles(vs []float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		enc.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}
