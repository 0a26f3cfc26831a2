package geotiff

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// rawEntry is an IFD entry as read from the file, value still unresolved.
type rawEntry struct {
	datatype uint16
	count    uint32
	value    []byte // resolved value bytes
}

// Decode reads a single-band GeoTIFF produced by Encode/EncodeByte (or any
// uncompressed, little-endian, strip-organized equivalent such as default
// GDAL output) into a Raster. Byte rasters are widened to float32.
func Decode(r io.ReaderAt) (*Raster, error) {
	var header [8]byte
	if _, err := r.ReadAt(header[:], 0); err != nil {
		return nil, fmt.Errorf("failed to read TIFF header: %w", err)
	}
	if header[0] != 'I' || header[1] != 'I' {
		return nil, fmt.Errorf("unsupported TIFF byte order %q (only little-endian is handled)", header[:2])
	}
	if enc.Uint16(header[2:4]) != 42 {
		return nil, fmt.Errorf("not a classic TIFF file")
	}
	ifdOffset := int64(enc.Uint32(header[4:8]))

	entries, err := readIFD(r, ifdOffset)
	if err != nil {
		return nil, err
	}

	width := int(entryUint(entries, TagType_ImageWidth, 0))
	height := int(entryUint(entries, TagType_ImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid raster dimensions %dx%d", width, height)
	}
	if c := entryUint(entries, TagType_Compression, 1); c != 1 {
		return nil, fmt.Errorf("unsupported TIFF compression %d", c)
	}
	if spp := entryUint(entries, TagType_SamplesPerPixel, 1); spp != 1 {
		return nil, fmt.Errorf("expected single-band raster, got %d samples per pixel", spp)
	}

	bits := entryUint(entries, TagType_BitsPerSample, 1)
	format := entryUint(entries, TagType_SampleFormat, SampleFormatUint)

	var bytesPerPixel int
	switch {
	case bits == 32 && format == SampleFormatFloat:
		bytesPerPixel = 4
	case bits == 8 && format == SampleFormatUint:
		bytesPerPixel = 1
	default:
		return nil, fmt.Errorf("unsupported sample layout: %d bits, format %d", bits, format)
	}

	offsets, err := entryUints(entries, TagType_StripOffsets)
	if err != nil {
		return nil, fmt.Errorf("missing strip offsets: %w", err)
	}
	counts, err := entryUints(entries, TagType_StripByteCounts)
	if err != nil {
		return nil, fmt.Errorf("missing strip byte counts: %w", err)
	}
	if len(offsets) != len(counts) {
		return nil, fmt.Errorf("strip offsets/counts mismatch: %d vs %d", len(offsets), len(counts))
	}

	raw := make([]byte, 0, width*height*bytesPerPixel)
	for i := range offsets {
		strip := make([]byte, counts[i])
		if _, err := r.ReadAt(strip, int64(offsets[i])); err != nil {
			return nil, fmt.Errorf("failed to read strip %d: %w", i, err)
		}
		raw = append(raw, strip...)
	}
	if len(raw) < width*height*bytesPerPixel {
		return nil, fmt.Errorf("pixel data truncated: have %d bytes, need %d", len(raw), width*height*bytesPerPixel)
	}

	pixels := make([]float32, width*height)
	if bytesPerPixel == 4 {
		for i := range pixels {
			pixels[i] = math.Float32frombits(enc.Uint32(raw[i*4:]))
		}
	} else {
		for i := range pixels {
			pixels[i] = float32(raw[i])
		}
	}

	out := &Raster{
		Width:  width,
		Height: height,
		Pixels: pixels,
	}

	// Georeferencing. Defaults to an identity-ish transform when the geo
	// tags are absent so plain TIFFs still decode.
	out.Geotransform = [6]float64{0, 1, 0, 0, 0, -1}
	if scale, err := entryDoubles(entries, TagType_ModelPixelScaleTag); err == nil && len(scale) >= 2 {
		out.Geotransform[1] = scale[0]
		out.Geotransform[5] = -scale[1]
	}
	if tie, err := entryDoubles(entries, TagType_ModelTiepointTag); err == nil && len(tie) >= 6 {
		// Tiepoint maps pixel (I,J) to model (X,Y); shift back to pixel (0,0).
		out.Geotransform[0] = tie[3] - tie[0]*out.Geotransform[1]
		out.Geotransform[3] = tie[4] - tie[1]*out.Geotransform[5]
	}
	if e, ok := entries[TagType_GeoAsciiParamsTag]; ok {
		s := string(e.value)
		s = strings.TrimRight(s, "\x00")
		s = strings.TrimRight(s, "|")
		out.Projection = s
	}

	return out, nil
}

func readIFD(r io.ReaderAt, offset int64) (map[uint16]rawEntry, error) {
	var countBuf [2]byte
	if _, err := r.ReadAt(countBuf[:], offset); err != nil {
		return nil, fmt.Errorf("failed to read IFD at %d: %w", offset, err)
	}
	n := int(enc.Uint16(countBuf[:]))

	table := make([]byte, 12*n)
	if _, err := r.ReadAt(table, offset+2); err != nil {
		return nil, fmt.Errorf("failed to read IFD entries: %w", err)
	}

	entries := make(map[uint16]rawEntry, n)
	for i := 0; i < n; i++ {
		rec := table[i*12 : (i+1)*12]
		tag := enc.Uint16(rec[0:2])
		datatype := enc.Uint16(rec[2:4])
		count := enc.Uint32(rec[4:8])

		size := typeSize(datatype) * int(count)
		var value []byte
		if size <= 4 {
			value = append([]byte(nil), rec[8:8+max(size, 0)]...)
		} else {
			valueOffset := int64(enc.Uint32(rec[8:12]))
			value = make([]byte, size)
			if _, err := r.ReadAt(value, valueOffset); err != nil {
				return nil, fmt.Errorf("failed to read value for tag %d: %w", tag, err)
			}
		}
		entries[tag] = rawEntry{datatype: datatype, count: count, value: value}
	}
	return entries, nil
}

func typeSize(datatype uint16) int {
	switch datatype {
	case DataType_Byte, DataType_ASCII:
		return 1
	case DataType_Short:
		return 2
	case DataType_Long, DataType_Float:
		return 4
	case DataType_Rational, DataType_Double:
		return 8
	default:
		return 1
	}
}

// entryUint returns the first value of an integer tag, or def when absent.
func entryUint(entries map[uint16]rawEntry, tag uint16, def uint32) uint32 {
	vs, err := entryUints(entries, tag)
	if err != nil || len(vs) == 0 {
		return def
	}
	return vs[0]
}

func entryUints(entries map[uint16]rawEntry, tag uint16) ([]uint32, error) {
	e, ok := entries[tag]
	if !ok {
		return nil, fmt.Errorf("tag %d not present", tag)
	}
	out := make([]uint32, e.count)
	for i := range out {
		switch e.datatype {
		case DataType_Short:
			out[i] = uint32(enc.Uint16(e.value[i*2:]))
		case DataType_Long:
			out[i] = enc.Uint32(e.value[i*4:])
		default:
			return nil, fmt.Errorf("tag %d has non-integer type %d", tag, e.datatype)
		}
	}
	return out, nil
}

func entryDoubles(entries map[uint16]rawEntry, tag uint16) ([]float64, error) {
	e, ok := entries[tag]
	if !ok {
		return nil, fmt.Errorf("tag %d not present", tag)
	}
	if e.datatype != DataType_Double {
		return nil, fmt.Errorf("tag %d has non-double type %d", tag, e.datatype)
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(enc.Uint64(e.value[i*8:]))
	}
	return out, nil
}
