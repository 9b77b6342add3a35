package geotiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/kjstillabower/airquality-mockdata/internal/models"
)

var typeSizes = map[uint16]int{
	typeByte: 1, typeASCII: 1, typeShort: 2, typeLong: 4, typeRational: 8,
	typeSByte: 1, typeUndefined: 1, typeSShort: 2, typeSLong: 4, typeSRational: 8,
	typeFloat: 4, typeDouble: 8,
}

type ifd struct {
	order   binary.ByteOrder
	entries map[uint16]entry
}

// Decode reads the first image of a TIFF stream into a Raster. A file without
// georeferencing tags decodes with an identity transform and an empty CRS.
func Decode(r io.Reader) (models.Raster, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return models.Raster{}, fmt.Errorf("read: %w", err)
	}
	d, err := parseIFD(b)
	if err != nil {
		return models.Raster{}, err
	}

	width, err := d.uint(tagImageWidth, 0)
	if err != nil {
		return models.Raster{}, err
	}
	height, err := d.uint(tagImageLength, 0)
	if err != nil {
		return models.Raster{}, err
	}
	if width == 0 || height == 0 {
		return models.Raster{}, fmt.Errorf("%w: image is %dx%d", ErrMalformed, width, height)
	}

	for _, req := range []struct {
		tag  uint16
		def  uint64
		want uint64
		name string
	}{
		{tagCompression, 1, 1, "compression"},
		{tagSamplesPerPixel, 1, 1, "samples per pixel"},
		{tagPlanarConfig, 1, 1, "planar configuration"},
		{tagSampleFormat, 1, sampleFormatIEEEFloat, "sample format"},
	} {
		got, err := d.uint(req.tag, req.def)
		if err != nil {
			return models.Raster{}, err
		}
		if got != req.want {
			return models.Raster{}, fmt.Errorf("%w: %s %d", ErrUnsupported, req.name, got)
		}
	}
	bits, err := d.uint(tagBitsPerSample, 0)
	if err != nil {
		return models.Raster{}, err
	}
	if bits != 32 && bits != 64 {
		return models.Raster{}, fmt.Errorf("%w: %d bits per sample", ErrUnsupported, bits)
	}

	pixels, err := d.strips(b)
	if err != nil {
		return models.Raster{}, err
	}
	bytesPerSample := int(bits / 8)
	if width > uint64(len(pixels)) || height > uint64(len(pixels)/bytesPerSample)/width {
		return models.Raster{}, fmt.Errorf("%w: %d pixel bytes for a %dx%d image", ErrMalformed, len(pixels), width, height)
	}
	n := int(width) * int(height)
	if len(pixels) < n*bytesPerSample {
		return models.Raster{}, fmt.Errorf("%w: %d pixel bytes, want %d", ErrMalformed, len(pixels), n*bytesPerSample)
	}

	grid := models.NewGrid(int(height), int(width))
	for i := range n {
		if bytesPerSample == 8 {
			grid.Values[i] = math.Float64frombits(d.order.Uint64(pixels[8*i:]))
		} else {
			grid.Values[i] = float64(math.Float32frombits(d.order.Uint32(pixels[4*i:])))
		}
	}

	transform, err := d.transform()
	if err != nil {
		return models.Raster{}, err
	}
	crs, err := d.crs()
	if err != nil {
		return models.Raster{}, err
	}
	return models.Raster{Grid: grid, Transform: transform, CRS: crs}, nil
}

func parseIFD(b []byte) (*ifd, error) {
	if len(b) < 8 {
		return nil, ErrNotTIFF
	}
	var order binary.ByteOrder
	switch string(b[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}
	if order.Uint16(b[2:4]) != 42 {
		return nil, ErrNotTIFF
	}

	off := int(order.Uint32(b[4:8]))
	if off+2 > len(b) {
		return nil, fmt.Errorf("%w: ifd offset %d", ErrMalformed, off)
	}
	count := int(order.Uint16(b[off:]))
	if off+2+count*12 > len(b) {
		return nil, fmt.Errorf("%w: ifd with %d entries truncated", ErrMalformed, count)
	}

	d := &ifd{order: order, entries: make(map[uint16]entry, count)}
	for i := range count {
		raw := b[off+2+i*12:]
		e := entry{
			tag:   order.Uint16(raw[0:2]),
			typ:   order.Uint16(raw[2:4]),
			count: order.Uint32(raw[4:8]),
		}
		size, ok := typeSizes[e.typ]
		if !ok {
			continue
		}
		total := size * int(e.count)
		if total <= 4 {
			e.data = raw[8 : 8+total]
		} else {
			at := int(order.Uint32(raw[8:12]))
			if at < 0 || at+total > len(b) {
				return nil, fmt.Errorf("%w: tag %d data out of range", ErrMalformed, e.tag)
			}
			e.data = b[at : at+total]
		}
		d.entries[e.tag] = e
	}
	return d, nil
}

// uints returns the integer values of a SHORT or LONG tag.
func (d *ifd) uints(tag uint16) ([]uint64, bool, error) {
	e, ok := d.entries[tag]
	if !ok {
		return nil, false, nil
	}
	out := make([]uint64, e.count)
	for i := range out {
		switch e.typ {
		case typeShort:
			out[i] = uint64(d.order.Uint16(e.data[2*i:]))
		case typeLong:
			out[i] = uint64(d.order.Uint32(e.data[4*i:]))
		default:
			return nil, true, fmt.Errorf("%w: tag %d has type %d", ErrUnsupported, tag, e.typ)
		}
	}
	return out, true, nil
}

func (d *ifd) uint(tag uint16, def uint64) (uint64, error) {
	vals, ok, err := d.uints(tag)
	if err != nil {
		return 0, err
	}
	if !ok || len(vals) == 0 {
		if def == 0 {
			return 0, fmt.Errorf("%w: required tag %d missing", ErrMalformed, tag)
		}
		return def, nil
	}
	return vals[0], nil
}

func (d *ifd) doubles(tag uint16) []float64 {
	e, ok := d.entries[tag]
	if !ok || e.typ != typeDouble {
		return nil
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(d.order.Uint64(e.data[8*i:]))
	}
	return out
}

func (d *ifd) strips(b []byte) ([]byte, error) {
	offsets, ok, err := d.uints(tagStripOffsets)
	if err != nil {
		return nil, err
	}
	counts, ok2, err := d.uints(tagStripByteCounts)
	if err != nil {
		return nil, err
	}
	if !ok || !ok2 || len(offsets) != len(counts) {
		return nil, fmt.Errorf("%w: strip offsets and byte counts", ErrMalformed)
	}
	var out []byte
	for i := range offsets {
		start, count := offsets[i], counts[i]
		if start > uint64(len(b)) || count > uint64(len(b))-start {
			return nil, fmt.Errorf("%w: strip %d out of range", ErrMalformed, i)
		}
		out = append(out, b[start:start+count]...)
	}
	return out, nil
}

func (d *ifd) transform() (models.Transform, error) {
	scale := d.doubles(tagModelPixelScale)
	tie := d.doubles(tagModelTiepoint)
	if scale == nil && tie == nil {
		return models.FromOrigin(0, 0, 1, 1), nil
	}
	if len(scale) < 2 || len(tie) < 6 {
		return models.Transform{}, fmt.Errorf("%w: incomplete georeference", ErrMalformed)
	}
	sx, sy := scale[0], scale[1]
	west := tie[3] - tie[0]*sx
	north := tie[4] + tie[1]*sy
	return models.FromOrigin(west, north, sx, sy), nil
}

func (d *ifd) crs() (string, error) {
	keys, ok, err := d.uints(tagGeoKeyDirectory)
	if err != nil || !ok {
		return "", err
	}
	if len(keys) < 4 {
		return "", fmt.Errorf("%w: geokey directory header", ErrMalformed)
	}
	n := int(keys[3])
	if len(keys) < 4+4*n {
		return "", fmt.Errorf("%w: geokey directory truncated", ErrMalformed)
	}
	for i := range n {
		k := keys[4+4*i : 8+4*i]
		if (k[0] == keyGeographicType || k[0] == keyProjectedCSType) && k[1] == 0 {
			return fmt.Sprintf("EPSG:%d", k[3]), nil
		}
	}
	return "", nil
}
