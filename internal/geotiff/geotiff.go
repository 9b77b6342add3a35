// Package geotiff reads and writes single-band, uncompressed floating point GeoTIFF rasters.
//
// The writer emits a baseline little-endian TIFF with one strip, IEEE float samples,
// ModelPixelScale/ModelTiepoint tags for the north-up affine transform and a
// GeoKeyDirectory carrying the model type, PixelIsArea raster type and EPSG code.
// The reader accepts either byte order, 32 or 64 bit float samples and any number of strips.
package geotiff

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/kjstillabower/airquality-mockdata/internal/artifact"
	"github.com/kjstillabower/airquality-mockdata/internal/models"
)

// ErrNotTIFF is returned when the input does not start with a TIFF header.
var ErrNotTIFF = errors.New("not a tiff file")

// ErrUnsupported is returned for valid TIFF files using features this package does not read.
var ErrUnsupported = errors.New("unsupported tiff layout")

// ErrMalformed is returned when offsets or counts point outside the file.
var ErrMalformed = errors.New("malformed tiff")

const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735

	typeByte      = 1
	typeASCII     = 2
	typeShort     = 3
	typeLong      = 4
	typeRational  = 5
	typeSByte     = 6
	typeUndefined = 7
	typeSShort    = 8
	typeSLong     = 9
	typeSRational = 10
	typeFloat     = 11
	typeDouble    = 12

	sampleFormatIEEEFloat = 3

	keyModelType          = 1024
	keyRasterType         = 1025
	keyGeographicType     = 2048
	keyProjectedCSType    = 3072
	modelTypeProjected    = 1
	modelTypeGeographic   = 2
	rasterTypePixelIsArea = 1
)

// Encode writes r as a little-endian float64 GeoTIFF.
func Encode(w io.Writer, r models.Raster) error {
	return encode(w, r, binary.LittleEndian, 64)
}

// WriteFile overwrites path with r and returns the number of bytes written.
func WriteFile(path string, r models.Raster) (int64, error) {
	return artifact.WriteFile(path, func(w io.Writer) error { return Encode(w, r) })
}

// ReadFile decodes the raster stored at path.
func ReadFile(path string) (models.Raster, error) {
	f, err := artifact.Open(path)
	if err != nil {
		return models.Raster{}, err
	}
	defer f.Close()
	r, err := Decode(f)
	if err != nil {
		return models.Raster{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return r, nil
}

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func encode(w io.Writer, r models.Raster, order binary.ByteOrder, bits int) error {
	g := r.Grid
	if g.Height <= 0 || g.Width <= 0 {
		return fmt.Errorf("encode: empty grid %dx%d", g.Height, g.Width)
	}
	if len(g.Values) != g.Height*g.Width {
		return fmt.Errorf("encode: grid has %d values, want %d", len(g.Values), g.Height*g.Width)
	}
	if bits != 32 && bits != 64 {
		return fmt.Errorf("encode: %d bits per sample: %w", bits, ErrUnsupported)
	}
	code, err := models.EPSGCode(r.CRS)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	bytesPerSample := bits / 8
	pixelBytes := g.Height * g.Width * bytesPerSample

	modelType, crsKey := uint16(modelTypeProjected), uint16(keyProjectedCSType)
	if isGeographic(code) {
		modelType, crsKey = modelTypeGeographic, keyGeographicType
	}
	t := r.Transform

	entries := []entry{
		longEntry(order, tagImageWidth, uint32(g.Width)),
		longEntry(order, tagImageLength, uint32(g.Height)),
		shortEntry(order, tagBitsPerSample, uint16(bits)),
		shortEntry(order, tagCompression, 1),
		shortEntry(order, tagPhotometric, 1),
		longEntry(order, tagStripOffsets, 0),
		shortEntry(order, tagSamplesPerPixel, 1),
		longEntry(order, tagRowsPerStrip, uint32(g.Height)),
		longEntry(order, tagStripByteCounts, uint32(pixelBytes)),
		shortEntry(order, tagPlanarConfig, 1),
		shortEntry(order, tagSampleFormat, sampleFormatIEEEFloat),
		doubleEntry(order, tagModelPixelScale, t.CellWidth, t.CellHeight, 0),
		doubleEntry(order, tagModelTiepoint, 0, 0, 0, t.OriginX, t.OriginY, 0),
		shortEntry(order, tagGeoKeyDirectory,
			1, 1, 0, 3,
			keyModelType, 0, 1, modelType,
			keyRasterType, 0, 1, rasterTypePixelIsArea,
			crsKey, 0, 1, uint16(code),
		),
	}

	// Out-of-line values follow the IFD, word aligned; pixels start on an 8 byte boundary.
	offset := 8 + 2 + len(entries)*12 + 4
	offsets := make([]int, len(entries))
	for i, e := range entries {
		if len(e.data) <= 4 {
			continue
		}
		offsets[i] = offset
		offset += len(e.data)
		offset += offset % 2
	}
	pixelOffset := (offset + 7) &^ 7
	for i := range entries {
		if entries[i].tag == tagStripOffsets {
			order.PutUint32(entries[i].data, uint32(pixelOffset))
		}
	}

	bw := bufio.NewWriter(w)
	if order == binary.BigEndian {
		bw.WriteString("MM")
	} else {
		bw.WriteString("II")
	}
	var buf [12]byte
	order.PutUint16(buf[:2], 42)
	order.PutUint32(buf[2:6], 8)
	bw.Write(buf[:6])

	order.PutUint16(buf[:2], uint16(len(entries)))
	bw.Write(buf[:2])
	for i, e := range entries {
		order.PutUint16(buf[0:2], e.tag)
		order.PutUint16(buf[2:4], e.typ)
		order.PutUint32(buf[4:8], e.count)
		clear(buf[8:12])
		if len(e.data) <= 4 {
			copy(buf[8:12], e.data)
		} else {
			order.PutUint32(buf[8:12], uint32(offsets[i]))
		}
		bw.Write(buf[:12])
	}
	clear(buf[:4])
	bw.Write(buf[:4])

	written := 8 + 2 + len(entries)*12 + 4
	for i, e := range entries {
		if len(e.data) <= 4 {
			continue
		}
		bw.Write(make([]byte, offsets[i]-written))
		bw.Write(e.data)
		written = offsets[i] + len(e.data)
	}
	bw.Write(make([]byte, pixelOffset-written))

	for _, v := range g.Values {
		if bits == 64 {
			order.PutUint64(buf[:8], math.Float64bits(v))
			bw.Write(buf[:8])
		} else {
			order.PutUint32(buf[:4], math.Float32bits(float32(v)))
			bw.Write(buf[:4])
		}
	}
	return bw.Flush()
}

// isGeographic reports whether an EPSG code falls in the geographic 2-D CRS range.
func isGeographic(code int) bool {
	return code >= 4000 && code < 5000
}

func shortEntry(order binary.ByteOrder, tag uint16, vals ...uint16) entry {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		order.PutUint16(data[2*i:], v)
	}
	return entry{tag: tag, typ: typeShort, count: uint32(len(vals)), data: data}
}

func longEntry(order binary.ByteOrder, tag uint16, v uint32) entry {
	data := make([]byte, 4)
	order.PutUint32(data, v)
	return entry{tag: tag, typ: typeLong, count: 1, data: data}
}

func doubleEntry(order binary.ByteOrder, tag uint16, vals ...float64) entry {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		order.PutUint64(data[8*i:], math.Float64bits(v))
	}
	return entry{tag: tag, typ: typeDouble, count: uint32(len(vals)), data: data}
}
