// Package raster opens GeoTIFF rasters. The header and georeferencing tags
// are read when a raster is opened; pixel data is decoded on demand.
package raster

import (
	"bytes"
	"encoding/binary"
	"image"
	"math"
	"os"
	"strconv"
	"strings"

	gtiff "github.com/google/tiff"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/image/tiff"

	"github.com/sells-group/dataload/internal/model"
)

// TIFF and GeoTIFF tags read from the first image file directory.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagSamplesPerPixel = 277
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113
)

// GeoKey ids.
const (
	keyModelType     = 1024
	keyGeographicCRS = 2048
	keyProjectedCRS  = 3072

	userDefined = 32767
)

const sampleFormatFloat = 3

// Handle is an opened raster. Pixel data stays encoded until Image is called.
type Handle struct {
	Width         int
	Height        int
	Bands         int
	BitsPerSample int
	SampleFormat  int // 1 unsigned, 2 signed, 3 float
	Compression   int

	// CRS is "EPSG:n" from the GeoKey directory, or "" when undeclared.
	CRS string
	// GeoTransform follows the GDAL convention: origin x, pixel width,
	// row rotation, origin y, column rotation, pixel height (negative for
	// north-up). Nil when the file has no tiepoint and pixel scale.
	GeoTransform []float64
	NoData       *float64

	data []byte
}

// Kind implements model.Dataset.
func (h *Handle) Kind() model.Kind { return model.KindRaster }

// Bounds returns the georeferenced extent (minX, minY, maxX, maxY).
func (h *Handle) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	gt := h.GeoTransform
	if gt == nil {
		return 0, 0, 0, 0, false
	}
	x0, y0 := gt[0], gt[3]
	x1 := gt[0] + float64(h.Width)*gt[1] + float64(h.Height)*gt[2]
	y1 := gt[3] + float64(h.Width)*gt[4] + float64(h.Height)*gt[5]
	return math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1), true
}

// ErrFloatSamples is returned by Image for floating-point rasters, which
// the pixel decoder cannot represent as an image.Image. The header fields
// of such rasters are still available.
var ErrFloatSamples = eris.New("raster: floating-point samples cannot be decoded to an image")

// Image decodes the pixel data. Integer samples of 1, 8 or 16 bits are
// supported; floating-point rasters (SampleFormat 3, common for elevation
// models) return ErrFloatSamples.
func (h *Handle) Image() (image.Image, error) {
	if h.SampleFormat == sampleFormatFloat {
		return nil, ErrFloatSamples
	}
	img, err := tiff.Decode(bytes.NewReader(h.data))
	if err != nil {
		return nil, eris.Wrap(err, "raster: decode pixels")
	}
	return img, nil
}

// OpenFile reads a GeoTIFF from disk. The file is read fully into memory so
// the handle stays valid after the file is removed.
func OpenFile(path string) (*Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: read %s", path)
	}
	return Open(data)
}

// Open parses the TIFF header and GeoTIFF tags of data.
func Open(data []byte) (*Handle, error) {
	d, err := newDirectory(data)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		Width:         d.first(tagImageWidth, 0),
		Height:        d.first(tagImageLength, 0),
		Bands:         d.first(tagSamplesPerPixel, 1),
		BitsPerSample: d.first(tagBitsPerSample, 1),
		SampleFormat:  d.first(tagSampleFormat, 1),
		Compression:   d.first(tagCompression, 1),
		data:          data,
	}
	if h.Width <= 0 || h.Height <= 0 {
		return nil, eris.Errorf("raster: bad dimensions %dx%d", h.Width, h.Height)
	}

	scale, tie := d.floats(tagModelPixelScale), d.floats(tagModelTiepoint)
	if len(scale) >= 2 && len(tie) >= 6 {
		h.GeoTransform = []float64{
			tie[3] - tie[0]*scale[0], scale[0], 0,
			tie[4] + tie[1]*scale[1], 0, -scale[1],
		}
	}

	h.CRS = geoKeyCRS(d.ints(tagGeoKeyDirectory))

	if s := strings.Trim(d.ascii(tagGDALNoData), "\x00 "); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			h.NoData = &v
		}
	}

	zap.L().Debug("raster: opened",
		zap.Int("width", h.Width),
		zap.Int("height", h.Height),
		zap.Int("bands", h.Bands),
		zap.String("crs", h.CRS),
	)
	return h, nil
}

// geoKeyCRS reads the projected or geographic CRS code from a GeoKey
// directory: a 4-short header followed by 4-short key entries.
func geoKeyCRS(dir []int) string {
	if len(dir) < 4 {
		return ""
	}
	keys := make(map[int]int)
	n := dir[3]
	for i := 0; i < n && 4+4*i+3 < len(dir); i++ {
		e := dir[4+4*i : 8+4*i]
		if e[1] == 0 { // value stored inline
			keys[e[0]] = e[3]
		}
	}

	code := keys[keyProjectedCRS]
	if keys[keyModelType] == 2 || code == 0 {
		code = keys[keyGeographicCRS]
	}
	if code == 0 || code == userDefined {
		return ""
	}
	return "EPSG:" + strconv.Itoa(code)
}

// directory wraps the first image file directory of a TIFF.
type directory struct {
	ifd gtiff.IFD
}

func newDirectory(data []byte) (*directory, error) {
	if len(data) < 8 {
		return nil, eris.New("raster: file too short for a TIFF header")
	}
	switch string(data[:4]) {
	case "II*\x00", "MM\x00*":
	case "II+\x00", "MM\x00+":
		return nil, eris.New("raster: BigTIFF is not supported")
	default:
		return nil, eris.New("raster: not a TIFF file")
	}

	t, err := gtiff.Parse(bytes.NewReader(data), nil, nil)
	if err != nil {
		return nil, eris.Wrap(err, "raster: parse TIFF header")
	}
	ifds := t.IFDs()
	if len(ifds) == 0 {
		return nil, eris.New("raster: no image file directory")
	}
	return &directory{ifd: ifds[0]}, nil
}

// raw returns the payload of tag with its byte order and element size.
func (d *directory) raw(tag uint16) ([]byte, binary.ByteOrder, int, bool) {
	if !d.ifd.HasField(tag) {
		return nil, nil, 0, false
	}
	f := d.ifd.GetField(tag)
	v, ft := f.Value(), f.Type()
	if v == nil || ft == nil {
		return nil, nil, 0, false
	}
	return v.Bytes(), v.Order(), int(ft.Size()), true
}

func (d *directory) ints(tag uint16) []int {
	b, order, size, ok := d.raw(tag)
	if !ok || size == 0 {
		return nil
	}
	out := make([]int, 0, len(b)/size)
	for i := 0; i+size <= len(b); i += size {
		switch size {
		case 1:
			out = append(out, int(b[i]))
		case 2:
			out = append(out, int(order.Uint16(b[i:])))
		case 4:
			out = append(out, int(order.Uint32(b[i:])))
		default:
			return nil
		}
	}
	return out
}

func (d *directory) first(tag uint16, def int) int {
	if v := d.ints(tag); len(v) > 0 {
		return v[0]
	}
	return def
}

// floats reads a DOUBLE array such as the model pixel scale or tiepoints.
func (d *directory) floats(tag uint16) []float64 {
	b, order, size, ok := d.raw(tag)
	if !ok || size != 8 {
		return nil
	}
	out := make([]float64, 0, len(b)/8)
	for i := 0; i+8 <= len(b); i += 8 {
		out = append(out, math.Float64frombits(order.Uint64(b[i:])))
	}
	return out
}

func (d *directory) ascii(tag uint16) string {
	b, _, size, ok := d.raw(tag)
	if !ok || size != 1 {
		return ""
	}
	return string(b)
}
