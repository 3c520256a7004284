package raster

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/sells-group/dataload/internal/model"
)

type tiffEntry struct {
	tag     uint16
	typ     uint16
	count   uint32
	payload []byte
}

func shorts(v ...uint16) []byte {
	var b []byte
	for _, s := range v {
		b = binary.LittleEndian.AppendUint16(b, s)
	}
	return b
}

func doubles(v ...float64) []byte {
	var b []byte
	for _, f := range v {
		b = binary.LittleEndian.AppendUint64(b, math.Float64bits(f))
	}
	return b
}

// buildGeoTIFF writes a little-endian, uncompressed 8-bit grayscale GeoTIFF
// with one strip. geoKeys is the flattened GeoKey directory; extra entries
// are appended to the directory.
func buildGeoTIFF(t *testing.T, w, h int, geoKeys []uint16, noData string, extra ...tiffEntry) []byte {
	t.Helper()
	pixels := make([]byte, w*h)
	for i := range pixels {
		pixels[i] = byte(i * 10)
	}

	entries := []tiffEntry{
		{256, 3, 1, shorts(uint16(w))},
		{257, 3, 1, shorts(uint16(h))},
		{258, 3, 1, shorts(8)},
		{259, 3, 1, shorts(1)},
		{262, 3, 1, shorts(1)},
		{273, 4, 1, nil}, // strip offset, patched below
		{277, 3, 1, shorts(1)},
		{278, 3, 1, shorts(uint16(h))},
		{279, 4, 1, binary.LittleEndian.AppendUint32(nil, uint32(len(pixels)))},
		{33550, 12, 3, doubles(30, 30, 0)},
		{33922, 12, 6, doubles(0, 0, 0, 500000, 3300000, 0)},
	}
	if geoKeys != nil {
		entries = append(entries, tiffEntry{34735, 3, uint32(len(geoKeys)), shorts(geoKeys...)})
	}
	if noData != "" {
		s := append([]byte(noData), 0)
		entries = append(entries, tiffEntry{42113, 2, uint32(len(s)), s})
	}
	entries = append(entries, extra...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	ifdSize := 2 + 12*len(entries) + 4
	extraOff := 8 + ifdSize
	var overflow []byte
	for _, e := range entries {
		if len(e.payload) > 4 {
			overflow = append(overflow, e.payload...)
			if len(overflow)%2 == 1 {
				overflow = append(overflow, 0)
			}
		}
	}
	pixelOff := extraOff + len(overflow)

	var buf bytes.Buffer
	buf.WriteString("II*\x00")
	buf.Write(binary.LittleEndian.AppendUint32(nil, 8))
	buf.Write(shorts(uint16(len(entries))))
	next := extraOff
	for _, e := range entries {
		if e.tag == 273 {
			e.payload = binary.LittleEndian.AppendUint32(nil, uint32(pixelOff))
		}
		buf.Write(shorts(e.tag, e.typ))
		buf.Write(binary.LittleEndian.AppendUint32(nil, e.count))
		if len(e.payload) > 4 {
			buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(next)))
			next += len(e.payload) + len(e.payload)%2
			continue
		}
		inline := make([]byte, 4)
		copy(inline, e.payload)
		buf.Write(inline)
	}
	buf.Write(make([]byte, 4)) // no next IFD
	buf.Write(overflow)
	buf.Write(pixels)
	return buf.Bytes()
}

func utm14Keys() []uint16 {
	return []uint16{
		1, 1, 0, 2,
		1024, 0, 1, 1,
		3072, 0, 1, 32614,
	}
}

func TestOpen_GeoTIFF(t *testing.T) {
	data := buildGeoTIFF(t, 4, 3, utm14Keys(), "-9999")

	h, err := Open(data)
	require.NoError(t, err)
	assert.Equal(t, model.KindRaster, h.Kind())
	assert.Equal(t, 4, h.Width)
	assert.Equal(t, 3, h.Height)
	assert.Equal(t, 1, h.Bands)
	assert.Equal(t, 8, h.BitsPerSample)
	assert.Equal(t, 1, h.Compression)
	assert.Equal(t, "EPSG:32614", h.CRS)
	assert.Equal(t, []float64{500000, 30, 0, 3300000, 0, -30}, h.GeoTransform)
	require.NotNil(t, h.NoData)
	assert.Equal(t, -9999.0, *h.NoData)

	minX, minY, maxX, maxY, ok := h.Bounds()
	require.True(t, ok)
	assert.Equal(t, 500000.0, minX)
	assert.Equal(t, 3300000.0-90, minY)
	assert.Equal(t, 500000.0+120, maxX)
	assert.Equal(t, 3300000.0, maxY)
}

func TestHandle_Image(t *testing.T) {
	h, err := Open(buildGeoTIFF(t, 4, 3, utm14Keys(), ""))
	require.NoError(t, err)
	assert.Nil(t, h.NoData)

	img, err := h.Image()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	assert.Equal(t, color.Gray{Y: 50}, color.GrayModel.Convert(img.At(1, 1)))
}

func TestHandle_ImageFloatSamples(t *testing.T) {
	data := buildGeoTIFF(t, 2, 2, utm14Keys(), "", tiffEntry{339, 3, 1, shorts(3)})

	h, err := Open(data)
	require.NoError(t, err)
	assert.Equal(t, 3, h.SampleFormat)
	assert.Equal(t, "EPSG:32614", h.CRS)

	_, err = h.Image()
	assert.ErrorIs(t, err, ErrFloatSamples)
}

func TestOpen_BigEndianPlainTIFF(t *testing.T) {
	// 1x1 8-bit gray, big-endian, with width, height and bits per sample only.
	var b []byte
	b = append(b, "MM\x00*"...)
	b = binary.BigEndian.AppendUint32(b, 8)
	b = binary.BigEndian.AppendUint16(b, 3)
	for _, e := range [][2]uint16{{256, 7}, {257, 5}, {258, 8}} {
		b = binary.BigEndian.AppendUint16(b, e[0])
		b = binary.BigEndian.AppendUint16(b, 3)
		b = binary.BigEndian.AppendUint32(b, 1)
		b = binary.BigEndian.AppendUint16(b, e[1])
		b = append(b, 0, 0)
	}
	b = binary.BigEndian.AppendUint32(b, 0)

	h, err := Open(b)
	require.NoError(t, err)
	assert.Equal(t, 7, h.Width)
	assert.Equal(t, 5, h.Height)
	assert.Equal(t, 8, h.BitsPerSample)
}

func TestOpen_GeographicKeys(t *testing.T) {
	keys := []uint16{
		1, 1, 0, 2,
		1024, 0, 1, 2,
		2048, 0, 1, 4269,
	}
	h, err := Open(buildGeoTIFF(t, 2, 2, keys, ""))
	require.NoError(t, err)
	assert.Equal(t, "EPSG:4269", h.CRS)
}

func TestOpen_UserDefinedCRS(t *testing.T) {
	keys := []uint16{
		1, 1, 0, 2,
		1024, 0, 1, 1,
		3072, 0, 1, 32767,
	}
	h, err := Open(buildGeoTIFF(t, 2, 2, keys, ""))
	require.NoError(t, err)
	assert.Empty(t, h.CRS)
}

func TestOpen_PlainTIFF(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewGray(image.Rect(0, 0, 5, 2))
	require.NoError(t, tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}))

	h, err := Open(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 5, h.Width)
	assert.Equal(t, 2, h.Height)
	assert.Equal(t, 8, h.Compression)
	assert.Empty(t, h.CRS)
	assert.Nil(t, h.GeoTransform)

	_, _, _, _, ok := h.Bounds()
	assert.False(t, ok)

	decoded, err := h.Image()
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestOpen_Invalid(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"not tiff":  []byte("GIF89a.............."),
		"bigtiff":   []byte("II+\x00\x08\x00\x00\x00"),
		"bad ifd":   []byte("II*\x00\xff\x00\x00\x00"),
		"truncated": []byte("II*\x00\x08\x00\x00\x00\x05\x00"),
	} {
		_, err := Open(data)
		assert.Error(t, err, name)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dem.tif")
	data := buildGeoTIFF(t, 2, 2, utm14Keys(), "")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	h, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, err = h.Image()
	assert.NoError(t, err, "pixels stay readable after the file is gone")

	_, err = OpenFile(path)
	assert.Error(t, err)
}
