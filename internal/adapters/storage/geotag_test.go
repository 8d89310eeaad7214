package storage

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"
)

// geoJPEG builds a minimal JPEG whose EXIF block carries a GPS position.
// Degrees are stored as one rational with zero minutes and seconds.
func geoJPEG(lat, lng float64) []byte {
	le := binary.LittleEndian
	tiff := make([]byte, 128)
	copy(tiff, "II")
	le.PutUint16(tiff[2:], 42)
	le.PutUint32(tiff[4:], 8)

	// IFD0: a single GPS IFD pointer.
	le.PutUint16(tiff[8:], 1)
	entry := func(at int, tag, typ uint16, count, value uint32) {
		le.PutUint16(tiff[at:], tag)
		le.PutUint16(tiff[at+2:], typ)
		le.PutUint32(tiff[at+4:], count)
		le.PutUint32(tiff[at+8:], value)
	}
	entry(10, 0x8825, 4, 1, 26)

	ref := func(positive bool, pos, neg byte) uint32 {
		if positive {
			return uint32(pos)
		}
		return uint32(neg)
	}
	le.PutUint16(tiff[26:], 4)
	entry(28, 0x0001, 2, 2, ref(lat >= 0, 'N', 'S'))
	entry(40, 0x0002, 5, 3, 80)
	entry(52, 0x0003, 2, 2, ref(lng >= 0, 'E', 'W'))
	entry(64, 0x0004, 5, 3, 104)

	rationals := func(at int, deg float64) {
		le.PutUint32(tiff[at:], uint32(math.Round(math.Abs(deg)*1e6)))
		le.PutUint32(tiff[at+4:], 1e6)
		le.PutUint32(tiff[at+8:], 0)
		le.PutUint32(tiff[at+12:], 1)
		le.PutUint32(tiff[at+16:], 0)
		le.PutUint32(tiff[at+20:], 1)
	}
	rationals(80, lat)
	rationals(104, lng)

	app1 := append([]byte("Exif\x00\x00"), tiff...)
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(app1)+2))
	buf.Write(app1)
	buf.Write([]byte{0xFF, 0xD9})
	return buf.Bytes()
}

func photo(data []byte) *Attachment {
	return &Attachment{
		FileName: "selfie.jpg", ContentType: "image/jpeg", Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func TestReadGeoTag(t *testing.T) {
	tag, ok := ReadGeoTag(photo(geoJPEG(18.5204, -73.8567)))
	if !ok {
		t.Fatal("expected a geotag")
	}
	if math.Abs(tag.Latitude-18.5204) > 1e-6 || math.Abs(tag.Longitude+73.8567) > 1e-6 {
		t.Fatalf("unexpected position %+v", tag)
	}
}

func TestReadGeoTagWithoutExif(t *testing.T) {
	for name, att := range map[string]*Attachment{
		"plain bytes": photo([]byte("jpeg")),
		"null island": photo(geoJPEG(0, 0)),
		"nil":         nil,
	} {
		if _, ok := ReadGeoTag(att); ok {
			t.Fatalf("%s: expected no geotag", name)
		}
	}
}
