package storage

import (
	"github.com/rwcarlsen/goexif/exif"
)

// GeoTag is the capture position recorded in a photo.
type GeoTag struct {
	Latitude  float64
	Longitude float64
}

// ReadGeoTag returns the EXIF GPS position of att. Photos without EXIF data,
// without a position or with an out-of-range one report false.
func ReadGeoTag(att *Attachment) (GeoTag, bool) {
	if att == nil || att.Open == nil {
		return GeoTag{}, false
	}
	rc, err := att.Open()
	if err != nil {
		return GeoTag{}, false
	}
	defer rc.Close()

	x, err := exif.Decode(rc)
	if err != nil {
		return GeoTag{}, false
	}
	lat, lng, err := x.LatLong()
	if err != nil {
		return GeoTag{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 || (lat == 0 && lng == 0) {
		return GeoTag{}, false
	}
	return GeoTag{Latitude: lat, Longitude: lng}, true
}
