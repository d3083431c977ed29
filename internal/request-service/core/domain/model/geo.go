package model

import (
	"errors"
	"math"
)

const (
	EarthRadiusKm      = 6371.0
	AssumedSpeedKmh    = 40.0
	ArrivalThresholdKm = 0.05
)

var ErrInvalidLocation = errors.New("invalid location: latitude must be in [-90, 90], longitude in [-180, 180]")

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l Location) Validate() error {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lng) || math.Abs(l.Lat) > 90 || math.Abs(l.Lng) > 180 {
		return ErrInvalidLocation
	}
	return nil
}

// HaversineKm is the great-circle distance between a and b in kilometres.
func HaversineKm(a, b Location) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// EtaMinutes assumes AssumedSpeedKmh door to door.
func EtaMinutes(distanceKm float64) float64 {
	return distanceKm / AssumedSpeedKmh * 60
}
