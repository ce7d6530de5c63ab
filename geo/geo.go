// geo/geo.go
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadius is the mean earth radius in meters (IUGG).
const EarthRadius = 6371008.8

var ErrInvalidArgument = errors.New("invalid argument")

// Coordinate is a WGS84 position.
type Coordinate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

func (c Coordinate) Validate() error {
	if math.IsNaN(c.Longitude) || math.IsNaN(c.Latitude) ||
		math.IsInf(c.Longitude, 0) || math.IsInf(c.Latitude, 0) {
		return fmt.Errorf("%w: coordinate is not finite", ErrInvalidArgument)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidArgument, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidArgument, c.Longitude)
	}
	return nil
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	lat1, lat2 := radians(a.Latitude), radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h a hair past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadius * math.Asin(math.Sqrt(h))
}

// NearestHome returns the home closest to p and its distance. Ties go to the
// earliest home in the slice.
func NearestHome(p Coordinate, homes []Coordinate) (Coordinate, float64, error) {
	if len(homes) == 0 {
		return Coordinate{}, 0, fmt.Errorf("%w: no homes", ErrInvalidArgument)
	}
	best, bestDist := homes[0], Distance(p, homes[0])
	for _, h := range homes[1:] {
		if d := Distance(p, h); d < bestDist {
			best, bestDist = h, d
		}
	}
	return best, bestDist, nil
}

// Destination walks meters from origin along the initial bearing (degrees
// clockwise from north).
func Destination(origin Coordinate, meters, bearing float64) Coordinate {
	delta := meters / EarthRadius
	theta := radians(bearing)
	lat1 := radians(origin.Latitude)
	lon1 := radians(origin.Longitude)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)
	lon := math.Mod(degrees(lon2)+540, 360) - 180
	return Coordinate{Longitude: lon, Latitude: degrees(lat2)}
}
