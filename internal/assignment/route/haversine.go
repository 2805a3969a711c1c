package route

import (
	"context"
	"fmt"
	"math"

	"assessor-dispatch/internal/models"
)

const earthRadiusKm = 6371.0

// Geocoder resolves a free-text address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coordinates, error)
}

// HaversineService estimates road distance as great-circle distance times a
// road factor, and travel time from a fixed average speed.
type HaversineService struct {
	geocoder   Geocoder
	speedKmh   float64
	roadFactor float64
}

func NewHaversineService(geocoder Geocoder, averageSpeedKmh, roadFactor float64) *HaversineService {
	if averageSpeedKmh <= 0 {
		averageSpeedKmh = 40
	}
	if roadFactor < 1 {
		roadFactor = 1
	}
	return &HaversineService{geocoder: geocoder, speedKmh: averageSpeedKmh, roadFactor: roadFactor}
}

func (s *HaversineService) Estimate(ctx context.Context, origin, destination string) (Route, error) {
	from, err := s.geocoder.Geocode(ctx, origin)
	if err != nil {
		return Route{}, fmt.Errorf("geocode origin: %w", err)
	}
	to, err := s.geocoder.Geocode(ctx, destination)
	if err != nil {
		return Route{}, fmt.Errorf("geocode destination: %w", err)
	}

	km := GreatCircleKm(from, to) * s.roadFactor
	return Route{
		DistanceKm:    math.Round(km*10) / 10,
		TravelMinutes: math.Round(km / s.speedKmh * 60),
	}, nil
}

// GreatCircleKm is the haversine distance between two points.
func GreatCircleKm(a, b models.Coordinates) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
