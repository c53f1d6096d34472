// README: Google Maps wrappers for route estimates and breakdown geocoding.
package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"fleetops/internal/types"
)

// Pricing is a flat per-kilometre rate; the source app computed trip cost the
// same way from the estimated distance.
const costPerKmCents = 120

type Service struct {
	client *maps.Client
}

func NewService(apiKey string) (*Service, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &Service{client: client}, nil
}

// Estimate returns driving distance in km and the derived cost for a trip
// from pickup to destination through the ordered stops.
func (s *Service) Estimate(ctx context.Context, pickup, destination string, stops []string) (float64, types.Money, error) {
	r := &maps.DirectionsRequest{
		Origin:      pickup,
		Destination: destination,
		Mode:        maps.TravelModeDriving,
	}
	for _, stop := range stops {
		r.Waypoints = append(r.Waypoints, stop)
	}
	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, types.Money{}, fmt.Errorf("maps directions: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, types.Money{}, fmt.Errorf("no route found")
	}
	meters := 0
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
	}
	km := float64(meters) / 1000.0
	cost := types.Money{Amount: int64(km * costPerKmCents), Currency: "LKR"}
	return km, cost, nil
}

// ReverseGeocode resolves a GPS point into a street address for breakdown
// reports.
func (s *Service) ReverseGeocode(ctx context.Context, p types.Point) (string, error) {
	results, err := s.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no address for %.5f,%.5f", p.Lat, p.Lng)
	}
	return results[0].FormattedAddress, nil
}
