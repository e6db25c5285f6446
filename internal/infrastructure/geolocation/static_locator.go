package geolocation

import (
	"context"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
)

// StaticLocator reports a configured position, for hosts without a
// positioning capability.
type StaticLocator struct {
	latitude  float64
	longitude float64
}

func NewStaticLocator(latitude, longitude float64) *StaticLocator {
	return &StaticLocator{latitude: latitude, longitude: longitude}
}

func (l *StaticLocator) CurrentPosition(ctx context.Context, _ entities.PositionOptions) (entities.Position, error) {
	if err := ctx.Err(); err != nil {
		return entities.Position{}, err
	}
	return entities.Position{
		Latitude:  l.latitude,
		Longitude: l.longitude,
		Source:    "static",
	}, nil
}
