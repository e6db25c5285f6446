package ports

import (
	"context"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
)

type Fetcher interface {
	FetchCurrent(ctx context.Context, pos entities.Position) (entities.Observation, error)
	HealthCheck(ctx context.Context) error
}

type FetcherFactory interface {
	CreateFetcher(baseURL, apiKey string) Fetcher
}
