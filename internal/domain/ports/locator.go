package ports

import (
	"context"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
)

type Locator interface {
	CurrentPosition(ctx context.Context, opts entities.PositionOptions) (entities.Position, error)
}

type LocatorFactory interface {
	CreateLocator(provider string) (Locator, error)
}
