package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
	"github.com/k-shtanenko/weather-relay/internal/domain/ports"
	"github.com/k-shtanenko/weather-relay/internal/pkg/logger"
)

const DefaultIPAPIEndpoint = "http://ip-api.com/json/?fields=status,message,lat,lon"

type IPAPILocator struct {
	client   *http.Client
	endpoint string
	logger   logger.Logger
}

func NewIPAPILocator(client *http.Client, endpoint string, log logger.Logger) *IPAPILocator {
	if client == nil {
		client = &http.Client{}
	}
	if endpoint == "" {
		endpoint = DefaultIPAPIEndpoint
	}
	return &IPAPILocator{
		client:   client,
		endpoint: endpoint,
		logger:   log.WithField("component", "ipapi_locator"),
	}
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (l *IPAPILocator) CurrentPosition(ctx context.Context, _ entities.PositionOptions) (entities.Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return entities.Position{}, fmt.Errorf("%w: create request: %v", ErrLookupFailed, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return entities.Position{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return entities.Position{}, fmt.Errorf("%w: status %d: %s", ErrLookupFailed, resp.StatusCode, string(body))
	}

	var payload ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return entities.Position{}, fmt.Errorf("%w: decode response: %v", ErrLookupFailed, err)
	}
	if payload.Status != "success" {
		return entities.Position{}, fmt.Errorf("%w: %s", ErrLookupFailed, payload.Message)
	}

	l.logger.Debugf("Resolved position lat=%f lon=%f", payload.Lat, payload.Lon)
	return entities.Position{
		Latitude:  payload.Lat,
		Longitude: payload.Lon,
		Timestamp: time.Now(),
		Source:    "ip-api",
	}, nil
}

type LocatorFactory struct {
	client    *http.Client
	endpoint  string
	latitude  float64
	longitude float64
	logger    logger.Logger
}

func NewLocatorFactory(client *http.Client, endpoint string, latitude, longitude float64, log logger.Logger) ports.LocatorFactory {
	return &LocatorFactory{
		client:    client,
		endpoint:  endpoint,
		latitude:  latitude,
		longitude: longitude,
		logger:    log,
	}
}

// CreateLocator returns the provider wrapped in a CachingLocator.
func (f *LocatorFactory) CreateLocator(provider string) (ports.Locator, error) {
	var raw ports.Locator
	switch provider {
	case "static":
		raw = NewStaticLocator(f.latitude, f.longitude)
	case "ipapi", "":
		raw = NewIPAPILocator(f.client, f.endpoint, f.logger)
	default:
		return nil, fmt.Errorf("unknown geolocation provider %q", provider)
	}
	f.logger.Infof("Creating %s locator", provider)
	return NewCachingLocator(raw, f.logger), nil
}
