package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
	"github.com/k-shtanenko/weather-relay/internal/domain/ports"
	"github.com/k-shtanenko/weather-relay/internal/pkg/logger"
)

const (
	DefaultBaseURL = "http://api.openweathermap.org/data/2.5"
	sourceName     = "openweathermap"
)

type OpenWeatherFetcher struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  logger.Logger
}

func NewOpenWeatherFetcher(client *http.Client, baseURL, apiKey string, log logger.Logger) *OpenWeatherFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OpenWeatherFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  log.WithField("component", "openweather_fetcher"),
	}
}

// Only the fields the relay needs. Pointers tell "absent" apart from zero.
type currentWeatherResponse struct {
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Name string `json:"name"`
}

const redactedKey = "redacted"

func (f *OpenWeatherFetcher) requestURL(lat, lon float64) string {
	return f.buildURL(lat, lon, f.apiKey)
}

func (f *OpenWeatherFetcher) buildURL(lat, lon float64, apiKey string) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", apiKey)
	return f.baseURL + "/weather?" + q.Encode()
}

func (f *OpenWeatherFetcher) FetchCurrent(ctx context.Context, pos entities.Position) (entities.Observation, error) {
	if logger.IsDebugEnabled(f.logger) {
		f.logger.Debugf("GET %s", f.buildURL(pos.Latitude, pos.Longitude, redactedKey))
	}

	body, err := f.get(ctx, f.requestURL(pos.Latitude, pos.Longitude))
	if err != nil {
		return entities.Observation{}, err
	}

	obs, err := decodeObservation(body)
	if err != nil {
		return entities.Observation{}, err
	}

	f.logger.Debugf("Temperature is %.2fK, conditions are %s", obs.KelvinTemp, obs.Conditions)
	return obs, nil
}

func (f *OpenWeatherFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// decodeObservation fails with ErrMalformedResponse when the body is not JSON
// or lacks main.temp or weather[0].
func decodeObservation(body []byte) (entities.Observation, error) {
	var resp currentWeatherResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return entities.Observation{}, fmt.Errorf("failed to decode response: %w: %v", entities.ErrMalformedResponse, err)
	}
	if resp.Main == nil || resp.Main.Temp == nil {
		return entities.Observation{}, fmt.Errorf("%w: missing main.temp", entities.ErrMalformedResponse)
	}
	if len(resp.Weather) == 0 {
		return entities.Observation{}, fmt.Errorf("%w: missing weather[0]", entities.ErrMalformedResponse)
	}

	return entities.Observation{
		KelvinTemp: *resp.Main.Temp,
		Conditions: resp.Weather[0].Main,
		Source:     sourceName,
	}, nil
}

// HealthCheck probes the provider at 0,0 and only looks at the status code.
func (f *OpenWeatherFetcher) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.requestURL(0, 0), nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API health check failed with status: %d", resp.StatusCode)
	}

	f.logger.Debug("OpenWeatherMap API health check passed")
	return nil
}

type OpenWeatherFetcherFactory struct {
	client *http.Client
	logger logger.Logger
}

func NewOpenWeatherFetcherFactory(client *http.Client, log logger.Logger) ports.FetcherFactory {
	return &OpenWeatherFetcherFactory{
		client: client,
		logger: log,
	}
}

func (f *OpenWeatherFetcherFactory) CreateFetcher(baseURL, apiKey string) ports.Fetcher {
	f.logger.Infof("Creating OpenWeatherFetcher with baseURL: %s", baseURL)
	return NewOpenWeatherFetcher(f.client, baseURL, apiKey, f.logger)
}
