package geolocation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
	"github.com/k-shtanenko/weather-relay/internal/pkg/logger"
	"github.com/k-shtanenko/weather-relay/internal/testutils"
)

func TestCachingLocator_ReusesFreshFix(t *testing.T) {
	raw := new(testutils.MockLocator)
	opts := entities.DefaultPositionOptions()
	fixTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	raw.On("CurrentPosition", mock.Anything, opts).
		Return(entities.Position{Latitude: 10, Longitude: 20, Timestamp: fixTime}, nil).Once()

	locator := NewCachingLocator(raw, logger.Discard())
	now := fixTime
	locator.now = func() time.Time { return now }

	first, err := locator.CurrentPosition(context.Background(), opts)
	require.NoError(t, err)

	now = fixTime.Add(59 * time.Second)
	second, err := locator.CurrentPosition(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	raw.AssertNumberOfCalls(t, "CurrentPosition", 1)
}

func TestCachingLocator_RefreshesStaleFix(t *testing.T) {
	raw := new(testutils.MockLocator)
	opts := entities.DefaultPositionOptions()
	fixTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	raw.On("CurrentPosition", mock.Anything, opts).
		Return(entities.Position{Latitude: 10, Longitude: 20, Timestamp: fixTime}, nil).Once()
	raw.On("CurrentPosition", mock.Anything, opts).
		Return(entities.Position{Latitude: 11, Longitude: 21, Timestamp: fixTime.Add(61 * time.Second)}, nil).Once()

	locator := NewCachingLocator(raw, logger.Discard())
	now := fixTime
	locator.now = func() time.Time { return now }

	_, err := locator.CurrentPosition(context.Background(), opts)
	require.NoError(t, err)

	now = fixTime.Add(61 * time.Second)
	pos, err := locator.CurrentPosition(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 11.0, pos.Latitude)
	raw.AssertNumberOfCalls(t, "CurrentPosition", 2)
}

func TestCachingLocator_ZeroMaximumAgeAlwaysLooksUp(t *testing.T) {
	raw := new(testutils.MockLocator)
	opts := entities.PositionOptions{Timeout: time.Second}
	raw.On("CurrentPosition", mock.Anything, opts).Return(entities.Position{Latitude: 1}, nil)

	locator := NewCachingLocator(raw, logger.Discard())

	for i := 0; i < 3; i++ {
		_, err := locator.CurrentPosition(context.Background(), opts)
		require.NoError(t, err)
	}
	raw.AssertNumberOfCalls(t, "CurrentPosition", 3)
}

func TestCachingLocator_FailureIsNotCached(t *testing.T) {
	raw := new(testutils.MockLocator)
	opts := entities.DefaultPositionOptions()
	lookupErr := errors.New("no fix")
	raw.On("CurrentPosition", mock.Anything, opts).Return(entities.Position{}, lookupErr).Once()
	raw.On("CurrentPosition", mock.Anything, opts).Return(entities.Position{Latitude: 5}, nil).Once()

	locator := NewCachingLocator(raw, logger.Discard())

	_, err := locator.CurrentPosition(context.Background(), opts)
	assert.ErrorIs(t, err, lookupErr)

	pos, err := locator.CurrentPosition(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 5.0, pos.Latitude)
	assert.False(t, pos.Timestamp.IsZero())
}

func TestCachingLocator_InvalidFixRejected(t *testing.T) {
	raw := new(testutils.MockLocator)
	opts := entities.DefaultPositionOptions()
	raw.On("CurrentPosition", mock.Anything, opts).Return(entities.Position{Latitude: 123}, nil)

	locator := NewCachingLocator(raw, logger.Discard())

	_, err := locator.CurrentPosition(context.Background(), opts)
	assert.ErrorIs(t, err, ErrLookupFailed)
}

type slowLocator struct{}

func (slowLocator) CurrentPosition(ctx context.Context, _ entities.PositionOptions) (entities.Position, error) {
	<-ctx.Done()
	return entities.Position{}, ctx.Err()
}

func TestCachingLocator_Timeout(t *testing.T) {
	locator := NewCachingLocator(slowLocator{}, logger.Discard())

	start := time.Now()
	_, err := locator.CurrentPosition(context.Background(), entities.PositionOptions{Timeout: 20 * time.Millisecond})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCachingLocator_ParentCancelIsNotReportedAsTimeout(t *testing.T) {
	locator := NewCachingLocator(slowLocator{}, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := locator.CurrentPosition(ctx, entities.PositionOptions{Timeout: time.Second})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestStaticLocator(t *testing.T) {
	locator := NewStaticLocator(48.85, 2.35)

	pos, err := locator.CurrentPosition(context.Background(), entities.DefaultPositionOptions())

	require.NoError(t, err)
	assert.Equal(t, 48.85, pos.Latitude)
	assert.Equal(t, 2.35, pos.Longitude)
	assert.Equal(t, "static", pos.Source)
}

func TestIPAPILocator_CurrentPosition(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"success","lat":52.52,"lon":13.405}`))
		}))
		defer server.Close()

		locator := NewIPAPILocator(server.Client(), server.URL, logger.Discard())
		pos, err := locator.CurrentPosition(context.Background(), entities.DefaultPositionOptions())

		require.NoError(t, err)
		assert.Equal(t, 52.52, pos.Latitude)
		assert.Equal(t, 13.405, pos.Longitude)
		assert.Equal(t, "ip-api", pos.Source)
	})

	t.Run("provider reports failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
		}))
		defer server.Close()

		locator := NewIPAPILocator(server.Client(), server.URL, logger.Discard())
		_, err := locator.CurrentPosition(context.Background(), entities.DefaultPositionOptions())

		assert.ErrorIs(t, err, ErrLookupFailed)
		assert.Contains(t, err.Error(), "reserved range")
	})

	t.Run("bad status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		locator := NewIPAPILocator(server.Client(), server.URL, logger.Discard())
		_, err := locator.CurrentPosition(context.Background(), entities.DefaultPositionOptions())

		assert.ErrorIs(t, err, ErrLookupFailed)
		assert.Contains(t, err.Error(), "status 429")
	})

	t.Run("garbage body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}))
		defer server.Close()

		locator := NewIPAPILocator(server.Client(), server.URL, logger.Discard())
		_, err := locator.CurrentPosition(context.Background(), entities.DefaultPositionOptions())

		assert.ErrorIs(t, err, ErrLookupFailed)
	})
}

func TestCachingLocator_WithIPAPI_SingleLookupWithinMaximumAge(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"status":"success","lat":1.5,"lon":2.5}`))
	}))
	defer server.Close()

	locator := NewCachingLocator(NewIPAPILocator(server.Client(), server.URL, logger.Discard()), logger.Discard())

	for i := 0; i < 3; i++ {
		_, err := locator.CurrentPosition(context.Background(), entities.DefaultPositionOptions())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestLocatorFactory_CreateLocator(t *testing.T) {
	factory := NewLocatorFactory(nil, "", 1, 2, logger.Discard())

	for _, provider := range []string{"static", "ipapi", ""} {
		locator, err := factory.CreateLocator(provider)
		require.NoError(t, err)
		assert.IsType(t, &CachingLocator{}, locator)
	}

	_, err := factory.CreateLocator("gps")
	assert.Error(t, err)
}
