package geolocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/k-shtanenko/weather-relay/internal/domain/entities"
	"github.com/k-shtanenko/weather-relay/internal/domain/ports"
	"github.com/k-shtanenko/weather-relay/internal/pkg/logger"
)

var (
	ErrLookupFailed = errors.New("position lookup failed")
	ErrTimeout      = errors.New("position lookup timed out")
)

// CachingLocator applies PositionOptions on top of a raw locator: a fix no
// older than MaximumAge is handed out again, otherwise a fresh lookup runs
// under Timeout. Failed lookups never replace the cached fix.
type CachingLocator struct {
	next   ports.Locator
	logger logger.Logger
	now    func() time.Time

	mu   sync.Mutex
	last *entities.Position
}

func NewCachingLocator(next ports.Locator, log logger.Logger) *CachingLocator {
	return &CachingLocator{
		next:   next,
		logger: log.WithField("component", "caching_locator"),
		now:    time.Now,
	}
}

func (l *CachingLocator) CurrentPosition(ctx context.Context, opts entities.PositionOptions) (entities.Position, error) {
	if pos, ok := l.cached(opts.MaximumAge); ok {
		l.logger.Debugf("Reusing position fix from %s", pos.Timestamp.Format(time.RFC3339))
		return pos, nil
	}

	lookupCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	pos, err := l.next.CurrentPosition(lookupCtx, opts)
	if err != nil {
		if errors.Is(lookupCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return entities.Position{}, fmt.Errorf("%w after %v: %v", ErrTimeout, opts.Timeout, err)
		}
		return entities.Position{}, err
	}
	if err := pos.Validate(); err != nil {
		return entities.Position{}, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if pos.Timestamp.IsZero() {
		pos.Timestamp = l.now()
	}

	l.mu.Lock()
	l.last = &pos
	l.mu.Unlock()

	return pos, nil
}

func (l *CachingLocator) cached(maxAge time.Duration) (entities.Position, bool) {
	if maxAge <= 0 {
		return entities.Position{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.last == nil || l.last.Age(l.now()) > maxAge {
		return entities.Position{}, false
	}
	return *l.last, true
}
