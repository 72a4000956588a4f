package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	sierrors "github.com/jsettlers-installer/installer/client/errors"
)

const (
	DefaultHardFloor         = 10
	DefaultSoftFloor         = 100
	DefaultThrottleStep      = 10 * time.Millisecond
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 10
)

// Record is a snapshot of the remote quota for one category.
type Record struct {
	Remaining int
	Limit     int
	Reset     time.Time
}

func (r Record) String() string {
	return fmt.Sprintf("%d/%d until %s", r.Remaining, r.Limit, r.Reset.Format(time.RFC3339))
}

// Source reads the current core quota from the remote side.
type Source interface {
	RateLimit(ctx context.Context) (Record, error)
}

// Config holds the quota thresholds and client side pacing.
type Config struct {
	// HardFloor below which every further call of the operation is refused
	HardFloor int
	// SoftFloor below which calls are delayed
	SoftFloor int
	// Step is the delay added per missing unit of quota below SoftFloor
	Step time.Duration
	// RequestsPerSecond paces calls regardless of the quota, 0 disables pacing
	RequestsPerSecond float64
	Burst             int
}

func DefaultConfig() Config {
	return Config{
		HardFloor:         DefaultHardFloor,
		SoftFloor:         DefaultSoftFloor,
		Step:              DefaultThrottleStep,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurst,
	}
}

// Governor gates every remote call on the remaining quota.
type Governor struct {
	source  Source
	cfg     Config
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error

	lastMu sync.Mutex
	last   *Record
}

func NewGovernor(source Source, cfg Config) *Governor {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Governor{
		source:  source,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		sleep:   sleepWithContext,
	}
}

// WithSleep replaces the throttle wait, used by tests to observe delays without waiting.
func (g *Governor) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Governor {
	g.sleep = sleep
	return g
}

// Check must be called before each remote call. It returns ErrQuotaExhausted when the
// hard floor is breached and blocks for Delay(remaining) when below the soft floor.
func (g *Governor) Check(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for request slot: %w", err)
	}

	record, err := g.source.RateLimit(ctx)
	if err != nil {
		return fmt.Errorf("read rate limit: %w", err)
	}
	g.remember(record)

	log.Debugf("checking rate limit %s", record)

	if record.Remaining < g.cfg.HardFloor {
		log.Warnf("rate limit too low (%s), bailing out", record)
		return fmt.Errorf("%w: %s", sierrors.ErrQuotaExhausted, record)
	}

	delay := g.Delay(record.Remaining)
	if delay <= 0 {
		return nil
	}

	log.Warnf("rate limit low (%s), throttling for %v", record, delay)
	if err := g.sleep(ctx, delay); err != nil {
		return fmt.Errorf("throttle cancelled: %w", err)
	}
	return nil
}

// Delay returns the throttle duration for the given remaining quota.
func (g *Governor) Delay(remaining int) time.Duration {
	if remaining >= g.cfg.SoftFloor || remaining < g.cfg.HardFloor {
		return 0
	}
	return time.Duration(g.cfg.SoftFloor-remaining) * g.cfg.Step
}

// Last returns the most recently observed record.
func (g *Governor) Last() (Record, bool) {
	g.lastMu.Lock()
	defer g.lastMu.Unlock()

	if g.last == nil {
		return Record{}, false
	}
	return *g.last, true
}

func (g *Governor) remember(r Record) {
	g.lastMu.Lock()
	defer g.lastMu.Unlock()
	g.last = &r
}

func sleepWithContext(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
