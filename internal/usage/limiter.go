// internal/usage/limiter.go
package usage

import (
	"sync"
	"time"

	"splitbill-bot/internal/common/config"
	"splitbill-bot/internal/common/logger"
)

// Reservation is the outcome of one quota draw.
type Reservation struct {
	Granted   bool
	Remaining int // -1 when the quota is unlimited
}

// Limiter enforces the monthly recognition cap while the free-tier
// flag is on; with free mode off the quota is uncapped. The counter is
// held in process memory and resets when the calendar month rolls
// over; a restart also resets it, which is an accepted looseness of
// the cap.
type Limiter struct {
	mu        sync.Mutex
	freeMode  bool
	limit     int
	location  *time.Location
	periodKey string
	used      int
	log       logger.Logger
}

// NewLimiter builds a Limiter from configuration. An unknown timezone
// falls back to UTC rather than failing startup.
func NewLimiter(cfg config.UsageConfig, log logger.Logger) *Limiter {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn("Unknown usage timezone, falling back to UTC", map[string]interface{}{
			"timezone": cfg.Timezone,
		})
		loc = time.UTC
	}

	return &Limiter{
		freeMode: cfg.FreeMode,
		limit:    cfg.MonthlyLimit,
		location: loc,
		log:      log.WithFields(map[string]interface{}{"component": "usage-limiter"}),
	}
}

// CurrentPeriodKey returns the quota period for now, e.g. "2026-08".
func (l *Limiter) CurrentPeriodKey() string {
	return time.Now().In(l.location).Format("2006-01")
}

// TryReserve consumes one unit of quota for the given period. A denied
// reservation consumes nothing. Reservations are never refunded, even
// when the recognition they paid for later fails.
func (l *Limiter) TryReserve(periodKey string) Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()

	if periodKey != l.periodKey {
		l.periodKey = periodKey
		l.used = 0
	}

	if !l.freeMode {
		l.used++
		return Reservation{Granted: true, Remaining: -1}
	}

	if l.used >= l.limit {
		l.log.Warn("Quota reservation denied", map[string]interface{}{
			"period": periodKey,
			"limit":  l.limit,
		})
		return Reservation{Granted: false, Remaining: 0}
	}

	l.used++
	return Reservation{Granted: true, Remaining: l.limit - l.used}
}

// Used returns the consumed count for the active period.
func (l *Limiter) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

// Remaining returns the unused quota for the active period, or -1 when
// the cap is not enforced.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.freeMode {
		return -1
	}
	if l.used >= l.limit {
		return 0
	}
	return l.limit - l.used
}

// Reset forces the counter back to zero without waiting for the month
// to roll over. Intended for operator use.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.used = 0
}
