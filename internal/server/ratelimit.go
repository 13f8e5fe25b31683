package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig holds per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// RateLimiter tracks request rates and daily quotas per client.
type RateLimiter struct {
	mu      sync.Mutex
	limits  RateLimitConfig
	now     func() time.Time
	clients map[string]*ClientUsage
}

// ClientUsage is the usage recorded for one client. Windows are fixed and
// start at the first request seen in them.
type ClientUsage struct {
	MinuteStart        time.Time
	RequestsThisMinute int
	HourStart          time.Time
	RequestsThisHour   int
	Day                time.Time
	RequestsToday      int
	BytesToday         int64
}

// NewRateLimiter creates a rate limiter with the given limits.
func NewRateLimiter(limits RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limits:  limits,
		now:     time.Now,
		clients: make(map[string]*ClientUsage),
	}
}

// Allow records a request of size bytes from clientID, or returns a
// *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(clientID string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &ClientUsage{}
		rl.clients[clientID] = usage
	}
	usage.roll(now)

	if err := rl.checkRates(usage, now); err != nil {
		return err
	}
	if err := rl.checkQuotas(usage, size); err != nil {
		return err
	}

	usage.RequestsThisMinute++
	usage.RequestsThisHour++
	usage.RequestsToday++
	usage.BytesToday += size
	return nil
}

// roll starts new windows once the old ones have expired.
func (u *ClientUsage) roll(now time.Time) {
	if now.Sub(u.MinuteStart) >= time.Minute {
		u.MinuteStart = now
		u.RequestsThisMinute = 0
	}
	if now.Sub(u.HourStart) >= time.Hour {
		u.HourStart = now
		u.RequestsThisHour = 0
	}
	if day := startOfDay(now); !day.Equal(u.Day) {
		u.Day = day
		u.RequestsToday = 0
		u.BytesToday = 0
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (rl *RateLimiter) checkRates(usage *ClientUsage, now time.Time) error {
	if rl.limits.RequestsPerMinute > 0 && usage.RequestsThisMinute >= rl.limits.RequestsPerMinute {
		return &RateLimitError{
			Window:     "minute",
			Limit:      rl.limits.RequestsPerMinute,
			RetryAfter: usage.MinuteStart.Add(time.Minute).Sub(now),
		}
	}
	if rl.limits.RequestsPerHour > 0 && usage.RequestsThisHour >= rl.limits.RequestsPerHour {
		return &RateLimitError{
			Window:     "hour",
			Limit:      rl.limits.RequestsPerHour,
			RetryAfter: usage.HourStart.Add(time.Hour).Sub(now),
		}
	}
	return nil
}

func (rl *RateLimiter) checkQuotas(usage *ClientUsage, size int64) error {
	resets := usage.Day.AddDate(0, 0, 1)
	if rl.limits.MaxRequestsPerDay > 0 && usage.RequestsToday >= rl.limits.MaxRequestsPerDay {
		return &QuotaExceededError{
			Kind:   "requests",
			Limit:  int64(rl.limits.MaxRequestsPerDay),
			Used:   int64(usage.RequestsToday),
			Resets: resets,
		}
	}
	if rl.limits.MaxDataPerDay > 0 && usage.BytesToday+size > rl.limits.MaxDataPerDay {
		return &QuotaExceededError{
			Kind:   "data",
			Limit:  rl.limits.MaxDataPerDay,
			Used:   usage.BytesToday,
			Resets: resets,
		}
	}
	return nil
}

// Usage returns a copy of the usage recorded for clientID.
func (rl *RateLimiter) Usage(clientID string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if usage, ok := rl.clients[clientID]; ok {
		return *usage
	}
	return ClientUsage{}
}

// RateLimitError is returned when a per-minute or per-hour rate is exceeded.
type RateLimitError struct {
	Window     string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Window, e.Limit, e.RetryAfter)
}

// QuotaExceededError is returned when a daily quota is used up.
type QuotaExceededError struct {
	Kind   string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Kind, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
