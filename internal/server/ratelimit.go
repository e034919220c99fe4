package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig holds per-client limits. A zero limit is unlimited.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// RateLimiter tracks request windows and daily quotas per client.
type RateLimiter struct {
	mu      sync.Mutex
	limits  RateLimitConfig
	clients map[string]*ClientUsage
	now     func() time.Time
}

// ClientUsage is the usage of one client in its current windows.
type ClientUsage struct {
	RequestsThisMinute int
	RequestsThisHour   int
	RequestsToday      int
	BytesToday         int64

	minuteStart time.Time
	hourStart   time.Time
	dayStart    time.Time
}

// NewRateLimiter creates a limiter for the given limits.
func NewRateLimiter(limits RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limits:  limits,
		clients: make(map[string]*ClientUsage),
		now:     time.Now,
	}
}

// Allow records a request of size bytes from client, or returns a
// *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(client string, size int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[client]
	if !ok {
		u = &ClientUsage{minuteStart: now, hourStart: now, dayStart: startOfDay(now)}
		rl.clients[client] = u
	}
	u.roll(now)

	if l := rl.limits.RequestsPerMinute; l > 0 && u.RequestsThisMinute >= l {
		return &RateLimitError{Window: "minute", Limit: l, RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	}
	if l := rl.limits.RequestsPerHour; l > 0 && u.RequestsThisHour >= l {
		return &RateLimitError{Window: "hour", Limit: l, RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	}
	resets := u.dayStart.AddDate(0, 0, 1)
	if l := rl.limits.MaxRequestsPerDay; l > 0 && u.RequestsToday >= l {
		return &QuotaExceededError{Quota: "requests", Limit: int64(l), Used: int64(u.RequestsToday), Resets: resets}
	}
	if l := rl.limits.MaxDataPerDay; l > 0 && u.BytesToday+size > l {
		return &QuotaExceededError{Quota: "data", Limit: l, Used: u.BytesToday, Resets: resets}
	}

	u.RequestsThisMinute++
	u.RequestsThisHour++
	u.RequestsToday++
	u.BytesToday += size
	return nil
}

// roll starts new windows once the current ones have elapsed.
func (u *ClientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart, u.RequestsThisMinute = now, 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart, u.RequestsThisHour = now, 0
	}
	if day := startOfDay(now); day.After(u.dayStart) {
		u.dayStart, u.RequestsToday, u.BytesToday = day, 0, 0
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Usage returns a copy of the usage of client.
func (rl *RateLimiter) Usage(client string) ClientUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clients[client]; ok {
		return *u
	}
	return ClientUsage{}
}

// RateLimitError reports an exhausted request window.
type RateLimitError struct {
	Window     string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Window, e.Limit, e.RetryAfter)
}

// QuotaExceededError reports an exhausted daily quota.
type QuotaExceededError struct {
	Quota  string // "requests" or "data"
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Quota, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
