package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter counts requests per client in fixed minute and hour windows
// plus a calendar-day quota.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int
	maxRequestsPerDay int

	clients map[string]*clientUsage
	now     func() time.Time
}

type clientUsage struct {
	minuteStart time.Time
	minuteCount int
	hourStart   time.Time
	hourCount   int
	day         time.Time // local midnight of the counted day
	dayCount    int
	lastSeen    time.Time
}

// Usage is a snapshot of one client's counters.
type Usage struct {
	LastMinute int
	LastHour   int
	Today      int
}

// NewRateLimiter creates a rate limiter. A zero limit is not enforced.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		clients:           make(map[string]*clientUsage),
		now:               time.Now,
	}
}

// Allow records a request from clientID, or returns a *RateLimitError or
// *QuotaExceededError without recording it.
func (rl *RateLimiter) Allow(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clients[clientID]
	if !ok {
		u = &clientUsage{}
		rl.clients[clientID] = u
	}
	u.roll(now)

	if rl.requestsPerMinute > 0 && u.minuteCount >= rl.requestsPerMinute {
		return &RateLimitError{
			Window:     "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: u.minuteStart.Add(time.Minute).Sub(now),
		}
	}
	if rl.requestsPerHour > 0 && u.hourCount >= rl.requestsPerHour {
		return &RateLimitError{
			Window:     "hour",
			Limit:      rl.requestsPerHour,
			RetryAfter: u.hourStart.Add(time.Hour).Sub(now),
		}
	}
	if rl.maxRequestsPerDay > 0 && u.dayCount >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Limit:  rl.maxRequestsPerDay,
			Used:   u.dayCount,
			Resets: u.day.AddDate(0, 0, 1),
		}
	}

	u.minuteCount++
	u.hourCount++
	u.dayCount++
	u.lastSeen = now
	return nil
}

// roll starts new windows once the current ones have elapsed.
func (u *clientUsage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart = now
		u.minuteCount = 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart = now
		u.hourCount = 0
	}
	if day := midnight(now); !day.Equal(u.day) {
		u.day = day
		u.dayCount = 0
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Usage returns the current counters for clientID.
func (rl *RateLimiter) Usage(clientID string) Usage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	u, ok := rl.clients[clientID]
	if !ok {
		return Usage{}
	}
	u.roll(rl.now())
	return Usage{LastMinute: u.minuteCount, LastHour: u.hourCount, Today: u.dayCount}
}

// Prune forgets clients idle for longer than maxIdle and returns how many were dropped.
func (rl *RateLimiter) Prune(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	dropped := 0
	for id, u := range rl.clients {
		if now.Sub(u.lastSeen) > maxIdle {
			delete(rl.clients, id)
			dropped++
		}
	}
	return dropped
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Window     string // "minute" or "hour"
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Window, e.Limit, e.RetryAfter.Round(time.Second))
}

// QuotaExceededError represents an exhausted daily request quota.
type QuotaExceededError struct {
	Limit  int
	Used   int
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded (used: %d, limit: %d, resets: %s)",
		e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
