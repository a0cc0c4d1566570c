package relay

import (
	"sync"
	"time"
)

// JoinLimiter caps how often a single client token may join rooms,
// using a sliding window over recent attempts.
type JoinLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
}

func NewJoinLimiter(limit int, interval time.Duration) *JoinLimiter {
	return &JoinLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (l *JoinLimiter) Allow(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-l.interval)

	attempts := l.history[token]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= l.limit {
		l.history[token] = fresh
		return false
	}

	fresh = append(fresh, now)
	l.history[token] = fresh
	return true
}
