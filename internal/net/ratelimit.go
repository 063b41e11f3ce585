package net

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPLimiter keeps one token bucket per remote IP. Idle buckets are pruned
// lazily by Allow.
type IPLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	buckets map[string]*ipBucket
	lastGC  time.Time
}

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

const ipBucketTTL = 10 * time.Minute

// NewIPLimiter allows perMinute events per IP, bursting up to perMinute.
// perMinute <= 0 disables limiting.
func NewIPLimiter(perMinute int) *IPLimiter {
	l := &IPLimiter{buckets: make(map[string]*ipBucket)}
	if perMinute <= 0 {
		l.every = rate.Inf
		return l
	}
	l.every = rate.Limit(float64(perMinute) / 60)
	l.burst = perMinute
	return l
}

// Allow reports whether ip may perform one more event at now.
func (l *IPLimiter) Allow(ip string, now time.Time) bool {
	if l == nil || l.every == rate.Inf {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > ipBucketTTL {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > ipBucketTTL {
				delete(l.buckets, k)
			}
		}
		l.lastGC = now
	}

	b := l.buckets[ip]
	if b == nil {
		b = &ipBucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// newPacketLimiter returns the per-session packet bucket. pps <= 0 means
// unlimited.
func newPacketLimiter(pps int) *rate.Limiter {
	if pps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(pps), pps)
}
