// Package security implements the gateway's per-IP security ledger (C2):
// suspicious-event counters, the ban set, and the post-unban grace
// period, held purely in memory and safe for concurrent use. The ledger
// shards its state across a small number of buckets keyed by an xxhash
// of the IP, following the sharding idiom in the teacher's own
// server_rate_limit.go (which shards by a hand-rolled FNV-1a hash); this
// system uses the pack's xxhash library instead.
package security

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Kind is the exhaustive taxonomy of suspicious events a caller may
// report against an IP.
type Kind string

const (
	AuthFailed            Kind = "AUTH_FAILED"
	InvalidProtocol       Kind = "INVALID_PROTOCOL"
	StreamCorruption      Kind = "STREAM_CORRUPTION"
	ClassVersionMismatch  Kind = "CLASS_VERSION_MISMATCH"
	UnexpectedTermination Kind = "UNEXPECTED_TERMINATION"
)

// Thresholds is the ban-policy configuration from spec.md §3.
type Thresholds struct {
	MaxAttempts   int
	Window        time.Duration
	Permanent     int
	AuthTolerance int
	Grace         time.Duration
	GC            time.Duration
}

// DefaultThresholds returns the ban thresholds spec.md §3 fixes:
// MAX_ATTEMPTS=5, WINDOW=15m, PERMANENT=15, AUTH_TOLERANCE=8, GRACE=30m,
// GC=24h.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		Permanent:     15,
		AuthTolerance: 8,
		Grace:         30 * time.Minute,
		GC:            24 * time.Hour,
	}
}

const shardCount = 16

type attemptState struct {
	count   int
	firstAt time.Time
	lastAt  time.Time
}

type shard struct {
	mu               sync.Mutex
	banned           map[string]struct{}
	attempts         map[string]*attemptState
	recentlyUnbanned map[string]time.Time
}

// Ledger is the gateway's security ledger. The zero value is not usable;
// construct with New.
type Ledger struct {
	thresholds Thresholds
	shards     [shardCount]*shard
}

// New constructs a Ledger with the given ban thresholds.
func New(thresholds Thresholds) *Ledger {
	l := &Ledger{thresholds: thresholds}
	for i := range l.shards {
		l.shards[i] = &shard{
			banned:           make(map[string]struct{}),
			attempts:         make(map[string]*attemptState),
			recentlyUnbanned: make(map[string]time.Time),
		}
	}
	return l
}

func (l *Ledger) shardFor(ip string) *shard {
	h := xxhash.Sum64String(ip)
	return l.shards[h%uint64(shardCount)]
}

// IsBanned reports whether ip is currently in the ban set.
func (l *Ledger) IsBanned(ip string) bool {
	s := l.shardFor(ip)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, banned := s.banned[ip]
	return banned
}

// RecordSuspicious increments ip's suspicious-event counter for kind,
// applies the auto-ban decision from spec.md §4.2, and opportunistically
// sweeps this IP's shard for stale tracking entries.
func (l *Ledger) RecordSuspicious(ip string, kind Kind) {
	s := l.shardFor(ip)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if unbannedAt, inGrace := s.recentlyUnbanned[ip]; inGrace && now.Sub(unbannedAt) <= l.thresholds.Grace {
		return
	}

	st, ok := s.attempts[ip]
	if !ok {
		st = &attemptState{firstAt: now}
		s.attempts[ip] = st
	}
	st.count++
	st.lastAt = now

	threshold := l.thresholds.MaxAttempts
	if kind == AuthFailed {
		threshold = l.thresholds.AuthTolerance
	}

	withinWindow := now.Sub(st.firstAt) <= l.thresholds.Window
	if (st.count >= threshold && withinWindow) || st.count >= l.thresholds.Permanent {
		s.banned[ip] = struct{}{}
	}

	l.sweepShardLocked(s, now)
}

// Ban unconditionally adds ip to the ban set.
func (l *Ledger) Ban(ip string) {
	s := l.shardFor(ip)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banned[ip] = struct{}{}
}

// Unban removes ip from the ban set, clears its attempt tracking, and
// starts ip's grace period. It reports whether ip was actually banned.
func (l *Ledger) Unban(ip string) bool {
	s := l.shardFor(ip)
	s.mu.Lock()
	defer s.mu.Unlock()

	_, wasBanned := s.banned[ip]
	delete(s.banned, ip)
	delete(s.attempts, ip)
	s.recentlyUnbanned[ip] = time.Now()
	return wasBanned
}

// Status is the diagnostic record autoBanStatus exposes for one IP. It
// is read-only and never mutates the ledger.
type Status struct {
	IP             string
	InGrace        bool
	GraceRemaining time.Duration
	Attempts       int
	FirstAttempt   time.Time
	LastAttempt    time.Time
	Banned         bool
	WouldAutoBan   bool
	Reason         string
}

// AutoBanStatus reports ip's current ledger state without mutating it.
func (l *Ledger) AutoBanStatus(ip string) Status {
	s := l.shardFor(ip)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	status := Status{IP: ip}

	if _, banned := s.banned[ip]; banned {
		status.Banned = true
	}

	if unbannedAt, inGrace := s.recentlyUnbanned[ip]; inGrace {
		remaining := l.thresholds.Grace - now.Sub(unbannedAt)
		if remaining > 0 {
			status.InGrace = true
			status.GraceRemaining = remaining
		}
	}

	st, ok := s.attempts[ip]
	if !ok {
		status.Reason = "no tracked attempts"
		return status
	}
	status.Attempts = st.count
	status.FirstAttempt = st.firstAt
	status.LastAttempt = st.lastAt

	switch {
	case status.InGrace:
		status.Reason = "in grace period, auto-ban suppressed"
	case st.count >= l.thresholds.Permanent:
		status.WouldAutoBan = true
		status.Reason = "attempt count meets permanent threshold"
	case st.count >= l.thresholds.MaxAttempts && now.Sub(st.firstAt) <= l.thresholds.Window:
		status.WouldAutoBan = true
		status.Reason = "attempt count meets window threshold"
	default:
		status.Reason = "below auto-ban thresholds"
	}
	return status
}

// Sweep garbage-collects stale tracking entries across all shards:
// attempt records whose last activity is older than GC, and grace
// entries older than Grace. bannedIPs is never aged out (spec.md §3).
func (l *Ledger) Sweep() {
	now := time.Now()
	for _, s := range l.shards {
		s.mu.Lock()
		l.sweepShardLocked(s, now)
		s.mu.Unlock()
	}
}

func (l *Ledger) sweepShardLocked(s *shard, now time.Time) {
	for ip, st := range s.attempts {
		if now.Sub(st.lastAt) > l.thresholds.GC {
			delete(s.attempts, ip)
		}
	}
	for ip, at := range s.recentlyUnbanned {
		if now.Sub(at) > l.thresholds.Grace {
			delete(s.recentlyUnbanned, ip)
		}
	}
}

// BannedIPs returns a snapshot of every currently banned IP.
func (l *Ledger) BannedIPs() []string {
	var out []string
	for _, s := range l.shards {
		s.mu.Lock()
		for ip := range s.banned {
			out = append(out, ip)
		}
		s.mu.Unlock()
	}
	return out
}

// Thresholds returns the ban-policy configuration this ledger enforces.
func (l *Ledger) Thresholds() Thresholds {
	return l.thresholds
}
