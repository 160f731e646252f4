// Package connlog implements the gateway's connection logger (C3): a
// bounded ring of connect/disconnect events, queryable by event type and
// client name, with aggregate statistics computed by scanning the
// current snapshot rather than maintained as running counters (so
// clear() and the ring's own eviction never leave stale totals behind).
package connlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event distinguishes the two kinds of entry the ring holds.
type Event string

const (
	Connect    Event = "CONNECT"
	Disconnect Event = "DISCONNECT"
)

// Entry is one connection-log record.
type Entry struct {
	ID         uuid.UUID
	Event      Event
	Timestamp  time.Time
	ClientName string
	ClientIP   string
	Reason     string
}

// DefaultCapacity is the ring size spec.md §3 fixes.
const DefaultCapacity = 1000

// Logger is the connection log ring. The zero value is not usable;
// construct with New.
type Logger struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
	next     int
	full     bool
}

// New constructs a Logger with the given ring capacity.
func New(capacity int) *Logger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Logger{
		capacity: capacity,
		entries:  make([]Entry, capacity),
	}
}

// LogConnect appends a CONNECT entry for name at ip.
func (l *Logger) LogConnect(name, ip string) {
	l.append(Entry{
		ID:         uuid.New(),
		Event:      Connect,
		Timestamp:  time.Now(),
		ClientName: name,
		ClientIP:   ip,
	})
}

// LogDisconnect appends a DISCONNECT entry for name at ip with the given
// reason, unless name is empty — per spec.md §4.3, a disconnect whose
// handshake never completed (no name) is silently dropped to avoid
// logging noise from port scanners.
func (l *Logger) LogDisconnect(name, ip, reason string) {
	if name == "" {
		return
	}
	l.append(Entry{
		ID:         uuid.New(),
		Event:      Disconnect,
		Timestamp:  time.Now(),
		ClientName: name,
		ClientIP:   ip,
		Reason:     reason,
	})
}

func (l *Logger) append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = e
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.full = true
	}
}

// All returns every entry currently in the ring, oldest first.
func (l *Logger) All() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Logger) snapshotLocked() []Entry {
	if !l.full {
		out := make([]Entry, l.next)
		copy(out, l.entries[:l.next])
		return out
	}
	out := make([]Entry, l.capacity)
	copy(out, l.entries[l.next:])
	copy(out[l.capacity-l.next:], l.entries[:l.next])
	return out
}

// Filter returns entries matching eventType (ignored if empty) and
// clientName (ignored if empty), most-recent-N when limit > 0.
func (l *Logger) Filter(eventType Event, clientName string, limit int) []Entry {
	all := l.All()

	var filtered []Entry
	for _, e := range all {
		if eventType != "" && e.Event != eventType {
			continue
		}
		if clientName != "" && e.ClientName != clientName {
			continue
		}
		filtered = append(filtered, e)
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

// Stats is the aggregate summary Query operations expose alongside the
// filtered entry list.
type Stats struct {
	Total       int
	Connects    int
	Disconnects int
	UniqueNames int
}

// Statistics computes Stats by scanning the current snapshot — no
// pre-aggregated counters are kept, so Clear() can never leave them
// inconsistent.
func (l *Logger) Statistics() Stats {
	all := l.All()
	names := make(map[string]struct{})
	stats := Stats{Total: len(all)}
	for _, e := range all {
		switch e.Event {
		case Connect:
			stats.Connects++
		case Disconnect:
			stats.Disconnects++
		}
		if e.ClientName != "" {
			names[e.ClientName] = struct{}{}
		}
	}
	stats.UniqueNames = len(names)
	return stats
}

// Clear empties the ring.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]Entry, l.capacity)
	l.next = 0
	l.full = false
}
