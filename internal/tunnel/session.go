// Package tunnel implements the gateway's tunnel session (C4), agent
// registry (C5), and tunnel listener (C6): the persistent per-agent
// socket, the name-keyed registry of live sessions, and the accept loop
// that hands new sockets off to a handshake. The mutex-serialized
// request/response dispatch here is the direct descendant of the
// teacher's session.writeJSON/readLoop pairing in server_session.go,
// adapted from a long-lived reader goroutine over a websocket connection
// to a single mutex-holding call that both writes the request and reads
// its paired response, per spec.md §4.4.
package tunnel

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nullbridge/tunnelgate/internal/gwerr"
	"github.com/nullbridge/tunnelgate/internal/wire"
)

// Timeouts bundles the deadlines that govern one session's lifecycle,
// sourced from internal/config.
type Timeouts struct {
	Handshake time.Duration
	Idle      time.Duration
	Dispatch  time.Duration
	Heartbeat time.Duration
}

// Session is the gateway-side representation of one connected agent's
// tunnel. A Session is created on accept and only becomes addressable
// (registered) after a successful handshake sets its name.
type Session struct {
	conn        net.Conn
	remoteIP    string
	localAddr   string
	connectedAt time.Time
	timeouts    Timeouts

	// name is written exactly once, by the handshake, before the
	// session is published to the registry; readable thereafter without
	// synchronization.
	name string

	requestMutex sync.Mutex
	closed       atomic.Bool
}

func newSession(conn net.Conn, timeouts Timeouts) *Session {
	remoteIP := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = host
	}
	return &Session{
		conn:        conn,
		remoteIP:    remoteIP,
		localAddr:   conn.LocalAddr().String(),
		connectedAt: time.Now(),
		timeouts:    timeouts,
	}
}

// Name returns the agent's registered name. Empty until the handshake
// completes.
func (s *Session) Name() string { return s.name }

// RemoteIP returns the tunnel's peer address, stripped of its port.
func (s *Session) RemoteIP() string { return s.remoteIP }

// ConnectedAt returns the instant the underlying socket was accepted.
func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool { return s.closed.Load() }

// SocketHealthy is a cheap, I/O-free liveness check: not closed. It must
// never write a probe byte into the live socket — a prior variant did
// exactly that and corrupted the framed stream (spec.md §4.4.3, §9).
// Genuine liveness is established only through a HEARTBEAT dispatch.
func (s *Session) SocketHealthy() bool {
	return !s.closed.Load()
}

// Uptime formats the time since ConnectedAt in the coarsest unit that
// yields a value ≥ 1, e.g. "2 hours, 13 minutes" or "45 seconds".
func (s *Session) Uptime() string {
	return FormatUptime(time.Since(s.connectedAt))
}

// FormatUptime renders d in the coarsest unit that yields a value ≥ 1,
// e.g. "2 hours, 13 minutes" or "45 seconds" (spec.md §4.4.3).
func FormatUptime(d time.Duration) string {
	return formatUptime(d)
}

func formatUptime(d time.Duration) string {
	if d < time.Minute {
		secs := int(d.Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}
		return pluralize(secs, "second")
	}
	if d < time.Hour {
		mins := int(d / time.Minute)
		secs := int((d % time.Minute) / time.Second)
		if secs == 0 {
			return pluralize(mins, "minute")
		}
		return fmt.Sprintf("%s, %s", pluralize(mins, "minute"), pluralize(secs, "second"))
	}
	if d < 24*time.Hour {
		hours := int(d / time.Hour)
		mins := int((d % time.Hour) / time.Minute)
		if mins == 0 {
			return pluralize(hours, "hour")
		}
		return fmt.Sprintf("%s, %s", pluralize(hours, "hour"), pluralize(mins, "minute"))
	}
	days := int(d / (24 * time.Hour))
	hours := int((d % (24 * time.Hour)) / time.Hour)
	if hours == 0 {
		return pluralize(days, "day")
	}
	return fmt.Sprintf("%s, %s", pluralize(days, "day"), pluralize(hours, "hour"))
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Dispatch sends req and returns the paired response, holding
// requestMutex for the entire round trip so at most one request is ever
// in flight on this session (spec.md §4.4, universal invariant 2).
// Any framing/IO/timeout error marks the session closed before Dispatch
// returns, per §4.4.2.
func (s *Session) Dispatch(req wire.RequestMessage, timeout time.Duration) (wire.ResponseMessage, error) {
	s.requestMutex.Lock()
	defer s.requestMutex.Unlock()

	op := "dispatch"
	if req.Method == wire.HeartbeatMethod {
		op = "heartbeat"
	}

	if s.closed.Load() {
		return wire.ResponseMessage{}, gwerr.Wrap(op, s.name, gwerr.ErrUnhealthyConnection)
	}

	deadline := time.Now().Add(timeout)
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		s.closed.Store(true)
		return wire.ResponseMessage{}, gwerr.Wrap(op, s.name, gwerr.ErrUnhealthyConnection)
	}
	if err := wire.WriteMessage(s.conn, req); err != nil {
		s.closed.Store(true)
		return wire.ResponseMessage{}, gwerr.Wrap(op, s.name, classifyIOError(err))
	}

	if err := s.conn.SetReadDeadline(deadline); err != nil {
		s.closed.Store(true)
		return wire.ResponseMessage{}, gwerr.Wrap(op, s.name, gwerr.ErrUnhealthyConnection)
	}
	msg, err := wire.ReadMessage(s.conn)
	if err != nil {
		s.closed.Store(true)
		return wire.ResponseMessage{}, gwerr.Wrap(op, s.name, classifyIOError(err))
	}

	resp, ok := msg.(wire.ResponseMessage)
	if !ok {
		s.closed.Store(true)
		return wire.ResponseMessage{}, gwerr.Wrap(op, s.name, gwerr.ErrFrameCorrupt)
	}
	return resp, nil
}

// Heartbeat probes the session with a reserved HEARTBEAT request,
// expecting Response{200, "heartbeat_ok"} within the heartbeat deadline.
// It acquires requestMutex exactly like any other dispatch (spec.md
// §4.4), so it cannot interleave with an in-flight forward.
func (s *Session) Heartbeat() error {
	resp, err := s.Dispatch(wire.RequestMessage{
		ClientName: s.name,
		Method:     wire.HeartbeatMethod,
		URL:        "ping",
	}, s.timeouts.Heartbeat)
	if err != nil {
		return err
	}
	if resp.Status != 200 || string(resp.Body) != wire.HeartbeatOK {
		s.requestMutex.Lock()
		s.closed.Store(true)
		s.requestMutex.Unlock()
		return gwerr.Wrap("heartbeat", s.name, gwerr.ErrUnhealthyConnection)
	}
	return nil
}

// Close marks the session closed and closes its socket. Safe to call
// more than once.
func (s *Session) Close() error {
	s.closed.Store(true)
	return s.conn.Close()
}

// classifyIOError maps a raw wire/socket error to the domain error kinds
// in spec.md §7: a corrupt frame stays FrameCorrupt, a deadline overrun
// becomes DispatchTimeout, and everything else (EOF, reset, broken pipe)
// is treated as the peer simply going away.
func classifyIOError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gwerr.ErrFrameCorrupt) {
		return gwerr.ErrFrameCorrupt
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return gwerr.ErrDispatchTimeout
	}
	return gwerr.ErrPeerGone
}
