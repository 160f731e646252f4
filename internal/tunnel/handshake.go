package tunnel

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/nullbridge/tunnelgate/internal/auth"
	"github.com/nullbridge/tunnelgate/internal/connlog"
	"github.com/nullbridge/tunnelgate/internal/gwerr"
	"github.com/nullbridge/tunnelgate/internal/security"
	"github.com/nullbridge/tunnelgate/internal/wire"
)

// HandshakeDeps bundles the shared services the handshake state machine
// consults: the ban/suspicious-event ledger, the connection log, the
// registry a successful handshake publishes into, the configured auth
// token, and the deadlines that bound each phase.
type HandshakeDeps struct {
	AuthToken string
	Ledger    *security.Ledger
	ConnLog   *connlog.Logger
	Registry  *Registry
	Timeouts  Timeouts
	Log       *slog.Logger
}

// Accept runs the handshake state machine from spec.md §4.4.1 on a
// freshly accepted socket: BAN_CHECK, AWAIT_TOKEN, VERIFY_TOKEN,
// AWAIT_NAME, REGISTER. On success the new session is already inserted
// into deps.Registry and Accept returns it; on any failure the socket
// has already been closed and Accept returns a nil session.
//
// Ordinary ECONNRESET/EPIPE while waiting on a read (a peer that simply
// disconnects) is never reported to the ledger; only a frame the codec
// actively rejects as corrupt, or a well-formed frame of the wrong
// shape, counts as INVALID_PROTOCOL.
func Accept(conn net.Conn, deps HandshakeDeps) (*Session, error) {
	ip := remoteHost(conn)

	if deps.Ledger.IsBanned(ip) {
		conn.Close()
		return nil, gwerr.ErrBanned
	}

	token, err := readHandshakeString(conn, deps.Timeouts.Handshake)
	if err != nil {
		if errors.Is(err, gwerr.ErrFrameCorrupt) {
			deps.Ledger.RecordSuspicious(ip, security.InvalidProtocol)
		}
		conn.Close()
		return nil, err
	}

	if !auth.ConstantTimeEquals(string(token), deps.AuthToken) {
		wire.WriteMessage(conn, wire.StringMessage("AUTH_FAILED"))
		deps.Ledger.RecordSuspicious(ip, security.AuthFailed)
		conn.Close()
		return nil, gwerr.ErrAuthFailed
	}

	if err := wire.WriteMessage(conn, wire.StringMessage("AUTH_SUCCESS")); err != nil {
		conn.Close()
		return nil, gwerr.ErrPeerGone
	}

	name, err := readHandshakeString(conn, deps.Timeouts.Handshake)
	if err != nil {
		if errors.Is(err, gwerr.ErrFrameCorrupt) {
			deps.Ledger.RecordSuspicious(ip, security.InvalidProtocol)
		}
		conn.Close()
		return nil, err
	}
	if string(name) == "" {
		deps.Ledger.RecordSuspicious(ip, security.InvalidProtocol)
		conn.Close()
		return nil, gwerr.ErrFrameCorrupt
	}

	session := newSession(conn, deps.Timeouts)
	session.name = string(name)

	prior := deps.Registry.Register(session)
	if prior != nil {
		prior.Close()
		deps.Log.Info("evicted prior session for duplicate name", "name", session.name, "remote", ip)
	}

	deps.ConnLog.LogConnect(session.name, ip)
	deps.Log.Info("agent connected", "name", session.name, "remote", ip)

	return session, nil
}

func readHandshakeString(conn net.Conn, timeout time.Duration) (wire.StringMessage, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", gwerr.ErrPeerGone
	}
	msg, err := wire.ReadMessage(conn)
	if err != nil {
		if errors.Is(err, gwerr.ErrFrameCorrupt) {
			return "", gwerr.ErrFrameCorrupt
		}
		return "", gwerr.ErrPeerGone
	}
	s, ok := msg.(wire.StringMessage)
	if !ok {
		return "", gwerr.ErrFrameCorrupt
	}
	return s, nil
}

func remoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
