package tunnel

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/nullbridge/tunnelgate/internal/gwerr"
)

// Listener is the gateway's tunnel accept loop (C6): it hands every
// accepted socket to Accept on its own goroutine, so one slow or
// malicious handshake never stalls the loop; Accept's first step
// consults the ban set before any bytes are exchanged.
type Listener struct {
	addr string
	deps HandshakeDeps
	log  *slog.Logger
}

// NewListener constructs a Listener bound to addr, using deps for every
// accepted socket's handshake.
func NewListener(addr string, deps HandshakeDeps) *Listener {
	return &Listener{addr: addr, deps: deps, log: deps.Log}
}

// Run binds addr and accepts connections until the listener is closed.
// A bind failure (address in use, permission denied) is returned
// immediately as a fatal startup error, per spec.md §4.6.
func (l *Listener) Run(closeCh <-chan struct{}) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("tunnel listener bind %s: %w: %v", l.addr, gwerr.ErrFatal, err)
	}
	go func() {
		<-closeCh
		ln.Close()
	}()

	l.log.Info("tunnel listener started", "addr", l.addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-closeCh:
				return nil
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && !netErr.Timeout() {
				return nil
			}
			continue
		}
		go l.handle(conn)
	}
}

func (l *Listener) handle(conn net.Conn) {
	if _, err := Accept(conn, l.deps); err != nil {
		l.log.Debug("tunnel handshake ended", "error", err)
	}
}
