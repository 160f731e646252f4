package tunnel

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/nullbridge/tunnelgate/internal/connlog"
	"github.com/nullbridge/tunnelgate/internal/gwerr"
	"github.com/nullbridge/tunnelgate/internal/wire"
)

func newTestRegistry() (*Registry, *connlog.Logger) {
	log := connlog.New(100)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(log, logger), log
}

func registerPiped(t *testing.T, r *Registry, name string) (*Session, net.Conn) {
	t.Helper()
	s, agent := pipedSession(t)
	s.name = name
	r.Register(s)
	return s, agent
}

func TestRegistry_LookupAndNames(t *testing.T) {
	r, _ := newTestRegistry()
	s, agent := registerPiped(t, r, "cam1")
	defer agent.Close()

	got, ok := r.Lookup("cam1")
	if !ok || got != s {
		t.Fatalf("expected lookup to find registered session")
	}
	names := r.Names()
	if len(names) != 1 || names[0] != "cam1" {
		t.Fatalf("expected [cam1], got %v", names)
	}
}

func TestRegistry_RegisterEvictsPrior(t *testing.T) {
	r, _ := newTestRegistry()
	first, firstAgent := registerPiped(t, r, "cam1")
	defer firstAgent.Close()

	second, secondAgent := pipedSession(t)
	defer secondAgent.Close()
	second.name = "cam1"

	prior := r.Register(second)
	if prior != first {
		t.Fatalf("expected Register to return the prior session")
	}
	got, _ := r.Lookup("cam1")
	if got != second {
		t.Fatalf("expected registry to now hold the second session")
	}
}

func TestForwardToNamed_NotRegistered(t *testing.T) {
	r, _ := newTestRegistry()
	_, err := r.ForwardToNamed("ghost", wire.RequestMessage{}, time.Second)
	if !errors.Is(err, gwerr.ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestForwardToNamed_RemovesOnUnhealthyConnection(t *testing.T) {
	r, _ := newTestRegistry()
	s, agent := registerPiped(t, r, "cam1")
	agent.Close() // agent side already gone; the closed flag makes Dispatch fail before writing
	s.closed.Store(true)

	_, err := r.ForwardToNamed("cam1", wire.RequestMessage{ClientName: "cam1", Method: "GET"}, time.Second)
	if !errors.Is(err, gwerr.ErrUnhealthyConnection) {
		t.Fatalf("expected ErrUnhealthyConnection, got %v", err)
	}
	if _, ok := r.Lookup("cam1"); ok {
		t.Fatalf("expected session removed from registry after unhealthy dispatch")
	}
}

func TestForwardToNamed_SuccessfulDispatchKeepsSession(t *testing.T) {
	r, _ := newTestRegistry()
	s, agent := registerPiped(t, r, "cam1")
	defer agent.Close()
	_ = s

	go func() {
		msg, err := wire.ReadMessage(agent)
		if err != nil {
			return
		}
		req := msg.(wire.RequestMessage)
		wire.WriteMessage(agent, wire.ResponseMessage{Status: 200, Body: []byte("ok:" + req.URL)})
	}()

	resp, err := r.ForwardToNamed("cam1", wire.RequestMessage{ClientName: "cam1", Method: "GET", URL: "/x"}, time.Second)
	if err != nil {
		t.Fatalf("ForwardToNamed: %v", err)
	}
	if string(resp.Body) != "ok:/x" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if _, ok := r.Lookup("cam1"); !ok {
		t.Fatalf("expected session to remain registered after a successful dispatch")
	}
}

func TestSweep_RemovesDeadSessionsAndLogsDisconnect(t *testing.T) {
	r, log := newTestRegistry()
	s, agent := registerPiped(t, r, "cam1")
	defer agent.Close()
	s.closed.Store(true) // simulate a socket that already failed locally

	removed := r.Sweep()
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, ok := r.Lookup("cam1"); ok {
		t.Fatalf("expected cam1 removed from registry")
	}

	entries := log.Filter(connlog.Disconnect, "cam1", 0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 disconnect log entry, got %d", len(entries))
	}
}

func TestSweep_HealthySessionSurvives(t *testing.T) {
	r, _ := newTestRegistry()
	s, agent := registerPiped(t, r, "cam1")
	defer agent.Close()
	_ = s

	go echoAgent(t, agent)

	removed := r.Sweep()
	if removed != 0 {
		t.Fatalf("expected healthy session to survive sweep, removed=%d", removed)
	}
	if _, ok := r.Lookup("cam1"); !ok {
		t.Fatalf("expected cam1 to remain registered")
	}
}
