package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/nullbridge/tunnelgate/internal/connlog"
	"github.com/nullbridge/tunnelgate/internal/gwerr"
	"github.com/nullbridge/tunnelgate/internal/netutil"
	"github.com/nullbridge/tunnelgate/internal/tunnel"
	"github.com/nullbridge/tunnelgate/internal/wire"
)

// validate checks the request-body structs below the same way
// internal/config validates Config: struct tags, one shared instance.
var validate = validator.New()

// forwardRequest is the JSON body of POST /api/forward (spec.md §3's
// Request message, addressed by clientName).
type forwardRequest struct {
	ClientName string `json:"clientName" validate:"required"`
	Method     string `json:"method" validate:"required"`
	URL        string `json:"url" validate:"required"`
	Body       string `json:"body"`
}

func (g *Gateway) handleForward(w http.ResponseWriter, r *http.Request) {
	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "malformed JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	start := time.Now()
	resp, err := g.registry.ForwardToNamed(req.ClientName, wire.RequestMessage{
		ClientName: req.ClientName,
		Method:     req.Method,
		URL:        req.URL,
		Body:       []byte(req.Body),
	}, g.cfg.DispatchTimeout)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	g.metrics.DispatchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	g.metrics.DispatchTotal.WithLabelValues(outcome).Inc()

	if err != nil {
		g.writeDispatchError(w, req.ClientName, err)
		return
	}

	if headers, body, ok := ParseEnvelope(string(resp.Body)); ok {
		netutil.RemoveHopByHopHeaders(headers)
		for name, values := range headers {
			for _, v := range values {
				w.Header().Add(name, v)
			}
		}
		w.WriteHeader(resp.Status)
		w.Write(body)
		return
	}

	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

func (g *Gateway) writeDispatchError(w http.ResponseWriter, clientName string, err error) {
	switch {
	case errors.Is(err, gwerr.ErrNotRegistered):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":      "Client not connected",
			"clientName": clientName,
		})
	case errors.Is(err, gwerr.ErrDispatchTimeout):
		writeError(w, http.StatusInternalServerError, "timeout", "dispatch timed out waiting for agent response")
	default:
		writeError(w, gwerr.StatusFor(err), "DispatchFailed", err.Error())
	}
}

// healthResponse is GET /api/health's body.
type healthResponse struct {
	Status               string            `json:"status"`
	ConnectedClients     int               `json:"connectedClients"`
	ConnectedClientNames []string          `json:"connectedClientNames"`
	ClientDetails        []clientDetailDTO `json:"clientDetails"`
	Uptime               string            `json:"uptime"`
	Timestamp            string            `json:"timestamp"`
}

type clientDetailDTO struct {
	Name        string `json:"name"`
	ConnectedAt string `json:"connectedAt"`
	Uptime      string `json:"uptime"`
	Connected   bool   `json:"connected"`
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := g.registry.Names()
	details := g.registry.Details()
	dtos := make([]clientDetailDTO, len(details))
	for i, d := range details {
		dtos[i] = clientDetailDTO{
			Name:        d.Name,
			ConnectedAt: d.ConnectedAt.Format(time.RFC3339),
			Uptime:      d.Uptime,
			Connected:   d.Connected,
		}
	}

	status := "healthy"
	code := http.StatusOK
	if len(names) == 0 {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, healthResponse{
		Status:               status,
		ConnectedClients:     len(names),
		ConnectedClientNames: names,
		ClientDetails:        dtos,
		Uptime:               formatUptimeSince(g.startedAt),
		Timestamp:            now(),
	})
}

func (g *Gateway) handleHealthNamed(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	session, ok := g.registry.Lookup(name)
	if !ok || !session.SocketHealthy() {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"status":    "disconnected",
			"connected": false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"connected": true,
	})
}

func (g *Gateway) handleSecurityStatus(w http.ResponseWriter, r *http.Request) {
	t := g.ledger.Thresholds()
	writeJSON(w, http.StatusOK, map[string]any{
		"bannedIPs": g.ledger.BannedIPs(),
		"thresholds": map[string]any{
			"maxAttempts":   t.MaxAttempts,
			"windowSeconds": t.Window.Seconds(),
			"window":        humanize.RelTime(time.Now(), time.Now().Add(t.Window), "", ""),
			"permanent":     t.Permanent,
			"authTolerance": t.AuthTolerance,
			"graceSeconds":  t.Grace.Seconds(),
			"grace":         humanize.RelTime(time.Now(), time.Now().Add(t.Grace), "", ""),
			"gcSeconds":     t.GC.Seconds(),
			"gc":            humanize.RelTime(time.Now(), time.Now().Add(t.GC), "", ""),
		},
		"timestamp": now(),
	})
}

var validSecurityActions = []string{"ban", "unban", "status", "check"}

type adminSecurityRequest struct {
	Action string `json:"action" validate:"required,oneof=ban unban status check"`
	IP     string `json:"ip" validate:"required,ip"`
}

func (g *Gateway) handleAdminSecurity(w http.ResponseWriter, r *http.Request) {
	var req adminSecurityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "malformed JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if fe.Field() == "Action" {
					writeJSON(w, http.StatusBadRequest, map[string]any{
						"error":        "BadRequest",
						"validActions": validSecurityActions,
					})
					return
				}
			}
		}
		writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	switch req.Action {
	case "ban":
		g.ledger.Ban(req.IP)
		writeJSON(w, http.StatusOK, map[string]any{"banned": true, "ip": req.IP})
	case "unban":
		wasBanned := g.ledger.Unban(req.IP)
		writeJSON(w, http.StatusOK, map[string]any{
			"unbanned":          true,
			"wasActuallyBanned": wasBanned,
			"ip":                req.IP,
		})
	case "status", "check":
		status := g.ledger.AutoBanStatus(req.IP)
		writeJSON(w, http.StatusOK, status)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":        "BadRequest",
			"validActions": validSecurityActions,
		})
	}
}

func (g *Gateway) handleCleanupConnections(w http.ResponseWriter, r *http.Request) {
	before := g.registry.Count()
	removed := g.registry.Sweep()
	after := g.registry.Count()
	g.metrics.SweepRemovals.Add(float64(removed))

	writeJSON(w, http.StatusOK, map[string]any{
		"before":  before,
		"removed": removed,
		"after":   after,
	})
}

func (g *Gateway) handleConnectionLogs(w http.ResponseWriter, r *http.Request) {
	eventType := connlog.Event(r.URL.Query().Get("eventType"))
	clientName := r.URL.Query().Get("clientName")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries := g.connLog.Filter(eventType, clientName, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"statistics": g.connLog.Statistics(),
	})
}

func (g *Gateway) handleConnectionLogsClear(w http.ResponseWriter, r *http.Request) {
	g.connLog.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

func formatUptimeSince(t time.Time) string {
	return tunnel.FormatUptime(time.Since(t))
}
