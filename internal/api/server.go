package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/model"
	"github.com/AaronLay10/protoflow/internal/player"
	"github.com/AaronLay10/protoflow/internal/storage/postgres"
)

// Saver persists the current project. It is called by POST /api/project/save.
type Saver func(p *model.Project) error

// Server exposes a running prototype over HTTP.
type Server struct {
	player  *player.Player
	frames  *frameHub
	saver   Saver
	metrics *Metrics
}

// NewServer creates a server for pl. saver may be nil, in which case
// saving is refused.
func NewServer(pl *player.Player, saver Saver) *Server {
	s := &Server{
		player:  pl,
		frames:  newFrameHub(),
		saver:   saver,
		metrics: NewMetrics(),
	}
	pl.OnFrame(func(f *player.Frame) {
		s.metrics.frames.Inc()
		s.frames.publish(f)
	})
	return s
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler)
	r.Handle("/metrics", s.metrics.Handler())

	r.Get("/events", RequireAnyRole(eventsHandler))
	r.Get("/events/history", RequireAnyRole(eventsHistoryHandler))
	r.Get("/ws/events", RequireAnyRole(wsEventsHandler))
	r.Get("/ws/frames", RequireAnyRole(s.wsFramesHandler))

	r.Route("/api", func(r chi.Router) {
		s.inspectorRoutes(r)
	})
	return r
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "protoflow",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events.Snapshot())
}

// eventsHistoryHandler serves persisted events when Postgres is attached.
func eventsHistoryHandler(w http.ResponseWriter, r *http.Request) {
	client := events.GetPostgresClient()
	if client == nil {
		writeError(w, http.StatusServiceUnavailable, "event history requires postgres")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &limit); err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}
	rows, err := client.Query(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []postgres.EventRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// readinessState tracks what the process depends on.
type readinessState struct {
	mu                sync.RWMutex
	playerReady       bool
	mqttConnected     bool
	mqttOptional      bool
	postgresConnected bool
	postgresOptional  bool
}

var readiness = &readinessState{mqttOptional: true, postgresOptional: true}

// SetPlayerReady marks whether the prototype has been loaded and started.
func SetPlayerReady(ready bool) {
	readiness.mu.Lock()
	readiness.playerReady = ready
	readiness.mu.Unlock()
}

// SetMQTTState records broker connectivity. An optional broker never
// blocks readiness.
func SetMQTTState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mqttOptional = optional
	readiness.mu.Unlock()
}

// SetPostgresState records database connectivity.
func SetPostgresState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.postgresConnected = connected
	readiness.postgresOptional = optional
	readiness.mu.Unlock()
}

type CheckResult struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckResult `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	state := readinessState{
		playerReady:       readiness.playerReady,
		mqttConnected:     readiness.mqttConnected,
		mqttOptional:      readiness.mqttOptional,
		postgresConnected: readiness.postgresConnected,
		postgresOptional:  readiness.postgresOptional,
	}
	readiness.mu.RUnlock()

	resp := ReadinessResponse{Ready: true, Checks: make(map[string]CheckResult)}
	var reasons []string

	if state.playerReady {
		resp.Checks["player"] = CheckResult{Status: "ok"}
	} else {
		resp.Checks["player"] = CheckResult{Status: "not_ready"}
		resp.Ready = false
		reasons = append(reasons, "player not started")
	}

	dependency := func(name string, connected, optional bool) {
		switch {
		case connected:
			resp.Checks[name] = CheckResult{Status: "ok", Optional: optional}
		case optional:
			resp.Checks[name] = CheckResult{Status: "unavailable", Optional: true}
		default:
			resp.Checks[name] = CheckResult{Status: "not_connected"}
			resp.Ready = false
			reasons = append(reasons, name+" not connected")
		}
	}
	dependency("mqtt", state.mqttConnected, state.mqttOptional)
	dependency("postgres", state.postgresConnected, state.postgresOptional)

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
		resp.NotReadyMsg = strings.Join(reasons, "; ")
	}
	writeJSON(w, status, resp)
}

// ListenAndServe serves handler on port, with TLS when configured, until
// ctx is cancelled. In-flight requests get five seconds to finish.
func ListenAndServe(ctx context.Context, port int, handler http.Handler) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		if cfg := LoadTLSConfig(); cfg != nil {
			srv.TLSConfig = cfg
			log.Printf("API listening on %s (TLS)\n", addr)
			serverErrors <- srv.ListenAndServeTLS("", "")
			return
		}
		log.Printf("API listening on %s\n", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown did not complete: %v", err)
		return srv.Close()
	}
	return nil
}
