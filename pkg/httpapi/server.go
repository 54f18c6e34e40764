// Package httpapi exposes the pipeline over HTTP: live event
// websockets, a status endpoint and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/webfish0/happyChatty/pkg/events"
	"github.com/webfish0/happyChatty/pkg/metrics"
	"github.com/webfish0/happyChatty/pkg/pipeline"
	"github.com/webfish0/happyChatty/pkg/telemetry"
)

// Server serves the pipeline's HTTP surface and periodically pushes
// grouped telemetry to websocket subscribers.
type Server struct {
	logger       *logrus.Entry
	orchestrator *pipeline.Orchestrator
	hub          *events.Hub
	profiler     *telemetry.Profiler
	interval     time.Duration
	httpServer   *http.Server
}

// New creates the HTTP server on the given port.
func New(logger *logrus.Logger, port int, orchestrator *pipeline.Orchestrator, hub *events.Hub, profiler *telemetry.Profiler, telemetryInterval time.Duration) *Server {
	s := &Server{
		logger:       logger.WithField("component", "http"),
		orchestrator: orchestrator,
		hub:          hub,
		profiler:     profiler,
		interval:     telemetryInterval,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/telemetry", s.handleTelemetry)
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves HTTP and runs the telemetry broadcast loop until ctx
// is canceled.
func (s *Server) Start(ctx context.Context) error {
	go s.broadcastTelemetry(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// broadcastTelemetry pushes the grouped snapshot to subscribers at a
// fixed cadence for dashboard consumption.
func (s *Server) broadcastTelemetry(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logEvery := time.NewTicker(30 * time.Second)
	defer logEvery.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hub.BroadcastTelemetry(s.profiler.GroupedSnapshot())
		case <-logEvery.C:
			snapshot := s.profiler.GroupedSnapshot()
			for category, group := range snapshot.Components {
				s.logger.WithFields(logrus.Fields{
					"category":   category,
					"operations": group.TotalOperations,
					"avg_ms":     group.AverageTimeMs,
				}).Debug("Telemetry summary")
			}
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.orchestrator.Status())
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.profiler.GroupedSnapshot())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
