// Package server exposes the monitor to operators over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
	"github.com/Dicklesworthstone/resource_guard/internal/store"
)

const shutdownTimeout = 5 * time.Second

// Source provides the last known reading, usually a *monitor.Loop.
type Source interface {
	LastKnown() (model.Reading, bool)
}

type Server struct {
	addr    string
	source  Source
	samples []model.Sample
	router  *mux.Router
}

// New builds the router. samples are the frozen bootstrap samples served at /samples.
func New(addr string, src Source, samples []model.Sample, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		addr:    addr,
		source:  src,
		samples: samples,
		router:  mux.NewRouter(),
	}
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.status).Methods(http.MethodGet)
	s.router.HandleFunc("/samples", s.sampleCSV).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.WrapIfWithDetails(err, "http server", "addr", s.addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.WrapIf(err, "shutdown http server")
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	r, ok := s.source.LastKnown()
	if !ok {
		http.Error(w, "no reading yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(r); err != nil {
		log.WithError(err).Warn("failed to encode status")
	}
}

func (s *Server) sampleCSV(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	if err := store.WriteCSV(w, s.samples); err != nil {
		log.WithError(err).Warn("failed to write samples")
	}
}
