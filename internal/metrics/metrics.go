// Package metrics exposes Prometheus counters for the ingestion
// pipeline and an optional standalone metrics listener.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// FilesProcessed counts successfully ingested files.
	FilesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shelfd",
		Name:      "files_processed_total",
		Help:      "Number of files successfully processed and indexed.",
	})

	// FilesFailed counts ingestions that ended in an error.
	FilesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shelfd",
		Name:      "files_failed_total",
		Help:      "Number of files whose processing failed.",
	})

	// ChunksIndexed counts chunks written to the vector store.
	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shelfd",
		Name:      "chunks_indexed_total",
		Help:      "Number of chunks added to the vector store.",
	})

	// ProcessingDuration tracks end-to-end ingestion latency.
	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "shelfd",
		Name:      "file_processing_duration_seconds",
		Help:      "End-to-end duration of file ingestion.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// Server serves /metrics on its own port.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer builds the metrics listener for the given port.
func NewServer(port int, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.Named("metrics"),
	}
}

// Start blocks serving metrics until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("metrics listener started", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
