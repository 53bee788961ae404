package metrics

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collectors registered with the default registry.
var (
	TransformationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "json2avro_transformation_errors_total",
			Help: "Total number of record transformation errors by error type, stage and pipeline",
		},
		[]string{"error_type", "stage", "pipeline", "source", "sink"},
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "json2avro_publish_errors_total",
			Help: "Total number of publish errors by sink",
		},
		[]string{"sink"},
	)

	ProcessedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "json2avro_processed_records_total",
			Help: "Total number of records published by pipeline, source and sink",
		},
		[]string{"pipeline", "source", "sink"},
	)

	RecordProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "json2avro_record_processing_duration_seconds",
			Help:    "Duration of processing one source record through a pipeline",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline", "source", "sink"},
	)
)

// ServerOptions configure the metrics server. Zero fields take defaults.
type ServerOptions struct {
	Addr              string        // defaults to ":9100"
	Path              string        // defaults to "/metrics"
	ShutdownTimeout   time.Duration // defaults to 5s
	ReadHeaderTimeout time.Duration // defaults to 3s
	Logger            *zap.Logger
}

func (o ServerOptions) withDefaults() ServerOptions {
	o.Addr = cmp.Or(o.Addr, ":9100")
	o.Path = cmp.Or(o.Path, "/metrics")
	o.ShutdownTimeout = cmp.Or(o.ShutdownTimeout, 5*time.Second)
	o.ReadHeaderTimeout = cmp.Or(o.ReadHeaderTimeout, 3*time.Second)
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// StartServer binds opts.Addr and serves the default registry until ctx is
// done. It returns the bound address; wg is released after shutdown.
func StartServer(ctx context.Context, wg *sync.WaitGroup, opts ServerOptions) (net.Addr, error) {
	opts = opts.withDefaults()
	logger := opts.Logger

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("metrics server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(opts.Path, promhttp.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		logger.Info("Serving metrics", zap.Stringer("addr", ln.Addr()), zap.String("path", opts.Path))
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown", zap.Error(err))
			return
		}
		logger.Info("Metrics server stopped")
	}()

	return ln.Addr(), nil
}
