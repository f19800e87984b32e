package prometheus

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	shutdownGrace            = 5 * time.Second
)

// HealthFunc reports whether the client is healthy. A non-nil error turns
// /health into a 503 carrying the error text.
type HealthFunc func() error

// Exporter serves /metrics and /health over HTTP.
type Exporter struct {
	addr     string
	registry *prometheus.Registry
	health   HealthFunc

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithRegistry uses a caller-provided registry instead of one holding the
// SightKit and Go runtime collectors.
func WithRegistry(reg *prometheus.Registry) ExporterOption {
	return func(e *Exporter) {
		e.registry = reg
	}
}

// WithHealth sets the /health check.
func WithHealth(fn HealthFunc) ExporterOption {
	return func(e *Exporter) {
		e.health = fn
	}
}

// NewExporter creates an exporter for addr.
func NewExporter(addr string, opts ...ExporterOption) *Exporter {
	e := &Exporter{addr: addr}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = NewRegistry()
	}
	return e
}

// NewRegistry returns a registry with every SightKit metric plus the Go
// runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range allMetrics {
		reg.MustRegister(c)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns the router serving GET /metrics and GET /health.
func (e *Exporter) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if e.health != nil {
			if err := e.health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet, http.MethodHead)
	return r
}

// Listen binds the address so Addr is known before serving.
func (e *Exporter) Listen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}
	e.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (e *Exporter) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.addr
}

// Serve serves until ctx is done, then shuts down gracefully. It returns nil
// after a clean shutdown.
func (e *Exporter) Serve(ctx context.Context) error {
	if err := e.Listen(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.server != nil {
		e.mu.Unlock()
		return errors.New("exporter already serving")
	}
	e.server = &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	srv, ln := e.server, e.listener
	e.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
