package observability

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusConfig controls the scrape endpoint. With an empty Port the
// endpoint is mounted on the web server instead of a listener of its own.
type PrometheusConfig struct {
	Enabled  bool
	Endpoint string
	Port     string
}

// metricsEndpoint serves the pipeline counters together with Go runtime and
// process collectors from a registry owned by this manager.
type metricsEndpoint struct {
	cfg      PrometheusConfig
	registry *prometheus.Registry
	handler  http.Handler

	server *http.Server
	addr   string
}

func newMetricsEndpoint(cfg PrometheusConfig) (sdkmetric.Reader, *metricsEndpoint, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "/metrics"
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	return exporter, &metricsEndpoint{
		cfg:      cfg,
		registry: registry,
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorHandling: promhttp.ContinueOnError,
		}),
	}, nil
}

// start binds the dedicated listener when a port is configured.
func (me *metricsEndpoint) start() error {
	if me.cfg.Port == "" {
		return nil
	}

	ln, err := net.Listen("tcp", ":"+me.cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on port %s: %w", me.cfg.Port, err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET "+me.cfg.Endpoint, me.handler)
	me.addr = ln.Addr().String()
	me.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("[OBSERVABILITY] Metrics available at http://%s%s", me.addr, me.cfg.Endpoint)
	go func() {
		if err := me.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[OBSERVABILITY] Metrics server error: %v", err)
		}
	}()
	return nil
}

func (me *metricsEndpoint) shutdown(ctx context.Context) error {
	if me.server == nil {
		return nil
	}
	return me.server.Shutdown(ctx)
}

// MetricsRoute returns the scrape endpoint for the web server to mount. It is
// empty when Prometheus is disabled or already has its own listener.
func (om *ObservabilityManager) MetricsRoute() (string, http.Handler) {
	if om == nil || om.metricsEndpoint == nil || om.metricsEndpoint.server != nil {
		return "", nil
	}
	return om.metricsEndpoint.cfg.Endpoint, om.metricsEndpoint.handler
}
