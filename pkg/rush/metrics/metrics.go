// Package metrics exports the engine's load and link reports as
// Prometheus gauges and counters, an observability surface the original
// engine only had as stdout text.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netshaper/rush/pkg/rush/engine"
)

// Registry bundles the gauges/counters rush publishes and a method to
// refresh them from a live Engine's Stats/ReportLinks-equivalent data.
type Registry struct {
	breaths   prometheus.Counter
	frees     prometheus.Counter
	freeBits  prometheus.Counter
	linkTx    *prometheus.GaugeVec
	linkDrop  *prometheus.GaugeVec
	lastValue Stats
}

// Stats is the subset of engine.Stats the registry tracks deltas from,
// since Prometheus counters must only move forward.
type Stats struct {
	Breaths  uint64
	Frees    uint64
	FreeBits uint64
}

// NewRegistry creates and registers rush's metrics on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		breaths: factory.NewCounter(prometheus.CounterOpts{
			Name: "rush_engine_breaths_total",
			Help: "Total number of breathe() passes performed by the engine.",
		}),
		frees: factory.NewCounter(prometheus.CounterOpts{
			Name: "rush_engine_frees_total",
			Help: "Total number of packets freed by the engine.",
		}),
		freeBits: factory.NewCounter(prometheus.CounterOpts{
			Name: "rush_engine_free_bits_total",
			Help: "Total number of bits freed by the engine.",
		}),
		linkTx: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rush_link_tx_packets",
			Help: "Packets transmitted on a link since the engine started.",
		}, []string{"link"}),
		linkDrop: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rush_link_txdrop_total",
			Help: "Packets dropped on a link due to a full output ring.",
		}, []string{"link"}),
	}
}

// Collect reads e's cumulative stats and every live link's counters,
// advancing the registry's counters by the delta since the last call.
func (r *Registry) Collect(e *engine.Engine) {
	stats := e.Stats()
	r.breaths.Add(float64(stats.Breaths - r.lastValue.Breaths))
	r.frees.Add(float64(stats.Frees - r.lastValue.Frees))
	r.freeBits.Add(float64(stats.FreeBits - r.lastValue.FreeBits))
	r.lastValue = Stats{Breaths: stats.Breaths, Frees: stats.Frees, FreeBits: stats.FreeBits}

	for _, name := range e.InhaleOrder() {
		r.collectLink(e, name)
	}
	for _, name := range e.ExhaleOrder() {
		r.collectLink(e, name)
	}
}

func (r *Registry) collectLink(e *engine.Engine, appName string) {
	app, ok := e.App(appName)
	if !ok {
		return
	}
	for port, l := range app.Output {
		label := appName + "." + port
		r.linkTx.WithLabelValues(label).Set(float64(l.TxPackets))
		r.linkDrop.WithLabelValues(label).Set(float64(l.TxDrop))
	}
}

// Server serves the registered metrics over HTTP at /metrics.
type Server struct {
	http *http.Server
}

// NewServer builds an HTTP server exposing reg on addr, not yet started.
func NewServer(addr string, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Server{http: &http.Server{Addr: addr, Handler: mux}}
}

// Serve runs the metrics HTTP server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
