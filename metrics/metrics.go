// Package metrics exposes Prometheus counters for chain activity.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bazaarchain/bazaar/events"
)

// Metrics holds the chain's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	blocksCommitted prometheus.Counter
	txExecuted      prometheus.Counter
	eventsByType    *prometheus.CounterVec
	saleVolume      prometheus.Counter
	mempoolSize     prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		blocksCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bazaar_blocks_committed_total",
			Help: "Number of blocks committed to the chain.",
		}),
		txExecuted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bazaar_tx_executed_total",
			Help: "Number of transactions executed successfully.",
		}),
		eventsByType: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_events_total",
			Help: "Chain events emitted, by type.",
		}, []string{"type"}),
		saleVolume: factory.NewCounter(prometheus.CounterOpts{
			Name: "bazaar_sale_volume_total",
			Help: "Cumulative sale volume in base units.",
		}),
		mempoolSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bazaar_mempool_size",
			Help: "Transactions currently waiting in the mempool.",
		}),
	}
}

// Attach subscribes the collectors to the emitter.
func (m *Metrics) Attach(emitter *events.Emitter) {
	emitter.SubscribeAll(func(ev events.Event) {
		m.eventsByType.WithLabelValues(string(ev.Type)).Inc()
		switch ev.Type {
		case events.EventBlockCommit:
			m.blocksCommitted.Inc()
		case events.EventTxExecuted:
			m.txExecuted.Inc()
		case events.EventSale, events.EventOfferAccepted:
			if price, ok := ev.Data["price"].(uint64); ok {
				m.saleVolume.Add(float64(price))
			}
		}
	})
}

// SetMempoolSize updates the mempool gauge.
func (m *Metrics) SetMempoolSize(n int) {
	m.mempoolSize.Set(float64(n))
}

// Server serves the /metrics endpoint.
type Server struct {
	srv *http.Server
}

// NewServer builds an HTTP server exposing m on /metrics at the given port.
func NewServer(port int, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start binds the port synchronously then serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
