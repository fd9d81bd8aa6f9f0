// Package metrics exporta los eventos del ledger como métricas Prometheus.
package metrics

import (
	"net/http"

	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implementa ports.Observer sobre un registry propio: varias
// instancias (tests) no chocan en el global.
type Prometheus struct {
	reg *prometheus.Registry

	bets        prometheus.Counter
	wagered     prometheus.Counter
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	phase       prometheus.Gauge
	openBets    prometheus.Gauge
	pool        prometheus.Gauge
}

// NewPrometheus registra las métricas del ledger en un registry nuevo.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Prometheus{
		reg: reg,
		bets: f.NewCounter(prometheus.CounterOpts{
			Name: "betledger_bets_total",
			Help: "Bets accepted by the ledger.",
		}),
		wagered: f.NewCounter(prometheus.CounterOpts{
			Name: "betledger_wagered_total",
			Help: "Sum of accepted wagers.",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betledger_transitions_total",
			Help: "Successful ledger mutations by operation.",
		}, []string{"op"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "betledger_failures_total",
			Help: "Failed ledger operations by operation and error kind.",
		}, []string{"op", "kind"}),
		phase: f.NewGauge(prometheus.GaugeOpts{
			Name: "betledger_market_phase",
			Help: "Current phase: 0 open, 1 closed, 2 resolved.",
		}),
		openBets: f.NewGauge(prometheus.GaugeOpts{
			Name: "betledger_bets",
			Help: "Bets in the current epoch, as of the last snapshot.",
		}),
		pool: f.NewGauge(prometheus.GaugeOpts{
			Name: "betledger_pool",
			Help: "Total pool of the current epoch, as of the last snapshot.",
		}),
	}
}

func (p *Prometheus) BetPlaced(bet domain.Bet) {
	p.bets.Inc()
	p.wagered.Add(float64(bet.Wager))
}

func (p *Prometheus) Transition(op string, phase domain.Phase) {
	p.transitions.WithLabelValues(op).Inc()
	p.phase.Set(float64(phase))
}

func (p *Prometheus) Failed(op string, err error) {
	p.failures.WithLabelValues(op, domain.ErrorKind(err)).Inc()
}

// Snapshot fija los gauges desde un estado completo. Los watchers lo llaman
// tras cada refresh: no ven las transiciones de otros procesos.
func (p *Prometheus) Snapshot(state domain.MarketState) {
	p.phase.Set(float64(state.Phase()))
	p.openBets.Set(float64(len(state.Bets)))
	p.pool.Set(float64(domain.ComputeStats(state.Bets).TotalPool))
}

// Handler sirve el registry en el formato de texto de Prometheus.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}
