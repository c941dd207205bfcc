package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Exporter receives the gauge values the agent publishes
type Exporter interface {
	SetCurrent(cpu, mem float64)
	SetPredicted(cpu, mem float64)
	SetActionsTotal(n int)
}

// PromExporter publishes agent state as Prometheus gauges on its own registry
type PromExporter struct {
	registry *prometheus.Registry

	cpuCurrent   prometheus.Gauge
	memCurrent   prometheus.Gauge
	cpuPredicted prometheus.Gauge
	memPredicted prometheus.Gauge
	actionsTotal prometheus.Gauge
}

// NewPromExporter creates and registers the agent gauges
func NewPromExporter() *PromExporter {
	e := &PromExporter{
		registry: prometheus.NewRegistry(),
		cpuCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selfheal_cpu_frac",
			Help: "Current CPU fraction (0..1)",
		}),
		memCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selfheal_mem_frac",
			Help: "Current memory fraction (0..1)",
		}),
		cpuPredicted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selfheal_cpu_pred_frac",
			Help: "Predicted CPU fraction (0..1)",
		}),
		memPredicted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selfheal_mem_pred_frac",
			Help: "Predicted memory fraction (0..1)",
		}),
		// a gauge, not a counter: the value is set from the executor's own count
		actionsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "selfheal_actions_total",
			Help: "Number of corrective actions executed",
		}),
	}

	e.registry.MustRegister(
		e.cpuCurrent,
		e.memCurrent,
		e.cpuPredicted,
		e.memPredicted,
		e.actionsTotal,
	)
	return e
}

func (e *PromExporter) SetCurrent(cpu, mem float64) {
	e.cpuCurrent.Set(cpu)
	e.memCurrent.Set(mem)
}

func (e *PromExporter) SetPredicted(cpu, mem float64) {
	e.cpuPredicted.Set(cpu)
	e.memPredicted.Set(mem)
}

func (e *PromExporter) SetActionsTotal(n int) {
	e.actionsTotal.Set(float64(n))
}

// Registry exposes the registry backing the gauges
func (e *PromExporter) Registry() *prometheus.Registry {
	return e.registry
}

// Nop discards all values
type Nop struct{}

func (Nop) SetCurrent(cpu, mem float64)   {}
func (Nop) SetPredicted(cpu, mem float64) {}
func (Nop) SetActionsTotal(n int)         {}
