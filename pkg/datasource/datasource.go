package datasource

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Source kinds
const (
	SourceLocal      = "local"
	SourcePrometheus = "prometheus"
)

// Sampling scopes for the local source
const (
	ScopeHost    = "host"
	ScopeProcess = "process"
)

// Usage is an instantaneous utilisation reading
type Usage struct {
	CPUFraction    float64
	MemoryFraction float64
}

// NetCounters are cumulative byte counters since boot (or since the exporter started)
type NetCounters struct {
	BytesSent uint64
	BytesRecv uint64
}

// DataSource defines the interface for reading resource metrics
type DataSource interface {
	Usage(ctx context.Context) (Usage, error)
	NetCounters(ctx context.Context) (NetCounters, error)
	Name() string
}

type Config struct {
	Source        string
	Scope         string
	TargetPID     int32
	PrometheusURL string
	Timeout       time.Duration
}

// New builds the data source selected by cfg
func New(cfg Config, logger *zap.Logger) (DataSource, error) {
	switch cfg.Source {
	case SourceLocal, "":
		switch cfg.Scope {
		case ScopeHost, "":
			return NewHostSource(), nil
		case ScopeProcess:
			return NewProcessSource(cfg.TargetPID), nil
		default:
			return nil, fmt.Errorf("unknown sample scope %q", cfg.Scope)
		}
	case SourcePrometheus:
		return NewPrometheusSource(cfg.PrometheusURL, cfg.Timeout, logger)
	default:
		return nil, fmt.Errorf("unknown metrics source %q", cfg.Source)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
