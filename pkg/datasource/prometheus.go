package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"
)

// Queries are the PromQL expressions used to read each signal
type Queries struct {
	CPU       string
	Memory    string
	BytesSent string
	BytesRecv string
}

// DefaultQueries reads host metrics published by node-exporter
func DefaultQueries() Queries {
	return Queries{
		CPU:       `1 - avg(rate(node_cpu_seconds_total{mode="idle"}[1m]))`,
		Memory:    `1 - sum(node_memory_MemAvailable_bytes) / sum(node_memory_MemTotal_bytes)`,
		BytesSent: `sum(node_network_transmit_bytes_total{device!="lo"})`,
		BytesRecv: `sum(node_network_receive_bytes_total{device!="lo"})`,
	}
}

// PrometheusSource reads the same signals as the local source from a Prometheus server
type PrometheusSource struct {
	client  v1.API
	url     string
	timeout time.Duration
	queries Queries
	logger  *zap.Logger
}

func NewPrometheusSource(url string, timeout time.Duration, logger *zap.Logger) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PrometheusSource{
		client:  v1.NewAPI(client),
		url:     url,
		timeout: timeout,
		queries: DefaultQueries(),
		logger:  logger,
	}, nil
}

// WithQueries replaces the default node-exporter queries
func (p *PrometheusSource) WithQueries(q Queries) *PrometheusSource {
	p.queries = q
	return p
}

func (p *PrometheusSource) Usage(ctx context.Context) (Usage, error) {
	cpu, err := p.querySingle(ctx, p.queries.CPU)
	if err != nil {
		return Usage{}, fmt.Errorf("CPU query failed: %w", err)
	}
	mem, err := p.querySingle(ctx, p.queries.Memory)
	if err != nil {
		return Usage{}, fmt.Errorf("memory query failed: %w", err)
	}
	return Usage{
		CPUFraction:    clamp01(cpu),
		MemoryFraction: clamp01(mem),
	}, nil
}

func (p *PrometheusSource) NetCounters(ctx context.Context) (NetCounters, error) {
	sent, err := p.querySingle(ctx, p.queries.BytesSent)
	if err != nil {
		return NetCounters{}, fmt.Errorf("transmit bytes query failed: %w", err)
	}
	recv, err := p.querySingle(ctx, p.queries.BytesRecv)
	if err != nil {
		return NetCounters{}, fmt.Errorf("receive bytes query failed: %w", err)
	}
	return NetCounters{
		BytesSent: toCounter(sent),
		BytesRecv: toCounter(recv),
	}, nil
}

func (p *PrometheusSource) querySingle(ctx context.Context, query string) (float64, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result, warnings, err := p.client.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}

	if len(warnings) > 0 {
		p.logger.Warn("prometheus query warnings",
			zap.String("query", query),
			zap.Strings("warnings", warnings))
	}

	vector, ok := result.(model.Vector)
	if !ok || len(vector) == 0 {
		return 0, fmt.Errorf("no data for query: %s", query)
	}

	// Sum all series in case the query was not aggregated
	sum := 0.0
	for _, sample := range vector {
		sum += float64(sample.Value)
	}

	return sum, nil
}

func (p *PrometheusSource) IsAvailable(ctx context.Context) bool {
	_, _, err := p.client.Query(ctx, "up", time.Now())
	return err == nil
}

func (p *PrometheusSource) Name() string {
	return "prometheus"
}

func toCounter(v float64) uint64 {
	if v <= 0 {
		return 0
	}
	return uint64(v)
}
