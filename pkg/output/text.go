package output

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/opscart/selfheal-agent/pkg/config"
	"github.com/opscart/selfheal-agent/pkg/models"
)

const timeLayout = "2006-01-02 15:04:05"

// TextHandler prints human readable output
type TextHandler struct {
	w io.Writer
}

func (h *TextHandler) Format() string { return FormatText }

func (h *TextHandler) DisplayActions(ctx context.Context, actions []*models.ActionRecord) error {
	if len(actions) == 0 {
		_, err := fmt.Fprintln(h.w, "No actions recorded")
		return err
	}

	fmt.Fprintf(h.w, "Recent actions (%d):\n\n", len(actions))
	for i, a := range actions {
		status := "ok"
		if !a.Success {
			status = "failed"
		}
		fmt.Fprintf(h.w, "%d. %s on pid %d [%s] (ID: %s)\n", i+1, a.Action, a.TargetPID, status, a.ID)
		if a.Message != "" {
			fmt.Fprintf(h.w, "   Result: %s\n", a.Message)
		}
		if len(a.Detail) > 0 {
			fmt.Fprintf(h.w, "   Detail: %s\n", formatDetail(a.Detail))
		}
		fmt.Fprintf(h.w, "   Executed: %s\n", a.Timestamp.Local().Format(timeLayout))
		if _, err := fmt.Fprintln(h.w); err != nil {
			return err
		}
	}
	return nil
}

func (h *TextHandler) DisplayConfig(ctx context.Context, cfg *config.Config) error {
	for _, kv := range configRows(cfg) {
		if _, err := fmt.Fprintf(h.w, "%-17s %s\n", kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// formatDetail renders detail keys in sorted order
func formatDetail(detail map[string]interface{}) string {
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, detail[k]))
	}
	return strings.Join(parts, " ")
}

// configRows lists the effective settings under their environment names.
// URLs that may carry credentials are masked.
func configRows(cfg *config.Config) [][2]string {
	return [][2]string{
		{"SAMPLE_INTERVAL", cfg.SampleInterval.String()},
		{"EVAL_INTERVAL", cfg.EvalInterval.String()},
		{"WINDOW_SIZE", fmt.Sprint(cfg.WindowSize)},
		{"CPU_THRESHOLD", fmt.Sprint(cfg.CPUThreshold)},
		{"MEM_THRESHOLD", fmt.Sprint(cfg.MemThreshold)},
		{"ACTION_COOLDOWN", cfg.ActionCooldown.String()},
		{"AGENT_WEBHOOK", masked(cfg.Webhook)},
		{"WEBHOOK_TIMEOUT", cfg.WebhookTimeout.String()},
		{"TARGET_PID", fmt.Sprint(cfg.TargetPID)},
		{"METRICS_PORT", fmt.Sprint(cfg.MetricsPort)},
		{"NICE_INCREMENT", fmt.Sprint(cfg.NiceIncrement)},
		{"GRACEFUL_TIMEOUT", cfg.GracefulTimeout.String()},
		{"SAMPLE_SCOPE", cfg.SampleScope},
		{"METRICS_SOURCE", cfg.MetricsSource},
		{"PROMETHEUS_URL", cfg.PrometheusURL},
		{"STORAGE_ENABLED", fmt.Sprint(cfg.StorageEnabled)},
		{"DATABASE_URL", masked(cfg.DatabaseURL)},
		{"LOG_LEVEL", cfg.LogLevel},
		{"LOG_FILE", cfg.LogFile},
	}
}

func masked(secret string) string {
	if secret == "" {
		return ""
	}
	return "(set)"
}
