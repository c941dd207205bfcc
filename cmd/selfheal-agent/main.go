package main

import (
	"fmt"
	"os"

	"github.com/opscart/selfheal-agent/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	v *viper.Viper

	// History command vars
	historyLimit int
	outputFormat string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v = viper.New()
	config.SetDefaults(v)

	rootCmd := &cobra.Command{
		Use:   "selfheal-agent",
		Short: "Self-healing process agent",
		Long: `Sample host or process resource usage, predict the next value of each metric
from a rolling window, and deprioritize or restart the target process before
it exhausts CPU or memory.`,
		SilenceUsage: true,
		RunE:         runAgent,
	}

	addConfigFlags(rootCmd.PersistentFlags())

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent corrective actions from the audit log",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of actions to show")
	historyCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, csv")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfig,
	}
	configCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, csv")

	rootCmd.AddCommand(historyCmd, configCmd)
	return rootCmd
}

// addConfigFlags registers one flag per configuration key and binds it to v.
// Unset flags fall through to the environment and defaults.
func addConfigFlags(flags *pflag.FlagSet) {
	flags.String("sample-interval", "", "Seconds or duration between samples (SAMPLE_INTERVAL)")
	flags.String("eval-interval", "", "Seconds or duration between decisions (EVAL_INTERVAL)")
	flags.Int("window-size", 0, "Samples kept per metric (WINDOW_SIZE)")
	flags.Float64("cpu-threshold", 0, "Predicted CPU fraction that triggers deprioritizing (CPU_THRESHOLD)")
	flags.Float64("mem-threshold", 0, "Predicted memory fraction that triggers a restart (MEM_THRESHOLD)")
	flags.String("cooldown", "", "Minimum time between actions (ACTION_COOLDOWN)")
	flags.String("webhook", "", "URL receiving JSON events (AGENT_WEBHOOK)")
	flags.Int32("pid", 0, "Target process ID (TARGET_PID)")
	flags.Int("metrics-port", 0, "Port of the Prometheus endpoint (METRICS_PORT)")
	flags.String("scope", "", "Sampling scope: host, process (SAMPLE_SCOPE)")
	flags.String("source", "", "Metrics source: local, prometheus (METRICS_SOURCE)")
	flags.String("prometheus-url", "", "Prometheus server URL (PROMETHEUS_URL)")
	flags.Bool("storage", false, "Record actions in PostgreSQL (STORAGE_ENABLED)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (LOG_LEVEL)")
	flags.String("log-file", "", "Also write logs to this rotated file (LOG_FILE)")

	bind := map[string]string{
		config.KeySampleInterval: "sample-interval",
		config.KeyEvalInterval:   "eval-interval",
		config.KeyWindowSize:     "window-size",
		config.KeyCPUThreshold:   "cpu-threshold",
		config.KeyMemThreshold:   "mem-threshold",
		config.KeyActionCooldown: "cooldown",
		config.KeyWebhook:        "webhook",
		config.KeyTargetPID:      "pid",
		config.KeyMetricsPort:    "metrics-port",
		config.KeySampleScope:    "scope",
		config.KeyMetricsSource:  "source",
		config.KeyPrometheusURL:  "prometheus-url",
		config.KeyStorageEnabled: "storage",
		config.KeyLogLevel:       "log-level",
		config.KeyLogFile:        "log-file",
	}
	for key, name := range bind {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

// loadConfig reads and validates flags, environment and defaults
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
