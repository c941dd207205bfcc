package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/opscart/selfheal-agent/pkg/config"
	"github.com/opscart/selfheal-agent/pkg/models"
)

type CSVHandler struct {
	w io.Writer
}

func (h *CSVHandler) Format() string { return FormatCSV }

func (h *CSVHandler) DisplayActions(ctx context.Context, actions []*models.ActionRecord) error {
	w := csv.NewWriter(h.w)

	header := []string{"ID", "Action", "Target PID", "Success", "Message", "Detail", "Executed At"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, a := range actions {
		row := []string{
			a.ID,
			a.Action,
			fmt.Sprintf("%d", a.TargetPID),
			fmt.Sprintf("%t", a.Success),
			a.Message,
			formatDetail(a.Detail),
			a.Timestamp.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

func (h *CSVHandler) DisplayConfig(ctx context.Context, cfg *config.Config) error {
	w := csv.NewWriter(h.w)
	if err := w.Write([]string{"Key", "Value"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, kv := range configRows(cfg) {
		if err := w.Write(kv[:]); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
