package output

import (
	"context"
	"encoding/json"
	"io"

	"github.com/opscart/selfheal-agent/pkg/config"
	"github.com/opscart/selfheal-agent/pkg/models"
)

type JSONHandler struct {
	w io.Writer
}

func (h *JSONHandler) Format() string { return FormatJSON }

func (h *JSONHandler) DisplayActions(ctx context.Context, actions []*models.ActionRecord) error {
	if actions == nil {
		actions = []*models.ActionRecord{}
	}
	return h.encode(actions)
}

func (h *JSONHandler) DisplayConfig(ctx context.Context, cfg *config.Config) error {
	out := make(map[string]string)
	for _, kv := range configRows(cfg) {
		out[kv[0]] = kv[1]
	}
	return h.encode(out)
}

func (h *JSONHandler) encode(v interface{}) error {
	enc := json.NewEncoder(h.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
