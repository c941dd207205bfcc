package output

import (
	"context"
	"fmt"
	"io"

	"github.com/opscart/selfheal-agent/pkg/config"
	"github.com/opscart/selfheal-agent/pkg/models"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Handler defines the interface for output formatting
type Handler interface {
	DisplayActions(ctx context.Context, actions []*models.ActionRecord) error
	DisplayConfig(ctx context.Context, cfg *config.Config) error
	Format() string
}

// New returns the handler for format, writing to w
func New(format string, w io.Writer) (Handler, error) {
	switch format {
	case FormatText, "":
		return &TextHandler{w: w}, nil
	case FormatJSON:
		return &JSONHandler{w: w}, nil
	case FormatCSV:
		return &CSVHandler{w: w}, nil
	default:
		return nil, fmt.Errorf("output must be text, json, or csv, got %q", format)
	}
}
