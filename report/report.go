// Package report persists batch reports and renders their summaries.
package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/use-agent/wedi/models"
)

// Writer stores batch reports as JSON files.
type Writer struct {
	dir string
}

// NewWriter returns a writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Write saves the report as batch_{document}_{timestamp}.json and returns
// the file path.
func (w *Writer) Write(r *models.BatchReport) (string, error) {
	name := fmt.Sprintf("batch_%s_%s.json", r.Document, r.StartedAt.Format("20060102_150405"))
	path := filepath.Join(w.dir, name)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Log emits the report's summary and each outcome to the structured log.
func Log(r *models.BatchReport) {
	slog.Info("batch report",
		"document", r.Document,
		"accounts", len(r.Outcomes),
		"succeeded", r.Succeeded(),
		"failed", r.Failed(),
		"records", r.TotalRecords(),
		"duration", r.FinishedAt.Sub(r.StartedAt).String())
	for _, o := range r.Outcomes {
		if o.Status == models.StatusSuccess {
			slog.Info("account outcome", "account", o.AccountID, "status", o.Status,
				"records", o.RecordCount, "export", o.ExportPath, "duration_ms", o.DurationMs)
			continue
		}
		slog.Warn("account outcome", "account", o.AccountID, "status", o.Status,
			"error", o.ErrorSummary, "duration_ms", o.DurationMs)
	}
}
