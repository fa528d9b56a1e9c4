// Package export writes extracted records to disk in a spreadsheet
// format the portal's back offices already work with.
package export

import (
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/use-agent/wedi/models"
)

// The portal's own exports are HTML tables with an .xls extension and
// Excel opens them as-is, so the writer renders the same shape.
var sheetTmpl = template.Must(template.New("sheet").Parse(`<html>
<head><meta charset="utf-8"></head>
<body>
<table border="1">
{{- range . }}
<tr><th colspan="2">{{ .SourceID }}</th></tr>
{{- range .Fields }}
<tr><td>{{ .Key }}</td><td>{{ .Value }}</td></tr>
{{- end }}
{{- end }}
</table>
</body>
</html>
`))

var tableTmpl = template.Must(template.New("table").Parse(`<html>
<head><meta charset="utf-8"></head>
<body>
<table border="1">
{{- range . }}
<tr>{{ range . }}<td>{{ . }}</td>{{ end }}</tr>
{{- end }}
</table>
</body>
</html>
`))

// Writer persists one account's records per run.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter returns a writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

// Write renders the records to {account}_{timestamp}.xls under the
// writer's directory and returns the file path. Empty record sets write
// nothing and return "".
func (w *Writer) Write(accountID string, records []models.ExtractedRecord) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	name := fmt.Sprintf("%s_%s.xls", accountID, w.now().Format("20060102_150405"))
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if err := sheetTmpl.Execute(f, records); err != nil {
		return "", fmt.Errorf("render export file: %w", err)
	}
	slog.Info("records exported", "account", accountID, "path", path, "records", len(records))
	return path, nil
}

// WriteTable renders raw sheet rows to name under the writer's directory
// and returns the file path. The first row is taken as the header. Used
// for sheets the portal embeds in page attributes instead of serving as
// a file transfer.
func (w *Writer) WriteTable(name string, rows [][]string) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create sheet file: %w", err)
	}
	defer f.Close()

	if err := tableTmpl.Execute(f, rows); err != nil {
		return "", fmt.Errorf("render sheet file: %w", err)
	}
	slog.Info("sheet written", "path", path, "rows", len(rows))
	return path, nil
}
