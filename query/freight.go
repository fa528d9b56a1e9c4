package query

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/use-agent/wedi/browser"
	"github.com/use-agent/wedi/config"
	"github.com/use-agent/wedi/export"
	"github.com/use-agent/wedi/models"
)

// freightExecutor extracts monthly freight settlement invoices. The
// listing entry opens a month-range query form; each invoice number on
// the result page leads to a detail page whose export control embeds the
// whole sheet in a data-fileblob attribute, so extraction decodes that
// attribute and writes the sheet itself instead of waiting on a file
// transfer.
type freightExecutor struct{}

func (e *freightExecutor) Document() models.DocumentType { return models.DocFreight }

func (e *freightExecutor) BuildPlan(cfg config.QueryConfig) (Plan, error) {
	prev := time.Now().AddDate(0, -1, 0).Format("200601")
	start, err := monthBound(cfg.StartDate, prev)
	if err != nil {
		return Plan{}, err
	}
	end, err := monthBound(cfg.EndDate, prev)
	if err != nil {
		return Plan{}, err
	}
	if start > end {
		return Plan{}, models.NewPortalError(models.ErrCodeInvalidInput,
			fmt.Sprintf("start month %s after end month %s", start, end), nil)
	}
	return Plan{
		Document:    models.DocFreight,
		Granularity: GranMonth,
		Start:       start,
		End:         end,
		OutputDir:   cfg.DownloadDir,
		Predicate: Predicate{
			AnyOf: [][]string{
				{"運費", "月結"},
				{"結帳資料", "運費"},
				{"(2-7)"},
			},
			NoneOf: menuNoise("有限公司", "股份有限公司"),
		},
	}, nil
}

// monthBound normalizes a configured date to YYYYMM, truncating a full
// YYYYMMDD day if that is what was given. Empty falls back to def.
func monthBound(d, def string) (string, error) {
	if d == "" {
		return def, nil
	}
	if len(d) == 8 {
		d = d[:6]
	}
	if _, err := time.Parse("200601", d); err != nil {
		return "", models.NewPortalError(models.ErrCodeInvalidInput,
			fmt.Sprintf("month %q is not YYYYMM", d), err)
	}
	return d, nil
}

// Search lists the query menu the datamain frame opens on. The month
// form lives behind the settlement entry, so Extract does the filling.
func (e *freightExecutor) Search(scope *browser.FrameScope, plan Plan) ([]models.RawEntry, error) {
	return listLinks(scope)
}

func (e *freightExecutor) Extract(scope *browser.FrameScope, entry models.RawEntry, plan Plan) (models.ExtractedRecord, error) {
	rec := models.ExtractedRecord{SourceID: sourceID(entry.Title)}

	link, err := findLink(scope, entry.Title)
	if err != nil {
		return rec, models.NewPortalError(models.ErrCodeExtraction,
			fmt.Sprintf("settlement entry %q not found", entry.Title), err)
	}
	if err := link.Click(); err != nil {
		return rec, models.NewPortalError(models.ErrCodeExtraction,
			fmt.Sprintf("settlement entry %q not clickable", entry.Title), err)
	}

	if err := fillDates(scope, plan.Start, plan.End); err != nil {
		return rec, models.NewPortalError(models.ErrCodeExtraction, "month fill failed", err)
	}
	submitQuery(scope)

	invoices, err := invoiceNumbers(scope)
	if err != nil {
		return rec, err
	}

	rec.Fields = append(rec.Fields,
		models.Field{Key: "title", Value: entry.Title},
		models.Field{Key: "month_start", Value: plan.Start},
		models.Field{Key: "month_end", Value: plan.End},
	)
	if len(invoices) == 0 {
		slog.Info("no settlement invoices in range", "entry", entry.Title,
			"start", plan.Start, "end", plan.End)
		return rec, nil
	}

	writer, err := export.NewWriter(plan.OutputDir)
	if err != nil {
		return rec, models.NewPortalError(models.ErrCodeExtraction, "download dir unavailable", err)
	}
	for _, no := range invoices {
		path, err := e.saveInvoice(scope, writer, no)
		if err != nil {
			return rec, models.NewPortalError(models.ErrCodeExtraction,
				fmt.Sprintf("invoice %s export failed", no), err)
		}
		rec.Fields = append(rec.Fields, models.Field{Key: no, Value: path})
	}
	return rec, nil
}

// fileBlob is the JSON the portal stores in the export control's
// data-fileblob attribute: the sheet rows plus file naming hints.
type fileBlob struct {
	FileName      string  `json:"fileName"`
	FileExtension string  `json:"fileExtension"`
	Data          [][]any `json:"data"`
}

// saveInvoice opens one invoice's detail page and writes the sheet found
// in its data-fileblob attribute. The invoice link is re-sought each
// time; when it is gone the current page is taken to be the detail
// already, which is how the portal behaves after an earlier click.
func (e *freightExecutor) saveInvoice(scope *browser.FrameScope, writer *export.Writer, invoiceNo string) (string, error) {
	if link, err := findLink(scope, invoiceNo); err == nil {
		if err := link.Click(); err != nil {
			return "", err
		}
	}

	btn, err := scope.Element(selFileBlob)
	if err != nil {
		return "", models.NewPortalError(models.ErrCodeExtraction,
			"no export data on detail page", err)
	}
	raw, err := btn.Attribute("data-fileblob")
	if err != nil || raw == "" {
		return "", models.NewPortalError(models.ErrCodeExtraction,
			"data-fileblob attribute empty", err)
	}

	var blob fileBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return "", models.NewPortalError(models.ErrCodeExtraction,
			"data-fileblob is not valid JSON", err)
	}
	if len(blob.Data) == 0 {
		return "", models.NewPortalError(models.ErrCodeExtraction,
			"data-fileblob carries no rows", nil)
	}

	rows := make([][]string, len(blob.Data))
	for i, r := range blob.Data {
		rows[i] = make([]string, len(r))
		for j, c := range r {
			rows[i][j] = strings.TrimSpace(strings.ReplaceAll(fmt.Sprint(c), "&nbsp;", ""))
		}
	}

	ext := blob.FileExtension
	if ext == "" {
		ext = ".xlsx"
	}
	return writer.WriteTable(fmt.Sprintf("%s_%s%s", scope.Account(), invoiceNo, ext), rows)
}

// invoiceNumbers collects the result page's invoice identifiers: long
// mixed alphanumeric link texts, deduped.
func invoiceNumbers(scope *browser.FrameScope) ([]string, error) {
	links, err := scope.Elements("a")
	if err != nil {
		return nil, models.NewPortalError(models.ErrCodeExtraction, "result links unavailable", err)
	}
	var out []string
	seen := make(map[string]bool)
	for _, l := range links {
		text, err := l.Text()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if seen[text] || !invoiceLike(text) {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}
	return out, nil
}

// invoiceLike reports whether text is an invoice number rather than a
// caption or a {code}-{company} customer label.
func invoiceLike(text string) bool {
	if utf8.RuneCountInString(text) <= 8 || strings.Contains(text, "-") {
		return false
	}
	hasDigit, hasAlpha := false, false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			return false
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasAlpha = true
		}
	}
	return hasDigit && hasAlpha
}
