package query

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/use-agent/wedi/browser"
	"github.com/use-agent/wedi/config"
	"github.com/use-agent/wedi/models"
)

// paymentExecutor extracts COD remittance details. The listing entry
// opens a per-day query form; each remittance number on the result page
// exports to a downloadable file.
type paymentExecutor struct{}

func (e *paymentExecutor) Document() models.DocumentType { return models.DocPayment }

func (e *paymentExecutor) BuildPlan(cfg config.QueryConfig) (Plan, error) {
	today := time.Now().Format("20060102")
	start, end := cfg.StartDate, cfg.EndDate
	if start == "" {
		start = today
	}
	if end == "" {
		end = today
	}
	for _, d := range []string{start, end} {
		if _, err := time.Parse("20060102", d); err != nil {
			return Plan{}, models.NewPortalError(models.ErrCodeInvalidInput,
				fmt.Sprintf("date %q is not YYYYMMDD", d), err)
		}
	}
	if start > end {
		return Plan{}, models.NewPortalError(models.ErrCodeInvalidInput,
			fmt.Sprintf("start date %s after end date %s", start, end), nil)
	}
	return Plan{
		Document:    models.DocPayment,
		Granularity: GranDay,
		Start:       start,
		End:         end,
		Predicate: Predicate{
			AnyOf: [][]string{
				{"代收貨款", "匯款明細"},
				{"(2-1)"},
			},
			NoneOf: menuNoise("已收未結帳", "未結帳明細"),
		},
	}, nil
}

func (e *paymentExecutor) Search(scope *browser.FrameScope, plan Plan) ([]models.RawEntry, error) {
	return listLinks(scope)
}

func (e *paymentExecutor) Extract(scope *browser.FrameScope, entry models.RawEntry, plan Plan) (models.ExtractedRecord, error) {
	rec := models.ExtractedRecord{SourceID: sourceID(entry.Title)}

	link, err := findLink(scope, entry.Title)
	if err != nil {
		return rec, models.NewPortalError(models.ErrCodeExtraction,
			fmt.Sprintf("listing entry %q not found", entry.Title), err)
	}
	if err := link.Click(); err != nil {
		return rec, models.NewPortalError(models.ErrCodeExtraction,
			fmt.Sprintf("listing entry %q not clickable", entry.Title), err)
	}

	if err := fillDates(scope, plan.Start, plan.End); err != nil {
		return rec, models.NewPortalError(models.ErrCodeExtraction, "date fill failed", err)
	}
	submitQuery(scope)

	remits, err := remittanceNumbers(scope)
	if err != nil {
		return rec, err
	}
	if len(remits) == 0 {
		slog.Info("no remittance entries in range", "entry", entry.Title,
			"start", plan.Start, "end", plan.End)
		rec.Fields = append(rec.Fields, models.Field{Key: "title", Value: entry.Title})
		return rec, nil
	}

	rec.Fields = append(rec.Fields, models.Field{Key: "title", Value: entry.Title})
	for _, no := range remits {
		path, err := e.download(scope, no)
		if err != nil {
			return rec, models.NewPortalError(models.ErrCodeExtraction,
				fmt.Sprintf("remittance %s export failed", no), err)
		}
		rec.Fields = append(rec.Fields, models.Field{Key: no, Value: path})
	}
	return rec, nil
}

// download opens one remittance's detail and exports it, returning the
// saved file path.
func (e *paymentExecutor) download(scope *browser.FrameScope, remitNo string) (string, error) {
	link, err := findLink(scope, remitNo)
	if err != nil {
		return "", err
	}
	if err := link.Click(); err != nil {
		return "", err
	}
	path, err := scope.DownloadTriggered(func() error {
		btn, err := scope.Element(selExportBtn)
		if err != nil {
			return err
		}
		return btn.Click()
	}, 30*time.Second)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(filepath.Dir(path),
		fmt.Sprintf("%s_%s.xlsx", scope.Account(), remitNo))
	if err := os.Rename(path, dst); err != nil {
		return "", models.NewPortalError(models.ErrCodeExtraction,
			fmt.Sprintf("remittance %s file rename failed", remitNo), err)
	}
	return dst, nil
}

// remittanceNumbers collects the result-page links that look like
// remittance numbers: long digit-led identifiers rather than menu text.
func remittanceNumbers(scope *browser.FrameScope) ([]string, error) {
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
		if len(text) <= 10 || seen[text] {
			continue
		}
		if r := []rune(text)[0]; !unicode.IsDigit(r) {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}
	return out, nil
}

// menuNoise is the shared exclusion list for portal chrome that shows up
// in every listing, extended with per-variant exclusions.
func menuNoise(extra ...string) []string {
	base := []string{
		"語音取件", "三節加價", "系統公告", "操作說明", "維護通知",
		"Home", "首頁", "登出", "系統設定",
	}
	return append(base, extra...)
}
