package query

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/use-agent/wedi/browser"
	"github.com/use-agent/wedi/config"
	"github.com/use-agent/wedi/models"
)

// unpaidExecutor extracts the unbilled freight detail. The page takes a
// single end date and renders the result as a plain table, so extraction
// is a parse of the largest table rather than a per-entry drill-down.
type unpaidExecutor struct {
	header []string
}

func (e *unpaidExecutor) Document() models.DocumentType { return models.DocUnpaid }

func (e *unpaidExecutor) BuildPlan(cfg config.QueryConfig) (Plan, error) {
	end := cfg.EndDate
	if end == "" {
		end = time.Now().Format("20060102")
	}
	if _, err := time.Parse("20060102", end); err != nil {
		return Plan{}, models.NewPortalError(models.ErrCodeInvalidInput,
			fmt.Sprintf("date %q is not YYYYMMDD", end), err)
	}
	// The form has no start bound; everything unbilled up to the end date
	// is in scope.
	return Plan{
		Document:    models.DocUnpaid,
		Granularity: GranNone,
		End:         end,
	}, nil
}

// unpaidMenu matches the query-menu entry that opens the unbilled
// freight detail page.
var unpaidMenu = Predicate{AnyOf: [][]string{
	{"運費", "未請款"},
	{"未請款", "明細"},
}}

func (e *unpaidExecutor) Search(scope *browser.FrameScope, plan Plan) ([]models.RawEntry, error) {
	if err := e.openDetail(scope); err != nil {
		return nil, models.NewPortalError(models.ErrCodeExtraction, "detail entry not clickable", err)
	}
	if err := e.fillEndDate(scope, plan.End); err != nil {
		return nil, models.NewPortalError(models.ErrCodeExtraction, "end date fill failed", err)
	}
	submitQuery(scope)

	page, err := scope.HTML()
	if err != nil {
		return nil, models.NewPortalError(models.ErrCodeExtraction, "result page unavailable", err)
	}
	// The portal emits pre-HTML5 markup with unclosed cells; html.Parse
	// normalizes it the way browsers do before goquery walks it.
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, models.NewPortalError(models.ErrCodeExtraction, "result page unparsable", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	table := largestTable(doc)
	if table == nil {
		return nil, nil
	}

	var entries []models.RawEntry
	e.header = nil
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := rowCells(row)
		if len(cells) == 0 {
			return
		}
		if e.header == nil {
			e.header = cells
			return
		}
		entries = append(entries, models.RawEntry{
			Index: len(entries),
			Title: strings.Join(cells, " "),
			Cells: cells,
		})
	})
	return entries, nil
}

func (e *unpaidExecutor) Extract(scope *browser.FrameScope, entry models.RawEntry, plan Plan) (models.ExtractedRecord, error) {
	if len(entry.Cells) == 0 {
		return models.ExtractedRecord{}, models.NewPortalError(models.ErrCodeExtraction,
			fmt.Sprintf("row %d carries no cells", entry.Index), nil)
	}
	rec := models.ExtractedRecord{SourceID: fmt.Sprintf("row_%d_%s", entry.Index, sourceID(entry.Cells[0]))}
	for i, cell := range entry.Cells {
		key := fmt.Sprintf("col_%d", i)
		if i < len(e.header) && e.header[i] != "" {
			key = e.header[i]
		}
		rec.Fields = append(rec.Fields, models.Field{Key: key, Value: cell})
	}
	return rec, nil
}

// openDetail clicks through the query menu the datamain frame opens on.
// A menu without the entry is tolerated: some portal builds land on the
// detail form directly.
func (e *unpaidExecutor) openDetail(scope *browser.FrameScope) error {
	entries, err := listLinks(scope)
	if err != nil {
		return err
	}
	matched := Filter(entries, unpaidMenu)
	if len(matched) == 0 {
		slog.Debug("unbilled detail entry not on menu, assuming detail form is current")
		return nil
	}
	link, err := findLink(scope, matched[0].Title)
	if err != nil {
		return err
	}
	return link.Click()
}

// fillEndDate types the end bound into the last text input on the form.
func (e *unpaidExecutor) fillEndDate(scope *browser.FrameScope, end string) error {
	inputs, err := scope.Elements(selTextInput)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return nil
	}
	return inputs[len(inputs)-1].Input(end)
}

// largestTable returns the table with the most rows, which on this page
// is the data table rather than the layout scaffolding around it.
func largestTable(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestRows := 0
	doc.Find("table").Each(func(i int, t *goquery.Selection) {
		if rows := t.Find("tr").Length(); rows > bestRows {
			best, bestRows = t, rows
		}
	})
	return best
}

// rowCells returns the trimmed cell texts of a table row, th and td
// alike. All-empty rows collapse to nil.
func rowCells(row *goquery.Selection) []string {
	var cells []string
	nonEmpty := false
	row.Find("th, td").Each(func(i int, c *goquery.Selection) {
		text := strings.TrimSpace(c.Text())
		if text != "" {
			nonEmpty = true
		}
		cells = append(cells, text)
	})
	if !nonEmpty {
		return nil
	}
	return cells
}
