package query

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/wedi/browser"
	"github.com/use-agent/wedi/browser/browsertest"
	"github.com/use-agent/wedi/config"
)

// paymentScope scripts the remittance flow: the listing entry opens a
// dated query form whose results carry remittance-number links and an
// export button.
func paymentScope(t *testing.T) (*browser.FrameScope, *browsertest.Driver, *browsertest.Page) {
	t.Helper()

	detail := &browsertest.Page{
		URL:     "frame://payment-detail",
		HTMLSrc: "<html><body>detail</body></html>",
		Inputs: []*browsertest.Input{
			{Name: "SDATE", Type: "text"},
			{Name: "EDATE", Type: "text"},
		},
		Links: []*browsertest.Link{
			{Text: "40011223344556789"},
			{Text: "查詢說明"}, // not a remittance number
		},
		Buttons: []*browsertest.Button{
			{Selector: `input[value*='查詢']`},
			{Selector: `input[value*='匯出']`},
		},
	}
	listing := &browsertest.Page{
		URL:     "frame://datamain",
		HTMLSrc: "<html><body>listing</body></html>",
		Links: []*browsertest.Link{
			{Text: "代收貨款匯款明細表(2-1)", OnClick: func(d *browsertest.Driver) {
				d.SetFrame(detail)
			}},
			{Text: "系統公告"},
		},
	}
	top := &browsertest.Page{
		URL:     "http://portal/wEDI2012/wedimainmenu.asp",
		HTMLSrc: "<html><body></body></html>",
		Frames:  map[string]*browsertest.Page{FrameName: listing},
	}

	drv := browsertest.New(top)
	sess := browser.NewSession(drv)
	sess.SetAccount("0800111")
	if err := sess.Open(top.URL); err != nil {
		t.Fatal(err)
	}
	scope, err := sess.Scope().Enter(FrameName, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return scope, drv, detail
}

func TestPayment_ExtractDownloadsRemittances(t *testing.T) {
	scope, drv, detail := paymentScope(t)
	dir := t.TempDir()
	saved := filepath.Join(dir, "abc123.xls")
	if err := os.WriteFile(saved, []byte("export"), 0o644); err != nil {
		t.Fatal(err)
	}
	drv.Downloads = []string{saved}

	e := &paymentExecutor{}
	plan, err := e.BuildPlan(config.QueryConfig{StartDate: "20250101", EndDate: "20250102"})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := e.Search(scope, plan)
	if err != nil {
		t.Fatal(err)
	}
	filtered := Filter(entries, plan.Predicate)
	if len(filtered) != 1 {
		t.Fatalf("filtered %d entries, want 1", len(filtered))
	}

	rec, err := e.Extract(scope, filtered[0], plan)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if detail.Inputs[0].Val != "20250101" || detail.Inputs[1].Val != "20250102" {
		t.Errorf("dates filled as %q..%q, want 20250101..20250102",
			detail.Inputs[0].Val, detail.Inputs[1].Val)
	}
	want := filepath.Join(dir, "0800111_40011223344556789.xlsx")
	if got, _ := rec.Get("40011223344556789"); got != want {
		t.Errorf("remittance file = %q, want %q", got, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("renamed export file missing: %v", err)
	}
	if got, _ := rec.Get("title"); got != "代收貨款匯款明細表(2-1)" {
		t.Errorf("title field = %q", got)
	}
}

func TestPayment_ExtractWithoutRemittancesSucceedsEmpty(t *testing.T) {
	scope, _, detail := paymentScope(t)
	detail.Links = nil

	e := &paymentExecutor{}
	plan, err := e.BuildPlan(config.QueryConfig{StartDate: "20250101", EndDate: "20250102"})
	if err != nil {
		t.Fatal(err)
	}
	entries, err := e.Search(scope, plan)
	if err != nil {
		t.Fatal(err)
	}
	filtered := Filter(entries, plan.Predicate)

	rec, err := e.Extract(scope, filtered[0], plan)
	if err != nil {
		t.Fatalf("a day with no remittances is not an error: %v", err)
	}
	if len(rec.Fields) != 1 {
		t.Errorf("expected only the title field, got %+v", rec.Fields)
	}
}

func TestPayment_ExtractFailsWhenDownloadDoesNot(t *testing.T) {
	scope, drv, _ := paymentScope(t)
	drv.Downloads = nil // export click never produces a file

	e := &paymentExecutor{}
	plan, err := e.BuildPlan(config.QueryConfig{StartDate: "20250101", EndDate: "20250102"})
	if err != nil {
		t.Fatal(err)
	}
	entries, err := e.Search(scope, plan)
	if err != nil {
		t.Fatal(err)
	}
	filtered := Filter(entries, plan.Predicate)

	if _, err := e.Extract(scope, filtered[0], plan); err == nil {
		t.Error("a failed export must fail the extraction")
	}
}
