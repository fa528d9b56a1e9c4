package query

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/wedi/browser"
	"github.com/use-agent/wedi/browser/browsertest"
	"github.com/use-agent/wedi/config"
)

const freightBlob = `{"fileName":"運費明細","fileExtension":".xlsx",` +
	`"data":[["發票號碼","金額"],["A12345678901","1200"]]}`

// freightPortal scripts the drill-in flow: the datamain frame opens on
// the query menu, the settlement entry opens the month form, and each
// invoice result link opens a detail page carrying the sheet in a
// data-fileblob attribute.
func freightPortal(t *testing.T) (*browser.FrameScope, *browsertest.Page, *browsertest.Page) {
	t.Helper()

	detail := &browsertest.Page{
		URL:     "frame://freight-invoice",
		HTMLSrc: "<html><body>invoice</body></html>",
		Buttons: []*browsertest.Button{
			{Selector: `button[data-fileblob]`, Attrs: map[string]string{"data-fileblob": freightBlob}},
		},
	}
	form := &browsertest.Page{
		URL:     "frame://freight-form",
		HTMLSrc: "<html><body>form</body></html>",
		Inputs: []*browsertest.Input{
			{Name: "SMONTH", Type: "text"},
			{Name: "EMONTH", Type: "text"},
		},
		Links: []*browsertest.Link{
			{Text: "A12345678901", OnClick: func(d *browsertest.Driver) {
				d.SetFrame(detail)
			}},
			{Text: "5081794203-宥芯有限公司"}, // customer label, not an invoice
			{Text: "查詢說明"},
		},
		Buttons: []*browsertest.Button{
			{Selector: `input[value*='查詢']`},
		},
	}
	menu := &browsertest.Page{
		URL:     "frame://datamain",
		HTMLSrc: "<html><body>menu</body></html>",
		Links: []*browsertest.Link{
			{Text: "運費月結結帳資料(2-7)", OnClick: func(d *browsertest.Driver) {
				d.SetFrame(form)
			}},
			{Text: "測試股份有限公司"},
			{Text: "操作說明"},
		},
	}
	top := &browsertest.Page{
		URL:     "http://portal/wEDI2012/wedimainmenu.asp",
		HTMLSrc: "<html><body></body></html>",
		Frames:  map[string]*browsertest.Page{FrameName: menu},
	}

	sess := browser.NewSession(browsertest.New(top))
	sess.SetAccount("0800111")
	if err := sess.Open(top.URL); err != nil {
		t.Fatal(err)
	}
	scope, err := sess.Scope().Enter(FrameName, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return scope, menu, form
}

func TestFreight_SearchListsMenuWithoutDrilling(t *testing.T) {
	scope, _, form := freightPortal(t)

	e := &freightExecutor{}
	plan, err := e.BuildPlan(config.QueryConfig{StartDate: "202501", EndDate: "202502"})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := e.Search(scope, plan)
	if err != nil {
		t.Fatal(err)
	}
	if form.Inputs[0].Val != "" || form.Inputs[1].Val != "" {
		t.Errorf("month inputs touched during search: %q..%q",
			form.Inputs[0].Val, form.Inputs[1].Val)
	}

	filtered := Filter(entries, plan.Predicate)
	if len(filtered) != 1 || filtered[0].Title != "運費月結結帳資料(2-7)" {
		t.Fatalf("company names and chrome must be filtered out, got %+v", filtered)
	}
}

func TestFreight_ExtractOpensEntryAndSavesInvoices(t *testing.T) {
	scope, _, form := freightPortal(t)
	dir := t.TempDir()

	e := &freightExecutor{}
	plan, err := e.BuildPlan(config.QueryConfig{
		StartDate: "202501", EndDate: "202502", DownloadDir: dir,
	})
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
		t.Fatalf("extract: %v", err)
	}

	if form.Inputs[0].Val != "202501" || form.Inputs[1].Val != "202502" {
		t.Errorf("months filled as %q..%q, want 202501..202502",
			form.Inputs[0].Val, form.Inputs[1].Val)
	}
	want := filepath.Join(dir, "0800111_A12345678901.xlsx")
	if got, _ := rec.Get("A12345678901"); got != want {
		t.Errorf("invoice sheet = %q, want %q", got, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("invoice sheet missing: %v", err)
	}
	for _, cell := range []string{"發票號碼", "A12345678901", "1200"} {
		if !strings.Contains(string(data), cell) {
			t.Errorf("sheet lacks cell %q", cell)
		}
	}
	if got, _ := rec.Get("month_start"); got != "202501" {
		t.Errorf("month_start = %q, want 202501", got)
	}
	// The customer label must not have produced an invoice field.
	if _, ok := rec.Get("5081794203-宥芯有限公司"); ok {
		t.Error("customer label extracted as an invoice")
	}
}

func TestFreight_ExtractFailsWithoutFileblob(t *testing.T) {
	scope, _, form := freightPortal(t)
	form.Links[0].OnClick = nil // invoice click goes nowhere, no detail page

	e := &freightExecutor{}
	plan, err := e.BuildPlan(config.QueryConfig{
		StartDate: "202501", EndDate: "202501", DownloadDir: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	entries, err := e.Search(scope, plan)
	if err != nil {
		t.Fatal(err)
	}
	filtered := Filter(entries, plan.Predicate)

	if _, err := e.Extract(scope, filtered[0], plan); err == nil {
		t.Error("a detail page without export data must fail the extraction")
	}
}

func TestInvoiceLike_Criteria(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"A12345678901", true},
		{"40011223344X", true},
		{"查詢說明", false},              // caption
		{"5081794203-宥芯有限公司", false}, // customer label
		{"A1234567", false},          // too short
		{"1234567890123", false},     // digits only
		{"ABCDEFGHIJKL", false},      // letters only
		{"A12345678901運費", false},    // mixed with a caption
	}
	for _, tt := range tests {
		if got := invoiceLike(tt.text); got != tt.want {
			t.Errorf("invoiceLike(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
