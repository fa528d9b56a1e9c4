package export

import (
	"os"
	"strings"
	"testing"

	"github.com/use-agent/wedi/models"
)

func TestWrite_RendersRecords(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	records := []models.ExtractedRecord{
		{
			SourceID: "代收貨款匯款明細表",
			Fields: []models.Field{
				{Key: "title", Value: "代收貨款匯款明細表(2-1)"},
				{Key: "40011223344556789", Value: "/tmp/wedi/file1.xls"},
			},
		},
	}

	path, err := w.Write("acct1", records)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(path, "acct1_") || !strings.HasSuffix(path, ".xls") {
		t.Errorf("unexpected export name: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{"代收貨款匯款明細表", "40011223344556789", "/tmp/wedi/file1.xls", "<table"} {
		if !strings.Contains(content, want) {
			t.Errorf("export file missing %q", want)
		}
	}
}

func TestWriteTable_RendersRows(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	path, err := w.WriteTable("acct1_A12345678901.xlsx", [][]string{
		{"發票號碼", "金額"},
		{"A12345678901", "1200"},
	})
	if err != nil {
		t.Fatalf("write table: %v", err)
	}
	if !strings.HasSuffix(path, "acct1_A12345678901.xlsx") {
		t.Errorf("unexpected sheet name: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{"發票號碼", "A12345678901", "1200", "<table"} {
		if !strings.Contains(content, want) {
			t.Errorf("sheet missing %q", want)
		}
	}

	if path, err := w.WriteTable("empty.xlsx", nil); err != nil || path != "" {
		t.Errorf("empty rows wrote %q, %v", path, err)
	}
}

func TestWrite_EmptyRecordsWriteNothing(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatal(err)
	}

	path, err := w.Write("acct1", nil)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if path != "" {
		t.Errorf("empty record set produced a path: %s", path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("export dir should stay empty, has %d entries", len(entries))
	}
}
