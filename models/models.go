package models

import "time"

// AccountCredential is one portal account from the accounts file.
// The orchestrator treats it as read-only, validated input.
type AccountCredential struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
	Enabled  bool   `json:"enabled"`
}

// DocumentType selects which query executor variant a batch runs.
type DocumentType string

const (
	// DocPayment is the COD remittance detail listing (代收貨款匯款明細, "2-1").
	DocPayment DocumentType = "payment"

	// DocFreight is the monthly freight settlement listing (運費月結結帳資料, "2-7").
	DocFreight DocumentType = "freight"

	// DocUnpaid is the unbilled freight detail table (運費未請款明細).
	DocUnpaid DocumentType = "unpaid"
)

// Valid reports whether t names a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocPayment, DocFreight, DocUnpaid:
		return true
	}
	return false
}

// RawEntry is one listed item found during a search, before filtering.
// Cells is populated only by the table-reading variant, where an entry is a
// rendered table row rather than a link.
type RawEntry struct {
	Index int
	Title string
	Cells []string
}

// Field is one key/value pair of an extracted record. Records keep their
// fields as a slice so the portal's column order survives extraction.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExtractedRecord is one unit of extracted data, immutable once produced.
type ExtractedRecord struct {
	SourceID string  `json:"source_id"`
	Fields   []Field `json:"fields"`
}

// Get returns the value of the first field with the given key.
func (r ExtractedRecord) Get(key string) (string, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// OutcomeStatus is the terminal status of one account's run.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusFailed  OutcomeStatus = "failed"
)

// AccountOutcome is the per-account result recorded in the batch report.
type AccountOutcome struct {
	AccountID    string        `json:"account_id"`
	Status       OutcomeStatus `json:"status"`
	RecordCount  int           `json:"record_count"`
	ErrorSummary string        `json:"error_summary,omitempty"`
	ExportPath   string        `json:"export_path,omitempty"`
	DurationMs   int64         `json:"duration_ms"`
}

// BatchReport is the ordered outcome of a whole batch run. Outcomes appear
// in processing order, one per enabled account, and the report is never
// mutated after the batch completes.
type BatchReport struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Document   DocumentType     `json:"document"`
	Outcomes   []AccountOutcome `json:"outcomes"`
}

// Succeeded returns the number of successful outcomes.
func (r *BatchReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// Failed returns the number of failed outcomes.
func (r *BatchReport) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// TotalRecords returns the number of records extracted across all accounts.
func (r *BatchReport) TotalRecords() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.RecordCount
	}
	return n
}
