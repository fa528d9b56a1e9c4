// Package query implements the per-document-type extraction procedures that
// run inside an established frame scope.
package query

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/wedi/browser"
	"github.com/use-agent/wedi/config"
	"github.com/use-agent/wedi/models"
)

// Selectors shared by the query pages.
const (
	selTextInput = `input[type='text']`
	selQueryBtn  = `input[value*='查詢']`
	selExportBtn = `input[value*='匯出']`
	selFileBlob  = `button[data-fileblob]`

	// FrameName is the nested document all query pages render into.
	FrameName = "datamain"

	navQueryMenu = "查詢作業"
	navQueryPage = "查件"
)

// Granularity is the date shape a plan carries.
type Granularity int

const (
	// GranNone scrapes the current listing without date parameters.
	GranNone Granularity = iota
	// GranDay bounds the query by a YYYYMMDD day range.
	GranDay
	// GranMonth bounds the query by a YYYYMM month range.
	GranMonth
)

// Plan carries everything a search needs: the date bounds in the
// document type's granularity and the relevance predicate. OutputDir is
// where extraction-produced files are written, for variants that write
// any.
type Plan struct {
	Document    models.DocumentType
	Granularity Granularity
	Start       string
	End         string
	Predicate   Predicate
	OutputDir   string
}

// Predicate is a pure, deterministic substring filter over listing text.
// An entry matches when no NoneOf substring is present and at least one
// AnyOf group has all its substrings present. An empty AnyOf includes
// everything not excluded.
type Predicate struct {
	AnyOf  [][]string
	NoneOf []string
}

// Match reports whether text is relevant under the predicate.
func (p Predicate) Match(text string) bool {
	for _, kw := range p.NoneOf {
		if strings.Contains(text, kw) {
			return false
		}
	}
	if len(p.AnyOf) == 0 {
		return true
	}
	for _, group := range p.AnyOf {
		all := true
		for _, kw := range group {
			if !strings.Contains(text, kw) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// Filter returns the entries whose title matches the predicate, in input
// order. It never mutates its input.
func Filter(entries []models.RawEntry, p Predicate) []models.RawEntry {
	out := make([]models.RawEntry, 0, len(entries))
	for _, e := range entries {
		text := e.Title
		if text == "" && len(e.Cells) > 0 {
			text = strings.Join(e.Cells, " ")
		}
		if p.Match(text) {
			out = append(out, e)
		}
	}
	return out
}

// Executor is one document type's extraction procedure. Implementations
// run entirely inside the frame scope handed to them and never leave it.
type Executor interface {
	// Document names the variant.
	Document() models.DocumentType

	// BuildPlan derives the query plan from per-run configuration.
	BuildPlan(cfg config.QueryConfig) (Plan, error)

	// Search surfaces the candidate entries for the plan, unfiltered.
	// Depending on the variant these are menu entries Extract drills
	// into, or already-rendered result rows.
	Search(scope *browser.FrameScope, plan Plan) ([]models.RawEntry, error)

	// Extract pulls one filtered entry's data out of the portal.
	Extract(scope *browser.FrameScope, entry models.RawEntry, plan Plan) (models.ExtractedRecord, error)
}

// New returns the executor for a document type.
func New(doc models.DocumentType) (Executor, error) {
	switch doc {
	case models.DocPayment:
		return &paymentExecutor{}, nil
	case models.DocFreight:
		return &freightExecutor{}, nil
	case models.DocUnpaid:
		return &unpaidExecutor{}, nil
	}
	return nil, models.NewPortalError(models.ErrCodeInvalidInput,
		fmt.Sprintf("unknown document type %q", doc), nil)
}

// Navigate runs the fixed menu sequence from the authenticated main menu
// into the datamain frame and returns the scope all extraction goes
// through. The sequence is: 查詢作業 → 查件 → enter iframe.
func Navigate(sess *browser.Session, timeout time.Duration) (*browser.FrameScope, error) {
	scope := sess.Scope()

	for _, label := range []string{navQueryMenu, navQueryPage} {
		link, err := findLink(scope, label)
		if err != nil {
			return nil, models.NewPortalError(models.ErrCodeNavigation,
				fmt.Sprintf("menu link %q not found", label), err)
		}
		if err := link.Click(); err != nil {
			return nil, models.NewPortalError(models.ErrCodeNavigation,
				fmt.Sprintf("menu link %q not clickable", label), err)
		}
	}

	frameScope, err := scope.Enter(FrameName, timeout)
	if err != nil {
		return nil, err
	}
	slog.Debug("entered query frame", "frame", FrameName)
	return frameScope, nil
}

// findLink returns the first anchor whose text contains label.
func findLink(scope *browser.FrameScope, label string) (browser.Element, error) {
	links, err := scope.Elements("a")
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		text, err := l.Text()
		if err != nil {
			continue
		}
		if strings.Contains(strings.TrimSpace(text), label) {
			return l, nil
		}
	}
	return nil, browser.ErrNoElement
}

// listLinks snapshots the anchors of the scoped document as raw entries.
func listLinks(scope *browser.FrameScope) ([]models.RawEntry, error) {
	links, err := scope.Elements("a")
	if err != nil {
		return nil, models.NewPortalError(models.ErrCodeExtraction, "listing links unavailable", err)
	}
	entries := make([]models.RawEntry, 0, len(links))
	for i, l := range links {
		text, err := l.Text()
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		entries = append(entries, models.RawEntry{Index: i, Title: text})
	}
	return entries, nil
}

// fillDates types the plan's bounds into the page's text inputs: first
// input start, second input end. Pages with a single input take only the
// end bound. Missing inputs are tolerated, matching the portal's uneven
// form layouts.
func fillDates(scope *browser.FrameScope, start, end string) error {
	inputs, err := scope.Elements(selTextInput)
	if err != nil {
		return err
	}
	switch {
	case len(inputs) >= 2:
		if start != "" {
			if err := inputs[0].Input(start); err != nil {
				return err
			}
		}
		if end != "" {
			if err := inputs[1].Input(end); err != nil {
				return err
			}
		}
	case len(inputs) == 1:
		if end != "" {
			if err := inputs[len(inputs)-1].Input(end); err != nil {
				return err
			}
		}
	default:
		slog.Debug("no date inputs on query page, skipping date fill")
	}
	return nil
}

// submitQuery clicks the query button when present. Some listings render
// without one; that is not an error.
func submitQuery(scope *browser.FrameScope) {
	btn, err := scope.Element(selQueryBtn)
	if err != nil {
		slog.Debug("query button not found, continuing with current listing")
		return
	}
	if err := btn.Click(); err != nil {
		slog.Warn("query button click failed, continuing with current listing", "error", err)
	}
}

// sourceID derives a stable identifier from listing text, the way the
// portal's export files are named.
func sourceID(title string) string {
	r := strings.NewReplacer(" ", "_", "[", "", "]", "", "-", "_")
	return r.Replace(title)
}
