// Package captcha resolves the portal's login verification code from the
// rendered page. The portal prints the code in the page itself; the resolver
// runs a fixed-priority chain of detection strategies and the first strategy
// producing a plausible 4-character code wins.
package captcha

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Challenge is the resolved code plus how it was found. Confident is false
// for the whole-page scan, which is the loosest heuristic in the chain.
type Challenge struct {
	Value     string
	Strategy  string
	Confident bool
}

// Strategy is one detection heuristic. Scan returns candidate strings in
// document order; validation happens in the resolver so ordering and the
// denylist apply uniformly.
type Strategy struct {
	Name      string
	Confident bool
	Scan      func(doc *goquery.Document, raw string) []string
}

var (
	codeShape  = regexp.MustCompile(`^[A-Z0-9]{4}$`)
	labeledRe  = regexp.MustCompile(`識別碼[：:]\s*([A-Z0-9]{4})`)
	pageWideRe = regexp.MustCompile(`\b[A-Z0-9]{4}\b`)

	styledSel = cascadia.MustCompile(`*[style*='color: red'], *[color='red'], font[color='red']`)
	cellSel   = cascadia.MustCompile(`table td`)
)

// denylist holds 4-character strings that match the code shape but are known
// page furniture, not codes.
var denylist = map[string]struct{}{
	"POST": {}, "GET": {}, "HTTP": {}, "HTML": {},
	"HEAD": {}, "BODY": {}, "FORM": {},
}

// Resolver runs the strategy chain over a rendered login page.
type Resolver struct {
	strategies []Strategy
	memory     *Memory
}

// NewResolver returns a resolver with the default chain, in priority order:
// red-styled text, labeled 識別碼 field, table cells, whole-page pattern.
func NewResolver() *Resolver {
	return &Resolver{
		strategies: []Strategy{
			{Name: "styled-text", Confident: true, Scan: scanStyledText},
			{Name: "labeled-field", Confident: true, Scan: scanLabeledField},
			{Name: "table-cell", Confident: true, Scan: scanTableCells},
			{Name: "page-pattern", Confident: false, Scan: scanPageWide},
		},
		memory: NewMemory(memoryTTL),
	}
}

// Resolve scans the rendered page HTML and returns the first valid
// candidate in strategy-priority order, or ok=false when no strategy
// produces one.
func (r *Resolver) Resolve(html string) (Challenge, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Challenge{}, false
	}
	for _, s := range r.strategies {
		for _, cand := range s.Scan(doc, html) {
			if validCode(cand) {
				return Challenge{Value: cand, Strategy: s.Name, Confident: s.Confident}, true
			}
		}
	}
	return Challenge{}, false
}

// ResolveFor is Resolve with per-account strategy memory: the strategy that
// last produced a working code for this account is consulted first, then
// the normal chain.
func (r *Resolver) ResolveFor(accountID, html string) (Challenge, bool) {
	remembered := r.memory.Get(accountID)
	if remembered == "" {
		return r.Resolve(html)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Challenge{}, false
	}
	for _, s := range r.strategies {
		if s.Name != remembered {
			continue
		}
		for _, cand := range s.Scan(doc, html) {
			if validCode(cand) {
				return Challenge{Value: cand, Strategy: s.Name, Confident: s.Confident}, true
			}
		}
		// Remembered strategy came up empty; forget it and run the chain.
		r.memory.Delete(accountID)
		break
	}
	return r.Resolve(html)
}

// RememberSuccess records which strategy produced the code that actually
// logged the account in.
func (r *Resolver) RememberSuccess(accountID, strategy string) {
	if accountID != "" && strategy != "" {
		r.memory.Set(accountID, strategy)
	}
}

// validCode applies the expected shape, the denylist, and the year filter.
func validCode(s string) bool {
	if !codeShape.MatchString(s) {
		return false
	}
	if _, banned := denylist[s]; banned {
		return false
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1900 && n <= 2100 {
		return false
	}
	return true
}

func scanStyledText(doc *goquery.Document, _ string) []string {
	var out []string
	doc.FindMatcher(styledSel).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, strings.TrimSpace(sel.Text()))
	})
	return out
}

func scanLabeledField(_ *goquery.Document, raw string) []string {
	if m := labeledRe.FindStringSubmatch(raw); m != nil {
		return []string{m[1]}
	}
	return nil
}

func scanTableCells(doc *goquery.Document, _ string) []string {
	var out []string
	doc.FindMatcher(cellSel).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); len(text) == 4 {
			out = append(out, text)
		}
	})
	return out
}

func scanPageWide(doc *goquery.Document, _ string) []string {
	return pageWideRe.FindAllString(doc.Text(), -1)
}
