package extract

import (
	"regexp"
	"strings"

	"github.com/jackzampolin/formscan/internal/records"
)

// Section keywords. Multi-occurrence models are split on every occurrence of
// their keyword; customer uses the first occurrence only. Requisition and po
// are whole-page models gated on an order form header.
var (
	blockModels = []records.Model{
		records.ModelPiece,
		records.ModelTool,
		records.ModelProfile,
	}

	keywords = map[records.Model]*regexp.Regexp{
		records.ModelPiece:    regexp.MustCompile(`(?i)\bpiece\b`),
		records.ModelTool:     regexp.MustCompile(`(?i)\btool\b`),
		records.ModelProfile:  regexp.MustCompile(`(?i)\bprofile\b`),
		records.ModelCustomer: regexp.MustCompile(`(?i)\bcustomer\b`),
	}

	// documentModels are extracted over the whole text of a page that
	// carries an order form header.
	documentModels = []records.Model{
		records.ModelRequisition,
		records.ModelPO,
	}

	// formHeader marks an order form page: "DIE ORDER FORM",
	// "DIE / TOOL PURCHASE ORDER" or a plain "PURCHASE ORDER".
	formHeader = regexp.MustCompile(`(?i)\bdie\s+order\s+form\b|\bpurchase\s+order\b`)
)

// Route extracts every record found in one page of text, in model order
// piece, tool, profile, customer, requisition, po. It never fails: text with
// no section keyword or form header yields an empty slice. Vacant records
// (no captured value, no flag set) are never emitted.
func Route(text string) []records.Record {
	out := []records.Record{}
	if strings.TrimSpace(text) == "" {
		return out
	}

	for _, m := range blockModels {
		for _, block := range blocks(keywords[m], text) {
			if rec, _ := Extract(m, block); !rec.Vacant() {
				out = append(out, rec)
			}
		}
	}

	if block, ok := customerBlock(text); ok {
		if rec, _ := Extract(records.ModelCustomer, block); !rec.Vacant() {
			out = append(out, rec)
		}
	}

	if !formHeader.MatchString(text) {
		return out
	}
	for _, m := range documentModels {
		if rec, _ := Extract(m, text); !rec.Vacant() {
			out = append(out, rec)
		}
	}
	return out
}

// RoutePages routes every page and returns one record list per page,
// in page order.
func RoutePages(pages []records.Page) [][]records.Record {
	out := make([][]records.Record, len(pages))
	for i, p := range pages {
		out[i] = Route(p.Text)
	}
	return out
}

// blocks returns the non-empty segments that follow each keyword occurrence,
// each running to the next occurrence or the end of text.
func blocks(kw *regexp.Regexp, text string) []string {
	locs := kw.FindAllStringIndex(text, -1)
	var out []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		seg := text[loc[1]:end]
		if strings.TrimSpace(seg) == "" {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// customerBlock returns the text between the first CUSTOMER keyword and the
// next piece, tool or profile keyword, or the end of text. Later "customer"
// words belong to the block: labels such as "Customer code:" start with it.
func customerBlock(text string) (string, bool) {
	loc := keywords[records.ModelCustomer].FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := text[loc[1]:]
	end := len(rest)
	for _, m := range blockModels {
		if next := keywords[m].FindStringIndex(rest); next != nil && next[0] < end {
			end = next[0]
		}
	}
	block := rest[:end]
	if strings.TrimSpace(block) == "" {
		return "", false
	}
	return block, true
}
