// Package extract turns OCR page text into typed records.
//
// Field extraction is table driven: every model has one rule table (see
// rules.go) and Extract applies it to a block of text. Route splits a page
// into model blocks and dispatches them.
package extract

import (
	"strconv"
	"strings"

	"github.com/jackzampolin/formscan/internal/records"
)

// Extract applies the rule table of model m to text.
// Every field of the model is present in the result; fields that do not
// match are nil. Extraction never fails for a known model.
func Extract(m records.Model, text string) (records.Record, error) {
	rec, err := records.New(m)
	if err != nil {
		return records.Record{}, err
	}
	lower := strings.ToLower(text)
	for _, r := range tables[m] {
		_ = rec.Set(r.Field, r.apply(text, lower))
	}
	return rec, nil
}

// apply evaluates one rule. lower is text already lower-cased.
func (r Rule) apply(text, lower string) any {
	if r.Kind == records.KindBool {
		return strings.Contains(lower, r.Keyword)
	}
	m := r.re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return coerce(r.Kind, strings.TrimSpace(m[len(m)-1]))
}

// coerce converts a captured string to the field kind, nil on failure.
func coerce(k records.Kind, s string) any {
	if s == "" {
		return nil
	}
	switch k {
	case records.KindInt:
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil
		}
		return n
	case records.KindFloat:
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return s
	}
}
