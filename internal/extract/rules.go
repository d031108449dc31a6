package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackzampolin/formscan/internal/records"
)

// Value patterns shared by the rule tables.
const (
	valueWord    = `(\w+)`
	valueLine    = `(.+)`
	valueDigits  = `(\d+)`
	valueDecimal = `(\d+(?:[.,]\d+)?)`
	valueDMY     = `(\d{1,2}/\d{1,2}/\d{4})`
	valueDate    = `(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4})`
	valueCode    = `([\w\-/]+)`
	valuePhone   = `(\(?\d{3}\)?[ .-]?\d{3}[ .-]?\d{4})`
	valuePress   = `([\w\- ,]+)`
	valueISO4217 = `([A-Za-z]{3})`
)

// Rule maps one output field to a label pattern and a coercion.
//
// For KindBool rules the field is true iff Keyword occurs in the text
// (case-insensitive); Labels and Value are ignored.
type Rule struct {
	Field   string
	Kind    records.Kind
	Labels  []string
	Value   string
	Keyword string

	re *regexp.Regexp
}

// tables holds one declarative rule table per model.
// Labels are tried leftmost-first, so longer alternatives come first.
var tables = map[records.Model][]Rule{
	records.ModelPiece: {
		{Field: "copyNumber", Kind: records.KindInt, Labels: []string{"copy number"}, Value: valueDigits},
		{Field: "location", Kind: records.KindString, Labels: []string{"location"}, Value: valueWord},
		{Field: "status", Kind: records.KindString, Labels: []string{"status"}, Value: valueWord},
		{Field: "type", Kind: records.KindString, Labels: []string{"type"}, Value: valueWord},
		{Field: "diameter", Kind: records.KindFloat, Labels: []string{"diameter"}, Value: valueDecimal},
		{Field: "height", Kind: records.KindFloat, Labels: []string{"height"}, Value: valueDecimal},
		{Field: "nitrogen", Kind: records.KindBool, Keyword: "nitride"},
		{Field: "surfaceNitrogen", Kind: records.KindBool, Keyword: "surface nitrogen"},
		{Field: "toBeManufactured", Kind: records.KindBool, Keyword: "to be manufactured"},
		{Field: "customerCode", Kind: records.KindString, Labels: []string{"customer code"}, Value: valueWord},
	},
	records.ModelTool: {
		{Field: "assemblyType", Kind: records.KindString, Labels: []string{"assembly type", "die style"}, Value: valueWord},
		{Field: "pressList", Kind: records.KindString, Labels: []string{"press"}, Value: valuePress},
		{Field: "canBeInterlock", Kind: records.KindBool, Keyword: "interlock"},
		{Field: "description", Kind: records.KindString, Labels: []string{"description"}, Value: valueLine},
		{Field: "displayCode", Kind: records.KindString, Labels: []string{"display code"}, Value: valueWord},
		{Field: "customerCode", Kind: records.KindString, Labels: []string{"customer code"}, Value: valueWord},
		{Field: "totalStack", Kind: records.KindFloat, Labels: []string{"total stack"}, Value: valueDecimal},
		{Field: "copyNumber", Kind: records.KindInt, Labels: []string{"copy number"}, Value: valueDigits},
	},
	records.ModelProfile: {
		{Field: "customerCodePrefix", Kind: records.KindString, Labels: []string{"customer code prefix"}, Value: valueWord},
		{Field: "customerCode", Kind: records.KindString, Labels: []string{"customer code"}, Value: valueWord},
		{Field: "description", Kind: records.KindString, Labels: []string{"description"}, Value: valueLine},
		{Field: "creationDate", Kind: records.KindString, Labels: []string{"creation date", "date"}, Value: valueDMY},
		{Field: "alloy", Kind: records.KindString, Labels: []string{"alloy"}, Value: valueWord},
		{Field: "mandrelQuantity", Kind: records.KindInt, Labels: []string{"mandrel quantity"}, Value: valueDigits},
		{Field: "cavityQuantity", Kind: records.KindInt, Labels: []string{"cavity quantity"}, Value: valueDigits},
		{Field: "interlock", Kind: records.KindBool, Keyword: "interlock"},
		{Field: "zsc", Kind: records.KindFloat, Labels: []string{"zsc"}, Value: valueDecimal},
		{Field: "doubleLayoutAngle", Kind: records.KindFloat, Labels: []string{"double layout angle"}, Value: valueDecimal},
		{Field: "hasElectrode", Kind: records.KindBool, Keyword: "electrode"},
		{Field: "hasMicrofinish", Kind: records.KindBool, Keyword: "microfinish"},
	},
	records.ModelCustomer: {
		{Field: "nickname", Kind: records.KindString, Labels: []string{"nickname"}, Value: valueWord},
		{Field: "phone", Kind: records.KindString, Labels: []string{"phone"}, Value: valuePhone},
		{Field: "billingAddress", Kind: records.KindString, Labels: []string{"billing address"}, Value: valueLine},
		{Field: "shippingAddress", Kind: records.KindString, Labels: []string{"shipping address"}, Value: valueLine},
		{Field: "companyName", Kind: records.KindString, Labels: []string{"company name"}, Value: valueLine},
	},
	records.ModelRequisition: {
		{Field: "requisitionStatus", Kind: records.KindString, Labels: []string{"requisition status", "status"}, Value: valueWord},
		{Field: "description", Kind: records.KindString, Labels: []string{"description"}, Value: valueLine},
		{Field: "receptionDate", Kind: records.KindString, Labels: []string{"reception date", "delivery date"}, Value: valueDMY},
		{Field: "customerPurchaseNumber", Kind: records.KindString, Labels: []string{"po number", "purchase number", "customer order"}, Value: valueWord},
		{Field: "contact", Kind: records.KindString, Labels: []string{"contact", "die maker"}, Value: valueWord},
		{Field: "toolNumber", Kind: records.KindString, Labels: []string{"tool number"}, Value: valueWord},
		{Field: "cavityQuantity", Kind: records.KindInt, Labels: []string{"cavities"}, Value: valueDigits},
		{Field: "doubleLayout", Kind: records.KindBool, Keyword: "double layout"},
	},
	records.ModelPO: {
		{Field: "poNumber", Kind: records.KindString, Labels: []string{"purchase order number", "purchase order no", "p.o. number", "po number", "po no"}, Value: valueCode},
		{Field: "orderDate", Kind: records.KindString, Labels: []string{"order date", "po date"}, Value: valueDate},
		{Field: "supplier", Kind: records.KindString, Labels: []string{"supplier", "vendor"}, Value: valueLine},
		{Field: "buyer", Kind: records.KindString, Labels: []string{"buyer", "ordered by"}, Value: valueLine},
		{Field: "orderQuantity", Kind: records.KindInt, Labels: []string{"order quantity", "quantity ordered", "qty"}, Value: valueDigits},
		{Field: "unitPrice", Kind: records.KindFloat, Labels: []string{"unit price"}, Value: valueDecimal},
		{Field: "totalAmount", Kind: records.KindFloat, Labels: []string{"total amount", "order total", "po total"}, Value: valueDecimal},
		{Field: "currency", Kind: records.KindString, Labels: []string{"currency"}, Value: valueISO4217},
		{Field: "rushOrder", Kind: records.KindBool, Keyword: "rush order"},
	},
}

func init() {
	for m, rules := range tables {
		if err := compileTable(m, rules); err != nil {
			panic(err)
		}
	}
}

// compileTable compiles every rule pattern and checks the table covers the
// model's canonical field set exactly.
func compileTable(m records.Model, rules []Rule) error {
	fields, err := records.Fields(m)
	if err != nil {
		return err
	}
	if len(fields) != len(rules) {
		return fmt.Errorf("extract: model %s has %d rules for %d fields", m, len(rules), len(fields))
	}
	for i := range rules {
		r := &rules[i]
		if r.Field != fields[i].Name || r.Kind != fields[i].Kind {
			return fmt.Errorf("extract: model %s rule %d is %s/%s, want %s/%s",
				m, i, r.Field, r.Kind, fields[i].Name, fields[i].Kind)
		}
		if r.Kind == records.KindBool {
			if r.Keyword == "" {
				return fmt.Errorf("extract: model %s bool rule %s has no keyword", m, r.Field)
			}
			r.Keyword = strings.ToLower(r.Keyword)
			continue
		}
		re, err := regexp.Compile(rulePattern(r.Labels, r.Value))
		if err != nil {
			return fmt.Errorf("extract: model %s rule %s: %w", m, r.Field, err)
		}
		r.re = re
	}
	return nil
}

// rulePattern builds "(?i)\b(?:label|...)\b\s*[:\-]?\s*value".
// Spaces inside a label match any run of whitespace.
func rulePattern(labels []string, value string) string {
	alts := make([]string, len(labels))
	for i, l := range labels {
		words := strings.Fields(l)
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		alts[i] = strings.Join(words, `\s+`)
	}
	return `(?i)\b(?:` + strings.Join(alts, "|") + `)\b\s*[:\-]?\s*` + value
}

// Rules returns a copy of a model's rule table.
func Rules(m records.Model) []Rule {
	rules := tables[m]
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return cp
}
