// Package records defines the typed records extracted from order-form pages.
//
// A Record is a tagged variant: its Model selects a fixed, canonical field set
// and every field of that set is always present (nil when not found).
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownModel is returned for a model tag outside the known set.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownField is returned when a field is not part of a model's field set.
	ErrUnknownField = errors.New("unknown field")
)

// Model is the discriminator of a Record.
type Model string

const (
	ModelPiece       Model = "piece"
	ModelTool        Model = "tool"
	ModelProfile     Model = "profile"
	ModelCustomer    Model = "customer"
	ModelRequisition Model = "requisition"
	ModelPO          Model = "po"
)

// Models lists every model in routing order.
// Router output and tidy tables follow this order.
var Models = []Model{
	ModelPiece,
	ModelTool,
	ModelProfile,
	ModelCustomer,
	ModelRequisition,
	ModelPO,
}

// Kind is the scalar type of a field value.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
)

// Field declares one member of a model's field set.
type Field struct {
	Name string
	Kind Kind
}

// fieldSets holds the canonical field set of every model, in declaration order.
var fieldSets = map[Model][]Field{
	ModelPiece: {
		{"copyNumber", KindInt},
		{"location", KindString},
		{"status", KindString},
		{"type", KindString},
		{"diameter", KindFloat},
		{"height", KindFloat},
		{"nitrogen", KindBool},
		{"surfaceNitrogen", KindBool},
		{"toBeManufactured", KindBool},
		{"customerCode", KindString},
	},
	ModelTool: {
		{"assemblyType", KindString},
		{"pressList", KindString},
		{"canBeInterlock", KindBool},
		{"description", KindString},
		{"displayCode", KindString},
		{"customerCode", KindString},
		{"totalStack", KindFloat},
		{"copyNumber", KindInt},
	},
	ModelProfile: {
		{"customerCodePrefix", KindString},
		{"customerCode", KindString},
		{"description", KindString},
		{"creationDate", KindString},
		{"alloy", KindString},
		{"mandrelQuantity", KindInt},
		{"cavityQuantity", KindInt},
		{"interlock", KindBool},
		{"zsc", KindFloat},
		{"doubleLayoutAngle", KindFloat},
		{"hasElectrode", KindBool},
		{"hasMicrofinish", KindBool},
	},
	ModelCustomer: {
		{"nickname", KindString},
		{"phone", KindString},
		{"billingAddress", KindString},
		{"shippingAddress", KindString},
		{"companyName", KindString},
	},
	ModelRequisition: {
		{"requisitionStatus", KindString},
		{"description", KindString},
		{"receptionDate", KindString},
		{"customerPurchaseNumber", KindString},
		{"contact", KindString},
		{"toolNumber", KindString},
		{"cavityQuantity", KindInt},
		{"doubleLayout", KindBool},
	},
	ModelPO: {
		{"poNumber", KindString},
		{"orderDate", KindString},
		{"supplier", KindString},
		{"buyer", KindString},
		{"orderQuantity", KindInt},
		{"unitPrice", KindFloat},
		{"totalAmount", KindFloat},
		{"currency", KindString},
		{"rushOrder", KindBool},
	},
}

// Fields returns the canonical field set of a model.
func Fields(m Model) ([]Field, error) {
	fs, ok := fieldSets[m]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, m)
	}
	cp := make([]Field, len(fs))
	copy(cp, fs)
	return cp, nil
}

// FieldNames returns the canonical field names of a model in declaration order.
func FieldNames(m Model) []string {
	fs := fieldSets[m]
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// Known reports whether a model has a registered field set.
func Known(m Model) bool {
	_, ok := fieldSets[m]
	return ok
}

// Page is one page of OCR text handed over by the OCR collaborator.
type Page struct {
	File  string `json:"file"`
	Index int    `json:"index"` // 1-based
	Text  string `json:"text"`
}

// Record is one extracted model instance.
type Record struct {
	model  Model
	fields map[string]any
}

// New returns a record of the given model with every field set to nil.
func New(m Model) (Record, error) {
	fs, ok := fieldSets[m]
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownModel, m)
	}
	values := make(map[string]any, len(fs))
	for _, f := range fs {
		values[f.Name] = nil
	}
	return Record{model: m, fields: values}, nil
}

// MustNew is New for models known at compile time.
func MustNew(m Model) Record {
	r, err := New(m)
	if err != nil {
		panic(err)
	}
	return r
}

// Model returns the record's discriminator.
func (r Record) Model() Model { return r.model }

// Get returns a field value and whether the field belongs to the model.
func (r Record) Get(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Set assigns a field value. Only keys of the model's field set are accepted.
func (r Record) Set(name string, v any) error {
	if _, ok := r.fields[name]; !ok {
		return fmt.Errorf("%w: %q for model %s", ErrUnknownField, name, r.model)
	}
	r.fields[name] = v
	return nil
}

// Fields returns a copy of the field mapping.
func (r Record) Fields() map[string]any {
	cp := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		cp[k] = v
	}
	return cp
}

// Vacant reports whether the record carries no information: every value is
// nil or false.
func (r Record) Vacant() bool {
	for _, v := range r.fields {
		switch x := v.(type) {
		case nil:
		case bool:
			if x {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Check verifies the record's key set equals its model's canonical set.
func (r Record) Check() error {
	fs, ok := fieldSets[r.model]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, r.model)
	}
	if len(fs) != len(r.fields) {
		return fmt.Errorf("model %s: have %d fields, want %d", r.model, len(r.fields), len(fs))
	}
	for _, f := range fs {
		v, ok := r.fields[f.Name]
		if !ok {
			return fmt.Errorf("model %s: missing field %q", r.model, f.Name)
		}
		if !f.Kind.accepts(v) {
			return fmt.Errorf("model %s: field %q holds %T, want %s", r.model, f.Name, v, f.Kind)
		}
	}
	return nil
}

// accepts reports whether v is nil or a Go value of kind k.
func (k Kind) accepts(v any) bool {
	if v == nil {
		return true
	}
	switch k {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindInt:
		_, ok := v.(int)
		return ok
	case KindFloat:
		_, ok := v.(float64)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	}
	return false
}

// MarshalJSON encodes the record as a flat object with a "model" key.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.fields)+1)
	for k, v := range r.fields {
		out[k] = v
	}
	out["model"] = r.model
	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat object produced by MarshalJSON.
// Keys outside the model's field set are rejected.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tag, _ := raw["model"].(string)
	rec, err := New(Model(tag))
	if err != nil {
		return err
	}
	delete(raw, "model")
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := rec.Set(k, normalizeJSON(rec.model, k, raw[k])); err != nil {
			return err
		}
	}
	*r = rec
	return nil
}

// normalizeJSON converts decoded float64 values back to int for int fields.
func normalizeJSON(m Model, name string, v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	for _, fd := range fieldSets[m] {
		if fd.Name == name && fd.Kind == KindInt {
			return int(f)
		}
	}
	return v
}
