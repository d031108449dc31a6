package records

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	for _, m := range Models {
		t.Run(string(m), func(t *testing.T) {
			r, err := New(m)
			if err != nil {
				t.Fatalf("New(%s) error = %v", m, err)
			}
			names := FieldNames(m)
			if len(names) == 0 {
				t.Fatalf("model %s has no fields", m)
			}
			fields := r.Fields()
			if len(fields) != len(names) {
				t.Fatalf("got %d fields, want %d", len(fields), len(names))
			}
			for _, n := range names {
				v, ok := fields[n]
				if !ok {
					t.Errorf("missing field %q", n)
				}
				if v != nil {
					t.Errorf("field %q = %v, want nil", n, v)
				}
			}
			if err := r.Check(); err != nil {
				t.Errorf("Check() error = %v", err)
			}
		})
	}

	t.Run("unknown model", func(t *testing.T) {
		_, err := New("invoice")
		if !errors.Is(err, ErrUnknownModel) {
			t.Errorf("expected ErrUnknownModel, got %v", err)
		}
	})
}

func TestRecord_Set(t *testing.T) {
	r := MustNew(ModelTool)

	if err := r.Set("copyNumber", 3); err != nil {
		t.Fatalf("Set(copyNumber) error = %v", err)
	}
	if v, _ := r.Get("copyNumber"); v != 3 {
		t.Errorf("copyNumber = %v, want 3", v)
	}

	err := r.Set("diameter", 1.5)
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
	if _, ok := r.Get("diameter"); ok {
		t.Error("diameter should not be part of a tool record")
	}
}

func TestRecord_Vacant(t *testing.T) {
	r := MustNew(ModelRequisition)
	_ = r.Set("doubleLayout", false)
	if !r.Vacant() {
		t.Error("record with only nil and false values should be vacant")
	}

	_ = r.Set("doubleLayout", true)
	if r.Vacant() {
		t.Error("record with a true flag should not be vacant")
	}

	r = MustNew(ModelRequisition)
	_ = r.Set("cavityQuantity", 0)
	if r.Vacant() {
		t.Error("a zero int is a value, not an absence")
	}
}

func TestRecord_Check(t *testing.T) {
	t.Run("wrong kind", func(t *testing.T) {
		r := MustNew(ModelPiece)
		r.fields["diameter"] = "12.5"
		if err := r.Check(); err == nil {
			t.Error("expected error for string in float field")
		}
	})

	t.Run("extra key", func(t *testing.T) {
		r := MustNew(ModelCustomer)
		r.fields["fax"] = nil
		if err := r.Check(); err == nil {
			t.Error("expected error for extra key")
		}
	})

	t.Run("zero record", func(t *testing.T) {
		var r Record
		if err := r.Check(); !errors.Is(err, ErrUnknownModel) {
			t.Errorf("expected ErrUnknownModel, got %v", err)
		}
	})
}

func TestRecord_JSON(t *testing.T) {
	r := MustNew(ModelPiece)
	_ = r.Set("diameter", 12.5)
	_ = r.Set("copyNumber", 2)

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("Unmarshal into map error = %v", err)
	}
	if flat["model"] != "piece" {
		t.Errorf("model = %v, want piece", flat["model"])
	}
	if v, ok := flat["location"]; !ok || v != nil {
		t.Errorf("location should be present and null, got %v (present=%v)", v, ok)
	}

	var back Record
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal into Record error = %v", err)
	}
	if err := back.Check(); err != nil {
		t.Errorf("decoded record fails Check: %v", err)
	}
	if v, _ := back.Get("copyNumber"); v != 2 {
		t.Errorf("copyNumber = %#v, want int 2", v)
	}
}
