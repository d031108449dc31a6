package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

const draft2020 = "https://json-schema.org/draft/2020-12/schema"

// InferFunc builds a draft definition from example records.
type InferFunc func(examples []map[string]any) (json.RawMessage, error)

// Infer returns the minimal array-of-objects definition accepting every
// example: property types are merged across examples (integer widens to
// number), and a property is required when every example carries it.
func Infer(examples []map[string]any) (json.RawMessage, error) {
	doc, err := normalizeBatch(examples)
	if err != nil {
		return nil, err
	}
	root := newShape()
	root.add(doc)

	def := root.schema()
	def["$schema"] = draft2020
	out, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode inferred schema: %w", err)
	}
	return append(out, '\n'), nil
}

// shape accumulates the observed structure of a JSON value.
type shape struct {
	types   map[string]bool
	props   map[string]*shape
	seen    map[string]int // objects carrying each property
	objects int
	items   *shape
}

func newShape() *shape {
	return &shape{types: map[string]bool{}}
}

func (s *shape) add(v any) {
	switch val := v.(type) {
	case nil:
		s.types["null"] = true
	case bool:
		s.types["boolean"] = true
	case string:
		s.types["string"] = true
	case json.Number:
		if _, err := val.Int64(); err == nil {
			s.types["integer"] = true
		} else {
			s.types["number"] = true
		}
	case float64:
		s.types["number"] = true
	case map[string]any:
		s.types["object"] = true
		s.objects++
		if s.props == nil {
			s.props = map[string]*shape{}
			s.seen = map[string]int{}
		}
		for k, pv := range val {
			child, ok := s.props[k]
			if !ok {
				child = newShape()
				s.props[k] = child
			}
			child.add(pv)
			s.seen[k]++
		}
	case []any:
		s.types["array"] = true
		if s.items == nil {
			s.items = newShape()
		}
		for _, item := range val {
			s.items.add(item)
		}
	}
}

func (s *shape) schema() map[string]any {
	out := map[string]any{}
	if s.types["integer"] && s.types["number"] {
		delete(s.types, "integer")
	}
	types := make([]string, 0, len(s.types))
	for t := range s.types {
		types = append(types, t)
	}
	sort.Strings(types)
	switch len(types) {
	case 0:
		return out
	case 1:
		out["type"] = types[0]
	default:
		out["type"] = types
	}

	if s.types["object"] {
		props := map[string]any{}
		var required []string
		for k, child := range s.props {
			props[k] = child.schema()
			if s.seen[k] == s.objects {
				required = append(required, k)
			}
		}
		out["properties"] = props
		if len(required) > 0 {
			sort.Strings(required)
			out["required"] = required
		}
	}
	if s.types["array"] && s.items != nil && len(s.items.types) > 0 {
		out["items"] = s.items.schema()
	}
	return out
}
