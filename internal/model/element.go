// Package model defines the core domain types shared across the takeoff
// engine: element records, identifiers, property values, and classification
// results.
package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// UnassignedStorey is the sentinel spatial container for elements whose
// source model does not place them on any storey.
const UnassignedStorey = "Unassigned"

// PropertyKind discriminates the scalar types a property value can carry.
type PropertyKind int

// Property value kinds.
const (
	KindString PropertyKind = iota
	KindNumber
	KindBool
)

// PropertyValue is a tagged scalar from an element's property bag. Exporters
// emit wildly inconsistent property sets, so values are kept as-is and
// interpreted by the quantity and classification heuristics.
type PropertyValue struct {
	Kind PropertyKind
	Str  string
	Num  float64
	Bool bool
}

// StringValue wraps a string property.
func StringValue(s string) PropertyValue { return PropertyValue{Kind: KindString, Str: s} }

// NumberValue wraps a numeric property.
func NumberValue(n float64) PropertyValue { return PropertyValue{Kind: KindNumber, Num: n} }

// BoolValue wraps a boolean property.
func BoolValue(b bool) PropertyValue { return PropertyValue{Kind: KindBool, Bool: b} }

// PropertyFromAny converts a decoded JSON scalar into a PropertyValue.
// Non-scalar values (objects, arrays, null) are rejected.
func PropertyFromAny(v any) (PropertyValue, bool) {
	switch x := v.(type) {
	case string:
		return StringValue(x), true
	case float64:
		return NumberValue(x), true
	case int:
		return NumberValue(float64(x)), true
	case int64:
		return NumberValue(float64(x)), true
	case bool:
		return BoolValue(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return PropertyValue{}, false
		}
		return NumberValue(f), true
	default:
		return PropertyValue{}, false
	}
}

// Number returns the numeric value; ok is false for non-numeric kinds.
func (p PropertyValue) Number() (float64, bool) {
	if p.Kind != KindNumber {
		return 0, false
	}
	return p.Num, true
}

// MarshalJSON emits the underlying scalar without the tag wrapper.
func (p PropertyValue) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case KindNumber:
		return json.Marshal(p.Num)
	case KindBool:
		return json.Marshal(p.Bool)
	default:
		return json.Marshal(p.Str)
	}
}

// UnmarshalJSON accepts any JSON scalar. Used for store round-trips where
// values are known to be scalars already.
func (p *PropertyValue) UnmarshalJSON(data []byte) error {
	var v any
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		return err
	}
	pv, ok := PropertyFromAny(v)
	if !ok {
		return &json.UnsupportedValueError{Str: string(data)}
	}
	*p = pv
	return nil
}

// ElementRecord is one model element as produced by the ingestion pipeline.
// Records are read-only to the engine; they are created and destroyed in
// bulk when a session is loaded or replaced.
type ElementRecord struct {
	Ref        SessionRef               `json:"ref"`
	EntityType string                   `json:"entity_type"`
	Name       string                   `json:"name"`
	Storey     string                   `json:"storey"`
	SourceFile string                   `json:"source_file"`
	Properties map[string]PropertyValue `json:"properties,omitempty"`
}

// StableID derives the persistence-safe identifier for this element.
func (e ElementRecord) StableID() ElementID {
	return ElementID{File: e.SourceFile, NativeID: e.Ref.NativeID}
}

// ModelInfo is one entry of the session's model manifest.
type ModelInfo struct {
	Index        int    `json:"index"`
	Filename     string `json:"filename"`
	Schema       string `json:"schema,omitempty"`
	ElementCount int    `json:"element_count"`
}

// Session is one complete load session: the manifest, storey elevations,
// and every element record. Sessions are replaced atomically on load.
type Session struct {
	ID       string             `json:"id"`
	LoadedAt time.Time          `json:"loaded_at"`
	Models   []ModelInfo        `json:"models"`
	Storeys  map[string]float64 `json:"storeys"`
	Elements []ElementRecord    `json:"elements"`
}

// Resolver builds a key resolver from this session's manifest.
func (s *Session) Resolver() *Resolver {
	return NewResolver(s.Models)
}
