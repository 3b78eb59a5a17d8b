package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ValueKind identifies which variant a Value holds
type ValueKind int

const (
	KindNull ValueKind = iota
	KindText
	KindNumber
	KindBool
	KindRefList
	KindStringList
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindRefList:
		return "ref_list"
	case KindStringList:
		return "string_list"
	default:
		return "null"
	}
}

// Value is a single record field value. The zero value is Null.
type Value struct {
	kind    ValueKind
	text    string
	number  float64
	boolean bool
	list    []string
}

// Null returns the absent value
func Null() Value { return Value{} }

// Text returns a string value
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a numeric value
func Number(n float64) Value { return Value{kind: KindNumber, number: n} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// RefList returns an ordered list of linked record ids
func RefList(ids ...string) Value {
	return Value{kind: KindRefList, list: append([]string{}, ids...)}
}

// StringList returns a list of strings (multi-selects, attachments by name, etc.)
func StringList(items ...string) Value {
	return Value{kind: KindStringList, list: append([]string{}, items...)}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// IsEmpty reports whether the value carries no data. Whitespace-only text is empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return strings.TrimSpace(v.text) == ""
	case KindRefList, KindStringList:
		return len(v.list) == 0
	default:
		return false
	}
}

// TextValue returns the content of Text values and "" otherwise
func (v Value) TextValue() string {
	if v.kind == KindText {
		return v.text
	}
	return ""
}

func (v Value) NumberValue() (float64, bool) {
	return v.number, v.kind == KindNumber
}

func (v Value) BoolValue() (bool, bool) {
	return v.boolean, v.kind == KindBool
}

// Refs returns the linked ids of a RefList value
func (v Value) Refs() []string {
	if v.kind != KindRefList {
		return nil
	}
	return append([]string{}, v.list...)
}

// Items returns the entries of either list variant
func (v Value) Items() []string {
	if v.kind != KindRefList && v.kind != KindStringList {
		return nil
	}
	return append([]string{}, v.list...)
}

// String stringifies the value for display, concatenation and comparison
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindRefList, KindStringList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

// Key is a kind-qualified identity used to decide whether two values are the same
func (v Value) Key() string {
	return v.kind.String() + ":" + v.String()
}

// Equal compares kind and content
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindRefList, KindStringList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	default:
		return v.Key() == o.Key()
	}
}

// AsRefList reinterprets a string list (as decoded from JSON) as record links
func (v Value) AsRefList() Value {
	if v.kind == KindStringList {
		return RefList(v.list...)
	}
	return v
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		return json.Marshal(v.number)
	case KindBool:
		return json.Marshal(v.boolean)
	case KindRefList, KindStringList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed, err := ValueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueFromAny converts a decoded JSON value into a Value. Arrays decode to
// StringList; objects inside arrays contribute their "id" (linked record
// shape) or "name" (attachment/collaborator shape).
func ValueFromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return Text(t), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case bool:
		return Bool(t), nil
	case []string:
		return StringList(t...), nil
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			switch it := item.(type) {
			case string:
				items = append(items, it)
			case map[string]any:
				if id, ok := it["id"].(string); ok {
					items = append(items, id)
				} else if name, ok := it["name"].(string); ok {
					items = append(items, name)
				}
			case nil:
			default:
				items = append(items, fmt.Sprintf("%v", it))
			}
		}
		return StringList(items...), nil
	default:
		return Null(), fmt.Errorf("unsupported field value of type %T", raw)
	}
}

// Fields is a record's field map
type Fields map[string]Value

// Get returns the named value or Null
func (f Fields) Get(name string) Value {
	if f == nil {
		return Null()
	}
	return f[name]
}

// Keys returns field names in sorted order
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy that shares no list storage with f
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if v.kind == KindRefList || v.kind == KindStringList {
			v.list = append([]string{}, v.list...)
		}
		out[k] = v
	}
	return out
}

// Plain converts the fields to a map of plain Go values (for fingerprints and expressions)
func (f Fields) Plain() map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		switch v.kind {
		case KindText:
			out[k] = v.text
		case KindNumber:
			out[k] = v.number
		case KindBool:
			out[k] = v.boolean
		case KindRefList, KindStringList:
			items := make([]any, len(v.list))
			for i, s := range v.list {
				items[i] = s
			}
			out[k] = items
		default:
			out[k] = nil
		}
	}
	return out
}

// Record is a row fetched from the external tabular store
type Record struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// Get returns the named field value
func (r Record) Get(name string) Value {
	return r.Fields.Get(name)
}

// FieldType is the store's declared type of a field
type FieldType string

const (
	FieldTypeText             FieldType = "text"
	FieldTypeLongText         FieldType = "long_text"
	FieldTypeNumber           FieldType = "number"
	FieldTypeCheckbox         FieldType = "checkbox"
	FieldTypeDate             FieldType = "date"
	FieldTypeEmail            FieldType = "email"
	FieldTypePhone            FieldType = "phone"
	FieldTypeURL              FieldType = "url"
	FieldTypeSingleSelect     FieldType = "single_select"
	FieldTypeMultiSelect      FieldType = "multi_select"
	FieldTypeLink             FieldType = "link"
	FieldTypeAttachment       FieldType = "attachment"
	FieldTypeFormula          FieldType = "formula"
	FieldTypeRollup           FieldType = "rollup"
	FieldTypeLookup           FieldType = "lookup"
	FieldTypeCount            FieldType = "count"
	FieldTypeAutoNumber       FieldType = "autonumber"
	FieldTypeCreatedTime      FieldType = "created_time"
	FieldTypeLastModifiedTime FieldType = "last_modified_time"
	FieldTypeCreatedBy        FieldType = "created_by"
	FieldTypeLastModifiedBy   FieldType = "last_modified_by"
)

var computedFieldTypes = map[FieldType]bool{
	FieldTypeFormula:          true,
	FieldTypeRollup:           true,
	FieldTypeLookup:           true,
	FieldTypeCount:            true,
	FieldTypeAutoNumber:       true,
	FieldTypeCreatedTime:      true,
	FieldTypeLastModifiedTime: true,
	FieldTypeCreatedBy:        true,
	FieldTypeLastModifiedBy:   true,
}

// IsComputedType reports whether the store derives values of this type itself
func IsComputedType(t FieldType) bool {
	return computedFieldTypes[t]
}

// FieldInfo describes one field of a table
type FieldInfo struct {
	Type       FieldType `json:"type"`
	IsComputed bool      `json:"is_computed"`
}

// Schema is the field layout of one table
type Schema struct {
	TableName string               `json:"table_name"`
	Fields    map[string]FieldInfo `json:"fields"`
}

// IsComputed reports whether writes to the field must be discarded
func (s Schema) IsComputed(field string) bool {
	info, ok := s.Fields[field]
	return ok && (info.IsComputed || IsComputedType(info.Type))
}

// IsLink reports whether the schema declares the field as a record link
func (s Schema) IsLink(field string) bool {
	info, ok := s.Fields[field]
	return ok && info.Type == FieldTypeLink
}

// Has reports whether the schema knows the field
func (s Schema) Has(field string) bool {
	_, ok := s.Fields[field]
	return ok
}

// LinkFields returns the schema's link fields in sorted order
func (s Schema) LinkFields() []string {
	out := make([]string, 0)
	for name, info := range s.Fields {
		if info.Type == FieldTypeLink {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Coerce converts list values on declared link fields into RefList values
func (s Schema) Coerce(fields Fields) Fields {
	out := fields.Clone()
	for name, v := range out {
		if s.IsLink(name) {
			out[name] = v.AsRefList()
		}
	}
	return out
}
