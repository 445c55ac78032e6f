package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Record is a raw backend entity record as decoded from JSON.
// Records stop at the projector: tools return typed outputs built with
// ProjectInto, never Records.
type Record map[string]interface{}

// Has reports whether field holds a usable value. A missing key, a null and
// an empty string all count as absent.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString && s == "" {
		return false
	}
	return true
}

// String returns field rendered as a string, or "" when absent.
// Numbers are formatted without exponent so ids stored numerically survive.
func (r Record) String(field string) string {
	if !r.Has(field) {
		return ""
	}
	switch v := r[field].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Project keeps the declared fields of rec that hold a usable value.
// Absent fields are left out entirely rather than set to nil.
func Project(rec Record, fields []string) Record {
	out := make(Record, len(fields))
	for _, f := range fields {
		if rec.Has(f) {
			out[f] = rec[f]
		}
	}
	return out
}

// ProjectInto projects rec onto the JSON field names of T and decodes the
// result into a T. Numbers and booleans bound for string fields are
// rendered as with Record.String, so numeric ids project cleanly.
func ProjectInto[T any](rec Record) (T, error) {
	var out T
	projected := Project(rec, FieldNames[T]())
	for _, f := range jsonFields[T]() {
		if !f.text {
			continue
		}
		if _, ok := projected[f.name].(string); !ok && projected[f.name] != nil {
			projected[f.name] = rec.String(f.name)
		}
	}
	data, err := json.Marshal(projected)
	if err != nil {
		return out, fmt.Errorf("failed to encode record: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to project record onto %T: %w", out, err)
	}
	return out, nil
}

// ProjectAll applies ProjectInto to every record, preserving order.
// The result is never nil.
func ProjectAll[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := ProjectInto[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FieldNames lists the JSON field names declared by struct type T.
func FieldNames[T any]() []string {
	fields := jsonFields[T]()
	if fields == nil {
		return nil
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.name)
	}
	return names
}

type jsonField struct {
	name string
	text bool // string or *string
}

func jsonFields[T any]() []jsonField {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	fields := make([]jsonField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		fields = append(fields, jsonField{name: name, text: ft.Kind() == reflect.String})
	}
	return fields
}
