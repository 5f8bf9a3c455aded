package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sanity/pkg/jsonutil"
)

// Table is a loaded JSON table. It offers a row-keyed view (Keys/Records, in
// declaration order) and a columnar view (Columns/Column) over the same data.
type Table struct {
	Name    string
	Keys    []jsonutil.Value
	Records []*jsonutil.Object

	// ListBacked is set when the source was a JSON array rather than an object
	// keyed by row key; row keys are then taken from each record's first *_id field.
	ListBacked bool

	columns  []string
	colIndex map[string]bool
}

// LoadTable builds a Table from raw JSON (string or []byte) or from an
// already-parsed value (jsonutil.Value or decoded Go data).
func LoadTable(name string, raw any) (*Table, error) {
	var doc jsonutil.Value
	switch x := raw.(type) {
	case string:
		v, err := jsonutil.Parse([]byte(x))
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		doc = v
	case []byte:
		v, err := jsonutil.Parse(x)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		doc = v
	default:
		v, err := jsonutil.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w: %v", name, apperrors.ErrMalformedJSON, err)
		}
		doc = v
	}

	t := &Table{Name: name, colIndex: make(map[string]bool)}
	switch doc.Kind() {
	case jsonutil.KindObject:
		obj, _ := doc.AsObject()
		for _, key := range obj.Keys() {
			rec, _ := obj.Get(key)
			if err := t.addRecord(jsonutil.StringValue(key), rec); err != nil {
				return nil, err
			}
		}
	case jsonutil.KindArray:
		t.ListBacked = true
		elems, _ := doc.AsArray()
		for i, rec := range elems {
			obj, err := rec.AsObject()
			if err != nil {
				return nil, fmt.Errorf("table %s: record %d is not an object: %w", name, i, apperrors.ErrMalformedJSON)
			}
			if err := t.addRecord(firstIDValue(obj), rec); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("table %s: top-level %s is not a table: %w", name, doc.Kind(), apperrors.ErrMalformedJSON)
	}
	return t, nil
}

func (t *Table) addRecord(key jsonutil.Value, rec jsonutil.Value) error {
	obj, err := rec.AsObject()
	if err != nil {
		return fmt.Errorf("table %s: record %s is not an object: %w", t.Name, key.String(), apperrors.ErrMalformedJSON)
	}
	t.Keys = append(t.Keys, key)
	t.Records = append(t.Records, obj)
	for _, field := range obj.Keys() {
		if !t.colIndex[field] {
			t.colIndex[field] = true
			t.columns = append(t.columns, field)
		}
	}
	return nil
}

// firstIDValue returns the value of the first field ending in _id, or null.
func firstIDValue(obj *jsonutil.Object) jsonutil.Value {
	for _, field := range obj.Keys() {
		if strings.HasSuffix(field, "_id") {
			v, _ := obj.Get(field)
			return v
		}
	}
	return jsonutil.NullValue()
}

// RowCount is the number of records.
func (t *Table) RowCount() int { return len(t.Records) }

// Columns returns every field seen in any record, in first-seen order.
func (t *Table) Columns() []string { return t.columns }

// HasColumn reports whether any record carries the field.
func (t *Table) HasColumn(name string) bool { return name != "" && t.colIndex[name] }

// Column returns the field's value for every record; records lacking the field yield null.
func (t *Table) Column(name string) []jsonutil.Value {
	out := make([]jsonutil.Value, len(t.Records))
	for i, rec := range t.Records {
		if v, ok := rec.Get(name); ok {
			out[i] = v
		}
	}
	return out
}

// Tables is the set of loaded tables by name.
type Tables map[string]*Table

// Has reports whether the table exists.
func (ts Tables) Has(name string) bool {
	_, ok := ts[name]
	return ok
}

// Names returns table names, sorted.
func (ts Tables) Names() []string {
	names := make([]string, 0, len(ts))
	for name := range ts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// nonNull drops null cells.
func nonNull(vals []jsonutil.Value) []jsonutil.Value {
	out := make([]jsonutil.Value, 0, len(vals))
	for _, v := range vals {
		if !v.IsNull() {
			out = append(out, v)
		}
	}
	return out
}

// valueSet is a membership set over cell values.
type valueSet map[string]jsonutil.Value

func newValueSet(vals []jsonutil.Value) valueSet {
	s := make(valueSet, len(vals))
	for _, v := range vals {
		s[v.Key()] = v
	}
	return s
}

func (s valueSet) has(v jsonutil.Value) bool {
	_, ok := s[v.Key()]
	return ok
}

// sorted returns the set's values in canonical order.
func (s valueSet) sorted() []jsonutil.Value {
	out := make([]jsonutil.Value, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	jsonutil.SortValues(out)
	return out
}

// valueCount is the occurrence count of one distinct value.
type valueCount struct {
	Value jsonutil.Value
	Count int
}

// countValues counts occurrences of each distinct value, in first-seen order.
func countValues(vals []jsonutil.Value) []valueCount {
	index := make(map[string]int)
	var out []valueCount
	for _, v := range vals {
		k := v.Key()
		if i, ok := index[k]; ok {
			out[i].Count++
			continue
		}
		index[k] = len(out)
		out = append(out, valueCount{Value: v, Count: 1})
	}
	return out
}

// duplicated returns the distinct values occurring more than once, sorted.
func duplicated(vals []jsonutil.Value) []jsonutil.Value {
	var dups []jsonutil.Value
	for _, vc := range countValues(vals) {
		if vc.Count > 1 {
			dups = append(dups, vc.Value)
		}
	}
	jsonutil.SortValues(dups)
	return dups
}

// castLike converts child cells to numbers when the parent column is numeric so
// that "7" finds 7. If any non-null child cell cannot be converted the child
// column is returned unchanged and comparison falls back to raw values.
func castLike(child, parent []jsonutil.Value) []jsonutil.Value {
	numericParent := false
	for _, p := range parent {
		if p.IsNull() {
			continue
		}
		if p.Kind() != jsonutil.KindNumber {
			return child
		}
		numericParent = true
	}
	if !numericParent {
		return child
	}

	out := make([]jsonutil.Value, len(child))
	for i, c := range child {
		switch c.Kind() {
		case jsonutil.KindNull, jsonutil.KindNumber:
			out[i] = c
		case jsonutil.KindString:
			s, _ := c.AsString()
			n, err := jsonutil.ParseNumber(strings.TrimSpace(s))
			if err != nil {
				return child
			}
			out[i] = n
		default:
			return child
		}
	}
	return out
}

// sample returns at most n values rendered for a report.
func sample(vals []jsonutil.Value, n int) []any {
	if len(vals) > n {
		vals = vals[:n]
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v.Interface()
	}
	return out
}
