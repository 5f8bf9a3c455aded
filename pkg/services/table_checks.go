package services

import (
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-sanity/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

const (
	defaultSampleSize = 5
	typeSampleSize    = 10
)

// Enum tokens substituted for boolean-looking values.
const (
	enumTokenOn  = "on"
	enumTokenOff = "off"
)

// CheckKeysAreStrings verifies every row key is a string.
func CheckKeysAreStrings(t *Table) []models.CheckResult {
	ok := true
	for _, k := range t.Keys {
		if k.Kind() != jsonutil.KindString {
			ok = false
			break
		}
	}
	return []models.CheckResult{{Check: "Keys are strings", Result: ok, Table: t.Name}}
}

// CheckIDMatchesKey verifies that the first *_id field of the first record
// agrees with the row key on every record, comparing stringified values.
func CheckIDMatchesKey(t *Table) []models.CheckResult {
	if len(t.Records) == 0 {
		return []models.CheckResult{{Check: "File not empty", Result: false, Table: t.Name}}
	}

	var idField string
	for _, field := range t.Records[0].Keys() {
		if strings.HasSuffix(field, "_id") {
			idField = field
			break
		}
	}
	if idField == "" {
		return []models.CheckResult{{Check: "Has *_id field", Result: false, Table: t.Name}}
	}

	var mismatched []jsonutil.Value
	for i, rec := range t.Records {
		v, _ := rec.Get(idField)
		if v.String() != t.Keys[i].String() {
			mismatched = append(mismatched, t.Keys[i])
		}
	}
	result := models.CheckResult{Check: idField + " matches key", Result: len(mismatched) == 0, Table: t.Name}
	if len(mismatched) > 0 {
		jsonutil.SortValues(mismatched)
		result.Details = map[string]any{
			"mismatched_keys_sample": sample(mismatched, defaultSampleSize),
			"count":                  len(mismatched),
		}
	}
	return []models.CheckResult{result}
}

// CheckPrimaryKeys verifies row keys are non-null, non-empty and pairwise unique.
func CheckPrimaryKeys(t *Table) []models.CheckResult {
	nonNullKeys := true
	for _, k := range t.Keys {
		if k.IsNull() {
			nonNullKeys = false
			break
		}
		if s, err := k.AsString(); err == nil && s == "" {
			nonNullKeys = false
			break
		}
	}

	unique := models.CheckResult{Check: "Primary keys unique", Table: t.Name}
	dups := duplicated(nonNull(t.Keys))
	unique.Result = len(dups) == 0
	if !unique.Result {
		unique.Details = map[string]any{
			"duplicate_keys_sample": sample(dups, defaultSampleSize),
			"count":                 len(dups),
		}
	}

	return []models.CheckResult{
		{Check: "Primary keys non-null", Result: nonNullKeys, Table: t.Name},
		unique,
	}
}

// CheckEnums verifies that each declared enum column only holds allowed values.
// Columns are visited in sorted order; declared columns the table lacks are skipped.
func CheckEnums(t *Table, enums models.EnumSpec) []models.CheckResult {
	columns, ok := enums[t.Name]
	if !ok {
		return nil
	}

	names := make([]string, 0, len(columns))
	for col := range columns {
		names = append(names, col)
	}
	sort.Strings(names)

	var results []models.CheckResult
	for _, col := range names {
		if !t.HasColumn(col) {
			continue
		}
		allowed := make(valueSet)
		for _, a := range columns[col] {
			v, err := jsonutil.FromAny(NormalizeEnumValue(a))
			if err != nil {
				continue
			}
			allowed[v.Key()] = v
		}

		invalid := make(valueSet)
		for _, v := range nonNull(t.Column(col)) {
			v = normalizeEnumCell(v)
			if !allowed.has(v) {
				invalid[v.Key()] = v
			}
		}

		results = append(results, models.CheckResult{
			Check:  col + " enum values",
			Result: len(invalid) == 0,
			Table:  t.Name,
			Details: map[string]any{
				"invalid_values": sample(invalid.sorted(), defaultSampleSize),
				"count":          len(invalid),
			},
		})
	}
	return results
}

// NormalizeEnumValue maps boolean tokens to the on/off domain tokens. YAML
// decodes unquoted on/off/yes/no as booleans, which are never intended here.
func NormalizeEnumValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return enumTokenOn
		}
		return enumTokenOff
	}
	return v
}

func normalizeEnumCell(v jsonutil.Value) jsonutil.Value {
	if b, err := v.AsBool(); err == nil {
		return jsonutil.StringValue(NormalizeEnumValue(b).(string))
	}
	return v
}

// NormalizeEnumSpec rewrites boolean tokens in every allowed-value list.
func NormalizeEnumSpec(spec models.EnumSpec) models.EnumSpec {
	for _, columns := range spec {
		for col, values := range columns {
			fixed := make([]any, len(values))
			for i, v := range values {
				fixed[i] = NormalizeEnumValue(v)
			}
			columns[col] = fixed
		}
	}
	return spec
}

// BasicTableChecks runs the key and primary-key checks against one table.
func BasicTableChecks(t *Table) []models.CheckResult {
	var results []models.CheckResult
	results = append(results, CheckKeysAreStrings(t)...)
	results = append(results, CheckIDMatchesKey(t)...)
	results = append(results, CheckPrimaryKeys(t)...)
	return results
}

// RunTableChecks runs the basic checks followed by the enum checks.
func RunTableChecks(t *Table, enums models.EnumSpec) []models.CheckResult {
	return append(BasicTableChecks(t), CheckEnums(t, enums)...)
}
