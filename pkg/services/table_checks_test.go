package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

func findCheck(t *testing.T, results []models.CheckResult, name string) models.CheckResult {
	t.Helper()
	for _, r := range results {
		if r.Check == name {
			return r
		}
	}
	require.Failf(t, "check not found", "no %q among %d results", name, len(results))
	return models.CheckResult{}
}

func TestCheckKeysAreStrings(t *testing.T) {
	obj := mustTable(t, "funds", `{"f1": {"fund_id": "f1"}}`)
	assert.True(t, CheckKeysAreStrings(obj)[0].Result)

	list := mustTable(t, "users", `[{"user_id": 1}]`)
	res := CheckKeysAreStrings(list)[0]
	assert.False(t, res.Result)
	assert.Equal(t, "users", res.Table)
}

func TestCheckIDMatchesKey(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantCheck string
		wantOK    bool
	}{
		{"empty table", `{}`, "File not empty", false},
		{"no id field", `{"a": {"name": "x"}}`, "Has *_id field", false},
		{"matching ids", `{"f1": {"name": "x", "fund_id": "f1"}, "f2": {"fund_id": "f2"}}`, "fund_id matches key", true},
		{"numeric id stringifies", `{"7": {"fund_id": 7}}`, "fund_id matches key", true},
		{"mismatch", `{"f1": {"fund_id": "f1"}, "f2": {"fund_id": "f9"}}`, "fund_id matches key", false},
		{"missing field on later record", `{"f1": {"fund_id": "f1"}, "f2": {"name": "y"}}`, "fund_id matches key", false},
		{"first id field wins", `{"f1": {"fund_id": "f1", "manager_id": "m1"}}`, "fund_id matches key", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CheckIDMatchesKey(mustTable(t, "funds", tt.raw))
			require.Len(t, res, 1)
			assert.Equal(t, tt.wantCheck, res[0].Check)
			assert.Equal(t, tt.wantOK, res[0].Result)
		})
	}
}

func TestCheckIDMatchesKey_MismatchSample(t *testing.T) {
	res := CheckIDMatchesKey(mustTable(t, "funds", `{"f3": {"fund_id": "x"}, "f1": {"fund_id": "y"}}`))
	require.Len(t, res, 1)
	assert.Equal(t, []any{"f1", "f3"}, res[0].Details["mismatched_keys_sample"])
	assert.Equal(t, 2, res[0].Details["count"])
}

func TestCheckPrimaryKeys(t *testing.T) {
	t.Run("object keyed table passes", func(t *testing.T) {
		res := CheckPrimaryKeys(mustTable(t, "funds", `{"f1": {}, "f2": {}}`))
		require.Len(t, res, 2)
		assert.Equal(t, "Primary keys non-null", res[0].Check)
		assert.True(t, res[0].Result)
		assert.Equal(t, "Primary keys unique", res[1].Check)
		assert.True(t, res[1].Result)
	})

	t.Run("empty string key is null", func(t *testing.T) {
		res := CheckPrimaryKeys(mustTable(t, "funds", `{"": {}}`))
		assert.False(t, res[0].Result)
	})

	t.Run("list backed duplicates and nulls", func(t *testing.T) {
		res := CheckPrimaryKeys(mustTable(t, "users", `[
			{"user_id": "u1"}, {"user_id": "u1"}, {"name": "no id"}
		]`))
		assert.False(t, res[0].Result)
		assert.False(t, res[1].Result)
		assert.Equal(t, []any{"u1"}, res[1].Details["duplicate_keys_sample"])
		assert.Equal(t, 1, res[1].Details["count"])
	})
}

func TestCheckEnums(t *testing.T) {
	table := mustTable(t, "funds", `{
		"f1": {"fund_id": "f1", "status": "active", "trading": true, "kind": "x"},
		"f2": {"fund_id": "f2", "status": "closed", "trading": false},
		"f3": {"fund_id": "f3", "status": "zombie", "trading": null},
		"f4": {"fund_id": "f4", "status": "archived"}
	}`)
	enums := NormalizeEnumSpec(models.EnumSpec{
		"funds": {
			"status":  {"active", "closed"},
			"trading": {true, false},
			"absent":  {"a"},
		},
	})

	res := CheckEnums(table, enums)
	require.Len(t, res, 2)

	status := findCheck(t, res, "status enum values")
	assert.False(t, status.Result)
	assert.Equal(t, []any{"archived", "zombie"}, status.Details["invalid_values"])
	assert.Equal(t, 2, status.Details["count"])

	trading := findCheck(t, res, "trading enum values")
	assert.True(t, trading.Result, "boolean cells must be compared as on/off tokens")
	assert.Equal(t, 0, trading.Details["count"])
}

func TestCheckEnums_LiteralBooleanAgainstOnOff(t *testing.T) {
	table := mustTable(t, "switches", `{"s1": {"switch_id": "s1", "state": true}}`)
	res := CheckEnums(table, models.EnumSpec{"switches": {"state": {"on", "off"}}})
	require.Len(t, res, 1)
	assert.True(t, res[0].Result)
}

func TestCheckEnums_TableNotDeclared(t *testing.T) {
	table := mustTable(t, "funds", `{"f1": {"fund_id": "f1"}}`)
	assert.Empty(t, CheckEnums(table, models.EnumSpec{"other": {"x": {"a"}}}))
}

func TestRunTableChecks_Order(t *testing.T) {
	table := mustTable(t, "funds", `{"f1": {"fund_id": "f1", "status": "active"}}`)
	res := RunTableChecks(table, models.EnumSpec{"funds": {"status": {"active"}}})

	var names []string
	for _, r := range res {
		names = append(names, r.Check)
		assert.Equal(t, "funds", r.Table)
		assert.True(t, r.Result, r.Check)
	}
	assert.Equal(t, []string{
		"Keys are strings",
		"fund_id matches key",
		"Primary keys non-null",
		"Primary keys unique",
		"status enum values",
	}, names)
}
