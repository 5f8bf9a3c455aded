package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sanity/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sanity/pkg/jsonutil"
)

// mustTable loads a JSON table or fails the test.
func mustTable(t *testing.T, name, raw string) *Table {
	t.Helper()
	table, err := LoadTable(name, raw)
	require.NoError(t, err)
	return table
}

func TestLoadTable_ObjectKeepsDeclarationOrder(t *testing.T) {
	table := mustTable(t, "funds", `{
		"f2": {"fund_id": "f2", "name": "Beta"},
		"f1": {"fund_id": "f1", "name": "Alpha", "status": "active"}
	}`)

	assert.Equal(t, 2, table.RowCount())
	assert.False(t, table.ListBacked)
	require.Len(t, table.Keys, 2)
	assert.Equal(t, "f2", table.Keys[0].String())
	assert.Equal(t, "f1", table.Keys[1].String())
	assert.Equal(t, []string{"fund_id", "name", "status"}, table.Columns())
	assert.True(t, table.HasColumn("status"))
	assert.False(t, table.HasColumn("missing"))
	assert.False(t, table.HasColumn(""))

	status := table.Column("status")
	require.Len(t, status, 2)
	assert.True(t, status[0].IsNull())
	assert.Equal(t, "active", status[1].String())
}

func TestLoadTable_ArrayIsListBacked(t *testing.T) {
	table := mustTable(t, "users", `[
		{"name": "a", "user_id": 1},
		{"user_id": 2},
		{"name": "anon"}
	]`)

	assert.True(t, table.ListBacked)
	require.Len(t, table.Keys, 3)
	assert.Equal(t, jsonutil.KindNumber, table.Keys[0].Kind())
	assert.Equal(t, "1", table.Keys[0].String())
	assert.True(t, table.Keys[2].IsNull())
}

func TestLoadTable_AcceptsParsedValues(t *testing.T) {
	table, err := LoadTable("orders", map[string]any{
		"o1": map[string]any{"order_id": "o1", "total": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, table.RowCount())

	v, err := jsonutil.Parse([]byte(`{"a": {"a_id": "a"}}`))
	require.NoError(t, err)
	table, err = LoadTable("a", v)
	require.NoError(t, err)
	assert.Equal(t, 1, table.RowCount())

	table, err = LoadTable("b", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 0, table.RowCount())
}

func TestLoadTable_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  any
	}{
		{"invalid json", `{"a": `},
		{"scalar document", `42`},
		{"scalar record", `{"a": 1}`},
		{"scalar element", `[1, 2]`},
		{"unsupported go type", struct{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTable("t", tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrMalformedJSON))
		})
	}
}

func TestCastLike(t *testing.T) {
	parent := []jsonutil.Value{jsonutil.NumberValue(1), jsonutil.NumberValue(2), jsonutil.NullValue()}

	t.Run("numeric strings become numbers", func(t *testing.T) {
		child := []jsonutil.Value{jsonutil.StringValue("1"), jsonutil.StringValue(" 2 "), jsonutil.NullValue()}
		got := castLike(child, parent)
		assert.Equal(t, jsonutil.KindNumber, got[0].Kind())
		assert.True(t, newValueSet(parent).has(got[1]))
		assert.True(t, got[2].IsNull())
	})

	t.Run("one unparseable cell keeps raw values", func(t *testing.T) {
		child := []jsonutil.Value{jsonutil.StringValue("1"), jsonutil.StringValue("x")}
		got := castLike(child, parent)
		assert.Equal(t, jsonutil.KindString, got[0].Kind())
	})

	t.Run("string parent never casts", func(t *testing.T) {
		child := []jsonutil.Value{jsonutil.NumberValue(1)}
		got := castLike(child, []jsonutil.Value{jsonutil.StringValue("1")})
		assert.Equal(t, jsonutil.KindNumber, got[0].Kind())
	})
}

func TestDuplicatedIsSortedAndDistinct(t *testing.T) {
	vals := []jsonutil.Value{
		jsonutil.StringValue("b"), jsonutil.StringValue("a"), jsonutil.StringValue("b"),
		jsonutil.StringValue("a"), jsonutil.StringValue("c"), jsonutil.StringValue("b"),
	}
	dups := duplicated(vals)
	assert.Equal(t, []any{"a", "b"}, sample(dups, 5))
}
