package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeInference(t *testing.T) {
	tests := []struct {
		name     string
		values   []any
		expected string
	}{
		{"Integers", []any{int64(1), 2, int32(3)}, TypeInt},
		{"IntsWidenToFloat", []any{1, 2.5}, TypeFloat},
		{"NullsIgnored", []any{nil, "a", nil}, TypeString},
		{"AllNull", []any{nil, nil}, TypeObject},
		{"Mixed", []any{"a", 1}, TypeObject},
		{"Datetime", []any{time.Now()}, TypeDatetime},
		{"Bool", []any{true, false}, TypeBool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferType(tt.values))
		})
	}
}

func TestFromRecords(t *testing.T) {
	t.Run("OrderThenExtraKeys", func(t *testing.T) {
		tbl := FromRecords([]string{"b", "a"}, []Row{
			{"a": 1, "b": "x"},
			{"a": 2, "b": "y", "z": 1.5, "c": nil},
		})
		assert.Equal(t, []string{"b", "a", "c", "z"}, tbl.ColumnNames())
		assert.Equal(t, TypeString, tbl.Columns[0].Type)
		assert.Equal(t, TypeInt, tbl.Columns[1].Type)
		assert.Equal(t, TypeObject, tbl.Columns[2].Type)
		assert.Equal(t, TypeFloat, tbl.Columns[3].Type)
		assert.Equal(t, 2, tbl.Len())
	})

	t.Run("NoRecords", func(t *testing.T) {
		tbl := FromRecords(nil, nil)
		require.NotNil(t, tbl.Columns)
		assert.Empty(t, tbl.Columns)
		assert.Equal(t, 0, tbl.Len())
	})
}

func TestEmpty(t *testing.T) {
	tbl := Empty()
	assert.Empty(t, tbl.Columns)
	assert.Empty(t, tbl.Rows)
	assert.NotNil(t, tbl.Rows)

	var nilTable *Table
	assert.Equal(t, 0, nilTable.Len())
	assert.Nil(t, nilTable.ColumnNames())
}
