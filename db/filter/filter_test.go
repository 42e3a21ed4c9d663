package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Parse(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		expect Node
	}{
		{
			name:   "string equality",
			input:  `title eq "apple"`,
			expect: Compare{Field: "title", Op: Eq, Value: "apple"},
		},
		{
			name:   "single quoted string",
			input:  `title eq 'apple'`,
			expect: Compare{Field: "title", Op: Eq, Value: "apple"},
		},
		{
			name:   "integer comparison",
			input:  `numberofcalories gt 100`,
			expect: Compare{Field: "numberofcalories", Op: Gt, Value: int64(100)},
		},
		{
			name:   "negative number",
			input:  `numberofcalories lt -5`,
			expect: Compare{Field: "numberofcalories", Op: Lt, Value: int64(-5)},
		},
		{
			name:   "float comparison",
			input:  `numberofcalories lt 99.5`,
			expect: Compare{Field: "numberofcalories", Op: Lt, Value: 99.5},
		},
		{
			name:   "boolean value",
			input:  `ispublic eq true`,
			expect: Compare{Field: "ispublic", Op: Eq, Value: true},
		},
		{
			name:  "conjunction",
			input: `country eq "USA" and ispublic ne false`,
			expect: Logic{
				Op:    And,
				Left:  Compare{Field: "country", Op: Eq, Value: "USA"},
				Right: Compare{Field: "ispublic", Op: Ne, Value: false},
			},
		},
		{
			name:  "and binds tighter than or",
			input: `a eq 1 or b eq 2 and c eq 3`,
			expect: Logic{
				Op:   Or,
				Left: Compare{Field: "a", Op: Eq, Value: int64(1)},
				Right: Logic{
					Op:    And,
					Left:  Compare{Field: "b", Op: Eq, Value: int64(2)},
					Right: Compare{Field: "c", Op: Eq, Value: int64(3)},
				},
			},
		},
		{
			name:  "brackets override precedence",
			input: `(a eq 1 or b eq 2) and c eq 3`,
			expect: Logic{
				Op: And,
				Left: Logic{
					Op:    Or,
					Left:  Compare{Field: "a", Op: Eq, Value: int64(1)},
					Right: Compare{Field: "b", Op: Eq, Value: int64(2)},
				},
				Right: Compare{Field: "c", Op: Eq, Value: int64(3)},
			},
		},
		{
			name:   "keywords are case-insensitive",
			input:  `Title EQ "apple"`,
			expect: Compare{Field: "title", Op: Eq, Value: "apple"},
		},
		{
			name:   "operator word inside string literal stays literal",
			input:  `title eq "greater and lesser"`,
			expect: Compare{Field: "title", Op: Eq, Value: "greater and lesser"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := Parse(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, actual)
		})
	}
}

func Test_Parse_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ``},
		{name: "bare field", input: `title`},
		{name: "missing value", input: `title eq`},
		{name: "unknown operator", input: `title like "apple"`},
		{name: "keyword as field", input: `eq eq 1`},
		{name: "unterminated string", input: `title eq "apple`},
		{name: "unbalanced bracket", input: `(title eq "apple"`},
		{name: "trailing garbage", input: `title eq "apple" title`},
		{name: "illegal character", input: `title eq ;`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			assert.Error(t, err)
		})
	}
}

func Test_Node_SQL(t *testing.T) {
	resolve := func(field string) (string, bool) {
		cols := map[string]string{
			"title":            "title",
			"numberofcalories": "number_of_calories",
			"ispublic":         "is_public",
		}
		col, ok := cols[field]
		return col, ok
	}

	t.Run("compare renders a parameterized predicate", func(t *testing.T) {
		node, err := Parse(`numberofcalories gt 100`)
		require.NoError(t, err)

		sql, args, err := node.SQL(resolve)
		require.NoError(t, err)
		assert.Equal(t, "number_of_calories > ?", sql)
		assert.Equal(t, []any{int64(100)}, args)
	})

	t.Run("logic renders bracketed subtrees in order", func(t *testing.T) {
		node, err := Parse(`title eq "apple" or (ispublic eq true and numberofcalories lt 50)`)
		require.NoError(t, err)

		sql, args, err := node.SQL(resolve)
		require.NoError(t, err)
		assert.Equal(t, "(title = ? OR (is_public = ? AND number_of_calories < ?))", sql)
		assert.Equal(t, []any{"apple", true, int64(50)}, args)
	})

	t.Run("unknown field fails compilation", func(t *testing.T) {
		node, err := Parse(`wings eq 2`)
		require.NoError(t, err)

		_, _, err = node.SQL(resolve)
		assert.Error(t, err)
	})
}

func Test_Node_Fields(t *testing.T) {
	node, err := Parse(`b eq 1 and (a eq 2 or b eq 3)`)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, node.Fields())
}

func Test_Parse_ValueWord(t *testing.T) {
	// an unquoted word is not a value
	_, err := Parse(`title eq apple`)
	assert.Error(t, err)
}
