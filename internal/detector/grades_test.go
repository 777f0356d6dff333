package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGradeTable(t *testing.T) {
	t.Run("valid table", func(t *testing.T) {
		table, err := ParseGradeTable(`{"GL07":{"min":"30000","max":"80000"},"GL12":{"min":"90000","max":"250000"}}`)
		require.NoError(t, err)
		require.Len(t, table, 2)
		assert.Equal(t, "30000", table["GL07"].Min.String())
		assert.Equal(t, "250000", table["GL12"].Max.String())
	})

	t.Run("empty input yields empty table", func(t *testing.T) {
		table, err := ParseGradeTable("")
		require.NoError(t, err)
		assert.Empty(t, table)
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		_, err := ParseGradeTable(`{"GL07":{"min":"80000","max":"30000"}}`)
		assert.Error(t, err)
	})

	t.Run("zero max rejected", func(t *testing.T) {
		_, err := ParseGradeTable(`{"GL07":{"min":"0","max":"0"}}`)
		assert.Error(t, err)
	})

	t.Run("malformed json rejected", func(t *testing.T) {
		_, err := ParseGradeTable(`{"GL07":`)
		assert.Error(t, err)
	})
}
