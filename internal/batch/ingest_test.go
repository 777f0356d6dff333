package batch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashRow(seed string) string {
	return strings.Repeat(seed, 32)
}

func TestParseRows(t *testing.T) {
	t.Run("valid rows parse in order", func(t *testing.T) {
		raw := "identity_hash,amount\n" +
			hashRow("aa") + ",50000\n" +
			hashRow("bb") + ",1234.56\n"
		records, dropped, err := ParseRows([]byte(raw))
		require.NoError(t, err)
		assert.Zero(t, dropped)
		require.Len(t, records, 2)
		assert.Equal(t, hashRow("aa"), records[0].IdentityHash)
		assert.Equal(t, "1234.56", records[1].Amount.String())
	})

	t.Run("extra columns are ignored", func(t *testing.T) {
		raw := "department,identity_hash,amount\n" +
			"finance," + hashRow("aa") + ",100\n"
		records, _, err := ParseRows([]byte(raw))
		require.NoError(t, err)
		require.Len(t, records, 1)
	})

	t.Run("invalid rows are dropped silently", func(t *testing.T) {
		raw := "identity_hash,amount\n" +
			hashRow("aa") + ",50000\n" + // valid
			",100\n" + // missing hash
			"tooshort,100\n" + // malformed hash
			hashRow("bb") + ",-5\n" + // negative amount
			hashRow("cc") + ",0\n" + // zero amount
			hashRow("dd") + ",not-a-number\n" + // non-numeric
			hashRow("ee") + ",200\n" // valid
		records, dropped, err := ParseRows([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, 5, dropped)
		require.Len(t, records, 2)
		assert.Equal(t, hashRow("aa"), records[0].IdentityHash)
		assert.Equal(t, hashRow("ee"), records[1].IdentityHash)
	})

	t.Run("hash case and padding are normalized", func(t *testing.T) {
		raw := "identity_hash,amount\n" +
			" " + strings.ToUpper(hashRow("ab")) + " ,100\n"
		records, _, err := ParseRows([]byte(raw))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, hashRow("ab"), records[0].IdentityHash)
	})

	t.Run("missing required columns fail the whole parse", func(t *testing.T) {
		_, _, err := ParseRows([]byte("staff,salary\nx,100\n"))
		assert.Error(t, err)
	})

	t.Run("empty input fails", func(t *testing.T) {
		_, _, err := ParseRows(nil)
		assert.Error(t, err)
	})
}
