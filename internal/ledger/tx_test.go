package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashArg(t *testing.T) {
	t.Run("32-byte digest passes through", func(t *testing.T) {
		arg, err := HashArg(strings.Repeat("ab", 32))
		require.NoError(t, err)
		require.Len(t, arg.Bytes, hashWidth)
		assert.Equal(t, byte(0xab), arg.Bytes[0])
		assert.Equal(t, byte(0xab), arg.Bytes[31])
	})

	t.Run("short input is zero-padded", func(t *testing.T) {
		arg, err := HashArg("ffff")
		require.NoError(t, err)
		require.Len(t, arg.Bytes, hashWidth)
		assert.Equal(t, byte(0xff), arg.Bytes[1])
		assert.Equal(t, byte(0x00), arg.Bytes[2])
	})

	t.Run("long input is truncated", func(t *testing.T) {
		arg, err := HashArg(strings.Repeat("cd", 40))
		require.NoError(t, err)
		assert.Len(t, arg.Bytes, hashWidth)
	})

	t.Run("non-hex input rejected", func(t *testing.T) {
		_, err := HashArg("not hex")
		assert.Error(t, err)
	})
}

func TestTransactionPipeline(t *testing.T) {
	newTx := func() *Transaction {
		return &Transaction{
			Source:   "source",
			Sequence: 1,
			Contract: "contract",
			Function: "register_staff",
			state:    TxBuilt,
		}
	}
	signer := func(digest []byte) []byte { return append([]byte("sig:"), digest...) }

	t.Run("states advance in order", func(t *testing.T) {
		tx := newTx()
		require.NoError(t, tx.markSimulated())
		require.NoError(t, tx.sign(signer))
		require.NoError(t, tx.markBroadcast())
		assert.Equal(t, TxBroadcast, tx.State())
		assert.NotEmpty(t, tx.Signature())
	})

	t.Run("signing an unsimulated transaction fails", func(t *testing.T) {
		assert.Error(t, newTx().sign(signer))
	})

	t.Run("broadcasting an unsigned transaction fails", func(t *testing.T) {
		tx := newTx()
		require.NoError(t, tx.markSimulated())
		assert.Error(t, tx.markBroadcast())
	})

	t.Run("simulating twice fails", func(t *testing.T) {
		tx := newTx()
		require.NoError(t, tx.markSimulated())
		assert.Error(t, tx.markSimulated())
	})

	t.Run("hash is deterministic over the payload", func(t *testing.T) {
		h1, err := newTx().Hash()
		require.NoError(t, err)
		h2, err := newTx().Hash()
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
		assert.Len(t, h1, 64)
	})
}

func TestAccountSequence(t *testing.T) {
	account, err := NewAccount(strings.Repeat("11", 32), 7)
	require.NoError(t, err)

	assert.Equal(t, uint64(8), account.NextSequence())
	assert.Equal(t, uint64(9), account.NextSequence())
	assert.NotEmpty(t, account.Address())

	_, err = NewAccount("tooshort", 0)
	assert.Error(t, err)
}
