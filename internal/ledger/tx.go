package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// TxState tracks a submission through the fixed pipeline
// built -> simulated -> signed -> broadcast. Confirmation is reconciled
// asynchronously and lives on the Receipt, not here.
type TxState string

const (
	TxBuilt     TxState = "built"
	TxSimulated TxState = "simulated"
	TxSigned    TxState = "signed"
	TxBroadcast TxState = "broadcast"
)

// hashWidth is the fixed byte width the contract expects for identity and
// batch hashes. Longer digests are truncated, shorter inputs zero-padded:
// only presence on-chain is verified, never full-fidelity replay, so the
// narrowing is deliberate.
const hashWidth = 32

// Arg is one contract invocation argument. Exactly one field is set.
type Arg struct {
	Bytes []byte  `json:"bytes,omitempty"`
	U32   *uint32 `json:"u32,omitempty"`
}

// HashArg converts a lower-hex digest into a fixed-width byte argument.
func HashArg(hexDigest string) (Arg, error) {
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		return Arg{}, fmt.Errorf("hash arg: %w", err)
	}
	fixed := make([]byte, hashWidth)
	copy(fixed, raw)
	return Arg{Bytes: fixed}, nil
}

// U32Arg wraps an unsigned counter argument.
func U32Arg(v uint32) Arg {
	return Arg{U32: &v}
}

// Transaction is one contract invocation moving through the submission
// pipeline. The zero value is invalid; use Client to build transactions so
// sequence numbers stay serialized.
type Transaction struct {
	Source   string `json:"source"`
	Sequence uint64 `json:"sequence"`
	Contract string `json:"contract"`
	Function string `json:"function"`
	Args     []Arg  `json:"args"`

	state     TxState
	signature []byte
}

// State reports how far the transaction has advanced.
func (t *Transaction) State() TxState { return t.state }

// Signature returns the ed25519 signature once the transaction is signed.
func (t *Transaction) Signature() []byte { return t.signature }

// Payload is the canonical byte encoding that is hashed for signing and for
// the transaction identifier.
func (t *Transaction) Payload() ([]byte, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return payload, nil
}

// Hash is the transaction identifier: the hex SHA-256 of the canonical
// payload.
func (t *Transaction) Hash() (string, error) {
	payload, err := t.Payload()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func (t *Transaction) markSimulated() error {
	if t.state != TxBuilt {
		return fmt.Errorf("transaction in state %q cannot be simulated", t.state)
	}
	t.state = TxSimulated
	return nil
}

func (t *Transaction) sign(signer func([]byte) []byte) error {
	if t.state != TxSimulated {
		return fmt.Errorf("transaction in state %q cannot be signed", t.state)
	}
	payload, err := t.Payload()
	if err != nil {
		return err
	}
	sum := sha256.Sum256(payload)
	t.signature = signer(sum[:])
	t.state = TxSigned
	return nil
}

func (t *Transaction) markBroadcast() error {
	if t.state != TxSigned {
		return fmt.Errorf("transaction in state %q cannot be broadcast", t.state)
	}
	t.state = TxBroadcast
	return nil
}
