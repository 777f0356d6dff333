package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"sync"
)

// Account is the single ledger account that performs all submissions. The
// network sequence-numbers transactions per account, so concurrent builds
// from this process must serialize access to the counter.
type Account struct {
	mu   sync.Mutex
	seq  uint64
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewAccount derives the signing account from a 32-byte hex seed and the
// account's current on-ledger sequence number.
func NewAccount(hexSeed string, sequence uint64) (*Account, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, fmt.Errorf("account seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("account seed: need %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Account{
		seq:  sequence,
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// Address is the hex-encoded public key used as the transaction source.
func (a *Account) Address() string {
	return hex.EncodeToString(a.pub)
}

// NextSequence reserves the next sequence number.
func (a *Account) NextSequence() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.seq
}

// Sign produces an ed25519 signature over the given digest.
func (a *Account) Sign(digest []byte) []byte {
	return ed25519.Sign(a.priv, digest)
}
