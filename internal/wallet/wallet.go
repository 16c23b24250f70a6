// Package wallet defines the narrow capability surface the sync manager
// consumes from a UTXO wallet, and a reference in-memory implementation
// used by tests and the demo command. Address derivation, key management,
// and persistence are the wallet's own concern and are out of scope here.
package wallet

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Chain selects one of a wallet's two derivation chains.
type Chain int

const (
	External Chain = iota
	Internal
)

func (c Chain) String() string {
	if c == Internal {
		return "internal"
	}
	return "external"
}

// TxUnconfirmedHeight marks a transaction that has not yet been mined.
const TxUnconfirmedHeight uint32 = 0

// Transaction is the minimal view of a wallet transaction the sync
// manager needs: enough to stamp, register, and report submission
// outcomes, without parsing or validating the underlying wire format
// itself (that belongs to the wallet / transaction-codec layer).
type Transaction struct {
	Hash        chainhash.Hash
	Raw         []byte
	Timestamp   time.Time
	BlockHeight uint32 // TxUnconfirmedHeight if not yet mined
	AmountSent  int64  // nonzero iff this is a valid outbound transaction
	Signed      bool
}

// IsConfirmed reports whether the transaction has a known block height.
func (t *Transaction) IsConfirmed() bool {
	return t.BlockHeight != TxUnconfirmedHeight
}

// Wallet is the capability set the sync manager is allowed to use. It is
// intentionally narrow: no balance computation, no UTXO selection, no key
// management.
type Wallet interface {
	// AllAddresses returns every address the wallet currently knows about,
	// in both its native and legacy encodings.
	AllAddresses() []string

	// UnusedAddresses forces the wallet to realize up to limit unused
	// addresses on the given chain (deriving new ones if needed to reach
	// the gap limit) and returns them in derivation order.
	UnusedAddresses(chain Chain, limit int) []string

	// FirstUnusedAddress returns the first unused address on the given
	// chain, after the wallet has realized its gap-limit-worth of unused
	// addresses. Used to detect gap-limit expansion across scan batches.
	FirstUnusedAddress(chain Chain) string

	// TransactionByHash looks up a previously registered transaction.
	TransactionByHash(hash chainhash.Hash) (*Transaction, bool)

	// RegisterTransaction offers tx to the wallet. The wallet may reject
	// it (returning ok=false) or may retain either the passed instance or
	// a copy; callers must use the returned instance and must not assume
	// tx itself was retained.
	RegisterTransaction(tx *Transaction) (retained *Transaction, ok bool)

	// UpdateTransaction updates the timestamp/block height of an
	// already-known transaction.
	UpdateTransaction(hash chainhash.Hash, timestamp time.Time, blockHeight uint32)

	// Transactions returns every transaction currently known to the
	// wallet.
	Transactions() []*Transaction

	// AmountSentByTx returns the amount sent by tx if it is a valid
	// outbound transaction, zero otherwise.
	AmountSentByTx(tx *Transaction) int64

	// ValidateTransaction reports whether tx is structurally valid
	// against the wallet's view of spent outputs.
	ValidateTransaction(tx *Transaction) bool
}
