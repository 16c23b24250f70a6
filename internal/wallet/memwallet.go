package wallet

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// chainState tracks one derivation chain's address cursor.
type chainState struct {
	nextIndex  int      // next index to derive
	usedUpTo   int      // highest index marked used (-1 if none)
	addresses  []string // native-encoded addresses, in derivation order
	legacyAddr []string // legacy-encoded form of the same addresses
}

// MemWallet is a small in-memory reference implementation of Wallet:
// one mutex guards everything, and every mutating method acquires it
// for its whole body.
//
// Address derivation here is a deterministic placeholder (two string
// encodings per index) rather than real key derivation, which the system
// this wallet serves explicitly delegates elsewhere.
type MemWallet struct {
	mu sync.Mutex

	chains [2]*chainState // indexed by Chain

	txByHash map[chainhash.Hash]*Transaction
}

// NewMemWallet creates an empty wallet with the given gap limits already
// realized (gapExternal/gapInternal unused addresses derived on each
// chain).
func NewMemWallet(gapExternal, gapInternal int) *MemWallet {
	w := &MemWallet{
		chains:   [2]*chainState{{usedUpTo: -1}, {usedUpTo: -1}},
		txByHash: make(map[chainhash.Hash]*Transaction),
	}
	w.realize(External, gapExternal)
	w.realize(Internal, gapInternal)
	return w
}

// realize derives addresses on chain until at least limit addresses past
// usedUpTo exist. Caller must hold w.mu.
func (w *MemWallet) realize(chain Chain, limit int) {
	cs := w.chains[chain]
	for cs.nextIndex-cs.usedUpTo-1 < limit {
		idx := cs.nextIndex
		cs.addresses = append(cs.addresses, nativeAddress(chain, idx))
		cs.legacyAddr = append(cs.legacyAddr, legacyAddress(chain, idx))
		cs.nextIndex++
	}
}

func nativeAddress(chain Chain, idx int) string {
	return fmt.Sprintf("bc1q%s%08x", chainTag(chain), idx)
}

func legacyAddress(chain Chain, idx int) string {
	return fmt.Sprintf("1%s%08x", chainTag(chain), idx)
}

func chainTag(chain Chain) string {
	if chain == Internal {
		return "int"
	}
	return "ext"
}

// MarkUsed marks the address at derivation index idx on chain as used,
// deriving further addresses to maintain the gap limit. Test and demo
// helper simulating the wallet noticing that a returned address received
// a payment.
func (w *MemWallet) MarkUsed(chain Chain, idx, gapLimit int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cs := w.chains[chain]
	if idx > cs.usedUpTo {
		cs.usedUpTo = idx
	}
	w.realize(chain, gapLimit)
}

func (w *MemWallet) AllAddresses() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, 2*(len(w.chains[External].addresses)+len(w.chains[Internal].addresses)))
	for _, cs := range w.chains {
		out = append(out, cs.addresses...)
		out = append(out, cs.legacyAddr...)
	}
	return out
}

func (w *MemWallet) UnusedAddresses(chain Chain, limit int) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.realize(chain, limit)
	cs := w.chains[chain]
	start := cs.usedUpTo + 1
	end := start + limit
	if end > len(cs.addresses) {
		end = len(cs.addresses)
	}
	if start >= end {
		return nil
	}
	out := make([]string, 0, end-start)
	out = append(out, cs.addresses[start:end]...)
	return out
}

func (w *MemWallet) FirstUnusedAddress(chain Chain) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	cs := w.chains[chain]
	idx := cs.usedUpTo + 1
	if idx >= len(cs.addresses) {
		return ""
	}
	return cs.addresses[idx]
}

func (w *MemWallet) TransactionByHash(hash chainhash.Hash) (*Transaction, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	tx, ok := w.txByHash[hash]
	return tx, ok
}

func (w *MemWallet) RegisterTransaction(tx *Transaction) (*Transaction, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if existing, ok := w.txByHash[tx.Hash]; ok {
		return existing, false
	}
	w.txByHash[tx.Hash] = tx
	return tx, true
}

func (w *MemWallet) UpdateTransaction(hash chainhash.Hash, timestamp time.Time, blockHeight uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	tx, ok := w.txByHash[hash]
	if !ok {
		return
	}
	tx.Timestamp = timestamp
	tx.BlockHeight = blockHeight
}

func (w *MemWallet) Transactions() []*Transaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Transaction, 0, len(w.txByHash))
	for _, tx := range w.txByHash {
		out = append(out, tx)
	}
	return out
}

func (w *MemWallet) AmountSentByTx(tx *Transaction) int64 {
	return tx.AmountSent
}

func (w *MemWallet) ValidateTransaction(tx *Transaction) bool {
	return tx.Signed
}

var _ Wallet = (*MemWallet)(nil)
