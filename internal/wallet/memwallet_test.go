package wallet

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func TestNewMemWalletRealizesGapLimit(t *testing.T) {
	w := NewMemWallet(20, 10)

	ext := w.UnusedAddresses(External, 20)
	if len(ext) != 20 {
		t.Fatalf("expected 20 unused external addresses, got %d", len(ext))
	}
	in := w.UnusedAddresses(Internal, 10)
	if len(in) != 10 {
		t.Fatalf("expected 10 unused internal addresses, got %d", len(in))
	}

	all := w.AllAddresses()
	if len(all) != 2*(20+10) {
		t.Fatalf("expected native+legacy addresses for both chains, got %d", len(all))
	}
}

func TestMarkUsedExpandsGapAndMovesFirstUnused(t *testing.T) {
	w := NewMemWallet(20, 10)
	first := w.FirstUnusedAddress(External)
	if first == "" {
		t.Fatal("expected a first unused external address")
	}

	w.MarkUsed(External, 0, 20)

	second := w.FirstUnusedAddress(External)
	if second == first {
		t.Fatalf("expected first-unused address to advance after MarkUsed, stayed %q", first)
	}

	unused := w.UnusedAddresses(External, 20)
	if len(unused) != 20 {
		t.Fatalf("expected gap limit maintained at 20 after use, got %d", len(unused))
	}
}

func TestRegisterTransactionRejectsDuplicate(t *testing.T) {
	w := NewMemWallet(1, 1)
	hash := chainhash.Hash{1, 2, 3}
	tx := &Transaction{Hash: hash, AmountSent: 5000, Signed: true}

	retained, ok := w.RegisterTransaction(tx)
	if !ok || retained != tx {
		t.Fatalf("expected first registration to be accepted and retain the same instance")
	}

	dup := &Transaction{Hash: hash, AmountSent: 5000, Signed: true}
	retained2, ok2 := w.RegisterTransaction(dup)
	if ok2 {
		t.Fatalf("expected duplicate registration to be rejected")
	}
	if retained2 != tx {
		t.Fatalf("expected duplicate registration to return the originally retained instance")
	}
}

func TestUpdateTransactionMutatesKnownTx(t *testing.T) {
	w := NewMemWallet(1, 1)
	hash := chainhash.Hash{9}
	tx := &Transaction{Hash: hash, BlockHeight: TxUnconfirmedHeight}
	w.RegisterTransaction(tx)

	ts := time.Unix(1700000000, 0)
	w.UpdateTransaction(hash, ts, 700123)

	got, ok := w.TransactionByHash(hash)
	if !ok {
		t.Fatal("expected transaction to be found")
	}
	if got.BlockHeight != 700123 || !got.Timestamp.Equal(ts) {
		t.Fatalf("expected tx stamped with height/time, got %+v", got)
	}
}

func TestUpdateTransactionUnknownHashIsNoop(t *testing.T) {
	w := NewMemWallet(1, 1)
	w.UpdateTransaction(chainhash.Hash{42}, time.Now(), 1)
	if len(w.Transactions()) != 0 {
		t.Fatalf("expected no transactions to be created by updating an unknown hash")
	}
}
