package apiclient

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/wildwes357/walletsyncd/internal/wallet"
)

func encodeTx(t *testing.T, msgTx *wire.MsgTx) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := msgTx.Serialize(&buf); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func TestTxCodecParseDetectsSignedInputs(t *testing.T) {
	msgTx := wire.NewMsgTx(wire.TxVersion)
	prevHash := chainhash.Hash{}
	in := wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), []byte{0x01, 0x02}, nil)
	msgTx.AddTxIn(in)
	msgTx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))

	raw := encodeTx(t, msgTx)

	var codec TxCodec
	tx, err := codec.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !tx.Signed {
		t.Fatalf("expected a transaction with a non-empty SignatureScript to be reported signed")
	}
	if tx.Hash != msgTx.TxHash() {
		t.Fatalf("hash mismatch: got %s want %s", tx.Hash, msgTx.TxHash())
	}
}

func TestTxCodecParseDetectsUnsignedInputs(t *testing.T) {
	msgTx := wire.NewMsgTx(wire.TxVersion)
	prevHash := chainhash.Hash{}
	in := wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil)
	msgTx.AddTxIn(in)
	msgTx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))

	raw := encodeTx(t, msgTx)

	var codec TxCodec
	tx, err := codec.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tx.Signed {
		t.Fatalf("expected an empty SignatureScript to be reported unsigned")
	}
}

func TestTxCodecSerializeReturnsStoredRaw(t *testing.T) {
	var codec TxCodec
	if _, err := codec.Parse(nil); err == nil {
		t.Fatalf("expected Parse(nil) to fail on an empty buffer")
	}

	raw := []byte{0xde, 0xad, 0xbe, 0xef}
	got := codec.Serialize(&wallet.Transaction{Raw: raw})
	if !bytes.Equal(got, raw) {
		t.Fatalf("Serialize mismatch: got %x want %x", got, raw)
	}
}
