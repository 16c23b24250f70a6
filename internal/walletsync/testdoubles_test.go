package walletsync

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/wildwes357/walletsyncd/internal/peermgr"
	"github.com/wildwes357/walletsyncd/internal/wallet"
)

// fakeCodec round-trips a transaction's hash through its raw bytes so
// tests can hand apiEngine fabricated "wire" payloads without a real
// btcd transaction.
type fakeCodec struct{}

func (fakeCodec) Parse(raw []byte) (*wallet.Transaction, error) {
	var h chainhash.Hash
	copy(h[:], raw)
	return &wallet.Transaction{Hash: h, Raw: raw, Signed: true}, nil
}

func (fakeCodec) Serialize(tx *wallet.Transaction) []byte {
	return append([]byte(nil), tx.Hash[:]...)
}

func hashFromByte(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

// fakeTxItem is one wire-format transaction fakeClient hands back from
// GetTransactions.
type fakeTxItem struct {
	hash   chainhash.Hash
	ts     time.Time
	height uint32
}

// fakeClient is a synchronous Client double. Real indexer clients would
// answer asynchronously from their own goroutines; resolving inline
// keeps tests deterministic since every apiEngine call site already
// releases its lock before invoking the client.
type fakeClient struct {
	mu            sync.Mutex
	height        uint32
	items         []fakeTxItem
	submitErrCode int

	// failNextDone, if set, makes the next GetTransactions report
	// failure instead of delivering its batch, then clears itself.
	failNextDone bool

	// midScanHook, if set, runs once from inside GetTransactions before
	// the batch is processed, letting a test simulate an external event
	// (disconnect, address discovery) occurring mid-scan.
	midScanHook func(mgr *Manager)
}

func (c *fakeClient) setHeight(h uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height = h
}

func (c *fakeClient) GetBlockNumber(ctx context.Context, mgr *Manager, rid uint64) {
	c.mu.Lock()
	h := c.height
	c.mu.Unlock()
	mgr.AnnounceGetBlockNumber(rid, h)
}

func (c *fakeClient) GetTransactions(ctx context.Context, mgr *Manager, addresses []string, begHeight, endHeight uint32, rid uint64) {
	c.mu.Lock()
	hook := c.midScanHook
	c.midScanHook = nil
	fail := c.failNextDone
	c.failNextDone = false
	items := append([]fakeTxItem(nil), c.items...)
	c.mu.Unlock()

	if hook != nil {
		hook(mgr)
	}
	if fail {
		mgr.AnnounceGetTransactionsDone(ctx, rid, false)
		return
	}

	for _, it := range items {
		mgr.AnnounceGetTransactionsItem(ctx, rid, it.hash[:], it.ts, it.height)
	}
	mgr.AnnounceGetTransactionsDone(ctx, rid, true)
}

func (c *fakeClient) SubmitTransaction(ctx context.Context, mgr *Manager, raw []byte, txHash chainhash.Hash, rid uint64) {
	c.mu.Lock()
	errCode := c.submitErrCode
	c.mu.Unlock()
	mgr.AnnounceSubmitTransaction(rid, &wallet.Transaction{Hash: txHash, Raw: raw, Signed: true}, errCode)
}

var _ Client = (*fakeClient)(nil)

// fakePeerManager is a synchronous peermgr.Manager double driven
// directly by tests to exercise the Peer Sync Adapter's Notifiee
// handlers without a real network.
type fakePeerManager struct {
	mu         sync.Mutex
	notifiee   peermgr.Notifiee
	connected  bool
	rescans    []uint32
	publishErr error
	progress   float64
	progressAt time.Time
}

func (p *fakePeerManager) SetNotifiee(n peermgr.Notifiee) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifiee = n
}

func (p *fakePeerManager) Connect(ctx context.Context) error {
	p.mu.Lock()
	p.connected = true
	n := p.notifiee
	p.mu.Unlock()
	if n != nil {
		n.OnSyncStarted()
	}
	return nil
}

func (p *fakePeerManager) Disconnect() error {
	p.mu.Lock()
	p.connected = false
	n := p.notifiee
	p.mu.Unlock()
	if n != nil {
		n.OnSyncStopped(0)
	}
	return nil
}

func (p *fakePeerManager) Rescan(fromHeight uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rescans = append(p.rescans, fromHeight)
}

func (p *fakePeerManager) Publish(ctx context.Context, tx *wallet.Transaction) error {
	p.mu.Lock()
	err := p.publishErr
	n := p.notifiee
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if n != nil {
		n.OnTxPublished(tx.Hash, nil)
	}
	return nil
}

func (p *fakePeerManager) SyncProgress() (float64, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress, p.progressAt
}

func (p *fakePeerManager) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

var _ peermgr.Manager = (*fakePeerManager)(nil)
