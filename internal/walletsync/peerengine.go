package walletsync

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/wildwes357/walletsyncd/internal/chainparams"
	"github.com/wildwes357/walletsyncd/internal/peermgr"
	"github.com/wildwes357/walletsyncd/internal/wallet"
)

// peerEngine is the Peer Sync Adapter: it drives a peermgr.Manager and
// translates its callbacks into the Manager's Event stream. Unlike the
// API engine it does not track in-flight requests by rid; the peer
// manager owns all scan/rescan/publish sequencing and merely reports
// back through the Notifiee methods below.
type peerEngine struct {
	pm      peermgr.Manager
	wal     wallet.Wallet
	params  *chainparams.Params
	onEvent EventCallback
	metrics *Metrics
	logger  *zap.Logger

	mgr *Manager

	mu                 sync.Mutex
	isConnected        bool
	isFullScan         bool
	networkBlockHeight uint32
}

type peerEngineConfig struct {
	PeerManager peermgr.Manager
	Wallet      wallet.Wallet
	Params      *chainparams.Params
	OnEvent     EventCallback
	Metrics     *Metrics
	Logger      *zap.Logger
}

func newPeerEngine(mgr *Manager, cfg peerEngineConfig) *peerEngine {
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	e := &peerEngine{
		pm:      cfg.PeerManager,
		wal:     cfg.Wallet,
		params:  cfg.Params,
		onEvent: cfg.OnEvent,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		mgr:     mgr,
	}
	e.pm.SetNotifiee(e)
	return e
}

func (e *peerEngine) emitLocked(evt Event) {
	evt.Manager = e.mgr
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if e.onEvent != nil {
		e.onEvent(evt)
	}
}

func (e *peerEngine) connect(ctx context.Context) error {
	return e.pm.Connect(ctx)
}

func (e *peerEngine) disconnect(ctx context.Context) error {
	return e.pm.Disconnect()
}

func (e *peerEngine) scan(ctx context.Context) error {
	return e.scanToDepth(ctx, ScanDepthHigh)
}

// scanToDepth picks a rescan floor and hands it to the peer manager.
// LOW uses the confirmed-send heuristic (falls back to a full rescan
// from genesis when there is no confirmed send); MEDIUM rescans from
// the last hardcoded checkpoint at or before the current network
// height; HIGH always rescans from genesis.
func (e *peerEngine) scanToDepth(ctx context.Context, depth ScanDepth) error {
	e.mu.Lock()
	networkHeight := e.networkBlockHeight
	e.mu.Unlock()

	var fromHeight uint32
	switch depth {
	case ScanDepthLow:
		fromHeight = lastConfirmedSendTxHeight(e.wal, networkHeight)
	case ScanDepthMedium:
		if e.params != nil {
			if cp := e.params.CheckpointAtOrBefore(networkHeight); cp != nil {
				fromHeight = cp.Height
			}
		}
	case ScanDepthHigh:
		fromHeight = 0
	}

	e.logger.Info("requesting peer rescan",
		zap.Int("depth", int(depth)),
		zap.Uint32("fromHeight", fromHeight))
	e.pm.Rescan(fromHeight)
	return nil
}

func (e *peerEngine) submit(ctx context.Context, tx *wallet.Transaction) error {
	cp := &wallet.Transaction{
		Hash:        tx.Hash,
		Raw:         append([]byte(nil), tx.Raw...),
		Timestamp:   tx.Timestamp,
		BlockHeight: tx.BlockHeight,
		AmountSent:  tx.AmountSent,
		Signed:      tx.Signed,
	}

	if err := e.pm.Publish(ctx, cp); err != nil {
		e.logger.Warn("transaction publish failed", zap.Stringer("txid", &tx.Hash), zap.Error(err))
		e.metrics.TxnSubmitFailure.Inc()
		e.mu.Lock()
		e.emitLocked(Event{Kind: EventTxnSubmitted, Tx: tx, ErrorCode: -1, Err: err})
		e.mu.Unlock()
		return err
	}
	return nil
}

// tickTock polls the peer manager's own progress reporting rather than
// tracking request round-trips, since the peer manager (not this
// adapter) owns the scan's in-flight state.
func (e *peerEngine) tickTock(ctx context.Context) {
	percent, ts := e.pm.SyncProgress()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isConnected && e.isFullScan && percent > 0 && percent < 100 {
		e.emitLocked(Event{Kind: EventSyncProgress, Timestamp: ts, Percent: percent})
	}
}

func (e *peerEngine) blockHeight() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.networkBlockHeight
}

// --- peermgr.Notifiee ---

func (e *peerEngine) OnSyncStarted() {
	e.mu.Lock()
	defer e.mu.Unlock()

	needConnect := !e.isConnected
	needStop := e.isFullScan

	if needStop {
		e.emitLocked(Event{Kind: EventSyncStopped, ErrorCode: -1})
	}

	e.isConnected = true
	if needConnect {
		e.emitLocked(Event{Kind: EventConnected})
	}

	e.isFullScan = true
	e.metrics.SyncStarted.Inc()
	e.emitLocked(Event{Kind: EventSyncStarted})
}

func (e *peerEngine) OnSyncStopped(reason int) {
	connectedNow := e.pm.IsConnected()

	e.mu.Lock()
	defer e.mu.Unlock()

	needStop := e.isFullScan
	needDisconnect := !connectedNow && e.isConnected

	if needStop {
		if reason == 0 {
			e.metrics.SyncStoppedSuccess.Inc()
		} else {
			e.metrics.SyncStoppedError.Inc()
		}
		e.emitLocked(Event{Kind: EventSyncStopped, ErrorCode: reason})
	}
	e.isFullScan = false

	if needDisconnect {
		e.isConnected = false
		e.emitLocked(Event{Kind: EventDisconnected})
	}
}

// OnTxStatusUpdate reports a new chain tip observed by the peer
// manager. It mirrors the flag derivation of OnSyncStopped because the
// peer manager may discover mid-scan that it has reached the tip and
// is no longer connected in the same breath it reports the new height.
func (e *peerEngine) OnTxStatusUpdate(newBlockHeight uint32) {
	connectedNow := e.pm.IsConnected()

	e.mu.Lock()
	defer e.mu.Unlock()

	needHeight := newBlockHeight > e.networkBlockHeight
	needStop := e.isFullScan && !connectedNow
	needDisconnect := !connectedNow && e.isConnected

	if needHeight {
		e.networkBlockHeight = newBlockHeight
		e.metrics.BlockHeightUpdates.Inc()
		e.emitLocked(Event{Kind: EventBlockHeightUpdated, Height: newBlockHeight})
	}

	if needStop {
		e.metrics.SyncStoppedSuccess.Inc()
		e.emitLocked(Event{Kind: EventSyncStopped, ErrorCode: 0})
		e.isFullScan = false
	}

	if needDisconnect {
		e.isConnected = false
		e.emitLocked(Event{Kind: EventDisconnected})
	}

	e.emitLocked(Event{Kind: EventTxnsUpdated})
}

func (e *peerEngine) OnTxPublished(txHash chainhash.Hash, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.metrics.TxnSubmitFailure.Inc()
		e.emitLocked(Event{Kind: EventTxnSubmitted, ErrorCode: -1, Err: err})
		return
	}

	tx, _ := e.wal.TransactionByHash(txHash)
	e.metrics.TxnSubmitSuccess.Inc()
	e.emitLocked(Event{Kind: EventTxnSubmitted, Tx: tx})
}

func (e *peerEngine) OnSaveBlocks(replace bool, blocks []peermgr.BlockHeader) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if replace {
		e.emitLocked(Event{Kind: EventSetBlocks, Blocks: blocks})
	} else {
		e.emitLocked(Event{Kind: EventAddBlocks, Blocks: blocks})
	}
}

func (e *peerEngine) OnSavePeers(replace bool, peers []peermgr.PeerAddress) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if replace {
		e.emitLocked(Event{Kind: EventSetPeers, Peers: peers})
	} else {
		e.emitLocked(Event{Kind: EventAddPeers, Peers: peers})
	}
}

func (e *peerEngine) OnNetworkIsReachable() bool {
	return true
}

var _ peermgr.Notifiee = (*peerEngine)(nil)
