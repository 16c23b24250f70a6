package walletsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wildwes357/walletsyncd/internal/chainparams"
	"github.com/wildwes357/walletsyncd/internal/wallet"
)

// ErrDisconnected is returned by Submit when the manager has no active
// connection; the TXN_SUBMITTED event with error code -1 is still
// emitted regardless of whether the caller inspects this error.
var ErrDisconnected = errors.New("walletsync: not connected")

// TransactionCodec parses and serializes wire-format transactions. Both
// directions are delegated collaborators per the system's scope: this
// engine never interprets transaction bytes itself beyond asking the
// codec whether a transaction is signed.
type TransactionCodec interface {
	Parse(raw []byte) (*wallet.Transaction, error)
	Serialize(tx *wallet.Transaction) []byte
}

// apiEngine drives the API-mode scan-progress protocol: it schedules
// getBlockNumber/getTransactions requests against a remote indexer,
// iterates on address discovery, and reports progress through Manager's
// event callback.
type apiEngine struct {
	// Immutable for the life of the engine.
	mgr     *Manager
	params  *chainparams.Params
	wal     wallet.Wallet
	onEvent EventCallback
	client  Client
	codec   TransactionCodec
	metrics *Metrics
	logger  *zap.Logger

	initBlockHeight uint32

	mu                 sync.Mutex
	networkBlockHeight uint32
	syncedBlockHeight  uint32
	isConnected        bool
	requestIdGen       uint64
	scan               *scanState
}

// apiEngineConfig bundles construction parameters for a new apiEngine.
type apiEngineConfig struct {
	Params           *chainparams.Params
	Wallet           wallet.Wallet
	OnEvent          EventCallback
	Client           Client
	Codec            TransactionCodec
	Metrics          *Metrics
	Logger           *zap.Logger
	EarliestKeyTime  int64  // unix seconds
	AdvertisedHeight uint32 // block height advertised by the network at construction
}

func newAPIEngine(cfg apiEngineConfig) *apiEngine {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var checkpointHeight uint32
	if cp := cfg.Params.CheckpointBefore(cfg.EarliestKeyTime - OneWeekInSeconds); cp != nil {
		checkpointHeight = cp.Height
	}

	initHeight := minU32(checkpointHeight, cfg.AdvertisedHeight)
	networkHeight := maxU32(checkpointHeight, cfg.AdvertisedHeight)

	return &apiEngine{
		params:             cfg.Params,
		wal:                cfg.Wallet,
		onEvent:            cfg.OnEvent,
		client:             cfg.Client,
		codec:              cfg.Codec,
		metrics:            metrics,
		logger:             logger,
		initBlockHeight:    initHeight,
		networkBlockHeight: networkHeight,
		syncedBlockHeight:  initHeight,
	}
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// emitLocked emits ev assuming the caller already holds e.mu.
func (e *apiEngine) emitLocked(ev Event) {
	ev.Manager = e.mgr
	e.onEvent(ev)
}

// emit acquires the lock, emits ev, and releases it — used by call sites
// that are not already inside a critical section but still need this
// engine's events totally ordered with every other emission.
func (e *apiEngine) emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitLocked(ev)
}

func (e *apiEngine) newRequestIdLocked() uint64 {
	e.requestIdGen++
	return e.requestIdGen
}

// connect transitions the engine to connected, if it wasn't already, and
// kicks off the block-number and transaction-update cycle.
func (e *apiEngine) connect(ctx context.Context) {
	e.mu.Lock()
	wasDisconnected := !e.isConnected
	if wasDisconnected {
		e.isConnected = true
		e.emitLocked(Event{Kind: EventConnected})
	}
	e.mu.Unlock()

	if wasDisconnected {
		e.updateBlockNumber(ctx)
		e.updateTransactions(ctx)
	}
}

func (e *apiEngine) disconnect(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isConnected {
		return
	}
	e.isConnected = false
	if e.scan != nil && e.scan.isFullScan {
		e.emitLocked(Event{Kind: EventSyncStopped, ErrorCode: -1})
		e.metrics.SyncStoppedError.Inc()
		e.logger.Info("full scan interrupted by disconnect", zap.Uint64("rid", e.scan.requestId))
	}
	e.scan = nil
	e.emitLocked(Event{Kind: EventDisconnected})
}

// computeSyncedHeightLocked implements the §4.2 ScanDepth policy. It
// reads wallet transactions directly; unlike the client/wallet
// registration boundary, these are pure reads that cannot call back into
// the engine, so doing them under the lock matches the original's single
// critical section and needs no snapshot-then-release dance.
func (e *apiEngine) computeSyncedHeightLocked(depth ScanDepth) uint32 {
	switch depth {
	case ScanDepthLow:
		h := lastConfirmedSendTxHeight(e.wal, e.networkBlockHeight)
		if h == 0 {
			return e.initBlockHeight
		}
		return h
	case ScanDepthMedium:
		if cp := e.params.CheckpointAtOrBefore(e.networkBlockHeight); cp != nil {
			return cp.Height
		}
		return e.initBlockHeight
	case ScanDepthHigh:
		return e.initBlockHeight
	default:
		return e.initBlockHeight
	}
}

// lastConfirmedSendTxHeight returns the maximum block height among valid
// outbound transactions confirmed by at least ConfirmationBlockCount
// blocks, or zero if none qualify.
func lastConfirmedSendTxHeight(w wallet.Wallet, networkBlockHeight uint32) uint32 {
	if networkBlockHeight < ConfirmationBlockCount {
		return 0
	}
	var scanHeight uint32
	cutoff := networkBlockHeight - ConfirmationBlockCount
	for _, tx := range w.Transactions() {
		if !w.ValidateTransaction(tx) {
			continue
		}
		if w.AmountSentByTx(tx) == 0 {
			continue
		}
		if !tx.IsConfirmed() {
			continue
		}
		if tx.BlockHeight <= cutoff && tx.BlockHeight > scanHeight {
			scanHeight = tx.BlockHeight
		}
	}
	return scanHeight
}

func (e *apiEngine) scanToDepth(ctx context.Context, depth ScanDepth) error {
	e.mu.Lock()
	if !e.isConnected {
		e.mu.Unlock()
		return nil
	}

	newSynced := e.computeSyncedHeightLocked(depth)
	e.logger.Info("rescanning to depth",
		zap.Int("depth", int(depth)),
		zap.Uint32("syncedBlockHeight", newSynced))

	if e.scan != nil && e.scan.isFullScan {
		e.emitLocked(Event{Kind: EventSyncStopped, ErrorCode: -1})
		e.metrics.SyncStoppedError.Inc()
	}
	e.emitLocked(Event{Kind: EventDisconnected})
	e.emitLocked(Event{Kind: EventConnected})
	e.scan = nil
	e.syncedBlockHeight = newSynced
	e.mu.Unlock()

	e.updateBlockNumber(ctx)
	e.updateTransactions(ctx)
	return nil
}

func (e *apiEngine) updateBlockNumber(ctx context.Context) {
	e.mu.Lock()
	if !e.isConnected {
		e.mu.Unlock()
		return
	}
	rid := e.newRequestIdLocked()
	e.mu.Unlock()

	e.client.GetBlockNumber(ctx, e.mgr, rid)
}

func (e *apiEngine) updateTransactions(ctx context.Context) {
	e.mu.Lock()
	if !e.isConnected || e.scan != nil {
		e.mu.Unlock()
		return
	}

	end := maxU32(e.syncedBlockHeight, e.networkBlockHeight) + 1
	var begCandidate uint32
	if end > BRDSyncStartBlockOffset {
		begCandidate = end - BRDSyncStartBlockOffset
	}
	beg := minU32(e.syncedBlockHeight, begCandidate)

	e.wal.UnusedAddresses(wallet.External, e.params.GapLimitExternal)
	e.wal.UnusedAddresses(wallet.Internal, e.params.GapLimitInternal)

	rid := e.newRequestIdLocked()
	scan := newScanState(rid, beg, end, e.wal.AllAddresses())
	scan.lastExternalAddress = e.wal.FirstUnusedAddress(wallet.External)
	scan.lastInternalAddress = e.wal.FirstUnusedAddress(wallet.Internal)
	e.scan = scan

	if scan.isFullScan {
		e.emitLocked(Event{Kind: EventSyncStarted})
		e.metrics.SyncStarted.Inc()
	}

	addrs := scan.known.Snapshot()
	e.logger.Debug("starting transaction scan",
		zap.Uint64("rid", rid),
		zap.Uint32("beg", beg), zap.Uint32("end", end),
		zap.Int("addresses", len(addrs)),
		zap.Bool("fullScan", scan.isFullScan))
	e.mu.Unlock()

	e.client.GetTransactions(ctx, e.mgr, addrs, beg, end, rid)
}

// announceGetBlockNumber does not correlate rid against anything; this
// mirrors the original protocol exactly (see DESIGN.md open question).
func (e *apiEngine) announceGetBlockNumber(rid uint64, height uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isConnected {
		return
	}
	if height > e.networkBlockHeight {
		e.networkBlockHeight = height
		e.metrics.BlockHeightUpdates.Inc()
		e.emitLocked(Event{Kind: EventBlockHeightUpdated, Height: height})
	}
}

func (e *apiEngine) announceGetTransactionsItem(rid uint64, raw []byte, timestamp time.Time, height uint32) {
	tx, err := e.codec.Parse(raw)
	if err != nil || !tx.Signed {
		return
	}

	e.mu.Lock()
	ok := e.isConnected && e.scan != nil && e.scan.requestId == rid
	e.mu.Unlock()
	if !ok {
		return
	}

	// Wallet registration may reject tx, or may retain a different
	// instance than the one we pass; either way we must use whichever
	// instance the wallet reports as current, never the local tx after
	// this point.
	if existing, known := e.wal.TransactionByHash(tx.Hash); known {
		e.wal.UpdateTransaction(existing.Hash, timestamp, height)
		return
	}
	tx.Timestamp = timestamp
	tx.BlockHeight = height
	e.wal.RegisterTransaction(tx)
}

func (e *apiEngine) announceGetTransactionsDone(ctx context.Context, rid uint64, success bool) {
	e.mu.Lock()

	if e.scan == nil || e.scan.requestId != rid || !e.isConnected {
		e.mu.Unlock()
		return
	}
	scan := e.scan

	if !success {
		e.logger.Warn("transaction scan failed, will retry on next tick", zap.Uint64("rid", rid))
		if scan.isFullScan {
			e.emitLocked(Event{Kind: EventSyncStopped, ErrorCode: -1})
			e.metrics.SyncStoppedError.Inc()
		}
		e.scan = nil
		e.mu.Unlock()
		return
	}

	newExt := e.wal.FirstUnusedAddress(wallet.External)
	newInt := e.wal.FirstUnusedAddress(wallet.Internal)
	discovered := newExt != scan.lastExternalAddress || newInt != scan.lastInternalAddress

	if discovered {
		scan.lastExternalAddress = newExt
		scan.lastInternalAddress = newInt
		// The first-unused cursor can move without producing any address
		// this scan hasn't queried yet; only a nonempty delta keeps the
		// scan open for another batch.
		if delta := scan.known.Delta(e.wal.AllAddresses()); len(delta) > 0 {
			beg, end := scan.begBlockNumber, scan.endBlockNumber
			e.mu.Unlock()

			e.logger.Debug("re-querying scan range for newly derived addresses",
				zap.Uint64("rid", rid), zap.Int("addresses", len(delta)))
			e.client.GetTransactions(ctx, e.mgr, delta, beg, end, rid)
			return
		}
	}

	e.syncedBlockHeight = scan.endBlockNumber - 1
	e.metrics.GetTransactionsRT.Observe(time.Since(scan.issuedAt).Seconds())
	if scan.isFullScan {
		e.emitLocked(Event{Kind: EventSyncStopped, ErrorCode: 0})
		e.metrics.SyncStoppedSuccess.Inc()
	}
	e.scan = nil
	e.mu.Unlock()
}

func (e *apiEngine) submit(ctx context.Context, tx *wallet.Transaction) error {
	e.mu.Lock()
	connected := e.isConnected
	var rid uint64
	if connected {
		rid = e.newRequestIdLocked()
	}
	e.mu.Unlock()

	if !connected {
		e.metrics.TxnSubmitFailure.Inc()
		e.emit(Event{Kind: EventTxnSubmitted, Tx: tx, ErrorCode: -1, Err: ErrDisconnected})
		return ErrDisconnected
	}

	raw := e.codec.Serialize(tx)
	e.client.SubmitTransaction(ctx, e.mgr, raw, tx.Hash, rid)
	return nil
}

func (e *apiEngine) announceSubmitTransaction(rid uint64, tx *wallet.Transaction, errCode int) {
	if errCode == 0 {
		if _, known := e.wal.TransactionByHash(tx.Hash); !known {
			e.wal.RegisterTransaction(tx)
		}
		e.metrics.TxnSubmitSuccess.Inc()
	} else {
		e.metrics.TxnSubmitFailure.Inc()
	}
	e.emit(Event{Kind: EventTxnSubmitted, Tx: tx, ErrorCode: errCode})
}

func (e *apiEngine) tickTock(ctx context.Context) {
	e.updateBlockNumber(ctx)
	e.updateTransactions(ctx)
}

func (e *apiEngine) blockHeight() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.networkBlockHeight
}
