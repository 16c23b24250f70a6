package walletsync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wildwes357/walletsyncd/internal/chainparams"
	"github.com/wildwes357/walletsyncd/internal/peermgr"
	"github.com/wildwes357/walletsyncd/internal/wallet"
)

// Manager is the single entry point a wallet owner drives. Its mode is
// fixed at construction: an API-mode Manager talks to a remote indexer
// through a Client, a peer-mode Manager drives an SPV-style
// peermgr.Manager. Both report the same Event stream through whichever
// EventCallback was supplied at construction.
type Manager struct {
	mode Mode
	api  *apiEngine
	peer *peerEngine
}

// APIManagerConfig configures a Manager operating in ModeAPIOnly.
type APIManagerConfig struct {
	Params           *chainparams.Params
	Wallet           wallet.Wallet
	OnEvent          EventCallback
	Client           Client
	Codec            TransactionCodec
	Metrics          *Metrics
	Logger           *zap.Logger
	EarliestKeyTime  int64  // unix seconds; anchors the initial checkpoint lookup
	AdvertisedHeight uint32 // network height known at construction time, if any
}

// NewAPIManager constructs a Manager that synchronizes against a remote
// indexer via cfg.Client.
func NewAPIManager(cfg APIManagerConfig) *Manager {
	mgr := &Manager{mode: ModeAPIOnly}
	mgr.api = newAPIEngine(apiEngineConfig{
		Params:           cfg.Params,
		Wallet:           cfg.Wallet,
		OnEvent:          cfg.OnEvent,
		Client:           cfg.Client,
		Codec:            cfg.Codec,
		Metrics:          cfg.Metrics,
		Logger:           cfg.Logger,
		EarliestKeyTime:  cfg.EarliestKeyTime,
		AdvertisedHeight: cfg.AdvertisedHeight,
	})
	mgr.api.mgr = mgr
	return mgr
}

// PeerManagerConfig configures a Manager operating in ModeP2POnly.
type PeerManagerConfig struct {
	PeerManager peermgr.Manager
	Wallet      wallet.Wallet
	Params      *chainparams.Params
	OnEvent     EventCallback
	Metrics     *Metrics
	Logger      *zap.Logger
}

// NewPeerManager constructs a Manager that synchronizes by driving
// cfg.PeerManager directly.
func NewPeerManager(cfg PeerManagerConfig) *Manager {
	mgr := &Manager{mode: ModeP2POnly}
	mgr.peer = newPeerEngine(mgr, peerEngineConfig{
		PeerManager: cfg.PeerManager,
		Wallet:      cfg.Wallet,
		Params:      cfg.Params,
		OnEvent:     cfg.OnEvent,
		Metrics:     cfg.Metrics,
		Logger:      cfg.Logger,
	})
	return mgr
}

// Mode reports which synchronization strategy this Manager uses.
func (m *Manager) Mode() Mode {
	return m.mode
}

func (m *Manager) Connect(ctx context.Context) error {
	if m.mode == ModeAPIOnly {
		m.api.connect(ctx)
		return nil
	}
	return m.peer.connect(ctx)
}

func (m *Manager) Disconnect(ctx context.Context) error {
	if m.mode == ModeAPIOnly {
		m.api.disconnect(ctx)
		return nil
	}
	return m.peer.disconnect(ctx)
}

// Scan is shorthand for ScanToDepth(ctx, ScanDepthHigh).
func (m *Manager) Scan(ctx context.Context) error {
	return m.ScanToDepth(ctx, ScanDepthHigh)
}

func (m *Manager) ScanToDepth(ctx context.Context, depth ScanDepth) error {
	if m.mode == ModeAPIOnly {
		return m.api.scanToDepth(ctx, depth)
	}
	return m.peer.scanToDepth(ctx, depth)
}

func (m *Manager) Submit(ctx context.Context, tx *wallet.Transaction) error {
	if m.mode == ModeAPIOnly {
		return m.api.submit(ctx, tx)
	}
	return m.peer.submit(ctx, tx)
}

// TickTock drives periodic bookkeeping: in API mode it re-polls the
// block number and pending transactions, in peer mode it re-checks the
// peer manager's own progress report. Callers are expected to invoke it
// on a fixed interval (e.g. via time.Ticker).
func (m *Manager) TickTock(ctx context.Context) {
	if m.mode == ModeAPIOnly {
		m.api.tickTock(ctx)
		return
	}
	m.peer.tickTock(ctx)
}

func (m *Manager) BlockHeight() uint32 {
	if m.mode == ModeAPIOnly {
		return m.api.blockHeight()
	}
	return m.peer.blockHeight()
}

// The Announce* methods are API-mode entry points a Client
// implementation calls once a request it issued completes. They are
// silent no-ops in peer mode, where the peermgr.Notifiee callbacks play
// the equivalent role.

func (m *Manager) AnnounceGetBlockNumber(rid uint64, height uint32) {
	if m.mode != ModeAPIOnly {
		return
	}
	m.api.announceGetBlockNumber(rid, height)
}

func (m *Manager) AnnounceGetTransactionsItem(ctx context.Context, rid uint64, raw []byte, timestamp time.Time, height uint32) {
	if m.mode != ModeAPIOnly {
		return
	}
	m.api.announceGetTransactionsItem(rid, raw, timestamp, height)
}

func (m *Manager) AnnounceGetTransactionsDone(ctx context.Context, rid uint64, success bool) {
	if m.mode != ModeAPIOnly {
		return
	}
	m.api.announceGetTransactionsDone(ctx, rid, success)
}

func (m *Manager) AnnounceSubmitTransaction(rid uint64, tx *wallet.Transaction, errCode int) {
	if m.mode != ModeAPIOnly {
		return
	}
	m.api.announceSubmitTransaction(rid, tx, errCode)
}
