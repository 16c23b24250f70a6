// Package walletsync keeps a wallet's view of transaction history and
// block height consistent with an external Bitcoin-family network. It
// hides two synchronization strategies — an API-driven scan against a
// remote indexer, and peer-to-peer SPV sync via a delegated peer manager
// — behind a single Manager.
package walletsync

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/wildwes357/walletsyncd/internal/peermgr"
	"github.com/wildwes357/walletsyncd/internal/wallet"
)

// Numeric constants fixed by the system this module implements.
const (
	// ConfirmationBlockCount is how many blocks below the network height
	// a send transaction must be to count as confirmed for scan-depth
	// purposes.
	ConfirmationBlockCount = 6

	// BRDSyncDaysOffset and MinutesPerBlock derive the width, in blocks,
	// of what counts as a "full scan" versus a narrow rescan.
	BRDSyncDaysOffset = 1
	MinutesPerBlock   = 10
	// BRDSyncStartBlockOffset is one day of blocks at 10-minute spacing.
	BRDSyncStartBlockOffset = uint32(BRDSyncDaysOffset * 24 * 60 / MinutesPerBlock)

	OneWeekInSeconds = 7 * 24 * 60 * 60
)

// Mode selects which synchronization strategy a Manager uses. The mode
// is fixed at construction and never changes for the life of a Manager.
type Mode int

const (
	ModeAPIOnly Mode = iota
	ModeP2POnly
)

func (m Mode) String() string {
	if m == ModeP2POnly {
		return "p2p"
	}
	return "api"
}

// ScanDepth selects how far back ScanToDepth should reset synced state.
type ScanDepth int

const (
	ScanDepthLow ScanDepth = iota
	ScanDepthMedium
	ScanDepthHigh
)

// EventKind discriminates the Event union.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventSyncStarted
	EventSyncProgress
	EventSyncStopped
	EventBlockHeightUpdated
	EventTxnSubmitted
	EventTxnsUpdated
	EventSetBlocks
	EventAddBlocks
	EventSetPeers
	EventAddPeers
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventSyncStarted:
		return "SYNC_STARTED"
	case EventSyncProgress:
		return "SYNC_PROGRESS"
	case EventSyncStopped:
		return "SYNC_STOPPED"
	case EventBlockHeightUpdated:
		return "BLOCK_HEIGHT_UPDATED"
	case EventTxnSubmitted:
		return "TXN_SUBMITTED"
	case EventTxnsUpdated:
		return "TXNS_UPDATED"
	case EventSetBlocks:
		return "SET_BLOCKS"
	case EventAddBlocks:
		return "ADD_BLOCKS"
	case EventSetPeers:
		return "SET_PEERS"
	case EventAddPeers:
		return "ADD_PEERS"
	default:
		return "UNKNOWN"
	}
}

// Event is the single discriminated union emitted by a Manager for every
// lifecycle transition. It always carries the emitting Manager so an
// owner juggling several managers can tell them apart.
type Event struct {
	Manager   *Manager
	Kind      EventKind
	Timestamp time.Time           // SYNC_PROGRESS
	Percent   float64             // SYNC_PROGRESS, 0..100
	ErrorCode int                 // SYNC_STOPPED: 0 success, negative error
	Height    uint32              // BLOCK_HEIGHT_UPDATED
	Tx        *wallet.Transaction  // TXN_SUBMITTED
	Err       error                // TXN_SUBMITTED
	Blocks    []peermgr.BlockHeader // SET_BLOCKS/ADD_BLOCKS
	Peers     []peermgr.PeerAddress // SET_PEERS/ADD_PEERS
}

// EventCallback receives every event a Manager emits. It must not block
// for long and must not call back into the Manager synchronously while
// holding its own lock, since events are emitted while the Manager's
// internal lock is held.
type EventCallback func(Event)

// Client is the API-mode indexer collaborator. Each method must
// eventually invoke the matching Announce* entry point on mgr with the
// same rid — possibly asynchronously, from any goroutine.
type Client interface {
	GetBlockNumber(ctx context.Context, mgr *Manager, rid uint64)
	GetTransactions(ctx context.Context, mgr *Manager, addresses []string, begHeight, endHeight uint32, rid uint64)
	SubmitTransaction(ctx context.Context, mgr *Manager, raw []byte, txHash chainhash.Hash, rid uint64)
}
