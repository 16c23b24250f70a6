// Package peermgr abstracts the low-level peer manager the Peer Sync
// Adapter drives: a black-box SPV-style network client that connects to
// peers, rescans from a height, publishes transactions, and reports sync
// progress and block/peer updates through callbacks. Wire-level protocol
// work (handshakes, inventory, header validation) lives in the peer
// manager itself, not here.
package peermgr

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/wildwes357/walletsyncd/internal/wallet"
)

// BlockHeader is the minimal block-header payload carried by block-store
// notifications.
type BlockHeader struct {
	Hash   chainhash.Hash
	Height uint32
}

// PeerAddress is the minimal peer payload carried by peer-store
// notifications.
type PeerAddress struct {
	Address string
	Port    uint16
}

// Manager is the capability set a Peer Sync Adapter consumes from the
// underlying peer manager.
type Manager interface {
	// SetNotifiee registers the callback sink the manager invokes on its
	// own goroutines as network events occur. Must be called before
	// Connect.
	SetNotifiee(n Notifiee)

	Connect(ctx context.Context) error
	Disconnect() error

	// Rescan asks the peer manager to re-derive its sync state starting
	// at fromHeight, without tearing down existing peer connections.
	Rescan(fromHeight uint32)

	// Publish hands tx to the peer manager for network announcement.
	// Publish itself only reports synchronous failures (e.g. no connected
	// peers); successful queuing is followed by an asynchronous
	// OnTxPublished callback once the manager has flushed the message to
	// its peers.
	Publish(ctx context.Context, tx *wallet.Transaction) error

	// SyncProgress reports the current scan completion percentage (0..100)
	// and the timestamp of the most recently processed block.
	SyncProgress() (percent float64, ts time.Time)

	IsConnected() bool
}

// Notifiee receives peer-manager callbacks. Every method may be invoked
// concurrently, on whichever goroutine the peer manager's own thread
// pool uses; implementations (the Peer Sync Adapter) are responsible for
// their own locking.
type Notifiee interface {
	OnSyncStarted()
	OnSyncStopped(reason int)
	OnTxStatusUpdate(newBlockHeight uint32)
	OnTxPublished(txHash chainhash.Hash, err error)
	OnSaveBlocks(replace bool, blocks []BlockHeader)
	OnSavePeers(replace bool, peers []PeerAddress)

	// OnNetworkIsReachable is polled by the peer manager before
	// attempting reconnection.
	OnNetworkIsReachable() bool
}
