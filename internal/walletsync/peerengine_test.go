package walletsync

import (
	"context"
	"testing"
	"time"

	"github.com/wildwes357/walletsyncd/internal/wallet"
)

func TestPeerManagerConnectEmitsConnectedThenStarted(t *testing.T) {
	rec := &eventRecorder{}
	pm := &fakePeerManager{}
	wal := wallet.NewMemWallet(2, 1)

	mgr := NewPeerManager(PeerManagerConfig{
		PeerManager: pm,
		Wallet:      wal,
		Params:      testParams(),
		OnEvent:     rec.callback(),
	})

	if err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	kinds := rec.kinds()
	expectSubsequence(t, kinds, EventConnected, EventSyncStarted)
	if count(kinds, EventSyncStopped) != 0 {
		t.Fatalf("did not expect SYNC_STOPPED on first connect, got %v", kinds)
	}
}

// TestPeerManagerSyncStartedWhileAlreadyFullScan exercises the
// already-connected, already-scanning case: a fresh SYNC_STARTED must
// not be preceded by a second CONNECTED.
func TestPeerManagerSyncStartedWhileAlreadyFullScan(t *testing.T) {
	rec := &eventRecorder{}
	pm := &fakePeerManager{}
	wal := wallet.NewMemWallet(2, 1)

	mgr := NewPeerManager(PeerManagerConfig{
		PeerManager: pm,
		Wallet:      wal,
		Params:      testParams(),
		OnEvent:     rec.callback(),
	})

	if err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	rec.reset()

	// A second OnSyncStarted while already connected and mid-scan, as
	// happens when the peer manager restarts its scan without a prior
	// disconnect.
	if err := pm.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	kinds := rec.kinds()
	expectSubsequence(t, kinds, EventSyncStopped, EventSyncStarted)
	if count(kinds, EventConnected) != 0 {
		t.Fatalf("did not expect a second CONNECTED, got %v", kinds)
	}
	if rec.all()[0].ErrorCode != -1 {
		t.Fatalf("expected the interrupting SYNC_STOPPED to carry error code -1, got %+v", rec.all()[0])
	}
}

func TestPeerManagerDisconnectEmitsStoppedThenDisconnected(t *testing.T) {
	rec := &eventRecorder{}
	pm := &fakePeerManager{}
	wal := wallet.NewMemWallet(2, 1)

	mgr := NewPeerManager(PeerManagerConfig{
		PeerManager: pm,
		Wallet:      wal,
		Params:      testParams(),
		OnEvent:     rec.callback(),
	})
	if err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	rec.reset()

	if err := mgr.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	kinds := rec.kinds()
	expectSubsequence(t, kinds, EventSyncStopped, EventDisconnected)
	if rec.all()[0].ErrorCode != 0 {
		t.Fatalf("expected a clean SYNC_STOPPED, got %+v", rec.all()[0])
	}
}

func TestPeerManagerScanToDepthSelectsRescanFloor(t *testing.T) {
	rec := &eventRecorder{}
	pm := &fakePeerManager{}
	wal := wallet.NewMemWallet(2, 1)

	mgr := NewPeerManager(PeerManagerConfig{
		PeerManager: pm,
		Wallet:      wal,
		Params:      testParams(),
		OnEvent:     rec.callback(),
	})

	if err := mgr.ScanToDepth(context.Background(), ScanDepthHigh); err != nil {
		t.Fatalf("ScanToDepth high: %v", err)
	}
	if err := mgr.ScanToDepth(context.Background(), ScanDepthMedium); err != nil {
		t.Fatalf("ScanToDepth medium: %v", err)
	}

	if len(pm.rescans) != 2 {
		t.Fatalf("expected two Rescan calls, got %v", pm.rescans)
	}
	if pm.rescans[0] != 0 {
		t.Fatalf("expected a full rescan from genesis, got %d", pm.rescans[0])
	}
}

func TestPeerManagerSubmitEmitsOnPublishCallback(t *testing.T) {
	rec := &eventRecorder{}
	pm := &fakePeerManager{}
	wal := wallet.NewMemWallet(2, 1)

	mgr := NewPeerManager(PeerManagerConfig{
		PeerManager: pm,
		Wallet:      wal,
		Params:      testParams(),
		OnEvent:     rec.callback(),
	})

	tx := &wallet.Transaction{Hash: hashFromByte(1), Signed: true, AmountSent: 10}
	wal.RegisterTransaction(tx)

	if err := mgr.Submit(context.Background(), tx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	kinds := rec.kinds()
	if len(kinds) != 1 || kinds[0] != EventTxnSubmitted {
		t.Fatalf("expected a single TXN_SUBMITTED, got %v", kinds)
	}
	if got := rec.all()[0]; got.ErrorCode != 0 || got.Tx == nil || got.Tx.Hash != tx.Hash {
		t.Fatalf("unexpected submit event: %+v", got)
	}
}

func TestPeerManagerTickTockEmitsProgressOnlyWhileFullScanning(t *testing.T) {
	rec := &eventRecorder{}
	pm := &fakePeerManager{progress: 42, progressAt: time.Now()}
	wal := wallet.NewMemWallet(2, 1)

	mgr := NewPeerManager(PeerManagerConfig{
		PeerManager: pm,
		Wallet:      wal,
		Params:      testParams(),
		OnEvent:     rec.callback(),
	})

	// Not connected yet: no progress event.
	mgr.TickTock(context.Background())
	if len(rec.kinds()) != 0 {
		t.Fatalf("expected no events before connect, got %v", rec.kinds())
	}

	if err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	rec.reset()

	mgr.TickTock(context.Background())
	kinds := rec.kinds()
	if len(kinds) != 1 || kinds[0] != EventSyncProgress {
		t.Fatalf("expected a single SYNC_PROGRESS, got %v", kinds)
	}
	if got := rec.all()[0]; got.Percent != 42 {
		t.Fatalf("expected percent 42, got %v", got.Percent)
	}
}
