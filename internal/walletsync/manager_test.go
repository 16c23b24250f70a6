package walletsync

import (
	"context"
	"testing"
	"time"

	"github.com/wildwes357/walletsyncd/internal/wallet"
)

func TestManagerModeReflectsConstructor(t *testing.T) {
	api := NewAPIManager(APIManagerConfig{
		Params:  testParams(),
		Wallet:  wallet.NewMemWallet(2, 1),
		OnEvent: func(Event) {},
		Client:  &fakeClient{},
		Codec:   fakeCodec{},
	})
	if api.Mode() != ModeAPIOnly {
		t.Fatalf("expected ModeAPIOnly, got %v", api.Mode())
	}

	peer := NewPeerManager(PeerManagerConfig{
		PeerManager: &fakePeerManager{},
		Wallet:      wallet.NewMemWallet(2, 1),
		Params:      testParams(),
		OnEvent:     func(Event) {},
	})
	if peer.Mode() != ModeP2POnly {
		t.Fatalf("expected ModeP2POnly, got %v", peer.Mode())
	}
}

// TestManagerAnnounceMethodsAreNoOpsInPeerMode guards the routing rule:
// a Client happening to hold a peer-mode Manager must not be able to
// drive its event stream through the Announce* back door.
func TestManagerAnnounceMethodsAreNoOpsInPeerMode(t *testing.T) {
	rec := &eventRecorder{}
	peer := NewPeerManager(PeerManagerConfig{
		PeerManager: &fakePeerManager{},
		Wallet:      wallet.NewMemWallet(2, 1),
		Params:      testParams(),
		OnEvent:     rec.callback(),
	})

	peer.AnnounceGetBlockNumber(1, 100)
	peer.AnnounceGetTransactionsItem(context.Background(), 1, nil, time.Time{}, 0)
	peer.AnnounceGetTransactionsDone(context.Background(), 1, true)
	peer.AnnounceSubmitTransaction(1, &wallet.Transaction{}, 0)

	if len(rec.kinds()) != 0 {
		t.Fatalf("expected no events from Announce* calls in peer mode, got %v", rec.kinds())
	}
}

func TestManagerBlockHeightTracksMode(t *testing.T) {
	client := &fakeClient{height: 555}
	api := NewAPIManager(APIManagerConfig{
		Params:           testParams(),
		Wallet:           wallet.NewMemWallet(2, 1),
		OnEvent:          func(Event) {},
		Client:           client,
		Codec:            fakeCodec{},
		AdvertisedHeight: 555,
	})
	if err := api.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if api.BlockHeight() != 555 {
		t.Fatalf("expected block height 555, got %d", api.BlockHeight())
	}
}
