package walletsync

import (
	"time"

	"github.com/wildwes357/walletsyncd/internal/walletsync/addrset"
)

// scanState is the per-scan record for an in-progress API-mode scan. A
// nil *scanState on the engine means idle; this replaces the original
// design's "requestId == 0 means idle" convention (fragile: a zero rid is
// a valid value in plenty of counters) with Go's ordinary nil-pointer
// optionality.
type scanState struct {
	requestId uint64

	begBlockNumber uint32
	endBlockNumber uint32 // half-open range [beg, end)

	isFullScan bool

	known *addrset.Tracker

	lastExternalAddress string
	lastInternalAddress string

	issuedAt time.Time
}

func newScanState(rid uint64, beg, end uint32, known []string) *scanState {
	return &scanState{
		requestId:      rid,
		begBlockNumber: beg,
		endBlockNumber: end,
		isFullScan:     end-beg > BRDSyncStartBlockOffset,
		known:          addrset.NewFrom(known),
		issuedAt:       time.Now(),
	}
}
