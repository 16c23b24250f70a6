// Package chainparams bundles the checkpoint table and gap-limit defaults
// that the API sync engine and peer sync adapter need to pick an initial
// scan range, independent of any specific wallet implementation.
package chainparams

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Checkpoint is a hardcoded trust anchor bundled with a network's
// parameters: a known-good (height, time, hash) triple.
type Checkpoint struct {
	Height uint32
	Time   int64
	Hash   chainhash.Hash
}

// Gap limits per the system glossary: the count of consecutive unused
// derived addresses past which a wallet stops scanning by default.
const (
	DefaultGapLimitExternal = 20
	DefaultGapLimitInternal = 10
)

// Params describes a single Bitcoin-family network for sync purposes.
type Params struct {
	Name             string
	Net              chaincfg.Params
	Checkpoints      []Checkpoint // ascending by Height
	GapLimitExternal int
	GapLimitInternal int
}

// CheckpointBefore returns the latest checkpoint whose Time is at or
// before t, or nil if none qualifies.
func (p *Params) CheckpointBefore(t int64) *Checkpoint {
	var best *Checkpoint
	for i := range p.Checkpoints {
		c := &p.Checkpoints[i]
		if c.Time <= t && (best == nil || c.Height > best.Height) {
			best = c
		}
	}
	return best
}

// CheckpointAtOrBefore returns the latest checkpoint at or before the
// given block height, or nil if none qualifies.
func (p *Params) CheckpointAtOrBefore(height uint32) *Checkpoint {
	var best *Checkpoint
	for i := range p.Checkpoints {
		c := &p.Checkpoints[i]
		if c.Height <= height && (best == nil || c.Height > best.Height) {
			best = c
		}
	}
	return best
}

func sortedCheckpoints(cs []Checkpoint) []Checkpoint {
	out := make([]Checkpoint, len(cs))
	copy(out, cs)
	sort.Slice(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out
}

// MainNet returns the checkpointed parameter set for Bitcoin mainnet.
// The checkpoint list is illustrative, not exhaustive; production
// deployments are expected to supply a fuller table.
func MainNet() *Params {
	return &Params{
		Name: "mainnet",
		Net:  chaincfg.MainNetParams,
		Checkpoints: sortedCheckpoints([]Checkpoint{
			{Height: 91722, Time: 1283219887, Hash: mustHash("000000000000000022a4e6ca07a4864cd6b9f1b8c37606c954865b3af0c973b3")},
			{Height: 210000, Time: 1354190696, Hash: mustHash("0000000000000000008f109d14267df2eb5cc68c5f78d3161ee1893438a890d3")},
			{Height: 478559, Time: 1501593374, Hash: mustHash("00000000000000000bba3b9609cf0a328335eece34e89ad58e7e7e0e3d3389a5")},
			{Height: 691719, Time: 1614599404, Hash: mustHash("000000000000000009d24a7dca475c7bd829167a21ee7bb7283e79f5cca6e168")},
		}),
		GapLimitExternal: DefaultGapLimitExternal,
		GapLimitInternal: DefaultGapLimitInternal,
	}
}

// TestNet3 returns the checkpointed parameter set for Bitcoin testnet3.
func TestNet3() *Params {
	return &Params{
		Name: "testnet3",
		Net:  chaincfg.TestNet3Params,
		Checkpoints: sortedCheckpoints([]Checkpoint{
			{Height: 546, Time: 1337966069, Hash: mustHash("000000000000000094e06128d84aff49382966030381a416d88712fb3d2afab1")},
		}),
		GapLimitExternal: DefaultGapLimitExternal,
		GapLimitInternal: DefaultGapLimitInternal,
	}
}

func mustHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		// Checkpoint tables are compiled in; a malformed literal is a
		// build-time bug, not a runtime condition.
		panic("chainparams: invalid checkpoint hash literal: " + s)
	}
	return *h
}
