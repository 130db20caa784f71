package jit

import (
	"testing"

	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

func addr(b byte) models.Address {
	var a models.Address
	a[19] = b
	return a
}

func gasDetails(priorityFee int64) models.GasDetails {
	return models.GasDetails{
		PriorityFee:       rational.FromInt64(priorityFee),
		GasUsed:           rational.FromInt64(100_000),
		EffectiveGasPrice: rational.FromInt64(1),
	}
}

func buildJitBlock() models.BlockTree {
	searcher := addr(1)
	victim := addr(2)
	pool := addr(3)
	tokenX, tokenY := addr(4), addr(5)

	mint := models.Mint{
		Pool: pool, From: searcher,
		Tokens:     []models.Address{tokenX, tokenY},
		Amounts:    []models.Amount{rational.FromInt64(1000), rational.FromInt64(1000)},
		TraceIndex: 0,
	}
	burn := models.Burn{
		Pool: pool, From: searcher, Recipient: searcher,
		Tokens:     []models.Address{tokenX, tokenY},
		Amounts:    []models.Amount{rational.FromInt64(1010), rational.FromInt64(990)},
		TraceIndex: 0,
	}
	victimSwap := models.NewSwapAction(models.Swap{
		Protocol: "test", Pool: pool, From: victim, Recipient: victim,
		TokenIn: tokenX, TokenOut: tokenY,
		AmountIn: rational.FromInt64(100), AmountOut: rational.FromInt64(90),
	})

	return models.BlockTree{
		Header: models.BlockHeader{BlockNumber: 1},
		Txes: []models.TxRoot{
			{TxHash: models.Hash{1}, TxIndex: 0, EOA: searcher, ToAddress: pool,
				Root: models.NewMintAction(mint), GasDetails: gasDetails(2)},
			{TxHash: models.Hash{2}, TxIndex: 1, EOA: victim, ToAddress: pool,
				Root: victimSwap, GasDetails: gasDetails(1)},
			{TxHash: models.Hash{3}, TxIndex: 2, EOA: searcher, ToAddress: pool,
				Root: models.NewBurnAction(burn), GasDetails: gasDetails(1)},
		},
	}
}

func buildMetadata() models.Metadata {
	return models.Metadata{EthPriceUsd: rational.FromInt64(2000)}
}

func TestInspect_FindsJit(t *testing.T) {
	block := buildJitBlock()
	insp := New(config.Default(), nil)

	bundles := insp.Inspect(block, buildMetadata())
	if len(bundles) != 1 {
		t.Fatalf("expected exactly 1 JIT bundle, got %d", len(bundles))
	}
	data, ok := bundles[0].Data.(models.JitData)
	if !ok {
		t.Fatalf("Data is %T, want JitData", bundles[0].Data)
	}
	if len(data.VictimTxHashes) != 1 || data.VictimTxHashes[0] != (models.Hash{2}) {
		t.Errorf("unexpected victim hashes: %v", data.VictimTxHashes)
	}
	if data.BackrunTxHash != (models.Hash{3}) {
		t.Errorf("backrun hash = %v, want tx 3", data.BackrunTxHash)
	}
}

func TestInspect_NoCandidateWithoutMintBurnPair(t *testing.T) {
	searcher := addr(1)
	pool := addr(3)
	tokenX, tokenY := addr(4), addr(5)
	swap := func(from models.Address, in, out int64) *models.Action {
		return models.NewSwapAction(models.Swap{
			Protocol: "test", Pool: pool, From: from, Recipient: from,
			TokenIn: tokenX, TokenOut: tokenY,
			AmountIn: rational.FromInt64(in), AmountOut: rational.FromInt64(out),
		})
	}
	block := models.BlockTree{
		Header: models.BlockHeader{BlockNumber: 1},
		Txes: []models.TxRoot{
			{TxHash: models.Hash{1}, TxIndex: 0, EOA: searcher, ToAddress: pool, Root: swap(searcher, 100, 90), GasDetails: gasDetails(1)},
			{TxHash: models.Hash{2}, TxIndex: 1, EOA: searcher, ToAddress: pool, Root: swap(searcher, 90, 80), GasDetails: gasDetails(1)},
		},
	}
	insp := New(config.Default(), nil)
	bundles := insp.Inspect(block, buildMetadata())
	if len(bundles) != 0 {
		t.Fatalf("expected no JIT bundles without a mint/burn pair, got %d", len(bundles))
	}
}
