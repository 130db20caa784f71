package engine

import (
	"context"
	"testing"

	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/internal/shadow"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// fakeStore is a no-op Reader + a recording Writer, enough to exercise
// Engine.ProcessBlock without a live database.
type fakeStore struct {
	savedBundles []models.Bundle
	savedBlock   uint64
}

func (f *fakeStore) ProtocolDetails(ctx context.Context, pool models.Address) (string, bool, error) {
	return "", false, nil
}
func (f *fakeStore) TokenInfo(ctx context.Context, token models.Address) (models.TokenInfo, bool, error) {
	return models.TokenInfo{}, false, nil
}
func (f *fakeStore) SearcherEoaInfo(ctx context.Context, eoa models.Address) (models.SearcherTagCounts, map[models.MevType]bool, error) {
	return nil, nil, nil
}
func (f *fakeStore) SearcherContractInfo(ctx context.Context, contract models.Address) (models.Address, models.ContractType, bool, error) {
	return models.ZeroAddress, models.ContractTypeUnknown, false, nil
}
func (f *fakeStore) AddressMeta(ctx context.Context, addr models.Address) (models.AddressMetadata, bool, error) {
	return models.AddressMetadata{}, false, nil
}
func (f *fakeStore) BuilderInfo(ctx context.Context, blockNumber uint64) (models.RelayInfo, bool, error) {
	return models.RelayInfo{}, false, nil
}
func (f *fakeStore) MevBundles(ctx context.Context, fromBlock, toBlock uint64) ([]models.BundleHeader, error) {
	return nil, nil
}
func (f *fakeStore) MevBundlesByEOA(ctx context.Context, eoa models.Address, limit int) ([]models.BundleHeader, error) {
	return nil, nil
}
func (f *fakeStore) WriteSearcherInfo(ctx context.Context, eoa models.Address, tags models.SearcherTagCounts, labelled map[models.MevType]bool) error {
	return nil
}
func (f *fakeStore) WriteAddressMeta(ctx context.Context, addr models.Address, meta models.AddressMetadata) error {
	return nil
}
func (f *fakeStore) SaveMevBlocks(ctx context.Context, blockNumber uint64, bundles []models.Bundle) error {
	f.savedBlock = blockNumber
	f.savedBundles = bundles
	return nil
}
func (f *fakeStore) WriteDexQuotes(ctx context.Context, token models.Address, txIndex int, snapshot models.DexPriceSnapshot) error {
	return nil
}
func (f *fakeStore) WriteTokenInfo(ctx context.Context, info models.TokenInfo) error { return nil }
func (f *fakeStore) InsertPool(ctx context.Context, pool models.Address, protocol string, token0, token1 models.Address) error {
	return nil
}
func (f *fakeStore) SaveTraces(ctx context.Context, block models.BlockTree) error { return nil }
func (f *fakeStore) WriteBuilderInfo(ctx context.Context, blockNumber uint64, info models.RelayInfo) error {
	return nil
}
func (f *fakeStore) WriteBlockAnalysis(ctx context.Context, blockNumber uint64, bundleCount int, missingPairCount int64) error {
	return nil
}

func addr(b byte) models.Address {
	var a models.Address
	a[19] = b
	return a
}

func swapAction(pool, from, to, tokenIn, tokenOut models.Address, in, out int64) *models.Action {
	return models.NewSwapAction(models.Swap{
		Protocol: "test", Pool: pool, From: from, Recipient: to,
		TokenIn: tokenIn, TokenOut: tokenOut,
		AmountIn: rational.FromInt64(in), AmountOut: rational.FromInt64(out),
	})
}

func gasDetails(priorityFee int64) models.GasDetails {
	return models.GasDetails{
		PriorityFee:       rational.FromInt64(priorityFee),
		GasUsed:           rational.FromInt64(100_000),
		EffectiveGasPrice: rational.FromInt64(1),
	}
}

func buildSandwichBlock() models.BlockTree {
	searcher, victim, pool := addr(1), addr(2), addr(3)
	tokenX, tokenY := addr(4), addr(5)

	return models.BlockTree{
		Header: models.BlockHeader{BlockNumber: 42},
		Txes: []models.TxRoot{
			{TxHash: models.Hash{1}, TxIndex: 0, EOA: searcher, ToAddress: pool,
				Root: swapAction(pool, searcher, searcher, tokenX, tokenY, 100, 90), GasDetails: gasDetails(2)},
			{TxHash: models.Hash{2}, TxIndex: 1, EOA: victim, ToAddress: pool,
				Root: swapAction(pool, victim, victim, tokenX, tokenY, 50, 40), GasDetails: gasDetails(1)},
			{TxHash: models.Hash{3}, TxIndex: 2, EOA: searcher, ToAddress: pool,
				Root: swapAction(pool, searcher, searcher, tokenY, tokenX, 90, 110), GasDetails: gasDetails(1)},
		},
	}
}

func buildMetadata() models.Metadata {
	tokenX, tokenY := addr(4), addr(5)
	snap := func(v int64) models.DexPriceSnapshot {
		p := rational.FromInt64(v)
		return models.DexPriceSnapshot{Before: p, After: p, Average: p}
	}
	return models.Metadata{
		EthPriceUsd: rational.FromInt64(2000),
		DexPrices: map[models.Address]map[int]models.DexPriceSnapshot{
			tokenX: {0: snap(1), 1: snap(1), 2: snap(1)},
			tokenY: {0: snap(1), 1: snap(1), 2: snap(1)},
		},
	}
}

func TestProcessBlock_RunsInspectorsAndPersists(t *testing.T) {
	store := &fakeStore{}
	e := New(config.Default(), store, nil, nil, nil)

	accepted, err := e.ProcessBlock(context.Background(), buildSandwichBlock(), buildMetadata())
	if err != nil {
		t.Fatalf("ProcessBlock error: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected 1 accepted bundle, got %d: %+v", len(accepted), accepted)
	}
	if accepted[0].Header.MevType != models.MevSandwich {
		t.Errorf("MevType = %v, want Sandwich", accepted[0].Header.MevType)
	}
	if store.savedBlock != 42 || len(store.savedBundles) != 1 {
		t.Errorf("expected SaveMevBlocks called with block 42 and 1 bundle, got block=%d bundles=%d", store.savedBlock, len(store.savedBundles))
	}

	progress := e.Progress()
	if progress.TotalBlocks != 1 || progress.TotalBundles != 1 {
		t.Errorf("unexpected progress: %+v", progress)
	}
}

func TestProcessBlock_ShadowRunnerEvaluatesCandidatesWithoutAffectingOutput(t *testing.T) {
	store := &fakeStore{}
	e := New(config.Default(), store, nil, nil, nil)

	shadowCfg := config.Default()
	shadowCfg.FilterThreshold = 1000 // deliberately stricter than production
	e.SetShadowRunner(shadow.NewShadowRunner(nil, 1, config.Default(), shadowCfg))

	accepted, err := e.ProcessBlock(context.Background(), buildSandwichBlock(), buildMetadata())
	if err != nil {
		t.Fatalf("ProcessBlock error: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("shadow comparison should not change the production accept set, got %d bundles", len(accepted))
	}
}

func TestProcessBlock_EmptyBlockNoBundles(t *testing.T) {
	store := &fakeStore{}
	e := New(config.Default(), store, nil, nil, nil)

	block := models.BlockTree{Header: models.BlockHeader{BlockNumber: 7}}
	accepted, err := e.ProcessBlock(context.Background(), block, models.Metadata{})
	if err != nil {
		t.Fatalf("ProcessBlock error: %v", err)
	}
	if len(accepted) != 0 {
		t.Fatalf("expected no bundles for an empty block, got %d", len(accepted))
	}
}
