package cexdex

import (
	"testing"

	"github.com/rawblock/mev-inspect-engine/internal/cex"
	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// fakeLookup reports a fixed contract type for every address, enough to
// exercise the §4.8/§4.9 hard pre-filters without a storage backend.
type fakeLookup struct {
	contractType models.ContractType
}

func (f fakeLookup) MevContractOf(models.Address) (models.Address, bool) { return models.Address{}, false }
func (f fakeLookup) ContractTypeOf(models.Address) (models.ContractType, bool) {
	return f.contractType, true
}
func (f fakeLookup) SearcherTagsOf(models.Address) models.SearcherTagCounts { return nil }
func (f fakeLookup) LabelledSearcherTypesOf(models.Address) map[models.MevType]bool { return nil }

func addr(b byte) models.Address {
	var a models.Address
	a[19] = b
	return a
}

func buildSwapBlock(tokenIn, tokenOut, pool, eoa models.Address) models.BlockTree {
	s := models.NewSwapAction(models.Swap{
		Protocol: "test", Pool: pool, From: eoa, Recipient: eoa,
		TokenIn: tokenIn, TokenOut: tokenOut,
		AmountIn: rational.FromInt64(100), AmountOut: rational.FromInt64(90),
	})
	return models.BlockTree{
		Header: models.BlockHeader{BlockNumber: 1, Timestamp: 1000},
		Txes: []models.TxRoot{
			{TxHash: models.Hash{7}, TxIndex: 0, EOA: eoa, ToAddress: pool, Root: s,
				GasDetails: models.GasDetails{PriorityFee: rational.FromInt64(1), GasUsed: rational.FromInt64(100_000), EffectiveGasPrice: rational.FromInt64(1)}},
		},
	}
}

func TestQuoteInspector_FindsUnderpricedSwap(t *testing.T) {
	tokenIn, tokenOut, pool, eoa := addr(1), addr(2), addr(3), addr(4)
	block := buildSwapBlock(tokenIn, tokenOut, pool, eoa)

	pair := models.Pair{Token0: tokenIn, Token1: tokenOut}
	quotes := map[models.Exchange]map[models.Pair][]models.CexQuote{
		models.ExchangeBinance: {
			pair: {{
				Exchange: models.ExchangeBinance, TimestampUs: 1_000_000_000,
				Price:  models.BidAsk{Bid: rational.FromInt64(1), Ask: rational.FromInt64(1)},
				Amount: models.BidAsk{Bid: rational.FromInt64(1000), Ask: rational.FromInt64(1000)},
			}},
		},
	}
	fees := models.FeeTable{Default: map[models.Exchange]models.MakerTaker{
		models.ExchangeBinance: {Maker: rational.Zero(), Taker: rational.Zero()},
	}}
	store := cex.NewQuoteStore(quotes, nil, fees)

	cfg := config.Default()
	cfg.Exchanges = []models.Exchange{models.ExchangeBinance}
	insp := NewQuoteInspector(cfg, store, nil)

	metadata := models.Metadata{
		EthPriceUsd: rational.FromInt64(2000),
		DexPrices: map[models.Address]map[int]models.DexPriceSnapshot{
			tokenOut: {0: {Before: rational.One(), After: rational.One(), Average: rational.One()}},
		},
	}

	bundles := insp.Inspect(block, metadata, 1_000_000_000)
	if len(bundles) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(bundles))
	}
	if bundles[0].Header.MevType != models.MevCexDexQuote {
		t.Errorf("MevType = %v, want CexDexQuote", bundles[0].Header.MevType)
	}
	data := bundles[0].Data.(models.CexDexQuoteData)
	if len(data.OptimalRouteLegs) != 1 {
		t.Fatalf("expected 1 optimal route leg, got %d", len(data.OptimalRouteLegs))
	}
	// dex rate = 90/100 = 0.9, cex rate = 1.0: pnl should be positive.
	if data.OptimalRouteLegs[0].PnlAsk.Sign() <= 0 {
		t.Errorf("expected positive pnl for underpriced DEX swap, got %s", data.OptimalRouteLegs[0].PnlAsk)
	}
}

func TestTradeInspector_PricesAgainstWindowTrades(t *testing.T) {
	tokenIn, tokenOut, pool, eoa := addr(1), addr(2), addr(3), addr(4)
	block := buildSwapBlock(tokenIn, tokenOut, pool, eoa)
	pair := models.Pair{Token0: tokenIn, Token1: tokenOut}

	trades := map[models.Exchange]map[models.Pair][]models.CexTrade{
		models.ExchangeBinance: {
			pair: {
				{Exchange: models.ExchangeBinance, Pair: pair, Side: models.TradeBuy, Price: rational.FromInt64(1), Amount: rational.FromInt64(200), TimestampUs: 1_000_000_000},
			},
		},
	}
	fees := models.FeeTable{Default: map[models.Exchange]models.MakerTaker{
		models.ExchangeBinance: {Maker: rational.Zero(), Taker: rational.Zero()},
	}}
	tradeStore := cex.NewTradeStore(trades, fees)
	quoteStore := cex.NewQuoteStore(nil, nil, fees)

	cfg := config.Default()
	cfg.Exchanges = []models.Exchange{models.ExchangeBinance}
	insp := NewTradeInspector(cfg, tradeStore, quoteStore, nil)

	metadata := models.Metadata{
		EthPriceUsd: rational.FromInt64(2000),
		DexPrices: map[models.Address]map[int]models.DexPriceSnapshot{
			tokenOut: {0: {Before: rational.One(), After: rational.One(), Average: rational.One()}},
		},
	}

	bundles := insp.Inspect(block, metadata, 1_000_000_000)
	if len(bundles) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(bundles))
	}
	data := bundles[0].Data.(models.CexDexTradesData)
	if len(data.OptimisticLegs) != 1 {
		t.Fatalf("expected 1 optimistic leg, got %d", len(data.OptimisticLegs))
	}
	if tradeStore.MissingPairCount() != 0 {
		t.Errorf("missing pair count should be 0, got %d", tradeStore.MissingPairCount())
	}
}

func TestQuoteInspector_SkipsSolverAndDefiAutomationContracts(t *testing.T) {
	tokenIn, tokenOut, pool, eoa := addr(1), addr(2), addr(3), addr(4)
	block := buildSwapBlock(tokenIn, tokenOut, pool, eoa)

	pair := models.Pair{Token0: tokenIn, Token1: tokenOut}
	quotes := map[models.Exchange]map[models.Pair][]models.CexQuote{
		models.ExchangeBinance: {
			pair: {{
				Exchange: models.ExchangeBinance, TimestampUs: 1_000_000_000,
				Price:  models.BidAsk{Bid: rational.FromInt64(1), Ask: rational.FromInt64(1)},
				Amount: models.BidAsk{Bid: rational.FromInt64(1000), Ask: rational.FromInt64(1000)},
			}},
		},
	}
	fees := models.FeeTable{Default: map[models.Exchange]models.MakerTaker{
		models.ExchangeBinance: {Maker: rational.Zero(), Taker: rational.Zero()},
	}}
	store := cex.NewQuoteStore(quotes, nil, fees)
	cfg := config.Default()
	cfg.Exchanges = []models.Exchange{models.ExchangeBinance}

	metadata := models.Metadata{
		EthPriceUsd: rational.FromInt64(2000),
		DexPrices: map[models.Address]map[int]models.DexPriceSnapshot{
			tokenOut: {0: {Before: rational.One(), After: rational.One(), Average: rational.One()}},
		},
	}

	for _, ct := range []models.ContractType{models.ContractTypeSolverSettlement, models.ContractTypeDefiAutomation} {
		insp := NewQuoteInspector(cfg, store, fakeLookup{contractType: ct})
		bundles := insp.Inspect(block, metadata, 1_000_000_000)
		if len(bundles) != 0 {
			t.Errorf("contract_type %v: expected hard skip, got %d bundles", ct, len(bundles))
		}
	}
}

func TestTradeInspector_SkipsDefiAutomationContracts(t *testing.T) {
	tokenIn, tokenOut, pool, eoa := addr(1), addr(2), addr(3), addr(4)
	block := buildSwapBlock(tokenIn, tokenOut, pool, eoa)
	pair := models.Pair{Token0: tokenIn, Token1: tokenOut}

	trades := map[models.Exchange]map[models.Pair][]models.CexTrade{
		models.ExchangeBinance: {
			pair: {
				{Exchange: models.ExchangeBinance, Pair: pair, Side: models.TradeBuy, Price: rational.FromInt64(1), Amount: rational.FromInt64(200), TimestampUs: 1_000_000_000},
			},
		},
	}
	fees := models.FeeTable{Default: map[models.Exchange]models.MakerTaker{
		models.ExchangeBinance: {Maker: rational.Zero(), Taker: rational.Zero()},
	}}
	tradeStore := cex.NewTradeStore(trades, fees)
	quoteStore := cex.NewQuoteStore(nil, nil, fees)
	cfg := config.Default()
	cfg.Exchanges = []models.Exchange{models.ExchangeBinance}

	metadata := models.Metadata{
		EthPriceUsd: rational.FromInt64(2000),
		DexPrices: map[models.Address]map[int]models.DexPriceSnapshot{
			tokenOut: {0: {Before: rational.One(), After: rational.One(), Average: rational.One()}},
		},
	}

	insp := NewTradeInspector(cfg, tradeStore, quoteStore, fakeLookup{contractType: models.ContractTypeDefiAutomation})
	bundles := insp.Inspect(block, metadata, 1_000_000_000)
	if len(bundles) != 0 {
		t.Fatalf("expected defi_automation hard skip, got %d bundles", len(bundles))
	}
}

func TestTradeInspector_BatchSourceYieldsRfq(t *testing.T) {
	tokenIn, tokenOut, pool, eoa := addr(1), addr(2), addr(3), addr(4)
	pair := models.Pair{Token0: tokenIn, Token1: tokenOut}

	userSwap := models.Swap{
		Protocol: "cow", Pool: pool, From: eoa, Recipient: eoa,
		TokenIn: tokenIn, TokenOut: tokenOut,
		AmountIn: rational.FromInt64(100), AmountOut: rational.FromInt64(90),
	}
	batch := &models.Action{
		Kind: models.ActionBatch,
		BatchData: &models.Batch{
			Protocol:  "cow",
			UserSwaps: []models.Swap{userSwap},
		},
	}
	block := models.BlockTree{
		Header: models.BlockHeader{BlockNumber: 1, Timestamp: 1000},
		Txes: []models.TxRoot{
			{TxHash: models.Hash{9}, TxIndex: 0, EOA: eoa, ToAddress: pool, Root: batch,
				GasDetails: models.GasDetails{PriorityFee: rational.FromInt64(1), GasUsed: rational.FromInt64(100_000), EffectiveGasPrice: rational.FromInt64(1)}},
		},
	}

	trades := map[models.Exchange]map[models.Pair][]models.CexTrade{
		models.ExchangeBinance: {
			pair: {
				{Exchange: models.ExchangeBinance, Pair: pair, Side: models.TradeBuy, Price: rational.FromInt64(1), Amount: rational.FromInt64(200), TimestampUs: 1_000_000_000},
			},
		},
	}
	fees := models.FeeTable{Default: map[models.Exchange]models.MakerTaker{
		models.ExchangeBinance: {Maker: rational.Zero(), Taker: rational.Zero()},
	}}
	tradeStore := cex.NewTradeStore(trades, fees)
	quoteStore := cex.NewQuoteStore(nil, nil, fees)
	cfg := config.Default()
	cfg.Exchanges = []models.Exchange{models.ExchangeBinance}
	insp := NewTradeInspector(cfg, tradeStore, quoteStore, nil)

	metadata := models.Metadata{
		EthPriceUsd: rational.FromInt64(2000),
		DexPrices: map[models.Address]map[int]models.DexPriceSnapshot{
			tokenOut: {0: {Before: rational.One(), After: rational.One(), Average: rational.One()}},
		},
	}

	bundles := insp.Inspect(block, metadata, 1_000_000_000)
	if len(bundles) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(bundles))
	}
	if bundles[0].Header.MevType != models.MevCexDexRfq {
		t.Errorf("MevType = %v, want CexDexRfq for a Batch-sourced bundle", bundles[0].Header.MevType)
	}
	data := bundles[0].Data.(models.CexDexTradesData)
	if !data.IsRfq {
		t.Errorf("expected IsRfq=true")
	}
	if len(data.Swaps) != 1 || data.Swaps[0] != userSwap {
		t.Errorf("expected bundle swaps to be the Batch's UserSwaps verbatim, got %+v", data.Swaps)
	}
}
