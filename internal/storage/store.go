// Package storage defines the read/write collaborator contracts the
// engine needs from persistent storage (spec.md §6 EXTERNAL INTERFACES),
// and a Postgres-backed implementation.
package storage

import (
	"context"

	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// Reader is every read-side lookup an inspector or the sanity layer needs.
type Reader interface {
	// ProtocolDetails returns the protocol name registered for a pool
	// address (e.g. "uniswap_v3"), false if unregistered.
	ProtocolDetails(ctx context.Context, pool models.Address) (string, bool, error)

	// TokenInfo returns decimals/symbol metadata for a token address.
	TokenInfo(ctx context.Context, token models.Address) (models.TokenInfo, bool, error)

	// SearcherEoaInfo returns the historical tag counts and allow-list
	// membership recorded against an EOA.
	SearcherEoaInfo(ctx context.Context, eoa models.Address) (models.SearcherTagCounts, map[models.MevType]bool, error)

	// SearcherContractInfo returns the mev-contract attribution and
	// contract-type classification recorded for a contract address.
	SearcherContractInfo(ctx context.Context, contract models.Address) (mevContract models.Address, contractType models.ContractType, found bool, err error)

	// AddressMeta returns the label-table entry for addr.
	AddressMeta(ctx context.Context, addr models.Address) (models.AddressMetadata, bool, error)

	// BuilderInfo returns the relay/builder metadata for a block.
	BuilderInfo(ctx context.Context, blockNumber uint64) (models.RelayInfo, bool, error)

	// MevBundles returns every persisted bundle header in
	// [fromBlock, toBlock], ascending by block number then tx index.
	MevBundles(ctx context.Context, fromBlock, toBlock uint64) ([]models.BundleHeader, error)

	// MevBundlesByEOA returns every persisted bundle header for eoa,
	// most recent block first, capped at limit rows.
	MevBundlesByEOA(ctx context.Context, eoa models.Address, limit int) ([]models.BundleHeader, error)
}

// Writer is every persistence operation the engine performs after
// classifying a block.
type Writer interface {
	WriteSearcherInfo(ctx context.Context, eoa models.Address, tags models.SearcherTagCounts, labelled map[models.MevType]bool) error
	WriteAddressMeta(ctx context.Context, addr models.Address, meta models.AddressMetadata) error
	SaveMevBlocks(ctx context.Context, blockNumber uint64, bundles []models.Bundle) error
	WriteDexQuotes(ctx context.Context, token models.Address, txIndex int, snapshot models.DexPriceSnapshot) error
	WriteTokenInfo(ctx context.Context, info models.TokenInfo) error
	InsertPool(ctx context.Context, pool models.Address, protocol string, token0, token1 models.Address) error
	SaveTraces(ctx context.Context, block models.BlockTree) error
	WriteBuilderInfo(ctx context.Context, blockNumber uint64, info models.RelayInfo) error
	WriteBlockAnalysis(ctx context.Context, blockNumber uint64, bundleCount int, missingPairCount int64) error
}

// Store combines Reader and Writer; a PostgresStore satisfies both.
type Store interface {
	Reader
	Writer
}
