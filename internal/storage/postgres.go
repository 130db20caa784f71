package storage

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// PostgresStore is the Postgres-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}
	log.Println("Successfully connected to PostgreSQL for MEV inspection engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/storage/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}
	if _, err := s.pool.Exec(context.Background(), string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}
	log.Println("MEV inspection schema initialized")
	return nil
}

// GetPool exposes the connection pool for the shadow runner and metrics harness.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}

func amountToNumeric(a models.Amount) string {
	return a.String()
}

// ProtocolDetails implements Reader.
func (s *PostgresStore) ProtocolDetails(ctx context.Context, pool models.Address) (string, bool, error) {
	var protocol string
	err := s.pool.QueryRow(ctx, `SELECT protocol FROM pools WHERE address = $1`, pool.String()).Scan(&protocol)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return protocol, true, nil
}

// TokenInfo implements Reader.
func (s *PostgresStore) TokenInfo(ctx context.Context, token models.Address) (models.TokenInfo, bool, error) {
	var decimals int16
	var symbol string
	err := s.pool.QueryRow(ctx, `SELECT decimals, symbol FROM tokens WHERE address = $1`, token.String()).Scan(&decimals, &symbol)
	if err == pgx.ErrNoRows {
		return models.TokenInfo{}, false, nil
	}
	if err != nil {
		return models.TokenInfo{}, false, err
	}
	return models.TokenInfo{Address: token, Decimals: uint8(decimals), Symbol: symbol}, true, nil
}

// SearcherEoaInfo implements Reader.
func (s *PostgresStore) SearcherEoaInfo(ctx context.Context, eoa models.Address) (models.SearcherTagCounts, map[models.MevType]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT mev_type, tag_count, is_labelled FROM searcher_eoa_tags WHERE eoa = $1`, eoa.String())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	tags := make(models.SearcherTagCounts)
	labelled := make(map[models.MevType]bool)
	for rows.Next() {
		var mevType int
		var count int
		var isLabelled bool
		if err := rows.Scan(&mevType, &count, &isLabelled); err != nil {
			return nil, nil, err
		}
		tags[models.MevType(mevType)] = count
		if isLabelled {
			labelled[models.MevType(mevType)] = true
		}
	}
	return tags, labelled, rows.Err()
}

// SearcherContractInfo implements Reader.
func (s *PostgresStore) SearcherContractInfo(ctx context.Context, contract models.Address) (models.Address, models.ContractType, bool, error) {
	var mevContractHex string
	var contractType int
	err := s.pool.QueryRow(ctx,
		`SELECT mev_contract, contract_type FROM searcher_contracts WHERE contract = $1`,
		contract.String(),
	).Scan(&mevContractHex, &contractType)
	if err == pgx.ErrNoRows {
		return models.ZeroAddress, models.ContractTypeUnknown, false, nil
	}
	if err != nil {
		return models.ZeroAddress, models.ContractTypeUnknown, false, err
	}
	mevContract, err := models.AddressFromHex(mevContractHex)
	if err != nil {
		return models.ZeroAddress, models.ContractTypeUnknown, false, err
	}
	return mevContract, models.ContractType(contractType), true, nil
}

// AddressMeta implements Reader.
func (s *PostgresStore) AddressMeta(ctx context.Context, addr models.Address) (models.AddressMetadata, bool, error) {
	var fundTag string
	var isExchange bool
	var contractType *int
	err := s.pool.QueryRow(ctx,
		`SELECT fund_tag, is_exchange, contract_type FROM address_labels WHERE address = $1`,
		addr.String(),
	).Scan(&fundTag, &isExchange, &contractType)
	if err == pgx.ErrNoRows {
		return models.AddressMetadata{}, false, nil
	}
	if err != nil {
		return models.AddressMetadata{}, false, err
	}
	meta := models.AddressMetadata{FundTag: fundTag, IsExchange: isExchange}
	if contractType != nil {
		ct := models.ContractType(*contractType)
		meta.ContractType = &ct
	}
	return meta, true, nil
}

// BuilderInfo implements Reader.
func (s *PostgresStore) BuilderInfo(ctx context.Context, blockNumber uint64) (models.RelayInfo, bool, error) {
	var builderHex, relayName string
	err := s.pool.QueryRow(ctx,
		`SELECT builder_address, relay_name FROM block_builders WHERE block_number = $1`,
		blockNumber,
	).Scan(&builderHex, &relayName)
	if err == pgx.ErrNoRows {
		return models.RelayInfo{}, false, nil
	}
	if err != nil {
		return models.RelayInfo{}, false, err
	}
	builder, err := models.AddressFromHex(builderHex)
	if err != nil {
		return models.RelayInfo{}, false, err
	}
	return models.RelayInfo{BuilderAddress: builder, RelayName: relayName}, true, nil
}

// MevBundles implements Reader.
func (s *PostgresStore) MevBundles(ctx context.Context, fromBlock, toBlock uint64) ([]models.BundleHeader, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT block_number, tx_index, eoa, mev_contract, mev_type, profit_usd, bribe_usd, fund_tag, no_pricing
		FROM mev_bundles
		WHERE block_number BETWEEN $1 AND $2
		ORDER BY block_number, tx_index
	`, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBundleHeaders(rows)
}

// MevBundlesByEOA implements Reader.
func (s *PostgresStore) MevBundlesByEOA(ctx context.Context, eoa models.Address, limit int) ([]models.BundleHeader, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT block_number, tx_index, eoa, mev_contract, mev_type, profit_usd, bribe_usd, fund_tag, no_pricing
		FROM mev_bundles
		WHERE eoa = $1
		ORDER BY block_number DESC, tx_index DESC
		LIMIT $2
	`, eoa.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBundleHeaders(rows)
}

func scanBundleHeaders(rows pgx.Rows) ([]models.BundleHeader, error) {
	var out []models.BundleHeader
	for rows.Next() {
		var blockNumber uint64
		var txIndex, mevType int
		var eoaHex string
		var mevContractHex *string
		var profitUsd, bribeUsd, fundTag string
		var noPricing bool
		if err := rows.Scan(&blockNumber, &txIndex, &eoaHex, &mevContractHex, &mevType, &profitUsd, &bribeUsd, &fundTag, &noPricing); err != nil {
			return nil, err
		}
		eoa, err := models.AddressFromHex(eoaHex)
		if err != nil {
			return nil, err
		}
		header := models.BundleHeader{
			BlockNumber:   blockNumber,
			TxIndex:       txIndex,
			EOA:           eoa,
			MevType:       models.MevType(mevType),
			FundTag:       fundTag,
			NoPricingFlag: noPricing,
		}
		if p, ok := rational.FromDecimalString(profitUsd); ok {
			header.ProfitUsd = p
		}
		if b, ok := rational.FromDecimalString(bribeUsd); ok {
			header.BribeUsd = b
		}
		if mevContractHex != nil {
			mc, err := models.AddressFromHex(*mevContractHex)
			if err != nil {
				return nil, err
			}
			header.MevContract = &mc
		}
		out = append(out, header)
	}
	return out, rows.Err()
}

// WriteSearcherInfo implements Writer.
func (s *PostgresStore) WriteSearcherInfo(ctx context.Context, eoa models.Address, tags models.SearcherTagCounts, labelled map[models.MevType]bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for mevType, count := range tags {
		_, err = tx.Exec(ctx, `
			INSERT INTO searcher_eoa_tags (eoa, mev_type, tag_count, is_labelled)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (eoa, mev_type) DO UPDATE
			SET tag_count = EXCLUDED.tag_count, is_labelled = EXCLUDED.is_labelled;
		`, eoa.String(), int(mevType), count, labelled[mevType])
		if err != nil {
			return fmt.Errorf("failed to upsert searcher_eoa_tags: %v", err)
		}
	}
	return tx.Commit(ctx)
}

// WriteAddressMeta implements Writer.
func (s *PostgresStore) WriteAddressMeta(ctx context.Context, addr models.Address, meta models.AddressMetadata) error {
	var contractType *int
	if meta.ContractType != nil {
		ct := int(*meta.ContractType)
		contractType = &ct
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO address_labels (address, fund_tag, is_exchange, contract_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE
		SET fund_tag = EXCLUDED.fund_tag, is_exchange = EXCLUDED.is_exchange, contract_type = EXCLUDED.contract_type;
	`, addr.String(), meta.FundTag, meta.IsExchange, contractType)
	return err
}

// SaveMevBlocks implements Writer: persists every classified bundle's
// header row for a block. Only header columns are written: the
// strategy-specific evidence (BundleData) and the bundle's tx hashes are
// not stored.
func (s *PostgresStore) SaveMevBlocks(ctx context.Context, blockNumber uint64, bundles []models.Bundle) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, b := range bundles {
		var mevContractHex *string
		if b.Header.MevContract != nil {
			v := b.Header.MevContract.String()
			mevContractHex = &v
		}
		// bundle_id is a stable external identifier for dedup/audit: a
		// reprocessed block (backfill re-run, crash recovery) upserts onto
		// the same (block_number, tx_index, mev_type) row and keeps its
		// original id rather than minting a new one.
		_, err = tx.Exec(ctx, `
			INSERT INTO mev_bundles
			(bundle_id, block_number, tx_index, eoa, mev_contract, mev_type, profit_usd, bribe_usd, fund_tag, no_pricing)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (block_number, tx_index, mev_type) DO UPDATE
			SET eoa = EXCLUDED.eoa, mev_contract = EXCLUDED.mev_contract,
				profit_usd = EXCLUDED.profit_usd, bribe_usd = EXCLUDED.bribe_usd,
				fund_tag = EXCLUDED.fund_tag, no_pricing = EXCLUDED.no_pricing
		`, uuid.New().String(), blockNumber, b.Header.TxIndex, b.Header.EOA.String(), mevContractHex,
			int(b.Header.MevType), amountToNumeric(b.Header.ProfitUsd), amountToNumeric(b.Header.BribeUsd),
			b.Header.FundTag, b.Header.NoPricingFlag)
		if err != nil {
			return fmt.Errorf("failed to insert mev_bundles row: %v", err)
		}
	}
	return tx.Commit(ctx)
}

// WriteDexQuotes implements Writer.
func (s *PostgresStore) WriteDexQuotes(ctx context.Context, token models.Address, txIndex int, snapshot models.DexPriceSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dex_price_snapshots (token, tx_index, price_before, price_after, price_average)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token, tx_index) DO UPDATE
		SET price_before = EXCLUDED.price_before, price_after = EXCLUDED.price_after, price_average = EXCLUDED.price_average;
	`, token.String(), txIndex, amountToNumeric(snapshot.Before), amountToNumeric(snapshot.After), amountToNumeric(snapshot.Average))
	return err
}

// WriteTokenInfo implements Writer.
func (s *PostgresStore) WriteTokenInfo(ctx context.Context, info models.TokenInfo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (address, decimals, symbol)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE SET decimals = EXCLUDED.decimals, symbol = EXCLUDED.symbol;
	`, info.Address.String(), int16(info.Decimals), info.Symbol)
	return err
}

// InsertPool implements Writer.
func (s *PostgresStore) InsertPool(ctx context.Context, pool models.Address, protocol string, token0, token1 models.Address) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pools (address, protocol, token0, token1)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE SET protocol = EXCLUDED.protocol, token0 = EXCLUDED.token0, token1 = EXCLUDED.token1;
	`, pool.String(), protocol, token0.String(), token1.String())
	return err
}

// SaveTraces implements Writer: persists the raw per-tx gas accounting for
// a block. Nothing in this repository reads the stored rows back.
func (s *PostgresStore) SaveTraces(ctx context.Context, block models.BlockTree) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, t := range block.Txes {
		_, err = tx.Exec(ctx, `
			INSERT INTO tx_traces (block_number, tx_index, tx_hash, eoa, to_address, gas_used, effective_gas_price, is_revert)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (block_number, tx_index) DO NOTHING;
		`, block.Header.BlockNumber, t.TxIndex, t.TxHash.String(), t.EOA.String(), t.ToAddress.String(),
			amountToNumeric(t.GasDetails.GasUsed), amountToNumeric(t.GasDetails.EffectiveGasPrice), t.IsRevert)
		if err != nil {
			return fmt.Errorf("failed to insert tx_traces row: %v", err)
		}
	}
	return tx.Commit(ctx)
}

// WriteBuilderInfo implements Writer.
func (s *PostgresStore) WriteBuilderInfo(ctx context.Context, blockNumber uint64, info models.RelayInfo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO block_builders (block_number, builder_address, relay_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (block_number) DO UPDATE SET builder_address = EXCLUDED.builder_address, relay_name = EXCLUDED.relay_name;
	`, blockNumber, info.BuilderAddress.String(), info.RelayName)
	return err
}

// WriteBlockAnalysis implements Writer: a per-block observability summary
// row, the storage-side counterpart of internal/cex's missing-pair counter.
func (s *PostgresStore) WriteBlockAnalysis(ctx context.Context, blockNumber uint64, bundleCount int, missingPairCount int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO block_analysis (block_number, bundle_count, missing_pair_count, analyzed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (block_number) DO UPDATE
		SET bundle_count = EXCLUDED.bundle_count, missing_pair_count = EXCLUDED.missing_pair_count, analyzed_at = NOW();
	`, blockNumber, bundleCount, missingPairCount)
	return err
}
