package shadow

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/sanity"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// ShadowRunner evaluates a candidate bundle against both the production
// acceptance thresholds and an experimental config, without letting the
// experimental verdict affect what gets persisted or alerted on. New
// threshold tunings run in shadow mode over a backfill window before
// they are promoted to production.
type ShadowRunner struct {
	pool           *pgxpool.Pool
	snapshotID     int64
	productionCfg  config.Thresholds
	shadowCfg      config.Thresholds
}

// ShadowResult captures the diff between production and shadow verdicts
// for a single bundle.
type ShadowResult struct {
	LeadTxHash        models.Hash    `json:"leadTxHash"`
	ShadowAccept      bool           `json:"shadowAccept"`
	ProductionAccept  bool           `json:"productionAccept"`
	DeltaConfidence   float64        `json:"deltaConfidence"`
	SnapshotID        int64          `json:"snapshotId"`
	CreatedAt         time.Time      `json:"createdAt"`
}

// NewShadowRunner creates a runner that compares production vs experimental
// acceptance thresholds over the same candidate bundles.
func NewShadowRunner(pool *pgxpool.Pool, snapshotID int64, productionCfg, shadowCfg config.Thresholds) *ShadowRunner {
	return &ShadowRunner{
		pool:          pool,
		snapshotID:    snapshotID,
		productionCfg: productionCfg,
		shadowCfg:     shadowCfg,
	}
}

// RunShadowAnalysis evaluates header/txInfo/tokens under both configs and
// persists the comparison to the shadow_results table.
func (sr *ShadowRunner) RunShadowAnalysis(ctx context.Context, header models.BundleHeader, txInfo models.TxInfo, tokens []models.Address) (*ShadowResult, error) {
	prod := sanity.Evaluate(sr.productionCfg, header, txInfo, tokens)
	shadow := sanity.Evaluate(sr.shadowCfg, header, txInfo, tokens)

	leadHash := models.Hash{}
	if n := len(header.TxHashes); n > 0 {
		leadHash = header.TxHashes[n-1]
	}

	result := &ShadowResult{
		LeadTxHash:       leadHash,
		ShadowAccept:     shadow.Accept,
		ProductionAccept: prod.Accept,
		DeltaConfidence:  shadow.Confidence - prod.Confidence,
		SnapshotID:       sr.snapshotID,
		CreatedAt:        time.Now(),
	}

	if result.ShadowAccept != result.ProductionAccept {
		log.Printf("[shadow] DIVERGENCE on %x: prod_accept=%v shadow_accept=%v delta_confidence=%.3f",
			leadHash, result.ProductionAccept, result.ShadowAccept, result.DeltaConfidence)
	}

	if sr.pool != nil {
		if err := sr.persistShadowResult(ctx, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (sr *ShadowRunner) persistShadowResult(ctx context.Context, result *ShadowResult) error {
	sql := `INSERT INTO shadow_results
		(lead_tx_hash, shadow_accept, production_accept, delta_confidence, snapshot_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := sr.pool.Exec(ctx, sql,
		result.LeadTxHash[:],
		result.ShadowAccept,
		result.ProductionAccept,
		result.DeltaConfidence,
		result.SnapshotID,
		result.CreatedAt,
	)
	return err
}

// GenerateDriftReport computes the divergence rate between shadow and
// production verdicts over all shadow results for this snapshot.
func (sr *ShadowRunner) GenerateDriftReport(ctx context.Context) (totalRuns int, divergences int, avgDeltaConfidence float64, err error) {
	sql := `SELECT
		COUNT(*) as total,
		COUNT(*) FILTER (WHERE shadow_accept != production_accept) as divergences,
		COALESCE(AVG(delta_confidence), 0) as avg_delta
	FROM shadow_results WHERE snapshot_id = $1`

	row := sr.pool.QueryRow(ctx, sql, sr.snapshotID)
	err = row.Scan(&totalRuns, &divergences, &avgDeltaConfidence)
	return
}
