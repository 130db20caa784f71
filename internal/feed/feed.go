// Package feed drives the engine over a range of blocks, or continuously
// against newly available ones. No wire protocol is defined here (per
// spec.md §6): block data is exchanged in-process via the BlockSource
// collaborator interface.
package feed

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/rawblock/mev-inspect-engine/internal/engine"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// BlockSource fetches one block's tree and pricing/context metadata.
// Implementations talk to whatever execution-client RPC or trace store
// backs a given deployment; the engine core never depends on a specific
// chain client.
type BlockSource interface {
	FetchBlock(ctx context.Context, blockNumber uint64) (models.BlockTree, models.Metadata, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Feed polls a BlockSource and drives Engine.ProcessBlock over the
// resulting blocks, one at a time, in block-number order.
type Feed struct {
	source BlockSource
	engine *engine.Engine

	currentHeight atomic.Uint64
	totalScanned  atomic.Int64
	isRunning     atomic.Bool
}

func New(source BlockSource, eng *engine.Engine) *Feed {
	return &Feed{source: source, engine: eng}
}

// Progress mirrors the teacher's ScanProgress shape for the API status
// endpoint.
type Progress struct {
	IsRunning     bool
	CurrentHeight uint64
	TotalScanned  int64
}

func (f *Feed) Progress() Progress {
	return Progress{
		IsRunning:     f.isRunning.Load(),
		CurrentHeight: f.currentHeight.Load(),
		TotalScanned:  f.totalScanned.Load(),
	}
}

// ScanRange processes [start, end] asynchronously, in order, stopping
// early on ctx cancellation. A block that fails to fetch or process is
// logged and skipped, and the scan moves on to the next height. Only one
// scan runs at a time; a duplicate request while one is in flight is
// ignored.
func (f *Feed) ScanRange(ctx context.Context, start, end uint64) {
	if f.isRunning.Load() {
		log.Println("[feed] scan already in progress, ignoring duplicate request")
		return
	}
	f.isRunning.Store(true)

	go func() {
		defer f.isRunning.Store(false)
		log.Printf("[feed] scanning blocks %d -> %d", start, end)

		for height := start; height <= end; height++ {
			select {
			case <-ctx.Done():
				log.Printf("[feed] scan cancelled at block %d", height)
				return
			default:
			}

			f.currentHeight.Store(height)
			if err := f.processOne(ctx, height); err != nil {
				log.Printf("[feed] block %d: %v", height, err)
			}
			f.totalScanned.Add(1)
		}

		log.Printf("[feed] scan complete: %d blocks processed", f.totalScanned.Load())
	}()
}

// PollNew polls the source every interval for newly confirmed blocks past
// the last one processed, and scans each as it appears. interval is
// expected to be on the order of a block time (seconds), not sub-second —
// real-time sub-second delivery is out of scope.
func (f *Feed) PollNew(ctx context.Context, interval time.Duration, fromHeight uint64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	next := fromHeight
	for {
		select {
		case <-ctx.Done():
			log.Println("[feed] stopping poll loop")
			return
		case <-ticker.C:
			latest, err := f.source.LatestBlockNumber(ctx)
			if err != nil {
				log.Printf("[feed] LatestBlockNumber: %v", err)
				continue
			}
			for ; next <= latest; next++ {
				f.currentHeight.Store(next)
				if err := f.processOne(ctx, next); err != nil {
					log.Printf("[feed] block %d: %v", next, err)
					break
				}
				f.totalScanned.Add(1)
			}
		}
	}
}

func (f *Feed) processOne(ctx context.Context, height uint64) error {
	block, metadata, err := f.source.FetchBlock(ctx, height)
	if err != nil {
		return err
	}
	_, err = f.engine.ProcessBlock(ctx, block, metadata)
	return err
}
