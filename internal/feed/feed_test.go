package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rawblock/mev-inspect-engine/internal/config"
	"github.com/rawblock/mev-inspect-engine/internal/engine"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

type fakeSource struct {
	mu     sync.Mutex
	latest uint64
	fetched []uint64
}

func (s *fakeSource) FetchBlock(ctx context.Context, blockNumber uint64) (models.BlockTree, models.Metadata, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, blockNumber)
	s.mu.Unlock()
	return models.BlockTree{Header: models.BlockHeader{BlockNumber: blockNumber}}, models.Metadata{}, nil
}

func (s *fakeSource) LatestBlockNumber(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, nil
}

func (s *fakeSource) fetchedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetched)
}

func TestScanRange_ProcessesEveryBlockInOrder(t *testing.T) {
	src := &fakeSource{}
	eng := engine.New(config.Default(), nil, nil, nil, nil)
	f := New(src, eng)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f.ScanRange(ctx, 10, 12)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if src.fetchedCount() == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := src.fetchedCount(); got != 3 {
		t.Fatalf("expected 3 blocks fetched, got %d", got)
	}
	src.mu.Lock()
	fetched := append([]uint64(nil), src.fetched...)
	src.mu.Unlock()
	for i, want := range []uint64{10, 11, 12} {
		if fetched[i] != want {
			t.Errorf("fetched[%d] = %d, want %d", i, fetched[i], want)
		}
	}
	progress := f.Progress()
	if progress.TotalScanned != 3 || progress.CurrentHeight != 12 {
		t.Errorf("unexpected progress: %+v", progress)
	}
}

func TestScanRange_IgnoresDuplicateWhileRunning(t *testing.T) {
	src := &fakeSource{}
	eng := engine.New(config.Default(), nil, nil, nil, nil)
	f := New(src, eng)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f.ScanRange(ctx, 1, 1)
	f.ScanRange(ctx, 100, 105) // should be ignored: first scan still in flight

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !f.Progress().IsRunning {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := src.fetchedCount(); got != 1 {
		t.Fatalf("expected only the first scan's 1 block, got %d", got)
	}
}
