package cex

import (
	"testing"

	"github.com/rawblock/mev-inspect-engine/internal/rational"
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

func addr(b byte) models.Address {
	var a models.Address
	a[19] = b
	return a
}

func TestGetQuoteAt_Identity(t *testing.T) {
	store := NewQuoteStore(nil, nil, models.FeeTable{})
	x := addr(1)
	for _, ts := range []int64{0, 100, 999999} {
		q, ok := store.GetQuoteAt(models.Pair{Token0: x, Token1: x}, models.ExchangeBinance, ts, nil)
		if !ok {
			t.Fatalf("identity quote should always be found at ts=%d", ts)
		}
		if q.PriceMaker.Bid.Cmp(rational.One()) != 0 || q.PriceMaker.Ask.Cmp(rational.One()) != 0 {
			t.Errorf("identity quote should be 1:1, got bid=%s ask=%s", q.PriceMaker.Bid, q.PriceMaker.Ask)
		}
	}
}

func TestGetQuoteAt_FlipIsReciprocal(t *testing.T) {
	a, b := addr(1), addr(2)
	pair := models.Pair{Token0: a, Token1: b}

	quotes := map[models.Exchange]map[models.Pair][]models.CexQuote{
		models.ExchangeBinance: {
			pair: {
				{
					Exchange:    models.ExchangeBinance,
					TimestampUs: 1000,
					Price:       models.BidAsk{Bid: rational.FromInt64(10), Ask: rational.FromInt64(11)},
					Amount:      models.BidAsk{Bid: rational.FromInt64(5), Ask: rational.FromInt64(6)},
				},
			},
		},
	}
	fees := models.FeeTable{Default: map[models.Exchange]models.MakerTaker{
		models.ExchangeBinance: {Maker: rational.Zero(), Taker: rational.Zero()},
	}}
	store := NewQuoteStore(quotes, nil, fees)

	direct, ok := store.GetQuoteAt(pair, models.ExchangeBinance, 1000, nil)
	if !ok {
		t.Fatal("expected direct quote")
	}
	flipped, ok := store.GetQuoteAt(pair.Flip(), models.ExchangeBinance, 1000, nil)
	if !ok {
		t.Fatal("expected flipped quote via reverse lookup")
	}

	wantBid, _ := direct.PriceMaker.Ask.Recip()
	wantAsk, _ := direct.PriceMaker.Bid.Recip()
	if flipped.PriceMaker.Bid.Cmp(wantBid) != 0 {
		t.Errorf("flipped bid = %s, want %s", flipped.PriceMaker.Bid, wantBid)
	}
	if flipped.PriceMaker.Ask.Cmp(wantAsk) != 0 {
		t.Errorf("flipped ask = %s, want %s", flipped.PriceMaker.Ask, wantAsk)
	}
}

func TestIsOutlier(t *testing.T) {
	if !IsOutlier(rational.FromInt64(1), rational.FromInt64(3)) {
		t.Error("3x divergence should be flagged as outlier")
	}
	if IsOutlier(rational.FromInt64(10), rational.FromInt64(15)) {
		t.Error("1.5x divergence should not be flagged as outlier")
	}
}
