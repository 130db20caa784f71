package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

type fakeReader struct {
	mevContract   models.Address
	contractType  models.ContractType
	contractFound bool
	contractErr   error

	tags     models.SearcherTagCounts
	labelled map[models.MevType]bool
	eoaErr   error
}

func (f *fakeReader) ProtocolDetails(ctx context.Context, pool models.Address) (string, bool, error) {
	return "", false, nil
}
func (f *fakeReader) TokenInfo(ctx context.Context, token models.Address) (models.TokenInfo, bool, error) {
	return models.TokenInfo{}, false, nil
}
func (f *fakeReader) SearcherEoaInfo(ctx context.Context, eoa models.Address) (models.SearcherTagCounts, map[models.MevType]bool, error) {
	return f.tags, f.labelled, f.eoaErr
}
func (f *fakeReader) SearcherContractInfo(ctx context.Context, contract models.Address) (models.Address, models.ContractType, bool, error) {
	return f.mevContract, f.contractType, f.contractFound, f.contractErr
}
func (f *fakeReader) AddressMeta(ctx context.Context, addr models.Address) (models.AddressMetadata, bool, error) {
	return models.AddressMetadata{}, false, nil
}
func (f *fakeReader) BuilderInfo(ctx context.Context, blockNumber uint64) (models.RelayInfo, bool, error) {
	return models.RelayInfo{}, false, nil
}
func (f *fakeReader) MevBundles(ctx context.Context, fromBlock, toBlock uint64) ([]models.BundleHeader, error) {
	return nil, nil
}
func (f *fakeReader) MevBundlesByEOA(ctx context.Context, eoa models.Address, limit int) ([]models.BundleHeader, error) {
	return nil, nil
}

func TestAddressLookup_MevContractOf(t *testing.T) {
	var want models.Address
	want[0] = 0xAB
	reader := &fakeReader{mevContract: want, contractFound: true}
	l := NewAddressLookup(context.Background(), reader)

	got, found := l.MevContractOf(models.Address{})
	if !found || got != want {
		t.Fatalf("MevContractOf() = %v, %v; want %v, true", got, found, want)
	}
}

func TestAddressLookup_ErrorTreatedAsNotFound(t *testing.T) {
	reader := &fakeReader{contractErr: errors.New("boom")}
	l := NewAddressLookup(context.Background(), reader)

	_, found := l.MevContractOf(models.Address{})
	if found {
		t.Fatal("expected error to be treated as not-found")
	}
	if _, found := l.ContractTypeOf(models.Address{}); found {
		t.Fatal("expected error to be treated as not-found")
	}
}

func TestAddressLookup_SearcherTagsAndLabels(t *testing.T) {
	reader := &fakeReader{
		tags:     models.SearcherTagCounts{models.MevSandwich: 5},
		labelled: map[models.MevType]bool{models.MevSandwich: true},
	}
	l := NewAddressLookup(context.Background(), reader)

	tags := l.SearcherTagsOf(models.Address{})
	if tags[models.MevSandwich] != 5 {
		t.Fatalf("SearcherTagsOf() = %v", tags)
	}
	labelled := l.LabelledSearcherTypesOf(models.Address{})
	if !labelled[models.MevSandwich] {
		t.Fatalf("LabelledSearcherTypesOf() = %v", labelled)
	}
}

func TestAddressLookup_SearcherEoaInfoError(t *testing.T) {
	reader := &fakeReader{eoaErr: errors.New("boom")}
	l := NewAddressLookup(context.Background(), reader)

	if tags := l.SearcherTagsOf(models.Address{}); tags != nil {
		t.Fatalf("expected nil tags on error, got %v", tags)
	}
	if labelled := l.LabelledSearcherTypesOf(models.Address{}); labelled != nil {
		t.Fatalf("expected nil labels on error, got %v", labelled)
	}
}
