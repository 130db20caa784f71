package storage

import (
	"context"
	"log"

	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// AddressLookup adapts a Reader, bound to one block's context, into the
// internal/action.AddressInfoLookup contract the tree-query layer needs.
// Read failures are logged and treated as "not found" rather than aborting
// classification of the rest of the block.
type AddressLookup struct {
	ctx    context.Context
	reader Reader
}

// NewAddressLookup builds an AddressLookup for the duration of one block's
// classification.
func NewAddressLookup(ctx context.Context, reader Reader) *AddressLookup {
	return &AddressLookup{ctx: ctx, reader: reader}
}

func (l *AddressLookup) MevContractOf(addr models.Address) (models.Address, bool) {
	mevContract, _, found, err := l.reader.SearcherContractInfo(l.ctx, addr)
	if err != nil {
		log.Printf("[storage] SearcherContractInfo(%s): %v", addr, err)
		return models.ZeroAddress, false
	}
	return mevContract, found
}

func (l *AddressLookup) ContractTypeOf(addr models.Address) (models.ContractType, bool) {
	_, contractType, found, err := l.reader.SearcherContractInfo(l.ctx, addr)
	if err != nil {
		log.Printf("[storage] SearcherContractInfo(%s): %v", addr, err)
		return models.ContractTypeUnknown, false
	}
	return contractType, found
}

func (l *AddressLookup) SearcherTagsOf(addr models.Address) models.SearcherTagCounts {
	tags, _, err := l.reader.SearcherEoaInfo(l.ctx, addr)
	if err != nil {
		log.Printf("[storage] SearcherEoaInfo(%s): %v", addr, err)
		return nil
	}
	return tags
}

func (l *AddressLookup) LabelledSearcherTypesOf(addr models.Address) map[models.MevType]bool {
	_, labelled, err := l.reader.SearcherEoaInfo(l.ctx, addr)
	if err != nil {
		log.Printf("[storage] SearcherEoaInfo(%s): %v", addr, err)
		return nil
	}
	return labelled
}
