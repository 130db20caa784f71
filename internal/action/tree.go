// Package action implements the tree queries over a prepared block's
// action trees: predicate-based collection, flattening of nested
// Aggregator/Batch wrappers, multi-hop swap merging, typed partitioning,
// and transfer-to-swap synthesis (spec.md §4.2).
package action

import (
	"github.com/rawblock/mev-inspect-engine/pkg/models"
)

// Predicate is a side-effect-free test of a single action node.
type Predicate func(*models.Action) bool

// Collect performs a depth-first, trace-index-ordered search of tx's
// action tree, returning every node for which predicate returns true.
func Collect(tx models.TxRoot, predicate Predicate) []*models.Action {
	var out []*models.Action
	var walk func(n *models.Action)
	walk = func(n *models.Action) {
		if n == nil {
			return
		}
		if predicate(n) {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(tx.Root)
	return out
}

// CollectTxes runs Collect over every TxRoot in txes whose hash is in
// hashes, returning a map keyed by tx hash.
func CollectTxes(txes []models.TxRoot, hashes []models.Hash, predicate Predicate) map[models.Hash][]*models.Action {
	want := make(map[models.Hash]bool, len(hashes))
	for _, h := range hashes {
		want[h] = true
	}
	out := make(map[models.Hash][]*models.Action, len(hashes))
	for _, tx := range txes {
		if !want[tx.TxHash] {
			continue
		}
		out[tx.TxHash] = Collect(tx, predicate)
	}
	return out
}

// GetRootAction returns tx's root action node.
func GetRootAction(tx models.TxRoot) *models.Action {
	return tx.Root
}

// FindTx returns the TxRoot matching hash, or false.
func FindTx(txes []models.TxRoot, hash models.Hash) (models.TxRoot, bool) {
	for _, tx := range txes {
		if tx.TxHash == hash {
			return tx, true
		}
	}
	return models.TxRoot{}, false
}

// AddressInfoLookup is the storage-collaborator contract (§6) GetTxInfo
// needs to enrich a TxRoot into a TxInfo: mev-contract attribution,
// contract type, and historical searcher tags. Implemented by
// internal/storage.
type AddressInfoLookup interface {
	MevContractOf(addr models.Address) (models.Address, bool)
	ContractTypeOf(addr models.Address) (models.ContractType, bool)
	SearcherTagsOf(addr models.Address) models.SearcherTagCounts
	LabelledSearcherTypesOf(addr models.Address) map[models.MevType]bool
}

// GetTxInfo derives the TxInfo summary for tx, enriched via lookup.
func GetTxInfo(tx models.TxRoot, lookup AddressInfoLookup, isPrivate bool) models.TxInfo {
	info := models.TxInfo{
		TxHash:       tx.TxHash,
		TxIndex:      tx.TxIndex,
		EOA:          tx.EOA,
		GasDetails:   tx.GasDetails,
		IsPrivate:    isPrivate,
		IsClassified: tx.Root != nil && tx.Root.Kind != models.ActionUnclassified,
	}
	if lookup == nil {
		return info
	}
	if mc, ok := lookup.MevContractOf(tx.ToAddress); ok {
		info.MevContract = &mc
	}
	if ct, ok := lookup.ContractTypeOf(tx.ToAddress); ok {
		info.ContractType = &ct
	}
	info.SearcherTags = lookup.SearcherTagsOf(tx.EOA)
	info.LabelledSearcherTypes = lookup.LabelledSearcherTypesOf(tx.EOA)
	return info
}

// GetTxInfoBatch runs GetTxInfo for every hash present in txes.
func GetTxInfoBatch(txes []models.TxRoot, hashes []models.Hash, lookup AddressInfoLookup, privateFlow map[models.Hash]bool) map[models.Hash]models.TxInfo {
	want := make(map[models.Hash]bool, len(hashes))
	for _, h := range hashes {
		want[h] = true
	}
	out := make(map[models.Hash]models.TxInfo, len(hashes))
	for _, tx := range txes {
		if !want[tx.TxHash] {
			continue
		}
		out[tx.TxHash] = GetTxInfo(tx, lookup, privateFlow[tx.TxHash])
	}
	return out
}
