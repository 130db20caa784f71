package models

// DexPriceSnapshot carries the DEX-implied price for a token at a given
// tx_index, in the three orientations inspectors price against (§4.5).
type DexPriceSnapshot struct {
	Before  Amount
	After   Amount
	Average Amount
}

// RelayInfo is passthrough builder/relay metadata (SPEC_FULL §12); no
// inspector currently filters on it.
type RelayInfo struct {
	BuilderAddress Address
	RelayName      string
}

// AddressMetadata is the label-table lookup result for one address.
type AddressMetadata struct {
	FundTag      string
	IsExchange   bool
	ContractType *ContractType
}

// Metadata is the per-block context every inspector receives alongside the
// BlockTree (§6 EXTERNAL INTERFACES).
type Metadata struct {
	BlockNumber     uint64
	BlockTimestampS int64
	EthPriceUsd     Amount

	DexPrices map[Address]map[int]DexPriceSnapshot // token -> tx_index -> snapshot

	RelayInfo   RelayInfo
	PrivateFlow map[Hash]bool

	AddressLabels map[Address]AddressMetadata
}

// PriceAtTxIndex returns the DEX price snapshot leg requested by at for
// token at tx_index, or false if unavailable.
func (m Metadata) PriceAtTxIndex(token Address, txIndex int, at PriceAt) (Amount, bool) {
	byIndex, ok := m.DexPrices[token]
	if !ok {
		return Amount{}, false
	}
	snap, ok := byIndex[txIndex]
	if !ok {
		return Amount{}, false
	}
	switch at {
	case PriceBefore:
		return snap.Before, true
	case PriceAfter:
		return snap.After, true
	default:
		return snap.Average, true
	}
}

// FundTag looks up the label-table fund tag for addr, "" if unlabeled.
func (m Metadata) FundTag(addr Address) string {
	if meta, ok := m.AddressLabels[addr]; ok {
		return meta.FundTag
	}
	return ""
}

// IsPrivate reports whether txHash arrived via private order flow.
func (m Metadata) IsPrivate(txHash Hash) bool {
	return m.PrivateFlow[txHash]
}
