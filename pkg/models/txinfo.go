package models

// ContractType classifies the recipient contract of a transaction.
type ContractType int

const (
	ContractTypeUnknown ContractType = iota
	ContractTypeDefiAutomation
	ContractTypeSolverSettlement
	ContractTypeMevBot
)

// MevType enumerates the bundle kinds this engine can emit.
type MevType int

const (
	MevSandwich MevType = iota
	MevJit
	MevCexDexQuote
	MevCexDexTrades
	MevCexDexRfq
	MevAtomicArb
	MevLiquidation
)

func (m MevType) String() string {
	switch m {
	case MevSandwich:
		return "Sandwich"
	case MevJit:
		return "Jit"
	case MevCexDexQuote:
		return "CexDex"
	case MevCexDexTrades:
		return "CexDexTrades"
	case MevCexDexRfq:
		return "CexDexRfq"
	case MevAtomicArb:
		return "AtomicArb"
	case MevLiquidation:
		return "Liquidation"
	default:
		return "Unknown"
	}
}

// SearcherTagCounts is a set of historical classification counts per
// MevType for a given address.
type SearcherTagCounts map[MevType]int

// TxInfo is the derived per-transaction context consumed by inspectors.
type TxInfo struct {
	TxHash               Hash
	TxIndex              int
	EOA                  Address
	MevContract          *Address
	ContractType         *ContractType
	GasDetails           GasDetails
	IsPrivate            bool
	IsClassified         bool
	SearcherTags         SearcherTagCounts
	LabelledSearcherTypes map[MevType]bool
}

// IsSearcherOfTypeWithCountThreshold reports whether the historical count
// for mevType crosses threshold (§4.10).
func (t TxInfo) IsSearcherOfTypeWithCountThreshold(mevType MevType, threshold int) bool {
	if t.SearcherTags == nil {
		return false
	}
	return t.SearcherTags[mevType] >= threshold
}

// IsLabelledSearcherOfType reports explicit allow-list membership (§4.10).
func (t TxInfo) IsLabelledSearcherOfType(mevType MevType) bool {
	return t.LabelledSearcherTypes != nil && t.LabelledSearcherTypes[mevType]
}
