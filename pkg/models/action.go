package models

// ActionKind tags the variant carried by an Action node.
type ActionKind int

const (
	ActionSwap ActionKind = iota
	ActionTransfer
	ActionEthTransfer
	ActionMint
	ActionBurn
	ActionCollect
	ActionLiquidation
	ActionAggregator
	ActionBatch
	ActionRevert
	ActionUnclassified
)

func (k ActionKind) String() string {
	switch k {
	case ActionSwap:
		return "Swap"
	case ActionTransfer:
		return "Transfer"
	case ActionEthTransfer:
		return "EthTransfer"
	case ActionMint:
		return "Mint"
	case ActionBurn:
		return "Burn"
	case ActionCollect:
		return "Collect"
	case ActionLiquidation:
		return "Liquidation"
	case ActionAggregator:
		return "Aggregator"
	case ActionBatch:
		return "Batch"
	case ActionRevert:
		return "Revert"
	default:
		return "Unclassified"
	}
}

// Swap is a single DEX leg. Invariant: TokenIn != TokenOut, amounts >= 0.
type Swap struct {
	Protocol    string
	Pool        Address
	From        Address
	Recipient   Address
	TokenIn     Address
	TokenOut    Address
	AmountIn    Amount
	AmountOut   Amount
	TraceIndex  int
	MsgValue    Amount
}

// Transfer is an ERC20-style token transfer.
type Transfer struct {
	Token      Address
	From       Address
	To         Address
	Amount     Amount
	TraceIndex int
}

// EthTransfer is a native-asset value transfer (including coinbase bribes).
type EthTransfer struct {
	From       Address
	To         Address
	Value      Amount
	TraceIndex int
}

// Mint is a liquidity deposit into a pool.
type Mint struct {
	Pool       Address
	From       Address
	Tokens     []Address
	Amounts    []Amount
	TraceIndex int
}

// Burn is a liquidity withdrawal from a pool.
type Burn struct {
	Pool       Address
	From       Address
	Recipient  Address
	Tokens     []Address
	Amounts    []Amount
	TraceIndex int
}

// Collect is a fee/reward collection from a concentrated-liquidity position;
// inspectors may reinterpret a Collect as a Burn on the same pool (§4.7).
type Collect struct {
	Pool       Address
	Recipient  Address
	Tokens     []Address
	Amounts    []Amount
	TraceIndex int
}

// Liquidation is a lending-protocol liquidation.
type Liquidation struct {
	Pool            Address
	Liquidator      Address
	Debtor          Address
	CollateralAsset Address
	DebtAsset       Address
	CollateralSeized Amount
	DebtRepaid      Amount
	TraceIndex      int
}

// Aggregator wraps child actions executed through a router/aggregator
// contract (e.g. 1inch, 0x).
type Aggregator struct {
	Protocol   string
	TraceIndex int
	Children   []*Action
}

// Batch wraps a resolver's intent-ordered list of user swaps (e.g. CoW,
// UniswapX settlement).
type Batch struct {
	Protocol   string
	TraceIndex int
	UserSwaps  []Swap
	Children   []*Action
}

// Revert marks a subtree whose execution reverted.
type Revert struct {
	TraceIndex int
	Reason     string
}

// Action is a node in a transaction's call trace tree. Exactly one of the
// *Data fields is non-nil, selected by Kind.
type Action struct {
	Kind       ActionKind
	TraceIndex int
	Children   []*Action

	SwapData        *Swap
	TransferData     *Transfer
	EthTransferData  *EthTransfer
	MintData         *Mint
	BurnData         *Burn
	CollectData      *Collect
	LiquidationData  *Liquidation
	AggregatorData   *Aggregator
	BatchData        *Batch
	RevertData       *Revert
}

// NewSwapAction wraps s as an Action node with no children.
func NewSwapAction(s Swap) *Action {
	return &Action{Kind: ActionSwap, TraceIndex: s.TraceIndex, SwapData: &s}
}

// NewTransferAction wraps t as an Action node.
func NewTransferAction(t Transfer) *Action {
	return &Action{Kind: ActionTransfer, TraceIndex: t.TraceIndex, TransferData: &t}
}

// NewEthTransferAction wraps e as an Action node.
func NewEthTransferAction(e EthTransfer) *Action {
	return &Action{Kind: ActionEthTransfer, TraceIndex: e.TraceIndex, EthTransferData: &e}
}

// NewMintAction wraps m as an Action node.
func NewMintAction(m Mint) *Action {
	return &Action{Kind: ActionMint, TraceIndex: m.TraceIndex, MintData: &m}
}

// NewBurnAction wraps b as an Action node.
func NewBurnAction(b Burn) *Action {
	return &Action{Kind: ActionBurn, TraceIndex: b.TraceIndex, BurnData: &b}
}

// NewCollectAction wraps c as an Action node.
func NewCollectAction(c Collect) *Action {
	return &Action{Kind: ActionCollect, TraceIndex: c.TraceIndex, CollectData: &c}
}

// AsBurn reinterprets a Collect as a Burn on the same pool, per §4.7.
func (c Collect) AsBurn() Burn {
	return Burn{
		Pool:       c.Pool,
		Recipient:  c.Recipient,
		Tokens:     c.Tokens,
		Amounts:    c.Amounts,
		TraceIndex: c.TraceIndex,
	}
}

// GasDetails records the gas accounting for one transaction.
type GasDetails struct {
	CoinbaseTransfer   *Amount // optional direct builder payment
	PriorityFee        Amount
	GasUsed            Amount
	EffectiveGasPrice  Amount
}

// TxRoot is a single transaction's root action plus its trace-indexed
// subtree.
type TxRoot struct {
	TxHash      Hash
	TxIndex     int
	EOA         Address
	ToAddress   Address
	Root        *Action
	GasDetails  GasDetails
	IsRevert    bool
}

// BlockHeader carries block number and timestamp.
type BlockHeader struct {
	BlockNumber uint64
	Timestamp   uint64 // unix seconds
}

// BlockTree is the ordered list of TxRoots for one block.
type BlockTree struct {
	Header BlockHeader
	Txes   []TxRoot
}
