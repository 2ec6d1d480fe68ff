package domain

// SaleRecord is the persisted snapshot of a sale's configuration and
// state. Corresponds to the sales table in PostgreSQL. Big integers are
// carried as decimal strings.
type SaleRecord struct {
	SaleID          string // SHA256-derived, see internal/idhash
	AssetMint       string
	QuoteMint       string
	NumTokensToSell string
	StartingTime    int64
	EndingTime      int64
	EpochLength     int64
	StartingTick    int32
	EndingTick      int32
	Gamma           int32
	TickSpacing     int32
	MinimumProceeds string
	MaximumProceeds string

	Status          string
	TotalTokensSold string
	TotalProceeds   string
	CurrentEpoch    int64
	Failed          bool
	UpdatedAt       int64 // unix ms
	CreatedAt       int64 // unix ms
}

// SwapEventRecord is one settled swap observed through the hook gate.
// Corresponds to the swap_events table in PostgreSQL.
type SwapEventRecord struct {
	ID         int64  // BIGSERIAL primary key
	SaleID     string // FK to sales
	Seq        int64  // per-sale sequence number
	Epoch      int64
	Timestamp  int64  // unix seconds at settlement
	AssetDelta string // signed, pool perspective (negative = sold to buyer)
	QuoteDelta string // signed, pool perspective (positive = proceeds in)
	TickAfter  int32
	CreatedAt  int64 // unix ms
}

// SlugSnapshot is the serialized form of one placed slug, emitted per
// rebalance for analysis tooling.
type SlugSnapshot struct {
	Name      string `json:"slugName"`
	TickLower int32  `json:"tickLower"`
	TickUpper int32  `json:"tickUpper"`
	Liquidity string `json:"liquidity"`
	Asset     string `json:"assetAmount"`
	Quote     string `json:"quoteAmount"`
}

// RebalanceRecord captures one epoch rollover: the new bounds and the
// slugs placed under them. Stored in ClickHouse for timeseries analysis.
type RebalanceRecord struct {
	SaleID          string
	Epoch           int64
	Timestamp       int64 // unix seconds at rollover
	TickLower       int32
	TickUpper       int32
	PoolTick        int32
	TotalTokensSold string
	TotalProceeds   string
	Slugs           []SlugSnapshot
}

// EventType tags entries on the live auction event stream.
type EventType string

// Stream event types.
const (
	EventRebalance EventType = "rebalance"
	EventSwap      EventType = "swap"
	EventEarlyExit EventType = "early_exit"
	EventMatured   EventType = "matured"
	EventMigrated  EventType = "migrated"
)

// AuctionEvent is the unit broadcast on the websocket stream. Exactly one
// of Rebalance or Swap is set for those event types.
type AuctionEvent struct {
	Type      EventType        `json:"type"`
	SaleID    string           `json:"saleId"`
	Timestamp int64            `json:"timestamp"`
	Rebalance *RebalanceRecord `json:"rebalance,omitempty"`
	Swap      *SwapEventRecord `json:"swap,omitempty"`
}
