package api

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// OrderInfo represents an order record plus its live flags
type OrderInfo struct {
	ID           uint64 `json:"id"`
	Maker        string `json:"maker"`
	Class        uint64 `json:"class"`
	Side         string `json:"side"` // "buy" or "sell"
	Price        int64  `json:"price"`
	Total        int64  `json:"total"`
	Filled       int64  `json:"filled"`
	Remaining    int64  `json:"remaining"`
	Active       bool   `json:"active"`
	CreatedAt    int64  `json:"createdAt"`  // Unix seconds
	Expiration   int64  `json:"expiration"` // 0 = never
	MinAmountOut int64  `json:"minAmountOut"`
	Referrer     string `json:"referrer,omitempty"`
	Escrow       int64  `json:"escrow"` // remaining locked amount
}

// AccountEscrowInfo represents an account's aggregate locked balances
type AccountEscrowInfo struct {
	Address       string `json:"address"`
	StableLocked  int64  `json:"stableLocked"`
	Class         uint64 `json:"class"`
	CreditsLocked int64  `json:"creditsLocked"`
}

// PriceListing is the discovery index view of one (class, side)
type PriceListing struct {
	Class  uint64  `json:"class"`
	Side   string  `json:"side"`
	Prices []int64 `json:"prices"` // first-seen order
}

// LevelListing is the order ids ever placed at one price level
type LevelListing struct {
	Class    uint64   `json:"class"`
	Side     string   `json:"side"`
	Price    int64    `json:"price"`
	OrderIDs []uint64 `json:"orderIds"` // insertion order; check active flags
}

// BestPrices is the heap-backed best quote view of a class
type BestPrices struct {
	Class    uint64 `json:"class"`
	BestBuy  int64  `json:"bestBuy"`  // 0 if no buys ever quoted
	BestSell int64  `json:"bestSell"` // 0 if no sells ever quoted
}

// TradeInfo represents an executed fill
type TradeInfo struct {
	Seq         uint64 `json:"seq"`
	OrderID     uint64 `json:"orderId"`
	Class       uint64 `json:"class"`
	MakerSide   string `json:"makerSide"`
	Maker       string `json:"maker"`
	Taker       string `json:"taker"`
	Price       int64  `json:"price"`
	Qty         int64  `json:"qty"`
	Gross       int64  `json:"gross"`
	PlatformFee int64  `json:"platformFee"`
	ReferrerFee int64  `json:"referrerFee"`
	Net         int64  `json:"net"`
	Timestamp   int64  `json:"timestamp"` // Unix seconds
}

// EngineStatus is the admin state snapshot
type EngineStatus struct {
	Paused       bool   `json:"paused"`
	FeeBps       int64  `json:"feeBps"`
	FeeRecipient string `json:"feeRecipient,omitempty"`
	NextOrderID  uint64 `json:"nextOrderId"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["trades:3"]
}

// TradeUpdate is broadcast when a fill executes
type TradeUpdate struct {
	Type      string `json:"type"` // "trade"
	OrderID   uint64 `json:"orderId"`
	Class     uint64 `json:"class"`
	MakerSide string `json:"makerSide"`
	Price     int64  `json:"price"`
	Qty       int64  `json:"qty"`
	Timestamp int64  `json:"timestamp"`
}

// ==============================
// REST Request Types
// ==============================

// PlaceOrderRequest is the payload for POST /api/v1/orders
type PlaceOrderRequest struct {
	Maker        string `json:"maker"`
	Class        uint64 `json:"class"`
	Side         string `json:"side"` // "buy" or "sell"
	Price        int64  `json:"price"`
	Amount       int64  `json:"amount"`
	Expiration   int64  `json:"expiration"`   // Unix seconds, 0 = never
	MinAmountOut int64  `json:"minAmountOut"` // stored, not enforced
	Referrer     string `json:"referrer"`     // optional hex address
}

// PlaceOrderResponse is the response from order placement
type PlaceOrderResponse struct {
	Status  string `json:"status"` // "placed", "rejected"
	OrderID uint64 `json:"orderId"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	OrderID uint64 `json:"orderId"`
	Caller  string `json:"caller"`
}

// FillOrderRequest is the payload for POST /api/v1/orders/fill
type FillOrderRequest struct {
	OrderID uint64 `json:"orderId"`
	Amount  int64  `json:"amount"`
	Taker   string `json:"taker"`
}

// AdminFeeRequest sets the platform fee rate
type AdminFeeRequest struct {
	Caller string `json:"caller"`
	FeeBps int64  `json:"feeBps"`
}

// AdminRecipientRequest sets the platform fee recipient
type AdminRecipientRequest struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

// AdminPauseRequest pauses or resumes trading
type AdminPauseRequest struct {
	Caller string `json:"caller"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
