package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/uhyunpark/creditbook/pkg/core/engine"
	"github.com/uhyunpark/creditbook/pkg/core/order"
	"github.com/uhyunpark/creditbook/pkg/core/trade"
)

// Server handles REST API and WebSocket connections
type Server struct {
	engine *engine.Engine
	router *mux.Router
	hub    *Hub     // WebSocket hub
	txLog  *os.File // Mutation log file
}

// NewServer creates a new API server and hooks the engine's fill feed into
// the websocket hub
func NewServer(eng *engine.Engine) *Server {
	txLogPath := os.Getenv("TX_LOG_FILE")
	if txLogPath == "" {
		txLogPath = "data/mutations.log"
	}
	os.MkdirAll(filepath.Dir(txLogPath), 0755)

	txLog, err := os.OpenFile(txLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[api] WARNING: failed to open tx log file %s: %v", txLogPath, err)
		txLog = nil // Continue without mutation logging
	} else {
		log.Printf("[api] mutation log: %s", txLogPath)
	}

	s := &Server{
		engine: eng,
		router: mux.NewRouter(),
		hub:    NewHub(),
		txLog:  txLog,
	}

	eng.SetOnFill(s.broadcastTrade)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Order read accessors (bulk-scannable by id range)
	api.HandleFunc("/orders", s.handleScanOrders).Methods("GET")
	api.HandleFunc("/orders/{id:[0-9]+}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/accounts/{address}/escrow", s.handleGetAccountEscrow).Methods("GET")

	// Discovery index
	api.HandleFunc("/classes/{class:[0-9]+}/prices", s.handleGetPrices).Methods("GET")
	api.HandleFunc("/classes/{class:[0-9]+}/levels/{price:[0-9]+}", s.handleGetLevel).Methods("GET")
	api.HandleFunc("/classes/{class:[0-9]+}/best", s.handleGetBest).Methods("GET")
	api.HandleFunc("/classes/{class:[0-9]+}/trades", s.handleGetTrades).Methods("GET")

	// Mutations
	api.HandleFunc("/orders", s.handlePlaceOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/fill", s.handleFillOrder).Methods("POST")

	// Admin (capability-gated inside the engine)
	api.HandleFunc("/admin/fee", s.handleSetFee).Methods("POST")
	api.HandleFunc("/admin/recipient", s.handleSetRecipient).Methods("POST")
	api.HandleFunc("/admin/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/admin/unpause", s.handleUnpause).Methods("POST")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) orderInfo(o order.Order) OrderInfo {
	info := OrderInfo{
		ID:           o.ID,
		Maker:        o.Maker.Hex(),
		Class:        uint64(o.Class),
		Side:         o.Side.String(),
		Price:        o.Price,
		Total:        o.Total,
		Filled:       o.Filled,
		Remaining:    o.Remaining(),
		Active:       s.engine.IsActive(o.ID),
		CreatedAt:    o.CreatedAt,
		Expiration:   o.Expiration,
		MinAmountOut: o.MinAmountOut,
		Escrow:       s.engine.OrderEscrow(o.ID),
	}
	if o.HasReferrer() {
		info.Referrer = o.Referrer.Hex()
	}
	return info
}

func (s *Server) handleScanOrders(w http.ResponseWriter, r *http.Request) {
	from := queryUint(r, "from", 1)
	limit := int(queryUint(r, "limit", 100))
	if limit > 1000 {
		limit = 1000
	}

	orders := s.engine.ScanOrders(from, limit)
	response := make([]OrderInfo, len(orders))
	for i, o := range orders {
		response[i] = s.orderInfo(o)
	}

	respondJSON(w, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)

	o, ok := s.engine.GetOrder(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}

	respondJSON(w, s.orderInfo(o))
}

func (s *Server) handleGetAccountEscrow(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(addressStr)
	class := order.ClassID(queryUint(r, "class", 0))

	response := AccountEscrowInfo{
		Address:       addr.Hex(),
		StableLocked:  s.engine.StableLocked(addr),
		Class:         uint64(class),
		CreditsLocked: s.engine.CreditsLocked(addr, class),
	}

	respondJSON(w, response)
}

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	class := order.ClassID(pathUint(r, "class"))
	side, err := parseSide(r.URL.Query().Get("side"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}

	respondJSON(w, PriceListing{
		Class:  uint64(class),
		Side:   side.String(),
		Prices: s.engine.Prices(class, side),
	})
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	class := order.ClassID(pathUint(r, "class"))
	price := int64(pathUint(r, "price"))
	side, err := parseSide(r.URL.Query().Get("side"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}

	respondJSON(w, LevelListing{
		Class:    uint64(class),
		Side:     side.String(),
		Price:    price,
		OrderIDs: s.engine.OrdersAt(class, side, price),
	})
}

func (s *Server) handleGetBest(w http.ResponseWriter, r *http.Request) {
	class := order.ClassID(pathUint(r, "class"))

	best := BestPrices{Class: uint64(class)}
	if p, ok := s.engine.BestBuy(class); ok {
		best.BestBuy = p
	}
	if p, ok := s.engine.BestSell(class); ok {
		best.BestSell = p
	}

	respondJSON(w, best)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	class := order.ClassID(pathUint(r, "class"))
	limit := int(queryUint(r, "limit", 50))
	if limit > 500 {
		limit = 500
	}

	trades, err := s.engine.RecentTrades(class, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "trade query failed", err.Error())
		return
	}

	response := make([]TradeInfo, len(trades))
	for i, t := range trades {
		response[i] = TradeInfo{
			Seq:         t.Seq,
			OrderID:     t.OrderID,
			Class:       uint64(t.Class),
			MakerSide:   t.MakerSide.String(),
			Maker:       t.Maker.Hex(),
			Taker:       t.Taker.Hex(),
			Price:       t.Price,
			Qty:         t.Qty,
			Gross:       t.Gross,
			PlatformFee: t.PlatformFee,
			ReferrerFee: t.ReferrerFee,
			Net:         t.Net,
			Timestamp:   t.Timestamp,
		}
	}

	respondJSON(w, response)
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Maker) {
		respondError(w, http.StatusBadRequest, "invalid maker address", "")
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid side", err.Error())
		return
	}
	var referrer common.Address
	if req.Referrer != "" {
		if !common.IsHexAddress(req.Referrer) {
			respondError(w, http.StatusBadRequest, "invalid referrer address", "")
			return
		}
		referrer = common.HexToAddress(req.Referrer)
	}

	id, err := s.engine.PlaceOrder(common.HexToAddress(req.Maker), order.ClassID(req.Class),
		side, req.Price, req.Amount, req.Expiration, req.MinAmountOut, referrer)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	s.logMutation("ORDER_PLACE", map[string]interface{}{
		"order_id": id, "maker": req.Maker, "class": req.Class,
		"side": req.Side, "price": req.Price, "amount": req.Amount,
	})

	respondJSON(w, PlaceOrderResponse{Status: "placed", OrderID: id})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Caller) {
		respondError(w, http.StatusBadRequest, "invalid caller address", "")
		return
	}

	if err := s.engine.CancelOrder(req.OrderID, common.HexToAddress(req.Caller)); err != nil {
		respondEngineError(w, err)
		return
	}

	s.logMutation("ORDER_CANCEL", map[string]interface{}{
		"order_id": req.OrderID, "caller": req.Caller,
	})

	respondJSON(w, map[string]interface{}{"status": "cancelled", "orderId": req.OrderID})
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	var req FillOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Taker) {
		respondError(w, http.StatusBadRequest, "invalid taker address", "")
		return
	}

	t, err := s.engine.FillOrder(req.OrderID, req.Amount, common.HexToAddress(req.Taker))
	if err != nil {
		respondEngineError(w, err)
		return
	}

	s.logMutation("ORDER_FILL", map[string]interface{}{
		"order_id": req.OrderID, "taker": req.Taker, "qty": t.Qty, "gross": t.Gross,
	})

	respondJSON(w, map[string]interface{}{
		"status": "filled", "orderId": req.OrderID,
		"qty": t.Qty, "gross": t.Gross, "net": t.Net,
	})
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	var req AdminFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.engine.SetFeeBps(common.HexToAddress(req.Caller), req.FeeBps); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]interface{}{"status": "ok", "feeBps": req.FeeBps})
}

func (s *Server) handleSetRecipient(w http.ResponseWriter, r *http.Request) {
	var req AdminRecipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Recipient) {
		respondError(w, http.StatusBadRequest, "invalid recipient address", "")
		return
	}
	if err := s.engine.SetFeeRecipient(common.HexToAddress(req.Caller), common.HexToAddress(req.Recipient)); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req AdminPauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.engine.Pause(common.HexToAddress(req.Caller)); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "paused"})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	var req AdminPauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := s.engine.Unpause(common.HexToAddress(req.Caller)); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "active"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := EngineStatus{
		Paused:      s.engine.Paused(),
		FeeBps:      s.engine.FeeBps(),
		NextOrderID: s.engine.NextOrderID(),
	}
	if recipient := s.engine.FeeRecipient(); recipient != (common.Address{}) {
		status.FeeRecipient = recipient.Hex()
	}
	respondJSON(w, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// broadcastTrade pushes a fill to subscribers of the class's trade channel
func (s *Server) broadcastTrade(t *trade.Trade) {
	update := TradeUpdate{
		Type:      "trade",
		OrderID:   t.OrderID,
		Class:     uint64(t.Class),
		MakerSide: t.MakerSide.String(),
		Price:     t.Price,
		Qty:       t.Qty,
		Timestamp: t.Timestamp,
	}
	s.hub.BroadcastToChannel(fmt.Sprintf("trades:%d", t.Class), update)
}

// ==============================
// Helper Functions
// ==============================

func parseSide(s string) (order.Side, error) {
	switch s {
	case "buy":
		return order.Buy, nil
	case "sell":
		return order.Sell, nil
	default:
		return 0, fmt.Errorf("expected \"buy\" or \"sell\", got %q", s)
	}
}

func pathUint(r *http.Request, key string) uint64 {
	v, _ := strconv.ParseUint(mux.Vars(r)[key], 10, 64)
	return v
}

func queryUint(r *http.Request, key string, def uint64) uint64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// respondEngineError maps engine error kinds to HTTP status codes
func respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal error"

	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		status, kind = http.StatusBadRequest, "invalid input"
	case errors.Is(err, engine.ErrNotAuthorized):
		status, kind = http.StatusForbidden, "not authorized"
	case errors.Is(err, engine.ErrOrderNotActive):
		status, kind = http.StatusConflict, "order not active"
	case errors.Is(err, engine.ErrAlreadyFilled):
		status, kind = http.StatusConflict, "order already filled"
	case errors.Is(err, engine.ErrOrderExpired):
		status, kind = http.StatusConflict, "order expired"
	case errors.Is(err, engine.ErrFillExceedsRemaining):
		status, kind = http.StatusConflict, "fill exceeds remaining"
	case errors.Is(err, engine.ErrTransferFailed):
		status, kind = http.StatusConflict, "transfer failed"
	case errors.Is(err, engine.ErrPaused):
		status, kind = http.StatusServiceUnavailable, "trading paused"
	}

	respondError(w, status, kind, err.Error())
}

// logMutation writes a mutation event to the log file
func (s *Server) logMutation(eventType string, data map[string]interface{}) {
	if s.txLog == nil {
		return // Logging disabled
	}

	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"event":     eventType,
		"data":      data,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		log.Printf("[api] failed to marshal mutation log entry: %v", err)
		return
	}

	// One JSON object per line
	s.txLog.Write(jsonData)
	s.txLog.Write([]byte("\n"))
}
