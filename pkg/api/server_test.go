package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/creditbook/pkg/assets"
	"github.com/uhyunpark/creditbook/pkg/auth"
	"github.com/uhyunpark/creditbook/pkg/core/book"
	"github.com/uhyunpark/creditbook/pkg/core/engine"
	"github.com/uhyunpark/creditbook/pkg/core/escrow"
	"github.com/uhyunpark/creditbook/pkg/core/order"
	"github.com/uhyunpark/creditbook/pkg/core/trade"
	"github.com/uhyunpark/creditbook/pkg/util"
)

var (
	custody = common.HexToAddress("0xc0")
	maker   = common.HexToAddress("0xaa")
	taker   = common.HexToAddress("0xbb")
	admin   = common.HexToAddress("0xad")
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("TX_LOG_FILE", filepath.Join(t.TempDir(), "mutations.log"))

	stable := assets.NewSimStablecoin(6)
	credits := assets.NewSimCreditLedger()
	gw := assets.NewGateway(stable, credits, custody)
	for _, acct := range []common.Address{maker, taker} {
		stable.Mint(acct, 1_000_000)
		stable.Approve(acct, custody, 1_000_000)
		credits.Mint(acct, 1, 10_000)
		credits.SetApprovalForAll(acct, custody, true)
	}

	dir := t.TempDir()
	store, err := order.NewStore(filepath.Join(dir, "orders"))
	if err != nil {
		t.Fatalf("order store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	journal, err := trade.NewJournal(filepath.Join(dir, "trades"))
	if err != nil {
		t.Fatalf("trade journal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	access := auth.NewRegistry()
	access.Grant(admin, auth.CapManager)

	eng, err := engine.New(store, escrow.NewLedger(gw), gw, book.NewIndex(), journal,
		access, util.NewFakeClock(time.Unix(1_700_000_000, 0)), zap.NewNop().Sugar(),
		engine.Config{FeeBps: 100, MaxFeeBps: 1000})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	return NewServer(eng)
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func placeOrder(t *testing.T, s *Server, req PlaceOrderRequest) uint64 {
	t.Helper()
	w := doJSON(t, s, "POST", "/api/v1/orders", req)
	if w.Code != http.StatusOK {
		t.Fatalf("place order: status %d, body %s", w.Code, w.Body.String())
	}
	var resp PlaceOrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.OrderID
}

func TestServer_OrderLifecycle(t *testing.T) {
	s := newTestServer(t)

	id := placeOrder(t, s, PlaceOrderRequest{
		Maker: maker.Hex(), Class: 1, Side: "buy", Price: 10, Amount: 50,
	})
	if id != 1 {
		t.Errorf("order id = %d, want 1", id)
	}

	w := doJSON(t, s, "GET", "/api/v1/orders/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get order: status %d", w.Code)
	}
	var info OrderInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if !info.Active || info.Escrow != 500 || info.Side != "buy" {
		t.Errorf("order info = %+v", info)
	}

	w = doJSON(t, s, "POST", "/api/v1/orders/fill", FillOrderRequest{
		OrderID: id, Amount: 20, Taker: taker.Hex(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("fill: status %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, "GET", "/api/v1/classes/1/trades", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("trades: status %d", w.Code)
	}
	var trades []TradeInfo
	if err := json.Unmarshal(w.Body.Bytes(), &trades); err != nil {
		t.Fatalf("decode trades: %v", err)
	}
	if len(trades) != 1 || trades[0].Qty != 20 || trades[0].Gross != 200 {
		t.Errorf("trades = %+v", trades)
	}

	w = doJSON(t, s, "POST", "/api/v1/orders/cancel", CancelOrderRequest{
		OrderID: id, Caller: maker.Hex(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: status %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, "GET", "/api/v1/accounts/"+maker.Hex()+"/escrow?class=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("escrow: status %d", w.Code)
	}
	var esc AccountEscrowInfo
	if err := json.Unmarshal(w.Body.Bytes(), &esc); err != nil {
		t.Fatalf("decode escrow: %v", err)
	}
	if esc.StableLocked != 0 {
		t.Errorf("StableLocked after cancel = %d, want 0", esc.StableLocked)
	}
}

func TestServer_EngineErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)

	id := placeOrder(t, s, PlaceOrderRequest{
		Maker: maker.Hex(), Class: 1, Side: "buy", Price: 10, Amount: 50,
	})

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		wantStatus int
	}{
		{
			name: "invalid input", method: "POST", path: "/api/v1/orders",
			body:       PlaceOrderRequest{Maker: maker.Hex(), Class: 1, Side: "buy", Price: 0, Amount: 10},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unauthorized cancel", method: "POST", path: "/api/v1/orders/cancel",
			body:       CancelOrderRequest{OrderID: id, Caller: taker.Hex()},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "unknown order fill", method: "POST", path: "/api/v1/orders/fill",
			body:       FillOrderRequest{OrderID: 999, Amount: 1, Taker: taker.Hex()},
			wantStatus: http.StatusConflict,
		},
		{
			name: "overfill", method: "POST", path: "/api/v1/orders/fill",
			body:       FillOrderRequest{OrderID: id, Amount: 51, Taker: taker.Hex()},
			wantStatus: http.StatusConflict,
		},
		{
			name: "unauthorized pause", method: "POST", path: "/api/v1/admin/pause",
			body:       AdminPauseRequest{Caller: taker.Hex()},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "fee over cap", method: "POST", path: "/api/v1/admin/fee",
			body:       AdminFeeRequest{Caller: admin.Hex(), FeeBps: 5000},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, s, tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Error == "" {
				t.Error("error response missing kind")
			}
		})
	}
}

func TestServer_PausedMapsToServiceUnavailable(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, "POST", "/api/v1/admin/pause", AdminPauseRequest{Caller: admin.Hex()})
	if w.Code != http.StatusOK {
		t.Fatalf("pause: status %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, s, "POST", "/api/v1/orders", PlaceOrderRequest{
		Maker: maker.Hex(), Class: 1, Side: "buy", Price: 10, Amount: 10,
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("place while paused: status %d, want 503", w.Code)
	}

	w = doJSON(t, s, "GET", "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var st EngineStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.Paused {
		t.Error("status does not report paused")
	}

	w = doJSON(t, s, "POST", "/api/v1/admin/unpause", AdminPauseRequest{Caller: admin.Hex()})
	if w.Code != http.StatusOK {
		t.Fatalf("unpause: status %d", w.Code)
	}
}

func TestServer_DiscoveryEndpoints(t *testing.T) {
	s := newTestServer(t)

	placeOrder(t, s, PlaceOrderRequest{Maker: maker.Hex(), Class: 1, Side: "buy", Price: 10, Amount: 10})
	placeOrder(t, s, PlaceOrderRequest{Maker: maker.Hex(), Class: 1, Side: "buy", Price: 12, Amount: 10})
	placeOrder(t, s, PlaceOrderRequest{Maker: maker.Hex(), Class: 1, Side: "sell", Price: 15, Amount: 10})

	w := doJSON(t, s, "GET", "/api/v1/classes/1/prices?side=buy", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("prices: status %d", w.Code)
	}
	var listing PriceListing
	if err := json.Unmarshal(w.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode prices: %v", err)
	}
	if len(listing.Prices) != 2 || listing.Prices[0] != 10 || listing.Prices[1] != 12 {
		t.Errorf("prices = %v, want [10 12]", listing.Prices)
	}

	w = doJSON(t, s, "GET", "/api/v1/classes/1/best", nil)
	var best BestPrices
	if err := json.Unmarshal(w.Body.Bytes(), &best); err != nil {
		t.Fatalf("decode best: %v", err)
	}
	if best.BestBuy != 12 || best.BestSell != 15 {
		t.Errorf("best = %+v, want buy 12 sell 15", best)
	}

	w = doJSON(t, s, "GET", "/api/v1/classes/1/levels/10?side=buy", nil)
	var level LevelListing
	if err := json.Unmarshal(w.Body.Bytes(), &level); err != nil {
		t.Fatalf("decode level: %v", err)
	}
	if len(level.OrderIDs) != 1 || level.OrderIDs[0] != 1 {
		t.Errorf("level ids = %v, want [1]", level.OrderIDs)
	}

	// side is mandatory for price and level queries
	w = doJSON(t, s, "GET", "/api/v1/classes/1/prices", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("prices without side: status %d, want 400", w.Code)
	}
}
