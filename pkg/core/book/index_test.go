package book

import (
	"testing"

	"github.com/uhyunpark/creditbook/pkg/core/order"
)

func TestIndex_PricesFirstSeenOrder(t *testing.T) {
	ix := NewIndex()

	ix.Add(1, order.Buy, 50, 1)
	ix.Add(1, order.Buy, 40, 2)
	ix.Add(1, order.Buy, 50, 3) // existing level, no new price
	ix.Add(1, order.Buy, 60, 4)

	got := ix.Prices(1, order.Buy)
	want := []int64{50, 40, 60}
	if len(got) != len(want) {
		t.Fatalf("Prices = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Prices = %v, want %v", got, want)
		}
	}
}

func TestIndex_OrdersAtInsertionOrder(t *testing.T) {
	ix := NewIndex()

	ix.Add(1, order.Sell, 30, 7)
	ix.Add(1, order.Sell, 30, 8)
	ix.Add(1, order.Sell, 31, 9)

	got := ix.OrdersAt(1, order.Sell, 30)
	if len(got) != 2 || got[0] != 7 || got[1] != 8 {
		t.Errorf("OrdersAt = %v, want [7 8]", got)
	}
	if got := ix.OrdersAt(1, order.Sell, 99); len(got) != 0 {
		t.Errorf("OrdersAt empty level = %v, want empty", got)
	}
}

func TestIndex_BestPrices(t *testing.T) {
	ix := NewIndex()

	if _, ok := ix.BestBuy(1); ok {
		t.Error("BestBuy on empty index reported a price")
	}
	if _, ok := ix.BestSell(1); ok {
		t.Error("BestSell on empty index reported a price")
	}

	ix.Add(1, order.Buy, 50, 1)
	ix.Add(1, order.Buy, 70, 2)
	ix.Add(1, order.Buy, 60, 3)
	ix.Add(1, order.Sell, 90, 4)
	ix.Add(1, order.Sell, 80, 5)

	if best, ok := ix.BestBuy(1); !ok || best != 70 {
		t.Errorf("BestBuy = %d/%v, want 70/true", best, ok)
	}
	if best, ok := ix.BestSell(1); !ok || best != 80 {
		t.Errorf("BestSell = %d/%v, want 80/true", best, ok)
	}
}

func TestIndex_ClassesIsolated(t *testing.T) {
	ix := NewIndex()

	ix.Add(1, order.Buy, 50, 1)
	ix.Add(2, order.Buy, 99, 2)

	if got := ix.Prices(1, order.Buy); len(got) != 1 || got[0] != 50 {
		t.Errorf("class 1 prices = %v, want [50]", got)
	}
	if got := ix.Prices(2, order.Buy); len(got) != 1 || got[0] != 99 {
		t.Errorf("class 2 prices = %v, want [99]", got)
	}
	if got := ix.Prices(3, order.Buy); got != nil {
		t.Errorf("unknown class prices = %v, want nil", got)
	}

	classes := ix.Classes()
	if len(classes) != 2 {
		t.Errorf("Classes = %v, want 2 entries", classes)
	}
}
