package esi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestOrderCacheExpiry(t *testing.T) {
	oc := NewOrderCache(time.Minute)
	now := time.Now()
	oc.now = func() time.Time { return now }

	oc.Put(10000002, 643, []MarketOrder{{OrderID: 1}}, now.Add(time.Minute))
	if got, ok := oc.Get(10000002, 643); !ok || len(got) != 1 {
		t.Fatalf("Get = %v,%v, want hit", got, ok)
	}
	if _, ok := oc.Get(10000002, 641); ok {
		t.Fatal("other type should miss")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := oc.Get(10000002, 643); ok {
		t.Fatal("expired entry should miss")
	}
}

func TestOrderCacheExpiryHeader(t *testing.T) {
	oc := NewOrderCache(3 * time.Minute)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	oc.now = func() time.Time { return now }

	if got := oc.expiry(""); !got.Equal(now.Add(3 * time.Minute)) {
		t.Errorf("missing header: %v", got)
	}
	future := now.Add(90 * time.Second)
	if got := oc.expiry(future.Format(time.RFC1123)); !got.Equal(future) {
		t.Errorf("header: %v, want %v", got, future)
	}
	past := now.Add(-time.Hour).Format(time.RFC1123)
	if got := oc.expiry(past); !got.Equal(now.Add(3 * time.Minute)) {
		t.Errorf("stale header should fall back: %v", got)
	}
}

func TestFetchRegionSellOrders_CoalescesAndCaches(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, `[{"order_id":7,"type_id":643,"system_id":30002558,"price":1}]`)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orders, err := c.FetchRegionSellOrders(context.Background(), 10000043, 643)
			if err != nil || len(orders) != 1 {
				t.Errorf("orders=%v err=%v", orders, err)
			}
		}()
	}
	wg.Wait()

	if _, err := c.FetchRegionSellOrders(context.Background(), 10000043, 643); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
}
