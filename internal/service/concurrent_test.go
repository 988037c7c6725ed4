package service_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

// TestConcurrentCashDeduction simulates 50 goroutines simultaneously spending
// a fixed amount from a shared cash balance — protected by a mutex.
// This test verifies our concurrency guard pattern compiles and passes -race.
//
// In the real TradeService, the DB row-level FOR UPDATE lock on the user row
// provides this guarantee.  Here we replicate the same guard with sync
// primitives so the race detector can confirm the pattern is sound.
func TestConcurrentCashDeduction(t *testing.T) {
	const workers = 50
	const costEach = 10 // cash per purchase

	cash := decimal.NewFromInt(int64(workers * costEach)) // exact total
	var mu sync.Mutex
	var rejected int64 // purchases rejected for insufficient cash (zero expected)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			cost := decimal.NewFromInt(costEach)

			mu.Lock()
			defer mu.Unlock()

			if cash.LessThan(cost) {
				atomic.AddInt64(&rejected, 1)
				return
			}
			cash = cash.Sub(cost)
		}()
	}
	wg.Wait()

	// All purchases should succeed: no rejections expected.
	if rejected > 0 {
		t.Errorf("expected 0 rejected purchases, got %d", rejected)
	}
	// Cash should be exactly 0 after exactly 50 × 10 deductions.
	if !cash.IsZero() {
		t.Errorf("final cash should be 0, got %s", cash)
	}
}

// TestConcurrentFirstClaimGuard verifies that first-claim-wins protection
// holds under concurrent access: only one of N goroutines grabs the packet.
// The red-envelope engine relies on the same serialise-then-check pattern
// under its mutex.
func TestConcurrentFirstClaimGuard(t *testing.T) {
	const workers = 20
	type packetState struct {
		mu    sync.Mutex
		taken bool
	}

	var (
		p      packetState
		wins   int64
		losses int64
		wg     sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			p.mu.Lock()
			defer p.mu.Unlock()

			if p.taken {
				// Second+ claim: should be rejected
				atomic.AddInt64(&losses, 1)
				return
			}
			p.taken = true
			atomic.AddInt64(&wins, 1)
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("exactly 1 goroutine should have taken the packet, got %d", wins)
	}
	if losses != workers-1 {
		t.Errorf("expected %d rejections, got %d", workers-1, losses)
	}
}
