package gas

import (
	"math/big"
	"testing"
	"time"
)

func newTestHeadCache(client *fakeChainClient) *HeadCacheService {
	return &HeadCacheService{
		client:   client,
		interval: 10 * time.Millisecond,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func TestHeadCachePollAdvances(t *testing.T) {
	client := &fakeChainClient{height: 100, gasPrice: big.NewInt(1)}
	svc := newTestHeadCache(client)

	var seen []uint64
	svc.Subscribe(func(height uint64) {
		seen = append(seen, height)
	})

	svc.poll()
	if svc.Height() != 100 {
		t.Errorf("height = %d, want 100", svc.Height())
	}
	if len(seen) != 1 || seen[0] != 100 {
		t.Errorf("subscriber saw %v, want [100]", seen)
	}

	// same height again: no notification
	svc.poll()
	if len(seen) != 1 {
		t.Errorf("unchanged head must not notify, saw %v", seen)
	}

	client.height = 101
	svc.poll()
	if len(seen) != 2 || seen[1] != 101 {
		t.Errorf("subscriber saw %v, want advance to 101", seen)
	}
}

func TestHeadCacheIgnoresRegression(t *testing.T) {
	client := &fakeChainClient{height: 100, gasPrice: big.NewInt(1)}
	svc := newTestHeadCache(client)
	svc.poll()

	// a lagging node reporting an older head must not move us backwards
	client.height = 95
	svc.poll()
	if svc.Height() != 100 {
		t.Errorf("height = %d, want 100 after regression", svc.Height())
	}
}

func TestHeadCacheStartStop(t *testing.T) {
	client := &fakeChainClient{height: 42, gasPrice: big.NewInt(1)}
	svc := newTestHeadCache(client)

	if err := svc.Start(); err != nil {
		t.Fatal(err)
	}
	if svc.Height() != 42 {
		t.Errorf("initial height = %d, want 42", svc.Height())
	}
	if err := svc.Stop(); err != nil {
		t.Fatal(err)
	}
}
