package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/compass-docsync/internal/core/domain"
)

type refresherFake struct {
	mu      sync.Mutex
	calls   int
	block   bool
	started chan struct{}
}

func newRefresherFake(block bool) *refresherFake {
	return &refresherFake{block: block, started: make(chan struct{}, 64)}
}

func (f *refresherFake) Refresh(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *refresherFake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSynchronizerRefreshesOnMountAndInterval(t *testing.T) {
	refresher := newRefresherFake(false)
	syncer := NewSynchronizer(refresher, 10*time.Millisecond, nil)

	syncer.Start(context.Background())
	defer syncer.Stop()

	if !waitFor(time.Second, func() bool { return refresher.Calls() >= 3 }) {
		t.Fatalf("expected at least 3 refreshes, got %d", refresher.Calls())
	}
}

func TestSynchronizerStopCancelsEverything(t *testing.T) {
	refresher := newRefresherFake(true)
	syncer := NewSynchronizer(refresher, 5*time.Millisecond, nil)

	syncer.Start(context.Background())
	<-refresher.started
	syncer.Trigger("manual")
	<-refresher.started

	stopped := make(chan struct{})
	go func() {
		syncer.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("Stop() did not return")
	}

	calls := refresher.Calls()
	time.Sleep(30 * time.Millisecond)
	if refresher.Calls() != calls {
		t.Fatalf("refresh ran after Stop: %d -> %d", calls, refresher.Calls())
	}
}

func TestSynchronizerTriggersAreNotCoalesced(t *testing.T) {
	refresher := newRefresherFake(false)
	syncer := NewSynchronizer(refresher, time.Hour, nil)

	syncer.Start(context.Background())
	defer syncer.Stop()
	<-refresher.started

	syncer.Trigger("upload")
	syncer.Trigger("manual")

	if !waitFor(time.Second, func() bool { return refresher.Calls() == 3 }) {
		t.Fatalf("expected 3 refreshes, got %d", refresher.Calls())
	}
}

func TestSynchronizerTriggerIgnoredWhenStopped(t *testing.T) {
	refresher := newRefresherFake(false)
	syncer := NewSynchronizer(refresher, time.Hour, nil)

	syncer.Trigger("upload")
	time.Sleep(10 * time.Millisecond)
	if refresher.Calls() != 0 {
		t.Fatalf("expected no refresh while stopped, got %d", refresher.Calls())
	}

	err := syncer.RefreshNow(context.Background(), "manual")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestSynchronizerRefreshNowRunsSynchronously(t *testing.T) {
	refresher := newRefresherFake(false)
	syncer := NewSynchronizer(refresher, time.Hour, nil)
	syncer.Start(context.Background())
	defer syncer.Stop()
	<-refresher.started

	if err := syncer.RefreshNow(context.Background(), "manual"); err != nil {
		t.Fatalf("RefreshNow() error = %v", err)
	}
	if refresher.Calls() != 2 {
		t.Fatalf("expected 2 refreshes, got %d", refresher.Calls())
	}
}
