package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDo_RunsJobAndReturnsItsError(t *testing.T) {
	p := NewWorkerPool(2)

	wantErr := errors.New("job failed")
	if err := p.Do(context.Background(), func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Errorf("Expected job error, got %v", err)
	}
	if err := p.Do(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func TestDo_BoundsConcurrency(t *testing.T) {
	const maxWorkers = 3
	p := NewWorkerPool(maxWorkers)

	var running, peak int32
	var wg sync.WaitGroup
	gate := make(chan struct{})

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Do(context.Background(), func() error {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				<-gate
				atomic.AddInt32(&running, -1)
				return nil
			})
		}()
	}

	close(gate)
	wg.Wait()

	if got := atomic.LoadInt32(&peak); got > maxWorkers {
		t.Errorf("Expected at most %d concurrent jobs, observed %d", maxWorkers, got)
	}
}

func TestDo_CanceledContextWhileFull(t *testing.T) {
	p := NewWorkerPool(1)

	hold := make(chan struct{})
	done := make(chan struct{})
	go func() {
		p.Do(context.Background(), func() error {
			close(done)
			<-hold
			return nil
		})
	}()
	<-done

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Do(ctx, func() error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	close(hold)
}
