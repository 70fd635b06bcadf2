package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlightCollapsesConcurrentCalls(t *testing.T) {
	var g SingleFlight
	var executions atomic.Int32
	var shared atomic.Int32

	const workers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err, wasShared := g.Do("team:133600", func() (any, error) {
				executions.Add(1)
				time.Sleep(20 * time.Millisecond)
				return "arsenal", nil
			})
			if err != nil {
				t.Errorf("singleflight call failed: %v", err)
				return
			}
			if v != "arsenal" {
				t.Errorf("unexpected value %v", v)
			}
			if wasShared {
				shared.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	if got := executions.Load(); got != 1 {
		t.Fatalf("fn executed %d times, want 1", got)
	}
	if got := shared.Load(); got != workers-1 {
		t.Fatalf("%d callers shared the result, want %d", got, workers-1)
	}
}

func TestSingleFlightDistinctKeysRunIndependently(t *testing.T) {
	var g SingleFlight

	a, _, _ := g.Do("team:1", func() (any, error) { return "a", nil })
	b, _, _ := g.Do("team:2", func() (any, error) { return "b", nil })
	if a != "a" || b != "b" {
		t.Fatalf("got (%v, %v), want (a, b)", a, b)
	}
}
