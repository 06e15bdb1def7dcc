package cover

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockTableSerializesSameID(t *testing.T) {
	table := NewLockTable()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := table.Lock("doc")
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
	if table.Len() != 1 {
		t.Errorf("Len = %d, want 1", table.Len())
	}
}

func TestLockTableIndependentIDs(t *testing.T) {
	table := NewLockTable()

	unlockA := table.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := table.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for b blocked behind a")
	}
	if table.Len() != 2 {
		t.Errorf("Len = %d, want 2", table.Len())
	}
}

func TestFailureSet(t *testing.T) {
	s := NewFailureSet()
	if s.Contains("x") {
		t.Error("empty set contains x")
	}
	s.Add("x")
	s.Add("x")
	if !s.Contains("x") {
		t.Error("set missing x after Add")
	}
	if s.Contains("y") {
		t.Error("set contains y")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}
