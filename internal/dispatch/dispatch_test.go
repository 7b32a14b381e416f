package dispatch

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"arbor/internal/check"
)

func TestSerialRunsInOrderAndStopsOnError(t *testing.T) {
	var order []int
	boom := errors.New("boom")
	units := []Unit{
		func() error { order = append(order, 0); return nil },
		func() error { order = append(order, 1); return boom },
		func() error { order = append(order, 2); return nil },
	}

	err := NewSerial().Execute(context.Background(), units)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if !slices.Equal(order, []int{0, 1}) {
		t.Errorf("Expected units 0,1 to run, got %v", order)
	}
}

func TestSerialRecoversPanic(t *testing.T) {
	err := NewSerial().Execute(context.Background(), []Unit{func() error { panic("bad") }})
	var pe *check.PanicError
	if !errors.As(err, &pe) || pe.Value != "bad" {
		t.Fatalf("Expected PanicError, got %v", err)
	}
}

func TestNewSelectsExecutor(t *testing.T) {
	if New(1).Concurrent() {
		t.Error("Expected serial executor for one thread")
	}
	if !New(4).Concurrent() {
		t.Error("Expected pool for four threads")
	}
}

func TestPoolBarrier(t *testing.T) {
	p := NewPool(4)
	defer p.Destroy()
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	for round := range 50 {
		var done atomic.Int32
		units := make([]Unit, 10)
		for i := range units {
			units[i] = func() error {
				time.Sleep(time.Duration(i%3) * 100 * time.Microsecond)
				done.Add(1)
				return nil
			}
		}
		if err := p.Execute(context.Background(), units); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if got := done.Load(); got != 10 {
			t.Fatalf("round %d: Execute returned with %d of 10 units done", round, got)
		}
	}
	if submitted, failed := p.Stats(); submitted != 500 || failed != 0 {
		t.Errorf("Stats = %d/%d, want 500/0", submitted, failed)
	}
}

func TestPoolRunsConcurrently(t *testing.T) {
	p := NewPool(3)
	defer p.Destroy()

	// каждый юнит ждёт, пока все три не стартуют
	var wg sync.WaitGroup
	wg.Add(3)
	release := make(chan struct{})
	go func() {
		wg.Wait()
		close(release)
	}()
	unit := func() error {
		wg.Done()
		select {
		case <-release:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("units did not run concurrently")
		}
	}
	if err := p.Execute(context.Background(), []Unit{unit, unit, unit}); err != nil {
		t.Fatal(err)
	}
}

func TestPoolReportsLowestIndexFailure(t *testing.T) {
	p := NewPool(4)
	defer p.Destroy()

	errA := errors.New("a")
	errB := errors.New("b")
	var ran atomic.Int32
	units := []Unit{
		func() error { ran.Add(1); return nil },
		func() error { ran.Add(1); time.Sleep(2 * time.Millisecond); return errA },
		func() error { ran.Add(1); return errB },
		func() error { ran.Add(1); panic("late") },
	}

	err := p.Execute(context.Background(), units)
	if !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("Expected ErrTaskFailed, got %v", err)
	}
	if !errors.Is(err, errA) || errors.Is(err, errB) {
		t.Errorf("Expected first failure by index (a), got %v", err)
	}
	if ran.Load() != 4 {
		t.Errorf("Expected all units to run, got %d", ran.Load())
	}
	if _, failed := p.Stats(); failed != 3 {
		t.Errorf("Expected 3 failed units, got %d", failed)
	}

	// пул остаётся рабочим после сбоя
	if err := p.Execute(context.Background(), []Unit{func() error { return nil }}); err != nil {
		t.Errorf("Expected pool to survive failures, got %v", err)
	}
}

func TestPoolLifecycle(t *testing.T) {
	p := NewPool(2)
	if submitted, _ := p.Stats(); submitted != 0 {
		t.Fatal("Expected no work before first Execute")
	}
	if err := p.Execute(context.Background(), nil); err != nil {
		t.Fatalf("Empty Execute failed: %v", err)
	}

	p.Destroy()
	p.Destroy()
	err := p.Execute(context.Background(), []Unit{func() error { return nil }})
	if !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Expected ErrPoolClosed, got %v", err)
	}

	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer p.Destroy()
	if err := p.Execute(context.Background(), []Unit{func() error { return nil }}); err != nil {
		t.Errorf("Expected re-initialised pool to work, got %v", err)
	}
}

func TestPoolDestroyCancelsParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPool(1)
	if err := p.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Execute(context.Background(), []Unit{func() error { return nil }}); err != nil {
		t.Fatal(err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		p.Destroy()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Destroy did not return")
	}
}

func TestPoolReportsRunCancellation(t *testing.T) {
	cause := errors.New("run interrupted")
	ctx, cancel := context.WithCancelCause(context.Background())
	p := NewPool(1)
	if err := p.Init(ctx); err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- p.Execute(context.Background(), []Unit{func() error {
			close(started)
			<-release
			return nil
		}})
	}()
	<-started
	cancel(cause)

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
	close(release)
	p.Destroy()

	if !errors.Is(err, cause) {
		t.Errorf("Expected the cancellation cause, got %v", err)
	}
	if errors.Is(err, ErrPoolClosed) {
		t.Error("Cancelled run reported as a destroyed pool")
	}
}
