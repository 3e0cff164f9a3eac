package reactor

import (
	"testing"
)

func TestWorkerPoolStartBlocksUntilAllLoopsPublished(t *testing.T) {
	main := newTestLoop(t)
	defer main.Close()

	wp := newWorkerPool(main, defaultLogger)
	if err := wp.SetThreadCount(4); err != nil {
		t.Fatalf("SetThreadCount: %v", err)
	}
	if err := wp.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer wp.Stop()

	if len(wp.loops) != 4 {
		t.Fatalf("loops published = %d, want 4", len(wp.loops))
	}
	for i, l := range wp.loops {
		if l == nil {
			t.Fatalf("loop %d is nil after Start returned", i)
		}
	}
}

func TestWorkerPoolSetThreadCountAfterStartFails(t *testing.T) {
	main := newTestLoop(t)
	defer main.Close()

	wp := newWorkerPool(main, defaultLogger)
	if err := wp.SetThreadCount(1); err != nil {
		t.Fatalf("SetThreadCount: %v", err)
	}
	if err := wp.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer wp.Stop()

	if err := wp.SetThreadCount(2); err != ErrThreadCountAfterStart {
		t.Fatalf("SetThreadCount after Start = %v, want ErrThreadCountAfterStart", err)
	}
}

func TestWorkerPoolNextLoopRoundRobinsFairly(t *testing.T) {
	main := newTestLoop(t)
	defer main.Close()

	wp := newWorkerPool(main, defaultLogger)
	if err := wp.SetThreadCount(3); err != nil {
		t.Fatalf("SetThreadCount: %v", err)
	}
	if err := wp.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer wp.Stop()

	counts := make(map[*EventLoop]int)
	for i := 0; i < 9; i++ {
		counts[wp.NextLoop()]++
	}
	if len(counts) != 3 {
		t.Fatalf("round robin touched %d distinct loops, want 3", len(counts))
	}
	for l, n := range counts {
		if n != 3 {
			t.Fatalf("loop %p got %d picks out of 9, want exactly 3", l, n)
		}
	}
}

func TestWorkerPoolNextLoopFallsBackToMainLoopWithZeroWorkers(t *testing.T) {
	main := newTestLoop(t)
	defer main.Close()

	wp := newWorkerPool(main, defaultLogger)
	if err := wp.SetThreadCount(0); err != nil {
		t.Fatalf("SetThreadCount: %v", err)
	}
	if err := wp.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := wp.NextLoop(); got != main {
		t.Fatal("NextLoop with zero workers did not fall back to the main loop")
	}
}
