package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Process_BasicFunctionality(t *testing.T) {
	pool := NewWorkerPool[int, int](WithWorkerCount(4))

	tasks := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	processFn := func(ctx context.Context, task int) (int, error) {
		return task * 2, nil
	}

	results, err := pool.Process(context.Background(), tasks, processFn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != len(tasks) {
		t.Fatalf("expected %d results, got %d", len(tasks), len(results))
	}

	for i, task := range tasks {
		if results[i] != task*2 {
			t.Errorf("task %d: expected %d, got %d", i, task*2, results[i])
		}
	}
}

func TestWorkerPool_Process_EmptyTasks(t *testing.T) {
	pool := NewWorkerPool[int, int]()

	results, err := pool.Process(context.Background(), nil, func(ctx context.Context, task int) (int, error) {
		return task, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(results))
	}
}

func TestWorkerPool_Process_OrderPreservedUnderReordering(t *testing.T) {
	pool := NewWorkerPool[int, int](WithWorkerCount(3))

	// later tasks finish first
	tasks := []int{30, 20, 10}
	var finished []int
	var mu sync.Mutex

	results, err := pool.Process(context.Background(), tasks, func(ctx context.Context, task int) (int, error) {
		time.Sleep(time.Duration(task) * time.Millisecond)
		mu.Lock()
		finished = append(finished, task)
		mu.Unlock()
		return task + 1, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{31, 21, 11}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("results[%d] = %d, want %d", i, results[i], want[i])
		}
	}
	if finished[0] != 10 {
		t.Logf("completion order %v (expected shortest first)", finished)
	}
}

func TestWorkerPool_Process_SingleWorkerIsSequential(t *testing.T) {
	pool := NewWorkerPool[int, int]()

	var running, maxRunning atomic.Int32
	var order []int

	_, err := pool.Process(context.Background(), []int{1, 2, 3, 4, 5}, func(ctx context.Context, task int) (int, error) {
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		order = append(order, task)
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return task, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if maxRunning.Load() != 1 {
		t.Errorf("expected at most 1 concurrent task, saw %d", maxRunning.Load())
	}
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("tasks ran out of order: %v", order)
		}
	}
}

func TestWorkerPool_Process_WorkerCountClampedToTasks(t *testing.T) {
	pool := NewWorkerPool[int, int](WithWorkerCount(50))

	var running, maxRunning atomic.Int32
	var mu sync.Mutex
	_, err := pool.Process(context.Background(), []int{1, 2, 3}, func(ctx context.Context, task int) (int, error) {
		n := running.Add(1)
		mu.Lock()
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return task, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if maxRunning.Load() > 3 {
		t.Errorf("expected at most 3 concurrent tasks, saw %d", maxRunning.Load())
	}
}

func TestWorkerPool_Process_ErrorHandling(t *testing.T) {
	pool := NewWorkerPool[int, int](WithWorkerCount(4))

	expectedErr := errors.New("processing error")
	_, err := pool.Process(context.Background(), []int{1, 2, 3, 4, 5}, func(ctx context.Context, task int) (int, error) {
		if task == 3 {
			return 0, expectedErr
		}
		return task * 2, nil
	})

	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
}

func TestWorkerPool_Process_FirstErrorStopsDispatch(t *testing.T) {
	pool := NewWorkerPool[int, int]()

	var processed atomic.Int32
	boom := errors.New("boom")
	_, err := pool.Process(context.Background(), []int{1, 2, 3, 4, 5}, func(ctx context.Context, task int) (int, error) {
		processed.Add(1)
		if task == 2 {
			return 0, boom
		}
		return task, nil
	})

	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}
	if processed.Load() > 3 {
		t.Errorf("expected dispatch to stop shortly after the failure, processed %d", processed.Load())
	}
}

func TestWorkerPool_Process_ContinueOnError(t *testing.T) {
	pool := NewWorkerPool[int, int](WithWorkerCount(2), WithContinueOnError(true))

	var processed atomic.Int32
	first := errors.New("first")
	results, err := pool.Process(context.Background(), []int{1, 2, 3, 4}, func(ctx context.Context, task int) (int, error) {
		processed.Add(1)
		if task == 1 {
			return 0, first
		}
		return task * 10, nil
	})

	if !errors.Is(err, first) {
		t.Fatalf("expected %v, got %v", first, err)
	}
	if processed.Load() != 4 {
		t.Errorf("expected all 4 tasks to run, got %d", processed.Load())
	}
	if results[3] != 40 {
		t.Errorf("results[3] = %d, want 40", results[3])
	}
}

func TestWorkerPool_Process_ContextCancellation(t *testing.T) {
	pool := NewWorkerPool[int, int](WithWorkerCount(4))

	ctx, cancel := context.WithCancel(context.Background())
	tasks := make([]int, 100)
	for i := range tasks {
		tasks[i] = i
	}

	var processedCount atomic.Int32
	_, err := pool.Process(ctx, tasks, func(ctx context.Context, task int) (int, error) {
		if processedCount.Add(1) == 5 {
			cancel()
		}
		time.Sleep(10 * time.Millisecond)
		return task * 2, nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if processedCount.Load() >= 100 {
		t.Errorf("expected cancellation to stop dispatch, processed %d", processedCount.Load())
	}
}

func TestWorkerPool_Process_CancellationDoesNotWaitForStragglers(t *testing.T) {
	pool := NewWorkerPool[int, int](WithWorkerCount(2))

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	started := make(chan struct{}, 2)
	go func() {
		<-started
		cancel()
	}()

	begin := time.Now()
	_, err := pool.Process(ctx, []int{1, 2}, func(_ context.Context, task int) (int, error) {
		started <- struct{}{}
		<-release // ignores cancellation
		return task, nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(begin) > time.Second {
		t.Errorf("Process waited for a task that ignores cancellation")
	}
}

func TestWorkerPool_Process_PanicRecovery(t *testing.T) {
	pool := NewWorkerPool[int, int](WithWorkerCount(2))

	_, err := pool.Process(context.Background(), []int{1, 2, 3}, func(ctx context.Context, task int) (int, error) {
		if task == 2 {
			panic("something went wrong")
		}
		return task, nil
	})

	if !errors.Is(err, ErrWorkerPanic) {
		t.Fatalf("expected ErrWorkerPanic, got %v", err)
	}
}

func BenchmarkWorkerPool_Process(b *testing.B) {
	pool := NewWorkerPool[int, int](WithWorkerCount(8))
	tasks := make([]int, 1000)
	for i := range tasks {
		tasks[i] = i
	}
	fn := func(ctx context.Context, task int) (int, error) { return task * 2, nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := pool.Process(context.Background(), tasks, fn); err != nil {
			b.Fatal(err)
		}
	}
}
