package pool_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/utkarsh5026/taskflow/pool"
)

func TestHooksBasic(t *testing.T) {
	var mu sync.Mutex
	events := []string{}

	wp := pool.NewWorkerPool[int, string](
		pool.WithWorkerCount(2),
		pool.WithBeforeTaskStart(func(task int) {
			mu.Lock()
			events = append(events, fmt.Sprintf("start:%d", task))
			mu.Unlock()
		}),
		pool.WithOnTaskEnd(func(task int, result string, err error) {
			mu.Lock()
			if err != nil {
				events = append(events, fmt.Sprintf("end:%d:error", task))
			} else {
				events = append(events, fmt.Sprintf("end:%d:%s", task, result))
			}
			mu.Unlock()
		}),
	)

	tasks := []int{1, 2, 3}
	results, err := wp.Process(context.Background(), tasks, func(ctx context.Context, task int) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return fmt.Sprintf("result-%d", task), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	mu.Lock()
	defer mu.Unlock()

	if len(events) != 6 {
		t.Errorf("expected 6 events, got %d: %v", len(events), events)
	}
	joined := strings.Join(events, ",")
	for _, task := range tasks {
		if !strings.Contains(joined, fmt.Sprintf("start:%d", task)) {
			t.Errorf("start event not found for task %d", task)
		}
		if !strings.Contains(joined, fmt.Sprintf("end:%d:result-%d", task, task)) {
			t.Errorf("end event not found for task %d", task)
		}
	}
}

func TestHooksWithError(t *testing.T) {
	var mu sync.Mutex
	var lastError error

	wp := pool.NewWorkerPool[int, string](
		pool.WithWorkerCount(2),
		pool.WithOnTaskEnd(func(task int, result string, err error) {
			mu.Lock()
			if err != nil {
				lastError = err
			}
			mu.Unlock()
		}),
	)

	_, err := wp.Process(context.Background(), []int{1, 2, 3}, func(ctx context.Context, task int) (string, error) {
		if task == 2 {
			return "", errors.New("task 2 failed")
		}
		return fmt.Sprintf("result-%d", task), nil
	})
	if err == nil {
		t.Fatal("expected error but got nil")
	}

	mu.Lock()
	defer mu.Unlock()
	if lastError == nil {
		t.Error("expected lastError to be set by hook")
	}
}

func TestHooksTypeSafety(t *testing.T) {
	t.Run("beforeTaskStart type mismatch", func(t *testing.T) {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("expected panic for type mismatch")
			}
			if msg := fmt.Sprint(r); !strings.Contains(msg, "WithBeforeTaskStart") {
				t.Errorf("panic message doesn't name the hook: %s", msg)
			}
		}()

		_ = pool.NewWorkerPool[int, string](pool.WithBeforeTaskStart(func(task string) {}))
	})

	t.Run("onTaskEnd type mismatch", func(t *testing.T) {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("expected panic for type mismatch")
			}
			if msg := fmt.Sprint(r); !strings.Contains(msg, "WithOnTaskEnd") {
				t.Errorf("panic message doesn't name the hook: %s", msg)
			}
		}()

		_ = pool.NewWorkerPool[int, string](pool.WithOnTaskEnd(func(task int, result int, err error) {}))
	})
}
