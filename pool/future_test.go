package pool

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_Get(t *testing.T) {
	t.Run("successful result", func(t *testing.T) {
		future := Go(context.Background(), func(ctx context.Context) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return "success", nil
		})

		value, err := future.Get()
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if value != "success" {
			t.Errorf("expected value 'success', got %v", value)
		}
	})

	t.Run("error result", func(t *testing.T) {
		expectedErr := errors.New("task failed")
		future := Go(context.Background(), func(ctx context.Context) (string, error) {
			return "", expectedErr
		})

		_, err := future.Get()
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
	})

	t.Run("panic is captured", func(t *testing.T) {
		future := Go(context.Background(), func(ctx context.Context) (int, error) {
			panic("background crash")
		})

		_, err := future.Get()
		if !errors.Is(err, ErrWorkerPanic) {
			t.Errorf("expected ErrWorkerPanic, got %v", err)
		}
	})
}

func TestFuture_IsCompleted(t *testing.T) {
	release := make(chan struct{})
	future := Go(context.Background(), func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})

	if future.IsCompleted() {
		t.Fatal("future completed before work finished")
	}

	close(release)
	<-future.Done()

	if !future.IsCompleted() {
		t.Fatal("future not completed after work finished")
	}
}

func TestFuture_GetWithContext(t *testing.T) {
	future := Go(context.Background(), func(ctx context.Context) (int, error) {
		time.Sleep(time.Second)
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := future.GetWithContext(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestResolved(t *testing.T) {
	boom := errors.New("config")
	f := Resolved(0, boom)
	if !f.IsCompleted() {
		t.Fatal("resolved future should be completed")
	}
	if _, err := f.Get(); !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
}
