package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	l := newLimiter(1)
	if err := l.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline while full, got %v", err)
	}

	l.release()
	if err := l.acquire(context.Background()); err != nil {
		t.Fatalf("slot not freed: %v", err)
	}
	l.release()
}

func TestLimiter_Unlimited(t *testing.T) {
	var l *limiter = newLimiter(0)
	for i := 0; i < 3; i++ {
		if err := l.acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	l.release()
}
