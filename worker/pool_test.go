package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"textgrab/engine"
)

func TestPoolSubmitDropWhenBusy(t *testing.T) {
	block := make(chan struct{})
	p := New(1, func(ctx context.Context, image []byte) (engine.Result, error) {
		<-block
		return engine.Result{Text: "ok"}, nil
	})
	ctx := context.Background()

	done := make(chan struct{})
	// First submit occupies the single queue slot or worker
	ok := p.Submit(ctx, []byte("a"), func(engine.Result, error) { close(done) })
	if !ok {
		t.Fatal("first submit should succeed")
	}
	// Immediately try a second submit; with 1-slot queue, it may still succeed once, but the next should drop
	ok2 := p.Submit(ctx, []byte("b"), func(engine.Result, error) {})
	// Third submit must drop given 1-slot queue and one in-flight
	ok3 := p.Submit(ctx, []byte("c"), func(engine.Result, error) {})
	if ok2 && ok3 {
		t.Fatal("expected at least one submit to drop due to full queue")
	}

	close(block)
	<-done
	p.Close()
}

func TestPoolDeadlineReturnsContextError(t *testing.T) {
	release := make(chan struct{})
	p := New(1, func(ctx context.Context, image []byte) (engine.Result, error) {
		<-release
		return engine.Result{}, nil
	})
	defer p.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	if !p.Submit(ctx, []byte("x"), func(_ engine.Result, err error) { errCh <- err }) {
		t.Fatal("submit should succeed")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("want deadline error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestPoolResultsReachCallback(t *testing.T) {
	p := New(2, func(ctx context.Context, image []byte) (engine.Result, error) {
		return engine.Result{Text: string(image) + "!"}, nil
	})
	defer p.Close()

	got := make(chan string, 1)
	if !p.Submit(context.Background(), []byte("hello"), func(res engine.Result, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		got <- res.Text
	}) {
		t.Fatal("submit should succeed")
	}

	select {
	case text := <-got:
		if text != "hello!" {
			t.Fatalf("wrong result %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
}
