package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolDo(t *testing.T) {
	t.Parallel()

	p := New(Options{Workers: 2}, nil, nil)
	p.Start()
	defer p.Close()

	got, err := p.Do(context.Background(), func(context.Context) (string, error) {
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if got != "done" {
		t.Fatalf("unexpected result: %q", got)
	}

	_, err = p.Do(context.Background(), func(context.Context) (string, error) {
		return "", errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected task error, got %v", err)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	const workers = 2
	p := New(Options{Workers: workers, QueueSize: 16}, nil, nil)
	p.Start()
	defer p.Close()

	var (
		running atomic.Int32
		peak    atomic.Int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Do(context.Background(), func(context.Context) (string, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return "", nil
			})
			if err != nil {
				t.Errorf("Do returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > workers {
		t.Fatalf("expected at most %d concurrent tasks, saw %d", workers, got)
	}
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	t.Parallel()

	p := New(Options{Workers: 1, QueueSize: 1}, nil, nil)
	p.Start()

	started := make(chan struct{})
	release := make(chan struct{})

	first, err := p.Submit(context.Background(), func(context.Context) (string, error) {
		close(started)
		<-release
		return "first", nil
	})
	if err != nil {
		t.Fatalf("submit first: %v", err)
	}
	<-started

	second, err := p.Submit(context.Background(), func(context.Context) (string, error) {
		return "second", nil
	})
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}

	if _, err := p.Submit(context.Background(), func(context.Context) (string, error) {
		return "third", nil
	}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	close(release)
	for _, f := range []*Future{first, second} {
		if _, err := f.Wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	p.Close()
}

func TestPoolSubmitAfterClose(t *testing.T) {
	t.Parallel()

	p := New(Options{Workers: 1}, nil, nil)
	p.Start()
	p.Close()

	_, err := p.Submit(context.Background(), func(context.Context) (string, error) { return "", nil })
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestPoolCallTimeout(t *testing.T) {
	t.Parallel()

	p := New(Options{Workers: 1, CallTimeout: 10 * time.Millisecond}, nil, nil)
	p.Start()
	defer p.Close()

	_, err := p.Do(context.Background(), func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPoolSkipsCanceledTasks(t *testing.T) {
	t.Parallel()

	p := New(Options{Workers: 1}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Bool
	f, err := p.Submit(ctx, func(context.Context) (string, error) {
		called.Store(true)
		return "", nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	p.Start()
	defer p.Close()

	if _, err := f.Wait(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called.Load() {
		t.Fatalf("canceled task must not reach the oracle")
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	t.Parallel()

	p := New(Options{Workers: 1}, nil, nil)
	p.Start()
	defer p.Close()

	_, err := p.Do(context.Background(), func(context.Context) (string, error) {
		panic("model crashed")
	})
	if err == nil {
		t.Fatalf("expected error from panicking task")
	}

	got, err := p.Do(context.Background(), func(context.Context) (string, error) { return "alive", nil })
	if err != nil || got != "alive" {
		t.Fatalf("worker should survive a panic, got %q, %v", got, err)
	}
}

type countingOracle struct {
	calls atomic.Int32
}

func (c *countingOracle) Complete(_ context.Context, prompt string) (string, error) {
	c.calls.Add(1)
	return fmt.Sprintf("echo: %s", prompt), nil
}

func TestPoolBind(t *testing.T) {
	t.Parallel()

	p := New(Options{Workers: 1}, nil, nil)
	p.Start()
	defer p.Close()

	oracle := &countingOracle{}
	bound := p.Bind(oracle)

	got, err := bound.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "echo: hi" {
		t.Fatalf("unexpected output: %q", got)
	}
	if oracle.calls.Load() != 1 {
		t.Fatalf("expected one oracle call, got %d", oracle.calls.Load())
	}
}
