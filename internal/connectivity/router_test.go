package connectivity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegisterLocal_and_Call(t *testing.T) {
	r := New()
	called := false
	r.RegisterLocal("echo", func(ctx context.Context, payload []byte) ([]byte, error) {
		called = true
		return payload, nil
	})

	resp, err := r.Call(context.Background(), "echo", []byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("local handler not called")
	}
	if string(resp) != "hello" {
		t.Fatalf("got %q, want %q", resp, "hello")
	}
}

func TestCall_ServiceNotFound(t *testing.T) {
	r := New()
	_, err := r.Call(context.Background(), "nonexistent", nil)
	var snf *ErrServiceNotFound
	if !errors.As(err, &snf) {
		t.Fatalf("expected ErrServiceNotFound, got %T: %v", err, err)
	}
	if snf.Service != "nonexistent" {
		t.Fatalf("got service %q, want %q", snf.Service, "nonexistent")
	}
}

func TestServices_Sorted(t *testing.T) {
	r := New()
	noop := func(ctx context.Context, payload []byte) ([]byte, error) { return nil, nil }
	r.RegisterLocal("snapshot", noop)
	r.RegisterLocal("click", noop)
	r.RegisterLocal("findByRole", noop)

	want := []string{"click", "findByRole", "snapshot"}
	if got := r.Services(); !slices.Equal(got, want) {
		t.Fatalf("services: got %v, want %v", got, want)
	}
	if !r.Has("click") || r.Has("fill") {
		t.Fatal("Has misreports registration")
	}
}

func TestUse_Order(t *testing.T) {
	r := New()
	var order []string
	mw := func(name string) HandlerMiddleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, p []byte) ([]byte, error) {
				order = append(order, name)
				return next(ctx, p)
			}
		}
	}
	r.Use(mw("outer"), mw("inner"))
	r.RegisterLocal("x", func(ctx context.Context, p []byte) ([]byte, error) {
		order = append(order, "handler")
		return nil, nil
	})
	if _, err := r.Call(context.Background(), "x", nil); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(order, []string{"outer", "inner", "handler"}) {
		t.Fatalf("order: got %v", order)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(discard())(func(ctx context.Context, p []byte) ([]byte, error) {
		panic("boom")
	})
	_, err := h(context.Background(), nil)
	var pe *ErrPanic
	if !errors.As(err, &pe) || pe.Value != "boom" {
		t.Fatalf("expected ErrPanic(boom), got %v", err)
	}
}

func TestTimeout(t *testing.T) {
	h := Timeout(20 * time.Millisecond)(func(ctx context.Context, p []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	start := time.Now()
	_, err := h(context.Background(), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout did not fire")
	}
}

func TestLogging_PassesThrough(t *testing.T) {
	errFail := errors.New("fail")
	h := Logging(discard(), "x")(func(ctx context.Context, p []byte) ([]byte, error) {
		return nil, errFail
	})
	if _, err := h(context.Background(), []byte("{}")); !errors.Is(err, errFail) {
		t.Fatalf("got %v, want %v", err, errFail)
	}
}
