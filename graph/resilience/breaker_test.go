package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegistry_Transitions(t *testing.T) {
	t.Run("opens at failure threshold", func(t *testing.T) {
		reg := NewRegistry(3, time.Minute)

		for i := 0; i < 2; i++ {
			reg.RecordFailure("api")
		}
		if got := reg.State("api"); got != CircuitClosed {
			t.Fatalf("state after 2 failures = %s", got)
		}

		reg.RecordFailure("api")
		if got := reg.State("api"); got != CircuitOpen {
			t.Errorf("state after threshold = %s", got)
		}
		if reg.AllowRequest("api") {
			t.Error("open circuit should reject")
		}
	})

	t.Run("success resets the failure count", func(t *testing.T) {
		reg := NewRegistry(3, time.Minute)

		reg.RecordFailure("api")
		reg.RecordFailure("api")
		reg.RecordSuccess("api")
		reg.RecordFailure("api")
		reg.RecordFailure("api")

		if got := reg.State("api"); got != CircuitClosed {
			t.Errorf("non-consecutive failures opened circuit: %s", got)
		}
	})

	t.Run("reset timeout allows a half-open trial", func(t *testing.T) {
		reg := NewRegistry(1, time.Minute)
		clock := time.Now()
		reg.now = func() time.Time { return clock }

		reg.RecordFailure("api")
		if reg.AllowRequest("api") {
			t.Fatal("open circuit should reject before timeout")
		}

		clock = clock.Add(61 * time.Second)
		if !reg.AllowRequest("api") {
			t.Fatal("expected a trial after reset timeout")
		}
		if got := reg.State("api"); got != CircuitHalfOpen {
			t.Errorf("state = %s", got)
		}
	})

	t.Run("half-open admits one trial at a time", func(t *testing.T) {
		reg := NewRegistry(1, time.Minute)
		clock := time.Now()
		reg.now = func() time.Time { return clock }

		reg.RecordFailure("api")
		clock = clock.Add(2 * time.Minute)

		if !reg.AllowRequest("api") {
			t.Fatal("expected the first request after the reset timeout to pass")
		}
		if reg.AllowRequest("api") || reg.AllowRequest("api") {
			t.Error("half-open admitted concurrent requests while the trial was in flight")
		}

		// The trial succeeding closes the circuit and lifts the gate.
		reg.RecordSuccess("api")
		if got := reg.State("api"); got != CircuitClosed {
			t.Fatalf("state = %s", got)
		}
		if !reg.AllowRequest("api") {
			t.Error("closed circuit should allow")
		}

		// A failed trial reopens; the next window again admits exactly one.
		reg.RecordFailure("api")
		clock = clock.Add(2 * time.Minute)
		if !reg.AllowRequest("api") {
			t.Fatal("expected a trial after the second reset timeout")
		}
		if reg.AllowRequest("api") {
			t.Error("second trial admitted before the first resolved")
		}
		reg.RecordFailure("api")
		if got := reg.State("api"); got != CircuitOpen {
			t.Errorf("state = %s", got)
		}
	})

	t.Run("half-open closes on success", func(t *testing.T) {
		reg := NewRegistry(1, time.Minute)
		clock := time.Now()
		reg.now = func() time.Time { return clock }

		reg.RecordFailure("api")
		clock = clock.Add(2 * time.Minute)
		reg.AllowRequest("api")

		reg.RecordSuccess("api")
		if got := reg.State("api"); got != CircuitClosed {
			t.Errorf("state = %s", got)
		}
	})

	t.Run("half-open reopens on failure", func(t *testing.T) {
		reg := NewRegistry(1, time.Minute)
		clock := time.Now()
		reg.now = func() time.Time { return clock }

		reg.RecordFailure("api")
		clock = clock.Add(2 * time.Minute)
		reg.AllowRequest("api")

		reg.RecordFailure("api")
		if got := reg.State("api"); got != CircuitOpen {
			t.Errorf("state = %s", got)
		}
		if reg.AllowRequest("api") {
			t.Error("reopened circuit should reject")
		}
	})

	t.Run("circuits are independent", func(t *testing.T) {
		reg := NewRegistry(1, time.Minute)
		reg.RecordFailure("flaky")

		if got := reg.State("healthy"); got != CircuitClosed {
			t.Errorf("untouched circuit = %s", got)
		}
		if !reg.AllowRequest("healthy") {
			t.Error("healthy circuit should allow")
		}
	})

	t.Run("transitions are observable", func(t *testing.T) {
		reg := NewRegistry(1, time.Minute)
		clock := time.Now()
		reg.now = func() time.Time { return clock }

		var seen []CircuitState
		reg.OnTransition(func(id string, to CircuitState) {
			if id == "api" {
				seen = append(seen, to)
			}
		})

		reg.RecordFailure("api")
		clock = clock.Add(2 * time.Minute)
		reg.AllowRequest("api")
		reg.RecordSuccess("api")

		want := []CircuitState{CircuitOpen, CircuitHalfOpen, CircuitClosed}
		if len(seen) != len(want) {
			t.Fatalf("transitions = %v", seen)
		}
		for i := range want {
			if seen[i] != want[i] {
				t.Errorf("transition[%d] = %s, want %s", i, seen[i], want[i])
			}
		}
	})
}

func TestWithBreaker(t *testing.T) {
	t.Run("passes through and records success", func(t *testing.T) {
		reg := NewRegistry(1, time.Minute)
		got, err := WithBreaker(context.Background(), reg, "api", func(context.Context) (string, error) {
			return "ok", nil
		}, nil)
		if err != nil || got != "ok" {
			t.Fatalf("got %q, %v", got, err)
		}
	})

	t.Run("failures open the circuit", func(t *testing.T) {
		reg := NewRegistry(2, time.Minute)
		boom := errors.New("backend down")
		op := func(context.Context) (string, error) { return "", boom }

		for i := 0; i < 2; i++ {
			if _, err := WithBreaker(context.Background(), reg, "api", op, nil); !errors.Is(err, boom) {
				t.Fatalf("expected op error, got %v", err)
			}
		}

		// Third call is rejected without reaching the op.
		called := false
		_, err := WithBreaker(context.Background(), reg, "api", func(context.Context) (string, error) {
			called = true
			return "", nil
		}, nil)
		if !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("expected ErrCircuitOpen, got %v", err)
		}
		if called {
			t.Error("op ran on an open circuit")
		}
	})

	t.Run("fallback answers rejected requests", func(t *testing.T) {
		reg := NewRegistry(1, time.Minute)
		reg.RecordFailure("api")

		got, err := WithBreaker(context.Background(), reg, "api",
			func(context.Context) (string, error) { return "", errors.New("unreachable") },
			func(context.Context) (string, error) { return "cached answer", nil },
		)
		if err != nil {
			t.Fatalf("fallback failed: %v", err)
		}
		if got != "cached answer" {
			t.Errorf("got %q", got)
		}
	})
}
