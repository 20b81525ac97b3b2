package outkit

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/hubertat/outkit/drivers"
)

const timingTolerance = 30 * time.Millisecond

func mockDriver(t testing.TB, pwm bool) *drivers.MockIoDriver {
	t.Helper()

	md := &drivers.MockIoDriver{PWM: pwm}
	if err := md.Setup(context.Background()); err != nil {
		t.Fatalf("mock driver setup failed: %v", err)
	}
	return md
}

// must fails the test on err, call it as must(NewX(...))(t).
func must[T any](value T, err error) func(testing.TB) T {
	return func(t testing.TB) T {
		t.Helper()

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return value
	}
}

func assertNoError(t testing.TB, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertErrorIs(t testing.TB, err, target error) {
	t.Helper()

	if !errors.Is(err, target) {
		t.Errorf("got error %v want %v", err, target)
	}
}

func assertBools(t testing.TB, got, want bool) {
	t.Helper()

	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func assertFloats(t testing.TB, got, want float64) {
	t.Helper()

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("got: %v, want: %v", got, want)
	}
}

func assertValue(t testing.TB, device Device, want Value) {
	t.Helper()

	got, err := device.Value()
	if err != nil {
		t.Fatalf("value read failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("got value %s want %s", got, want)
	}
}

func assertPins(t testing.TB, md *drivers.MockIoDriver, pins []uint16, want []float64) {
	t.Helper()

	for i, pin := range pins {
		got, _ := md.Output(pin).GetState()
		if math.Abs(got-want[i]) > 1e-9 {
			t.Errorf("pin %d got %v want %v", pin, got, want[i])
		}
	}
}

func assertLedPins(t testing.TB, leds []*OutputDevice, want []uint16) {
	t.Helper()

	if len(leds) != len(want) {
		t.Fatalf("len(got) = %d len(want) = %d", len(leds), len(want))
	}
	for i, led := range leds {
		if led.Pin() != want[i] {
			t.Errorf("for key [%d] got: %d want: %d", i, led.Pin(), want[i])
		}
	}
}

// assertStates compares recorded values only.
func assertStates(t testing.TB, out *drivers.MockOutput, want []float64) {
	t.Helper()

	states := out.States()
	if len(states) != len(want) {
		t.Fatalf("pin %d: got %d states %v want %v", out.Pin(), len(states), states, want)
	}
	for i, state := range states {
		if math.Abs(state.State-want[i]) > 1e-9 {
			t.Errorf("pin %d state [%d] got %v want %v", out.Pin(), i, state.State, want[i])
		}
	}
}

// assertStatesAndTimes compares values exactly and deltas within timingTolerance.
func assertStatesAndTimes(t testing.TB, out *drivers.MockOutput, want []drivers.PinState) {
	t.Helper()

	states := out.States()
	if len(states) != len(want) {
		t.Fatalf("pin %d: got %d states %v want %v", out.Pin(), len(states), states, want)
	}
	for i, state := range states {
		if math.Abs(state.State-want[i].State) > 1e-9 {
			t.Errorf("pin %d state [%d] got %v want %v", out.Pin(), i, state.State, want[i].State)
		}
		if diff := state.Delta - want[i].Delta; diff > timingTolerance || diff < -timingTolerance {
			t.Errorf("pin %d delta [%d] got %v want %v", out.Pin(), i, state.Delta, want[i].Delta)
		}
	}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
