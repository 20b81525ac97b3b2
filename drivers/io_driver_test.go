package drivers

import (
	"math"
	"slices"
	"testing"

	"github.com/pkg/errors"
)

func TestIoDriverNames(t *testing.T) {
	for want, driver := range map[string]IoDriver{
		"gpio":        &GpIO{},
		"mcpio":       &McpIO{},
		"periph":      &PeriphIO{},
		"mock_driver": &MockIoDriver{},
	} {
		t.Run(want, func(t *testing.T) {
			got := driver.String()
			if got != want {
				t.Errorf("got %s want %s", got, want)
			}
			if driver.IsReady() {
				t.Errorf("%s ready before Setup", got)
			}
		})
	}
}

func TestNotReadyDrivers(t *testing.T) {
	for name, driver := range MapAllIoDrivers() {
		t.Run(name, func(t *testing.T) {
			_, err := driver.GetOutput(1, false)
			if !errors.Is(err, ErrNotReady) {
				t.Errorf("GetOutput got %v want %v", err, ErrNotReady)
			}
			_, err = driver.GetInput(1, true)
			if !errors.Is(err, ErrNotReady) {
				t.Errorf("GetInput got %v want %v", err, ErrNotReady)
			}
		})
	}
}

func TestCheckValue(t *testing.T) {
	cases := []struct {
		value float64
		pwm   bool
		ok    bool
	}{
		{0, false, true},
		{1, false, true},
		{0.5, false, false},
		{0.5, true, true},
		{1.01, true, false},
		{-0.01, true, false},
		{math.NaN(), true, false},
		{math.NaN(), false, false},
	}
	for _, c := range cases {
		err := checkValue(c.value, c.pwm)
		if (err == nil) != c.ok {
			t.Errorf("checkValue(%v, pwm %v) got %v", c.value, c.pwm, err)
		}
		if err != nil && !errors.Is(err, ErrBadValue) {
			t.Errorf("got %v want %v", err, ErrBadValue)
		}
	}
}

func TestReservations(t *testing.T) {
	re := make(reservations)

	if err := re.reserve(4, usedAsOutput); err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	if err := re.reserve(4, usedAsInput); !errors.Is(err, ErrPinInUse) {
		t.Errorf("got %v want %v", err, ErrPinInUse)
	}
	re.release(4)
	if err := re.reserve(4, usedAsInput); err != nil {
		t.Errorf("reserve after release failed: %v", err)
	}
}

func TestReservationsList(t *testing.T) {
	re := make(reservations)
	for _, pin := range []uint16{9, 2, 7} {
		re.reserve(pin, usedAsOutput)
	}
	re.reserve(5, usedAsInput)
	re.reserve(1, usedAsInput)
	re.release(7)
	re.release(1)

	inputs, outputs := re.list()
	if !slices.Equal(inputs, []uint16{5}) {
		t.Errorf("got inputs %v want [5]", inputs)
	}
	if !slices.Equal(outputs, []uint16{2, 9}) {
		t.Errorf("got outputs %v want [2 9]", outputs)
	}
}
