package drivers

import (
	"context"
	"math"
	"slices"

	"github.com/pkg/errors"
)

var (
	ErrNotReady = errors.New("io driver not ready")
	ErrPinInUse = errors.New("pin already in use")
	ErrNoPWM    = errors.New("pin does not support pwm")
	ErrBadValue = errors.New("value out of range for pin")
)

// IoDriver is a hardware backend handing out reserved input and output pins.
type IoDriver interface {
	Setup(ctx context.Context) error
	Close() error
	String() string
	IsReady() bool
	GetInput(pin uint16, pullUp bool) (InputPin, error)
	GetOutput(pin uint16, pwm bool) (OutputPin, error)
	GetAllIo() (inputs []uint16, outputs []uint16)
}

func MapAllIoDrivers() map[string]IoDriver {
	drivers := []IoDriver{
		&GpIO{},
		&McpIO{},
		&PeriphIO{},
		&MockIoDriver{},
	}

	mapped := make(map[string]IoDriver)
	for _, driver := range drivers {
		mapped[driver.String()] = driver
	}
	return mapped
}

// OutputPin is a raw output line. Digital pins take 0 or 1, pwm pins any duty in [0, 1].
type OutputPin interface {
	Pin() uint16
	IsPWM() bool
	GetState() (float64, error)
	Set(float64) error
	Close() error
}

type InputPin interface {
	Pin() uint16
	GetState() (bool, error)
	SubscribeToEdges(EdgeListener) error
	Close() error
}

type EdgeListener interface {
	FireEdge(state bool)
}

// EdgeFunc adapts a plain function to EdgeListener.
type EdgeFunc func(state bool)

func (ef EdgeFunc) FireEdge(state bool) {
	ef(state)
}

func checkValue(value float64, pwm bool) error {
	if math.IsNaN(value) || value < 0 || value > 1 {
		return errors.Wrapf(ErrBadValue, "got %v", value)
	}
	if !pwm && value != 0 && value != 1 {
		return errors.Wrapf(ErrBadValue, "digital pin takes 0 or 1, got %v", value)
	}
	return nil
}

type pinUse uint8

const (
	usedAsInput pinUse = iota + 1
	usedAsOutput
)

// reservations tracks which pins a driver has handed out and how.
type reservations map[uint16]pinUse

func (re reservations) reserve(pin uint16, use pinUse) error {
	if _, taken := re[pin]; taken {
		return errors.Wrapf(ErrPinInUse, "pin %d", pin)
	}
	re[pin] = use
	return nil
}

func (re reservations) release(pin uint16) {
	delete(re, pin)
}

// list returns the pins currently handed out, sorted.
func (re reservations) list() (inputs []uint16, outputs []uint16) {
	for pin, use := range re {
		if use == usedAsInput {
			inputs = append(inputs, pin)
		} else {
			outputs = append(outputs, pin)
		}
	}
	slices.Sort(inputs)
	slices.Sort(outputs)
	return
}
