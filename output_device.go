package outkit

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/hubertat/outkit/drivers"
)

const digitalTolerance = 1e-9

type OutputOptions struct {
	ActiveLow bool
	Initial   float64
}

// OutputDevice is a leaf driving a single output pin. Value is logical, ActiveLow inverts the raw pin level.
type OutputDevice struct {
	kind       string
	output     drivers.OutputPin
	activeHigh bool
	pwm        bool

	blinker

	lock       sync.Mutex
	controller *blinkJob
	closed     atomic.Bool
}

func newOutputDevice(kind string, driver drivers.IoDriver, pin uint16, pwm bool, opts OutputOptions) (*OutputDevice, error) {
	output, err := driver.GetOutput(pin, pwm)
	if err != nil {
		if errors.Is(err, drivers.ErrNoPWM) {
			return nil, configErrorf("%s on pin %d: %v", kind, pin, err)
		}
		return nil, errors.Wrapf(err, "failed to get output %d for %s", pin, kind)
	}

	od := &OutputDevice{
		kind:       kind,
		output:     output,
		activeHigh: !opts.ActiveLow,
		pwm:        pwm,
	}
	err = od.write(opts.Initial)
	if err != nil {
		output.Close()
		return nil, err
	}
	return od, nil
}

func NewOutputDevice(driver drivers.IoDriver, pin uint16, opts OutputOptions) (*OutputDevice, error) {
	return newOutputDevice("OutputDevice", driver, pin, false, opts)
}

func NewPWMOutputDevice(driver drivers.IoDriver, pin uint16, opts OutputOptions) (*OutputDevice, error) {
	return newOutputDevice("PWMOutputDevice", driver, pin, true, opts)
}

func NewLED(driver drivers.IoDriver, pin uint16, opts OutputOptions) (*OutputDevice, error) {
	return newOutputDevice("LED", driver, pin, false, opts)
}

func NewPWMLED(driver drivers.IoDriver, pin uint16, opts OutputOptions) (*OutputDevice, error) {
	return newOutputDevice("PWMLED", driver, pin, true, opts)
}

func NewBuzzer(driver drivers.IoDriver, pin uint16, opts OutputOptions) (*OutputDevice, error) {
	return newOutputDevice("Buzzer", driver, pin, false, opts)
}

func (od *OutputDevice) String() string {
	return fmt.Sprintf("%s(pin %d)", od.kind, od.output.Pin())
}

func (od *OutputDevice) Pin() uint16 {
	return od.output.Pin()
}

func (od *OutputDevice) IsPWM() bool {
	return od.pwm
}

func (od *OutputDevice) ActiveHigh() bool {
	return od.activeHigh
}

func (od *OutputDevice) Closed() bool {
	return od.closed.Load()
}

// State returns the logical value in [0, 1].
func (od *OutputDevice) State() (float64, error) {
	if od.Closed() {
		return 0, errors.Wrap(ErrDeviceClosed, od.String())
	}
	raw, err := od.output.GetState()
	if err != nil {
		return 0, errors.Wrapf(err, "%s read failed", od)
	}
	if !od.activeHigh {
		raw = 1 - raw
	}
	return raw, nil
}

func (od *OutputDevice) Value() (Value, error) {
	state, err := od.State()
	return Scalar(state), err
}

func (od *OutputDevice) IsActive() (bool, error) {
	state, err := od.State()
	return state != 0, err
}

// Set stops any blink driving this device, then writes the value.
func (od *OutputDevice) Set(value float64) error {
	if od.Closed() {
		return errors.Wrap(ErrDeviceClosed, od.String())
	}
	od.releaseController()
	return od.write(value)
}

func (od *OutputDevice) SetValue(value Value) error {
	if value.IsTuple() {
		return configErrorf("%s takes a scalar value, got %s", od, value)
	}
	return od.Set(value.Float())
}

func (od *OutputDevice) On() error {
	return od.Set(1)
}

func (od *OutputDevice) Off() error {
	return od.Set(0)
}

func (od *OutputDevice) Toggle() error {
	state, err := od.State()
	if err != nil {
		return err
	}
	if od.pwm {
		return od.Set(1 - state)
	}
	if state != 0 {
		return od.Off()
	}
	return od.On()
}

// Blink drives this device alone, taking it over from any other job.
func (od *OutputDevice) Blink(params BlinkParams) error {
	if od.Closed() {
		return errors.Wrap(ErrDeviceClosed, od.String())
	}
	return od.blink([]*OutputDevice{od}, params)
}

func (od *OutputDevice) Pulse(params BlinkParams) error {
	params.OnTime, params.OffTime = 0, 0
	return od.Blink(params)
}

func (od *OutputDevice) Close() error {
	if od.closed.Swap(true) {
		return nil
	}
	od.stopBlink()
	od.releaseController()
	return od.output.Close()
}

// write bypasses blink ownership; pwm values are clamped, digital ones rounded.
func (od *OutputDevice) write(value float64) error {
	if math.IsNaN(value) {
		return configErrorf("%s got NaN", od)
	}
	if od.pwm {
		value = clamp(value, 0, 1)
	} else {
		if value < -digitalTolerance || value > 1+digitalTolerance {
			return configErrorf("%s takes values in [0, 1], got %v", od, value)
		}
		if value >= 0.5 {
			value = 1
		} else {
			value = 0
		}
	}
	if !od.activeHigh {
		value = 1 - value
	}
	err := od.output.Set(value)
	if err != nil {
		return errors.Wrapf(err, "%s write failed", od)
	}
	return nil
}

func (od *OutputDevice) releaseController() {
	od.lock.Lock()
	job := od.controller
	od.controller = nil
	od.lock.Unlock()

	if job != nil {
		job.release(od)
	}
}

func (od *OutputDevice) currentController() *blinkJob {
	od.lock.Lock()
	defer od.lock.Unlock()

	return od.controller
}

func (od *OutputDevice) setController(job *blinkJob) {
	od.lock.Lock()
	defer od.lock.Unlock()

	od.controller = job
}

func (od *OutputDevice) clearController(job *blinkJob) {
	od.lock.Lock()
	defer od.lock.Unlock()

	if od.controller == job {
		od.controller = nil
	}
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
