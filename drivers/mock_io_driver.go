package drivers

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const mockDriverName = "mock_driver"

// PinState is one recorded change of a mock output, Delta is measured from the previous change.
type PinState struct {
	Delta time.Duration
	State float64
}

type MockOutput struct {
	pin    uint16
	pwm    bool
	driver *MockIoDriver

	lock       sync.Mutex
	state      float64
	states     []PinState
	lastChange time.Time

	writeTo          io.Writer
	writeStateChange bool
}

func newMockOutput(pin uint16, pwm bool, driver *MockIoDriver) *MockOutput {
	return &MockOutput{
		pin:        pin,
		pwm:        pwm,
		driver:     driver,
		states:     []PinState{{}},
		lastChange: time.Now(),
	}
}

func (mo *MockOutput) Pin() uint16 {
	return mo.pin
}

func (mo *MockOutput) IsPWM() bool {
	return mo.pwm
}

func (mo *MockOutput) GetState() (float64, error) {
	mo.lock.Lock()
	defer mo.lock.Unlock()

	return mo.state, nil
}

func (mo *MockOutput) Set(state float64) error {
	err := checkValue(state, mo.pwm)
	if err != nil {
		return err
	}

	mo.lock.Lock()
	defer mo.lock.Unlock()

	if state == mo.state {
		return nil
	}
	now := time.Now()
	mo.states = append(mo.states, PinState{Delta: now.Sub(mo.lastChange), State: state})
	mo.lastChange = now
	mo.state = state
	if mo.writeStateChange {
		fmt.Fprintf(mo.writeTo, "[pin %d] state changed to %v\n", mo.pin, state)
	}
	return nil
}

// States returns a copy of the recorded changes, starting with the state at creation or last ClearStates.
func (mo *MockOutput) States() []PinState {
	mo.lock.Lock()
	defer mo.lock.Unlock()

	states := make([]PinState, len(mo.states))
	copy(states, mo.states)
	return states
}

func (mo *MockOutput) ClearStates() {
	mo.lock.Lock()
	defer mo.lock.Unlock()

	mo.lastChange = time.Now()
	mo.states = []PinState{{State: mo.state}}
}

func (mo *MockOutput) Close() error {
	mo.driver.release(mo.pin)
	return nil
}

type MockInput struct {
	pin    uint16
	pullUp bool
	driver *MockIoDriver

	lock      sync.Mutex
	state     bool
	listeners []EdgeListener
}

func (mi *MockInput) Pin() uint16 {
	return mi.pin
}

func (mi *MockInput) GetState() (bool, error) {
	mi.lock.Lock()
	defer mi.lock.Unlock()

	return mi.state, nil
}

func (mi *MockInput) SubscribeToEdges(listener EdgeListener) error {
	mi.lock.Lock()
	defer mi.lock.Unlock()

	mi.listeners = append(mi.listeners, listener)
	return nil
}

func (mi *MockInput) drive(state bool) {
	mi.lock.Lock()
	changed := mi.state != state
	mi.state = state
	listeners := append([]EdgeListener(nil), mi.listeners...)
	mi.lock.Unlock()

	if !changed {
		return
	}
	for _, listener := range listeners {
		listener.FireEdge(state)
	}
}

func (mi *MockInput) DriveHigh() {
	mi.drive(true)
}

func (mi *MockInput) DriveLow() {
	mi.drive(false)
}

func (mi *MockInput) Close() error {
	mi.lock.Lock()
	mi.listeners = nil
	mi.lock.Unlock()

	mi.driver.release(mi.pin)
	return nil
}

// MockIoDriver keeps pins in memory and records every output change; with PWM set all outputs accept duty values.
type MockIoDriver struct {
	PWM bool `toml:"pwm"`

	lock     sync.Mutex
	inputs   map[uint16]*MockInput
	outputs  map[uint16]*MockOutput
	reserved reservations
	ready    bool
}

func (md *MockIoDriver) Setup(ctx context.Context) error {
	md.lock.Lock()
	defer md.lock.Unlock()

	md.inputs = make(map[uint16]*MockInput)
	md.outputs = make(map[uint16]*MockOutput)
	md.reserved = make(reservations)
	md.ready = true
	return nil
}

func (md *MockIoDriver) Close() error {
	md.lock.Lock()
	defer md.lock.Unlock()

	md.ready = false
	return nil
}

func (md *MockIoDriver) String() string {
	return mockDriverName
}

func (md *MockIoDriver) IsReady() bool {
	md.lock.Lock()
	defer md.lock.Unlock()

	return md.ready
}

func (md *MockIoDriver) release(pin uint16) {
	md.lock.Lock()
	defer md.lock.Unlock()

	md.reserved.release(pin)
}

func (md *MockIoDriver) GetInput(pin uint16, pullUp bool) (InputPin, error) {
	md.lock.Lock()
	defer md.lock.Unlock()

	if !md.ready {
		return nil, errors.Wrapf(ErrNotReady, "mock input %d", pin)
	}
	if err := md.reserved.reserve(pin, usedAsInput); err != nil {
		return nil, err
	}
	input, found := md.inputs[pin]
	if !found {
		input = &MockInput{pin: pin, driver: md, state: pullUp}
		md.inputs[pin] = input
	}
	input.pullUp = pullUp
	return input, nil
}

func (md *MockIoDriver) GetOutput(pin uint16, pwm bool) (OutputPin, error) {
	md.lock.Lock()
	defer md.lock.Unlock()

	if !md.ready {
		return nil, errors.Wrapf(ErrNotReady, "mock output %d", pin)
	}
	if pwm && !md.PWM {
		return nil, errors.Wrapf(ErrNoPWM, "mock output %d", pin)
	}
	if err := md.reserved.reserve(pin, usedAsOutput); err != nil {
		return nil, err
	}
	output, found := md.outputs[pin]
	if !found {
		output = newMockOutput(pin, md.PWM, md)
		md.outputs[pin] = output
	}
	return output, nil
}

// Output returns the mock output for pin, nil if it was never handed out.
func (md *MockIoDriver) Output(pin uint16) *MockOutput {
	md.lock.Lock()
	defer md.lock.Unlock()

	return md.outputs[pin]
}

func (md *MockIoDriver) Input(pin uint16) *MockInput {
	md.lock.Lock()
	defer md.lock.Unlock()

	return md.inputs[pin]
}

func (md *MockIoDriver) GetAllIo() (inputs []uint16, outputs []uint16) {
	md.lock.Lock()
	defer md.lock.Unlock()

	return md.reserved.list()
}

func (md *MockIoDriver) MonitorStateChanges(writer io.Writer) {
	md.lock.Lock()
	defer md.lock.Unlock()

	for _, out := range md.outputs {
		out.lock.Lock()
		out.writeTo = writer
		out.writeStateChange = true
		out.lock.Unlock()
	}
}
