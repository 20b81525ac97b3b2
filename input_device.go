package outkit

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/hubertat/outkit/drivers"
)

// InputDevice reads one pin. With pull up the device is active while the pin is low.
type InputDevice struct {
	kind   string
	input  drivers.InputPin
	pullUp bool

	lock        sync.Mutex
	whenActive  func()
	whenPassive func()
	closed      bool
}

func NewInputDevice(driver drivers.IoDriver, pin uint16, pullUp bool) (*InputDevice, error) {
	return newInputDevice("InputDevice", driver, pin, pullUp)
}

func NewButton(driver drivers.IoDriver, pin uint16, pullUp bool) (*InputDevice, error) {
	return newInputDevice("Button", driver, pin, pullUp)
}

func newInputDevice(kind string, driver drivers.IoDriver, pin uint16, pullUp bool) (*InputDevice, error) {
	input, err := driver.GetInput(pin, pullUp)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get input %d for %s", pin, kind)
	}

	id := &InputDevice{kind: kind, input: input, pullUp: pullUp}
	err = input.SubscribeToEdges(id)
	if err != nil {
		input.Close()
		return nil, errors.Wrapf(err, "%s failed to subscribe to edges", kind)
	}
	return id, nil
}

func (id *InputDevice) String() string {
	return fmt.Sprintf("%s(pin %d)", id.kind, id.input.Pin())
}

func (id *InputDevice) Pin() uint16 {
	return id.input.Pin()
}

func (id *InputDevice) Closed() bool {
	id.lock.Lock()
	defer id.lock.Unlock()

	return id.closed
}

func (id *InputDevice) IsActive() (bool, error) {
	if id.Closed() {
		return false, errors.Wrap(ErrDeviceClosed, id.String())
	}
	state, err := id.input.GetState()
	if err != nil {
		return false, errors.Wrapf(err, "%s read failed", id)
	}
	return state != id.pullUp, nil
}

func (id *InputDevice) IsPressed() (bool, error) {
	return id.IsActive()
}

func (id *InputDevice) Value() (Value, error) {
	active, err := id.IsActive()
	return Bool(active), err
}

// WhenPressed sets the callback fired on activation, nil removes it.
func (id *InputDevice) WhenPressed(fn func()) {
	id.lock.Lock()
	defer id.lock.Unlock()

	id.whenActive = fn
}

func (id *InputDevice) WhenReleased(fn func()) {
	id.lock.Lock()
	defer id.lock.Unlock()

	id.whenPassive = fn
}

func (id *InputDevice) FireEdge(state bool) {
	id.lock.Lock()
	fn := id.whenPassive
	if state != id.pullUp {
		fn = id.whenActive
	}
	closed := id.closed
	id.lock.Unlock()

	if fn != nil && !closed {
		fn()
	}
}

func (id *InputDevice) Close() error {
	id.lock.Lock()
	if id.closed {
		id.lock.Unlock()
		return nil
	}
	id.closed = true
	id.whenActive, id.whenPassive = nil, nil
	id.lock.Unlock()

	return id.input.Close()
}
