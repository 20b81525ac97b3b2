package drivers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const periphDriverName = "periph"
const periphEdgeTimeout = 250 * time.Millisecond
const defaultPeriphPwmFrequency = physic.KiloHertz

// PeriphIO resolves pins through the periph.io registry as GPIO<n>, pwm goes to PinIO.PWM.
type PeriphIO struct {
	PwmFrequencyHz int64 `toml:"pwm_frequency_hz"`

	lock     sync.Mutex
	inputs   map[uint16]*PeriphInput
	outputs  map[uint16]*PeriphOutput
	reserved reservations
	isReady  bool
}

type PeriphInput struct {
	num    uint16
	pin    gpio.PinIO
	driver *PeriphIO

	stop chan struct{}
	once sync.Once
}

type PeriphOutput struct {
	num    uint16
	pin    gpio.PinIO
	pwm    bool
	freq   physic.Frequency
	driver *PeriphIO

	lock  sync.Mutex
	state float64
}

func (pin *PeriphInput) Pin() uint16 {
	return pin.num
}

func (pin *PeriphInput) GetState() (bool, error) {
	return pin.pin.Read() == gpio.High, nil
}

func (pin *PeriphInput) SubscribeToEdges(listener EdgeListener) error {
	go func() {
		for {
			select {
			case <-pin.stop:
				return
			default:
			}
			if pin.pin.WaitForEdge(periphEdgeTimeout) {
				listener.FireEdge(pin.pin.Read() == gpio.High)
			}
		}
	}()
	return nil
}

func (pin *PeriphInput) Close() error {
	pin.once.Do(func() { close(pin.stop) })
	err := pin.pin.Halt()
	pin.driver.release(pin.num)
	return err
}

func (pin *PeriphOutput) Pin() uint16 {
	return pin.num
}

func (pin *PeriphOutput) IsPWM() bool {
	return pin.pwm
}

func (pin *PeriphOutput) GetState() (float64, error) {
	pin.lock.Lock()
	defer pin.lock.Unlock()

	return pin.state, nil
}

func (pin *PeriphOutput) Set(state float64) (err error) {
	err = checkValue(state, pin.pwm)
	if err != nil {
		return
	}

	pin.lock.Lock()
	defer pin.lock.Unlock()

	if pin.pwm {
		err = pin.pin.PWM(gpio.Duty(state*float64(gpio.DutyMax)), pin.freq)
	} else {
		err = pin.pin.Out(gpio.Level(state == 1))
	}
	if err != nil {
		return errors.Wrapf(err, "periph write to pin %d failed", pin.num)
	}
	pin.state = state
	return
}

func (pin *PeriphOutput) Close() error {
	pin.Set(0)
	err := pin.pin.Halt()
	pin.driver.release(pin.num)
	return err
}

func (pe *PeriphIO) Setup(ctx context.Context) error {
	pe.lock.Lock()
	defer pe.lock.Unlock()

	state, err := host.Init()
	if err != nil {
		return errors.Wrap(err, "periph host init failed")
	}
	pe.inputs = make(map[uint16]*PeriphInput)
	pe.outputs = make(map[uint16]*PeriphOutput)
	pe.reserved = make(reservations)
	pe.isReady = true
	log.Info("periph driver ready", "loaded", len(state.Loaded))
	return nil
}

func (pe *PeriphIO) String() string {
	return periphDriverName
}

func (pe *PeriphIO) IsReady() bool {
	pe.lock.Lock()
	defer pe.lock.Unlock()

	return pe.isReady
}

func (pe *PeriphIO) release(pin uint16) {
	pe.lock.Lock()
	defer pe.lock.Unlock()

	pe.reserved.release(pin)
	delete(pe.inputs, pin)
	delete(pe.outputs, pin)
}

func (pe *PeriphIO) resolve(id uint16) (gpio.PinIO, error) {
	name := fmt.Sprintf("GPIO%d", id)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("pin %d (%s) not found in periph registry", id, name)
	}
	return pin, nil
}

func (pe *PeriphIO) GetInput(id uint16, pullUp bool) (InputPin, error) {
	pe.lock.Lock()
	defer pe.lock.Unlock()

	if !pe.isReady {
		return nil, errors.Wrapf(ErrNotReady, "periph input %d", id)
	}
	pin, err := pe.resolve(id)
	if err != nil {
		return nil, err
	}
	err = pe.reserved.reserve(id, usedAsInput)
	if err != nil {
		return nil, err
	}
	pull := gpio.PullDown
	if pullUp {
		pull = gpio.PullUp
	}
	err = pin.In(pull, gpio.BothEdges)
	if err != nil {
		pe.reserved.release(id)
		return nil, errors.Wrapf(err, "failed to set pin %d as input", id)
	}

	in := &PeriphInput{num: id, pin: pin, driver: pe, stop: make(chan struct{})}
	pe.inputs[id] = in
	return in, nil
}

func (pe *PeriphIO) GetOutput(id uint16, pwm bool) (OutputPin, error) {
	pe.lock.Lock()
	defer pe.lock.Unlock()

	if !pe.isReady {
		return nil, errors.Wrapf(ErrNotReady, "periph output %d", id)
	}
	pin, err := pe.resolve(id)
	if err != nil {
		return nil, err
	}
	err = pe.reserved.reserve(id, usedAsOutput)
	if err != nil {
		return nil, err
	}

	freq := defaultPeriphPwmFrequency
	if pe.PwmFrequencyHz > 0 {
		freq = physic.Frequency(pe.PwmFrequencyHz) * physic.Hertz
	}
	out := &PeriphOutput{num: id, pin: pin, pwm: pwm, freq: freq, driver: pe}
	if pwm {
		err = pin.PWM(0, freq)
		if err != nil {
			pe.reserved.release(id)
			return nil, errors.Wrapf(ErrNoPWM, "periph pin %d: %v", id, err)
		}
	} else {
		err = pin.Out(gpio.Low)
		if err != nil {
			pe.reserved.release(id)
			return nil, errors.Wrapf(err, "failed to set pin %d as output", id)
		}
	}
	pe.outputs[id] = out
	return out, nil
}

func (pe *PeriphIO) Close() error {
	pe.lock.Lock()
	pe.isReady = false
	outputs := make([]*PeriphOutput, 0, len(pe.outputs))
	for _, output := range pe.outputs {
		outputs = append(outputs, output)
	}
	pe.lock.Unlock()

	for _, output := range outputs {
		output.Set(0)
	}
	return nil
}

func (pe *PeriphIO) GetAllIo() (inputs []uint16, outputs []uint16) {
	pe.lock.Lock()
	defer pe.lock.Unlock()

	return pe.reserved.list()
}
