package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

const gpioDriverName = "gpio"
const gpioPwmFrequency = 64000
const gpioPwmCycle = 1024
const gpioEdgePollInterval = 10 * time.Millisecond

// hardware pwm capable BCM pins
var gpioPwmPins = map[uint16]bool{12: true, 13: true, 18: true, 19: true}

type GpIO struct {
	InvertInputs  bool `toml:"invert_inputs"`
	InvertOutputs bool `toml:"invert_outputs"`

	lock     sync.Mutex
	inputs   map[uint16]*GpInput
	outputs  map[uint16]*GpOutput
	reserved reservations
	isReady  bool
}

type GpInput struct {
	pin    uint8
	invert bool
	driver *GpIO

	stop chan struct{}
	once sync.Once
}

type GpOutput struct {
	pin    uint8
	invert bool
	pwm    bool
	driver *GpIO

	lock  sync.Mutex
	state float64
}

func (gpi *GpInput) Pin() uint16 {
	return uint16(gpi.pin)
}

func (gpi *GpInput) GetState() (state bool, err error) {
	if gpi.invert {
		state = rpio.Pin(gpi.pin).Read() == rpio.Low
	} else {
		state = rpio.Pin(gpi.pin).Read() == rpio.High
	}

	return
}

// SubscribeToEdges enables rpio edge detection and polls it from a goroutine until the pin is closed.
func (gpi *GpInput) SubscribeToEdges(listener EdgeListener) error {
	pin := rpio.Pin(gpi.pin)
	pin.Detect(rpio.AnyEdge)

	go func() {
		ticker := time.NewTicker(gpioEdgePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gpi.stop:
				return
			case <-ticker.C:
				if pin.EdgeDetected() {
					state, _ := gpi.GetState()
					listener.FireEdge(state)
				}
			}
		}
	}()
	return nil
}

func (gpi *GpInput) Close() error {
	gpi.once.Do(func() {
		close(gpi.stop)
		rpio.Pin(gpi.pin).Detect(rpio.NoEdge)
	})
	gpi.driver.release(uint16(gpi.pin))
	return nil
}

func (gpo *GpOutput) Pin() uint16 {
	return uint16(gpo.pin)
}

func (gpo *GpOutput) IsPWM() bool {
	return gpo.pwm
}

func (gpo *GpOutput) Set(state float64) error {
	err := checkValue(state, gpo.pwm)
	if err != nil {
		return err
	}

	gpo.lock.Lock()
	defer gpo.lock.Unlock()

	gpo.state = state
	if gpo.invert {
		state = 1 - state
	}
	pin := rpio.Pin(gpo.pin)
	if gpo.pwm {
		pin.DutyCycle(uint32(state*gpioPwmCycle), gpioPwmCycle)
		return nil
	}
	if state == 1 {
		pin.High()
	} else {
		pin.Low()
	}

	return nil
}

func (gpo *GpOutput) GetState() (state float64, err error) {
	if gpo.pwm {
		gpo.lock.Lock()
		defer gpo.lock.Unlock()
		return gpo.state, nil
	}

	high := rpio.Pin(gpo.pin).Read() == rpio.High
	if high != gpo.invert {
		state = 1
	}

	return
}

func (gpo *GpOutput) Close() error {
	gpo.Set(0)
	gpo.driver.release(uint16(gpo.pin))
	return nil
}

func (gp *GpIO) Setup(ctx context.Context) error {
	gp.lock.Lock()
	defer gp.lock.Unlock()

	err := rpio.Open()
	if err != nil {
		return errors.Wrap(err, "failed to Setup gpio driver")
	}
	gp.inputs = make(map[uint16]*GpInput)
	gp.outputs = make(map[uint16]*GpOutput)
	gp.reserved = make(reservations)
	gp.isReady = true
	log.Info("gpio driver ready", "invert_inputs", gp.InvertInputs, "invert_outputs", gp.InvertOutputs)
	return nil
}

func (gp *GpIO) String() string {
	return gpioDriverName
}

func (gp *GpIO) IsReady() bool {
	gp.lock.Lock()
	defer gp.lock.Unlock()

	return gp.isReady
}

func (gp *GpIO) release(pin uint16) {
	gp.lock.Lock()
	defer gp.lock.Unlock()

	gp.reserved.release(pin)
	delete(gp.inputs, pin)
	delete(gp.outputs, pin)
}

func (gp *GpIO) Close() error {
	gp.lock.Lock()
	gp.isReady = false
	outputs := make([]*GpOutput, 0, len(gp.outputs))
	for _, output := range gp.outputs {
		outputs = append(outputs, output)
	}
	gp.lock.Unlock()

	for _, output := range outputs {
		output.Set(0)
	}
	return rpio.Close()
}

func (gp *GpIO) GetInput(id uint16, pullUp bool) (input InputPin, err error) {
	gp.lock.Lock()
	defer gp.lock.Unlock()

	if !gp.isReady {
		err = errors.Wrapf(ErrNotReady, "gpio input %d", id)
		return
	}
	if id > 255 {
		err = errors.Errorf("pin id out of range (gpio takes uint8 pin)")
		return
	}
	err = gp.reserved.reserve(id, usedAsInput)
	if err != nil {
		return
	}

	pin := rpio.Pin(id)
	pin.Input()
	if pullUp {
		pin.PullUp()
	} else {
		pin.PullDown()
	}
	in := &GpInput{pin: uint8(id), invert: gp.InvertInputs, driver: gp, stop: make(chan struct{})}
	gp.inputs[id] = in
	input = in
	return
}

func (gp *GpIO) GetOutput(id uint16, pwm bool) (output OutputPin, err error) {
	gp.lock.Lock()
	defer gp.lock.Unlock()

	if !gp.isReady {
		err = errors.Wrapf(ErrNotReady, "gpio output %d", id)
		return
	}
	if id > 255 {
		err = errors.Errorf("pin id out of range (gpio takes uint8 pin)")
		return
	}
	if pwm && !gpioPwmPins[id] {
		err = errors.Wrapf(ErrNoPWM, "gpio pin %d has no hardware pwm", id)
		return
	}
	err = gp.reserved.reserve(id, usedAsOutput)
	if err != nil {
		return
	}

	pin := rpio.Pin(id)
	if pwm {
		pin.Pwm()
		pin.Freq(gpioPwmFrequency)
	} else {
		pin.Output()
	}
	out := &GpOutput{pin: uint8(id), invert: gp.InvertOutputs, pwm: pwm, driver: gp}
	gp.outputs[id] = out
	output = out
	return
}

func (gp *GpIO) GetAllIo() (inputs []uint16, outputs []uint16) {
	gp.lock.Lock()
	defer gp.lock.Unlock()

	return gp.reserved.list()
}
