package drivers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/racerxdl/go-mcp23017"
)

const mcpioDriverName = "mcpio"
const mcpEdgePollInterval = 20 * time.Millisecond

// McpIO drives an MCP23017 port expander over I2C, all pins are digital.
type McpIO struct {
	device *mcp23017.Device

	lock     sync.Mutex
	inputs   map[uint16]*McpInput
	outputs  map[uint16]*McpOutput
	reserved reservations
	isReady  bool

	BusNo         uint8 `toml:"bus"`
	DevNo         uint8 `toml:"dev"`
	InvertInputs  bool  `toml:"invert_inputs"`
	InvertOutputs bool  `toml:"invert_outputs"`
}

type McpInput struct {
	pin    uint8
	invert bool
	driver *McpIO

	stop chan struct{}
	once sync.Once
}

type McpOutput struct {
	pin    uint8
	invert bool
	driver *McpIO
}

func (min *McpInput) Pin() uint16 {
	return uint16(min.pin)
}

func (min *McpInput) GetState() (state bool, err error) {
	rawState, err := min.driver.device.DigitalRead(min.pin)
	if err != nil {
		return
	}

	if min.invert {
		state = !bool(rawState)
	} else {
		state = bool(rawState)
	}
	return
}

// SubscribeToEdges polls the expander, it has no interrupt line wired.
func (min *McpInput) SubscribeToEdges(listener EdgeListener) error {
	last, err := min.GetState()
	if err != nil {
		return errors.Wrap(err, "SubscribeToEdges initial read failed")
	}

	go func() {
		ticker := time.NewTicker(mcpEdgePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-min.stop:
				return
			case <-ticker.C:
				state, err := min.GetState()
				if err != nil {
					log.Warn("mcpio input read failed", "pin", min.pin, "err", err)
					continue
				}
				if state != last {
					last = state
					listener.FireEdge(state)
				}
			}
		}
	}()
	return nil
}

func (min *McpInput) Close() error {
	min.once.Do(func() { close(min.stop) })
	min.driver.release(uint16(min.pin))
	return nil
}

func (mout *McpOutput) Pin() uint16 {
	return uint16(mout.pin)
}

func (mout *McpOutput) IsPWM() bool {
	return false
}

func (mout *McpOutput) GetState() (state float64, err error) {
	rawState, err := mout.driver.device.DigitalRead(mout.pin)
	if err != nil {
		return
	}

	if bool(rawState) != mout.invert {
		state = 1
	}
	return
}

func (mout *McpOutput) Set(state float64) (err error) {
	err = checkValue(state, false)
	if err != nil {
		return
	}
	level := state == 1
	if mout.invert {
		level = !level
	}

	err = mout.driver.device.DigitalWrite(mout.pin, mcp23017.PinLevel(level))

	return
}

func (mout *McpOutput) Close() error {
	err := mout.Set(0)
	mout.driver.release(uint16(mout.pin))
	return err
}

func (mcp *McpIO) String() string {
	return mcpioDriverName
}

func (mcp *McpIO) IsReady() bool {
	mcp.lock.Lock()
	defer mcp.lock.Unlock()

	return mcp.isReady
}

func (mcp *McpIO) release(pin uint16) {
	mcp.lock.Lock()
	defer mcp.lock.Unlock()

	mcp.reserved.release(pin)
	delete(mcp.inputs, pin)
	delete(mcp.outputs, pin)
}

func (mcp *McpIO) Setup(ctx context.Context) (err error) {
	mcp.lock.Lock()
	defer mcp.lock.Unlock()

	mcp.device, err = mcp23017.Open(mcp.BusNo, mcp.DevNo)
	if err != nil {
		return errors.Wrapf(err, "failed to open mcp23017 (bus %d, dev %d)", mcp.BusNo, mcp.DevNo)
	}

	mcp.inputs = make(map[uint16]*McpInput)
	mcp.outputs = make(map[uint16]*McpOutput)
	mcp.reserved = make(reservations)
	mcp.isReady = true
	log.Info("mcpio driver ready", "bus", mcp.BusNo, "dev", mcp.DevNo)

	return
}

func (mcp *McpIO) GetInput(id uint16, pullUp bool) (input InputPin, err error) {
	mcp.lock.Lock()
	defer mcp.lock.Unlock()

	if !mcp.isReady {
		err = errors.Wrapf(ErrNotReady, "mcpio input %d", id)
		return
	}
	if id > 15 {
		err = fmt.Errorf("input pin out of range (mcp23017 has 16 pins)")
		return
	}
	err = mcp.reserved.reserve(id, usedAsInput)
	if err != nil {
		return
	}

	err = mcp.device.PinMode(uint8(id), mcp23017.INPUT)
	if err == nil {
		err = mcp.device.SetPullUp(uint8(id), pullUp)
	}
	if err != nil {
		mcp.reserved.release(id)
		err = errors.Wrapf(err, "failed to configure mcpio input %d", id)
		return
	}

	in := &McpInput{pin: uint8(id), invert: mcp.InvertInputs, driver: mcp, stop: make(chan struct{})}
	mcp.inputs[id] = in
	input = in
	return
}

func (mcp *McpIO) GetOutput(id uint16, pwm bool) (output OutputPin, err error) {
	mcp.lock.Lock()
	defer mcp.lock.Unlock()

	if !mcp.isReady {
		err = errors.Wrapf(ErrNotReady, "mcpio output %d", id)
		return
	}
	if pwm {
		err = errors.Wrapf(ErrNoPWM, "mcpio output %d", id)
		return
	}
	if id > 15 {
		err = fmt.Errorf("output pin out of range (mcp23017 has 16 pins)")
		return
	}
	err = mcp.reserved.reserve(id, usedAsOutput)
	if err != nil {
		return
	}

	err = mcp.device.PinMode(uint8(id), mcp23017.OUTPUT)
	if err != nil {
		mcp.reserved.release(id)
		err = errors.Wrapf(err, "failed to configure mcpio output %d", id)
		return
	}

	out := &McpOutput{pin: uint8(id), invert: mcp.InvertOutputs, driver: mcp}
	mcp.outputs[id] = out
	output = out
	return
}

func (mcp *McpIO) Close() error {
	mcp.lock.Lock()
	mcp.isReady = false
	outputs := make([]*McpOutput, 0, len(mcp.outputs))
	for _, output := range mcp.outputs {
		outputs = append(outputs, output)
	}
	mcp.lock.Unlock()

	if mcp.device == nil {
		return nil
	}
	for _, output := range outputs {
		output.Set(0)
	}
	return mcp.device.Close()
}

func (mcp *McpIO) GetAllIo() (inputs []uint16, outputs []uint16) {
	mcp.lock.Lock()
	defer mcp.lock.Unlock()

	return mcp.reserved.list()
}
