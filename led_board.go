package outkit

import (
	"math"

	"github.com/pkg/errors"

	"github.com/hubertat/outkit/drivers"
)

type LEDOptions struct {
	PWM       bool
	ActiveLow bool
	Initial   float64
}

// LEDCollection is a composite of LEDs that can be nested inside an LEDBoard.
type LEDCollection interface {
	Controllable
	Leds() []*OutputDevice
}

// BoardItem is either a pin, built into an LED with the board options, or a nested collection.
type BoardItem struct {
	Name       string
	Pin        uint16
	Collection LEDCollection
}

func PinItem(pin uint16) BoardItem {
	return BoardItem{Pin: pin}
}

func NamedPin(name string, pin uint16) BoardItem {
	return BoardItem{Name: name, Pin: pin}
}

func BoardOf(collection LEDCollection) BoardItem {
	return BoardItem{Collection: collection}
}

func NamedBoard(name string, collection LEDCollection) BoardItem {
	return BoardItem{Name: name, Collection: collection}
}

func newLed(driver drivers.IoDriver, pin uint16, opts LEDOptions) (*OutputDevice, error) {
	outOpts := OutputOptions{ActiveLow: opts.ActiveLow, Initial: opts.Initial}
	if opts.PWM {
		return NewPWMLED(driver, pin, outOpts)
	}
	return NewLED(driver, pin, outOpts)
}

func flattenLeds(devices []Device) (leds []*OutputDevice) {
	for _, device := range devices {
		switch d := device.(type) {
		case *OutputDevice:
			leds = append(leds, d)
		case LEDCollection:
			leds = append(leds, d.Leds()...)
		}
	}
	return
}

var ledBoardReserved = []string{"blink", "pulse", "leds", "onat", "offat", "toggleat"}

// LEDBoard is a composite of LEDs and nested boards owning one blink job at a time.
type LEDBoard struct {
	*CompositeDevice
	blinker
}

func NewLEDBoard(driver drivers.IoDriver, opts LEDOptions, items ...BoardItem) (*LEDBoard, error) {
	return newLEDBoard("LEDBoard", nil, driver, opts, items)
}

func newLEDBoard(kind string, reserved []string, driver drivers.IoDriver, opts LEDOptions, items []BoardItem) (*LEDBoard, error) {
	var built []Device
	children := make([]Child, 0, len(items))
	for _, item := range items {
		if item.Collection != nil {
			children = append(children, Named(item.Name, item.Collection))
			continue
		}
		led, err := newLed(driver, item.Pin, opts)
		if err != nil {
			closeAll(built...)
			return nil, errors.Wrapf(err, "%s pin %d", kind, item.Pin)
		}
		built = append(built, led)
		children = append(children, Named(item.Name, led))
	}

	cd, err := newComposite(kind, append(append([]string{}, ledBoardReserved...), reserved...), children)
	if err != nil {
		closeAll(built...)
		return nil, err
	}
	return &LEDBoard{CompositeDevice: cd}, nil
}

// Leds flattens nested collections in declaration order.
func (lb *LEDBoard) Leds() []*OutputDevice {
	return flattenLeds(lb.children)
}

func (lb *LEDBoard) On() error {
	lb.stopBlink()
	return lb.CompositeDevice.On()
}

func (lb *LEDBoard) Off() error {
	lb.stopBlink()
	return lb.CompositeDevice.Off()
}

func (lb *LEDBoard) Toggle() error {
	lb.stopBlink()
	return lb.CompositeDevice.Toggle()
}

func (lb *LEDBoard) at(indices []int, fn func(Controllable) error) error {
	if err := lb.checkOpen(); err != nil {
		return err
	}
	for _, i := range indices {
		if i < 0 || i >= len(lb.children) {
			return errors.Wrapf(ErrNoChild, "%s has no index %d", lb, i)
		}
	}
	lb.stopBlink()
	for _, i := range indices {
		if ctrl, ok := lb.children[i].(Controllable); ok {
			if err := fn(ctrl); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnAt switches on only the children at the given indices.
func (lb *LEDBoard) OnAt(indices ...int) error {
	return lb.at(indices, Controllable.On)
}

func (lb *LEDBoard) OffAt(indices ...int) error {
	return lb.at(indices, Controllable.Off)
}

func (lb *LEDBoard) ToggleAt(indices ...int) error {
	return lb.at(indices, Controllable.Toggle)
}

func (lb *LEDBoard) SetValue(value Value) error {
	if err := lb.checkOpen(); err != nil {
		return err
	}
	if err := lb.checkShape(value); err != nil {
		return err
	}
	lb.stopBlink()
	return lb.CompositeDevice.SetValue(value)
}

// Blink runs one job across every LED of the board, nested boards included.
func (lb *LEDBoard) Blink(params BlinkParams) error {
	if err := lb.checkOpen(); err != nil {
		return err
	}
	return lb.blink(lb.Leds(), params)
}

// Pulse is Blink with no hold time, fading only.
func (lb *LEDBoard) Pulse(params BlinkParams) error {
	params.OnTime, params.OffTime = 0, 0
	return lb.Blink(params)
}

func (lb *LEDBoard) Close() error {
	lb.stopBlink()
	return lb.CompositeDevice.Close()
}

// LEDBarGraph shows a signed fraction in [-1, 1]; negative values light from the far end.
type LEDBarGraph struct {
	*CompositeDevice
	leds []*OutputDevice
	pwm  bool
}

func NewLEDBarGraph(driver drivers.IoDriver, opts LEDOptions, pins ...uint16) (*LEDBarGraph, error) {
	return newLEDBarGraph("LEDBarGraph", driver, opts, pins)
}

func newLEDBarGraph(kind string, driver drivers.IoDriver, opts LEDOptions, pins []uint16) (*LEDBarGraph, error) {
	if len(pins) == 0 {
		return nil, configErrorf("%s needs at least one pin", kind)
	}
	initial := opts.Initial
	opts.Initial = 0

	leds := make([]*OutputDevice, 0, len(pins))
	children := make([]Child, 0, len(pins))
	for _, pin := range pins {
		led, err := newLed(driver, pin, opts)
		if err != nil {
			for _, built := range leds {
				built.Close()
			}
			return nil, errors.Wrapf(err, "%s pin %d", kind, pin)
		}
		leds = append(leds, led)
		children = append(children, Unnamed(led))
	}

	cd, err := newComposite(kind, []string{"leds", "fraction", "setfraction"}, children)
	if err != nil {
		for _, built := range leds {
			built.Close()
		}
		return nil, err
	}
	graph := &LEDBarGraph{CompositeDevice: cd, leds: leds, pwm: opts.PWM}
	if initial != 0 {
		err = graph.SetFraction(initial)
		if err != nil {
			graph.Close()
			return nil, err
		}
	}
	return graph, nil
}

func (bg *LEDBarGraph) Leds() []*OutputDevice {
	return append([]*OutputDevice(nil), bg.leds...)
}

// Fraction sums the lit share of every LED; the direction comes from which end is brighter.
func (bg *LEDBarGraph) Fraction() (float64, error) {
	if err := bg.checkOpen(); err != nil {
		return 0, err
	}
	var sum, first, last float64
	for i, led := range bg.leds {
		state, err := led.State()
		if err != nil {
			return 0, err
		}
		sum += state
		if i == 0 {
			first = state
		}
		last = state
	}
	if first < last {
		sum = -sum
	}
	return sum / float64(len(bg.leds)), nil
}

func (bg *LEDBarGraph) SetFraction(value float64) error {
	if err := bg.checkOpen(); err != nil {
		return err
	}
	if math.IsNaN(value) || value < -1 || value > 1 {
		return configErrorf("%s value must be in [-1, 1], got %v", bg, value)
	}

	count := len(bg.leds)
	leds := bg.Leds()
	if value < 0 {
		for i, j := 0, count-1; i < j; i, j = i+1, j-1 {
			leds[i], leds[j] = leds[j], leds[i]
		}
		value = -value
	}
	for i, led := range leds {
		var state float64
		if bg.pwm {
			state = clamp(float64(count)*value-float64(i), 0, 1)
		} else if value >= float64(i+1)/float64(count) {
			state = 1
		}
		if err := led.Set(state); err != nil {
			return err
		}
	}
	return nil
}

func (bg *LEDBarGraph) Value() (Value, error) {
	fraction, err := bg.Fraction()
	return Scalar(fraction), err
}

func (bg *LEDBarGraph) IsActive() (bool, error) {
	fraction, err := bg.Fraction()
	return fraction != 0, err
}

func (bg *LEDBarGraph) SetValue(value Value) error {
	if err := bg.checkShape(value); err != nil {
		return err
	}
	return bg.SetFraction(value.Float())
}

func (bg *LEDBarGraph) checkShape(value Value) error {
	if value.IsTuple() {
		return configErrorf("%s takes a single fraction, got %s", bg, value)
	}
	return nil
}
