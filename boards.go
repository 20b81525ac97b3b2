package outkit

import (
	"github.com/pkg/errors"

	"github.com/hubertat/outkit/drivers"
)

var piLiterPins = []uint16{4, 17, 27, 18, 22, 23, 24, 25}

func NewPiLiter(driver drivers.IoDriver, opts LEDOptions) (*LEDBoard, error) {
	items := make([]BoardItem, len(piLiterPins))
	for i, pin := range piLiterPins {
		items[i] = PinItem(pin)
	}
	return newLEDBoard("PiLiter", nil, driver, opts, items)
}

func NewPiLiterBarGraph(driver drivers.IoDriver, opts LEDOptions) (*LEDBarGraph, error) {
	return newLEDBarGraph("PiLiterBarGraph", driver, opts, piLiterPins)
}

// TrafficLights is a board of exactly three LEDs named red, amber and green.
type TrafficLights struct {
	*LEDBoard
}

func NewTrafficLights(driver drivers.IoDriver, opts LEDOptions, pins ...uint16) (*TrafficLights, error) {
	return newTrafficLights("TrafficLights", driver, opts, pins)
}

func newTrafficLights(kind string, driver drivers.IoDriver, opts LEDOptions, pins []uint16) (*TrafficLights, error) {
	if len(pins) != 3 {
		return nil, configErrorf("%s needs red, amber and green pins, got %d", kind, len(pins))
	}
	board, err := newLEDBoard(kind, nil, driver, opts, []BoardItem{
		NamedPin("red", pins[0]),
		NamedPin("amber", pins[1]),
		NamedPin("green", pins[2]),
	})
	if err != nil {
		return nil, err
	}
	return &TrafficLights{LEDBoard: board}, nil
}

func NewPiTraffic(driver drivers.IoDriver, opts LEDOptions) (*TrafficLights, error) {
	return newTrafficLights("PiTraffic", driver, opts, []uint16{9, 10, 11})
}

func (tl *TrafficLights) Red() *OutputDevice {
	return tl.children[0].(*OutputDevice)
}

func (tl *TrafficLights) Amber() *OutputDevice {
	return tl.children[1].(*OutputDevice)
}

func (tl *TrafficLights) Green() *OutputDevice {
	return tl.children[2].(*OutputDevice)
}

// NewSnowPi builds arms (left and right, three LEDs each), eyes and nose.
func NewSnowPi(driver drivers.IoDriver, opts LEDOptions) (snow *LEDBoard, err error) {
	var built []Device
	defer func() {
		if err != nil {
			closeAll(built...)
		}
	}()
	board := func(items ...BoardItem) *LEDBoard {
		if err != nil {
			return nil
		}
		var b *LEDBoard
		b, err = NewLEDBoard(driver, opts, items...)
		if err == nil {
			built = append(built, b)
		}
		return b
	}

	left := board(NamedPin("bottom", 23), NamedPin("middle", 24), NamedPin("top", 25))
	right := board(NamedPin("top", 17), NamedPin("middle", 18), NamedPin("bottom", 22))
	if err != nil {
		return nil, errors.Wrap(err, "SnowPi arms")
	}
	built = built[:0]
	arms := board(NamedBoard("left", left), NamedBoard("right", right))
	if err != nil {
		closeAll(left, right)
		return nil, errors.Wrap(err, "SnowPi arms")
	}
	eyes := board(NamedPin("left", 7), NamedPin("right", 8))
	if err != nil {
		return nil, errors.Wrap(err, "SnowPi eyes")
	}

	snow, err = newLEDBoard("SnowPi", nil, driver, opts, []BoardItem{
		NamedBoard("arms", arms),
		NamedBoard("eyes", eyes),
		NamedPin("nose", 9),
	})
	return
}

// TrafficLightsBuzzer groups lights, a buzzer and a button; switching skips the button.
type TrafficLightsBuzzer struct {
	*CompositeDevice
	lights *TrafficLights
	buzzer *OutputDevice
	button *InputDevice
}

func NewTrafficLightsBuzzer(lights *TrafficLights, buzzer *OutputDevice, button *InputDevice) (*TrafficLightsBuzzer, error) {
	if lights == nil || buzzer == nil || button == nil {
		return nil, configErrorf("TrafficLightsBuzzer needs lights, buzzer and button")
	}
	cd, err := newComposite("TrafficLightsBuzzer", nil, []Child{
		Named("lights", lights),
		Named("buzzer", buzzer),
		Named("button", button),
	})
	if err != nil {
		return nil, err
	}
	return &TrafficLightsBuzzer{CompositeDevice: cd, lights: lights, buzzer: buzzer, button: button}, nil
}

func newTrafficLightsBuzzer(kind string, driver drivers.IoDriver, opts LEDOptions, lightPins []uint16, buzzerPin, buttonPin uint16, pullUp bool) (*TrafficLightsBuzzer, error) {
	lights, err := newTrafficLights(kind+" lights", driver, opts, lightPins)
	if err != nil {
		return nil, err
	}
	buzzer, err := NewBuzzer(driver, buzzerPin, OutputOptions{})
	if err != nil {
		lights.Close()
		return nil, errors.Wrapf(err, "%s buzzer", kind)
	}
	button, err := NewButton(driver, buttonPin, pullUp)
	if err != nil {
		closeAll(lights, buzzer)
		return nil, errors.Wrapf(err, "%s button", kind)
	}

	tlb, err := NewTrafficLightsBuzzer(lights, buzzer, button)
	if err != nil {
		closeAll(lights, buzzer, button)
		return nil, err
	}
	tlb.kind = kind
	return tlb, nil
}

func NewFishDish(driver drivers.IoDriver, opts LEDOptions) (*TrafficLightsBuzzer, error) {
	return newTrafficLightsBuzzer("FishDish", driver, opts, []uint16{9, 22, 4}, 8, 7, false)
}

func NewTrafficHat(driver drivers.IoDriver, opts LEDOptions) (*TrafficLightsBuzzer, error) {
	return newTrafficLightsBuzzer("TrafficHat", driver, opts, []uint16{24, 23, 22}, 5, 25, true)
}

func (tlb *TrafficLightsBuzzer) Lights() *TrafficLights {
	return tlb.lights
}

func (tlb *TrafficLightsBuzzer) Buzzer() *OutputDevice {
	return tlb.buzzer
}

func (tlb *TrafficLightsBuzzer) Button() *InputDevice {
	return tlb.button
}
