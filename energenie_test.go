package outkit

import (
	"testing"

	"github.com/hubertat/outkit/drivers"
)

func TestEnergenieBadInit(t *testing.T) {
	md := mockDriver(t, false)
	for _, socket := range []int{0, 5, -1} {
		_, err := NewEnergenie(md, socket, false)
		assertErrorIs(t, err, ErrConfiguration)
	}
}

func TestEnergenie(t *testing.T) {
	md := mockDriver(t, false)
	device1 := must(NewEnergenie(md, 1, true))(t)
	defer device1.Close()
	device2 := must(NewEnergenie(md, 2, false))(t)
	defer device2.Close()

	active, _ := device1.IsActive()
	assertBools(t, active, true)
	active, _ = device2.IsActive()
	assertBools(t, active, false)

	pins := []uint16{17, 22, 23, 27, 24, 25}
	clear := func() {
		for _, pin := range pins {
			md.Output(pin).ClearStates()
		}
	}
	strobe := []drivers.PinState{
		{Delta: 0, State: 0},
		{Delta: ms(100), State: 1},
		{Delta: ms(250), State: 0},
	}

	clear()
	assertNoError(t, device1.On())
	assertValue(t, device1, Scalar(1))
	assertStates(t, md.Output(17), []float64{0, 1})
	assertStates(t, md.Output(22), []float64{1})
	assertStates(t, md.Output(23), []float64{1})
	assertStates(t, md.Output(27), []float64{0, 1})
	assertStates(t, md.Output(24), []float64{0})
	assertStatesAndTimes(t, md.Output(25), strobe)

	clear()
	assertNoError(t, device2.On())
	assertValue(t, device2, Scalar(1))
	assertStates(t, md.Output(17), []float64{1, 0})
	assertStates(t, md.Output(22), []float64{1})
	assertStates(t, md.Output(23), []float64{1})
	assertStates(t, md.Output(27), []float64{1})
	assertStates(t, md.Output(24), []float64{0})
	assertStatesAndTimes(t, md.Output(25), strobe)
}

func TestEnergenieSharedLines(t *testing.T) {
	md := mockDriver(t, false)
	socket := must(NewEnergenie(md, 3, false))(t)
	other := must(NewEnergenie(md, 4, false))(t)

	assertNoError(t, socket.Close())
	assertErrorIs(t, socket.On(), ErrDeviceClosed)
	assertNoError(t, other.Toggle())
	assertBools(t, must(other.IsActive())(t), true)

	assertNoError(t, other.Close())
	_, outputs := md.GetAllIo()
	for _, pin := range outputs {
		led, err := NewLED(md, pin, OutputOptions{})
		if err != nil {
			t.Errorf("pin %d still reserved after last socket closed: %v", pin, err)
			continue
		}
		led.Close()
	}
}
