package outkit

import (
	"math"
	"testing"
)

func TestLEDBarGraphValue(t *testing.T) {
	md := mockDriver(t, false)
	graph := must(NewLEDBarGraph(md, LEDOptions{}, 2, 3, 4))(t)
	defer graph.Close()
	pins := []uint16{2, 3, 4}

	assertNoError(t, graph.SetFraction(0))
	assertPins(t, md, pins, []float64{0, 0, 0})
	assertNoError(t, graph.SetFraction(1))
	assertPins(t, md, pins, []float64{1, 1, 1})
	assertNoError(t, graph.SetFraction(1.0/3))
	assertPins(t, md, pins, []float64{1, 0, 0})
	assertNoError(t, graph.SetValue(Scalar(-1.0/3)))
	assertPins(t, md, pins, []float64{0, 0, 1})

	md.Output(2).Set(1)
	md.Output(3).Set(1)
	assertValue(t, graph, Scalar(1))
	md.Output(4).Set(0)
	assertValue(t, graph, Scalar(2.0/3))
	md.Output(4).Set(1)
	md.Output(2).Set(0)
	assertValue(t, graph, Scalar(-2.0/3))

	assertErrorIs(t, graph.SetFraction(1.5), ErrConfiguration)
	assertErrorIs(t, graph.SetFraction(math.NaN()), ErrConfiguration)
	assertErrorIs(t, graph.SetValue(Flat(1, 0, 0)), ErrConfiguration)
}

func TestLEDBarGraphPWMValue(t *testing.T) {
	md := mockDriver(t, true)
	graph := must(NewLEDBarGraph(md, LEDOptions{PWM: true}, 2, 3, 4))(t)
	defer graph.Close()
	pins := []uint16{2, 3, 4}

	assertNoError(t, graph.SetFraction(0))
	assertPins(t, md, pins, []float64{0, 0, 0})
	assertNoError(t, graph.SetFraction(1))
	assertPins(t, md, pins, []float64{1, 1, 1})
	assertNoError(t, graph.SetFraction(1.0/3))
	assertPins(t, md, pins, []float64{1, 0, 0})
	assertNoError(t, graph.SetFraction(-1.0/3))
	assertPins(t, md, pins, []float64{0, 0, 1})
	assertNoError(t, graph.SetFraction(0.5))
	assertPins(t, md, pins, []float64{1, 0.5, 0})

	md.Output(2).Set(0)
	md.Output(4).Set(1)
	fraction, err := graph.Fraction()
	assertNoError(t, err)
	assertFloats(t, fraction, -0.5)
}

func TestLEDBarGraphBadInit(t *testing.T) {
	md := mockDriver(t, false)
	_, err := NewLEDBarGraph(md, LEDOptions{})
	assertErrorIs(t, err, ErrConfiguration)

	// a failed build must hand its pins back
	_, err = NewLEDBarGraph(md, LEDOptions{PWM: true}, 2, 3)
	assertErrorIs(t, err, ErrConfiguration)
	graph := must(NewLEDBarGraph(md, LEDOptions{}, 2, 3))(t)
	graph.Close()
}

func TestPiLiter(t *testing.T) {
	md := mockDriver(t, false)
	board := must(NewPiLiter(md, LEDOptions{}))(t)
	defer board.Close()

	assertLedPins(t, board.Leds(), []uint16{4, 17, 27, 18, 22, 23, 24, 25})
}

func TestPiLiterBarGraph(t *testing.T) {
	md := mockDriver(t, false)
	graph := must(NewPiLiterBarGraph(md, LEDOptions{}))(t)
	defer graph.Close()

	assertNoError(t, graph.SetFraction(0.5))
	assertPins(t, md, piLiterPins, []float64{1, 1, 1, 1, 0, 0, 0, 0})

	md.Output(22).Set(1)
	assertValue(t, graph, Scalar(5.0/8))
}

func TestTrafficLights(t *testing.T) {
	md := mockDriver(t, false)
	lights := must(NewTrafficLights(md, LEDOptions{}, 2, 3, 4))(t)
	defer lights.Close()

	assertNoError(t, lights.Red().On())
	assertPins(t, md, []uint16{2, 3, 4}, []float64{1, 0, 0})

	amber := must(lights.Named("amber"))(t)
	if amber != Device(lights.Amber()) {
		t.Errorf("amber lookup returned %v", amber)
	}
	assertBools(t, lights.Green().Pin() == 4, true)
}

func TestTrafficLightsBadInit(t *testing.T) {
	md := mockDriver(t, false)
	_, err := NewTrafficLights(md, LEDOptions{})
	assertErrorIs(t, err, ErrConfiguration)
	_, err = NewTrafficLights(md, LEDOptions{}, 2, 3)
	assertErrorIs(t, err, ErrConfiguration)
}

func TestPiTraffic(t *testing.T) {
	md := mockDriver(t, false)
	board := must(NewPiTraffic(md, LEDOptions{}))(t)
	defer board.Close()

	assertLedPins(t, board.Leds(), []uint16{9, 10, 11})
}

func TestSnowPi(t *testing.T) {
	md := mockDriver(t, false)
	board := must(NewSnowPi(md, LEDOptions{}))(t)
	defer board.Close()

	assertLedPins(t, board.Leds(), []uint16{23, 24, 25, 17, 18, 22, 7, 8, 9})

	arms := must(board.Named("arms"))(t)
	right := must(arms.(*LEDBoard).Named("right"))(t)
	top := must(right.(*LEDBoard).Named("top"))(t)
	assertNoError(t, top.(*OutputDevice).On())
	assertPins(t, md, []uint16{17, 23}, []float64{1, 0})
}

func TestSnowPiPinClash(t *testing.T) {
	md := mockDriver(t, false)
	nose := must(NewLED(md, 9, OutputOptions{}))(t)

	_, err := NewSnowPi(md, LEDOptions{})
	if err == nil {
		t.Fatal("SnowPi built on a reserved pin")
	}
	nose.Close()

	// everything the failed build claimed was released
	board := must(NewSnowPi(md, LEDOptions{}))(t)
	board.Close()
}

func TestTrafficLightsBuzzer(t *testing.T) {
	md := mockDriver(t, false)
	lights := must(NewTrafficLights(md, LEDOptions{}, 2, 3, 4))(t)
	buzzer := must(NewBuzzer(md, 5, OutputOptions{}))(t)
	button := must(NewButton(md, 6, true))(t)
	board := must(NewTrafficLightsBuzzer(lights, buzzer, button))(t)
	defer board.Close()

	assertNoError(t, board.Lights().Red().On())
	assertNoError(t, board.Buzzer().On())
	assertPins(t, md, []uint16{2, 3, 4, 5}, []float64{1, 0, 0, 1})

	md.Input(6).DriveLow()
	active, err := board.Button().IsActive()
	assertNoError(t, err)
	assertBools(t, active, true)

	assertValue(t, board, Tuple(Flat(1, 0, 0), Scalar(1), Scalar(1)))
	assertNoError(t, board.Off())
	assertValue(t, board, Tuple(Flat(0, 0, 0), Scalar(0), Scalar(1)))
}

func assertBoardPins(t *testing.T, board *TrafficLightsBuzzer, want []uint16) {
	t.Helper()

	got := []uint16{}
	for _, led := range board.Lights().Leds() {
		got = append(got, led.Pin())
	}
	got = append(got, board.Buzzer().Pin(), board.Button().Pin())
	if len(got) != len(want) {
		t.Fatalf("got pins %v want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("got pins %v want %v", got, want)
			return
		}
	}
}

func TestFishDish(t *testing.T) {
	md := mockDriver(t, false)
	board := must(NewFishDish(md, LEDOptions{}))(t)
	defer board.Close()

	assertBoardPins(t, board, []uint16{9, 22, 4, 8, 7})

	// pulled down, the button is pressed when driven high
	md.Input(7).DriveHigh()
	pressed, _ := board.Button().IsPressed()
	assertBools(t, pressed, true)
}

func TestTrafficHat(t *testing.T) {
	md := mockDriver(t, false)
	board := must(NewTrafficHat(md, LEDOptions{}))(t)
	defer board.Close()

	assertBoardPins(t, board, []uint16{24, 23, 22, 5, 25})
}

func TestButtonCallbacks(t *testing.T) {
	md := mockDriver(t, false)
	button := must(NewButton(md, 6, true))(t)
	defer button.Close()

	pressed, released := 0, 0
	button.WhenPressed(func() { pressed++ })
	button.WhenReleased(func() { released++ })

	md.Input(6).DriveLow()
	md.Input(6).DriveHigh()
	md.Input(6).DriveLow()

	if pressed != 2 || released != 1 {
		t.Errorf("got %d presses and %d releases", pressed, released)
	}

	assertNoError(t, button.Close())
	_, err := button.IsActive()
	assertErrorIs(t, err, ErrDeviceClosed)
}
