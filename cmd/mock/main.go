package main

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hubertat/outkit"
	"github.com/hubertat/outkit/drivers"
)

var (
	Version string
)

// mock runs a short show on in-memory pins and prints every pin change, it needs no hardware.
func main() {
	log.SetLevel(log.DebugLevel)
	log.Info("outkit mock started", "version", Version)

	md := &drivers.MockIoDriver{PWM: true}
	err := md.Setup(context.Background())
	if err != nil {
		log.Fatal("mock driver setup failed", "err", err)
	}
	defer md.Close()

	hat, err := outkit.NewTrafficHat(md, outkit.LEDOptions{})
	if err != nil {
		log.Fatal("failed to build traffic hat", "err", err)
	}
	defer hat.Close()

	graph, err := outkit.NewPiLiterBarGraph(md, outkit.LEDOptions{PWM: true})
	if err != nil {
		log.Fatal("failed to build bar graph", "err", err)
	}
	defer graph.Close()

	md.MonitorStateChanges(os.Stdout)

	hat.Button().WhenPressed(func() {
		log.Info("button pressed, buzzing")
		hat.Buzzer().On()
	})
	hat.Button().WhenReleased(func() {
		hat.Buzzer().Off()
	})

	err = hat.Lights().Blink(outkit.BlinkParams{OnTime: 200 * time.Millisecond, OffTime: 200 * time.Millisecond, N: 3})
	if err != nil {
		log.Fatal("blink failed", "err", err)
	}

	for _, fraction := range []float64{0.25, 0.5, 0.8, 1, -0.5, 0} {
		err = graph.SetFraction(fraction)
		if err != nil {
			log.Fatal("bar graph failed", "err", err)
		}
		time.Sleep(150 * time.Millisecond)
	}

	md.Input(25).DriveLow()
	time.Sleep(100 * time.Millisecond)
	md.Input(25).DriveHigh()

	time.Sleep(500 * time.Millisecond)
	value, err := hat.Value()
	if err != nil {
		log.Fatal("failed to read traffic hat", "err", err)
	}
	log.Info("show finished", "traffic_hat", value.String())
}
