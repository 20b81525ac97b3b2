package outkit

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

const blinkFps = 25

var errNothingToDrive = errors.New("blink job has no devices left")

// BlinkParams describes one blink or fade sequence. N is the repeat count, zero repeats forever.
type BlinkParams struct {
	OnTime      time.Duration
	OffTime     time.Duration
	FadeInTime  time.Duration
	FadeOutTime time.Duration
	N           int
	Foreground  bool
}

var DefaultBlink = BlinkParams{OnTime: time.Second, OffTime: time.Second}

var DefaultPulse = BlinkParams{FadeInTime: time.Second, FadeOutTime: time.Second}

type blinkStep struct {
	value float64
	delay time.Duration
}

func (bp BlinkParams) validate(leds []*OutputDevice) error {
	if bp.OnTime < 0 || bp.OffTime < 0 || bp.FadeInTime < 0 || bp.FadeOutTime < 0 {
		return configErrorf("blink times must not be negative")
	}
	if bp.N < 0 {
		return configErrorf("blink repeat count must not be negative, got %d", bp.N)
	}
	if bp.N == 0 && bp.cycleTime() == 0 {
		return configErrorf("endless blink needs a non zero cycle time")
	}
	if len(leds) == 0 {
		return configErrorf("nothing to blink")
	}
	if bp.FadeInTime > 0 || bp.FadeOutTime > 0 {
		for _, led := range leds {
			if !led.IsPWM() {
				return configErrorf("fading requires pwm, %s is digital", led)
			}
		}
	}
	return nil
}

const fadeStep = time.Second / blinkFps

// fadeRamp returns the step count of a fade, at least one, and the value gained per step.
func fadeRamp(d time.Duration) (int, float64) {
	frames := blinkFps * d.Seconds()
	return max(1, int(frames+1e-9)), 1 / frames
}

func (bp BlinkParams) cycleTime() time.Duration {
	cycle := bp.OnTime + bp.OffTime
	for _, fade := range []time.Duration{bp.FadeInTime, bp.FadeOutTime} {
		if fade > 0 {
			count, _ := fadeRamp(fade)
			cycle += time.Duration(count) * fadeStep
		}
	}
	return cycle
}

// steps builds one cycle: fade in, hold on, fade out, hold off.
func (bp BlinkParams) steps() (steps []blinkStep) {
	if bp.FadeInTime > 0 {
		count, delta := fadeRamp(bp.FadeInTime)
		for i := 0; i < count; i++ {
			steps = append(steps, blinkStep{value: float64(i) * delta, delay: fadeStep})
		}
	}
	steps = append(steps, blinkStep{value: 1, delay: bp.OnTime})
	if bp.FadeOutTime > 0 {
		count, delta := fadeRamp(bp.FadeOutTime)
		for i := 0; i < count; i++ {
			steps = append(steps, blinkStep{value: 1 - float64(i)*delta, delay: fadeStep})
		}
	}
	steps = append(steps, blinkStep{value: 0, delay: bp.OffTime})
	return
}

// blinkJob owns a set of leaf devices and plays steps on all of them at once.
type blinkJob struct {
	lock sync.Mutex
	leds []*OutputDevice

	stopping chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newBlinkJob(leds []*OutputDevice) *blinkJob {
	return &blinkJob{
		leds:     append([]*OutputDevice(nil), leds...),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (bj *blinkJob) stop() {
	bj.stopOnce.Do(func() { close(bj.stopping) })
}

func (bj *blinkJob) wait() {
	<-bj.done
}

func (bj *blinkJob) cancel() {
	bj.stop()
	bj.wait()
}

// claim cancels every job currently owning one of our devices, then takes them over.
func (bj *blinkJob) claim() {
	var previous []*blinkJob
	for _, led := range bj.leds {
		old := led.currentController()
		if old == nil || old == bj {
			continue
		}
		seen := false
		for _, p := range previous {
			seen = seen || p == old
		}
		if !seen {
			previous = append(previous, old)
		}
	}
	for _, old := range previous {
		log.Debug("blink job taken over", "devices", len(bj.leds))
		old.cancel()
	}
	for _, led := range bj.leds {
		led.setController(bj)
	}
}

// release drops a single device, the job stops once nothing is left.
func (bj *blinkJob) release(led *OutputDevice) {
	bj.lock.Lock()
	defer bj.lock.Unlock()

	for i, l := range bj.leds {
		if l == led {
			bj.leds = append(bj.leds[:i:i], bj.leds[i+1:]...)
			break
		}
	}
	if len(bj.leds) == 0 {
		bj.stop()
	}
}

// writeAll sets every owned device before any sleep starts.
func (bj *blinkJob) writeAll(value float64) error {
	bj.lock.Lock()
	defer bj.lock.Unlock()

	if len(bj.leds) == 0 {
		return errNothingToDrive
	}
	for _, led := range bj.leds {
		err := led.write(value)
		if err != nil {
			return err
		}
	}
	return nil
}

func (bj *blinkJob) sleep(delay time.Duration) (stopped bool) {
	if delay <= 0 {
		select {
		case <-bj.stopping:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-bj.stopping:
		return true
	case <-timer.C:
		return false
	}
}

// run plays the sequence n times (forever for zero); the first step was already written by start.
func (bj *blinkJob) run(steps []blinkStep, n int) {
	defer bj.finish()

	for cycle := 0; n == 0 || cycle < n; cycle++ {
		for i, step := range steps {
			if cycle > 0 || i > 0 {
				err := bj.writeAll(step.value)
				if err == errNothingToDrive {
					return
				}
				if err != nil {
					log.Warn("blink job stopped on write error", "err", err)
					return
				}
			}
			if bj.sleep(step.delay) {
				return
			}
		}
	}
}

func (bj *blinkJob) finish() {
	bj.lock.Lock()
	leds := bj.leds
	bj.leds = nil
	bj.lock.Unlock()

	for _, led := range leds {
		led.clearController(bj)
	}
	close(bj.done)
	log.Debug("blink job finished")
}

// blinker is embedded by every device able to start blink jobs.
type blinker struct {
	blinkLock sync.Mutex
	job       *blinkJob
}

func (bl *blinker) currentJob() *blinkJob {
	bl.blinkLock.Lock()
	defer bl.blinkLock.Unlock()

	return bl.job
}

func (bl *blinker) stopBlink() {
	bl.blinkLock.Lock()
	job := bl.job
	bl.job = nil
	bl.blinkLock.Unlock()

	if job != nil {
		job.cancel()
	}
}

// waitBlink blocks until the current job, if any, has finished.
func (bl *blinker) waitBlink() {
	if job := bl.currentJob(); job != nil {
		job.wait()
	}
}

func (bl *blinker) blink(leds []*OutputDevice, params BlinkParams) error {
	err := params.validate(leds)
	if err != nil {
		return err
	}
	bl.stopBlink()

	job := newBlinkJob(leds)
	job.claim()
	steps := params.steps()
	err = job.writeAll(steps[0].value)
	if err != nil {
		job.finish()
		return err
	}

	bl.blinkLock.Lock()
	bl.job = job
	bl.blinkLock.Unlock()
	log.Debug("blink job started", "devices", len(leds), "steps", len(steps), "n", params.N, "foreground", params.Foreground)

	if params.Foreground {
		job.run(steps, params.N)
		return nil
	}
	go job.run(steps, params.N)
	return nil
}
