package outkit

import (
	"math"

	"github.com/pkg/errors"

	"github.com/hubertat/outkit/drivers"
)

// Motor drives a forward and a backward line; its value is a signed speed in [-1, 1].
type Motor struct {
	*CompositeDevice
	forward  *OutputDevice
	backward *OutputDevice
	pwm      bool
}

type MotorPins struct {
	Forward  uint16
	Backward uint16
}

var motorReserved = []string{"forward", "backward", "reverse", "stop", "speed", "setspeed"}

func NewMotor(driver drivers.IoDriver, pins MotorPins, pwm bool) (*Motor, error) {
	newLine := NewOutputDevice
	if pwm {
		newLine = NewPWMOutputDevice
	}

	forward, err := newLine(driver, pins.Forward, OutputOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "motor forward line")
	}
	backward, err := newLine(driver, pins.Backward, OutputOptions{})
	if err != nil {
		forward.Close()
		return nil, errors.Wrap(err, "motor backward line")
	}

	cd, err := newComposite("Motor", motorReserved, []Child{
		Named("forward_device", forward),
		Named("backward_device", backward),
	})
	if err != nil {
		closeAll(forward, backward)
		return nil, err
	}
	return &Motor{CompositeDevice: cd, forward: forward, backward: backward, pwm: pwm}, nil
}

func (mo *Motor) ForwardDevice() *OutputDevice {
	return mo.forward
}

func (mo *Motor) BackwardDevice() *OutputDevice {
	return mo.backward
}

func (mo *Motor) Speed() (float64, error) {
	if err := mo.checkOpen(); err != nil {
		return 0, err
	}
	fwd, err := mo.forward.State()
	if err != nil {
		return 0, err
	}
	bwd, err := mo.backward.State()
	if err != nil {
		return 0, err
	}
	return fwd - bwd, nil
}

// SetSpeed drives the forward line for positive speeds and the backward line for negative ones.
func (mo *Motor) SetSpeed(speed float64) error {
	if err := mo.checkOpen(); err != nil {
		return err
	}
	if math.IsNaN(speed) || speed < -1 || speed > 1 {
		return configErrorf("motor speed must be in [-1, 1], got %v", speed)
	}
	if !mo.pwm && speed != 0 && speed != 1 && speed != -1 {
		return configErrorf("digital motor takes speed -1, 0 or 1, got %v", speed)
	}

	switch {
	case speed > 0:
		if err := mo.backward.Off(); err != nil {
			return err
		}
		return mo.forward.Set(speed)
	case speed < 0:
		if err := mo.forward.Off(); err != nil {
			return err
		}
		return mo.backward.Set(-speed)
	}
	return mo.Stop()
}

func (mo *Motor) Forward(speed float64) error {
	if speed < 0 {
		return configErrorf("motor speed must be in [0, 1], got %v", speed)
	}
	return mo.SetSpeed(speed)
}

func (mo *Motor) Backward(speed float64) error {
	if speed < 0 {
		return configErrorf("motor speed must be in [0, 1], got %v", speed)
	}
	return mo.SetSpeed(-speed)
}

func (mo *Motor) Reverse() error {
	speed, err := mo.Speed()
	if err != nil {
		return err
	}
	return mo.SetSpeed(-speed)
}

func (mo *Motor) Stop() error {
	if err := mo.checkOpen(); err != nil {
		return err
	}
	if err := mo.forward.Off(); err != nil {
		return err
	}
	return mo.backward.Off()
}

func (mo *Motor) Value() (Value, error) {
	speed, err := mo.Speed()
	return Scalar(speed), err
}

func (mo *Motor) IsActive() (bool, error) {
	speed, err := mo.Speed()
	return speed != 0, err
}

func (mo *Motor) SetValue(value Value) error {
	if err := mo.checkShape(value); err != nil {
		return err
	}
	return mo.SetSpeed(value.Float())
}

func (mo *Motor) On() error {
	return mo.SetSpeed(1)
}

func (mo *Motor) Off() error {
	return mo.Stop()
}

func (mo *Motor) Toggle() error {
	return mo.Reverse()
}

func (mo *Motor) checkShape(value Value) error {
	if value.IsTuple() {
		return configErrorf("motor takes a single speed, got %s", value)
	}
	return nil
}

// MotorDevice is a motor driven by a signed speed in [-1, 1].
type MotorDevice interface {
	Controllable
	Speed() (float64, error)
	SetSpeed(float64) error
	Reverse() error
	Stop() error
}

// PololuMotor drives a pwm power line and a digital direction line, forward while direction is on.
type PololuMotor struct {
	*CompositeDevice
	power     *OutputDevice
	direction *OutputDevice
}

type PololuPins struct {
	Power     uint16
	Direction uint16
}

func NewPololuMotor(driver drivers.IoDriver, pins PololuPins) (*PololuMotor, error) {
	power, err := NewPWMOutputDevice(driver, pins.Power, OutputOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "motor power line")
	}
	direction, err := NewOutputDevice(driver, pins.Direction, OutputOptions{})
	if err != nil {
		power.Close()
		return nil, errors.Wrap(err, "motor direction line")
	}

	cd, err := newComposite("PololuMotor", motorReserved, []Child{
		Named("power_device", power),
		Named("direction_device", direction),
	})
	if err != nil {
		closeAll(power, direction)
		return nil, err
	}
	return &PololuMotor{CompositeDevice: cd, power: power, direction: direction}, nil
}

func (pm *PololuMotor) PowerDevice() *OutputDevice {
	return pm.power
}

func (pm *PololuMotor) DirectionDevice() *OutputDevice {
	return pm.direction
}

func (pm *PololuMotor) Speed() (float64, error) {
	if err := pm.checkOpen(); err != nil {
		return 0, err
	}
	power, err := pm.power.State()
	if err != nil || power == 0 {
		return 0, err
	}
	forward, err := pm.direction.IsActive()
	if err != nil {
		return 0, err
	}
	if !forward {
		power = -power
	}
	return power, nil
}

func (pm *PololuMotor) SetSpeed(speed float64) error {
	if err := pm.checkOpen(); err != nil {
		return err
	}
	if math.IsNaN(speed) || speed < -1 || speed > 1 {
		return configErrorf("motor speed must be in [-1, 1], got %v", speed)
	}

	switch {
	case speed > 0:
		if err := pm.direction.On(); err != nil {
			return err
		}
		return pm.power.Set(speed)
	case speed < 0:
		if err := pm.direction.Off(); err != nil {
			return err
		}
		return pm.power.Set(-speed)
	}
	return pm.Stop()
}

func (pm *PololuMotor) Forward(speed float64) error {
	if speed < 0 {
		return configErrorf("motor speed must be in [0, 1], got %v", speed)
	}
	return pm.SetSpeed(speed)
}

func (pm *PololuMotor) Backward(speed float64) error {
	if speed < 0 {
		return configErrorf("motor speed must be in [0, 1], got %v", speed)
	}
	return pm.SetSpeed(-speed)
}

func (pm *PololuMotor) Reverse() error {
	speed, err := pm.Speed()
	if err != nil {
		return err
	}
	return pm.SetSpeed(-speed)
}

func (pm *PololuMotor) Stop() error {
	if err := pm.checkOpen(); err != nil {
		return err
	}
	if err := pm.power.Off(); err != nil {
		return err
	}
	return pm.direction.Off()
}

func (pm *PololuMotor) Value() (Value, error) {
	speed, err := pm.Speed()
	return Scalar(speed), err
}

func (pm *PololuMotor) IsActive() (bool, error) {
	speed, err := pm.Speed()
	return speed != 0, err
}

func (pm *PololuMotor) SetValue(value Value) error {
	if err := pm.checkShape(value); err != nil {
		return err
	}
	return pm.SetSpeed(value.Float())
}

func (pm *PololuMotor) On() error {
	return pm.SetSpeed(1)
}

func (pm *PololuMotor) Off() error {
	return pm.Stop()
}

func (pm *PololuMotor) Toggle() error {
	return pm.Reverse()
}

func (pm *PololuMotor) checkShape(value Value) error {
	if value.IsTuple() {
		return configErrorf("motor takes a single speed, got %s", value)
	}
	return nil
}

// Robot pairs a left and a right motor.
type Robot struct {
	*CompositeDevice
	left  MotorDevice
	right MotorDevice
}

var robotReserved = []string{"forward", "backward", "left", "right", "reverse", "stop"}

func NewRobot(driver drivers.IoDriver, left, right MotorPins, pwm bool) (*Robot, error) {
	leftMotor, err := NewMotor(driver, left, pwm)
	if err != nil {
		return nil, errors.Wrap(err, "robot left motor")
	}
	rightMotor, err := NewMotor(driver, right, pwm)
	if err != nil {
		leftMotor.Close()
		return nil, errors.Wrap(err, "robot right motor")
	}
	return newRobot("Robot", leftMotor, rightMotor)
}

// NewPololuRobot builds a robot on two Pololu motor driver channels.
func NewPololuRobot(driver drivers.IoDriver, left, right PololuPins) (*Robot, error) {
	leftMotor, err := NewPololuMotor(driver, left)
	if err != nil {
		return nil, errors.Wrap(err, "robot left motor")
	}
	rightMotor, err := NewPololuMotor(driver, right)
	if err != nil {
		leftMotor.Close()
		return nil, errors.Wrap(err, "robot right motor")
	}
	return newRobot("PololuRobot", leftMotor, rightMotor)
}

func newRobot(kind string, left, right MotorDevice) (*Robot, error) {
	cd, err := newComposite(kind, robotReserved, []Child{
		Named("left_motor", left),
		Named("right_motor", right),
	})
	if err != nil {
		closeAll(left, right)
		return nil, err
	}
	return &Robot{CompositeDevice: cd, left: left, right: right}, nil
}

func NewRyanteckRobot(driver drivers.IoDriver) (*Robot, error) {
	return NewRobot(driver, MotorPins{17, 18}, MotorPins{22, 23}, true)
}

func NewCamJamKitRobot(driver drivers.IoDriver) (*Robot, error) {
	return NewRobot(driver, MotorPins{9, 10}, MotorPins{7, 8}, true)
}

func (ro *Robot) LeftMotor() MotorDevice {
	return ro.left
}

func (ro *Robot) RightMotor() MotorDevice {
	return ro.right
}

func (ro *Robot) drive(left, right float64) error {
	if err := ro.left.SetSpeed(left); err != nil {
		return err
	}
	return ro.right.SetSpeed(right)
}

func (ro *Robot) Forward(speed float64) error {
	return ro.drive(speed, speed)
}

func (ro *Robot) Backward(speed float64) error {
	return ro.drive(-speed, -speed)
}

// Left spins in place, right motor forward and left motor backward.
func (ro *Robot) Left(speed float64) error {
	return ro.drive(-speed, speed)
}

func (ro *Robot) Right(speed float64) error {
	return ro.drive(speed, -speed)
}

func (ro *Robot) Reverse() error {
	if err := ro.left.Reverse(); err != nil {
		return err
	}
	return ro.right.Reverse()
}

func (ro *Robot) Stop() error {
	if err := ro.left.Stop(); err != nil {
		return err
	}
	return ro.right.Stop()
}
