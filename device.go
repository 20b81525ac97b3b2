package outkit

// Device is any node of a device tree.
type Device interface {
	Value() (Value, error)
	IsActive() (bool, error)
	Close() error
	Closed() bool
}

// Controllable devices can be switched and take a value of their own shape.
type Controllable interface {
	Device
	On() error
	Off() error
	Toggle() error
	SetValue(Value) error
}

// shaper is implemented by devices whose value is a tuple.
type shaper interface {
	checkShape(Value) error
}

func checkShape(device Device, value Value) error {
	if sh, ok := device.(shaper); ok {
		return sh.checkShape(value)
	}
	if value.IsTuple() {
		return configErrorf("expected a scalar value, got %s", value)
	}
	return nil
}
