package outkit

import (
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Child is one entry of a composite, Name may be empty.
type Child struct {
	Name   string
	Device Device
}

func Unnamed(device Device) Child {
	return Child{Device: device}
}

func Named(name string, device Device) Child {
	return Child{Name: name, Device: device}
}

var compositeReserved = []string{
	"value", "setvalue", "isactive", "on", "off", "toggle", "close", "closed",
	"child", "named", "names", "len", "all", "string",
}

// CompositeDevice is an ordered, optionally named collection of devices. It owns its children.
type CompositeDevice struct {
	kind     string
	children []Device
	names    []string
	index    map[string]int

	lock   sync.Mutex
	closed bool
}

func NewCompositeDevice(children ...Child) (*CompositeDevice, error) {
	return newComposite("CompositeDevice", nil, children)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

func validName(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return len(name) > 0
}

// newComposite validates names against the reserved words of the composite and of the wrapping type.
func newComposite(kind string, reserved []string, children []Child) (*CompositeDevice, error) {
	if len(children) == 0 {
		return nil, configErrorf("%s needs at least one device", kind)
	}

	forbidden := make(map[string]bool)
	for _, word := range append(append([]string{}, compositeReserved...), reserved...) {
		forbidden[normalizeName(word)] = true
	}

	cd := &CompositeDevice{
		kind:  kind,
		index: make(map[string]int),
	}
	taken := make(map[string]bool)
	for i, child := range children {
		if child.Device == nil {
			return nil, configErrorf("%s: device %d is nil", kind, i)
		}
		if child.Name != "" {
			if !validName(child.Name) {
				return nil, configErrorf("%s: invalid device name %q", kind, child.Name)
			}
			if forbidden[normalizeName(child.Name)] {
				return nil, configErrorf("%s: device name %q is reserved", kind, child.Name)
			}
			if taken[normalizeName(child.Name)] {
				return nil, configErrorf("%s: duplicate device name %q", kind, child.Name)
			}
			taken[normalizeName(child.Name)] = true
			cd.index[child.Name] = i
		}
		cd.children = append(cd.children, child.Device)
		cd.names = append(cd.names, child.Name)
	}
	return cd, nil
}

func (cd *CompositeDevice) String() string {
	return fmt.Sprintf("%s(%d devices)", cd.kind, len(cd.children))
}

func (cd *CompositeDevice) Closed() bool {
	cd.lock.Lock()
	defer cd.lock.Unlock()

	return cd.closed
}

func (cd *CompositeDevice) checkOpen() error {
	if cd.Closed() {
		return errors.Wrap(ErrDeviceClosed, cd.String())
	}
	return nil
}

func (cd *CompositeDevice) Len() int {
	return len(cd.children)
}

func (cd *CompositeDevice) Child(i int) (Device, error) {
	if err := cd.checkOpen(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(cd.children) {
		return nil, errors.Wrapf(ErrNoChild, "%s has no index %d", cd, i)
	}
	return cd.children[i], nil
}

func (cd *CompositeDevice) Named(name string) (Device, error) {
	if err := cd.checkOpen(); err != nil {
		return nil, err
	}
	i, found := cd.index[name]
	if !found {
		return nil, errors.Wrapf(ErrNoChild, "%s has no device named %q", cd, name)
	}
	return cd.children[i], nil
}

// Names returns the child names by position, empty for unnamed children.
func (cd *CompositeDevice) Names() []string {
	return append([]string(nil), cd.names...)
}

// All yields the children in declaration order.
func (cd *CompositeDevice) All() iter.Seq2[int, Device] {
	return func(yield func(int, Device) bool) {
		for i, child := range cd.children {
			if !yield(i, child) {
				return
			}
		}
	}
}

func (cd *CompositeDevice) Value() (Value, error) {
	if err := cd.checkOpen(); err != nil {
		return Value{}, err
	}
	items := make([]Value, len(cd.children))
	for i, child := range cd.children {
		value, err := child.Value()
		if err != nil {
			return Value{}, err
		}
		items[i] = value
	}
	return Tuple(items...), nil
}

func (cd *CompositeDevice) IsActive() (bool, error) {
	value, err := cd.Value()
	if err != nil {
		return false, err
	}
	return value.IsActive(), nil
}

func (cd *CompositeDevice) checkShape(value Value) error {
	if !value.IsTuple() || value.Len() != len(cd.children) {
		return configErrorf("%s expects a tuple of %d values, got %s", cd, len(cd.children), value)
	}
	for i, child := range cd.children {
		err := checkShape(child, value.items[i])
		if err != nil {
			return err
		}
	}
	return nil
}

// SetValue assigns each child its item; input children are skipped.
func (cd *CompositeDevice) SetValue(value Value) error {
	if err := cd.checkOpen(); err != nil {
		return err
	}
	if err := cd.checkShape(value); err != nil {
		return err
	}
	for i, child := range cd.children {
		if ctrl, ok := child.(Controllable); ok {
			err := ctrl.SetValue(value.items[i])
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (cd *CompositeDevice) each(fn func(Controllable) error) error {
	if err := cd.checkOpen(); err != nil {
		return err
	}
	for _, child := range cd.children {
		if ctrl, ok := child.(Controllable); ok {
			err := fn(ctrl)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (cd *CompositeDevice) On() error {
	return cd.each(Controllable.On)
}

func (cd *CompositeDevice) Off() error {
	return cd.each(Controllable.Off)
}

func (cd *CompositeDevice) Toggle() error {
	return cd.each(Controllable.Toggle)
}

// Close closes all children once; later calls are no-ops.
func (cd *CompositeDevice) Close() (err error) {
	cd.lock.Lock()
	if cd.closed {
		cd.lock.Unlock()
		return nil
	}
	cd.closed = true
	cd.lock.Unlock()

	for _, child := range cd.children {
		closeErr := child.Close()
		if closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "%s close failed", cd)
		}
	}
	return
}

// closeAll is used by constructors to drop devices they already built.
func closeAll(devices ...Device) {
	for _, device := range devices {
		if device != nil {
			device.Close()
		}
	}
}
