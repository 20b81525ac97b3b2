package outkit

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/outkit/drivers"
)

var energenieCodePins = []uint16{17, 22, 23, 27}

const (
	energenieModePin   = 24
	energenieEnablePin = 25

	energenieSettle = 100 * time.Millisecond
	energenieStrobe = 250 * time.Millisecond
)

// energenieMaster owns the radio lines of one driver, shared by every socket on it.
type energenieMaster struct {
	*CompositeDevice
	driver drivers.IoDriver
	code   []*OutputDevice
	mode   *OutputDevice
	enable *OutputDevice

	transmitLock sync.Mutex
	refs         int
}

var energenieMasters = struct {
	sync.Mutex
	byDriver map[drivers.IoDriver]*energenieMaster
}{byDriver: make(map[drivers.IoDriver]*energenieMaster)}

func acquireEnergenieMaster(driver drivers.IoDriver) (*energenieMaster, error) {
	energenieMasters.Lock()
	defer energenieMasters.Unlock()

	if master, found := energenieMasters.byDriver[driver]; found {
		master.refs++
		return master, nil
	}

	var children []Child
	var lines []*OutputDevice
	for _, pin := range append(append([]uint16{}, energenieCodePins...), energenieModePin, energenieEnablePin) {
		line, err := NewOutputDevice(driver, pin, OutputOptions{})
		if err != nil {
			for _, built := range lines {
				built.Close()
			}
			return nil, errors.Wrap(err, "energenie radio lines")
		}
		lines = append(lines, line)
		children = append(children, Unnamed(line))
	}
	cd, err := newComposite("EnergenieMaster", nil, children)
	if err != nil {
		for _, built := range lines {
			built.Close()
		}
		return nil, err
	}

	count := len(energenieCodePins)
	master := &energenieMaster{
		CompositeDevice: cd,
		driver:          driver,
		code:            lines[:count],
		mode:            lines[count],
		enable:          lines[count+1],
		refs:            1,
	}
	energenieMasters.byDriver[driver] = master
	log.Debug("energenie radio lines claimed", "driver", driver)
	return master, nil
}

func (em *energenieMaster) release() error {
	energenieMasters.Lock()
	defer energenieMasters.Unlock()

	em.refs--
	if em.refs > 0 {
		return nil
	}
	delete(energenieMasters.byDriver, em.driver)
	return em.Close()
}

// transmit writes the socket code LSB first and strobes the enable line.
func (em *energenieMaster) transmit(socket int, enable bool) error {
	em.transmitLock.Lock()
	defer em.transmitLock.Unlock()

	code := 8 - socket
	if enable {
		code += 8
	}
	for i, line := range em.code {
		err := line.Set(float64((code >> i) & 1))
		if err != nil {
			return errors.Wrapf(err, "energenie code line %d", i)
		}
	}

	time.Sleep(energenieSettle)
	if err := em.enable.On(); err != nil {
		return err
	}
	time.Sleep(energenieStrobe)
	return em.enable.Off()
}

// Energenie switches one remote socket. The state can not be read back, Value returns the last one sent.
type Energenie struct {
	socket int
	master *energenieMaster

	lock   sync.Mutex
	value  bool
	closed bool
}

func NewEnergenie(driver drivers.IoDriver, socket int, initial bool) (*Energenie, error) {
	if socket < 1 || socket > 4 {
		return nil, configErrorf("energenie socket must be 1 to 4, got %d", socket)
	}
	master, err := acquireEnergenieMaster(driver)
	if err != nil {
		return nil, err
	}

	en := &Energenie{socket: socket, master: master}
	err = en.send(initial)
	if err != nil {
		master.release()
		return nil, err
	}
	return en, nil
}

func (en *Energenie) String() string {
	return fmt.Sprintf("Energenie(socket %d)", en.socket)
}

func (en *Energenie) Socket() int {
	return en.socket
}

func (en *Energenie) Closed() bool {
	en.lock.Lock()
	defer en.lock.Unlock()

	return en.closed
}

func (en *Energenie) send(value bool) error {
	en.lock.Lock()
	defer en.lock.Unlock()

	if en.closed {
		return errors.Wrap(ErrDeviceClosed, en.String())
	}
	err := en.master.transmit(en.socket, value)
	if err != nil {
		return errors.Wrapf(err, "%s transmit failed", en)
	}
	en.value = value
	return nil
}

func (en *Energenie) Value() (Value, error) {
	active, err := en.IsActive()
	return Bool(active), err
}

func (en *Energenie) IsActive() (bool, error) {
	en.lock.Lock()
	defer en.lock.Unlock()

	if en.closed {
		return false, errors.Wrap(ErrDeviceClosed, en.String())
	}
	return en.value, nil
}

func (en *Energenie) On() error {
	return en.send(true)
}

func (en *Energenie) Off() error {
	return en.send(false)
}

func (en *Energenie) Toggle() error {
	active, err := en.IsActive()
	if err != nil {
		return err
	}
	return en.send(!active)
}

func (en *Energenie) SetValue(value Value) error {
	if value.IsTuple() {
		return configErrorf("%s takes a single value, got %s", en, value)
	}
	return en.send(value.IsActive())
}

func (en *Energenie) Close() error {
	en.lock.Lock()
	if en.closed {
		en.lock.Unlock()
		return nil
	}
	en.closed = true
	en.lock.Unlock()

	return en.master.release()
}
