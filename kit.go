package outkit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/hubertat/outkit/drivers"
)

// Kit is the configuration root: enabled drivers and the boards built on them.
type Kit struct {
	Name string `toml:"name"`

	Gpio       *drivers.GpIO         `toml:"gpio"`
	Mcp23017   *drivers.McpIO        `toml:"mcp23017"`
	Periph     *drivers.PeriphIO     `toml:"periph"`
	FakeDriver *drivers.MockIoDriver `toml:"fake_driver"`

	Boards      []BoardConfig      `toml:"boards"`
	Controllers []ControllerConfig `toml:"controllers"`

	ioDrivers   map[string]drivers.IoDriver
	boards      map[string]Controllable
	controllers []*controller
}

// BoardConfig describes one board. Pins and Names are interpreted per Kind.
type BoardConfig struct {
	Name      string   `toml:"name"`
	Kind      string   `toml:"kind"`
	Driver    string   `toml:"driver"`
	Pins      []uint16 `toml:"pins"`
	Names     []string `toml:"names"`
	PWM       bool     `toml:"pwm"`
	ActiveLow bool     `toml:"active_low"`
	Initial   float64  `toml:"initial"`
	Socket    int      `toml:"socket"`
}

func LoadKit(path string) (*Kit, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open kit config %s", path)
	}
	defer file.Close()

	return DecodeKit(file)
}

// DecodeKit reads a TOML kit; unknown keys are rejected.
func DecodeKit(reader io.Reader) (*Kit, error) {
	kit := &Kit{}
	decoder := toml.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(kit)
	if err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, errors.Wrap(ErrConfiguration, strict.String())
		}
		return nil, errors.Wrapf(ErrConfiguration, "failed to decode kit: %v", err)
	}
	return kit, nil
}

func (kit *Kit) InitDrivers(ctx context.Context) error {
	kit.ioDrivers = make(map[string]drivers.IoDriver)

	if kit.Gpio != nil {
		kit.ioDrivers[kit.Gpio.String()] = kit.Gpio
	}
	if kit.Mcp23017 != nil {
		kit.ioDrivers[kit.Mcp23017.String()] = kit.Mcp23017
	}
	if kit.Periph != nil {
		kit.ioDrivers[kit.Periph.String()] = kit.Periph
	}
	if kit.FakeDriver != nil {
		kit.ioDrivers[kit.FakeDriver.String()] = kit.FakeDriver
	}

	if len(kit.ioDrivers) == 0 {
		return errors.Wrap(ErrConfiguration, "no io driver configured")
	}

	for name, driver := range kit.ioDrivers {
		err := driver.Setup(ctx)
		if err != nil {
			return errors.Wrapf(err, "failed to setup %s driver", name)
		}
	}
	return nil
}

// Driver returns the named driver; an empty name picks the only configured one.
func (kit *Kit) Driver(name string) (drivers.IoDriver, error) {
	if name == "" {
		if len(kit.ioDrivers) == 1 {
			for _, driver := range kit.ioDrivers {
				return driver, nil
			}
		}
		return nil, errors.Wrapf(ErrConfiguration, "driver name required, %d drivers configured", len(kit.ioDrivers))
	}
	driver, found := kit.ioDrivers[strings.ToLower(name)]
	if !found {
		if _, known := drivers.MapAllIoDrivers()[strings.ToLower(name)]; known {
			return nil, errors.Wrapf(ErrConfiguration, "driver %s not set up", name)
		}
		return nil, errors.Wrapf(ErrConfiguration, "unknown driver %s", name)
	}
	return driver, nil
}

func (kit *Kit) BuildBoards() error {
	kit.boards = make(map[string]Controllable)

	for _, bc := range kit.Boards {
		if bc.Name == "" {
			return configErrorf("board of kind %s has no name", bc.Kind)
		}
		if _, dup := kit.boards[bc.Name]; dup {
			return configErrorf("duplicate board name %s", bc.Name)
		}
		driver, err := kit.Driver(bc.Driver)
		if err != nil {
			return errors.Wrapf(err, "board %s", bc.Name)
		}
		board, err := bc.Build(driver)
		if err != nil {
			return errors.Wrapf(err, "failed to build board %s", bc.Name)
		}
		kit.boards[bc.Name] = board
		log.Info("board ready", "name", bc.Name, "kind", bc.Kind, "driver", driver)
	}
	return nil
}

func (bc BoardConfig) ledOptions() LEDOptions {
	return LEDOptions{PWM: bc.PWM, ActiveLow: bc.ActiveLow, Initial: bc.Initial}
}

func (bc BoardConfig) items() ([]BoardItem, error) {
	if len(bc.Names) > 0 && len(bc.Names) != len(bc.Pins) {
		return nil, configErrorf("%d names given for %d pins", len(bc.Names), len(bc.Pins))
	}
	items := make([]BoardItem, len(bc.Pins))
	for i, pin := range bc.Pins {
		items[i] = PinItem(pin)
		if len(bc.Names) > 0 {
			items[i].Name = bc.Names[i]
		}
	}
	return items, nil
}

// Build creates the device described by the config on the given driver.
func (bc BoardConfig) Build(driver drivers.IoDriver) (Controllable, error) {
	opts := bc.ledOptions()

	switch strings.ToLower(bc.Kind) {
	case "ledboard":
		items, err := bc.items()
		if err != nil {
			return nil, err
		}
		return NewLEDBoard(driver, opts, items...)
	case "bargraph":
		return NewLEDBarGraph(driver, opts, bc.Pins...)
	case "traffic_lights":
		return NewTrafficLights(driver, opts, bc.Pins...)
	case "pi_liter":
		return NewPiLiter(driver, opts)
	case "pi_liter_bargraph":
		return NewPiLiterBarGraph(driver, opts)
	case "pi_traffic":
		return NewPiTraffic(driver, opts)
	case "snow_pi":
		return NewSnowPi(driver, opts)
	case "fish_dish":
		return NewFishDish(driver, opts)
	case "traffic_hat":
		return NewTrafficHat(driver, opts)
	case "robot":
		if len(bc.Pins) != 4 {
			return nil, configErrorf("robot needs 4 pins (left forward, left backward, right forward, right backward), got %d", len(bc.Pins))
		}
		return NewRobot(driver, MotorPins{bc.Pins[0], bc.Pins[1]}, MotorPins{bc.Pins[2], bc.Pins[3]}, bc.PWM)
	case "pololu_robot":
		if len(bc.Pins) != 4 {
			return nil, configErrorf("pololu robot needs 4 pins (left power, left direction, right power, right direction), got %d", len(bc.Pins))
		}
		return NewPololuRobot(driver, PololuPins{bc.Pins[0], bc.Pins[1]}, PololuPins{bc.Pins[2], bc.Pins[3]})
	case "ryanteck_robot":
		return NewRyanteckRobot(driver)
	case "camjam_robot":
		return NewCamJamKitRobot(driver)
	case "energenie":
		return NewEnergenie(driver, bc.Socket, bc.Initial != 0)
	}
	return nil, configErrorf("unknown board kind %q", bc.Kind)
}

func (kit *Kit) Board(name string) (Controllable, error) {
	board, found := kit.boards[name]
	if !found {
		return nil, errors.Wrapf(ErrNoChild, "kit has no board named %s", name)
	}
	return board, nil
}

func (kit *Kit) BoardNames() (names []string) {
	for name := range kit.boards {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// Close closes controllers, boards and drivers in that order and reports the first failure.
func (kit *Kit) Close() (err error) {
	for _, co := range kit.controllers {
		closeErr := co.input.Close()
		if closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "failed to close controller %s", co.name)
		}
	}
	kit.controllers = nil

	for name, board := range kit.boards {
		closeErr := board.Close()
		if closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "failed to close board %s", name)
		}
	}
	kit.boards = nil

	for name, driver := range kit.ioDrivers {
		closeErr := driver.Close()
		if closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "failed to close %s driver", name)
		}
	}
	return
}

func (kit *Kit) PrintIoStatus(writer io.Writer) {
	names := make([]string, 0, len(kit.ioDrivers))
	for name := range kit.ioDrivers {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "=== active io drivers ===")
	for _, name := range names {
		fmt.Fprintln(writer, "________")
		fmt.Fprintf(writer, "| driver: %s\n", name)
		inputs, outputs := kit.ioDrivers[name].GetAllIo()
		fmt.Fprintf(writer, "| in pins: ")
		for _, inpin := range inputs {
			fmt.Fprintf(writer, "%d, ", inpin)
		}
		fmt.Fprintf(writer, "\n| out pins: ")
		for _, outpin := range outputs {
			fmt.Fprintf(writer, "%d, ", outpin)
		}
		fmt.Fprintln(writer)
		fmt.Fprintln(writer, "--------")
	}

	fmt.Fprintln(writer, "=== boards ===")
	for _, name := range kit.BoardNames() {
		value, err := kit.boards[name].Value()
		if err != nil {
			fmt.Fprintf(writer, "| %s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(writer, "| %s: %s\n", name, value)
	}
	fmt.Fprintln(writer, "-----------------------------")
	fmt.Fprintln(writer)
}
