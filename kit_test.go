package outkit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const kitConfig = `
name = "bench"

[fake_driver]
pwm = true

[[boards]]
name = "bar"
kind = "ledboard"
pins = [2, 3, 4]
names = ["red", "amber", "green"]

[[boards]]
name = "graph"
kind = "bargraph"
pins = [13, 14, 15, 16]
pwm = true

[[boards]]
name = "wheels"
kind = "robot"
pins = [9, 10, 11, 12]
pwm = true

[[boards]]
name = "hat"
kind = "traffic_hat"
`

func loadTestKit(t *testing.T, config string) *Kit {
	t.Helper()

	kit, err := DecodeKit(strings.NewReader(config))
	require.NoError(t, err)
	require.NoError(t, kit.InitDrivers(context.Background()))
	t.Cleanup(func() { kit.Close() })
	return kit
}

func TestKitBuildBoards(t *testing.T) {
	kit := loadTestKit(t, kitConfig)
	require.NoError(t, kit.BuildBoards())

	assert.Equal(t, "bench", kit.Name)
	assert.Equal(t, []string{"bar", "graph", "hat", "wheels"}, kit.BoardNames())

	bar, err := kit.Board("bar")
	require.NoError(t, err)
	board, ok := bar.(*LEDBoard)
	require.True(t, ok)
	amber, err := board.Named("amber")
	require.NoError(t, err)
	require.NoError(t, amber.(*OutputDevice).On())
	assertValue(t, bar, Flat(0, 1, 0))

	graph, err := kit.Board("graph")
	require.NoError(t, err)
	require.NoError(t, graph.SetValue(Scalar(0.5)))
	fraction, err := graph.(*LEDBarGraph).Fraction()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, fraction, 1e-9)

	wheels, err := kit.Board("wheels")
	require.NoError(t, err)
	require.NoError(t, wheels.(*Robot).Left(0.5))
	assertValue(t, wheels, Flat(-0.5, 0.5))

	_, err = kit.Board("missing")
	assert.True(t, errors.Is(err, ErrNoChild))
}

func TestKitPrintIoStatus(t *testing.T) {
	kit := loadTestKit(t, kitConfig)
	require.NoError(t, kit.BuildBoards())

	var out bytes.Buffer
	kit.PrintIoStatus(&out)

	assert.Contains(t, out.String(), "| driver: mock_driver")
	assert.Contains(t, out.String(), "| in pins: 25, ")
	assert.Contains(t, out.String(), "| bar: (0, 0, 0)")
	assert.Contains(t, out.String(), "| wheels: (0, 0)")

	hat, err := kit.Board("hat")
	require.NoError(t, err)
	require.NoError(t, hat.Close())
	out.Reset()
	kit.PrintIoStatus(&out)
	assert.Contains(t, out.String(), "| in pins: \n")
	assert.NotContains(t, out.String(), "24, ")
}

func TestKitBadConfig(t *testing.T) {
	for name, config := range map[string]string{
		"unknown key":   "[fake_driver]\nspeed = 3\n",
		"unknown kind":  "[fake_driver]\n[[boards]]\nname = \"x\"\nkind = \"lamp\"\n",
		"no name":       "[fake_driver]\n[[boards]]\nkind = \"pi_liter\"\n",
		"duplicate":     "[fake_driver]\n[[boards]]\nname = \"x\"\nkind = \"pi_traffic\"\n[[boards]]\nname = \"x\"\nkind = \"pi_liter\"\n",
		"robot pins":    "[fake_driver]\n[[boards]]\nname = \"x\"\nkind = \"robot\"\npins = [1, 2]\n",
		"pololu pins":   "[fake_driver]\npwm = true\n[[boards]]\nname = \"x\"\nkind = \"pololu_robot\"\npins = [1, 2, 3]\n",
		"pololu pwm":    "[fake_driver]\n[[boards]]\nname = \"x\"\nkind = \"pololu_robot\"\npins = [1, 2, 3, 4]\n",
		"names":         "[fake_driver]\n[[boards]]\nname = \"x\"\nkind = \"ledboard\"\npins = [1, 2]\nnames = [\"a\"]\n",
		"bad socket":    "[fake_driver]\n[[boards]]\nname = \"x\"\nkind = \"energenie\"\nsocket = 7\n",
		"wrong driver":  "[fake_driver]\n[[boards]]\nname = \"x\"\nkind = \"pi_liter\"\ndriver = \"gpio\"\n",
		"reserved name": "[fake_driver]\n[[boards]]\nname = \"x\"\nkind = \"ledboard\"\npins = [1]\nnames = [\"blink\"]\n",
	} {
		t.Run(name, func(t *testing.T) {
			kit, err := DecodeKit(strings.NewReader(config))
			if err == nil {
				require.NoError(t, kit.InitDrivers(context.Background()))
				defer kit.Close()
				err = kit.BuildBoards()
			}
			assert.True(t, errors.Is(err, ErrConfiguration), "got %v", err)
		})
	}
}

func TestKitPololuRobot(t *testing.T) {
	kit := loadTestKit(t, "[fake_driver]\npwm = true\n[[boards]]\nname = \"rover\"\nkind = \"pololu_robot\"\npins = [2, 3, 4, 5]\n")
	require.NoError(t, kit.BuildBoards())

	rover, err := kit.Board("rover")
	require.NoError(t, err)
	robot, ok := rover.(*Robot)
	require.True(t, ok)
	require.NoError(t, robot.Backward(0.5))
	assertValue(t, rover, Flat(-0.5, -0.5))
	assert.Equal(t, "PololuRobot(2 devices)", robot.String())
}

func TestKitNoDriver(t *testing.T) {
	kit, err := DecodeKit(strings.NewReader(`name = "empty"`))
	require.NoError(t, err)
	assert.True(t, errors.Is(kit.InitDrivers(context.Background()), ErrConfiguration))
}

func TestLoadKit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outkit.toml")
	require.NoError(t, os.WriteFile(path, []byte(kitConfig), 0o644))

	kit, err := LoadKit(path)
	require.NoError(t, err)
	require.NotNil(t, kit.FakeDriver)
	assert.True(t, kit.FakeDriver.PWM)
	assert.Len(t, kit.Boards, 4)
	assert.Equal(t, []uint16{9, 10, 11, 12}, kit.Boards[2].Pins)

	_, err = LoadKit(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

const controllerConfig = `
[fake_driver]

[[boards]]
name = "lamp"
kind = "ledboard"
pins = [2, 3]

[[boards]]
name = "fan"
kind = "ledboard"
pins = [4]

[[controllers]]
name = "wall"
pin = 10
boards = ["lamp"]

[[controllers]]
name = "door"
pin = 11
mode = "switch"
pull_down = true
boards = ["lamp", "fan"]
`

func TestKitControllers(t *testing.T) {
	kit := loadTestKit(t, controllerConfig)
	require.NoError(t, kit.BuildBoards())
	require.NoError(t, kit.MatchControllers())

	lamp, err := kit.Board("lamp")
	require.NoError(t, err)
	fan, err := kit.Board("fan")
	require.NoError(t, err)

	kit.FakeDriver.Input(10).DriveLow()
	assertValue(t, lamp, Flat(1, 1))
	kit.FakeDriver.Input(10).DriveHigh()
	assertValue(t, lamp, Flat(1, 1))
	kit.FakeDriver.Input(10).DriveLow()
	assertValue(t, lamp, Flat(0, 0))

	kit.FakeDriver.Input(11).DriveHigh()
	assertValue(t, lamp, Flat(1, 1))
	assertValue(t, fan, Flat(1))
	kit.FakeDriver.Input(11).DriveLow()
	assertValue(t, lamp, Flat(0, 0))
	assertValue(t, fan, Flat(0))
}

func TestKitBadControllers(t *testing.T) {
	for name, controller := range map[string]string{
		"unknown board": "[[controllers]]\nname = \"c\"\npin = 10\nboards = [\"nope\"]\n",
		"no boards":     "[[controllers]]\nname = \"c\"\npin = 10\n",
		"bad mode":      "[[controllers]]\nname = \"c\"\npin = 10\nmode = \"dimmer\"\nboards = [\"lamp\"]\n",
		"pin clash":     "[[controllers]]\nname = \"c\"\npin = 2\nboards = [\"lamp\"]\n",
	} {
		t.Run(name, func(t *testing.T) {
			kit := loadTestKit(t, "[fake_driver]\n[[boards]]\nname = \"lamp\"\nkind = \"ledboard\"\npins = [2]\n"+controller)
			require.NoError(t, kit.BuildBoards())
			assert.Error(t, kit.MatchControllers())
		})
	}
}
