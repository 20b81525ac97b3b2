package outkit

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

const (
	ControllerToggle = "toggle"
	ControllerSwitch = "switch"
)

// ControllerConfig binds an input pin to boards. A toggle controller toggles them on every press,
// a switch controller keeps them on while the input is active.
type ControllerConfig struct {
	Name     string   `toml:"name"`
	Driver   string   `toml:"driver"`
	Pin      uint16   `toml:"pin"`
	PullDown bool     `toml:"pull_down"`
	Mode     string   `toml:"mode"`
	Boards   []string `toml:"boards"`
}

type controller struct {
	name   string
	mode   string
	input  *InputDevice
	boards []Controllable
}

func (co *controller) pressed() {
	for _, board := range co.boards {
		var err error
		if co.mode == ControllerSwitch {
			err = board.On()
		} else {
			err = board.Toggle()
		}
		if err != nil {
			log.Warn("controller failed to drive board", "controller", co.name, "err", err)
		}
	}
}

func (co *controller) released() {
	if co.mode != ControllerSwitch {
		return
	}
	for _, board := range co.boards {
		if err := board.Off(); err != nil {
			log.Warn("controller failed to drive board", "controller", co.name, "err", err)
		}
	}
}

// MatchControllers builds the configured inputs and subscribes them to their boards.
// It needs BuildBoards to have run.
func (kit *Kit) MatchControllers() error {
	for _, cc := range kit.Controllers {
		mode := strings.ToLower(cc.Mode)
		if mode == "" {
			mode = ControllerToggle
		}
		if mode != ControllerToggle && mode != ControllerSwitch {
			return configErrorf("controller %s: unknown mode %q", cc.Name, cc.Mode)
		}
		if len(cc.Boards) == 0 {
			return configErrorf("controller %s drives no boards", cc.Name)
		}

		co := &controller{name: cc.Name, mode: mode}
		for _, name := range cc.Boards {
			board, found := kit.boards[name]
			if !found {
				return configErrorf("controller %s: no board named %s", cc.Name, name)
			}
			co.boards = append(co.boards, board)
		}

		driver, err := kit.Driver(cc.Driver)
		if err != nil {
			return errors.Wrapf(err, "controller %s", cc.Name)
		}
		co.input, err = NewButton(driver, cc.Pin, !cc.PullDown)
		if err != nil {
			return errors.Wrapf(err, "controller %s", cc.Name)
		}
		co.input.WhenPressed(co.pressed)
		co.input.WhenReleased(co.released)

		kit.controllers = append(kit.controllers, co)
		log.Info("controller ready", "name", cc.Name, "mode", mode, "pin", cc.Pin, "boards", cc.Boards)
	}
	return nil
}
