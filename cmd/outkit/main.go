package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hubertat/outkit"
)

var (
	Version string

	configPath string
	debug      bool
	holdFor    time.Duration

	kit *outkit.Kit
)

type blinkable interface {
	Blink(outkit.BlinkParams) error
	Pulse(outkit.BlinkParams) error
}

func main() {
	root := &cobra.Command{
		Use:           "outkit",
		Short:         "Drive LED boards, motors and remote sockets from a kit config",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
			return openKit(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return kit.Close()
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "outkit.toml", "path of the kit configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.PersistentFlags().DurationVar(&holdFor, "for", 0, "keep outputs driven this long before releasing them, 0 holds until interrupted")

	root.AddCommand(
		statusCmd(),
		runCmd(),
		switchCmd("on", "Switch every output of a board on", outkit.Controllable.On, true),
		switchCmd("off", "Switch every output of a board off", outkit.Controllable.Off, false),
		switchCmd("toggle", "Toggle every output of a board", outkit.Controllable.Toggle, true),
		setCmd(),
		blinkCmd(),
		pulseCmd(),
		graphCmd(),
		robotCmd(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := root.ExecuteContext(ctx)
	if err != nil {
		log.Error("outkit failed", "err", err)
		if kit != nil {
			kit.Close()
		}
		os.Exit(1)
	}
}

func openKit(ctx context.Context) error {
	var err error
	kit, err = outkit.LoadKit(configPath)
	if err != nil {
		return err
	}
	err = kit.InitDrivers(ctx)
	if err != nil {
		return err
	}
	return kit.BuildBoards()
}

// hold keeps the kit open, closing it releases and resets every output.
func hold(cmd *cobra.Command) {
	var timeout <-chan time.Time
	if holdFor > 0 {
		timeout = time.After(holdFor)
	}
	log.Info("holding outputs", "for", holdFor)
	select {
	case <-timeout:
	case <-cmd.Context().Done():
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print drivers, reserved pins and board values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kit.PrintIoStatus(cmd.OutOrStdout())
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Let the configured controllers drive their boards until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := kit.MatchControllers()
			if err != nil {
				return err
			}
			kit.PrintIoStatus(cmd.OutOrStdout())
			hold(cmd)
			return nil
		},
	}
}

func switchCmd(use, short string, action func(outkit.Controllable) error, holding bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <board>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := kit.Board(args[0])
			if err != nil {
				return err
			}
			err = action(board)
			if err != nil || !holding {
				return err
			}
			hold(cmd)
			return nil
		},
	}
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set <board> <value>",
		Short:   "Set a board value, a number or a nested tuple like \"(1, (0, 1))\"",
		Args:    cobra.ExactArgs(2),
		Example: "outkit set lights \"(1, 0, 1)\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := kit.Board(args[0])
			if err != nil {
				return err
			}
			value, err := outkit.ParseValue(args[1])
			if err != nil {
				return err
			}
			err = board.SetValue(value)
			if err != nil {
				return err
			}
			hold(cmd)
			return nil
		},
	}
}

func blinkParamsFlags(cmd *cobra.Command, params *outkit.BlinkParams) {
	cmd.Flags().DurationVar(&params.OnTime, "on", params.OnTime, "time fully on")
	cmd.Flags().DurationVar(&params.OffTime, "off", params.OffTime, "time fully off")
	cmd.Flags().DurationVar(&params.FadeInTime, "fade-in", params.FadeInTime, "fade in time, pwm boards only")
	cmd.Flags().DurationVar(&params.FadeOutTime, "fade-out", params.FadeOutTime, "fade out time, pwm boards only")
	cmd.Flags().IntVarP(&params.N, "repeat", "n", 0, "number of cycles, 0 repeats until interrupted")
}

func findBlinkable(name string) (blinkable, error) {
	board, err := kit.Board(name)
	if err != nil {
		return nil, err
	}
	bl, ok := board.(blinkable)
	if !ok {
		return nil, errors.Wrapf(outkit.ErrConfiguration, "board %s can not blink", name)
	}
	return bl, nil
}

// runForeground blocks until the job ends or the command context is cancelled.
func runForeground(cmd *cobra.Command, board outkit.Controllable, start func() error) error {
	done := make(chan error, 1)
	go func() { done <- start() }()

	select {
	case err := <-done:
		return err
	case <-cmd.Context().Done():
		log.Info("interrupted, switching off")
		return board.Off()
	}
}

func blinkCmd() *cobra.Command {
	params := outkit.DefaultBlink
	cmd := &cobra.Command{
		Use:   "blink <board>",
		Short: "Blink every LED of a board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bl, err := findBlinkable(args[0])
			if err != nil {
				return err
			}
			params.Foreground = true
			return runForeground(cmd, bl.(outkit.Controllable), func() error { return bl.Blink(params) })
		},
	}
	blinkParamsFlags(cmd, &params)
	return cmd
}

func pulseCmd() *cobra.Command {
	params := outkit.DefaultPulse
	cmd := &cobra.Command{
		Use:   "pulse <board>",
		Short: "Fade every LED of a pwm board in and out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bl, err := findBlinkable(args[0])
			if err != nil {
				return err
			}
			params.Foreground = true
			return runForeground(cmd, bl.(outkit.Controllable), func() error { return bl.Pulse(params) })
		},
	}
	blinkParamsFlags(cmd, &params)
	return cmd
}

func graphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph <board> <fraction>",
		Short: "Show a fraction in [-1, 1] on a bar graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := kit.Board(args[0])
			if err != nil {
				return err
			}
			graph, ok := board.(*outkit.LEDBarGraph)
			if !ok {
				return errors.Wrapf(outkit.ErrConfiguration, "board %s is not a bar graph", args[0])
			}
			fraction, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return errors.Wrapf(outkit.ErrConfiguration, "bad fraction %q", args[1])
			}
			err = graph.SetFraction(fraction)
			if err != nil {
				return err
			}
			hold(cmd)
			return nil
		},
	}
}

func robotCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "robot <board> forward|backward|left|right|reverse|stop [speed]",
		Short:     "Drive a robot",
		Args:      cobra.RangeArgs(2, 3),
		ValidArgs: []string{"forward", "backward", "left", "right", "reverse", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := kit.Board(args[0])
			if err != nil {
				return err
			}
			robot, ok := board.(*outkit.Robot)
			if !ok {
				return errors.Wrapf(outkit.ErrConfiguration, "board %s is not a robot", args[0])
			}
			speed := 1.0
			if len(args) == 3 {
				speed, err = strconv.ParseFloat(args[2], 64)
				if err != nil {
					return errors.Wrapf(outkit.ErrConfiguration, "bad speed %q", args[2])
				}
			}

			switch args[1] {
			case "forward":
				err = robot.Forward(speed)
			case "backward":
				err = robot.Backward(speed)
			case "left":
				err = robot.Left(speed)
			case "right":
				err = robot.Right(speed)
			case "reverse":
				err = robot.Reverse()
			case "stop":
				return robot.Stop()
			default:
				return errors.Wrapf(outkit.ErrConfiguration, "unknown robot command %s", args[1])
			}
			if err != nil {
				return err
			}
			hold(cmd)
			return robot.Stop()
		},
	}
}
