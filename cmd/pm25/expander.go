package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/pm25/adapter"
	"github.com/mklimuk/pm25/cmd/pm25/console"
	"github.com/mklimuk/pm25/gpio"
)

var expanderFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "addr",
		Value: "21",
		Usage: "expander address (hex)",
	},
}

func openExpander(c *cli.Context) (*gpio.MCP23017, func(), error) {
	addr, err := hex.DecodeString(c.String("addr"))
	if err != nil || len(addr) != 1 {
		return nil, nil, fmt.Errorf("could not decode address %q", c.String("addr"))
	}
	ad := adapter.NewMCP2221()
	if err = ad.Init(); err != nil {
		return nil, nil, err
	}
	return gpio.NewMCP23017(ad, addr[0]), func() { _ = ad.Close() }, nil
}

var expanderCmd = cli.Command{
	Name:  "expander",
	Usage: "MCP23017 port expander behind the USB bridge",
	Subcommands: cli.Commands{
		&expanderReadCmd,
		&expanderSetCmd,
		&expanderSettingsCmd,
		&expanderPullCmd,
	},
}

var expanderReadCmd = cli.Command{
	Name:  "read",
	Usage: "read both I/O sets as inputs",
	Flags: expanderFlags,
	Action: func(c *cli.Context) error {
		exp, cleanup, err := openExpander(c)
		if err != nil {
			return console.Exit(1, "could not open expander: %v", err)
		}
		defer cleanup()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err = exp.InitA(ctx, 0xFF); err != nil {
			return console.Exit(1, "could not initialize gpio: %v", err)
		}
		if err = exp.InitB(ctx, 0xFF); err != nil {
			return console.Exit(1, "could not initialize gpio: %v", err)
		}
		values, err := exp.Read(ctx)
		if err != nil {
			return console.Exit(1, "could not read gpio: %v", err)
		}
		fmt.Printf("I/O A: %#X\nI/O B: %#X\n", values[0], values[1])
		return nil
	},
}

var expanderSetCmd = cli.Command{
	Name:      "set",
	Usage:     "drive an expander pin",
	ArgsUsage: "<pin, e.g. A2 or B5> <0|1>",
	Flags:     expanderFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		set, bit, err := parsePinName(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "invalid pin: %v", err)
		}
		value, err := strconv.Atoi(c.Args().Get(1))
		if err != nil || value < 0 || value > 1 {
			return console.Exit(1, "pin value must be 0 or 1")
		}
		exp, cleanup, err := openExpander(c)
		if err != nil {
			return console.Exit(1, "could not open expander: %v", err)
		}
		defer cleanup()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pin := exp.Pin(set, bit)
		if err = pin.SetOutput(ctx); err != nil {
			return console.Exit(1, "could not configure pin: %v", err)
		}
		if err = pin.SetValue(ctx, value == 1); err != nil {
			return console.Exit(1, "could not drive pin: %v", err)
		}
		console.Printf("%s set to %s\n", strings.ToUpper(c.Args().Get(0)), console.White(value))
		return nil
	},
}

var expanderSettingsCmd = cli.Command{
	Name:      "settings",
	Usage:     "read or write the IOCON registry",
	ArgsUsage: "[value (hex)]",
	Flags:     expanderFlags,
	Action: func(c *cli.Context) error {
		exp, cleanup, err := openExpander(c)
		if err != nil {
			return console.Exit(1, "could not open expander: %v", err)
		}
		defer cleanup()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if c.NArg() == 0 {
			data, err := exp.ReadSettingsA(ctx)
			if err != nil {
				return console.Exit(1, "could not read settings: %v", err)
			}
			fmt.Printf("IOCON content: %#X\n", data)
			return nil
		}
		data, err := hex.DecodeString(c.Args().Get(0))
		if err != nil || len(data) != 1 {
			return console.Exit(1, "could not decode data: %v", err)
		}
		if err = exp.WriteSettingsA(ctx, data[0]); err != nil {
			return console.Exit(1, "could not write settings: %v", err)
		}
		fmt.Printf("wrote IOCON content: %#X\n", data[0])
		return nil
	},
}

var expanderPullCmd = cli.Command{
	Name:      "pull",
	Usage:     "configure pull up resistors on set A",
	ArgsUsage: "<mask (hex)>",
	Flags:     expanderFlags,
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		data, err := hex.DecodeString(c.Args().Get(0))
		if err != nil || len(data) != 1 {
			return console.Exit(1, "could not decode data: %v", err)
		}
		exp, cleanup, err := openExpander(c)
		if err != nil {
			return console.Exit(1, "could not open expander: %v", err)
		}
		defer cleanup()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err = exp.PullUpA(ctx, data[0]); err != nil {
			return console.Exit(1, "could not write pull up settings: %v", err)
		}
		fmt.Printf("wrote GPPU content: %#X\n", data[0])
		return nil
	},
}

func parsePinName(name string) (gpio.Set, int, error) {
	if len(name) != 2 {
		return 0, 0, fmt.Errorf("want a set letter and a pin digit, e.g. A2")
	}
	var set gpio.Set
	switch name[0] {
	case 'a', 'A':
		set = gpio.SetA
	case 'b', 'B':
		set = gpio.SetB
	default:
		return 0, 0, fmt.Errorf("unknown gpio set %q", name[0])
	}
	bit, err := strconv.Atoi(name[1:])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid pin number: %w", err)
	}
	return set, bit, nil
}
