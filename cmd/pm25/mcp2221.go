package main

import (
	"context"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/pm25/adapter"
	"github.com/mklimuk/pm25/cmd/pm25/console"
	"github.com/mklimuk/pm25/pmctx"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "USB bridge diagnostics",
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221GpioCmd,
	},
}

func openAdapter() (*adapter.MCP2221, error) {
	a := adapter.NewMCP2221()
	if err := a.Init(); err != nil {
		return nil, err
	}
	return a, nil
}

var mcp2221StatusCmd = cli.Command{
	Name: "status",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		a, err := openAdapter()
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		defer func() { _ = a.Close() }()
		ctx := pmctx.SetVerbose(context.Background(), c.Bool("verbose"))
		status, err := a.Status(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer func() { _ = enc.Close() }()
		err = enc.Encode(status)
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel a stuck I2C transfer",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		a, err := openAdapter()
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		defer func() { _ = a.Close() }()
		ctx := pmctx.SetVerbose(context.Background(), c.Bool("verbose"))
		status, err := a.ReleaseBus(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer func() { _ = enc.Close() }()
		err = enc.Encode(status)
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var mcp2221GpioCmd = cli.Command{
	Name:  "gpio",
	Usage: "GP pin control",
	Subcommands: cli.Commands{
		&mcp2221GpioGetCmd,
		&mcp2221GpioSetCmd,
	},
}

var mcp2221GpioGetCmd = cli.Command{
	Name: "get",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		a, err := openAdapter()
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		defer func() { _ = a.Close() }()
		ctx := pmctx.SetVerbose(context.Background(), c.Bool("verbose"))
		values, err := a.ReadGPIO(ctx)
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer func() { _ = enc.Close() }()
		err = enc.Encode(values)
		if err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}

var mcp2221GpioSetCmd = cli.Command{
	Name:      "set",
	Usage:     "drive a GP pin",
	ArgsUsage: "<pin 0-3> <0|1>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return console.Exit(1, "expected 2 arguments, got %d", c.NArg())
		}
		pin, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return console.Exit(1, "invalid pin index: %s", console.Red(err))
		}
		value, err := strconv.Atoi(c.Args().Get(1))
		if err != nil || value < 0 || value > 1 {
			return console.Exit(1, "pin value must be 0 or 1")
		}
		a, err := openAdapter()
		if err != nil {
			return console.Exit(1, "adapter initialization error: %s", console.Red(err))
		}
		defer func() { _ = a.Close() }()
		ctx := pmctx.SetVerbose(context.Background(), c.Bool("verbose"))
		gp := a.GP(pin)
		if err = gp.SetOutput(ctx); err != nil {
			return console.Exit(1, "pin configuration error: %s", console.Red(err))
		}
		if err = gp.SetValue(ctx, value == 1); err != nil {
			return console.Exit(1, "pin write error: %s", console.Red(err))
		}
		console.Printf("GP%d set to %s\n", pin, console.White(value))
		return nil
	},
}
