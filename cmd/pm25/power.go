package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/pm25/cmd/pm25/console"
	"github.com/mklimuk/pm25/pmctx"
)

var sleepCmd = cli.Command{
	Name:  "sleep",
	Usage: "stop the fan and the laser",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "skip confirmation",
		},
	}, sensorFlags...),
	Action: func(c *cli.Context) error {
		if !c.Bool("yes") {
			answer, err := console.YesOrNo("the sensor stops producing data until woken, continue?")
			if err != nil {
				return console.ExitErr(err)
			}
			if answer != console.Yes {
				return nil
			}
		}
		ctx := pmctx.SetVerbose(context.Background(), c.Bool("verbose"))
		sensor, cleanup, err := newSensor(ctx, c)
		if err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		defer cleanup()
		if err = sensor.Sleep(ctx); err != nil {
			return console.Exit(1, "sleep error: %s", console.Red(err))
		}
		console.PInfof(console.PictoStop, "sensor sleeping")
		return nil
	},
}

var wakeCmd = cli.Command{
	Name:  "wake",
	Usage: "restart the fan and the laser",
	Flags: sensorFlags,
	Action: func(c *cli.Context) error {
		ctx := pmctx.SetVerbose(context.Background(), c.Bool("verbose"))
		sensor, cleanup, err := newSensor(ctx, c)
		if err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		defer cleanup()
		if err = sensor.Wake(ctx); err != nil {
			return console.Exit(1, "wake error: %s", console.Red(err))
		}
		console.PInfof(console.PictoCoffee, "sensor waking, stable data in about 30 s")
		return nil
	},
}
