package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/pm25/cmd/pm25/console"
	"github.com/mklimuk/pm25/pmctx"
)

var readCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "take a single measurement",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   "yaml",
			Usage:   "output format (yaml|text)",
		},
	}, sensorFlags...),
	Action: func(c *cli.Context) error {
		format := c.String("format")
		if format != "yaml" && format != "text" {
			return console.Exit(1, "unknown output format %q", format)
		}
		ctx := pmctx.SetVerbose(context.Background(), c.Bool("verbose"))
		sensor, cleanup, err := newSensor(ctx, c)
		if err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		defer cleanup()
		reading, err := sensor.Read(ctx)
		if err != nil {
			return console.Exit(1, "read error: %s", console.Red(err))
		}
		if format == "text" {
			printReading(reading)
			return nil
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer func() { _ = enc.Close() }()
		if err = enc.Encode(reading); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}
