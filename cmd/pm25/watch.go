package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/pm25/cmd/pm25/console"
	"github.com/mklimuk/pm25/plantower"
	"github.com/mklimuk/pm25/pmctx"
)

var watchCmd = cli.Command{
	Name:  "watch",
	Usage: "read continuously until interrupted",
	Flags: append([]cli.Flag{
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Value:   time.Second,
			Usage:   "time between readings",
		},
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Usage:   "stop after n readings (0 = run until interrupted)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   "text",
			Usage:   "output format (text|yaml)",
		},
	}, sensorFlags...),
	Action: func(c *cli.Context) error {
		format := c.String("format")
		if format != "yaml" && format != "text" {
			return console.Exit(1, "unknown output format %q", format)
		}
		ctx := pmctx.SetVerbose(context.Background(), c.Bool("verbose"))
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		sensor, cleanup, err := newSensor(ctx, c)
		if err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		defer cleanup()

		var enc *yaml.Encoder
		if format == "yaml" {
			enc = yaml.NewEncoder(os.Stdout)
			defer func() { _ = enc.Close() }()
		}

		console.PInfof(console.PictoPin, "watching %s every %s", c.String("device"), c.Duration("interval"))
		ticker := time.NewTicker(c.Duration("interval"))
		defer ticker.Stop()
		taken := 0
		for {
			reading, err := sensor.Read(ctx)
			switch {
			case ctx.Err() != nil:
				console.PInfof(console.PictoFinish, "done, %d readings", taken)
				return nil
			case err != nil:
				// transient frame errors are expected on a noisy line
				console.Errorf("read error: %s", console.Red(err))
			default:
				if enc != nil {
					if err = enc.Encode(reading); err != nil {
						return console.Exit(1, "encoding error: %s", console.Red(err))
					}
				} else {
					printReading(reading)
				}
				taken++
				if n := c.Int("count"); n > 0 && taken >= n {
					console.PInfof(console.PictoFinish, "done, %d readings", taken)
					return nil
				}
			}
			select {
			case <-ctx.Done():
				console.PInfof(console.PictoFinish, "done, %d readings", taken)
				return nil
			case <-ticker.C:
			}
		}
	},
}

func printReading(r plantower.Reading) {
	severity := console.Severity(r.PM25Env)
	console.Printf("PM1.0 %s  PM2.5 %s  PM10 %s µg/m³  >0.3µm %s >2.5µm %s per 0.1L\n",
		console.White(r.PM1Env), severity(r.PM25Env), console.White(r.PM10Env),
		console.White(r.Particles03um), console.White(r.Particles25um))
}
