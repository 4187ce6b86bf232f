package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/pm25/adapter"
	"github.com/mklimuk/pm25/i2c"
	"github.com/mklimuk/pm25/plantower"
	"github.com/mklimuk/pm25/uart"
)

// sensorFlags are shared by every command that talks to the sensor.
var sensorFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Value:   "uart",
		Usage:   "transport adapter: uart, mcp2221, generic or nanopi",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Value:   "/dev/ttyAMA0",
		Usage:   "serial device (uart) or i2c bus (generic)",
	},
	&cli.StringFlag{
		Name:  "mode",
		Value: "active",
		Usage: "acquisition mode over uart: active or passive",
	},
	&cli.IntFlag{
		Name:  "bus",
		Value: 0,
		Usage: "i2c bus number (nanopi)",
	},
	&cli.IntFlag{
		Name:  "reset-pin",
		Value: -1,
		Usage: "MCP2221 GP pin wired to the sensor RESET line",
	},
	&cli.IntFlag{
		Name:  "enable-pin",
		Value: -1,
		Usage: "MCP2221 GP pin wired to the sensor SET line",
	},
	&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
}

// newSensor builds the sensor behind the selected adapter. The returned
// cleanup waits out any pending settle and releases the underlying port or
// bus.
func newSensor(ctx context.Context, c *cli.Context) (*plantower.Sensor, func(), error) {
	mode := plantower.ModeActive
	switch c.String("mode") {
	case "active":
	case "passive":
		mode = plantower.ModePassive
	default:
		return nil, nil, fmt.Errorf("unknown acquisition mode %q", c.String("mode"))
	}
	name := c.String("adapter")
	if mode == plantower.ModePassive && name != "uart" {
		return nil, nil, fmt.Errorf("passive mode needs the uart adapter")
	}

	switch name {
	case "uart":
		port, err := uart.Open(c.String("device"))
		if err != nil {
			return nil, nil, err
		}
		sensor, err := plantower.New(ctx, plantower.NewUART(port), plantower.WithMode(mode))
		if err != nil {
			_ = port.Close()
			return nil, nil, err
		}
		return sensor, func() {
			sensor.Close(ctx)
			_ = port.Close()
		}, nil

	case "mcp2221":
		ad := adapter.NewMCP2221()
		if err := ad.Init(); err != nil {
			return nil, nil, err
		}
		var opts []plantower.Opt
		if pin := c.Int("reset-pin"); pin >= 0 {
			opts = append(opts, plantower.WithResetPin(ad.GP(pin)))
		}
		if pin := c.Int("enable-pin"); pin >= 0 {
			opts = append(opts, plantower.WithEnablePin(ad.GP(pin)))
		}
		transport, err := plantower.NewI2C(ctx, ad)
		if err != nil {
			_ = ad.Close()
			return nil, nil, err
		}
		sensor, err := plantower.New(ctx, transport, opts...)
		if err != nil {
			_ = ad.Close()
			return nil, nil, err
		}
		return sensor, func() {
			sensor.Close(ctx)
			_ = ad.Close()
		}, nil

	case "generic":
		bus, err := i2c.NewGenericBus(c.String("device"))
		if err != nil {
			return nil, nil, err
		}
		if err = bus.SetSpeed(100 * physic.KiloHertz); err != nil {
			_ = bus.Close()
			return nil, nil, err
		}
		transport, err := plantower.NewI2C(ctx, bus)
		if err != nil {
			_ = bus.Close()
			return nil, nil, err
		}
		sensor, err := plantower.New(ctx, transport)
		if err != nil {
			_ = bus.Close()
			return nil, nil, err
		}
		return sensor, func() {
			sensor.Close(ctx)
			_ = bus.Close()
		}, nil

	case "nanopi":
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		bus := i2c.NewGobotBus(npi, c.Int("bus"))
		transport, err := plantower.NewI2C(ctx, bus)
		if err != nil {
			_ = npi.I2cBusAdaptor.Finalize()
			return nil, nil, err
		}
		sensor, err := plantower.New(ctx, transport)
		if err != nil {
			_ = npi.I2cBusAdaptor.Finalize()
			return nil, nil, err
		}
		return sensor, func() {
			sensor.Close(ctx)
			_ = bus.Close()
			_ = npi.I2cBusAdaptor.Finalize()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown adapter %q", name)
}
