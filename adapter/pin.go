package adapter

import (
	"context"
	"fmt"

	pm25 "github.com/mklimuk/pm25"
)

var _ pm25.DigitalPin = &MCP2221Pin{}

// MCP2221Pin is a handle on one of the bridge's four GP pins. Handed to the
// sensor driver it serves as RESET or SET line next to the I2C data path.
type MCP2221Pin struct {
	adapter *MCP2221
	pin     int
}

// GP returns a handle on GP pin 0 to 3.
func (d *MCP2221) GP(pin int) *MCP2221Pin {
	return &MCP2221Pin{adapter: d, pin: pin}
}

// SetOutput puts the pin into GPIO operation, direction output, driven low.
// The designation change is a read-modify-write so the other pins keep their
// function.
func (p *MCP2221Pin) SetOutput(ctx context.Context) error {
	params, err := p.adapter.GetGPIOParameters(ctx)
	if err != nil {
		return fmt.Errorf("could not read GP parameters: %w", err)
	}
	switch p.pin {
	case 0:
		params.GPIO0Mode = GPIOModeOut
		params.GPIO0Designation = GPIOOperation
	case 1:
		params.GPIO1Mode = GPIOModeOut
		params.GPIO1Designation = GPIOOperation
	case 2:
		params.GPIO2Mode = GPIOModeOut
		params.GPIO2Designation = GPIOOperation
	case 3:
		params.GPIO3Mode = GPIOModeOut
		params.GPIO3Designation = GPIOOperation
	default:
		return fmt.Errorf("no GP pin %d on the MCP2221", p.pin)
	}
	if err = p.adapter.SetGPIOParameters(ctx, params); err != nil {
		return fmt.Errorf("could not switch GP%d to output: %w", p.pin, err)
	}
	return p.adapter.SetGPIOValue(ctx, p.pin, false)
}

func (p *MCP2221Pin) SetValue(ctx context.Context, high bool) error {
	return p.adapter.SetGPIOValue(ctx, p.pin, high)
}
