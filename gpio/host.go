package gpio

import (
	"context"
	"fmt"

	pm25 "github.com/mklimuk/pm25"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var _ pm25.DigitalPin = &HostPin{}

// HostPin drives a SoC pin (Raspberry Pi header and alike) through the
// periph.io host drivers.
type HostPin struct {
	pin gpio.PinIO
}

// NewHostPin resolves a pin by its periph.io name, e.g. "GPIO22".
func NewHostPin(name string) (*HostPin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no gpio pin named %s", name)
	}
	return &HostPin{pin: pin}, nil
}

// SetOutput configures the pin as an output driven low.
func (p *HostPin) SetOutput(_ context.Context) error {
	if err := p.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("could not switch %s to output: %w", p.pin.Name(), err)
	}
	return nil
}

func (p *HostPin) SetValue(_ context.Context, high bool) error {
	level := gpio.Low
	if high {
		level = gpio.High
	}
	if err := p.pin.Out(level); err != nil {
		return fmt.Errorf("could not drive %s: %w", p.pin.Name(), err)
	}
	return nil
}
