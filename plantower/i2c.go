package plantower

import (
	"context"
	"fmt"
	"time"

	pm25 "github.com/mklimuk/pm25"
)

// DefaultI2CAddr is the factory 7-bit address of PMSA003I style sensors.
const DefaultI2CAddr byte = 0x12

const probeAttempts = 5

var ErrDeviceNotFound = fmt.Errorf("plantower: unable to find PM2.5 device on the bus")

var _ Transport = &I2C{}

type I2COpts struct {
	Addr         byte
	ProbeBackoff time.Duration
}

type I2COpt func(*I2COpts)

func WithAddr(addr byte) I2COpt {
	return func(o *I2COpts) {
		o.Addr = addr
	}
}

func WithProbeBackoff(backoff time.Duration) I2COpt {
	return func(o *I2COpts) {
		o.ProbeBackoff = backoff
	}
}

// I2C reads PMSA003I style sensors, which expose the current measurement
// frame as a 32 byte register block. The device refreshes the block on its
// own; there is no command channel and no passive mode.
type I2C struct {
	transport pm25.I2CBus
	addr      byte
}

// NewI2C claims the device address on the bus. The sensor boots slower than
// the host and drops off the bus while waking up, so discovery probes it a
// few times with a backoff before reporting ErrDeviceNotFound.
func NewI2C(ctx context.Context, transport pm25.I2CBus, opts ...I2COpt) (*I2C, error) {
	config := I2COpts{
		Addr:         DefaultI2CAddr,
		ProbeBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(&config)
	}
	t := &I2C{transport: transport, addr: config.Addr}
	var probe [1]byte
	var err error
	for attempt := 0; attempt < probeAttempts; attempt++ {
		if attempt > 0 {
			if werr := wait(ctx, config.ProbeBackoff); werr != nil {
				return nil, werr
			}
		}
		if err = t.readBlock(ctx, probe[:]); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrDeviceNotFound, probeAttempts, err)
}

// FillPacket copies the current measurement block out of the device.
func (t *I2C) FillPacket(ctx context.Context, buf []byte) error {
	if err := t.readBlock(ctx, buf); err != nil {
		return fmt.Errorf("plantower: register block read: %w", err)
	}
	return nil
}

// readBlock reads into buf and releases the bus no matter how the read went.
func (t *I2C) readBlock(ctx context.Context, buf []byte) error {
	err := t.transport.ReadFromAddr(ctx, t.addr, buf)
	if rerr := t.transport.Release(ctx); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
