package i2c

import (
	"context"
	"fmt"

	pm25 "github.com/mklimuk/pm25"
	"gobot.io/x/gobot/v2/drivers/i2c"
)

var _ pm25.I2CBus = &GobotBus{}

// GobotBus talks to the sensor through a gobot platform adaptor (NanoPi,
// Raspberry Pi and friends). The adaptor must be connected before use.
type GobotBus struct {
	adaptor i2c.Connector
	bus     int
	conns   map[byte]i2c.Connection
}

func NewGobotBus(adaptor i2c.Connector, bus int) *GobotBus {
	return &GobotBus{
		adaptor: adaptor,
		bus:     bus,
		conns:   make(map[byte]i2c.Connection),
	}
}

// connection hands out the cached per-address connection, opening it on
// first use. Gobot binds a connection to one device address.
func (b *GobotBus) connection(address byte) (i2c.Connection, error) {
	if conn, ok := b.conns[address]; ok {
		return conn, nil
	}
	conn, err := b.adaptor.GetI2cConnection(int(address), b.bus)
	if err != nil {
		return nil, fmt.Errorf("could not connect to i2c device %#x on bus %d: %w", address, b.bus, err)
	}
	b.conns[address] = conn
	return conn, nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	if _, err = conn.Read(buffer); err != nil {
		return fmt.Errorf("could not read from i2c device %#x: %w", address, err)
	}
	return nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	conn, err := b.connection(address)
	if err != nil {
		return err
	}
	if err = conn.WriteBytes(buffer); err != nil {
		return fmt.Errorf("could not write to i2c device %#x: %w", address, err)
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

func (b *GobotBus) Close() error {
	var last error
	for addr, conn := range b.conns {
		if err := conn.Close(); err != nil {
			last = fmt.Errorf("could not close connection to %#x: %w", addr, err)
		}
	}
	return last
}
