package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	pm25 "github.com/mklimuk/pm25"
)

type registry int

const DefaultMCP23017Address = 0x21

// Register indexes, resolved to bus addresses through BankAddr.
const (
	IODIRA registry = iota
	IOPOLA
	GPINTENA
	DEFVALA
	INTCONA
	IOCONA
	GPPUA
	INTFA
	INTCAPA
	GPIOA
	OLATA
	IODIRB
	IOPOLB
	GPINTENB
	DEFVALB
	INTCONB
	IOCONB
	GPPUB
	INTFB
	INTCAPB
	GPIOB
	OLATB
)

var (
	BankAddr = []map[registry]byte{
		{
			IODIRA:   0x00,
			IOPOLA:   0x02,
			GPINTENA: 0x04,
			DEFVALA:  0x06,
			INTCONA:  0x08,
			IOCONA:   0x0A,
			GPPUA:    0x0C,
			INTFA:    0x0E,
			INTCAPA:  0x10,
			GPIOA:    0x12,
			OLATA:    0x14,
			IODIRB:   0x01,
			IOPOLB:   0x03,
			GPINTENB: 0x05,
			DEFVALB:  0x07,
			INTCONB:  0x09,
			IOCONB:   0x0B,
			GPPUB:    0x0D,
			INTFB:    0x0F,
			INTCAPB:  0x11,
			GPIOB:    0x13,
			OLATB:    0x15,
		},
		{
			IODIRA:   0x00,
			IOPOLA:   0x01,
			GPINTENA: 0x02,
			DEFVALA:  0x03,
			INTCONA:  0x04,
			IOCONA:   0x05,
			GPPUA:    0x06,
			INTFA:    0x07,
			INTCAPA:  0x08,
			GPIOA:    0x09,
			OLATA:    0x0A,
			IODIRB:   0x10,
			IOPOLB:   0x11,
			GPINTENB: 0x12,
			DEFVALB:  0x13,
			INTCONB:  0x14,
			IOCONB:   0x15,
			GPPUB:    0x16,
			INTFB:    0x17,
			INTCAPB:  0x18,
			GPIOB:    0x19,
			OLATB:    0x1A,
		},
	}
)

// Set names one of the two 8 pin I/O banks.
type Set int

const (
	SetA Set = iota
	SetB
)

func (s Set) String() string {
	if s == SetB {
		return "B"
	}
	return "A"
}

func (s Set) dir() registry {
	if s == SetB {
		return IODIRB
	}
	return IODIRA
}

func (s Set) latch() registry {
	if s == SetB {
		return OLATB
	}
	return OLATA
}

// MCP23017 is the Microchip 16 pin port expander. Next to raw register
// access it hands out pin handles the sensor driver accepts as RESET and
// SET lines.
type MCP23017 struct {
	mx         sync.Mutex
	transport  pm25.I2CBus
	bank       int
	address    byte
	retryLimit int
}

func NewMCP23017(bus pm25.I2CBus, address byte) *MCP23017 {
	return &MCP23017{retryLimit: 3, transport: bus, address: address}
}

// writeRegistry writes one register, releasing the bus and retrying when the
// I2C engine reports busy. Callers hold the mutex.
func (m *MCP23017) writeRegistry(ctx context.Context, reg registry, value byte) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = m.transport.WriteToAddr(ctx, m.address, []byte{BankAddr[m.bank][reg], value})
		if err == nil {
			return nil
		}
		if !errors.Is(err, pm25.ErrBusBusy) {
			return err
		}
		// try to release the bus
		_ = m.transport.Release(ctx)
	}
	return fmt.Errorf("retry limit reached: %w", err)
}

// readRegistry points the address register and reads one byte back, with the
// same busy handling as writeRegistry. Callers hold the mutex.
func (m *MCP23017) readRegistry(ctx context.Context, reg registry) (byte, error) {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = m.transport.WriteToAddr(ctx, m.address, []byte{BankAddr[m.bank][reg]})
		if err != nil {
			if !errors.Is(err, pm25.ErrBusBusy) {
				return 0x00, fmt.Errorf("could not set I/O registry address: %w", err)
			}
			_ = m.transport.Release(ctx)
			continue
		}
		buf := make([]byte, 1)
		err = m.transport.ReadFromAddr(ctx, m.address, buf)
		if err == nil {
			return buf[0], nil
		}
		if !errors.Is(err, pm25.ErrBusBusy) {
			return 0x00, fmt.Errorf("could not read registry data: %w", err)
		}
		_ = m.transport.Release(ctx)
	}
	return 0x00, fmt.Errorf("retry limit reached: %w", err)
}

// InitA sets the IODIR registry of I/O set A (bit high = input).
func (m *MCP23017) InitA(ctx context.Context, inout byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.writeRegistry(ctx, IODIRA, inout); err != nil {
		return fmt.Errorf("could not initialize gpio A set: %w", err)
	}
	return nil
}

// InitB sets the IODIR registry of I/O set B (bit high = input).
func (m *MCP23017) InitB(ctx context.Context, inout byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.writeRegistry(ctx, IODIRB, inout); err != nil {
		return fmt.Errorf("could not initialize gpio B set: %w", err)
	}
	return nil
}

// PullUpA sets up pull up resistors on set A.
func (m *MCP23017) PullUpA(ctx context.Context, settings byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.writeRegistry(ctx, GPPUA, settings); err != nil {
		return fmt.Errorf("could not set pull-up on gpio A set: %w", err)
	}
	return nil
}

// PullUpB sets up pull up resistors on set B.
func (m *MCP23017) PullUpB(ctx context.Context, settings byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.writeRegistry(ctx, GPPUB, settings); err != nil {
		return fmt.Errorf("could not set pull-up on gpio B set: %w", err)
	}
	return nil
}

// Read returns the input values of both sets.
func (m *MCP23017) Read(ctx context.Context) ([]byte, error) {
	res := make([]byte, 2)
	var err error
	res[0], err = m.ReadA(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read gpio set A: %w", err)
	}
	res[1], err = m.ReadB(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read gpio set B: %w", err)
	}
	return res, nil
}

// ReadA reads gpio A set values.
func (m *MCP23017) ReadA(ctx context.Context) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	res, err := m.readRegistry(ctx, GPIOA)
	if err != nil {
		return res, fmt.Errorf("could not read gpio A set: %w", err)
	}
	return res, nil
}

// ReadB reads gpio B set values.
func (m *MCP23017) ReadB(ctx context.Context) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	res, err := m.readRegistry(ctx, GPIOB)
	if err != nil {
		return res, fmt.Errorf("could not read gpio B set: %w", err)
	}
	return res, nil
}

// WriteA drives the output latch of set A.
func (m *MCP23017) WriteA(ctx context.Context, values byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.writeRegistry(ctx, OLATA, values); err != nil {
		return fmt.Errorf("could not write gpio A set: %w", err)
	}
	return nil
}

// WriteB drives the output latch of set B.
func (m *MCP23017) WriteB(ctx context.Context, values byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.writeRegistry(ctx, OLATB, values); err != nil {
		return fmt.Errorf("could not write gpio B set: %w", err)
	}
	return nil
}

// ReadSettingsA reads contents of the IOCON registry through set A.
func (m *MCP23017) ReadSettingsA(ctx context.Context) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	res, err := m.readRegistry(ctx, IOCONA)
	if err != nil {
		return res, fmt.Errorf("could not read settings on gpio A set: %w", err)
	}
	return res, nil
}

// WriteSettingsA writes the IOCON registry through set A.
func (m *MCP23017) WriteSettingsA(ctx context.Context, settings byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.writeRegistry(ctx, IOCONA, settings); err != nil {
		return fmt.Errorf("could not write settings on gpio A set: %w", err)
	}
	return nil
}

// ReadSettingsB reads contents of the IOCON registry through set B.
func (m *MCP23017) ReadSettingsB(ctx context.Context) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	res, err := m.readRegistry(ctx, IOCONB)
	if err != nil {
		return res, fmt.Errorf("could not read settings on gpio B set: %w", err)
	}
	return res, nil
}

// WriteSettingsB writes the IOCON registry through set B.
func (m *MCP23017) WriteSettingsB(ctx context.Context, settings byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.writeRegistry(ctx, IOCONB, settings); err != nil {
		return fmt.Errorf("could not write settings on gpio B set: %w", err)
	}
	return nil
}

var _ pm25.DigitalPin = &MCP23017Pin{}

// MCP23017Pin is a handle on a single expander pin.
type MCP23017Pin struct {
	exp *MCP23017
	set Set
	bit int
}

// Pin returns a handle on pin 0 to 7 of the given set.
func (m *MCP23017) Pin(set Set, bit int) *MCP23017Pin {
	return &MCP23017Pin{exp: m, set: set, bit: bit}
}

// SetOutput clears the pin's IODIR bit and drives the latch low. Both are
// read-modify-write so the rest of the set keeps its configuration.
func (p *MCP23017Pin) SetOutput(ctx context.Context) error {
	if p.bit < 0 || p.bit > 7 {
		return fmt.Errorf("no pin %d in gpio set %s", p.bit, p.set)
	}
	p.exp.mx.Lock()
	defer p.exp.mx.Unlock()
	dir, err := p.exp.readRegistry(ctx, p.set.dir())
	if err != nil {
		return fmt.Errorf("could not read direction of gpio set %s: %w", p.set, err)
	}
	dir &^= 1 << p.bit
	if err = p.exp.writeRegistry(ctx, p.set.dir(), dir); err != nil {
		return fmt.Errorf("could not switch pin %s%d to output: %w", p.set, p.bit, err)
	}
	return p.drive(ctx, false)
}

// SetValue drives the pin latch.
func (p *MCP23017Pin) SetValue(ctx context.Context, high bool) error {
	if p.bit < 0 || p.bit > 7 {
		return fmt.Errorf("no pin %d in gpio set %s", p.bit, p.set)
	}
	p.exp.mx.Lock()
	defer p.exp.mx.Unlock()
	return p.drive(ctx, high)
}

func (p *MCP23017Pin) drive(ctx context.Context, high bool) error {
	latch, err := p.exp.readRegistry(ctx, p.set.latch())
	if err != nil {
		return fmt.Errorf("could not read latch of gpio set %s: %w", p.set, err)
	}
	if high {
		latch |= 1 << p.bit
	} else {
		latch &^= 1 << p.bit
	}
	if err = p.exp.writeRegistry(ctx, p.set.latch(), latch); err != nil {
		return fmt.Errorf("could not drive pin %s%d: %w", p.set, p.bit, err)
	}
	return nil
}
