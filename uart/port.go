package uart

import (
	"context"
	"fmt"
	"time"

	pm25 "github.com/mklimuk/pm25"
	"go.bug.st/serial"
)

var _ pm25.SerialPort = &Port{}

// Plantower sensors talk 9600 8N1.
const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = time.Second
)

type Opts struct {
	BaudRate    int
	ReadTimeout time.Duration
}

type Opt func(*Opts)

func WithBaudRate(rate int) Opt {
	return func(o *Opts) {
		o.BaudRate = rate
	}
}

// WithReadTimeout bounds how long a Read waits for the line to produce
// another byte. With active sensors one frame arrives roughly every second,
// so the default keeps a Read from spanning two frames.
func WithReadTimeout(timeout time.Duration) Opt {
	return func(o *Opts) {
		o.ReadTimeout = timeout
	}
}

// Port adapts a hardware serial port to the driver contract.
type Port struct {
	port serial.Port
	name string
}

func Open(device string, opts ...Opt) (*Port, error) {
	config := Opts{
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(&config)
	}
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("could not open serial port %s: %w", device, err)
	}
	if err = port.SetReadTimeout(config.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("could not set read timeout on %s: %w", device, err)
	}
	return &Port{
		port: port,
		name: device,
	}, nil
}

// Read fills buffer with bytes already received plus whatever arrives before
// the read timeout expires. At 9600 baud a frame trickles in over ~33 ms, so
// a single OS read rarely returns a full one.
func (p *Port) Read(ctx context.Context, buffer []byte) (int, error) {
	filled := 0
	for filled < len(buffer) {
		if err := ctx.Err(); err != nil {
			return filled, err
		}
		n, err := p.port.Read(buffer[filled:])
		filled += n
		if err != nil {
			return filled, fmt.Errorf("could not read from serial port %s: %w", p.name, err)
		}
		if n == 0 {
			// read timeout, the line is quiet
			break
		}
	}
	return filled, nil
}

func (p *Port) Write(ctx context.Context, buffer []byte) error {
	n, err := p.port.Write(buffer)
	if err != nil {
		return fmt.Errorf("could not write to serial port %s: %w", p.name, err)
	}
	if n < len(buffer) {
		return fmt.Errorf("short write to serial port %s: %d of %d bytes", p.name, n, len(buffer))
	}
	return nil
}

func (p *Port) ResetInputBuffer(_ context.Context) error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("could not reset input buffer on %s: %w", p.name, err)
	}
	return nil
}

func (p *Port) Close() error {
	return p.port.Close()
}
