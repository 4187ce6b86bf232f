package plantower

import (
	"context"
	"fmt"

	pm25 "github.com/mklimuk/pm25"
)

var _ Transport = &UART{}
var _ CommandTransport = &UART{}

// UART speaks the serial side of the protocol: measurement frames are
// recovered from the byte stream by scanning for the header, control frames
// are written raw. PMS5003 style sensors talk 9600 8N1; the uart package
// opens a host port with matching defaults.
type UART struct {
	port pm25.SerialPort
}

func NewUART(port pm25.SerialPort) *UART {
	return &UART{port: port}
}

// FillPacket assembles the next checksum valid frame from the stream into
// buf. buf should be FrameLen bytes; a shorter command response leaves the
// tail zeroed and gets rejected by the decoder's length check.
func (u *UART) FillPacket(ctx context.Context, buf []byte) error {
	for i := range buf {
		buf[i] = 0
	}
	_, err := scanFrame(ctx, u.port, retryLimit, buf)
	return err
}

// SendCommand frames a control code and writes it out. Received bytes are
// dropped first so a response to this command is not mixed up with frames
// emitted before it.
func (u *UART) SendCommand(ctx context.Context, code []byte) error {
	frame, err := BuildCommand(code)
	if err != nil {
		return err
	}
	if err = u.port.ResetInputBuffer(ctx); err != nil {
		return fmt.Errorf("plantower: input flush before command: %w", err)
	}
	if err = u.port.Write(ctx, frame); err != nil {
		return fmt.Errorf("plantower: command write: %w", err)
	}
	return nil
}

func (u *UART) FlushInput(ctx context.Context) error {
	return u.port.ResetInputBuffer(ctx)
}
