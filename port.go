package pm25

import "context"

// SerialPort is a byte stream link to a sensor.
//
// Read returns between 0 and len(buffer) bytes. A read timeout with no data
// pending is reported as (0, nil), not as an error; short reads are normal.
// ResetInputBuffer drops bytes already received so that a command exchange
// does not parse stale frames.
type SerialPort interface {
	Read(ctx context.Context, buffer []byte) (int, error)
	Write(ctx context.Context, buffer []byte) error
	ResetInputBuffer(ctx context.Context) error
}
