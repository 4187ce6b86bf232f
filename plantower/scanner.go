package plantower

import (
	"context"
	"encoding/binary"
	"fmt"

	pm25 "github.com/mklimuk/pm25"
)

const (
	// maxFrameSize bounds both a single header scan and the largest frame
	// the scanner assembles.
	maxFrameSize = FrameLen
	// retryLimit is how many frame errors a single read tolerates before
	// giving up on the stream.
	retryLimit = 3
)

var ErrRetryExhausted = fmt.Errorf("plantower: no valid frame within the retry budget")

// scanState enumerates the phases of recovering one frame from a raw byte
// stream. The scanner never buffers more than one candidate and never
// rewinds: a rejected candidate costs its bytes.
type scanState uint8

const (
	stateSeekHeader scanState = iota
	stateConfirmHeader
	stateReadLength
	stateReadPayload
	stateValidate
)

// scanFrame consumes bytes from port until it has assembled one checksum
// valid frame in dst or exhausted the retry budget. len(dst) bounds the
// largest acceptable frame. An idle line burns through the scan budget one
// empty read at a time, so a silent sensor terminates the call instead of
// hanging it. Returns the assembled frame length; command responses are
// shorter than measurement frames.
func scanFrame(ctx context.Context, port pm25.SerialPort, retries int, dst []byte) (int, error) {
	state := stateSeekHeader
	errorCount := 0
	scanCount := 0
	payload := 0

	frameError := func() {
		errorCount++
		scanCount = 0
		state = stateSeekHeader
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if errorCount >= retries {
			return 0, fmt.Errorf("%w (%d frame errors)", ErrRetryExhausted, errorCount)
		}
		switch state {
		case stateSeekHeader:
			n, err := port.Read(ctx, dst[:1])
			if err != nil {
				return 0, fmt.Errorf("plantower: header scan: %w", err)
			}
			if n == 0 || dst[0] != headerHigh {
				scanCount++
				if scanCount > len(dst) {
					frameError()
				}
				continue
			}
			scanCount = 0
			state = stateConfirmHeader
		case stateConfirmHeader:
			n, err := port.Read(ctx, dst[1:2])
			if err != nil {
				return 0, fmt.Errorf("plantower: header confirm: %w", err)
			}
			if n == 0 || dst[1] != headerLow {
				// the candidate byte is consumed, not reused
				frameError()
				continue
			}
			state = stateReadLength
		case stateReadLength:
			n, err := port.Read(ctx, dst[2:4])
			if err != nil {
				return 0, fmt.Errorf("plantower: length read: %w", err)
			}
			if n < 2 {
				frameError()
				continue
			}
			payload = int(binary.BigEndian.Uint16(dst[2:4]))
			if payload == 0 || payload > len(dst)-4 {
				frameError()
				continue
			}
			state = stateReadPayload
		case stateReadPayload:
			n, err := port.Read(ctx, dst[4:4+payload])
			if err != nil {
				return 0, fmt.Errorf("plantower: payload read: %w", err)
			}
			if n < payload {
				frameError()
				continue
			}
			state = stateValidate
		case stateValidate:
			if !VerifyFrame(dst[:4+payload]) {
				frameError()
				continue
			}
			return 4 + payload, nil
		}
	}
}
