package plantower

import (
	"encoding/binary"
	"fmt"
)

const (
	commandCodeLen = 3

	// CommandLen is the size of a command frame on the wire:
	// header, 3 byte control code, big endian checksum.
	CommandLen = 7
)

// Control codes understood by the UART capable sensors. Each code is a
// command byte followed by two parameter bytes.
var (
	CmdModePassive = []byte{0xE1, 0x00, 0x00}
	CmdModeActive  = []byte{0xE1, 0x00, 0x01}
	CmdRead        = []byte{0xE2, 0x00, 0x00}
	CmdSleep       = []byte{0xE4, 0x00, 0x00}
	CmdWake        = []byte{0xE4, 0x00, 0x01}
)

// BuildCommand frames a 3 byte control code with the protocol header and a
// checksum over the five bytes preceding it.
func BuildCommand(code []byte) ([]byte, error) {
	if len(code) != commandCodeLen {
		return nil, fmt.Errorf("plantower: control code must be %d bytes, got %d", commandCodeLen, len(code))
	}
	frame := make([]byte, CommandLen)
	frame[0] = headerHigh
	frame[1] = headerLow
	copy(frame[2:], code)
	binary.BigEndian.PutUint16(frame[CommandLen-2:], checksum(frame[:CommandLen-2]))
	return frame, nil
}
