package plantower

import (
	"encoding/binary"
	"fmt"
)

const (
	headerHigh byte = 0x42
	headerLow  byte = 0x4D

	// FrameLen is the full size of a measurement frame on the wire.
	FrameLen = 32

	// dataPayloadLen is the length a measurement frame declares at bytes 2..4:
	// everything after the 4 byte prologue, trailing checksum included.
	dataPayloadLen = 28
)

var (
	ErrBadHeader   = fmt.Errorf("plantower: frame does not start with 0x42 0x4D")
	ErrBadLength   = fmt.Errorf("plantower: unexpected frame length")
	ErrBadChecksum = fmt.Errorf("plantower: frame checksum mismatch")
)

// Reading is one decoded measurement set. The sensor reports two mass
// concentration series in µg/m³ (factory "standard particle" calibration and
// atmospheric environment compensation) plus particle counts per 0.1 L of air
// bucketed by minimum particle diameter. Counter names drop the decimal point
// the way the vendor tables do, so Particles03um counts particles above 0.3 µm.
type Reading struct {
	PM1Std  uint16 `yaml:"pm1_standard"`
	PM25Std uint16 `yaml:"pm25_standard"`
	PM10Std uint16 `yaml:"pm10_standard"`

	PM1Env  uint16 `yaml:"pm1_env"`
	PM25Env uint16 `yaml:"pm25_env"`
	PM10Env uint16 `yaml:"pm10_env"`

	Particles03um  uint16 `yaml:"particles_03um"`
	Particles05um  uint16 `yaml:"particles_05um"`
	Particles10um  uint16 `yaml:"particles_10um"`
	Particles25um  uint16 `yaml:"particles_25um"`
	Particles50um  uint16 `yaml:"particles_50um"`
	Particles100um uint16 `yaml:"particles_100um"`
}

// DecodeFrame validates a raw 32 byte measurement frame and extracts the
// twelve counters. Validation order: header, declared length, checksum.
// Bytes 28..30 are reserved on the wire and are not decoded.
func DecodeFrame(frame []byte) (Reading, error) {
	var r Reading
	if len(frame) != FrameLen {
		return r, fmt.Errorf("%w: got %d bytes, want %d", ErrBadLength, len(frame), FrameLen)
	}
	if frame[0] != headerHigh || frame[1] != headerLow {
		return r, ErrBadHeader
	}
	if declared := binary.BigEndian.Uint16(frame[2:4]); declared != dataPayloadLen {
		return r, fmt.Errorf("%w: declared payload of %d bytes, want %d", ErrBadLength, declared, dataPayloadLen)
	}
	sum := checksum(frame[:FrameLen-2])
	if claimed := binary.BigEndian.Uint16(frame[FrameLen-2:]); claimed != sum {
		return r, fmt.Errorf("%w: computed 0x%04X, frame carries 0x%04X", ErrBadChecksum, sum, claimed)
	}
	r.PM1Std = binary.BigEndian.Uint16(frame[4:6])
	r.PM25Std = binary.BigEndian.Uint16(frame[6:8])
	r.PM10Std = binary.BigEndian.Uint16(frame[8:10])
	r.PM1Env = binary.BigEndian.Uint16(frame[10:12])
	r.PM25Env = binary.BigEndian.Uint16(frame[12:14])
	r.PM10Env = binary.BigEndian.Uint16(frame[14:16])
	r.Particles03um = binary.BigEndian.Uint16(frame[16:18])
	r.Particles05um = binary.BigEndian.Uint16(frame[18:20])
	r.Particles10um = binary.BigEndian.Uint16(frame[20:22])
	r.Particles25um = binary.BigEndian.Uint16(frame[22:24])
	r.Particles50um = binary.BigEndian.Uint16(frame[24:26])
	r.Particles100um = binary.BigEndian.Uint16(frame[26:28])
	return r, nil
}

// VerifyFrame reports whether the last two bytes of frame carry the additive
// checksum of all preceding bytes. It works for any protocol frame with a
// trailing big endian checksum, measurement and command responses alike.
func VerifyFrame(frame []byte) bool {
	if len(frame) < 3 {
		return false
	}
	return binary.BigEndian.Uint16(frame[len(frame)-2:]) == checksum(frame[:len(frame)-2])
}

// checksum is the protocol wide 16 bit additive checksum, carry beyond
// 16 bits discarded.
func checksum(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	return sum
}
