package plantower

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildDataFrame assembles a valid 32 byte measurement frame carrying the
// given counters in wire order.
func buildDataFrame(fields [12]uint16) []byte {
	frame := make([]byte, FrameLen)
	frame[0] = headerHigh
	frame[1] = headerLow
	binary.BigEndian.PutUint16(frame[2:4], dataPayloadLen)
	for i, f := range fields {
		binary.BigEndian.PutUint16(frame[4+2*i:], f)
	}
	binary.BigEndian.PutUint16(frame[30:32], checksum(frame[:30]))
	return frame
}

func TestDecodeFrame_Ramp(t *testing.T) {
	frame := buildDataFrame([12]uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})

	r, err := DecodeFrame(frame)

	assert.NoError(t, err)
	assert.Equal(t, Reading{
		PM1Std:         1,
		PM25Std:        2,
		PM10Std:        3,
		PM1Env:         4,
		PM25Env:        5,
		PM10Env:        6,
		Particles03um:  7,
		Particles05um:  8,
		Particles10um:  9,
		Particles25um:  10,
		Particles50um:  11,
		Particles100um: 12,
	}, r)
}

// TestDecodeFrame_GoldenFrame pins the byte layout with a hand computed
// frame: big endian counters, reserved bytes 28..30 included in the checksum
// but absent from the reading.
func TestDecodeFrame_GoldenFrame(t *testing.T) {
	frame := []byte{
		0x42, 0x4D, 0x00, 0x1C,
		0x00, 0x0A, 0x00, 0x0F, 0x00, 0x11,
		0x00, 0x0A, 0x00, 0x0F, 0x00, 0x11,
		0x00, 0x2D, 0x00, 0x1E, 0x00, 0x0F,
		0x00, 0x05, 0x00, 0x03, 0x00, 0x01,
		0x91, 0x00,
		0x01, 0xF3,
	}

	r, err := DecodeFrame(frame)

	assert.NoError(t, err)
	assert.Equal(t, uint16(10), r.PM1Std)
	assert.Equal(t, uint16(15), r.PM25Std)
	assert.Equal(t, uint16(17), r.PM10Std)
	assert.Equal(t, uint16(10), r.PM1Env)
	assert.Equal(t, uint16(15), r.PM25Env)
	assert.Equal(t, uint16(17), r.PM10Env)
	assert.Equal(t, uint16(45), r.Particles03um)
	assert.Equal(t, uint16(30), r.Particles05um)
	assert.Equal(t, uint16(15), r.Particles10um)
	assert.Equal(t, uint16(5), r.Particles25um)
	assert.Equal(t, uint16(3), r.Particles50um)
	assert.Equal(t, uint16(1), r.Particles100um)
}

func TestDecodeFrame_ErrorCases(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func([]byte) []byte
		expected      error
		expectedError string
	}{
		{
			name:     "short buffer",
			mutate:   func(f []byte) []byte { return f[:31] },
			expected: ErrBadLength,
		},
		{
			name: "bad first header byte",
			mutate: func(f []byte) []byte {
				f[0] = 0x24
				return f
			},
			expected: ErrBadHeader,
		},
		{
			name: "bad second header byte",
			mutate: func(f []byte) []byte {
				f[1] = 0x00
				return f
			},
			expected: ErrBadHeader,
		},
		{
			name: "wrong declared length",
			mutate: func(f []byte) []byte {
				binary.BigEndian.PutUint16(f[2:4], 4)
				return f
			},
			expected:      ErrBadLength,
			expectedError: "declared payload of 4 bytes",
		},
		{
			name: "corrupted counter",
			mutate: func(f []byte) []byte {
				f[5] ^= 0xFF
				return f
			},
			expected: ErrBadChecksum,
		},
		{
			name: "corrupted checksum field",
			mutate: func(f []byte) []byte {
				f[31] ^= 0x01
				return f
			},
			expected: ErrBadChecksum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := buildDataFrame([12]uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
			frame = tt.mutate(frame)

			_, err := DecodeFrame(frame)

			assert.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
			if tt.expectedError != "" {
				assert.Contains(t, err.Error(), tt.expectedError)
			}
		})
	}
}

func TestDecodeFrame_Idempotent(t *testing.T) {
	frame := buildDataFrame([12]uint16{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100, 1200})

	first, err := DecodeFrame(frame)
	assert.NoError(t, err)
	second, err := DecodeFrame(frame)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestVerifyFrame(t *testing.T) {
	tests := []struct {
		name     string
		frame    []byte
		expected bool
	}{
		{
			name:     "valid measurement frame",
			frame:    buildDataFrame([12]uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}),
			expected: true,
		},
		{
			name:     "valid command response",
			frame:    []byte{0x42, 0x4D, 0x00, 0x04, 0xE1, 0x00, 0x01, 0x74},
			expected: true,
		},
		{
			name: "corrupted byte",
			frame: func() []byte {
				f := buildDataFrame([12]uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
				f[10] ^= 0x08
				return f
			}(),
			expected: false,
		},
		{
			name:     "too short",
			frame:    []byte{0x42, 0x4D},
			expected: false,
		},
		{
			name: "sum wraps past 16 bits",
			frame: func() []byte {
				f := make([]byte, 282)
				for i := range f[:280] {
					f[i] = 0xFF
				}
				// 280 * 0xFF = 71400, modulo 65536 leaves 0x16E8
				f[280] = 0x16
				f[281] = 0xE8
				return f
			}(),
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, VerifyFrame(tt.frame))
		})
	}
}
