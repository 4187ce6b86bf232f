package plantower

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockI2CBus is a mock implementation of pm25.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if args.Get(0) != nil {
		// Copy mock data to buffer if provided
		if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
			copy(buffer, data)
		}
	}
	return args.Error(1)
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestNewI2C_ProbeRetry(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return(nil, errors.New("remote I/O error")).Twice()
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return([]byte{0x42}, nil).Once()
	bus.On("Release", mock.Anything).Return(nil).Times(3)

	transport, err := NewI2C(context.Background(), bus, WithProbeBackoff(time.Millisecond))

	assert.NoError(t, err)
	assert.NotNil(t, transport)
	bus.AssertExpectations(t)
}

func TestNewI2C_DeviceNotFound(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return(nil, errors.New("remote I/O error")).Times(probeAttempts)
	bus.On("Release", mock.Anything).Return(nil).Times(probeAttempts)

	_, err := NewI2C(context.Background(), bus, WithProbeBackoff(time.Millisecond))

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Contains(t, err.Error(), "remote I/O error")
	bus.AssertExpectations(t)
}

func TestNewI2C_CustomAddress(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("ReadFromAddr", mock.Anything, byte(0x69), mock.Anything).
		Return([]byte{0x42}, nil).Once()
	bus.On("Release", mock.Anything).Return(nil).Once()

	_, err := NewI2C(context.Background(), bus, WithAddr(0x69), WithProbeBackoff(time.Millisecond))

	assert.NoError(t, err)
	bus.AssertExpectations(t)
}

func TestNewI2C_ContextCancelledDuringBackoff(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return(nil, errors.New("remote I/O error")).Once()
	bus.On("Release", mock.Anything).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewI2C(ctx, bus, WithProbeBackoff(10*time.Second))

	assert.ErrorIs(t, err, context.Canceled)
	bus.AssertExpectations(t)
}

func TestI2C_FillPacket(t *testing.T) {
	frame := buildDataFrame([12]uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	bus := new(MockI2CBus)
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return([]byte{0x42}, nil).Once()
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return(frame, nil).Once()
	bus.On("Release", mock.Anything).Return(nil).Times(2)

	transport, err := NewI2C(context.Background(), bus, WithProbeBackoff(time.Millisecond))
	assert.NoError(t, err)

	buf := make([]byte, FrameLen)
	err = transport.FillPacket(context.Background(), buf)

	assert.NoError(t, err)
	assert.Equal(t, frame, buf)
	bus.AssertExpectations(t)
}

// The bus is released no matter how the block read went.
func TestI2C_FillPacket_ReleaseOnError(t *testing.T) {
	bus := new(MockI2CBus)
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return([]byte{0x42}, nil).Once()
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return(nil, errors.New("bus stuck")).Once()
	bus.On("Release", mock.Anything).Return(nil).Times(2)

	transport, err := NewI2C(context.Background(), bus, WithProbeBackoff(time.Millisecond))
	assert.NoError(t, err)

	err = transport.FillPacket(context.Background(), make([]byte, FrameLen))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "register block read")
	assert.Contains(t, err.Error(), "bus stuck")
	bus.AssertExpectations(t)
}

func TestI2C_FillPacket_ReleaseFailure(t *testing.T) {
	frame := buildDataFrame([12]uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	bus := new(MockI2CBus)
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return([]byte{0x42}, nil).Once()
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return(frame, nil).Once()
	bus.On("Release", mock.Anything).Return(nil).Once()
	bus.On("Release", mock.Anything).Return(errors.New("release refused")).Once()

	transport, err := NewI2C(context.Background(), bus, WithProbeBackoff(time.Millisecond))
	assert.NoError(t, err)

	err = transport.FillPacket(context.Background(), make([]byte, FrameLen))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "release refused")
	bus.AssertExpectations(t)
}

// TestI2C_SensorRead drives the register based path end to end through the
// driver: no command channel, one block read per measurement.
func TestI2C_SensorRead(t *testing.T) {
	frame := buildDataFrame([12]uint16{3, 5, 8, 3, 5, 8, 90, 60, 30, 10, 4, 2})
	bus := new(MockI2CBus)
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return([]byte{0x42}, nil).Once()
	bus.On("ReadFromAddr", mock.Anything, DefaultI2CAddr, mock.Anything).
		Return(frame, nil).Once()
	bus.On("Release", mock.Anything).Return(nil).Times(2)

	transport, err := NewI2C(context.Background(), bus, WithProbeBackoff(time.Millisecond))
	assert.NoError(t, err)

	sensor, err := New(context.Background(), transport)
	assert.NoError(t, err)

	r, err := sensor.Read(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, uint16(5), r.PM25Std)
	assert.Equal(t, uint16(90), r.Particles03um)
	bus.AssertExpectations(t)
}
