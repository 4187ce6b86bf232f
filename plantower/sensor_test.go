package plantower

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeTransport delivers packets from a behavior function, standing in for a
// register based bus. It tracks overlapping calls the same way the bus mocks
// do, so serialization can be asserted.
type fakeTransport struct {
	fill          func(ctx context.Context, buf []byte) error
	concurrentOps int64
	maxConcurrent int64
}

func (f *fakeTransport) FillPacket(ctx context.Context, buf []byte) error {
	concurrent := atomic.AddInt64(&f.concurrentOps, 1)
	if concurrent > atomic.LoadInt64(&f.maxConcurrent) {
		atomic.StoreInt64(&f.maxConcurrent, concurrent)
	}
	defer atomic.AddInt64(&f.concurrentOps, -1)
	return f.fill(ctx, buf)
}

// fakeCommandTransport adds a recorded control channel, standing in for a
// serial link.
type fakeCommandTransport struct {
	fakeTransport
	commands [][]byte
	flushes  int
	sendErr  error
}

func (f *fakeCommandTransport) SendCommand(_ context.Context, code []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	cp := make([]byte, len(code))
	copy(cp, code)
	f.commands = append(f.commands, cp)
	return nil
}

func (f *fakeCommandTransport) FlushInput(_ context.Context) error {
	f.flushes++
	return nil
}

// fakePin records the transitions driven onto a control line.
type fakePin struct {
	outputs int
	values  []bool
	err     error
}

func (p *fakePin) SetOutput(_ context.Context) error {
	if p.err != nil {
		return p.err
	}
	p.outputs++
	return nil
}

func (p *fakePin) SetValue(_ context.Context, high bool) error {
	if p.err != nil {
		return p.err
	}
	p.values = append(p.values, high)
	return nil
}

func frameFill(frame []byte) func(ctx context.Context, buf []byte) error {
	return func(_ context.Context, buf []byte) error {
		copy(buf, frame)
		return nil
	}
}

func testFrame() []byte {
	return buildDataFrame([12]uint16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
}

func TestNew_ResetSequence(t *testing.T) {
	pin := &fakePin{}
	transport := &fakeTransport{fill: frameFill(testFrame())}
	startup := 20 * time.Millisecond

	start := time.Now()
	_, err := New(context.Background(), transport,
		WithResetPin(pin),
		WithStartupDelay(startup),
	)
	elapsed := time.Since(start)

	assert.NoError(t, err)
	assert.Equal(t, 1, pin.outputs)
	assert.Equal(t, []bool{false, true}, pin.values, "reset must pulse low then settle high")
	assert.GreaterOrEqual(t, elapsed, resetPulse+startup-5*time.Millisecond, "construction should wait out the startup delay")
}

func TestNew_EnablePin(t *testing.T) {
	pin := &fakePin{}
	transport := &fakeTransport{fill: frameFill(testFrame())}

	_, err := New(context.Background(), transport, WithEnablePin(pin))

	assert.NoError(t, err)
	assert.Equal(t, 1, pin.outputs)
	assert.Equal(t, []bool{true}, pin.values, "enable line is driven active")
}

func TestNew_PinErrors(t *testing.T) {
	tests := []struct {
		name          string
		opt           func(*fakePin) Opt
		expectedError string
	}{
		{
			name:          "reset pin failure",
			opt:           func(p *fakePin) Opt { return WithResetPin(p) },
			expectedError: "reset pin setup",
		},
		{
			name:          "enable pin failure",
			opt:           func(p *fakePin) Opt { return WithEnablePin(p) },
			expectedError: "enable pin setup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pin := &fakePin{err: errors.New("gpio busy")}
			transport := &fakeTransport{fill: frameFill(testFrame())}

			_, err := New(context.Background(), transport, tt.opt(pin))

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
			assert.Contains(t, err.Error(), "gpio busy")
		})
	}
}

func TestNew_InvalidMode(t *testing.T) {
	transport := &fakeTransport{fill: frameFill(testFrame())}

	_, err := New(context.Background(), transport, WithMode(Mode(9)))

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Contains(t, err.Error(), "mode(9)")
}

func TestNew_PassiveNeedsCommandChannel(t *testing.T) {
	transport := &fakeTransport{fill: frameFill(testFrame())}

	_, err := New(context.Background(), transport, WithMode(ModePassive))

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Contains(t, err.Error(), "passive mode needs a command capable transport")
}

func TestNew_ModeSelection(t *testing.T) {
	tests := []struct {
		name     string
		mode     Mode
		expected []byte
	}{
		{name: "active", mode: ModeActive, expected: CmdModeActive},
		{name: "passive", mode: ModePassive, expected: CmdModePassive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeCommandTransport{fakeTransport: fakeTransport{fill: frameFill(testFrame())}}

			sensor, err := New(context.Background(), transport,
				WithMode(tt.mode),
				WithModeDelay(time.Millisecond),
			)

			assert.NoError(t, err)
			assert.Equal(t, [][]byte{tt.expected}, transport.commands)
			assert.Equal(t, 1, transport.flushes, "the mode acknowledgement gets discarded")
			assert.Equal(t, tt.mode, sensor.Mode())
		})
	}
}

func TestNew_ModeCommandError(t *testing.T) {
	transport := &fakeCommandTransport{sendErr: errors.New("port gone")}

	_, err := New(context.Background(), transport, WithModeDelay(time.Millisecond))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "active mode select")
	assert.Contains(t, err.Error(), "port gone")
}

func TestRead_ActiveTakesNextPacket(t *testing.T) {
	transport := &fakeCommandTransport{fakeTransport: fakeTransport{fill: frameFill(testFrame())}}
	sensor, err := New(context.Background(), transport, WithModeDelay(time.Millisecond))
	assert.NoError(t, err)

	r, err := sensor.Read(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, uint16(2), r.PM25Std)
	assert.Len(t, transport.commands, 1, "active reads must not write a read request")
}

func TestRead_FailureLeavesRetainedReading(t *testing.T) {
	calls := 0
	transport := &fakeTransport{fill: func(_ context.Context, buf []byte) error {
		calls++
		if calls == 1 {
			copy(buf, testFrame())
			return nil
		}
		copy(buf, corruptFrame())
		return nil
	}}
	sensor, err := New(context.Background(), transport)
	assert.NoError(t, err)

	_, ok := sensor.Last()
	assert.False(t, ok, "no reading retained before the first successful decode")

	first, err := sensor.Read(context.Background())
	assert.NoError(t, err)

	_, err = sensor.Read(context.Background())
	assert.ErrorIs(t, err, ErrBadChecksum)

	last, ok := sensor.Last()
	assert.True(t, ok)
	assert.Equal(t, first, last, "a failed read must not touch the retained reading")
}

func TestRead_TransportError(t *testing.T) {
	transport := &fakeTransport{fill: func(context.Context, []byte) error {
		return errors.New("bus stuck")
	}}
	sensor, err := New(context.Background(), transport)
	assert.NoError(t, err)

	_, err = sensor.Read(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bus stuck")
	_, ok := sensor.Last()
	assert.False(t, ok)
}

func TestSleepWake_Pin(t *testing.T) {
	pin := &fakePin{}
	transport := &fakeCommandTransport{fakeTransport: fakeTransport{fill: frameFill(testFrame())}}
	sensor, err := New(context.Background(), transport,
		WithEnablePin(pin),
		WithModeDelay(time.Millisecond),
	)
	assert.NoError(t, err)

	assert.NoError(t, sensor.Sleep(context.Background()))
	assert.NoError(t, sensor.Wake(context.Background()))

	assert.Equal(t, []bool{true, false, true}, pin.values)
	assert.Len(t, transport.commands, 1, "pin control must win over the command sub-protocol")
}

func TestSleep_Command(t *testing.T) {
	transport := &fakeCommandTransport{fakeTransport: fakeTransport{fill: frameFill(testFrame())}}
	sensor, err := New(context.Background(), transport,
		WithModeDelay(time.Millisecond),
		WithSleepDelay(time.Millisecond),
	)
	assert.NoError(t, err)

	err = sensor.Sleep(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, [][]byte{CmdModeActive, CmdSleep}, transport.commands)
}

func TestWake_CommandSchedulesSettle(t *testing.T) {
	delay := 50 * time.Millisecond
	transport := &fakeCommandTransport{fakeTransport: fakeTransport{fill: frameFill(testFrame())}}
	sensor, err := New(context.Background(), transport,
		WithModeDelay(time.Millisecond),
		WithWakeDelay(delay),
	)
	assert.NoError(t, err)

	start := time.Now()
	err = sensor.Wake(context.Background())
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), delay/2, "Wake should return quickly (settle runs async)")
	assert.Equal(t, CmdWake, transport.commands[1])

	start = time.Now()
	_, err = sensor.Read(context.Background())
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), delay-10*time.Millisecond, "the next read must wait out the wake settle")
}

func TestSleepWake_NoPowerControl(t *testing.T) {
	transport := &fakeTransport{fill: frameFill(testFrame())}
	sensor, err := New(context.Background(), transport)
	assert.NoError(t, err)

	assert.ErrorIs(t, sensor.Sleep(context.Background()), ErrNoPowerControl)
	assert.ErrorIs(t, sensor.Wake(context.Background()), ErrNoPowerControl)
}

func TestClose_WaitsForSettle(t *testing.T) {
	delay := 50 * time.Millisecond
	transport := &fakeCommandTransport{fakeTransport: fakeTransport{fill: frameFill(testFrame())}}
	sensor, err := New(context.Background(), transport,
		WithModeDelay(time.Millisecond),
		WithWakeDelay(delay),
	)
	assert.NoError(t, err)
	assert.NoError(t, sensor.Wake(context.Background()))

	start := time.Now()
	sensor.Close(context.Background())

	assert.GreaterOrEqual(t, time.Since(start), delay-10*time.Millisecond, "Close should wait for the settle")
}

func TestRead_ContextCancelledDuringSettle(t *testing.T) {
	transport := &fakeCommandTransport{fakeTransport: fakeTransport{fill: frameFill(testFrame())}}
	sensor, err := New(context.Background(), transport,
		WithModeDelay(time.Millisecond),
		WithWakeDelay(10*time.Second),
	)
	assert.NoError(t, err)
	assert.NoError(t, sensor.Wake(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err = sensor.Read(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "a cancelled read must not sit out the settle")
}

func TestSensor_SerializedOperations(t *testing.T) {
	transport := &fakeTransport{fill: func(_ context.Context, buf []byte) error {
		time.Sleep(2 * time.Millisecond)
		copy(buf, testFrame())
		return nil
	}}
	sensor, err := New(context.Background(), transport)
	assert.NoError(t, err)

	const numOps = 5
	var wg sync.WaitGroup
	wg.Add(numOps)
	for i := 0; i < numOps; i++ {
		go func() {
			defer wg.Done()
			_, err := sensor.Read(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&transport.maxConcurrent), int64(1), "reads must be serialized")
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "active", ModeActive.String())
	assert.Equal(t, "passive", ModePassive.String())
	assert.Equal(t, "mode(9)", Mode(9).String())
}
