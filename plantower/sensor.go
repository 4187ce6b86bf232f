package plantower

import (
	"context"
	"fmt"
	"sync"
	"time"

	pm25 "github.com/mklimuk/pm25"
)

// Mode selects how a UART sensor hands out measurements. An active sensor
// streams a frame roughly once a second; a passive one answers read
// requests. Register based (I2C) sensors always behave like active ones.
type Mode uint8

const (
	ModeActive Mode = iota
	ModePassive
)

func (m Mode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModePassive:
		return "passive"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

var (
	ErrInvalidMode    = fmt.Errorf("plantower: invalid acquisition mode")
	ErrNoPowerControl = fmt.Errorf("plantower: no enable pin and no command capable transport")
)

// Transport hands the driver raw measurement packets.
type Transport interface {
	// FillPacket assembles the next raw packet into buf (FrameLen bytes).
	FillPacket(ctx context.Context, buf []byte) error
}

// CommandTransport is implemented by transports with a writable control
// channel (UART). Register based transports have none.
type CommandTransport interface {
	SendCommand(ctx context.Context, code []byte) error
	FlushInput(ctx context.Context) error
}

// resetPulse is how long the reset line is held low.
const resetPulse = 10 * time.Millisecond

type Opts struct {
	Mode      Mode
	ResetPin  pm25.DigitalPin
	EnablePin pm25.DigitalPin

	StartupDelay time.Duration
	ModeDelay    time.Duration
	SleepDelay   time.Duration
	WakeDelay    time.Duration
}

type Opt func(*Opts)

func WithMode(mode Mode) Opt {
	return func(o *Opts) {
		o.Mode = mode
	}
}

// WithResetPin wires the sensor RESET line; construction pulses it low and
// waits out the startup delay.
func WithResetPin(pin pm25.DigitalPin) Opt {
	return func(o *Opts) {
		o.ResetPin = pin
	}
}

// WithEnablePin wires the sensor SET line, which gives instantaneous
// Sleep/Wake without the command sub-protocol.
func WithEnablePin(pin pm25.DigitalPin) Opt {
	return func(o *Opts) {
		o.EnablePin = pin
	}
}

func WithStartupDelay(delay time.Duration) Opt {
	return func(o *Opts) {
		o.StartupDelay = delay
	}
}

func WithModeDelay(delay time.Duration) Opt {
	return func(o *Opts) {
		o.ModeDelay = delay
	}
}

func WithSleepDelay(delay time.Duration) Opt {
	return func(o *Opts) {
		o.SleepDelay = delay
	}
}

func WithWakeDelay(delay time.Duration) Opt {
	return func(o *Opts) {
		o.WakeDelay = delay
	}
}

// Sensor drives a Plantower particulate matter sensor over any Transport.
// Typical usage:
//
//	port, _ := uart.Open("/dev/ttyAMA0")
//	s, err := plantower.New(ctx, plantower.NewUART(port), plantower.WithMode(plantower.ModePassive))
//	r, err := s.Read(ctx)
//
// Construction pulses the reset line when one is configured and applies the
// acquisition mode. The retained reading is owned by the sensor: Read
// returns a copy, replaces the retained one only on full success and leaves
// it untouched on any failure.
//
// Note: a sensor woken by command needs about three seconds before it serves
// valid frames and sends no confirmation; the settle runs in the background
// and the next operation waits it out.
type Sensor struct {
	mx        sync.Mutex
	delayDone chan struct{} // closed when the settle after the last operation completes
	delayMx   sync.Mutex    // protects delayDone channel

	config Opts

	transport Transport
	reading   Reading
	haveRead  bool
}

func New(ctx context.Context, transport Transport, opts ...Opt) (*Sensor, error) {
	config := Opts{
		Mode:         ModeActive,
		StartupDelay: time.Second,
		ModeDelay:    time.Second,
		SleepDelay:   500 * time.Millisecond,
		WakeDelay:    3 * time.Second,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Mode != ModeActive && config.Mode != ModePassive {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, config.Mode)
	}
	// Create a closed channel so first operation can proceed immediately
	ch := make(chan struct{})
	close(ch)
	s := &Sensor{
		config:    config,
		transport: transport,
		delayDone: ch,
	}
	if err := s.resetSequence(ctx); err != nil {
		return nil, err
	}
	if err := s.applyMode(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// resetSequence pulses RESET low and drives SET high. The low pulse is
// short; the startup delay afterwards covers the fan spin-up.
func (s *Sensor) resetSequence(ctx context.Context) error {
	if pin := s.config.ResetPin; pin != nil {
		if err := pin.SetOutput(ctx); err != nil {
			return fmt.Errorf("plantower: reset pin setup: %w", err)
		}
		if err := pin.SetValue(ctx, false); err != nil {
			return fmt.Errorf("plantower: reset assert: %w", err)
		}
		if err := wait(ctx, resetPulse); err != nil {
			return err
		}
		if err := pin.SetValue(ctx, true); err != nil {
			return fmt.Errorf("plantower: reset release: %w", err)
		}
		if err := wait(ctx, s.config.StartupDelay); err != nil {
			return err
		}
	}
	if pin := s.config.EnablePin; pin != nil {
		if err := pin.SetOutput(ctx); err != nil {
			return fmt.Errorf("plantower: enable pin setup: %w", err)
		}
		if err := pin.SetValue(ctx, true); err != nil {
			return fmt.Errorf("plantower: enable assert: %w", err)
		}
	}
	return nil
}

func (s *Sensor) applyMode(ctx context.Context) error {
	ct, ok := s.transport.(CommandTransport)
	if !ok {
		if s.config.Mode == ModePassive {
			return fmt.Errorf("%w: passive mode needs a command capable transport", ErrInvalidMode)
		}
		return nil
	}
	code := CmdModeActive
	if s.config.Mode == ModePassive {
		code = CmdModePassive
	}
	if err := ct.SendCommand(ctx, code); err != nil {
		return fmt.Errorf("plantower: %s mode select: %w", s.config.Mode, err)
	}
	if err := wait(ctx, s.config.ModeDelay); err != nil {
		return err
	}
	// the mode change acknowledgement is discarded, not parsed
	if err := ct.FlushInput(ctx); err != nil {
		return fmt.Errorf("plantower: post mode flush: %w", err)
	}
	return nil
}

// waitForDelay waits for any pending settle delay from previous operations to complete.
func (s *Sensor) waitForDelay(ctx context.Context) error {
	s.delayMx.Lock()
	ch := s.delayDone
	s.delayMx.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scheduleDelay schedules a settle delay in a goroutine and updates delayDone when complete.
func (s *Sensor) scheduleDelay(ctx context.Context, duration time.Duration) {
	s.delayMx.Lock()
	ch := make(chan struct{})
	s.delayDone = ch
	s.delayMx.Unlock()

	go func() {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-timer.C:
			close(ch)
		case <-ctx.Done():
			close(ch)
		}
	}()
}

func (s *Sensor) Close(ctx context.Context) {
	// Wait for any pending settle to complete
	_ = s.waitForDelay(ctx)
}

// Mode reports the configured acquisition mode.
func (s *Sensor) Mode() Mode {
	return s.config.Mode
}

// Read acquires, validates and decodes one measurement frame. In passive
// mode a read request is written first; in active mode and over I2C the
// next packet is taken as is.
func (s *Sensor) Read(ctx context.Context) (Reading, error) {
	if err := s.waitForDelay(ctx); err != nil {
		return Reading{}, err
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	if s.config.Mode == ModePassive {
		ct := s.transport.(CommandTransport)
		if err := ct.SendCommand(ctx, CmdRead); err != nil {
			return Reading{}, fmt.Errorf("plantower: read request: %w", err)
		}
	}
	var buf [FrameLen]byte
	if err := s.transport.FillPacket(ctx, buf[:]); err != nil {
		return Reading{}, err
	}
	r, err := DecodeFrame(buf[:])
	if err != nil {
		return Reading{}, err
	}
	s.reading = r
	s.haveRead = true
	return r, nil
}

// Last returns the most recent successful reading, if any.
func (s *Sensor) Last() (Reading, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.reading, s.haveRead
}

// Sleep stops the fan and the laser. With an enable pin the cut is
// immediate; by command the device takes a moment to wind down, so a short
// settle is scheduled.
func (s *Sensor) Sleep(ctx context.Context) error {
	if err := s.waitForDelay(ctx); err != nil {
		return err
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	if pin := s.config.EnablePin; pin != nil {
		if err := pin.SetValue(ctx, false); err != nil {
			return fmt.Errorf("plantower: enable pin clear: %w", err)
		}
		return nil
	}
	ct, ok := s.transport.(CommandTransport)
	if !ok {
		return ErrNoPowerControl
	}
	if err := ct.SendCommand(ctx, CmdSleep); err != nil {
		return fmt.Errorf("plantower: sleep command: %w", err)
	}
	s.scheduleDelay(ctx, s.config.SleepDelay)
	return nil
}

// Wake restarts the fan and the laser. Waking by pin is immediate; waking
// by command yields no confirmation and the device needs the wake delay
// before it serves valid frames, so the settle runs asynchronously and the
// next operation waits for it.
func (s *Sensor) Wake(ctx context.Context) error {
	if err := s.waitForDelay(ctx); err != nil {
		return err
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	if pin := s.config.EnablePin; pin != nil {
		if err := pin.SetValue(ctx, true); err != nil {
			return fmt.Errorf("plantower: enable pin set: %w", err)
		}
		return nil
	}
	ct, ok := s.transport.(CommandTransport)
	if !ok {
		return ErrNoPowerControl
	}
	if err := ct.SendCommand(ctx, CmdWake); err != nil {
		return fmt.Errorf("plantower: wake command: %w", err)
	}
	s.scheduleDelay(ctx, s.config.WakeDelay)
	return nil
}

// wait blocks for the given duration unless the context ends first.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
