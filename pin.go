package pm25

import "context"

// DigitalPin is a single output line, typically wired to a sensor reset or
// enable (SET) input. SetOutput configures the line as an output driven low.
type DigitalPin interface {
	SetOutput(ctx context.Context) error
	SetValue(ctx context.Context, high bool) error
}
