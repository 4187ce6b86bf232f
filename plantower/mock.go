package plantower

import (
	"context"
	"sync"
)

// ReadingBehaviorFunc defines the function signature for measurement behavior.
// It returns a full reading or an error.
type ReadingBehaviorFunc func(ctx context.Context) (Reading, error)

// MockSensor is a mock implementation of a particulate matter sensor that
// uses a behavior function to produce readings without requiring any
// hardware. It mirrors the read surface of Sensor, so application code can
// depend on a small interface satisfied by both.
type MockSensor struct {
	mx           sync.Mutex
	readBehavior ReadingBehaviorFunc
	reading      Reading
	haveRead     bool
}

// NewMockSensor creates a new mock sensor with the given behavior function.
//
// Example usage:
//
//	// Static clean air
//	sensor := NewMockSensor(func(ctx context.Context) (plantower.Reading, error) {
//		return plantower.Reading{PM25Std: 3, PM10Std: 5}, nil
//	})
func NewMockSensor(readBehavior ReadingBehaviorFunc) *MockSensor {
	return &MockSensor{readBehavior: readBehavior}
}

// Read returns the next reading by calling the behavior function. Like the
// real driver it retains the reading only when the behavior succeeds.
func (m *MockSensor) Read(ctx context.Context) (Reading, error) {
	r, err := m.readBehavior(ctx)
	if err != nil {
		return Reading{}, err
	}
	m.mx.Lock()
	m.reading = r
	m.haveRead = true
	m.mx.Unlock()
	return r, nil
}

// Last returns the most recent successful reading, if any.
func (m *MockSensor) Last() (Reading, bool) {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.reading, m.haveRead
}
