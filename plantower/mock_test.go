package plantower

import (
	"context"
	"fmt"
	"testing"
)

func TestMockSensor_StaticValue(t *testing.T) {
	s := NewMockSensor(func(ctx context.Context) (Reading, error) {
		return Reading{PM25Std: 12, PM10Std: 20}, nil
	})
	ctx := context.Background()
	r, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.PM25Std != 12 {
		t.Errorf("expected 12, got %d", r.PM25Std)
	}
}

func TestMockSensor_Dynamic(t *testing.T) {
	val := uint16(8)
	s := NewMockSensor(func(ctx context.Context) (Reading, error) {
		return Reading{PM25Std: val}, nil
	})
	ctx := context.Background()

	r1, _ := s.Read(ctx)
	if r1.PM25Std != 8 {
		t.Errorf("expected 8, got %d", r1.PM25Std)
	}
	val = 35
	r2, _ := s.Read(ctx)
	if r2.PM25Std != 35 {
		t.Errorf("expected 35, got %d", r2.PM25Std)
	}
}

func TestMockSensor_Error(t *testing.T) {
	s := NewMockSensor(func(ctx context.Context) (Reading, error) {
		return Reading{}, fmt.Errorf("sensor error")
	})
	ctx := context.Background()
	_, err := s.Read(ctx)
	if err == nil || err.Error() != "sensor error" {
		t.Errorf("expected sensor error, got %v", err)
	}
	if _, ok := s.Last(); ok {
		t.Error("a failed read must not retain a reading")
	}
}

func TestMockSensor_Last(t *testing.T) {
	fail := false
	s := NewMockSensor(func(ctx context.Context) (Reading, error) {
		if fail {
			return Reading{}, fmt.Errorf("sensor error")
		}
		return Reading{PM25Std: 7}, nil
	})
	ctx := context.Background()

	if _, ok := s.Last(); ok {
		t.Error("nothing should be retained before the first read")
	}
	first, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fail = true
	if _, err := s.Read(ctx); err == nil {
		t.Fatal("expected the second read to fail")
	}
	last, ok := s.Last()
	if !ok || last != first {
		t.Errorf("expected retained reading %+v, got %+v (ok=%v)", first, last, ok)
	}
}

func TestMockSensor_ContextPropagation(t *testing.T) {
	var received context.Context
	s := NewMockSensor(func(ctx context.Context) (Reading, error) { received = ctx; return Reading{}, nil })
	type ctxKey string
	key := ctxKey("k")
	ctx := context.WithValue(context.Background(), key, "v")
	_, _ = s.Read(ctx)
	if received.Value(key) != "v" {
		t.Error("context was not propagated")
	}
}
