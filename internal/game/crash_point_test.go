package game

import (
	"math"
	"testing"
	"time"
)

func TestCrashPointFromDraw(t *testing.T) {
	tests := []struct {
		draw float64
		want float64
	}{
		{0, 1.00},
		{0.005, 1.00},
		{0.0099, 1.00},
		{0.5, 194.00},
		{0.75, 388.00},
		{0.01, 97.97},
		{0.99, MAX_CRASH_POINT},
		{1, MAX_CRASH_POINT},
	}

	for _, tt := range tests {
		if got := CrashPointFromDraw(tt.draw); got != tt.want {
			t.Errorf("CrashPointFromDraw(%v) = %v, want %v", tt.draw, got, tt.want)
		}
	}
}

func TestDrawFromSeed(t *testing.T) {
	a := DrawFromSeed("seed-a", "salt")
	if a != DrawFromSeed("seed-a", "salt") {
		t.Error("DrawFromSeed is not deterministic")
	}
	if a < 0 || a >= 1 {
		t.Errorf("draw %v out of [0,1)", a)
	}
	if a == DrawFromSeed("seed-a", "other-salt") {
		t.Error("salt does not change the draw")
	}
	if CrashPointFromSeed("seed-a", "salt") != CrashPointFromDraw(a) {
		t.Error("CrashPointFromSeed disagrees with CrashPointFromDraw")
	}
}

func TestMultiplierAt(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{0, 1},
		{-time.Second, 1},
		{6500 * time.Millisecond, 2},
		{13 * time.Second, 4},
	}
	for _, tt := range tests {
		if got := MultiplierAt(tt.elapsed); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("MultiplierAt(%v) = %v, want %v", tt.elapsed, got, tt.want)
		}
	}

	if d := TimeToMultiplier(2) - 6500*time.Millisecond; d > time.Microsecond || d < -time.Microsecond {
		t.Errorf("TimeToMultiplier(2) off by %v", d)
	}
	if TimeToMultiplier(1) != 0 {
		t.Error("TimeToMultiplier(1) should be zero")
	}
}

func TestFloorCents(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{1.999, 1.99},
		{2, 2},
		{1.005, 1},
		{194.0, 194},
	}
	for _, tt := range tests {
		if got := FloorCents(tt.in); got != tt.want {
			t.Errorf("FloorCents(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func BenchmarkCrashPointFromSeed(b *testing.B) {
	for i := 0; i < b.N; i++ {
		CrashPointFromSeed("benchmark-seed", "benchmark-salt")
	}
}
