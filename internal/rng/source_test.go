package rng

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestByteCount(t *testing.T) {
	tests := []struct {
		span uint64
		want int
	}{
		{span: 1, want: 1},
		{span: 37, want: 1},
		{span: 256, want: 1},
		{span: 257, want: 2},
		{span: 65536, want: 2},
		{span: 65537, want: 3},
		{span: 1 << 32, want: 4},
	}

	for _, tt := range tests {
		if got := ByteCount(tt.span); got != tt.want {
			t.Errorf("ByteCount(%d) = %d, want %d", tt.span, got, tt.want)
		}
	}
}

func TestRejectionLimit(t *testing.T) {
	// 256 % 200 = 56, so every draw from 200 up is in the biased tail
	if got := RejectionLimit(1, 200); got != 200 {
		t.Errorf("RejectionLimit(1, 200) = %d, want 200", got)
	}
	if got := RejectionLimit(1, 37); got != 222 {
		t.Errorf("RejectionLimit(1, 37) = %d, want 222", got)
	}
	if got := RejectionLimit(1, 128); got != 256 {
		t.Errorf("RejectionLimit(1, 128) = %d, want 256", got)
	}
}

func TestCrypto_IntRejectsBiasedTail(t *testing.T) {
	t.Run("rejects then accepts", func(t *testing.T) {
		src := NewFromReader(bytes.NewReader([]byte{250, 230, 10}))
		got, err := src.Int(0, 200)
		if err != nil {
			t.Fatalf("Int() error = %v", err)
		}
		if got != 10 {
			t.Errorf("Int() = %d, want 10 (250 and 230 must be rejected)", got)
		}
	})

	t.Run("offsets by min", func(t *testing.T) {
		src := NewFromReader(bytes.NewReader([]byte{49}))
		got, err := src.Int(1, 101)
		if err != nil {
			t.Fatalf("Int() error = %v", err)
		}
		if got != 50 {
			t.Errorf("Int() = %d, want 50", got)
		}
	})

	t.Run("multi byte draw", func(t *testing.T) {
		src := NewFromReader(bytes.NewReader([]byte{0x01, 0x00}))
		got, err := src.Int(0, 1000)
		if err != nil {
			t.Fatalf("Int() error = %v", err)
		}
		if got != 256 {
			t.Errorf("Int() = %d, want 256", got)
		}
	})
}

func TestCrypto_IntErrors(t *testing.T) {
	src := New()

	if _, err := src.Int(5, 5); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Int(5, 5) error = %v, want ErrInvalidRange", err)
	}
	if _, err := src.Int(0, math.MaxInt64); !errors.Is(err, ErrRangeTooLarge) {
		t.Errorf("Int(0, MaxInt64) error = %v, want ErrRangeTooLarge", err)
	}

	exhausted := NewFromReader(bytes.NewReader([]byte{255, 255}))
	if _, err := exhausted.Int(0, 200); !errors.Is(err, ErrEntropyUnavailable) {
		t.Errorf("exhausted Int() error = %v, want ErrEntropyUnavailable", err)
	}
	if _, err := exhausted.Float01(); !errors.Is(err, ErrEntropyUnavailable) {
		t.Errorf("exhausted Float01() error = %v, want ErrEntropyUnavailable", err)
	}
}

func TestCrypto_Float01(t *testing.T) {
	tests := []struct {
		name  string
		bytes []byte
		want  float64
	}{
		{name: "zero", bytes: []byte{0, 0, 0, 0}, want: 0},
		{name: "max", bytes: []byte{0xff, 0xff, 0xff, 0xff}, want: 1},
		{name: "half", bytes: []byte{0x7f, 0xff, 0xff, 0xff}, want: float64(0x7fffffff) / math.MaxUint32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewFromReader(bytes.NewReader(tt.bytes)).Float01()
			if err != nil {
				t.Fatalf("Float01() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Float01() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCrypto_IntUniform(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}

	// 200 values from one byte: a plain modulo would make 0..55 twice as likely
	const (
		span  = 200
		draws = 200_000
	)
	src := New()
	counts := make([]int, span)
	for i := 0; i < draws; i++ {
		v, err := src.Int(0, span)
		if err != nil {
			t.Fatalf("Int() error = %v", err)
		}
		if v < 0 || v >= span {
			t.Fatalf("Int() = %d out of range", v)
		}
		counts[v]++
	}

	low, high := 0, 0
	for v, c := range counts {
		if v < 56 {
			low += c
		} else {
			high += c
		}
	}
	lowMean := float64(low) / 56
	highMean := float64(high) / (span - 56)
	ratio := lowMean / highMean
	if ratio < 0.95 || ratio > 1.05 {
		t.Errorf("low/high frequency ratio = %.3f, want ~1.0", ratio)
	}

	expected := float64(draws) / span
	var chi float64
	for _, c := range counts {
		d := float64(c) - expected
		chi += d * d / expected
	}
	// 199 degrees of freedom, p=0.0001 critical value is ~285
	if chi > 285 {
		t.Errorf("chi-square = %.1f, distribution looks non-uniform", chi)
	}
}

func TestCrypto_Bytes(t *testing.T) {
	src := New()
	a, err := src.Bytes(32)
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	b, _ := src.Bytes(32)
	if len(a) != 32 {
		t.Errorf("len(Bytes(32)) = %d", len(a))
	}
	if bytes.Equal(a, b) {
		t.Error("two 32 byte draws were identical")
	}
}

func BenchmarkCrypto_Int(b *testing.B) {
	src := New()
	for i := 0; i < b.N; i++ {
		_, _ = src.Int(0, 37)
	}
}
