package rng

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const maxByteCount = 7

var (
	ErrEntropyUnavailable = errors.New("rng: entropy source unavailable")
	ErrInvalidRange       = errors.New("rng: max must be greater than min")
	ErrRangeTooLarge      = errors.New("rng: range too large")
)

// Source is the only randomness the game engines are allowed to use.
type Source interface {
	// Int returns a uniformly distributed integer in [min, max).
	Int(min, max int) (int, error)
	// Float01 returns a float in [0, 1] built from 32 random bits.
	Float01() (float64, error)
	// Bytes returns n raw random bytes.
	Bytes(n int) ([]byte, error)
}

// Crypto draws from a cryptographically secure reader. A failing reader is
// reported as ErrEntropyUnavailable, there is no fallback generator.
type Crypto struct {
	reader io.Reader
}

// New returns a Source backed by crypto/rand.
func New() *Crypto {
	return &Crypto{reader: rand.Reader}
}

// NewFromReader returns a Source reading from r. Used by tests to script draws.
func NewFromReader(r io.Reader) *Crypto {
	return &Crypto{reader: r}
}

func (c *Crypto) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(c.reader, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return b, nil
}

// Int uses rejection sampling: it reads the smallest number of bytes that
// covers the range and discards draws in the biased tail
// (draw >= maxValue - maxValue%span) until one is accepted.
func (c *Crypto) Int(min, max int) (int, error) {
	if max <= min {
		return 0, ErrInvalidRange
	}
	span := uint64(max - min)

	byteCount := ByteCount(span)
	if byteCount > maxByteCount {
		return 0, ErrRangeTooLarge
	}
	limit := RejectionLimit(byteCount, span)

	buf := make([]byte, 8)
	for {
		if _, err := io.ReadFull(c.reader, buf[8-byteCount:]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
		}
		draw := binary.BigEndian.Uint64(buf)
		if draw >= limit {
			continue
		}
		return min + int(draw%span), nil
	}
}

func (c *Crypto) Float01() (float64, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.reader, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return float64(binary.BigEndian.Uint32(buf[:])) / math.MaxUint32, nil
}

// ByteCount is the smallest number of bytes whose value space covers span.
func ByteCount(span uint64) int {
	n := 1
	for n < 8 && span > uint64(1)<<(8*n) {
		n++
	}
	return n
}

// RejectionLimit returns the first draw value that must be rejected for a
// draw of byteCount bytes over span. byteCount must be at most 7.
func RejectionLimit(byteCount int, span uint64) uint64 {
	maxValue := uint64(1) << (8 * byteCount)
	return maxValue - maxValue%span
}
