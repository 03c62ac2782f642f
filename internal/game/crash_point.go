package game

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"time"

	"casinolab/internal/rng"
)

const (
	MIN_MULTIPLIER    = 1.00
	MAX_CRASH_POINT   = 1000.00
	CRASH_HOUSE_EDGE  = 0.03
	INSTANT_BUST_MASS = 0.01
	DOUBLING_SECONDS  = 6.5
)

// GrowthRate is the per-second multiplier growth, 2^(1/6.5).
var GrowthRate = math.Pow(2, 1/DOUBLING_SECONDS)

// CrashPointFromDraw maps a uniform draw in [0,1) to a crash point.
func CrashPointFromDraw(draw float64) float64 {
	if draw < INSTANT_BUST_MASS {
		return MIN_MULTIPLIER
	}
	if draw >= 1 {
		return MAX_CRASH_POINT
	}
	// the epsilon keeps exact products such as 19400 from flooring to 19399
	cp := math.Floor((1-CRASH_HOUSE_EDGE)*100/(1-draw)*100+1e-9) / 100
	return math.Min(cp, MAX_CRASH_POINT)
}

// DrawFromSeed is HMAC-SHA256(key=salt, msg=seed) with the first four bytes
// read as a big-endian uint32 over 2^32.
func DrawFromSeed(seed, salt string) float64 {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(seed))
	sum := mac.Sum(nil)
	return float64(binary.BigEndian.Uint32(sum[:4])) / (1 << 32)
}

func CrashPointFromSeed(seed, salt string) float64 {
	return CrashPointFromDraw(DrawFromSeed(seed, salt))
}

// RandomCrashPoint is the unverifiable variant, drawn straight from src.
func RandomCrashPoint(src rng.Source) (float64, float64, error) {
	draw, err := src.Float01()
	if err != nil {
		return 0, 0, err
	}
	return CrashPointFromDraw(draw), draw, nil
}

// MultiplierAt is the raw, unrounded multiplier after elapsed running time.
func MultiplierAt(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return MIN_MULTIPLIER
	}
	return math.Pow(GrowthRate, elapsed.Seconds())
}

// TimeToMultiplier is the inverse of MultiplierAt.
func TimeToMultiplier(m float64) time.Duration {
	if m <= MIN_MULTIPLIER {
		return 0
	}
	return time.Duration(DOUBLING_SECONDS * math.Log2(m) * float64(time.Second))
}

func FloorCents(v float64) float64 {
	return math.Floor(v*100+1e-9) / 100
}

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
