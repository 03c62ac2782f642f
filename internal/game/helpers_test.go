package game

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"casinolab/internal/rng"
)

// scriptedSource replays fixed draws. It fails like a dead entropy source
// once a script runs out.
type scriptedSource struct {
	mu     sync.Mutex
	ints   []int
	floats []float64
	fail   bool
}

func (s *scriptedSource) Int(min, max int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail || len(s.ints) == 0 {
		return 0, rng.ErrEntropyUnavailable
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v < min || v >= max {
		return 0, rng.ErrInvalidRange
	}
	return v, nil
}

func (s *scriptedSource) Float01() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail || len(s.floats) == 0 {
		return 0, rng.ErrEntropyUnavailable
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v, nil
}

func (s *scriptedSource) Bytes(n int) ([]byte, error) {
	if s.fail {
		return nil, rng.ErrEntropyUnavailable
	}
	return rng.New().Bytes(n)
}

func intPtr(v int) *int { return &v }

// fakeTransport records frames written to a connection.
type fakeTransport struct {
	mu       sync.Mutex
	frames   chan []byte
	failNext bool
	closed   bool
	block    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{frames: make(chan []byte, 1024)}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	fail := f.failNext
	f.mu.Unlock()
	if fail {
		return errors.New("broken pipe")
	}
	f.frames <- data
	return nil
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// next waits for the next frame of the given type and returns its data.
func (f *fakeTransport) next(t *testing.T, msgType string) json.RawMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-f.frames:
			var env struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("bad frame %s: %v", raw, err)
			}
			if env.Type == msgType {
				return env.Data
			}
		case <-deadline:
			t.Fatalf("no %s frame within 2s", msgType)
			return nil
		}
	}
}

// none asserts no frame of msgType arrives within d.
func (f *fakeTransport) none(t *testing.T, msgType string, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case raw := <-f.frames:
			var env struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal(raw, &env)
			if env.Type == msgType {
				t.Fatalf("unexpected %s frame: %s", msgType, raw)
			}
		case <-deadline:
			return
		}
	}
}

// recordingHub captures broadcasts from the manager.
type recordingHub struct {
	mu   sync.Mutex
	msgs []Outbound
}

func (r *recordingHub) Broadcast(msg Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingHub) count(msgType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.Type() == msgType {
			n++
		}
	}
	return n
}

// fixedRounds commits every round to the same crash point.
type fixedRounds struct {
	mu         sync.Mutex
	crashPoint float64
	fail       bool
	issued     []RoundCommit
	revealed   []string
}

func (f *fixedRounds) NextRound(roundID string) (RoundCommit, *SaltReveal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return RoundCommit{}, nil, rng.ErrEntropyUnavailable
	}
	seed, _ := GenerateSeed(rng.New())
	c := RoundCommit{
		RoundID:        roundID,
		Seed:           seed,
		Commitment:     Commitment(seed),
		SaltCommitment: SaltCommitment("test-salt"),
		CrashPoint:     f.crashPoint,
	}
	f.issued = append(f.issued, c)
	return c, nil, nil
}

func (f *fixedRounds) Reveal(c RoundCommit, crashedAt time.Time) RoundProof {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revealed = append(f.revealed, c.RoundID)
	return RoundProof{RoundID: c.RoundID, Commitment: c.Commitment, Seed: c.Seed, SaltCommitment: c.SaltCommitment, CrashPoint: c.CrashPoint, CrashedAt: crashedAt}
}

func (f *fixedRounds) issuedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.issued)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fastClock runs factor times faster than the wall clock.
func fastClock(factor int) func() time.Time {
	start := time.Now()
	return func() time.Time {
		return start.Add(time.Since(start) * time.Duration(factor))
	}
}
