package game

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"casinolab/internal/rng"
)

const (
	SEED_BYTES        = 32
	COMMITMENT_SUFFIX = "next"
)

// Commitment is the hash published before a round starts: SHA-256(seed || "next").
func Commitment(seed string) string {
	sum := sha256.Sum256([]byte(seed + COMMITMENT_SUFFIX))
	return hex.EncodeToString(sum[:])
}

// SaltCommitment identifies a server salt without revealing it.
func SaltCommitment(salt string) string {
	sum := sha256.Sum256([]byte(salt))
	return hex.EncodeToString(sum[:])
}

// GenerateSeed returns 32 random bytes as hex.
func GenerateSeed(src rng.Source) (string, error) {
	b, err := src.Bytes(SEED_BYTES)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RoundCommit is what the crash loop needs to run one round. Seed and salt
// stay on the server until the round has crashed.
type RoundCommit struct {
	RoundID        string
	Seed           string
	Commitment     string
	SaltCommitment string
	CrashPoint     float64
}

type RoundProof struct {
	RoundID        string    `json:"round_id"`
	Commitment     string    `json:"commitment"`
	Seed           string    `json:"seed"`
	SaltCommitment string    `json:"salt_commitment"`
	Salt           string    `json:"salt,omitempty"`
	CrashPoint     float64   `json:"crash_point"`
	CrashedAt      time.Time `json:"crashed_at"`
}

type Verification struct {
	CommitmentValid     bool    `json:"commitment_valid"`
	SaltCommitmentValid bool    `json:"salt_commitment_valid"`
	CrashPoint          float64 `json:"crash_point"`
	CrashPointValid     bool    `json:"crash_point_valid"`
}

// VerifyRound recomputes a round from its revealed seed and salt. Empty
// commitments are not checked.
func VerifyRound(seed, salt, commitment, saltCommitment string, claimed float64) Verification {
	v := Verification{
		CommitmentValid:     commitment == "" || Commitment(seed) == commitment,
		SaltCommitmentValid: saltCommitment == "" || SaltCommitment(salt) == saltCommitment,
		CrashPoint:          CrashPointFromSeed(seed, salt),
	}
	v.CrashPointValid = math.Abs(v.CrashPoint-claimed) < 0.005
	return v
}

func (v Verification) Valid() bool {
	return v.CommitmentValid && v.SaltCommitmentValid && v.CrashPointValid
}

type saltEpoch struct {
	salt        string
	commitment  string
	activatedAt time.Time
	rounds      int
}

// FairnessLedger owns the server salt and the proofs of finished rounds.
// The salt is rotated every rotateEvery rounds and revealed once retired.
type FairnessLedger struct {
	mu          sync.Mutex
	src         rng.Source
	rotateEvery int
	current     *saltEpoch
	reveals     []SaltReveal
	revealed    map[string]string
	proofs      *lru.Cache[string, RoundProof]
	now         func() time.Time
}

func NewFairnessLedger(src rng.Source, rotateEvery, cacheSize int) (*FairnessLedger, error) {
	if rotateEvery <= 0 {
		return nil, fmt.Errorf("salt rotation must be positive, got %d", rotateEvery)
	}
	cache, err := lru.New[string, RoundProof](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("proof cache: %w", err)
	}
	return &FairnessLedger{
		src:         src,
		rotateEvery: rotateEvery,
		revealed:    make(map[string]string),
		proofs:      cache,
		now:         time.Now,
	}, nil
}

// NextRound draws a fresh seed under the current salt. When the salt has
// served its rounds it is retired first and its reveal is returned.
func (f *FairnessLedger) NextRound(roundID string) (RoundCommit, *SaltReveal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var reveal *SaltReveal
	if f.current != nil && f.current.rounds >= f.rotateEvery {
		r := f.retireLocked()
		reveal = &r
	}
	if f.current == nil {
		salt, err := GenerateSeed(f.src)
		if err != nil {
			return RoundCommit{}, reveal, err
		}
		f.current = &saltEpoch{salt: salt, commitment: SaltCommitment(salt), activatedAt: f.now()}
		log.Printf("[FAIR] New salt epoch %s...", f.current.commitment[:16])
	}

	seed, err := GenerateSeed(f.src)
	if err != nil {
		return RoundCommit{}, reveal, err
	}
	f.current.rounds++

	return RoundCommit{
		RoundID:        roundID,
		Seed:           seed,
		Commitment:     Commitment(seed),
		SaltCommitment: f.current.commitment,
		CrashPoint:     CrashPointFromSeed(seed, f.current.salt),
	}, reveal, nil
}

// Reveal stores the proof of a crashed round.
func (f *FairnessLedger) Reveal(c RoundCommit, crashedAt time.Time) RoundProof {
	p := RoundProof{
		RoundID:        c.RoundID,
		Commitment:     c.Commitment,
		Seed:           c.Seed,
		SaltCommitment: c.SaltCommitment,
		CrashPoint:     c.CrashPoint,
		CrashedAt:      crashedAt,
	}
	f.proofs.Add(c.RoundID, p)
	return f.withSalt(p)
}

func (f *FairnessLedger) Proof(roundID string) (RoundProof, error) {
	p, ok := f.proofs.Get(roundID)
	if !ok {
		return RoundProof{}, ErrRoundNotFound
	}
	return f.withSalt(p), nil
}

func (f *FairnessLedger) withSalt(p RoundProof) RoundProof {
	f.mu.Lock()
	p.Salt = f.revealed[p.SaltCommitment]
	f.mu.Unlock()
	return p
}

// Salts lists retired salts, newest first.
func (f *FairnessLedger) Salts() []SaltReveal {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SaltReveal, len(f.reveals))
	for i, r := range f.reveals {
		out[len(f.reveals)-1-i] = r
	}
	return out
}

// ActiveSaltCommitment is the commitment of the salt in use, empty before
// the first round.
func (f *FairnessLedger) ActiveSaltCommitment() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return ""
	}
	return f.current.commitment
}

// RetireSalt reveals the current salt. Only call it when no round is live.
func (f *FairnessLedger) RetireSalt() (SaltReveal, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return SaltReveal{}, false
	}
	return f.retireLocked(), true
}

func (f *FairnessLedger) retireLocked() SaltReveal {
	r := SaltReveal{
		Commitment:  f.current.commitment,
		Salt:        f.current.salt,
		ActivatedAt: f.current.activatedAt,
		RetiredAt:   f.now(),
		Rounds:      f.current.rounds,
	}
	f.reveals = append(f.reveals, r)
	f.revealed[r.Commitment] = r.Salt
	f.current = nil
	log.Printf("[FAIR] Retired salt %s... after %d rounds", r.Commitment[:16], r.Rounds)
	return r
}
