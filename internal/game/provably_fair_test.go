package game

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"casinolab/internal/rng"
)

func TestCommitment(t *testing.T) {
	sum := sha256.Sum256([]byte("abc" + "next"))
	if got := Commitment("abc"); got != hex.EncodeToString(sum[:]) {
		t.Errorf("Commitment() = %s", got)
	}
	if Commitment("abc") == SaltCommitment("abc") {
		t.Error("seed and salt commitments should differ")
	}
}

func TestGenerateSeed(t *testing.T) {
	seed, err := GenerateSeed(rng.New())
	if err != nil {
		t.Fatalf("GenerateSeed() error = %v", err)
	}
	if len(seed) != 2*SEED_BYTES {
		t.Errorf("len(seed) = %d, want %d", len(seed), 2*SEED_BYTES)
	}

	if _, err := GenerateSeed(&scriptedSource{fail: true}); !errors.Is(err, rng.ErrEntropyUnavailable) {
		t.Errorf("GenerateSeed() error = %v, want ErrEntropyUnavailable", err)
	}
}

func TestVerifyRound(t *testing.T) {
	seed, salt := "round-seed", "server-salt"
	cp := CrashPointFromSeed(seed, salt)

	tests := []struct {
		name           string
		seed           string
		commitment     string
		saltCommitment string
		claimed        float64
		want           bool
	}{
		{"honest round", seed, Commitment(seed), SaltCommitment(salt), cp, true},
		{"no commitments given", seed, "", "", cp, true},
		{"tampered crash point", seed, Commitment(seed), SaltCommitment(salt), cp + 0.5, false},
		{"swapped seed", "other-seed", Commitment(seed), SaltCommitment(salt), cp, false},
		{"wrong salt commitment", seed, Commitment(seed), SaltCommitment("x"), cp, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := VerifyRound(tt.seed, salt, tt.commitment, tt.saltCommitment, tt.claimed)
			if v.Valid() != tt.want {
				t.Errorf("VerifyRound() = %+v, want valid=%v", v, tt.want)
			}
		})
	}
}

func TestFairnessLedger_NextRound(t *testing.T) {
	f, err := NewFairnessLedger(rng.New(), 3, 10)
	if err != nil {
		t.Fatalf("NewFairnessLedger() error = %v", err)
	}

	var commits []RoundCommit
	for i := 0; i < 3; i++ {
		c, reveal, err := f.NextRound("R" + string(rune('a'+i)))
		if err != nil {
			t.Fatalf("NextRound() error = %v", err)
		}
		if reveal != nil {
			t.Fatalf("salt revealed after %d rounds", i)
		}
		if c.Commitment != Commitment(c.Seed) {
			t.Error("commitment does not match seed")
		}
		commits = append(commits, c)
	}
	if commits[0].Seed == commits[1].Seed {
		t.Error("seeds repeat between rounds")
	}
	if commits[0].SaltCommitment != commits[2].SaltCommitment {
		t.Error("salt changed inside an epoch")
	}

	proof := f.Reveal(commits[0], time.Now())
	if proof.Salt != "" {
		t.Error("live salt leaked in a proof")
	}

	next, reveal, err := f.NextRound("Rd")
	if err != nil {
		t.Fatalf("NextRound() error = %v", err)
	}
	if reveal == nil {
		t.Fatal("salt not retired after rotation")
	}
	if reveal.Rounds != 3 || SaltCommitment(reveal.Salt) != commits[0].SaltCommitment {
		t.Errorf("reveal = %+v", reveal)
	}
	if next.SaltCommitment == commits[0].SaltCommitment {
		t.Error("new epoch kept the old salt")
	}

	proof, err = f.Proof("Ra")
	if err != nil {
		t.Fatalf("Proof() error = %v", err)
	}
	if proof.Salt != reveal.Salt {
		t.Error("retired salt missing from proof")
	}
	v := VerifyRound(proof.Seed, proof.Salt, proof.Commitment, proof.SaltCommitment, proof.CrashPoint)
	if !v.Valid() {
		t.Errorf("revealed proof does not verify: %+v", v)
	}

	if _, err := f.Proof("missing"); !errors.Is(err, ErrRoundNotFound) {
		t.Errorf("Proof(missing) error = %v", err)
	}
	if salts := f.Salts(); len(salts) != 1 {
		t.Errorf("len(Salts()) = %d, want 1", len(salts))
	}
}

func TestFairnessLedger_RetireSalt(t *testing.T) {
	f, err := NewFairnessLedger(rng.New(), 100, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.RetireSalt(); ok {
		t.Error("retired a salt before any round")
	}
	c, _, err := f.NextRound("R1")
	if err != nil {
		t.Fatal(err)
	}
	if f.ActiveSaltCommitment() != c.SaltCommitment {
		t.Error("ActiveSaltCommitment() mismatch")
	}
	r, ok := f.RetireSalt()
	if !ok || r.Commitment != c.SaltCommitment {
		t.Errorf("RetireSalt() = %+v, %v", r, ok)
	}
	if f.ActiveSaltCommitment() != "" {
		t.Error("salt still active after retirement")
	}
}

func TestNewFairnessLedger_InvalidArgs(t *testing.T) {
	if _, err := NewFairnessLedger(rng.New(), 0, 10); err == nil {
		t.Error("accepted zero rotation")
	}
	if _, err := NewFairnessLedger(rng.New(), 10, 0); err == nil {
		t.Error("accepted zero cache size")
	}
}
