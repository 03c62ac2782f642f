// Command verify recomputes a crash round from its revealed seed and salt.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"casinolab/internal/game"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	seed := fs.String("seed", "", "revealed round seed (hex)")
	salt := fs.String("salt", "", "revealed server salt")
	commitment := fs.String("commitment", "", "round commitment published before betting")
	saltCommitment := fs.String("salt-commitment", "", "salt commitment published before betting")
	claimed := fs.Float64("crash-point", 0, "crash point the server announced")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *seed == "" || *salt == "" {
		fmt.Fprintln(stderr, "verify: -seed and -salt are required")
		fs.Usage()
		return 2
	}

	v := game.VerifyRound(*seed, *salt, *commitment, *saltCommitment, *claimed)

	fmt.Fprintf(stdout, "crash point:      %.2fx\n", v.CrashPoint)
	fmt.Fprintf(stdout, "commitment:       %s\n", verdict(*commitment != "", v.CommitmentValid))
	fmt.Fprintf(stdout, "salt commitment:  %s\n", verdict(*saltCommitment != "", v.SaltCommitmentValid))
	if *claimed > 0 {
		fmt.Fprintf(stdout, "announced %.2fx:  %s\n", *claimed, verdict(true, v.CrashPointValid))
	}

	if (*claimed > 0 && !v.CrashPointValid) || !v.CommitmentValid || !v.SaltCommitmentValid {
		return 1
	}
	return 0
}

func verdict(checked, ok bool) string {
	switch {
	case !checked:
		return "not checked"
	case ok:
		return "OK"
	default:
		return "MISMATCH"
	}
}
