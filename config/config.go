// Package config holds the tunable policy knobs that control DAG
// normalization aggressiveness and multithreading thresholds, mirroring
// the original scheme's OPValues/MTValues globals as an explicit value
// type instead of package-level mutable state.
package config

import (
	"time"
)

// Config bundles every tunable knob listed in the external interfaces
// table. The zero value is not meaningful; use [DefaultConfig].
type Config struct {
	// MaxCCCSize is the upper deflen_count for a single materialized CCC.
	// Above this, CCC construction fails with certerr.ErrCapacityExceeded.
	MaxCCCSize uint64

	// MaxCADDMergeSize is the upper combined deflen_count under which a
	// CADD fusion attempt proceeds.
	MaxCADDMergeSize uint64

	// MaxCMULMergeSize is the upper combined deflen_count under which a
	// CMUL fusion attempt proceeds.
	MaxCMULMergeSize uint64

	// AlwaysDefaultMultiplication forces a CCC multiply when either
	// operand has deflen_count 1, regardless of the size caps.
	AlwaysDefaultMultiplication bool

	// RemoveDuplicatesOnAdd cancels identical children under XOR (a⊕a=0)
	// during CADD merging.
	RemoveDuplicatesOnAdd bool

	// RemoveDuplicatesOnMul collapses identical children under AND
	// (a∧a=a) during CMUL merging.
	RemoveDuplicatesOnMul bool

	// ShortenOnRecursiveCADDMerging runs upstream shortening after every
	// recursive CADD fusion.
	ShortenOnRecursiveCADDMerging bool

	// ShortenOnRecursiveCMULMerging runs upstream shortening after every
	// recursive CMUL fusion.
	ShortenOnRecursiveCMULMerging bool

	// DecryptionCache memoizes per-call decryption results across shared
	// subgraphs. The memo is always scoped to a single Decrypt call; this
	// flag only controls whether that per-call memo is consulted at all.
	DecryptionCache bool

	// NoMerging disables all CADD/CMUL fusion, useful for debugging and
	// benchmarking the unmerged-DAG path.
	NoMerging bool

	// CopyMTThreshold, DecryptMTThreshold, MultiplyMTThreshold,
	// AddMTThreshold, and PermuteMTThreshold are the minimum deflen_count
	// (in default-length multiples) below which the corresponding kernel
	// runs single-threaded.
	CopyMTThreshold     uint64
	DecryptMTThreshold  uint64
	MultiplyMTThreshold uint64
	AddMTThreshold      uint64
	PermuteMTThreshold  uint64
}

// DefaultConfig returns the fixed defaults from the external interfaces
// table. Threshold autoselection is out of scope; these multithreading
// thresholds are sensible fixed values rather than microbenchmark output.
func DefaultConfig() Config {
	return Config{
		MaxCCCSize:                    2048,
		MaxCADDMergeSize:              4096 * 4096,
		MaxCMULMergeSize:              4096 * 4096 * 4096,
		AlwaysDefaultMultiplication:   true,
		RemoveDuplicatesOnAdd:         true,
		RemoveDuplicatesOnMul:         true,
		ShortenOnRecursiveCADDMerging: true,
		ShortenOnRecursiveCMULMerging: true,
		DecryptionCache:               true,
		NoMerging:                     false,
		CopyMTThreshold:               64,
		DecryptMTThreshold:            64,
		MultiplyMTThreshold:           16,
		AddMTThreshold:                64,
		PermuteMTThreshold:            64,
	}
}

// AutotuneContext is the subset of Context that Autotune needs: its
// default chunk length in 64-bit words. Taking the interface here rather
// than the concrete cfctx.Context avoids an import cycle between config
// and the root package.
type AutotuneContext interface {
	DefaultLen() uint64
}

// trial runs fn rounds times and reports the mean duration per call.
// budget is not consulted.
func trial(budget time.Duration, rounds int, fn func()) time.Duration {
	start := time.Now()
	for i := 0; i < rounds; i++ {
		fn()
	}
	elapsed := time.Since(start)
	if rounds == 0 {
		return 0
	}
	return elapsed / time.Duration(rounds)
}

// Autotune runs a handful of timed micro-trials against ctx and fills in
// the five *MTThreshold fields on c. It exists because the original
// scheme's API surface names this operation (MTValues::*_autoselect), but
// is not wired into DefaultConfig or any construction path: threshold
// auto-tuning microbenchmarks are explicitly out of scope. Callers that
// want tuned thresholds must invoke it themselves.
func (c *Config) Autotune(ctx AutotuneContext) {
	const rounds = 4
	const perRoundUnits = 50

	l := ctx.DefaultLen()
	if l == 0 {
		l = 1
	}

	scratch := make([]uint64, l)
	base := trial(0, rounds, func() {
		for i := 0; i < perRoundUnits; i++ {
			for w := range scratch {
				scratch[w] ^= uint64(w)
			}
		}
	})

	// The measured time only decides between two fixed values: every
	// threshold starts from perRoundUnits, or from 1 when the trial
	// measured no time at all; the multiply threshold is a quarter of
	// that (at least 1). There is no disk-cache step.
	threshold := uint64(perRoundUnits)
	if base == 0 {
		threshold = 1
	}

	c.CopyMTThreshold = threshold
	c.DecryptMTThreshold = threshold
	c.MultiplyMTThreshold = threshold / 4
	if c.MultiplyMTThreshold == 0 {
		c.MultiplyMTThreshold = 1
	}
	c.AddMTThreshold = threshold
	c.PermuteMTThreshold = threshold
}
