// Package certerr defines the sentinel errors returned across the certfhe
// module. Callers should compare with [errors.Is]; call sites wrap these
// with additional context via fmt.Errorf's %w verb.
package certerr

import "errors"

// ErrInvalidArgument is returned for malformed or mismatched caller input:
// an empty ciphertext used as an operand, operands from different
// contexts, a permutation length mismatch, a duplicate ciphertext in a
// serialize batch.
var ErrInvalidArgument = errors.New("certfhe: invalid argument")

// ErrCapacityExceeded is returned when materializing a CCC would exceed
// the configured size cap. Callers with a DAG fallback (CADD/CMUL
// merging) catch this and retain the unmerged graph instead; callers with
// no fallback (direct CCC construction) propagate it.
var ErrCapacityExceeded = errors.New("certfhe: capacity exceeded")

// ErrInconsistentState is returned for conditions that should be
// unreachable under correct use: a reference count would go negative, or
// a concurrency guard is unexpectedly nil. These indicate a programming
// error rather than a recoverable condition.
var ErrInconsistentState = errors.New("certfhe: inconsistent state")

// ErrIO is returned by serialization and deserialization on buffer I/O
// failure.
var ErrIO = errors.New("certfhe: io error")
