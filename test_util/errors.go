package testutil

import "errors"

// ErrUnknownProof is returned by MockVerifier for proofs it was not seeded
// with.
var ErrUnknownProof = errors.New("unknown deposit proof")
