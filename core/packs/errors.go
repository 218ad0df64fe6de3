package packs

import "errors"

var (
	// ErrNotFound means the artifact does not exist at the locator address.
	ErrNotFound = errors.New("packs: artifact not found")

	// ErrUnreachable means the locator source could not be contacted after
	// retries. The caller should keep the last good state.
	ErrUnreachable = errors.New("packs: source unreachable")

	// ErrDigestMismatch means fetched bytes do not hash to the declared digest.
	ErrDigestMismatch = errors.New("packs: digest mismatch")

	// ErrSignatureInvalid means the artifact signature failed verification.
	ErrSignatureInvalid = errors.New("packs: signature invalid")

	// ErrSignatureRequired means policy demands a signature and none was given.
	ErrSignatureRequired = errors.New("packs: signature required")
)
