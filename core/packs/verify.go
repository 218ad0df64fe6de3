package packs

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const digestPrefix = "sha256:"

// ComputeDigest hashes artifact bytes into the canonical digest form.
func ComputeDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return digestPrefix + hex.EncodeToString(sum[:])
}

// NormalizeDigest lower-cases a digest and ensures the algorithm prefix.
func NormalizeDigest(digest string) string {
	digest = strings.ToLower(strings.TrimSpace(digest))
	if digest == "" {
		return digest
	}
	if !strings.Contains(digest, ":") {
		digest = digestPrefix + digest
	}
	return digest
}

// VerifyPolicy controls integrity and authenticity checks on fetched bytes.
// A configured public key implies signatures are mandatory unless
// AllowUnsigned is set.
type VerifyPolicy struct {
	PublicKey     ed25519.PublicKey
	AllowUnsigned bool
}

// NewVerifyPolicy builds a policy from a hex-encoded ed25519 public key.
// An empty key yields a digest-only policy.
func NewVerifyPolicy(publicKeyHex string, allowUnsigned bool) (VerifyPolicy, error) {
	policy := VerifyPolicy{AllowUnsigned: allowUnsigned}
	publicKeyHex = strings.TrimSpace(publicKeyHex)
	if publicKeyHex == "" {
		return policy, nil
	}
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return VerifyPolicy{}, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return VerifyPolicy{}, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	policy.PublicKey = ed25519.PublicKey(raw)
	return policy, nil
}

// Verify checks fetched bytes against the declared digest and, when the
// policy requires it, the base64-encoded ed25519 signature over the bytes.
// Verification is pure: no network or clock access.
func (p VerifyPolicy) Verify(data []byte, declaredDigest, signature string) error {
	want := NormalizeDigest(declaredDigest)
	if want == "" {
		return fmt.Errorf("%w: no declared digest", ErrDigestMismatch)
	}
	got := ComputeDigest(data)
	if got != want {
		return fmt.Errorf("%w: want %s got %s", ErrDigestMismatch, want, got)
	}
	if len(p.PublicKey) == 0 {
		return nil
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		if p.AllowUnsigned {
			return nil
		}
		return ErrSignatureRequired
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: decode: %v", ErrSignatureInvalid, err)
	}
	if !ed25519.Verify(p.PublicKey, data, sig) {
		return ErrSignatureInvalid
	}
	return nil
}
