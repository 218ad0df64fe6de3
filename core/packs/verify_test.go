package packs

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
)

func TestParseLocator(t *testing.T) {
	cases := []struct {
		raw     string
		scheme  string
		address string
		wantErr bool
	}{
		{raw: "file:///tmp/pack.json", scheme: SchemeFile, address: "/tmp/pack.json"},
		{raw: "/tmp/pack.json", scheme: SchemeFile, address: "/tmp/pack.json"},
		{raw: "https://packs.example.com/demo.json", scheme: SchemeHTTPS, address: "https://packs.example.com/demo.json"},
		{raw: "redis://packs:demo", scheme: SchemeRedis, address: "packs:demo"},
		{raw: "ftp://host/pack", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range cases {
		loc, err := ParseLocator(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseLocator(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseLocator(%q): %v", tc.raw, err)
		}
		if loc.Scheme != tc.scheme || loc.Address != tc.address {
			t.Fatalf("ParseLocator(%q) = %+v", tc.raw, loc)
		}
	}
}

func TestVerifyDigestOnly(t *testing.T) {
	data := []byte(`{"pack":{}}`)
	digest := ComputeDigest(data)

	var policy VerifyPolicy
	if err := policy.Verify(data, digest, ""); err != nil {
		t.Fatalf("verify: %v", err)
	}
	// bare hex without the algorithm prefix is accepted
	if err := policy.Verify(data, digest[len("sha256:"):], ""); err != nil {
		t.Fatalf("verify bare digest: %v", err)
	}
	err := policy.Verify([]byte("tampered"), digest, "")
	if !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}

func TestVerifySignaturePolicy(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	data := []byte("artifact-bytes")
	digest := ComputeDigest(data)
	sig := base64.StdEncoding.EncodeToString(ed25519.Sign(priv, data))

	policy, err := NewVerifyPolicy(hex.EncodeToString(pub), false)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if err := policy.Verify(data, digest, sig); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := policy.Verify(data, digest, ""); !errors.Is(err, ErrSignatureRequired) {
		t.Fatalf("expected signature required, got %v", err)
	}
	badSig := base64.StdEncoding.EncodeToString(make([]byte, ed25519.SignatureSize))
	if err := policy.Verify(data, digest, badSig); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected signature invalid, got %v", err)
	}

	lenient, err := NewVerifyPolicy(hex.EncodeToString(pub), true)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if err := lenient.Verify(data, digest, ""); err != nil {
		t.Fatalf("allow-unsigned policy rejected unsigned artifact: %v", err)
	}
}

func TestNewVerifyPolicyRejectsBadKey(t *testing.T) {
	if _, err := NewVerifyPolicy("not-hex", false); err == nil {
		t.Fatal("expected error for non-hex key")
	}
	if _, err := NewVerifyPolicy("abcd", false); err == nil {
		t.Fatal("expected error for short key")
	}
}
