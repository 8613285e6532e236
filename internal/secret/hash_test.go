package secret

import (
	"strings"
	"testing"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	encoded, err := Hash(key)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Errorf("unexpected encoding format: %q", encoded)
	}
	if strings.Contains(encoded, key) {
		t.Error("encoded hash contains the raw secret")
	}

	if !Verify(key, encoded) {
		t.Error("Verify rejected the correct secret")
	}
	if Verify(key+"x", encoded) {
		t.Error("Verify accepted a wrong secret")
	}
	if Verify("", encoded) {
		t.Error("Verify accepted an empty secret")
	}
}

func TestHashFreshSaltPerCall(t *testing.T) {
	const key = "bck_0123456789abcdef0123456789abcdef"

	a, err := Hash(key)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash(key)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same secret are identical; salt is being reused")
	}
	if !Verify(key, a) || !Verify(key, b) {
		t.Error("both hashes should verify against the original secret")
	}
}

func TestVerifyMalformedEncodings(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"garbage", "not-a-hash"},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=3,p=4$c2FsdA$ZGlnZXN0"},
		{"missing sections", "$argon2id$v=19$m=65536,t=3,p=4"},
		{"bad version", "$argon2id$v=18$m=65536,t=3,p=4$c2FsdA$ZGlnZXN0"},
		{"bad params", "$argon2id$v=19$m=what$c2FsdA$ZGlnZXN0"},
		{"zero params", "$argon2id$v=19$m=0,t=0,p=0$c2FsdA$ZGlnZXN0"},
		{"bad salt b64", "$argon2id$v=19$m=65536,t=3,p=4$!!!$ZGlnZXN0"},
		{"bad digest b64", "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$!!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Verify("bck_0123456789abcdef0123456789abcdef", tt.encoded) {
				t.Errorf("Verify accepted malformed encoding %q", tt.encoded)
			}
		})
	}
}
