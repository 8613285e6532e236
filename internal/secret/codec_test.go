package secret

import (
	"strings"
	"testing"
)

func TestGenerateWellFormed(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		key, err := Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !IsWellFormed(key) {
			t.Fatalf("generated key is not well-formed: %q", key)
		}
		if seen[key] {
			t.Fatalf("duplicate key generated: %q", key)
		}
		seen[key] = true
	}
}

func TestDisplayPrefixRedacts(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	prefix := DisplayPrefix(key)
	if !strings.HasPrefix(prefix, KeyPrefix) {
		t.Errorf("display prefix %q missing constant prefix", prefix)
	}

	// Only 8 of the 32 random characters may be revealed.
	random := key[len(KeyPrefix):]
	revealed := strings.TrimPrefix(prefix, KeyPrefix)
	revealed = strings.ReplaceAll(revealed, "…", "")
	if len(revealed) != 8 {
		t.Errorf("display prefix reveals %d chars, want 8", len(revealed))
	}
	if revealed != random[:4]+random[len(random)-4:] {
		t.Errorf("display prefix %q does not match first/last 4 of %q", prefix, key)
	}
	if strings.Contains(prefix, random[4:len(random)-4]) {
		t.Error("display prefix leaks the middle of the random portion")
	}
}

func TestDisplayPrefixShortInput(t *testing.T) {
	// Malformed short input must not panic; callers pass arbitrary strings
	// through the fast-reject path first, but the function is total.
	for _, key := range []string{"", "b", "bck_", "bck_0123456", "not-a-key"} {
		if got := DisplayPrefix(key); got != KeyPrefix {
			t.Errorf("DisplayPrefix(%q) = %q, want %q", key, got, KeyPrefix)
		}
	}
}

func TestIsWellFormed(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"valid", "bck_0123456789abcdef0123456789abcdef", true},
		{"empty", "", false},
		{"wrong prefix", "sk_00123456789abcdef0123456789abcde", false},
		{"too short", "bck_0123456789abcdef", false},
		{"too long", "bck_0123456789abcdef0123456789abcdef00", false},
		{"uppercase hex", "bck_0123456789ABCDEF0123456789ABCDEF", false},
		{"non-hex", "bck_0123456789abcdez0123456789abcdef", false},
		{"prefix only", "bck_", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWellFormed(tt.key); got != tt.want {
				t.Errorf("IsWellFormed(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
