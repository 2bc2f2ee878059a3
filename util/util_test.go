package util

import (
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
)

func TestRandomString(t *testing.T) {
	for _, n := range []int{1, 8, 15, 48} {
		s := RandomString(n)
		if len(s) != n {
			t.Errorf("RandomString(%d) returned %d characters", n, len(s))
		}
	}
	if RandomString(32) == RandomString(32) {
		t.Error("Expected two random strings to differ")
	}
}

func TestGeneratePemKeypair(t *testing.T) {
	pair, err := GeneratePemKeypair()
	if err != nil {
		t.Fatalf("GeneratePemKeypair failed: %v", err)
	}

	block, _ := pem.Decode([]byte(pair.Public))
	if block == nil || block.Type != "PUBLIC KEY" {
		t.Fatalf("Expected PUBLIC KEY block, got %v", block)
	}
	if _, err := x509.ParsePKIXPublicKey(block.Bytes); err != nil {
		t.Errorf("Public key is not PKIX: %v", err)
	}

	key, err := ParsePrivateKey(pair.Private)
	if err != nil {
		t.Fatalf("ParsePrivateKey failed: %v", err)
	}
	if key.N.BitLen() != rsaKeyBits {
		t.Errorf("Expected %d bit key, got %d", rsaKeyBits, key.N.BitLen())
	}
}

func TestParsePrivateKeyInvalid(t *testing.T) {
	if _, err := ParsePrivateKey("not pem"); err == nil {
		t.Error("Expected error for invalid PEM")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !CheckPassword(hash, "s3cret") {
		t.Error("Expected password to match")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("Expected wrong password to fail")
	}
	if CheckPassword("", "") {
		t.Error("Expected empty hash to never match")
	}
}

func TestMarkdownLinksToHTML(t *testing.T) {
	got := MarkdownLinksToHTML("see [docs](https://example.com/a?b=1&c=2)")
	want := `see <a href="https://example.com/a?b=1&amp;c=2" target="_blank" rel="noopener noreferrer">docs</a>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Alice Smith":           "alice_smith",
		"  __Bob__ ":            "bob",
		"émile!":                "mile",
		"":                      "",
		strings.Repeat("a", 60): strings.Repeat("a", 40),
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNameAndVersion(t *testing.T) {
	if !strings.HasPrefix(GetNameAndVersion(), "socialdistance / ") {
		t.Errorf("Unexpected name and version %q", GetNameAndVersion())
	}
}
