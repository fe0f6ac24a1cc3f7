package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestHashTokenRequiresMinimumLength(t *testing.T) {
	if _, err := HashToken("short"); err == nil {
		t.Fatalf("expected error for short token")
	}
}

func TestGenerateHashAndVerify(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	hash, err := HashToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	if parts := strings.Split(hash, "$"); len(parts) != 3 || parts[0] != "t1" {
		t.Fatalf("unexpected hash format %q", hash)
	}
	if !VerifyToken(token, hash) {
		t.Fatalf("expected token verification to succeed")
	}
	if VerifyToken(token+"x", hash) {
		t.Fatalf("expected wrong token verification to fail")
	}
}

func TestVerifyTokenRejectsMalformedHash(t *testing.T) {
	for _, encoded := range []string{"", "t1$abc", "v1$180000$c2FsdA$ZGlnZXN0", "t1$c2FsdA$ZGlnZXN0", "t1$AAAAAAAAAAAAAAAAAAAAAA$ZGlnZXN0"} {
		if VerifyToken("whatever-token-value-1234", encoded) {
			t.Fatalf("expected %q to be rejected", encoded)
		}
	}
}

func TestHashTokenSaltsEachHash(t *testing.T) {
	token := "a-fixed-token-of-enough-length"
	first, err := HashToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	second, err := HashToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct salts, got identical hashes %q", first)
	}
	if !VerifyToken(token, first) || !VerifyToken(token, second) {
		t.Fatalf("expected both hashes to verify")
	}
}

func TestVerifyTokenIsCheap(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	hash, err := HashToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	start := time.Now()
	for i := 0; i < 1000; i++ {
		if !VerifyToken(token, hash) {
			t.Fatalf("verification %d failed", i)
		}
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("1000 verifications took %s", elapsed)
	}
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("bearer  abc ")
	if err != nil || token != "abc" {
		t.Fatalf("expected abc, got %q (%v)", token, err)
	}
	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer   "} {
		if _, err := BearerToken(header); !errors.Is(err, ErrMissingBearer) {
			t.Fatalf("%q: expected ErrMissingBearer, got %v", header, err)
		}
	}
}
