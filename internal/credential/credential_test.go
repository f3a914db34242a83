package credential

import (
	"strings"
	"testing"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	blob, err := Hash("s3cret!")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if len(blob) != saltHexLength+keyLength*2 {
		t.Fatalf("unexpected blob length %d", len(blob))
	}
	if !Verify("s3cret!", blob) {
		t.Fatal("expected matching password to verify")
	}
	if Verify("s3cret", blob) {
		t.Fatal("wrong password verified")
	}
	if Verify("S3CRET!", blob) {
		t.Fatal("case-shifted password verified")
	}
}

func TestHashSaltsDiffer(t *testing.T) {
	a, err := Hash("same password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := Hash("same password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password share a salt")
	}
	if !Verify("same password", a) || !Verify("same password", b) {
		t.Fatal("both blobs should verify")
	}
}

func TestHashEmptyPassword(t *testing.T) {
	if _, err := Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestVerifyMalformedBlobs(t *testing.T) {
	blob, err := Hash("irrelevant")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	malformed := []string{
		"",
		"short",
		strings.Repeat("a", saltHexLength),     // salt only, no key
		strings.Repeat("z", saltHexLength+10),  // non-hex salt
		blob[:saltHexLength] + "not-hex-at-all", // non-hex key
	}
	for _, m := range malformed {
		if Verify("irrelevant", m) {
			t.Fatalf("malformed blob %q verified", m)
		}
	}
	if Verify("", blob) {
		t.Fatal("empty password verified")
	}
}
