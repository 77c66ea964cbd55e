package device

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("Mozilla/5.0", "203.0.113.7")
	b := Fingerprint("Mozilla/5.0", "203.0.113.7")
	if a != b {
		t.Fatal("same inputs must produce the same fingerprint")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(a))
	}
}

func TestFingerprintSensitiveToEachInput(t *testing.T) {
	base := Fingerprint("Mozilla/5.0", "203.0.113.7")
	if Fingerprint("Mozilla/5.0", "203.0.113.8") == base {
		t.Fatal("changing the IP must change the fingerprint")
	}
	if Fingerprint("curl/8.0", "203.0.113.7") == base {
		t.Fatal("changing the user agent must change the fingerprint")
	}
}

func TestFingerprintBoundarySeparation(t *testing.T) {
	if Fingerprint("ab", "c") == Fingerprint("a", "bc") {
		t.Fatal("input boundaries must be unambiguous")
	}
}
