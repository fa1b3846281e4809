package orchestrator

import "testing"

func TestGeneratePairingCodeFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := generatePairingCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != pairingCodeDigits {
			t.Fatalf("expected %d digits, got %q", pairingCodeDigits, code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit rune in code %q", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected varied codes across draws, got %v", seen)
	}
}
