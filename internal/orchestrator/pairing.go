package orchestrator

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// pairingCodeDigits is the length of a single-use tenant pairing code.
const pairingCodeDigits = 6

// generatePairingCode draws a cryptographically random 6-digit code,
// zero-padded, via crypto/rand rather than math/rand: a pairing code is a
// bearer credential that promotes an anonymous client to a tenant-bound
// session, so it must not be predictable.
func generatePairingCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < pairingCodeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate pairing code: %w", err)
	}
	return fmt.Sprintf("%0*d", pairingCodeDigits, n.Int64()), nil
}
