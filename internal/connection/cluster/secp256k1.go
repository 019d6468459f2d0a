package cluster

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// recoverSecp256k1 recovers the 33-byte SEC1-compressed public key that
// produced sig over digest. It accepts both the Ethereum 27/28 recovery
// id convention and the raw 0/1 form, normalizing before calling
// crypto.SigToPub (grounded on the teacher's internal/eip7702, which
// signs and recovers secp256k1 signatures the same way).
func recoverSecp256k1(digest, sig []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, fmt.Errorf("secp256k1: signature must be 65 bytes, got %d", len(sig))
	}
	normalized := append([]byte(nil), sig...)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] != 0 && normalized[64] != 1 {
		return nil, fmt.Errorf("secp256k1: invalid recovery id %d", normalized[64])
	}

	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return nil, fmt.Errorf("secp256k1: recover: %w", err)
	}
	return crypto.CompressPubkey(pub), nil
}
