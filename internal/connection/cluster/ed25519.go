package cluster

import "crypto/ed25519"

// verifyEd25519 checks sig over msg against a 32-byte raw public key
// using the standard library — no third-party ed25519 implementation in
// the retrieval pack improves on crypto/ed25519 for plain verification,
// so this one component is stdlib by design (see DESIGN.md).
func verifyEd25519(pub, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}
