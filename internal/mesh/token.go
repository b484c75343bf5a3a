package mesh

import "crypto/rand"

// tokenAlphabet is the character set for minted mesh tokens: alphanumeric,
// drawn uniformly.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// tokenLength is the fixed length of a minted mesh token.
const tokenLength = 32

// generateToken returns a cryptographically random 32-character alphanumeric
// token, following the same crypto/rand token-minting idiom used for
// refresh tokens elsewhere in this codebase, adapted here to an
// alphanumeric alphabet instead of hex since the wire format is a bare
// 32-character string, not a "saltHex:hashHex" pair.
func generateToken() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, tokenLength)
	for i, v := range b {
		out[i] = tokenAlphabet[int(v)%len(tokenAlphabet)]
	}
	return string(out), nil
}
