package journal

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// ScriptHash returns the identity of a script source for journal records:
// hex-encoded SHA-256 of the NFC-normalized source text. Normalizing at
// the hashing boundary makes the identity stable across transports that
// differ in Unicode composition.
func ScriptHash(source string) string {
	normalized := norm.NFC.String(source)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
