package corrector

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint identifies text for cycle detection. Texts differing only in
// Unicode normalisation or whitespace share a fingerprint.
func Fingerprint(text string) string {
	canon := strings.Join(strings.Fields(norm.NFC.String(text)), " ")
	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:])[:16]
}
