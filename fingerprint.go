package trustkit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// FingerprintSignals are the passively observable environment signals a
// device fingerprint is derived from. Nothing here requires user consent:
// screen geometry, timezone and color depth are ambient properties of the
// client, not content.
type FingerprintSignals struct {
	ScreenWidth  int    `json:"screenWidth"`
	ScreenHeight int    `json:"screenHeight"`
	ColorDepth   int    `json:"colorDepth"`
	Timezone     string `json:"timezone"`
	Language     string `json:"language,omitempty"`
	Platform     string `json:"platform,omitempty"`
}

// Fingerprint derives the stable device identifier from the signals. The
// canonical form is field-ordered, so the same signals always produce the
// same fingerprint regardless of how the struct was populated.
func (s FingerprintSignals) Fingerprint() string {
	canonical := fmt.Sprintf("%dx%d|%d|%s|%s|%s",
		s.ScreenWidth, s.ScreenHeight, s.ColorDepth,
		s.Timezone, s.Language, s.Platform,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
