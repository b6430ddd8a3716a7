package compiler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/tally/internal/survey"
)

// fingerprintDomain separates definition hashes from any other use of the
// same canonical bytes. Bump the suffix if the encoding changes.
const fingerprintDomain = "tally/definition/v1"

// Fingerprint returns a stable hex SHA-256 of def's canonical JSON. Two
// definitions share a fingerprint only if every step, field and option
// matches, in order; CUE formatting and comments do not count.
func Fingerprint(def *survey.Definition) (string, error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", def.Name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", def.Name, err)
	}
	canonical, err := survey.MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", def.Name, err)
	}

	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
