package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/molml/hypersearch/search"
	"github.com/pkg/errors"
)

// Fingerprint computes the deterministic identifier of a candidate: the
// hex SHA-256 of its canonical JSON serialization. Identical candidates
// always fingerprint identically, across processes and runs.
func Fingerprint(c *search.Candidate) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize candidate for fingerprinting")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
