package ingest

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/ebcovid/caseledger/internal/domain"
)

// Dedupe selects how repeated ingestion of the same case is handled.
type Dedupe string

const (
	// DedupeFingerprint skips cases whose fingerprint is already stored.
	DedupeFingerprint Dedupe = "fingerprint"
	// DedupeNone stores every extracted case, duplicates included.
	DedupeNone Dedupe = "none"
)

// ParseDedupe validates a configured dedupe mode. Empty selects fingerprint.
func ParseDedupe(s string) (Dedupe, error) {
	switch d := Dedupe(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DedupeFingerprint, nil
	case DedupeFingerprint, DedupeNone:
		return d, nil
	}
	return "", fmt.Errorf("case dedupe %q: %w", s, domain.ErrValidation)
}

// Fingerprint identifies a case by the posting it appeared under and its
// sanitized text. The same entry reposted on another day is a different case.
func Fingerprint(rec domain.CaseRecord) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(rec.PostedDate.Format(time.DateOnly)))
	h.Write([]byte{0})
	h.Write([]byte(rec.Text))
	return hex.EncodeToString(h.Sum(nil))
}
