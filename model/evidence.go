package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// EvidenceSpan locates the text passage a relation or event was extracted from
type EvidenceSpan struct {
	DocumentID uuid.UUID `json:"document_id"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Text       string    `json:"text"`
}

// Fingerprint returns a deterministic content hash of (kind, span position,
// span text). It is the idempotence key for relations and events: re-ingesting
// a document with identical content yields the same fingerprints and therefore
// no duplicates, even when the re-ingested document carries a fresh RID.
func (s EvidenceSpan) Fingerprint(kind string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%s", kind, s.Start, s.End, s.Text)
	return hex.EncodeToString(h.Sum(nil))[:32]
}
