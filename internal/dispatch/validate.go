package dispatch

import (
	"fmt"
	"strings"
)

// RawTextLookup resolves an artifact id to its raw text.
type RawTextLookup func(artifactID string) (string, error)

// ValidateCard enforces the evidence rule on a submitted card: the claim
// must carry a non-empty quote that appears verbatim in the source
// artifact's raw text. Violations are rejected, never repaired.
func ValidateCard(card *KnowledgeCard, lookup RawTextLookup) error {
	if card == nil {
		return fmt.Errorf("%w: no card submitted", ErrEvidenceMissing)
	}
	if strings.TrimSpace(card.Claim) == "" {
		return fmt.Errorf("%w: empty claim", ErrEvidenceMissing)
	}
	if strings.TrimSpace(card.EvidenceQuote) == "" {
		return fmt.Errorf("%w: claim has no evidence quote", ErrEvidenceMissing)
	}
	if card.ArtifactID == "" {
		return fmt.Errorf("%w: no source artifact", ErrEvidenceMissing)
	}

	rawText, err := lookup(card.ArtifactID)
	if err != nil {
		return fmt.Errorf("%w: source artifact %s: %v", ErrEvidenceMissing, card.ArtifactID, err)
	}
	if !strings.Contains(rawText, card.EvidenceQuote) {
		return fmt.Errorf("%w: quote is not verbatim in artifact %s", ErrEvidenceMissing, card.ArtifactID)
	}
	return nil
}
