// Package artifact implements the content-addressed store of ingested
// documents. Artifacts hold the raw extracted text plus a generated short
// summary; the primary conversation only ever sees summaries and metadata,
// which is what keeps its context bounded.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// SourceType classifies where an artifact's content came from.
type SourceType string

const (
	SourceUpload SourceType = "upload"
	SourcePaste  SourceType = "paste"
	SourceScrape SourceType = "scrape"
	SourceCard   SourceType = "knowledge_card"
)

// SummaryState tracks the async summarization lifecycle.
type SummaryState string

const (
	SummaryNone    SummaryState = "none"
	SummaryPending SummaryState = "pending"
	SummaryReady   SummaryState = "ready"
	SummaryFailed  SummaryState = "failed"
)

// Store errors.
var (
	// ErrUnknownArtifact is returned for operations on a missing id.
	ErrUnknownArtifact = errors.New("unknown artifact")

	// ErrNotArchived is returned when promoting a session-attached artifact.
	ErrNotArchived = errors.New("artifact is not archived")

	// ErrSummarization wraps summarizer failures. Non-fatal: the artifact
	// stays usable via its raw text.
	ErrSummarization = errors.New("summarization failed")
)

// Artifact is one ingested document. SessionID empty means the artifact is
// archived and reusable across sessions.
type Artifact struct {
	ID           string
	ContentHash  string
	SourceType   SourceType
	Filename     string
	RawText      string
	Summary      string
	SummaryState SummaryState
	SizeBytes    int64
	IngestedAt   time.Time
	SessionID    string
}

// Archived reports whether the artifact belongs to the archive rather than
// a session.
func (a *Artifact) Archived() bool {
	return a.SessionID == ""
}

// Listing is the metadata view exposed to the primary conversation. It
// never carries raw content; an empty Summary means callers need a full
// fetch via the store.
type Listing struct {
	ID           string
	Filename     string
	SourceType   SourceType
	Summary      string
	SummaryState SummaryState
	SizeBytes    int64
}

// HashContent returns the hex sha-256 of raw content bytes.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
