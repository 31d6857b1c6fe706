package artifact

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"parley/internal/events"
	"parley/internal/logging"
)

// Summarizer produces a short summary of an artifact's raw text. The
// LLM-backed implementation lives at the session layer; tests inject fakes.
type Summarizer interface {
	Summarize(ctx context.Context, a Artifact) (string, error)
}

// dedupKey identifies an artifact within a session. The store refuses to
// create two artifacts with the same key.
type dedupKey struct {
	sessionID   string
	filename    string
	contentHash string
}

// Store is the flat arena of artifacts, keyed by id. Sessions hold ids,
// never pointers, so there are no back-references to keep alive. All
// mutations are single-method and atomic; no caller holds the lock across
// a summarizer call.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]*Artifact
	byKey map[dedupKey]string

	bus        *events.Bus
	summarizer Summarizer

	jobs    chan string
	started bool
	done    chan struct{}
}

// summaryQueueDepth bounds how many summary jobs can be pending before
// ingestion starts summarizing inline. In practice a session never gets
// close to this.
const summaryQueueDepth = 128

// NewStore creates an artifact store. Call Start to run the summary worker.
func NewStore(bus *events.Bus, summarizer Summarizer) *Store {
	return &Store{
		byID:       make(map[string]*Artifact),
		byKey:      make(map[dedupKey]string),
		bus:        bus,
		summarizer: summarizer,
		jobs:       make(chan string, summaryQueueDepth),
		done:       make(chan struct{}),
	}
}

// Start launches the background summary worker. Summarization must never
// block ingestion of other artifacts, so exactly one worker drains the
// queue while Add returns immediately.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.runSummaryWorker(ctx)
}

// Close stops the summary worker. Pending jobs are dropped; the affected
// artifacts keep their raw-text fallback.
func (s *Store) Close() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()
	close(s.done)
}

// Add ingests content for a session. If hash is empty it is computed from
// the content. When an artifact with the same (filename, hash) already
// exists in the session, the existing record is returned, created is
// false, and no duplicate summary job is scheduled.
func (s *Store) Add(sessionID string, sourceType SourceType, filename string, content []byte, hash string) (Artifact, bool, error) {
	if hash == "" {
		hash = HashContent(content)
	}
	key := dedupKey{sessionID: sessionID, filename: filename, contentHash: hash}

	s.mu.Lock()
	if existingID, ok := s.byKey[key]; ok {
		existing := *s.byID[existingID]
		s.mu.Unlock()

		logging.ArtifactDebug("dedup hit: %s (%s)", filename, existingID)
		s.bus.Publish(events.KindArtifactIngested, events.ArtifactIngested{
			ArtifactID:   existing.ID,
			SessionID:    sessionID,
			Filename:     filename,
			SourceType:   string(sourceType),
			SizeBytes:    existing.SizeBytes,
			Deduplicated: true,
		})
		return existing, false, nil
	}

	a := &Artifact{
		ID:           uuid.NewString(),
		ContentHash:  hash,
		SourceType:   sourceType,
		Filename:     filename,
		RawText:      string(content),
		SummaryState: SummaryNone,
		SizeBytes:    int64(len(content)),
		IngestedAt:   time.Now(),
		SessionID:    sessionID,
	}
	s.byID[a.ID] = a
	s.byKey[key] = a.ID
	snapshot := *a
	s.mu.Unlock()

	logging.Artifact("ingested %s (%d bytes, id=%s)", filename, snapshot.SizeBytes, snapshot.ID)
	s.bus.Publish(events.KindArtifactIngested, events.ArtifactIngested{
		ArtifactID: snapshot.ID,
		SessionID:  sessionID,
		Filename:   filename,
		SourceType: string(sourceType),
		SizeBytes:  snapshot.SizeBytes,
	})

	s.scheduleSummary(snapshot.ID)
	return snapshot, true, nil
}

// Ingest is the document-extraction boundary: extracted text arrives here
// and nowhere else.
func (s *Store) Ingest(sessionID, filename string, raw []byte, sourceType SourceType) (string, error) {
	a, _, err := s.Add(sessionID, sourceType, filename, raw, "")
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

// Get returns a copy of one artifact.
func (s *Store) Get(id string) (Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s", ErrUnknownArtifact, id)
	}
	return *a, nil
}

// List returns the metadata listings for a session's artifacts, sorted by
// ingestion time. This is the only artifact view the primary conversation
// is shown.
func (s *Store) List(sessionID string) []Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*Artifact
	for _, a := range s.byID {
		if a.SessionID == sessionID {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].IngestedAt.Before(all[j].IngestedAt) })

	out := make([]Listing, 0, len(all))
	for _, a := range all {
		out = append(out, Listing{
			ID:           a.ID,
			Filename:     a.Filename,
			SourceType:   a.SourceType,
			Summary:      a.Summary,
			SummaryState: a.SummaryState,
			SizeBytes:    a.SizeBytes,
		})
	}
	return out
}

// Promote attaches an archived artifact to a session. Metadata-only; the
// content is never touched.
func (s *Store) Promote(id, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArtifact, id)
	}
	if !a.Archived() {
		return fmt.Errorf("%w: %s", ErrNotArchived, id)
	}

	delete(s.byKey, dedupKey{sessionID: "", filename: a.Filename, contentHash: a.ContentHash})
	a.SessionID = sessionID
	s.byKey[dedupKey{sessionID: sessionID, filename: a.Filename, contentHash: a.ContentHash}] = id

	logging.Artifact("promoted %s into session %s", id, sessionID)
	return nil
}

// Demote moves a session artifact back to the archive. Metadata-only.
func (s *Store) Demote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArtifact, id)
	}
	if a.Archived() {
		return nil
	}

	delete(s.byKey, dedupKey{sessionID: a.SessionID, filename: a.Filename, contentHash: a.ContentHash})
	a.SessionID = ""
	s.byKey[dedupKey{sessionID: "", filename: a.Filename, contentHash: a.ContentHash}] = id

	logging.Artifact("demoted %s to archive", id)
	return nil
}

// Resummarize schedules a fresh summary job, overwriting any prior result
// once it completes. Idempotent while a job is already pending.
func (s *Store) Resummarize(id string) error {
	s.mu.Lock()
	a, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownArtifact, id)
	}
	if a.SummaryState == SummaryPending {
		s.mu.Unlock()
		return nil
	}
	a.SummaryState = SummaryNone
	s.mu.Unlock()

	s.scheduleSummary(id)
	return nil
}

// Restore loads persisted artifacts without scheduling summary jobs for
// those that already have one. Resume-only.
func (s *Store) Restore(artifacts []Artifact) {
	s.mu.Lock()
	pending := make([]string, 0)
	for _, a := range artifacts {
		copied := a
		if copied.SummaryState == SummaryPending {
			// The job did not survive the restart.
			copied.SummaryState = SummaryNone
			pending = append(pending, copied.ID)
		}
		s.byID[copied.ID] = &copied
		s.byKey[dedupKey{sessionID: copied.SessionID, filename: copied.Filename, contentHash: copied.ContentHash}] = copied.ID
	}
	s.mu.Unlock()

	for _, id := range pending {
		s.scheduleSummary(id)
	}
	logging.Artifact("restored %d artifacts (%d summaries rescheduled)", len(artifacts), len(pending))
}

// All returns a snapshot of every artifact, session-attached and archived.
func (s *Store) All() []Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Artifact, 0, len(s.byID))
	for _, a := range s.byID {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngestedAt.Before(out[j].IngestedAt) })
	return out
}

// scheduleSummary marks the artifact pending and enqueues the job. Skips
// artifacts that are already pending or summarized.
func (s *Store) scheduleSummary(id string) {
	if s.summarizer == nil {
		return
	}

	s.mu.Lock()
	a, ok := s.byID[id]
	if !ok || a.SummaryState == SummaryPending || a.SummaryState == SummaryReady {
		s.mu.Unlock()
		return
	}
	a.SummaryState = SummaryPending
	s.mu.Unlock()

	select {
	case s.jobs <- id:
	case <-s.done:
	default:
		// Queue full. Leave the artifact on its raw-text fallback rather
		// than block ingestion; Resummarize can retry later.
		s.mu.Lock()
		if a, ok := s.byID[id]; ok && a.SummaryState == SummaryPending {
			a.SummaryState = SummaryNone
		}
		s.mu.Unlock()
		logging.Get(logging.CategoryArtifact).Warnf("summary queue full, deferring %s", id)
	}
}

// runSummaryWorker drains summary jobs until ctx or the store closes.
func (s *Store) runSummaryWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case id := <-s.jobs:
			s.summarizeOne(ctx, id)
		}
	}
}

// summarizeOne runs the summarizer for a single artifact. Failure is
// non-fatal: the summary stays empty and callers fall back to raw text.
func (s *Store) summarizeOne(ctx context.Context, id string) {
	s.mu.RLock()
	a, ok := s.byID[id]
	if !ok {
		s.mu.RUnlock()
		return
	}
	snapshot := *a
	s.mu.RUnlock()

	summary, err := s.summarizer.Summarize(ctx, snapshot)

	s.mu.Lock()
	a, ok = s.byID[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if err != nil {
		a.SummaryState = SummaryFailed
	} else {
		a.Summary = summary
		a.SummaryState = SummaryReady
	}
	s.mu.Unlock()

	if err != nil {
		logging.Get(logging.CategoryArtifact).Warnf("summary failed for %s: %v", id, err)
	} else {
		logging.ArtifactDebug("summary ready for %s (%d chars)", id, len(summary))
	}

	s.bus.Publish(events.KindArtifactSummarized, events.ArtifactSummarized{
		ArtifactID: id,
		Failed:     err != nil,
	})
}
