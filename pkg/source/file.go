package source

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mariohealth/marioserve/pkg/dictionary"
)

// FileSource reads a JSON or msgpack snapshot from disk
type FileSource struct {
	path    string
	coercer *Coercer
}

// NewFileSource creates a source for path. coercer may be nil.
func NewFileSource(path string, coercer *Coercer) *FileSource {
	if coercer == nil {
		coercer = NewCoercer(nil)
	}
	return &FileSource{path: path, coercer: coercer}
}

// Name returns the snapshot path
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Fetch reads and coerces the snapshot file
func (s *FileSource) Fetch(ctx context.Context) (*Snapshot, error) {
	if s.path == "" {
		return nil, ErrNoPath
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := dictionary.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}

	before := s.coercer.Warnings()
	snap := &Snapshot{
		Version:    doc.Version,
		FetchedAt:  time.Now(),
		Terms:      s.coercer.Terms(doc.Terms),
		Candidates: s.coercer.Candidates(doc.Candidates),
		Issues:     doc.Dropped,
	}
	if doc.Repaired {
		snap.Issues++
	}
	snap.Issues += int(s.coercer.Warnings() - before)

	if snap.Issues > 0 {
		log.Warnf("Snapshot %s loaded with %d issues", s.path, snap.Issues)
	}
	return snap, nil
}
