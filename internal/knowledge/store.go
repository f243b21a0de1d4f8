package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/clinic-assistant/pkg/logging"
)

// ErrCorpusUnavailable wraps any failure to read the corpus.
var ErrCorpusUnavailable = errors.New("knowledge: corpus unavailable")

// Store answers doctor and specialization lookups against the corpus.
// The corpus is read and parsed on every call.
type Store struct {
	source Source
	logger *logging.Logger
}

// NewStore creates a store reading from source.
func NewStore(source Source, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{source: source, logger: logger}
}

// Load parses the corpus once so a single request can run several lookups.
func (s *Store) Load(ctx context.Context) (*Corpus, error) {
	if s == nil || s.source == nil {
		return nil, ErrCorpusUnavailable
	}
	data, err := s.source.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorpusUnavailable, err)
	}
	return Parse(data), nil
}

// GetDoctorInfo returns the doctor entry or nil.
func (s *Store) GetDoctorInfo(ctx context.Context, name string) *Entry {
	corpus := s.loadOrWarn(ctx)
	if corpus == nil {
		return nil
	}
	entry := corpus.Doctor(name)
	if entry == nil {
		s.logger.Debug("doctor not in corpus", "name", name)
	}
	return entry
}

// GetSpecializationInfo returns the specialization entry or nil.
func (s *Store) GetSpecializationInfo(ctx context.Context, name string) *Entry {
	corpus := s.loadOrWarn(ctx)
	if corpus == nil {
		return nil
	}
	entry := corpus.Specialization(name)
	if entry == nil {
		s.logger.Debug("specialization not in corpus", "name", name)
	}
	return entry
}

// SearchDoctors returns doctors whose name contains partial. Never nil.
func (s *Store) SearchDoctors(ctx context.Context, partial string) []Entry {
	corpus := s.loadOrWarn(ctx)
	if corpus == nil {
		return []Entry{}
	}
	return corpus.SearchDoctors(partial)
}

func (s *Store) loadOrWarn(ctx context.Context) *Corpus {
	corpus, err := s.Load(ctx)
	if err != nil {
		s.logger.Warn("knowledge corpus unavailable", "source", s.sourceName(), "error", err)
		return nil
	}
	return corpus
}

func (s *Store) sourceName() string {
	if s == nil || s.source == nil {
		return ""
	}
	return s.source.String()
}
