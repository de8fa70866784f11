package assetvault

import (
	"errors"
	"log/slog"
	"sync"
)

// Option configures the service during construction.
type Option func(*service)

// WithRepository sets the metadata repository. Required.
func WithRepository(repo Repository) Option {
	return func(s *service) { s.repository = repo }
}

// WithStore sets the blob store. Required.
func WithStore(store Store) Option {
	return func(s *service) { s.store = store }
}

// WithClassifier overrides the default media classifier.
func WithClassifier(c *Classifier) Option {
	return func(s *service) { s.classifier = c }
}

// WithExtractor sets the metadata extractor. Without one, uploads keep
// only the fields clients supply.
func WithExtractor(e Extractor) Option {
	return func(s *service) { s.extractor = e }
}

// WithPreviewBuilder sets the preview builder. Without one, BuildPreview
// answers with the original object key.
func WithPreviewBuilder(b PreviewBuilder) Option {
	return func(s *service) { s.previews = b }
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.log = logger }
}

type service struct {
	repository Repository
	store      Store
	classifier *Classifier
	extractor  Extractor
	previews   PreviewBuilder
	log        *slog.Logger

	// nameLocks serializes version-slot assignment per logical file name
	// so concurrent uploads of the same name cannot race the slot count.
	mu        sync.Mutex
	nameLocks map[string]*sync.Mutex
}

// New creates the asset management service.
func New(options ...Option) (Service, error) {
	s := &service{
		classifier: NewClassifier(ClassifierConfig{}),
		log:        slog.Default(),
		nameLocks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.repository == nil {
		return nil, errors.New("repository is required")
	}
	if s.store == nil {
		return nil, errors.New("store is required")
	}
	return s, nil
}

// lockName returns the mutex guarding version-slot assignment for a file
// name. Locks are never reclaimed; the name space is small in practice.
func (s *service) lockName(fileName string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.nameLocks[fileName]
	if !ok {
		m = &sync.Mutex{}
		s.nameLocks[fileName] = m
	}
	return m
}
