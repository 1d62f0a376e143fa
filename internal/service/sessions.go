package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"fargoat/internal/metrics"
	"fargoat/internal/quest"
)

// ErrNotFound is returned for unknown sessions and profiles
var ErrNotFound = errors.New("not found")

// SessionService keeps one quest.Engine per wizard session. The least
// recently used session is dropped once the registry is full.
type SessionService struct {
	sessions      *lru.Cache
	submitter     quest.Submitter
	submitTimeout time.Duration
	options       []quest.Option
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewSessionService creates a session registry holding at most maxSessions engines
func NewSessionService(
	maxSessions int,
	submitter quest.Submitter,
	submitTimeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...quest.Option,
) (*SessionService, error) {
	logger = logger.Named("sessions")

	cache, err := lru.NewWithEvict(maxSessions, func(key, _ interface{}) {
		logger.Debug("Session dropped", zap.Any("session_id", key))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session registry: %w", err)
	}

	return &SessionService{
		sessions:      cache,
		submitter:     submitter,
		submitTimeout: submitTimeout,
		options:       opts,
		metrics:       m,
		logger:        logger,
	}, nil
}

// Create starts a new wizard session for role
func (s *SessionService) Create(role quest.Role) (string, *quest.Engine, error) {
	engine, err := quest.NewEngine(role, s.submitter, s.logger, s.options...)
	if err != nil {
		return "", nil, err
	}

	id := uuid.New().String()
	if evicted := s.sessions.Add(id, engine); evicted {
		s.logger.Info("Session registry full, evicted oldest session")
	}
	s.metrics.SetSessions(s.sessions.Len())

	s.logger.Info("Session created",
		zap.String("session_id", id),
		zap.String("role", string(role)))

	return id, engine, nil
}

// Get returns the engine of a session
func (s *SessionService) Get(id string) (*quest.Engine, error) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return v.(*quest.Engine), nil
}

// Delete ends a session
func (s *SessionService) Delete(id string) error {
	if !s.sessions.Remove(id) {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	s.metrics.SetSessions(s.sessions.Len())
	s.logger.Info("Session deleted", zap.String("session_id", id))
	return nil
}

// Submit submits a session's form with the configured timeout
func (s *SessionService) Submit(ctx context.Context, id string) (json.RawMessage, error) {
	engine, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if s.submitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.submitTimeout)
		defer cancel()
	}

	resp, err := engine.SubmitForm(ctx)

	var incomplete *quest.IncompleteError
	switch {
	case err == nil:
		s.metrics.RecordSubmission(true)
	case errors.As(err, &incomplete), errors.Is(err, quest.ErrSubmitInProgress):
		// rejected before reaching the backend
	default:
		s.metrics.RecordSubmission(false)
	}

	return resp, err
}

// Len returns the number of open sessions
func (s *SessionService) Len() int {
	return s.sessions.Len()
}
