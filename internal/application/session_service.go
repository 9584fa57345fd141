package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/example/studyspace/internal/persistence"
)

// SessionRepository captures the persistence operations needed for usage
// sessions. The store guarantees at most one open session per user.
type SessionRepository interface {
	CreateSession(ctx context.Context, session UsageSession) (UsageSession, error)
	GetSession(ctx context.Context, id string) (UsageSession, error)
	GetOpenSession(ctx context.Context, userID string) (UsageSession, error)
	CloseSession(ctx context.Context, session UsageSession) (UsageSession, error)
	ListSessions(ctx context.Context, filter SessionRepositoryFilter) ([]UsageSession, error)
}

// SessionService tracks when users physically enter and leave resources.
type SessionService struct {
	catalog      ResourceCatalog
	sessions     SessionRepository
	reservations ReservationRepository
	locks        *keyedMutex
	policy       Policy
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
	metrics      *serviceMetrics
}

// NewSessionService wires dependencies for session operations.
func NewSessionService(catalog ResourceCatalog, sessions SessionRepository, reservations ReservationRepository, policy Policy, idGenerator func() string, now func() time.Time) *SessionService {
	return NewSessionServiceWithLogger(catalog, sessions, reservations, policy, idGenerator, now, nil)
}

// NewSessionServiceWithLogger wires dependencies with a specific logger.
func NewSessionServiceWithLogger(catalog ResourceCatalog, sessions SessionRepository, reservations ReservationRepository, policy Policy, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SessionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		catalog:      catalog,
		sessions:     sessions,
		reservations: reservations,
		locks:        newKeyedMutex(),
		policy:       policy.normalized(),
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
		metrics:      newServiceMetrics(),
	}
}

func (s *SessionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SessionService", operation, attrs...)
}

// StartSession opens a usage session for the user at the resource. It checks
// neither capacity nor reservations.
func (s *SessionService) StartSession(ctx context.Context, userID, resourceID string) (session UsageSession, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	started := time.Now()
	logger := s.loggerWith(ctx, "StartSession",
		"user_id", userID,
		"resource_id", resourceID,
	)
	defer func() {
		s.metrics.session(ctx, "start", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to start session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID).InfoContext(ctx, "session started")
	}()

	vErr := &ValidationError{}
	requireField(vErr, "user_id", userID)
	requireField(vErr, "resource_id", resourceID)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	resource, err := activeResource(ctx, s.catalog, resourceID)
	if err != nil {
		return
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	open, err := s.sessions.GetOpenSession(ctx, userID)
	switch mapped := mapSessionRepoError(err); {
	case mapped == nil:
		err = fmt.Errorf("%w: session %s", ErrAlreadyOpen, open.ID)
		return
	case !errors.Is(mapped, ErrNotFound):
		err = mapped
		return
	}

	session, err = s.sessions.CreateSession(ctx, UsageSession{
		ID:         s.idGenerator(),
		UserID:     userID,
		ResourceID: resource.ID,
		EnteredAt:  s.now(),
	})
	if err != nil {
		err = mapSessionRepoError(err)
		return
	}
	return session, nil
}

// StopSession closes the user's session and records the productivity score.
// A session owned by another user is reported as not found.
func (s *SessionService) StopSession(ctx context.Context, params StopSessionParams) (session UsageSession, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	started := time.Now()
	logger := s.loggerWith(ctx, "StopSession",
		"user_id", params.UserID,
		"session_id", params.SessionID,
	)
	defer func() {
		s.metrics.session(ctx, "stop", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to stop session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session stopped", "score", params.Score)
	}()

	if params.Score < s.policy.MinScore || params.Score > s.policy.MaxScore {
		vErr := &ValidationError{Kind: ErrInvalidScore}
		vErr.add("score", fmt.Sprintf("score must be between %d and %d", s.policy.MinScore, s.policy.MaxScore))
		err = vErr
		return
	}

	unlock := s.locks.Lock(params.UserID)
	defer unlock()

	current, err := s.ownedSession(ctx, params.SessionID, params.UserID)
	if err != nil {
		return
	}
	if !current.Open() {
		err = ErrNotOpen
		return
	}

	exited := s.now()
	score := params.Score
	current.ExitedAt = &exited
	current.Score = &score
	if note := trimNote(params.Note); note != nil {
		current.Note = note
	}

	session, err = s.sessions.CloseSession(ctx, current)
	if err != nil {
		err = mapSessionRepoError(err)
		return
	}
	return session, nil
}

// ActiveSession returns the user's open session or ErrNotFound.
func (s *SessionService) ActiveSession(ctx context.Context, userID string) (UsageSession, error) {
	if s == nil {
		return UsageSession{}, fmt.Errorf("SessionService is nil")
	}
	session, err := s.sessions.GetOpenSession(ctx, userID)
	if err != nil {
		return UsageSession{}, mapSessionRepoError(err)
	}
	return session, nil
}

// ListUserSessions returns the user's sessions, newest first.
func (s *SessionService) ListUserSessions(ctx context.Context, userID string) (sessions []UsageSession, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListUserSessions", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list sessions", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	sessions, err = s.sessions.ListSessions(ctx, SessionRepositoryFilter{UserID: userID})
	if err != nil {
		err = mapSessionRepoError(err)
		return
	}
	return sessions, nil
}

// UserSummary aggregates the user's reservations and closed sessions. The
// average score is rounded to one decimal and is zero when nothing was scored.
func (s *SessionService) UserSummary(ctx context.Context, userID string) (summary UserSummary, err error) {
	if s == nil {
		err = fmt.Errorf("SessionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UserSummary", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to summarise usage", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if strings.TrimSpace(userID) == "" {
		vErr := &ValidationError{}
		vErr.add("user_id", "user_id is required")
		err = vErr
		return
	}

	reservations, err := s.reservations.ListReservations(ctx, ReservationRepositoryFilter{UserID: userID})
	if err != nil {
		err = mapReservationRepoError(err)
		return
	}
	sessions, err := s.sessions.ListSessions(ctx, SessionRepositoryFilter{UserID: userID})
	if err != nil {
		err = mapSessionRepoError(err)
		return
	}

	summary = UserSummary{UserID: userID, TotalReservations: len(reservations), TotalSessions: len(sessions)}
	for _, reservation := range reservations {
		if reservation.Status == ReservationActive {
			summary.ActiveReservations++
		}
	}

	var scoreSum, scored int
	var spent time.Duration
	for _, session := range sessions {
		if session.ExitedAt != nil {
			spent += session.ExitedAt.Sub(session.EnteredAt)
		}
		if session.Score != nil {
			scoreSum += *session.Score
			scored++
		}
	}
	summary.TotalHours = roundTo(spent.Hours(), 1)
	if scored > 0 {
		summary.AverageScore = roundTo(float64(scoreSum)/float64(scored), 1)
	}
	return summary, nil
}

func (s *SessionService) ownedSession(ctx context.Context, sessionID, userID string) (UsageSession, error) {
	if strings.TrimSpace(sessionID) == "" {
		return UsageSession{}, ErrNotFound
	}
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return UsageSession{}, mapSessionRepoError(err)
	}
	if session.UserID != userID {
		return UsageSession{}, ErrNotFound
	}
	return session, nil
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

func mapSessionRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyOpen), errors.Is(err, ErrNotOpen):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrOpenSession):
		return ErrAlreadyOpen
	case errors.Is(err, persistence.ErrSessionClosed):
		return ErrNotOpen
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConflict):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
