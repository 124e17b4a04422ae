package shelf

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/audit"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/repository"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
)

// UseCase is the Reservation Engine. It is the only writer of the spot
// inventory and of session records. Every operation returns the session
// as stored after the operation.
type UseCase struct {
	spots     repository.SpotRepository
	sessions  repository.SessionRepository
	sessionID model.SessionID
	audit     audit.Sink
}

type Option func(*UseCase)

// WithSessionID binds the engine to a conversation other than the desk default
func WithSessionID(id model.SessionID) Option {
	return func(uc *UseCase) {
		uc.sessionID = id
	}
}

// WithAuditSink sets the sink that receives one event per operation
func WithAuditSink(sink audit.Sink) Option {
	return func(uc *UseCase) {
		uc.audit = sink
	}
}

func New(spots repository.SpotRepository, sessions repository.SessionRepository, opts ...Option) *UseCase {
	uc := &UseCase{
		spots:     spots,
		sessions:  sessions,
		sessionID: model.DefaultSessionID,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// SessionID returns the conversation this engine is bound to
func (uc *UseCase) SessionID() model.SessionID {
	return uc.sessionID
}

// ForSession returns an engine sharing the same stores but bound to another conversation
func (uc *UseCase) ForSession(id model.SessionID) *UseCase {
	c := *uc
	c.sessionID = id
	return &c
}

// Snapshot returns the current session, creating an empty one if absent
func (uc *UseCase) Snapshot(ctx context.Context) (*model.Session, error) {
	s, err := uc.sessions.GetOrCreateSession(ctx, uc.sessionID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session", goerr.V("session_id", uc.sessionID))
	}
	return s, nil
}

func (uc *UseCase) update(ctx context.Context, fn func(s *model.Session)) (*model.Session, error) {
	s, err := uc.sessions.UpdateSession(ctx, uc.sessionID, func(s *model.Session) error {
		fn(s)
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update session", goerr.V("session_id", uc.sessionID))
	}
	return s, nil
}

type auditEntry struct {
	operation string
	apartment string
	spotID    model.SpotID
	outcome   string
}

// emit reports the call to the audit sink. Sink failures are logged only.
func (uc *UseCase) emit(ctx context.Context, entry auditEntry, opErr error) {
	logger := logging.From(ctx)
	if opErr != nil {
		logger.Warn("shelf operation failed", "operation", entry.operation, "session_id", uc.sessionID, "error", opErr)
	}

	if uc.audit == nil {
		return
	}

	event := &model.AuditEvent{
		ID:        model.NewAuditEventID(),
		Operation: entry.operation,
		SessionID: uc.sessionID,
		Apartment: entry.apartment,
		SpotID:    entry.spotID,
		Outcome:   entry.outcome,
		CreatedAt: time.Now().UTC(),
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}

	if err := uc.audit.Record(ctx, event); err != nil {
		logger.Error("failed to record audit event", "error", err, "operation", entry.operation)
	}
}
