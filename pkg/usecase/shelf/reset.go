package shelf

import (
	"context"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
)

// Reset deletes the whole session record and reports whether one existed.
// Resetting an absent session is not an error.
func (uc *UseCase) Reset(ctx context.Context) (deleted bool, err error) {
	defer func() {
		uc.emit(ctx, auditEntry{operation: "reset", outcome: "deleted=" + strconv.FormatBool(deleted)}, err)
	}()

	deleted, err = uc.sessions.DeleteSession(ctx, uc.sessionID)
	if err != nil {
		return false, goerr.Wrap(err, "failed to reset session", goerr.V("session_id", uc.sessionID))
	}

	logging.From(ctx).Debug("session reset", "session_id", uc.sessionID, "deleted", deleted)
	return deleted, nil
}
