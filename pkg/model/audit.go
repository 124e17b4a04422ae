package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditEventID string

// NewAuditEventID generates a new unique AuditEventID
func NewAuditEventID() AuditEventID {
	return AuditEventID(uuid.New().String())
}

// AuditEvent records one Reservation Engine call
type AuditEvent struct {
	ID        AuditEventID `json:"id" bigquery:"id"`
	Operation string       `json:"operation" bigquery:"operation"`
	SessionID SessionID    `json:"session_id" bigquery:"session_id"`
	Apartment string       `json:"apartment,omitempty" bigquery:"apartment"`
	SpotID    SpotID       `json:"spot_id,omitempty" bigquery:"spot_id"`
	Outcome   string       `json:"outcome,omitempty" bigquery:"outcome"`
	Error     string       `json:"error,omitempty" bigquery:"error"`
	CreatedAt time.Time    `json:"created_at" bigquery:"created_at"`
}
