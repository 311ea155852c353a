package gatelog

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "gatepass/pkg/domain"
)

// Result classifies the outcome of a gate scan.
type Result string

const (
	ResultAllowed   Result = "allowed"
	ResultDenied    Result = "denied"
	ResultMalformed Result = "malformed"
)

// Entry is one scan event recorded at a gate. Entries are append-only and
// used for society-level audit queries.
type Entry struct {
	ID           uuid.UUID
	CredentialID id.CredentialID
	SocietyID    id.SocietyID
	DeviceID     id.DeviceID
	DeviceName   string
	Result       Result
	Reason       string
	ScannedAt    time.Time
}

// Store persists scan entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListBySociety(ctx context.Context, societyID id.SocietyID, limit int) ([]Entry, error)
}
