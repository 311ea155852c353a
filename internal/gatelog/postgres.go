package gatelog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	id "gatepass/pkg/domain"
)

// Schema for the scan log. Append-only; no updates or deletes.
const Schema = `
CREATE TABLE IF NOT EXISTS gate_scans (
	id            UUID PRIMARY KEY,
	credential_id UUID NOT NULL,
	society_id    UUID NOT NULL,
	device_id     UUID NOT NULL,
	device_name   TEXT NOT NULL DEFAULT '',
	result        TEXT NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	scanned_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS gate_scans_society ON gate_scans (society_id, scanned_at DESC);
`

// Postgres stores scan entries through a pgx pool. Appends are high volume
// relative to the credential tables, hence the separate pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the scan table if missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure gate_scans schema: %w", err)
	}
	return nil
}

func (s *Postgres) Append(ctx context.Context, entry Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ScannedAt.IsZero() {
		entry.ScannedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gate_scans (id, credential_id, society_id, device_id, device_name, result, reason, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID,
		uuid.UUID(entry.CredentialID),
		uuid.UUID(entry.SocietyID),
		uuid.UUID(entry.DeviceID),
		entry.DeviceName,
		string(entry.Result),
		entry.Reason,
		entry.ScannedAt,
	)
	if err != nil {
		return fmt.Errorf("append gate scan: %w", err)
	}
	return nil
}

func (s *Postgres) ListBySociety(ctx context.Context, societyID id.SocietyID, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, credential_id, society_id, device_id, device_name, result, reason, scanned_at
		FROM gate_scans
		WHERE society_id = $1
		ORDER BY scanned_at DESC
		LIMIT $2`,
		uuid.UUID(societyID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list gate scans: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			credID     uuid.UUID
			societyRaw uuid.UUID
			deviceRaw  uuid.UUID
			result     string
		)
		if err := rows.Scan(&e.ID, &credID, &societyRaw, &deviceRaw, &e.DeviceName, &result, &e.Reason, &e.ScannedAt); err != nil {
			return nil, fmt.Errorf("scan gate scan row: %w", err)
		}
		e.CredentialID = id.CredentialID(credID)
		e.SocietyID = id.SocietyID(societyRaw)
		e.DeviceID = id.DeviceID(deviceRaw)
		e.Result = Result(result)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
