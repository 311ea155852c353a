package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gatepass/internal/credential/models"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
)

// Schema creates the credentials table. The partial unique index is the PIN
// uniqueness constraint: only active credentials occupy their code, so
// expired, rejected and used records release PINs for reuse without a sweep.
const Schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id                  UUID PRIMARY KEY,
	kind                TEXT        NOT NULL,
	resident_id         UUID        NOT NULL,
	society_id          UUID        NOT NULL,
	status              TEXT        NOT NULL,
	pin_code            TEXT        NOT NULL,
	valid_from          TIMESTAMPTZ NOT NULL,
	valid_until         TIMESTAMPTZ NOT NULL,
	qr_payload          TEXT        NOT NULL DEFAULT '',
	qr_image_ref        TEXT        NOT NULL DEFAULT '',
	shareable_image_ref TEXT        NOT NULL DEFAULT '',
	approved_by         TEXT        NOT NULL DEFAULT '',
	approved_at         TIMESTAMPTZ,
	remarks             TEXT        NOT NULL DEFAULT '',
	vehicle_type        TEXT        NOT NULL DEFAULT '',
	details             JSONB       NOT NULL DEFAULT '{}',
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS credentials_active_pin
	ON credentials (kind, pin_code)
	WHERE status IN ('pending', 'approved');
CREATE INDEX IF NOT EXISTS credentials_resident ON credentials (resident_id);
CREATE INDEX IF NOT EXISTS credentials_society ON credentials (society_id);
`

const pqUniqueViolation = "23505"

// PostgresStore persists credentials in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies the table and index definitions.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure credentials schema: %w", err)
	}
	return nil
}

// detailsDoc is the JSONB envelope for kind-specific fields.
type detailsDoc struct {
	Guest   *models.GuestDetails   `json:"guest,omitempty"`
	Vehicle *models.VehicleDetails `json:"vehicle,omitempty"`
}

func (s *PostgresStore) CreateIfPINAvailable(ctx context.Context, cred *models.Credential) error {
	details, err := json.Marshal(detailsDoc{Guest: cred.Guest, Vehicle: cred.Vehicle})
	if err != nil {
		return fmt.Errorf("marshal credential details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (
			id, kind, resident_id, society_id, status, pin_code,
			valid_from, valid_until, qr_payload, qr_image_ref, shareable_image_ref,
			approved_by, approved_at, remarks, vehicle_type, details,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		cred.ID.String(), string(cred.Kind), cred.ResidentID.String(), cred.SocietyID.String(),
		string(cred.Status), cred.PINCode,
		cred.ValidFrom, cred.ValidUntil, cred.QRPayload, cred.QRImageRef, cred.ShareableImageRef,
		cred.ApprovedBy, nullTime(cred.ApprovedAt), cred.Remarks, cred.VehicleType, details,
		cred.CreatedAt, cred.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			if pqErr.Constraint == "credentials_active_pin" {
				return sentinel.ErrAlreadyUsed
			}
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

const selectColumns = `
	id, kind, resident_id, society_id, status, pin_code,
	valid_from, valid_until, qr_payload, qr_image_ref, shareable_image_ref,
	approved_by, approved_at, remarks, vehicle_type, details,
	created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, kind models.Kind, credID id.CredentialID) (*models.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM credentials WHERE id = $1 AND kind = $2`,
		credID.String(), string(kind))
	return scanCredential(row)
}

func (s *PostgresStore) FindAnyByID(ctx context.Context, credID id.CredentialID) (*models.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM credentials WHERE id = $1`,
		credID.String())
	return scanCredential(row)
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Credential, error) {
	query := `SELECT ` + selectColumns + ` FROM credentials WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.ResidentID != nil {
		query += ` AND resident_id = ` + arg(filter.ResidentID.String())
	}
	if filter.SocietyID != nil {
		query += ` AND society_id = ` + arg(filter.SocietyID.String())
	}
	if filter.Status != nil {
		query += ` AND status = ` + arg(string(*filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []*models.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

// Execute runs validate and mutate under a row lock (SELECT ... FOR UPDATE),
// so decisions, lazy expiry and consumption are conditional updates: the loser
// of a race observes the new state in validate and no-ops or errors there.
func (s *PostgresStore) Execute(ctx context.Context, kind models.Kind, credID id.CredentialID,
	validate func(*models.Credential) error,
	mutate func(*models.Credential)) (*models.Credential, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM credentials WHERE id = $1 AND kind = $2 FOR UPDATE`,
		credID.String(), string(kind))
	cred, err := scanCredential(row)
	if err != nil {
		return nil, err
	}

	if err := validate(cred); err != nil {
		return nil, err
	}
	mutate(cred)

	details, err := json.Marshal(detailsDoc{Guest: cred.Guest, Vehicle: cred.Vehicle})
	if err != nil {
		return nil, fmt.Errorf("marshal credential details: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE credentials SET
			status = $2, qr_payload = $3, qr_image_ref = $4, shareable_image_ref = $5,
			approved_by = $6, approved_at = $7, remarks = $8, details = $9, updated_at = $10
		WHERE id = $1`,
		cred.ID.String(), string(cred.Status), cred.QRPayload, cred.QRImageRef, cred.ShareableImageRef,
		cred.ApprovedBy, nullTime(cred.ApprovedAt), cred.Remarks, details, cred.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit credential update: %w", err)
	}
	return cred, nil
}

func (s *PostgresStore) Delete(ctx context.Context, credID id.CredentialID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = $1`, credID.String())
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.Credential, error) {
	var (
		cred       models.Credential
		idStr      string
		kind       string
		residentID string
		societyID  string
		status     string
		approvedAt sql.NullTime
		details    []byte
	)
	err := row.Scan(
		&idStr, &kind, &residentID, &societyID, &status, &cred.PINCode,
		&cred.ValidFrom, &cred.ValidUntil, &cred.QRPayload, &cred.QRImageRef, &cred.ShareableImageRef,
		&cred.ApprovedBy, &approvedAt, &cred.Remarks, &cred.VehicleType, &details,
		&cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan credential: %w", err)
	}

	credID, err := id.ParseCredentialID(idStr)
	if err != nil {
		return nil, fmt.Errorf("stored credential id %q: %w", idStr, err)
	}
	resID, err := id.ParseResidentID(residentID)
	if err != nil {
		return nil, fmt.Errorf("stored resident id %q: %w", residentID, err)
	}
	socID, err := id.ParseSocietyID(societyID)
	if err != nil {
		return nil, fmt.Errorf("stored society id %q: %w", societyID, err)
	}
	cred.ID = credID
	cred.Kind = models.Kind(kind)
	cred.ResidentID = resID
	cred.SocietyID = socID
	cred.Status = models.Status(status)
	if approvedAt.Valid {
		t := approvedAt.Time
		cred.ApprovedAt = &t
	}

	var doc detailsDoc
	if len(details) > 0 {
		if err := json.Unmarshal(details, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal credential details: %w", err)
		}
	}
	cred.Guest = doc.Guest
	cred.Vehicle = doc.Vehicle
	return &cred, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
