// Package store persists credentials. Implementations return
// pkg/platform/sentinel errors for infrastructure facts; services translate
// them into domain errors.
package store

import (
	"context"

	"gatepass/internal/credential/models"
	id "gatepass/pkg/domain"
)

// CredentialStore is the persistence contract shared by the in-memory and
// PostgreSQL implementations.
//
// PIN uniqueness lives here, not in the allocator: CreateIfPINAvailable must
// atomically reject an insert whose PIN collides with an active credential of
// the same kind, returning sentinel.ErrAlreadyUsed so the allocator can retry
// with a fresh code.
type CredentialStore interface {
	// CreateIfPINAvailable persists a new credential. Fails with
	// sentinel.ErrAlreadyUsed when the PIN is held by an active credential of
	// the same kind, and sentinel.ErrConflict when the ID already exists.
	CreateIfPINAvailable(ctx context.Context, cred *models.Credential) error

	// FindByID fetches a credential of the given kind. A record that exists
	// under the other kind is sentinel.ErrNotFound: the scan payload's
	// discriminator decides which collection is searched.
	FindByID(ctx context.Context, kind models.Kind, credID id.CredentialID) (*models.Credential, error)

	// FindAnyByID fetches a credential regardless of kind (resident-facing
	// delete and detail reads).
	FindAnyByID(ctx context.Context, credID id.CredentialID) (*models.Credential, error)

	// List returns credentials matching the filter, newest first.
	List(ctx context.Context, filter models.ListFilter) ([]*models.Credential, error)

	// Execute atomically runs validate then mutate against the stored record,
	// holding the store's lock (mutex or row lock) across both, and returns
	// the updated credential. A validate error aborts without mutating.
	// Conditional status updates (decision, lazy expiry, consumption) go
	// through here so concurrent writers cannot corrupt the state machine.
	Execute(ctx context.Context, kind models.Kind, credID id.CredentialID,
		validate func(*models.Credential) error,
		mutate func(*models.Credential)) (*models.Credential, error)

	// Delete removes the credential. Used by resident-initiated deletes and by
	// the factory's compensating rollback.
	Delete(ctx context.Context, credID id.CredentialID) error
}
