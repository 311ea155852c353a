package models

import (
	"time"

	id "gatepass/pkg/domain"
)

// CreateRequest carries everything needed to issue a credential. Kind-specific
// validation happens on the assembled Credential.
type CreateRequest struct {
	Kind        Kind            `json:"kind"`
	ResidentID  id.ResidentID   `json:"resident_id"`
	SocietyID   id.SocietyID    `json:"society_id"`
	Guest       *GuestDetails   `json:"guest_details,omitempty"`
	Vehicle     *VehicleDetails `json:"vehicle_details,omitempty"`
	VehicleType string          `json:"vehicle_type,omitempty"`
	ValidFrom   time.Time       `json:"valid_from"`
	ValidUntil  time.Time       `json:"valid_until"`
}

// DecideRequest carries an administrator's verdict on a pending credential.
type DecideRequest struct {
	CredentialID id.CredentialID
	DecidedBy    string
	// DeciderSocietyID scopes the decision: it must match the credential's
	// society or the decision fails with scope_mismatch.
	DeciderSocietyID id.SocietyID
	Decision         Decision
	Remarks          string
}

// ListFilter narrows ListCredentials. Nil fields match everything.
type ListFilter struct {
	ResidentID *id.ResidentID
	SocietyID  *id.SocietyID
	Status     *Status
}

// Matches reports whether a credential satisfies the filter.
func (f ListFilter) Matches(c *Credential) bool {
	if f.ResidentID != nil && c.ResidentID != *f.ResidentID {
		return false
	}
	if f.SocietyID != nil && c.SocietyID != *f.SocietyID {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	return true
}
