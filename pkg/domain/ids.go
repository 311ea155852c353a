// Package domain holds typed identifiers shared across the service.
//
// IDs are distinct uuid-backed types so a ResidentID can never be passed where
// a SocietyID is expected; the compiler enforces the distinction. Construct
// them via the Parse* functions at trust boundaries; direct casting bypasses
// validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "gatepass/pkg/domain-errors"
)

type (
	// CredentialID identifies a guest pass or vehicle tag.
	CredentialID uuid.UUID
	// ResidentID identifies the resident who requested a credential.
	ResidentID uuid.UUID
	// SocietyID identifies the housing society a credential is scoped to.
	SocietyID uuid.UUID
	// DeviceID identifies a registered gate scanning device.
	DeviceID uuid.UUID
)

func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (id ResidentID) String() string   { return uuid.UUID(id).String() }
func (id SocietyID) String() string    { return uuid.UUID(id).String() }
func (id DeviceID) String() string     { return uuid.UUID(id).String() }

func (id CredentialID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ResidentID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SocietyID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DeviceID) IsZero() bool     { return uuid.UUID(id) == uuid.Nil }

// NewCredentialID allocates a fresh credential identifier.
func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s is required", what)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s is not a valid id", what)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s cannot be the zero id", what)
	}
	return parsed, nil
}

// ParseCredentialID validates external input into a CredentialID.
func ParseCredentialID(s string) (CredentialID, error) {
	parsed, err := parseUUID(s, "credential id")
	return CredentialID(parsed), err
}

// ParseResidentID validates external input into a ResidentID.
func ParseResidentID(s string) (ResidentID, error) {
	parsed, err := parseUUID(s, "resident id")
	return ResidentID(parsed), err
}

// ParseSocietyID validates external input into a SocietyID.
func ParseSocietyID(s string) (SocietyID, error) {
	parsed, err := parseUUID(s, "society id")
	return SocietyID(parsed), err
}

// ParseDeviceID validates external input into a DeviceID.
func ParseDeviceID(s string) (DeviceID, error) {
	parsed, err := parseUUID(s, "device id")
	return DeviceID(parsed), err
}
