// Package models defines the credential aggregate: guest passes and vehicle
// tags sharing one record shape, a monotonic status state machine, and the
// validation rules applied at creation.
package models

import (
	"strings"
	"time"

	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
)

// Kind discriminates the two credential types. It is embedded in the QR
// payload so the verifier can pick the right store without prior context.
type Kind string

const (
	KindGuest   Kind = "guest"
	KindVehicle Kind = "vehicle"
)

var validKinds = map[Kind]bool{
	KindGuest:   true,
	KindVehicle: true,
}

// ParseKind constructs a Kind from external input.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !validKinds[k] {
		return "", dErrors.Newf(dErrors.CodeValidation, "unsupported credential kind %q", s)
	}
	return k, nil
}

// Status is the credential lifecycle state.
//
// Transitions:
//   - Pending  -> Approved | Rejected (administrator decision)
//   - Pending  -> Expired             (validity window elapsed before decision)
//   - Approved -> Expired             (validity window elapsed)
//   - Approved -> Used                (guest pass consumed at the gate, policy-gated)
//
// Rejected, Expired and Used are terminal. Re-submission after rejection
// creates a new record; the old one is never mutated backward.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
	StatusUsed     Status = "used"
)

var validStatuses = map[Status]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
	StatusExpired:  true,
	StatusUsed:     true,
}

// ParseStatus constructs a Status from external input (list filters).
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeValidation, "unsupported status %q", s)
	}
	return st, nil
}

// CanTransitionTo reports whether the state machine permits the move.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusApproved || target == StatusRejected || target == StatusExpired
	case StatusApproved:
		return target == StatusExpired || target == StatusUsed
	default:
		return false
	}
}

// IsActive reports whether the credential still occupies its PIN. Only active
// credentials participate in the PIN uniqueness constraint; expired, rejected
// and used records release their code for reuse.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusApproved
}

// Decision is an administrator verdict on a pending credential.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ParseDecision constructs a Decision from external input.
func ParseDecision(s string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(s)))
	if d != DecisionApproved && d != DecisionRejected {
		return "", dErrors.Newf(dErrors.CodeValidation, "decision must be approved or rejected, got %q", s)
	}
	return d, nil
}

// GuestDetails describes the visitor a guest pass admits.
type GuestDetails struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email,omitempty"`
	Purpose        string `json:"purpose"`
	NumberOfGuests int    `json:"number_of_guests"`
}

func (g GuestDetails) validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "guest name is required")
	}
	if strings.TrimSpace(g.Phone) == "" {
		return dErrors.New(dErrors.CodeValidation, "guest phone is required")
	}
	if strings.TrimSpace(g.Purpose) == "" {
		return dErrors.New(dErrors.CodeValidation, "visit purpose is required")
	}
	if g.NumberOfGuests < 1 {
		return dErrors.New(dErrors.CodeValidation, "number of guests must be at least 1")
	}
	return nil
}

// VehicleDetails describes the vehicle a tag (or a guest's car) refers to.
type VehicleDetails struct {
	Brand              string `json:"brand,omitempty"`
	Model              string `json:"model,omitempty"`
	Color              string `json:"color,omitempty"`
	RegistrationNumber string `json:"registration_number"`
}

func (v VehicleDetails) validate() error {
	if strings.TrimSpace(v.RegistrationNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "vehicle registration number is required")
	}
	return nil
}

// Credential is the aggregate shared by guest passes and vehicle tags.
type Credential struct {
	ID         id.CredentialID `json:"id"`
	Kind       Kind            `json:"kind"`
	ResidentID id.ResidentID   `json:"resident_id"`
	SocietyID  id.SocietyID    `json:"society_id"`
	Status     Status          `json:"status"`

	// PINCode is a 6-digit fallback code for manual entry at the gate. It is a
	// display secret, not a cryptographic one, and is unique among active
	// credentials.
	PINCode string `json:"pin_code"`

	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`

	// QRPayload is the encoded blob handed back to the resident for printing
	// and scanning.
	QRPayload string `json:"qr_payload"`

	// Asset references returned by the external renderer.
	QRImageRef        string `json:"qr_image_ref,omitempty"`
	ShareableImageRef string `json:"shareable_image_ref,omitempty"`

	// Decision fields, set only by the lifecycle manager.
	ApprovedBy string     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	Remarks    string     `json:"remarks,omitempty"`

	// Kind-specific details. Guest passes may optionally carry vehicle details
	// for the visitor's car; vehicle tags always carry them.
	Guest       *GuestDetails   `json:"guest_details,omitempty"`
	Vehicle     *VehicleDetails `json:"vehicle_details,omitempty"`
	VehicleType string          `json:"vehicle_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate enforces the creation invariants for the credential's kind.
func (c *Credential) Validate() error {
	if c.ResidentID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "resident id is required")
	}
	if c.SocietyID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "society id is required")
	}
	if !validKinds[c.Kind] {
		return dErrors.New(dErrors.CodeValidation, "credential kind is required")
	}
	if c.ValidFrom.IsZero() || c.ValidUntil.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "validity window is required")
	}
	if c.ValidFrom.After(c.ValidUntil) {
		return dErrors.New(dErrors.CodeValidation, "valid_from must not be after valid_until")
	}

	switch c.Kind {
	case KindGuest:
		if c.Guest == nil {
			return dErrors.New(dErrors.CodeValidation, "guest details are required for guest passes")
		}
		if err := c.Guest.validate(); err != nil {
			return err
		}
		if c.Vehicle != nil {
			if err := c.Vehicle.validate(); err != nil {
				return err
			}
		}
	case KindVehicle:
		if c.Vehicle == nil {
			return dErrors.New(dErrors.CodeValidation, "vehicle details are required for vehicle tags")
		}
		if err := c.Vehicle.validate(); err != nil {
			return err
		}
		if strings.TrimSpace(c.VehicleType) == "" {
			return dErrors.New(dErrors.CodeValidation, "vehicle type is required for vehicle tags")
		}
	}
	return nil
}

// WindowElapsed reports whether the validity window has passed at the given time.
func (c *Credential) WindowElapsed(now time.Time) bool {
	return now.After(c.ValidUntil)
}

// CanDecide checks that an administrator decision is still legal.
func (c *Credential) CanDecide() error {
	if c.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"credential is %s, decisions are only legal while pending", c.Status)
	}
	return nil
}

// ApplyDecision records the administrator's verdict. Call CanDecide first.
func (c *Credential) ApplyDecision(decidedBy string, decision Decision, remarks string, now time.Time) {
	switch decision {
	case DecisionApproved:
		c.Status = StatusApproved
	case DecisionRejected:
		c.Status = StatusRejected
	}
	c.ApprovedBy = decidedBy
	approvedAt := now
	c.ApprovedAt = &approvedAt
	c.Remarks = remarks
	c.UpdatedAt = now
}

// CanExpire reports whether the lazy-expiry transition applies to the stored
// status. Rejected and Used are terminal and keep their status even after the
// window lapses.
func (c *Credential) CanExpire() bool {
	return c.Status.CanTransitionTo(StatusExpired)
}

// ApplyExpiry moves the credential to Expired.
func (c *Credential) ApplyExpiry(now time.Time) {
	c.Status = StatusExpired
	c.UpdatedAt = now
}

// CanConsume reports whether a successful gate scan may consume the pass.
// Only approved guest passes are consumable; vehicle tags stay re-scannable.
func (c *Credential) CanConsume() bool {
	return c.Kind == KindGuest && c.Status == StatusApproved
}

// ApplyConsumption marks a single-entry guest pass as used.
func (c *Credential) ApplyConsumption(now time.Time) {
	c.Status = StatusUsed
	c.UpdatedAt = now
}

// Clone returns a deep copy so stores can hand out records without aliasing
// their internal state.
func (c *Credential) Clone() *Credential {
	clone := *c
	if c.Guest != nil {
		guest := *c.Guest
		clone.Guest = &guest
	}
	if c.Vehicle != nil {
		vehicle := *c.Vehicle
		clone.Vehicle = &vehicle
	}
	if c.ApprovedAt != nil {
		approvedAt := *c.ApprovedAt
		clone.ApprovedAt = &approvedAt
	}
	return &clone
}
