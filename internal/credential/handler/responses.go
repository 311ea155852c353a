package handler

import (
	"time"

	"gatepass/internal/credential/models"
	"gatepass/internal/gatelog"
)

// credentialResponse is the external projection of a credential. Internal
// bookkeeping fields stay internal.
type credentialResponse struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	ResidentID string `json:"resident_id"`
	SocietyID  string `json:"society_id"`

	PINCode   string `json:"pin_code"`
	QRPayload string `json:"qr_payload"`

	QRImageRef        string `json:"qr_image_ref,omitempty"`
	ShareableImageRef string `json:"shareable_image_ref,omitempty"`

	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`

	ApprovedBy string     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	Remarks    string     `json:"remarks,omitempty"`

	Guest       *models.GuestDetails   `json:"guest_details,omitempty"`
	Vehicle     *models.VehicleDetails `json:"vehicle_details,omitempty"`
	VehicleType string                 `json:"vehicle_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toResponse(c *models.Credential) credentialResponse {
	return credentialResponse{
		ID:                c.ID.String(),
		Kind:              string(c.Kind),
		Status:            string(c.Status),
		ResidentID:        c.ResidentID.String(),
		SocietyID:         c.SocietyID.String(),
		PINCode:           c.PINCode,
		QRPayload:         c.QRPayload,
		QRImageRef:        c.QRImageRef,
		ShareableImageRef: c.ShareableImageRef,
		ValidFrom:         c.ValidFrom,
		ValidUntil:        c.ValidUntil,
		ApprovedBy:        c.ApprovedBy,
		ApprovedAt:        c.ApprovedAt,
		Remarks:           c.Remarks,
		Guest:             c.Guest,
		Vehicle:           c.Vehicle,
		VehicleType:       c.VehicleType,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

type listResponse struct {
	Credentials []credentialResponse `json:"credentials"`
	Count       int                  `json:"count"`
}

// scanEntryResponse is one gate-log line. Malformed scans have no credential
// or device attribution, so those fields are omitted when empty.
type scanEntryResponse struct {
	ID           string    `json:"id"`
	CredentialID string    `json:"credential_id,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
	DeviceName   string    `json:"device_name,omitempty"`
	Result       string    `json:"result"`
	Reason       string    `json:"reason,omitempty"`
	ScannedAt    time.Time `json:"scanned_at"`
}

func toScanResponse(e gatelog.Entry) scanEntryResponse {
	resp := scanEntryResponse{
		ID:         e.ID.String(),
		DeviceName: e.DeviceName,
		Result:     string(e.Result),
		Reason:     e.Reason,
		ScannedAt:  e.ScannedAt,
	}
	if !e.CredentialID.IsZero() {
		resp.CredentialID = e.CredentialID.String()
	}
	if !e.DeviceID.IsZero() {
		resp.DeviceID = e.DeviceID.String()
	}
	return resp
}

type scanListResponse struct {
	Scans []scanEntryResponse `json:"scans"`
	Count int                 `json:"count"`
}
