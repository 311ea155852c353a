package handler

import (
	"time"

	"gatepass/internal/credential/models"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
)

// createRequest is the wire shape of POST /credentials. The resident identity
// comes from the token, not the body.
type createRequest struct {
	Kind        string                 `json:"kind"`
	Guest       *models.GuestDetails   `json:"guest_details,omitempty"`
	Vehicle     *models.VehicleDetails `json:"vehicle_details,omitempty"`
	VehicleType string                 `json:"vehicle_type,omitempty"`
	ValidFrom   time.Time              `json:"valid_from"`
	ValidUntil  time.Time              `json:"valid_until"`
}

func (r createRequest) toModel(residentID id.ResidentID, societyID id.SocietyID) (models.CreateRequest, error) {
	kind, err := models.ParseKind(r.Kind)
	if err != nil {
		return models.CreateRequest{}, err
	}
	return models.CreateRequest{
		Kind:        kind,
		ResidentID:  residentID,
		SocietyID:   societyID,
		Guest:       r.Guest,
		Vehicle:     r.Vehicle,
		VehicleType: r.VehicleType,
		ValidFrom:   r.ValidFrom,
		ValidUntil:  r.ValidUntil,
	}, nil
}

// decideRequest is the wire shape of POST /credentials/{id}/decision.
type decideRequest struct {
	Decision string `json:"decision"`
	Remarks  string `json:"remarks,omitempty"`
}

func (r decideRequest) toModel(credID id.CredentialID, decidedBy string, societyID id.SocietyID) (models.DecideRequest, error) {
	decision, err := models.ParseDecision(r.Decision)
	if err != nil {
		return models.DecideRequest{}, err
	}
	return models.DecideRequest{
		CredentialID:     credID,
		DecidedBy:        decidedBy,
		DeciderSocietyID: societyID,
		Decision:         decision,
		Remarks:          r.Remarks,
	}, nil
}

// verifyRequest is the wire shape of POST /scan/verify.
type verifyRequest struct {
	Payload string `json:"payload"`
}

func (r verifyRequest) validate() error {
	if r.Payload == "" {
		return dErrors.New(dErrors.CodeBadRequest, "payload is required")
	}
	return nil
}
