// Package qrcode encodes a credential's identifying fields into the compact
// payload embedded in its QR code, and decodes scanned payloads back into
// structured fields.
//
// The payload is base64url-encoded JSON with an explicit kind discriminator,
// so the verifier can dispatch to the right store without prior context. A
// compatibility path accepts the legacy shape, where the credential type was
// inferred from whether a passId or tagId key was present; legacy payloads are
// converted to the tagged form immediately at the decode boundary. Rendering a
// scannable image is the asset collaborator's job, not the codec's.
package qrcode

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"gatepass/internal/credential/models"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
)

// Payload is the decoded, validated form of a scanned QR code.
type Payload struct {
	Kind               models.Kind
	CredentialID       id.CredentialID
	SocietyID          id.SocietyID
	PIN                string
	ValidUntil         time.Time
	GuestName          string
	RegistrationNumber string
}

// wirePayload is the JSON shape on the wire. Legacy fields exist only for
// decode compatibility; Encode never writes them.
type wirePayload struct {
	Kind               string    `json:"kind,omitempty"`
	CredentialID       string    `json:"credential_id,omitempty"`
	SocietyID          string    `json:"society_id,omitempty"`
	PIN                string    `json:"pin,omitempty"`
	ValidUntil         time.Time `json:"valid_until,omitzero"`
	GuestName          string    `json:"guest_name,omitempty"`
	RegistrationNumber string    `json:"registration_number,omitempty"`

	// Legacy discriminator convention: the identifier key implied the kind.
	LegacyPassID string `json:"passId,omitempty"`
	LegacyTagID  string `json:"tagId,omitempty"`
}

// Encode serializes the credential's identifying fields. Encoding is
// deterministic (struct field order) and round-trip lossless for every field
// in Payload.
func Encode(c *models.Credential) (string, error) {
	wire := wirePayload{
		Kind:         string(c.Kind),
		CredentialID: c.ID.String(),
		SocietyID:    c.SocietyID.String(),
		PIN:          c.PINCode,
		ValidUntil:   c.ValidUntil.UTC(),
	}
	switch c.Kind {
	case models.KindGuest:
		if c.Guest == nil {
			return "", dErrors.New(dErrors.CodeValidation, "guest pass has no guest details to encode")
		}
		wire.GuestName = c.Guest.Name
	case models.KindVehicle:
		if c.Vehicle == nil {
			return "", dErrors.New(dErrors.CodeValidation, "vehicle tag has no vehicle details to encode")
		}
		wire.RegistrationNumber = c.Vehicle.RegistrationNumber
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "cannot encode credential kind %q", c.Kind)
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "marshal qr payload")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode parses a scanned payload. It accepts the current base64url form and,
// for the migration window, bare legacy JSON. Anything else fails with
// CodeMalformedPayload; the caller should treat that as a potential tamper or
// garbage-scan signal, not an internal fault.
func Decode(scanned string) (Payload, error) {
	if scanned == "" {
		return Payload{}, dErrors.New(dErrors.CodeMalformedPayload, "empty payload")
	}

	raw := []byte(scanned)
	if decoded, err := base64.RawURLEncoding.DecodeString(scanned); err == nil {
		raw = decoded
	} else if decoded, err := base64.URLEncoding.DecodeString(scanned); err == nil {
		raw = decoded
	}

	var wire wirePayload
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Payload{}, dErrors.New(dErrors.CodeMalformedPayload, "payload is not valid JSON")
	}
	return fromWire(wire)
}

func fromWire(wire wirePayload) (Payload, error) {
	kind, credentialID, err := resolveIdentity(wire)
	if err != nil {
		return Payload{}, err
	}

	cid, err := id.ParseCredentialID(credentialID)
	if err != nil {
		return Payload{}, dErrors.New(dErrors.CodeMalformedPayload, "payload carries an invalid credential id")
	}

	payload := Payload{
		Kind:               kind,
		CredentialID:       cid,
		PIN:                wire.PIN,
		ValidUntil:         wire.ValidUntil,
		GuestName:          wire.GuestName,
		RegistrationNumber: wire.RegistrationNumber,
	}

	// Legacy payloads may omit the society scope; leave it zero and let the
	// verifier fall back to the stored record.
	if wire.SocietyID != "" {
		sid, err := id.ParseSocietyID(wire.SocietyID)
		if err != nil {
			return Payload{}, dErrors.New(dErrors.CodeMalformedPayload, "payload carries an invalid society id")
		}
		payload.SocietyID = sid
	}
	return payload, nil
}

// resolveIdentity applies the discriminator rules: an explicit kind is
// authoritative; otherwise the legacy identifier key implies the kind.
func resolveIdentity(wire wirePayload) (models.Kind, string, error) {
	if wire.Kind != "" {
		kind, err := models.ParseKind(wire.Kind)
		if err != nil {
			return "", "", dErrors.Newf(dErrors.CodeMalformedPayload, "unknown credential kind %q", wire.Kind)
		}
		credentialID := wire.CredentialID
		if credentialID == "" {
			// Tagged payload with a legacy identifier key.
			switch kind {
			case models.KindGuest:
				credentialID = wire.LegacyPassID
			case models.KindVehicle:
				credentialID = wire.LegacyTagID
			}
		}
		if credentialID == "" {
			return "", "", dErrors.New(dErrors.CodeMalformedPayload, "payload carries no credential id")
		}
		return kind, credentialID, nil
	}

	switch {
	case wire.LegacyPassID != "" && wire.LegacyTagID != "":
		return "", "", dErrors.New(dErrors.CodeMalformedPayload, "payload carries both passId and tagId")
	case wire.LegacyPassID != "":
		return models.KindGuest, wire.LegacyPassID, nil
	case wire.LegacyTagID != "":
		return models.KindVehicle, wire.LegacyTagID, nil
	default:
		return "", "", dErrors.New(dErrors.CodeMalformedPayload, "payload carries no discriminator")
	}
}
