package service

import (
	"context"
	"errors"
	"time"

	"gatepass/internal/credential/models"
	"gatepass/internal/credential/qrcode"
	"gatepass/internal/gatelog"
	"gatepass/internal/notify"
	"gatepass/internal/verifycache"
	id "gatepass/pkg/domain"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// Verification is the answer handed to the gate device. Denials carry a
// human-readable reason for the guard; they never leak whether an unknown
// payload referenced a real record.
type Verification struct {
	Allowed bool        `json:"allowed"`
	Reason  string      `json:"reason"`
	Kind    models.Kind `json:"kind,omitempty"`

	CredentialID string        `json:"credential_id,omitempty"`
	Status       models.Status `json:"status,omitempty"`
	IsExpired    bool          `json:"is_expired"`
	ResidentID   string        `json:"resident_id,omitempty"`
	SocietyID    string        `json:"society_id,omitempty"`
	SubjectName  string        `json:"subject_name,omitempty"`
	SubjectPhone string        `json:"subject_phone,omitempty"`
	VehicleType  string        `json:"vehicle_type,omitempty"`
	PINCode      string        `json:"pin_code,omitempty"`
	ValidFrom    time.Time     `json:"valid_from,omitzero"`
	ValidUntil   time.Time     `json:"valid_until,omitzero"`

	// Consumed reports that this scan used up a single-entry guest pass.
	Consumed bool `json:"consumed,omitempty"`
}

// Verify answers a gate scan. Malformed payloads and unknown credentials come
// back as denials, not errors; an error return means the verifier itself
// failed and the gate should fall back to manual checks.
func (s *Service) Verify(ctx context.Context, scanned string) (*Verification, error) {
	ctx, span := s.tracer.Start(ctx, "credential.Verify")
	defer span.End()

	start := time.Now()
	if s.metrics != nil {
		defer s.metrics.ObserveVerify(start)
	}
	now := requestcontext.Now(ctx).UTC()

	payload, err := qrcode.Decode(scanned)
	if err != nil {
		if s.metrics != nil {
			s.metrics.MalformedPayloads.Inc()
		}
		s.logger.WarnContext(ctx, "malformed scan payload", "error", err)
		v := &Verification{Allowed: false, Reason: "pass could not be read"}
		s.recordScan(ctx, v, id.CredentialID{}, id.SocietyID{}, gatelog.ResultMalformed)
		return v, nil
	}

	// Single-entry consumption must observe current store state, so guest
	// passes bypass the cache while the policy is on.
	cacheable := !(s.singleEntry && payload.Kind == models.KindGuest)
	if cacheable {
		if cached, ok, cerr := s.cache.Get(ctx, payload.CredentialID); cerr != nil {
			s.logger.WarnContext(ctx, "verify cache read failed", "error", cerr)
		} else if ok && !(cached.Allowed && now.After(cached.ValidUntil)) {
			v := &Verification{
				Allowed:      cached.Allowed,
				Reason:       reasonForStatus(models.Status(cached.Status), cached.Allowed),
				Kind:         models.Kind(cached.Kind),
				CredentialID: cached.CredentialID,
				Status:       models.Status(cached.Status),
				IsExpired:    models.Status(cached.Status) == models.StatusExpired,
				ResidentID:   cached.ResidentID,
				SocietyID:    cached.SocietyID,
				SubjectName:  cached.SubjectName,
				SubjectPhone: cached.SubjectPhone,
				VehicleType:  cached.VehicleType,
				PINCode:      cached.PINCode,
				ValidUntil:   cached.ValidUntil,
			}
			result := gatelog.ResultDenied
			if v.Allowed {
				result = gatelog.ResultAllowed
			}
			s.recordScan(ctx, v, payload.CredentialID, payload.SocietyID, result)
			return v, nil
		}
	}

	cred, err := s.store.FindByID(ctx, payload.Kind, payload.CredentialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			v := &Verification{Allowed: false, Reason: "pass not recognized", Kind: payload.Kind}
			s.recordScan(ctx, v, payload.CredentialID, payload.SocietyID, gatelog.ResultDenied)
			return v, nil
		}
		return nil, translate(err)
	}

	// Scope checks: the payload's society (when present) and the scanning
	// device's society must both match the stored record.
	if !payload.SocietyID.IsZero() && payload.SocietyID != cred.SocietyID {
		v := s.deny(cred, "pass belongs to a different community")
		s.recordScan(ctx, v, cred.ID, cred.SocietyID, gatelog.ResultDenied)
		return v, nil
	}
	if deviceSociety := requestcontext.SocietyID(ctx); deviceSociety != "" {
		sid, perr := id.ParseSocietyID(deviceSociety)
		if perr != nil || sid != cred.SocietyID {
			v := s.deny(cred, "pass belongs to a different community")
			s.recordScan(ctx, v, cred.ID, cred.SocietyID, gatelog.ResultDenied)
			return v, nil
		}
	}

	cred, err = s.normalize(ctx, cred)
	if err != nil {
		return nil, err
	}

	if cred.Status == models.StatusApproved && now.Before(cred.ValidFrom) {
		v := s.deny(cred, "pass is not valid yet")
		s.recordScan(ctx, v, cred.ID, cred.SocietyID, gatelog.ResultDenied)
		return v, nil
	}

	if cred.Status != models.StatusApproved {
		v := s.deny(cred, reasonForStatus(cred.Status, false))
		s.recordScan(ctx, v, cred.ID, cred.SocietyID, gatelog.ResultDenied)
		if cacheable {
			s.cachePut(ctx, cred, false)
		}
		return v, nil
	}

	consumed := false
	if s.singleEntry && cred.Kind == models.KindGuest {
		updated, cerr := s.store.Execute(ctx, cred.Kind, cred.ID,
			func(c *models.Credential) error {
				if !c.CanConsume() {
					return sentinel.ErrInvalidState
				}
				return nil
			},
			func(c *models.Credential) {
				c.ApplyConsumption(now)
			})
		if cerr != nil {
			if errors.Is(cerr, sentinel.ErrInvalidState) {
				// A concurrent scan got here first.
				v := s.deny(cred, "pass already used")
				v.Status = models.StatusUsed
				s.recordScan(ctx, v, cred.ID, cred.SocietyID, gatelog.ResultDenied)
				return v, nil
			}
			return nil, translate(cerr)
		}
		cred = updated
		consumed = true
		if err := s.cache.Invalidate(ctx, cred.ID); err != nil {
			s.logger.WarnContext(ctx, "verify cache invalidation failed",
				"credential_id", cred.ID.String(), "error", err)
		}
	}

	v := &Verification{
		Allowed:      true,
		Reason:       "pass valid",
		Kind:         cred.Kind,
		CredentialID: cred.ID.String(),
		Status:       cred.Status,
		ResidentID:   cred.ResidentID.String(),
		SocietyID:    cred.SocietyID.String(),
		SubjectName:  verifySubject(cred),
		SubjectPhone: subjectPhone(cred),
		VehicleType:  cred.VehicleType,
		PINCode:      cred.PINCode,
		ValidFrom:    cred.ValidFrom,
		ValidUntil:   cred.ValidUntil,
		Consumed:     consumed,
	}
	if cacheable {
		s.cachePut(ctx, cred, true)
	}
	s.recordScan(ctx, v, cred.ID, cred.SocietyID, gatelog.ResultAllowed)
	s.dispatcher.Notify(ctx, cred.ResidentID, notify.EventCredentialScanned, map[string]string{
		"credential_id": cred.ID.String(),
		"kind":          string(cred.Kind),
		"device":        requestcontext.DeviceName(ctx),
	})
	return v, nil
}

func (s *Service) deny(cred *models.Credential, reason string) *Verification {
	return &Verification{
		Allowed:      false,
		Reason:       reason,
		Kind:         cred.Kind,
		CredentialID: cred.ID.String(),
		Status:       cred.Status,
		IsExpired:    cred.Status == models.StatusExpired,
		ResidentID:   cred.ResidentID.String(),
		SocietyID:    cred.SocietyID.String(),
		SubjectName:  verifySubject(cred),
		ValidUntil:   cred.ValidUntil,
	}
}

func reasonForStatus(status models.Status, allowed bool) string {
	if allowed {
		return "pass valid"
	}
	switch status {
	case models.StatusPending:
		return "pass awaiting approval"
	case models.StatusRejected:
		return "pass was rejected"
	case models.StatusExpired:
		return "pass has expired"
	case models.StatusUsed:
		return "pass already used"
	default:
		return "pass not valid"
	}
}

func verifySubject(cred *models.Credential) string {
	switch {
	case cred.Kind == models.KindGuest && cred.Guest != nil:
		return cred.Guest.Name
	case cred.Kind == models.KindVehicle && cred.Vehicle != nil:
		return cred.Vehicle.RegistrationNumber
	default:
		return ""
	}
}

func subjectPhone(cred *models.Credential) string {
	if cred.Kind == models.KindGuest && cred.Guest != nil {
		return cred.Guest.Phone
	}
	return ""
}

// recordScan appends the scan to the gate log and bumps counters. The append
// runs on a detached context so a slow log store cannot fail the scan.
func (s *Service) recordScan(ctx context.Context, v *Verification, credID id.CredentialID, societyID id.SocietyID, result gatelog.Result) {
	if s.metrics != nil {
		kind := string(v.Kind)
		if kind == "" {
			kind = "unknown"
		}
		s.metrics.IncrementScan(kind, string(result))
	}

	entry := gatelog.Entry{
		CredentialID: credID,
		SocietyID:    societyID,
		DeviceName:   requestcontext.DeviceName(ctx),
		Result:       result,
		Reason:       v.Reason,
		ScannedAt:    requestcontext.Now(ctx).UTC(),
	}
	if deviceID := requestcontext.DeviceID(ctx); deviceID != "" {
		if did, err := id.ParseDeviceID(deviceID); err == nil {
			entry.DeviceID = did
		}
	}
	if err := s.scans.Append(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.ErrorContext(ctx, "gate scan log append failed",
			"credential_id", credID.String(),
			"result", string(result),
			"error", err,
		)
	}
}

func (s *Service) cachePut(ctx context.Context, cred *models.Credential, allowed bool) {
	p := verifycache.Projection{
		CredentialID: cred.ID.String(),
		Kind:         string(cred.Kind),
		Status:       string(cred.Status),
		Allowed:      allowed,
		ResidentID:   cred.ResidentID.String(),
		SocietyID:    cred.SocietyID.String(),
		SubjectName:  verifySubject(cred),
		SubjectPhone: subjectPhone(cred),
		VehicleType:  cred.VehicleType,
		PINCode:      cred.PINCode,
		ValidUntil:   cred.ValidUntil,
		CachedAt:     requestcontext.Now(ctx).UTC(),
	}
	if err := s.cache.Put(ctx, cred.ID, p); err != nil {
		s.logger.WarnContext(ctx, "verify cache write failed",
			"credential_id", cred.ID.String(), "error", err)
	}
}
