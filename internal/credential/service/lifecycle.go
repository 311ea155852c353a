package service

import (
	"context"
	"errors"

	"gatepass/internal/credential/models"
	"gatepass/internal/notify"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// Decide applies an administrator verdict to a pending credential. The scope
// check, the state-machine check and the mutation run atomically inside the
// store, so two concurrent decisions cannot both win.
func (s *Service) Decide(ctx context.Context, req models.DecideRequest) (*models.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "credential.Decide")
	defer span.End()

	now := requestcontext.Now(ctx).UTC()

	current, err := s.store.FindAnyByID(ctx, req.CredentialID)
	if err != nil {
		return nil, translate(err)
	}
	if current.SocietyID != req.DeciderSocietyID {
		return nil, dErrors.New(dErrors.CodeScopeMismatch, "credential belongs to a different society")
	}

	// Settle lazy expiry first so a decision on a stale pending record fails
	// with the real reason.
	current, err = s.normalize(ctx, current)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.Execute(ctx, current.Kind, req.CredentialID,
		func(c *models.Credential) error {
			if c.SocietyID != req.DeciderSocietyID {
				return dErrors.New(dErrors.CodeScopeMismatch, "credential belongs to a different society")
			}
			if c.WindowElapsed(now) {
				return dErrors.New(dErrors.CodeInvalidTransition, "validity window has elapsed")
			}
			return c.CanDecide()
		},
		func(c *models.Credential) {
			c.ApplyDecision(req.DecidedBy, req.Decision, req.Remarks, now)
		})
	if err != nil {
		return nil, translate(err)
	}

	if err := s.cache.Invalidate(ctx, updated.ID); err != nil {
		s.logger.WarnContext(ctx, "verify cache invalidation failed",
			"credential_id", updated.ID.String(), "error", err)
	}

	event := notify.EventCredentialApproved
	if req.Decision == models.DecisionRejected {
		event = notify.EventCredentialRejected
	}
	s.dispatcher.Notify(ctx, updated.ResidentID, event, map[string]string{
		"credential_id": updated.ID.String(),
		"kind":          string(updated.Kind),
		"remarks":       updated.Remarks,
	})

	s.logger.InfoContext(ctx, "credential decided",
		"credential_id", updated.ID.String(),
		"decision", string(req.Decision),
		"decided_by", req.DecidedBy,
	)
	return updated, nil
}

// Get returns a single credential owned by the resident, with expiry settled.
func (s *Service) Get(ctx context.Context, credID id.CredentialID, residentID id.ResidentID) (*models.Credential, error) {
	cred, err := s.store.FindAnyByID(ctx, credID)
	if err != nil {
		return nil, translate(err)
	}
	if cred.ResidentID != residentID {
		// Do not leak existence of another resident's credential.
		return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	return s.normalize(ctx, cred)
}

// List returns credentials matching the filter, newest first, each with
// expiry settled at read time.
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "credential.List")
	defer span.End()

	creds, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]*models.Credential, 0, len(creds))
	for _, cred := range creds {
		normalized, err := s.normalize(ctx, cred)
		if err != nil {
			return nil, err
		}
		// A record that just expired may no longer match a status filter.
		if filter.Matches(normalized) {
			out = append(out, normalized)
		}
	}
	return out, nil
}

// Delete removes a credential owned by the resident, together with its
// rendered assets. Asset deletion is best effort: a missing image is not
// worth keeping the record alive for.
func (s *Service) Delete(ctx context.Context, credID id.CredentialID, residentID id.ResidentID) error {
	ctx, span := s.tracer.Start(ctx, "credential.Delete")
	defer span.End()

	cred, err := s.store.FindAnyByID(ctx, credID)
	if err != nil {
		return translate(err)
	}
	if cred.ResidentID != residentID {
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	}

	if err := s.store.Delete(ctx, credID); err != nil {
		return translate(err)
	}
	if err := s.cache.Invalidate(ctx, credID); err != nil {
		s.logger.WarnContext(ctx, "verify cache invalidation failed",
			"credential_id", credID.String(), "error", err)
	}

	cleanupCtx := context.WithoutCancel(ctx)
	for _, ref := range []string{cred.QRImageRef, cred.ShareableImageRef} {
		if ref == "" {
			continue
		}
		if err := s.renderer.DeleteAsset(cleanupCtx, ref); err != nil {
			s.logger.ErrorContext(ctx, "asset deletion failed",
				"credential_id", credID.String(),
				"asset_ref", ref,
				"error", err,
			)
		}
	}

	s.logger.InfoContext(ctx, "credential deleted", "credential_id", credID.String())
	return nil
}

// normalize settles lazy expiry: a credential whose validity window has
// elapsed is moved to Expired on first read. The transition is idempotent and
// race-tolerant - losing the expiry race to another reader just means the
// record is already in the state this reader wanted.
func (s *Service) normalize(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	now := requestcontext.Now(ctx).UTC()
	if !cred.WindowElapsed(now) || !cred.CanExpire() {
		return cred, nil
	}

	updated, err := s.store.Execute(ctx, cred.Kind, cred.ID,
		func(c *models.Credential) error {
			if !c.WindowElapsed(now) || !c.CanExpire() {
				return sentinel.ErrInvalidState
			}
			return nil
		},
		func(c *models.Credential) {
			c.ApplyExpiry(now)
		})
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			// Another reader expired (or otherwise moved) the record first.
			fresh, ferr := s.store.FindAnyByID(ctx, cred.ID)
			if ferr != nil {
				return nil, translate(ferr)
			}
			return fresh, nil
		}
		return nil, translate(err)
	}

	if err := s.cache.Invalidate(ctx, updated.ID); err != nil {
		s.logger.WarnContext(ctx, "verify cache invalidation failed",
			"credential_id", updated.ID.String(), "error", err)
	}
	s.logger.InfoContext(ctx, "credential expired lazily",
		"credential_id", updated.ID.String(),
		"previous_status", string(cred.Status),
	)
	return updated, nil
}
