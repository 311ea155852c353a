package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"gatepass/internal/assets"
	"gatepass/internal/credential/models"
	"gatepass/internal/credential/qrcode"
	"gatepass/internal/directory"
	"gatepass/internal/notify"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
	"gatepass/pkg/saga"
)

// Create issues a new credential. The operation is atomic from the caller's
// point of view: either a fully assembled record (PIN, QR payload, rendered
// assets) exists afterwards, or nothing does. Partial state left by a failed
// step is rolled back by the saga's compensations.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (*models.Credential, error) {
	ctx, span := s.tracer.Start(ctx, "credential.Create")
	defer span.End()

	start := time.Now()
	now := requestcontext.Now(ctx).UTC()

	cred := &models.Credential{
		ID:          id.NewCredentialID(),
		Kind:        req.Kind,
		ResidentID:  req.ResidentID,
		SocietyID:   req.SocietyID,
		Status:      models.StatusPending,
		ValidFrom:   req.ValidFrom.UTC(),
		ValidUntil:  req.ValidUntil.UTC(),
		Guest:       req.Guest,
		Vehicle:     req.Vehicle,
		VehicleType: req.VehicleType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if cred.WindowElapsed(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "validity window is already in the past")
	}

	resident, society, err := s.resolveScope(ctx, req.ResidentID, req.SocietyID)
	if err != nil {
		return nil, err
	}

	var qrRef, shareRef string
	sg := saga.New(s.logger).
		AddStep(saga.Step{
			Name: "allocate-pin-and-persist",
			Run: func(ctx context.Context) error {
				_, err := s.allocator.Allocate(ctx, func(ctx context.Context, candidate string) error {
					cred.PINCode = candidate
					payload, err := qrcode.Encode(cred)
					if err != nil {
						return err
					}
					cred.QRPayload = payload
					err = s.store.CreateIfPINAvailable(ctx, cred)
					if errors.Is(err, sentinel.ErrAlreadyUsed) && s.metrics != nil {
						s.metrics.PINRetries.Inc()
					}
					return err
				})
				return err
			},
			Compensate: func(ctx context.Context) error {
				return s.store.Delete(ctx, cred.ID)
			},
		}).
		AddStep(saga.Step{
			Name: "render-assets",
			Run: func(ctx context.Context) error {
				// Rendering runs to completion server-side even if the client
				// disconnects mid-request; only the asset timeout bounds it.
				var renderErr error
				qrRef, shareRef, renderErr = s.renderAssets(context.WithoutCancel(ctx), cred, resident, society)
				if renderErr != nil {
					// The saga only compensates completed steps; an asset
					// rendered before the sibling failed is this step's own
					// mess to clean up.
					cleanupCtx := context.WithoutCancel(ctx)
					for _, ref := range []string{qrRef, shareRef} {
						if ref == "" {
							continue
						}
						if err := s.renderer.DeleteAsset(cleanupCtx, ref); err != nil {
							s.logger.ErrorContext(ctx, "orphaned asset cleanup failed",
								"asset_ref", ref, "error", err)
						}
					}
					qrRef, shareRef = "", ""
				}
				return renderErr
			},
			Compensate: func(ctx context.Context) error {
				var firstErr error
				for _, ref := range []string{qrRef, shareRef} {
					if ref == "" {
						continue
					}
					if err := s.renderer.DeleteAsset(ctx, ref); err != nil && firstErr == nil {
						firstErr = err
					}
				}
				return firstErr
			},
		}).
		AddStep(saga.Step{
			Name: "attach-asset-refs",
			Run: func(ctx context.Context) error {
				// Same deal: once assets exist the attach must land, or the
				// rendered images would be compensated away over a disconnect.
				ctx = context.WithoutCancel(ctx)
				updated, err := s.store.Execute(ctx, cred.Kind, cred.ID,
					func(*models.Credential) error { return nil },
					func(c *models.Credential) {
						c.QRImageRef = qrRef
						c.ShareableImageRef = shareRef
						c.UpdatedAt = requestcontext.Now(ctx).UTC()
					})
				if err != nil {
					return err
				}
				cred = updated
				return nil
			},
		})

	if err := sg.Execute(ctx); err != nil {
		if s.metrics != nil {
			s.metrics.SagaCompensations.Inc()
		}
		s.logger.ErrorContext(ctx, "credential creation rolled back",
			"credential_id", cred.ID.String(),
			"kind", string(cred.Kind),
			"error", err,
		)
		return nil, translate(err)
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated(string(cred.Kind))
		s.metrics.ObserveCreate(start)
	}
	s.logger.InfoContext(ctx, "credential created",
		"credential_id", cred.ID.String(),
		"kind", string(cred.Kind),
		"resident_id", cred.ResidentID.String(),
	)
	s.dispatcher.Notify(ctx, cred.ResidentID, notify.EventCredentialCreated, map[string]string{
		"credential_id": cred.ID.String(),
		"kind":          string(cred.Kind),
	})
	return cred, nil
}

// resolveScope confirms the resident exists and belongs to the claimed
// society, and returns both directory projections for asset rendering.
func (s *Service) resolveScope(ctx context.Context, residentID id.ResidentID, societyID id.SocietyID) (directory.Resident, directory.Society, error) {
	resident, err := s.directory.GetResident(ctx, residentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return directory.Resident{}, directory.Society{},
				dErrors.New(dErrors.CodeValidation, "resident is not registered")
		}
		return directory.Resident{}, directory.Society{}, translate(err)
	}
	if resident.SocietyID != societyID {
		return directory.Resident{}, directory.Society{},
			dErrors.New(dErrors.CodeScopeMismatch, "resident does not belong to the given society")
	}
	society, err := s.directory.GetSociety(ctx, societyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return directory.Resident{}, directory.Society{},
				dErrors.New(dErrors.CodeValidation, "society is not registered")
		}
		return directory.Resident{}, directory.Society{}, translate(err)
	}
	return resident, society, nil
}

// renderAssets produces the scannable image, plus the shareable composite for
// guest passes, bounded by the asset timeout. Vehicle tags live on the
// windshield, not in a chat forward, so they get the QR image only. A failure
// fails the step; the saga compensation removes whatever did get rendered.
func (s *Service) renderAssets(ctx context.Context, cred *models.Credential, resident directory.Resident, society directory.Society) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.assetTimeout)
	defer cancel()

	req := assets.RenderRequest{
		CredentialID: cred.ID.String(),
		Payload:      cred.QRPayload,
		SubjectName:  subjectName(cred, resident),
		PINCode:      cred.PINCode,
		SocietyName:  society.Name,
		ValidFrom:    cred.ValidFrom,
		ValidUntil:   cred.ValidUntil,
	}

	var qrRef, shareRef string
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ref, err := s.renderer.RenderQRImage(ctx, req)
		if err != nil {
			return err
		}
		qrRef = ref
		return nil
	})
	if cred.Kind == models.KindGuest {
		g.Go(func() error {
			ref, err := s.renderer.RenderShareableImage(ctx, req)
			if err != nil {
				return err
			}
			shareRef = ref
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Hand back whatever rendered so the compensation can delete it.
		return qrRef, shareRef, err
	}
	return qrRef, shareRef, nil
}

func subjectName(cred *models.Credential, resident directory.Resident) string {
	switch cred.Kind {
	case models.KindGuest:
		return cred.Guest.Name
	case models.KindVehicle:
		if cred.Vehicle.RegistrationNumber != "" {
			return cred.Vehicle.RegistrationNumber
		}
	}
	return resident.Name
}
