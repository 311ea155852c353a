package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatepass/internal/credential/models"
	"gatepass/internal/notify"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
)

type LifecycleSuite struct {
	suite.Suite
	h *harness
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.h = newHarness()
}

func (s *LifecycleSuite) TestApprove() {
	cred, err := s.h.svc.Create(s.h.ctx(0), s.h.guestRequest())
	s.Require().NoError(err)

	updated, err := s.h.svc.Decide(s.h.ctx(0), models.DecideRequest{
		CredentialID:     cred.ID,
		DecidedBy:        "admin-1",
		DeciderSocietyID: s.h.societyID,
		Decision:         models.DecisionApproved,
		Remarks:          "verified on call",
	})
	s.Require().NoError(err)

	s.Equal(models.StatusApproved, updated.Status)
	s.Equal("admin-1", updated.ApprovedBy)
	s.Require().NotNil(updated.ApprovedAt)
	s.Equal("verified on call", updated.Remarks)

	events := s.h.dispatcher.Events()
	s.Require().Len(events, 2) // created + approved
	s.Equal(notify.EventCredentialApproved, events[1].Event)
}

func (s *LifecycleSuite) TestReject() {
	cred, err := s.h.svc.Create(s.h.ctx(0), s.h.guestRequest())
	s.Require().NoError(err)

	updated, err := s.h.svc.Decide(s.h.ctx(0), models.DecideRequest{
		CredentialID:     cred.ID,
		DecidedBy:        "admin-2",
		DeciderSocietyID: s.h.societyID,
		Decision:         models.DecisionRejected,
		Remarks:          "unknown visitor",
	})
	s.Require().NoError(err)

	s.Equal(models.StatusRejected, updated.Status)
	events := s.h.dispatcher.Events()
	s.Equal(notify.EventCredentialRejected, events[len(events)-1].Event)
}

func (s *LifecycleSuite) TestDecideGuards() {
	cred, err := s.h.svc.Create(s.h.ctx(0), s.h.guestRequest())
	s.Require().NoError(err)

	s.Run("wrong society is a scope mismatch", func() {
		_, err := s.h.svc.Decide(s.h.ctx(0), models.DecideRequest{
			CredentialID:     cred.ID,
			DecidedBy:        "admin-1",
			DeciderSocietyID: id.SocietyID(id.NewCredentialID()),
			Decision:         models.DecisionApproved,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeScopeMismatch))
	})

	s.Run("unknown credential", func() {
		_, err := s.h.svc.Decide(s.h.ctx(0), models.DecideRequest{
			CredentialID:     id.NewCredentialID(),
			DecidedBy:        "admin-1",
			DeciderSocietyID: s.h.societyID,
			Decision:         models.DecisionApproved,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("second decision is an invalid transition", func() {
		_, err := s.h.approve(cred)
		s.Require().NoError(err)

		_, err = s.h.svc.Decide(s.h.ctx(0), models.DecideRequest{
			CredentialID:     cred.ID,
			DecidedBy:        "admin-2",
			DeciderSocietyID: s.h.societyID,
			Decision:         models.DecisionRejected,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *LifecycleSuite) TestDecideAfterWindowExpiresLazily() {
	cred, err := s.h.svc.Create(s.h.ctx(0), s.h.guestRequest())
	s.Require().NoError(err)

	lateCtx := s.h.ctx(48 * time.Hour)
	_, err = s.h.svc.Decide(lateCtx, models.DecideRequest{
		CredentialID:     cred.ID,
		DecidedBy:        "admin-1",
		DeciderSocietyID: s.h.societyID,
		Decision:         models.DecisionApproved,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	// The failed decision settled expiry on the way through.
	stored, err := s.h.svc.Get(lateCtx, cred.ID, s.h.residentID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, stored.Status)
}

func (s *LifecycleSuite) TestGetHidesForeignCredentials() {
	cred, err := s.h.svc.Create(s.h.ctx(0), s.h.guestRequest())
	s.Require().NoError(err)

	_, err = s.h.svc.Get(s.h.ctx(0), cred.ID, id.ResidentID(id.NewCredentialID()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *LifecycleSuite) TestListSettlesExpiry() {
	guest, err := s.h.svc.Create(s.h.ctx(0), s.h.guestRequest())
	s.Require().NoError(err)
	_, err = s.h.approve(guest)
	s.Require().NoError(err)

	vehicle, err := s.h.svc.Create(s.h.ctx(0), s.h.vehicleRequest())
	s.Require().NoError(err)

	// Guest window is 24h, vehicle is a year: reading two days later must
	// expire only the guest pass.
	lateCtx := s.h.ctx(48 * time.Hour)
	creds, err := s.h.svc.List(lateCtx, models.ListFilter{ResidentID: &s.h.residentID})
	s.Require().NoError(err)
	s.Require().Len(creds, 2)

	byID := map[id.CredentialID]models.Status{}
	for _, c := range creds {
		byID[c.ID] = c.Status
	}
	s.Equal(models.StatusExpired, byID[guest.ID])
	s.Equal(models.StatusPending, byID[vehicle.ID])

	s.Run("status filter applies post expiry", func() {
		status := models.StatusExpired
		expired, err := s.h.svc.List(lateCtx, models.ListFilter{Status: &status})
		s.Require().NoError(err)
		s.Require().Len(expired, 1)
		s.Equal(guest.ID, expired[0].ID)
	})
}

func (s *LifecycleSuite) TestDeleteRemovesRecordAndAssets() {
	cred, err := s.h.svc.Create(s.h.ctx(0), s.h.guestRequest())
	s.Require().NoError(err)
	s.Equal(2, s.h.renderer.RenderedCount())

	s.Require().NoError(s.h.svc.Delete(s.h.ctx(0), cred.ID, s.h.residentID))

	_, err = s.h.svc.Get(s.h.ctx(0), cred.ID, s.h.residentID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Zero(s.h.renderer.RenderedCount())
	s.Len(s.h.renderer.Deleted(), 2)
}

func (s *LifecycleSuite) TestDeleteOwnershipCheck() {
	cred, err := s.h.svc.Create(s.h.ctx(0), s.h.guestRequest())
	s.Require().NoError(err)

	err = s.h.svc.Delete(s.h.ctx(0), cred.ID, id.ResidentID(id.NewCredentialID()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	// Record survives a foreign delete attempt.
	_, err = s.h.svc.Get(s.h.ctx(0), cred.ID, s.h.residentID)
	s.NoError(err)
}

func (s *LifecycleSuite) TestDeleteSurvivesAssetFailure() {
	cred, err := s.h.svc.Create(s.h.ctx(0), s.h.guestRequest())
	s.Require().NoError(err)

	s.h.renderer.FailDelete = true
	s.Require().NoError(s.h.svc.Delete(s.h.ctx(0), cred.ID, s.h.residentID))

	_, err = s.h.svc.Get(s.h.ctx(0), cred.ID, s.h.residentID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
