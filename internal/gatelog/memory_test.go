package gatelog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "gatepass/pkg/domain"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemorySuite) TestAppendAssignsID() {
	entry := Entry{
		CredentialID: id.NewCredentialID(),
		SocietyID:    id.SocietyID(id.NewCredentialID()),
		Result:       ResultAllowed,
		ScannedAt:    time.Now(),
	}
	s.Require().NoError(s.store.Append(s.ctx, entry))

	got, err := s.store.ListBySociety(s.ctx, entry.SocietyID, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.NotZero(got[0].ID)
}

func (s *InMemorySuite) TestListFiltersAndOrders() {
	societyA := id.SocietyID(id.NewCredentialID())
	societyB := id.SocietyID(id.NewCredentialID())

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Append(s.ctx, Entry{
			CredentialID: id.NewCredentialID(),
			SocietyID:    societyA,
			Result:       ResultAllowed,
			Reason:       "ok",
			ScannedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
	s.Require().NoError(s.store.Append(s.ctx, Entry{
		CredentialID: id.NewCredentialID(),
		SocietyID:    societyB,
		Result:       ResultDenied,
		ScannedAt:    base,
	}))

	got, err := s.store.ListBySociety(s.ctx, societyA, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	// Newest appended first.
	s.True(got[0].ScannedAt.After(got[2].ScannedAt))

	limited, err := s.store.ListBySociety(s.ctx, societyA, 2)
	s.Require().NoError(err)
	s.Len(limited, 2)
}
