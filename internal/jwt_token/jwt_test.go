package jwttoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dErrors "gatepass/pkg/domain-errors"
)

type JWTSuite struct {
	suite.Suite
	svc *JWTService
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTSuite))
}

func (s *JWTSuite) SetupTest() {
	s.svc = NewJWTService("test-signing-key", "gatepass", "gatepass-api")
}

func (s *JWTSuite) TestRoundTrip() {
	userID := uuid.New()
	societyID := uuid.New()

	token, err := s.svc.GenerateAccessToken(userID, societyID, RoleAdmin, time.Hour)
	s.Require().NoError(err)

	claims, err := s.svc.ValidateToken(token)
	s.Require().NoError(err)
	s.Equal(userID.String(), claims.UserID)
	s.Equal(societyID.String(), claims.SocietyID)
	s.Equal(RoleAdmin, claims.Role)
}

func (s *JWTSuite) TestExpiredToken() {
	token, err := s.svc.GenerateAccessToken(uuid.New(), uuid.New(), RoleResident, -time.Minute)
	s.Require().NoError(err)

	_, err = s.svc.ValidateToken(token)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *JWTSuite) TestWrongSigningKey() {
	other := NewJWTService("different-key", "gatepass", "gatepass-api")
	token, err := other.GenerateAccessToken(uuid.New(), uuid.New(), RoleResident, time.Hour)
	s.Require().NoError(err)

	_, err = s.svc.ValidateToken(token)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *JWTSuite) TestGarbageToken() {
	_, err := s.svc.ValidateToken("not-a-jwt")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
