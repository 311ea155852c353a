package gate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/sentinel"
)

type GateSuite struct {
	suite.Suite
	registry *InMemory
	ctx      context.Context
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.registry = NewInMemory()
	s.ctx = context.Background()
}

func (s *GateSuite) newDeviceID() id.DeviceID {
	return id.DeviceID(id.NewCredentialID())
}

func (s *GateSuite) TestKeyRoundTrip() {
	key, err := GenerateKey()
	s.Require().NoError(err)
	s.NotEmpty(key)

	hash, err := HashKey(key)
	s.Require().NoError(err)
	s.NotEqual(key, hash)

	s.NoError(VerifyKey(key, hash))

	err = VerifyKey("wrong-key", hash)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *GateSuite) TestHashRejectsEmptyKey() {
	_, err := HashKey("")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *GateSuite) TestAuthenticate() {
	key, err := GenerateKey()
	s.Require().NoError(err)
	hash, err := HashKey(key)
	s.Require().NoError(err)

	deviceID := s.newDeviceID()
	s.Require().NoError(s.registry.Register(s.ctx, Device{
		ID:        deviceID,
		SocietyID: id.SocietyID(id.NewCredentialID()),
		Name:      "Main Gate",
		KeyHash:   hash,
	}))

	s.Run("valid key returns device", func() {
		device, err := s.registry.Authenticate(s.ctx, deviceID, key)
		s.Require().NoError(err)
		s.Equal("Main Gate", device.Name)
	})

	s.Run("wrong key is unauthorized", func() {
		_, err := s.registry.Authenticate(s.ctx, deviceID, "not-the-key")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown device is not found", func() {
		_, err := s.registry.Authenticate(s.ctx, s.newDeviceID(), key)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("duplicate registration conflicts", func() {
		err := s.registry.Register(s.ctx, Device{ID: deviceID, KeyHash: hash})
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *GateSuite) TestParseUserAgent() {
	s.Run("empty user agent returns unknown device", func() {
		s.Equal("Unknown Device", ParseUserAgent(""))
	})

	s.Run("chrome on desktop includes browser and OS", func() {
		ua := "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
		label := ParseUserAgent(ua)
		s.Contains(label, "Chrome")
		s.Contains(label, "on")
	})

	s.Run("bare product token still yields a label", func() {
		label := ParseUserAgent("GateScanner/2.1")
		s.Contains(label, "on")
		s.Equal(label, strings.TrimSpace(label))
	})
}
