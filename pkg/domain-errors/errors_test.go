package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.Run("matches direct code", func() {
		err := New(CodeNotFound, "credential not found")
		s.True(HasCode(err, CodeNotFound))
		s.False(HasCode(err, CodeValidation))
	})

	s.Run("matches wrapped code", func() {
		inner := New(CodeAssetGeneration, "render timed out")
		outer := Wrap(inner, CodeInternal, "create failed")
		s.True(HasCode(outer, CodeInternal))
		s.True(HasCode(outer, CodeAssetGeneration))
	})

	s.Run("matches through fmt wrapping", func() {
		err := fmt.Errorf("handler: %w", New(CodeInvalidTransition, "not pending"))
		s.True(HasCode(err, CodeInvalidTransition))
	})

	s.Run("plain errors carry no code", func() {
		s.False(HasCode(errors.New("boom"), CodeInternal))
	})
}

func (s *DomainErrorsSuite) TestCodeOf() {
	s.Run("returns outermost code", func() {
		inner := New(CodeNotFound, "gone")
		outer := Wrap(inner, CodeCleanupFailed, "compensating delete failed")
		s.Equal(CodeCleanupFailed, CodeOf(outer))
	})

	s.Run("defaults to internal for uncoded errors", func() {
		s.Equal(CodeInternal, CodeOf(errors.New("boom")))
	})
}

func (s *DomainErrorsSuite) TestUnwrap() {
	cause := errors.New("network down")
	err := Wrap(cause, CodeAssetGeneration, "asset upload failed")
	s.ErrorIs(err, cause)
}
