package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "gatepass/pkg/domain-errors"
)

type SagaSuite struct {
	suite.Suite
	ctx context.Context
}

func TestSagaSuite(t *testing.T) {
	suite.Run(t, new(SagaSuite))
}

func (s *SagaSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *SagaSuite) TestExecute() {
	s.Run("runs all steps in order", func() {
		var order []string
		sg := New(nil).
			AddStep(Step{Name: "first", Run: func(context.Context) error {
				order = append(order, "first")
				return nil
			}}).
			AddStep(Step{Name: "second", Run: func(context.Context) error {
				order = append(order, "second")
				return nil
			}})

		s.NoError(sg.Execute(s.ctx))
		s.Equal([]string{"first", "second"}, order)
	})

	s.Run("failure compensates completed steps in reverse", func() {
		var compensated []string
		boom := errors.New("render failed")
		sg := New(nil).
			AddStep(Step{
				Name: "persist",
				Run:  func(context.Context) error { return nil },
				Compensate: func(context.Context) error {
					compensated = append(compensated, "persist")
					return nil
				},
			}).
			AddStep(Step{
				Name: "reserve",
				Run:  func(context.Context) error { return nil },
				Compensate: func(context.Context) error {
					compensated = append(compensated, "reserve")
					return nil
				},
			}).
			AddStep(Step{Name: "render", Run: func(context.Context) error { return boom }})

		err := sg.Execute(s.ctx)
		s.Require().Error(err)
		s.ErrorIs(err, boom)
		s.Equal([]string{"reserve", "persist"}, compensated)
	})

	s.Run("steps after the failing one never run", func() {
		ran := false
		sg := New(nil).
			AddStep(Step{Name: "fails", Run: func(context.Context) error { return errors.New("no") }}).
			AddStep(Step{Name: "after", Run: func(context.Context) error {
				ran = true
				return nil
			}})

		s.Error(sg.Execute(s.ctx))
		s.False(ran)
	})

	s.Run("compensation failure surfaces cleanup_failed", func() {
		boom := errors.New("render failed")
		sg := New(nil).
			AddStep(Step{
				Name:       "persist",
				Run:        func(context.Context) error { return nil },
				Compensate: func(context.Context) error { return errors.New("delete failed") },
			}).
			AddStep(Step{Name: "render", Run: func(context.Context) error { return boom }})

		err := sg.Execute(s.ctx)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeCleanupFailed))
		s.ErrorIs(err, boom)
	})

	s.Run("compensation survives caller cancellation", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		compensated := false
		sg := New(nil).
			AddStep(Step{
				Name: "persist",
				Run:  func(context.Context) error { return nil },
				Compensate: func(compCtx context.Context) error {
					s.NoError(compCtx.Err())
					compensated = true
					return nil
				},
			}).
			AddStep(Step{Name: "render", Run: func(context.Context) error {
				cancel()
				return errors.New("caller went away")
			}})

		s.Error(sg.Execute(ctx))
		s.True(compensated)
	})
}
