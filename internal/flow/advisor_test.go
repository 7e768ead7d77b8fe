package flow

import (
	"context"
	"errors"
	"time"

	"notigate/internal/types"
)

type funcAdvisor func(ctx context.Context, ev types.NotificationEvent) (string, error)

func (f funcAdvisor) Suggest(ctx context.Context, ev types.NotificationEvent) (string, error) {
	return f(ctx, ev)
}

func (s *UnitTestSuite) TestStartHintNilAdvisor() {
	wait := StartHint(s.ctx, nil, s.mkEvent(nil), time.Second)
	h, err := wait()
	s.NoError(err)
	s.Equal("", h)
}

func (s *UnitTestSuite) TestStartHintSuccess() {
	adv := funcAdvisor(func(ctx context.Context, ev types.NotificationEvent) (string, error) {
		return "ai_hint:" + ev.EventType, nil
	})
	h, err := StartHint(s.ctx, adv, s.mkEvent(nil), time.Second)()
	s.NoError(err)
	s.Equal("ai_hint:message_direct", h)
}

func (s *UnitTestSuite) TestStartHintTimeout() {
	release := make(chan struct{})
	defer close(release)
	adv := funcAdvisor(func(ctx context.Context, ev types.NotificationEvent) (string, error) {
		<-release // ignores ctx on purpose
		return "late", nil
	})
	start := time.Now()
	h, err := StartHint(s.ctx, adv, s.mkEvent(nil), 10*time.Millisecond)()
	s.Less(time.Since(start), time.Second)
	s.Equal(HintTimeoutFallback, h)
	s.True(errors.Is(err, types.ErrAdvisorTimeout))
}

func (s *UnitTestSuite) TestStartHintError() {
	adv := funcAdvisor(func(ctx context.Context, ev types.NotificationEvent) (string, error) {
		return "", errors.New("boom")
	})
	h, err := StartHint(s.ctx, adv, s.mkEvent(nil), time.Second)()
	s.Equal(HintErrorFallback, h)
	s.True(errors.Is(err, types.ErrAdvisorFailure))
}

func (s *UnitTestSuite) TestStartHintPanic() {
	adv := funcAdvisor(func(ctx context.Context, ev types.NotificationEvent) (string, error) {
		panic("advisor bug")
	})
	h, _ := StartHint(s.ctx, adv, s.mkEvent(nil), time.Second)()
	s.Equal(HintErrorFallback, h)
}

func (s *UnitTestSuite) TestAnnotateKeepsDecision() {
	d := s.decide(s.mkEvent(nil))
	a := Annotate(d, HintTimeoutFallback)
	s.Equal(ReasonPassedAllChecks+";"+HintTimeoutFallback, a.Reason)
	s.Equal(d.Decision, a.Decision)
	s.Equal(d.RiskScore, a.RiskScore)
	s.Equal(d.ScheduledFor, a.ScheduledFor)
	s.Equal(d, Annotate(d, ""))
}
