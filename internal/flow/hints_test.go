package flow

import "notigate/internal/types"

func (s *UnitTestSuite) TestExprAdvisorDefaultHint() {
	h, err := NewExprAdvisor(nil).Suggest(s.ctx, s.mkEvent(nil))
	s.NoError(err)
	s.Equal("ai_hint:message_direct", h)
}

func (s *UnitTestSuite) TestExprAdvisorRules() {
	adv := NewExprAdvisor([]HintRule{
		{When: "metadata.vip == `true`", Hint: "vip_user"},
		{When: "contains(keys(metadata), 'campaign')", Hint: "campaign", Field: "metadata.campaign"},
		{When: "channel == 'sms'", Negate: true, Hint: "not_sms"},
	})

	vip := s.mkEvent(func(e *types.NotificationEvent) {
		e.Metadata = map[string]any{"vip": true, "campaign": "spring"}
	})
	h, err := adv.Suggest(s.ctx, vip)
	s.NoError(err)
	s.Equal("ai_hint:vip_user", h)

	camp := s.mkEvent(func(e *types.NotificationEvent) {
		e.Metadata = map[string]any{"campaign": "spring"}
	})
	h, err = adv.Suggest(s.ctx, camp)
	s.NoError(err)
	s.Equal("ai_hint:campaign:spring", h)

	plain := s.mkEvent(func(e *types.NotificationEvent) {
		e.Metadata = map[string]any{}
		e.Channel = "push"
	})
	h, err = adv.Suggest(s.ctx, plain)
	s.NoError(err)
	s.Equal("ai_hint:not_sms", h)

	sms := plain
	sms.Channel = "sms"
	h, err = adv.Suggest(s.ctx, sms)
	s.NoError(err)
	s.Equal("", h)
}

func (s *UnitTestSuite) TestExprAdvisorBadExpression() {
	adv := NewExprAdvisor([]HintRule{{When: "metadata.[", Hint: "x"}})
	_, err := adv.Suggest(s.ctx, s.mkEvent(nil))
	s.Error(err)
}
