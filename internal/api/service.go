package api

import (
	"context"
	"errors"
	"notigate/internal/flow"
	"notigate/internal/metrics"
	"notigate/internal/ports"
	"notigate/internal/pub"
	"notigate/internal/types"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const historyWindow = types.HourWindow

// Summary is the JSON view behind GET /v1/metrics.
type Summary struct {
	PolicyVersion string `json:"policy_version"`
	UsersTracked  int    `json:"users_tracked"`
	AuditUsers    int    `json:"audit_users"`
}

// Service wraps the engine with everything around a decision: the advisor hint, the audit trail,
// the downstream fan-out and metrics.
type Service struct {
	engine *flow.Engine
	store  ports.StateStore

	advisor        ports.Advisor
	advisorTimeout time.Duration

	publisher ports.Publisher
	topic     string

	metrics *metrics.Metrics
	now     func() time.Time
}

type ServiceOption func(*Service)

// WithAdvisor enables hints from adv, bounded by timeout.
func WithAdvisor(adv ports.Advisor, timeout time.Duration) ServiceOption {
	return func(s *Service) {
		s.advisor = adv
		s.advisorTimeout = timeout
	}
}

// WithPublisher publishes every decision to topic. An empty topic disables publishing.
func WithPublisher(p ports.Publisher, topic string) ServiceOption {
	return func(s *Service) {
		s.publisher = p
		s.topic = topic
	}
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(engine *flow.Engine, opts ...ServiceOption) *Service {
	s := &Service{
		engine:         engine,
		store:          engine.Store(),
		advisorTimeout: flow.DefaultAdvisorTimeout,
		now:            time.Now,
	}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

// Process decides one event. The advisor runs alongside the pipeline and only annotates the
// reason. The decision is audited before it is returned; publishing is best effort.
func (s *Service) Process(ctx context.Context, event types.NotificationEvent) (types.DecisionResponse, error) {
	start := time.Now()
	wait := flow.StartHint(ctx, s.advisor, event, s.advisorTimeout)

	resp, err := s.engine.Decide(ctx, event)
	hint, herr := wait()
	if err != nil {
		return types.DecisionResponse{}, err
	}
	if herr != nil {
		s.observeFallback(event, herr)
	}
	resp = flow.Annotate(resp, hint)

	rec := types.AuditRecord{
		ID:        uuid.NewString(),
		Event:     event,
		Decision:  resp,
		CreatedAt: s.now(),
	}
	if err := s.store.AddAudit(ctx, event.UserID, rec); err != nil {
		return types.DecisionResponse{}, types.Err(types.ErrDataStoreAccess, err, "append audit for %s", event.UserID)
	}
	s.publish(ctx, rec)

	if s.metrics != nil {
		s.metrics.ObserveDecision(resp, time.Since(start))
	}
	return resp, nil
}

func (s *Service) observeFallback(event types.NotificationEvent, err error) {
	kind := "error"
	if errors.Is(err, types.ErrAdvisorTimeout) {
		kind = "timeout"
	}
	log.WithError(err).WithFields(log.Fields{
		"user_id":    event.UserID,
		"event_type": event.EventType,
	}).Debug("advisor fell back to rules")
	if s.metrics != nil {
		s.metrics.ObserveAdvisorFallback(kind)
	}
}

func (s *Service) publish(ctx context.Context, rec types.AuditRecord) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	msg, err := pub.DecisionMessage(rec)
	if err == nil {
		err = s.publisher.Publish(ctx, s.topic, msg)
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id": rec.Event.UserID,
			"topic":   s.topic,
		}).Error("failed to publish decision")
	}
}

func (s *Service) Rules(ctx context.Context) (types.RuleConfig, error) {
	return s.store.GetRules(ctx)
}

func (s *Service) ReplaceRules(ctx context.Context, cfg types.RuleConfig) (types.RuleConfig, error) {
	return s.store.SetRules(ctx, cfg)
}

// History returns the last hour of delivered events and the newest audit records of a user.
func (s *Service) History(ctx context.Context, userID string) (types.UserHistory, error) {
	events, err := s.store.RecentEvents(ctx, userID, historyWindow)
	if err != nil {
		return types.UserHistory{}, types.Err(types.ErrDataStoreAccess, err, "recent events")
	}
	audit, err := s.store.RecentAudit(ctx, userID, types.DefaultHistoryAuditLimit)
	if err != nil {
		return types.UserHistory{}, types.Err(types.ErrDataStoreAccess, err, "recent audit")
	}
	if events == nil {
		events = []types.NotificationEvent{}
	}
	if audit == nil {
		audit = []types.AuditRecord{}
	}
	return types.UserHistory{UserID: userID, LastHourEvents: events, AuditRecords: audit}, nil
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	rules, err := s.store.GetRules(ctx)
	if err != nil {
		return Summary{}, types.Err(types.ErrDataStoreAccess, err, "get rules")
	}
	out := Summary{PolicyVersion: rules.PolicyVersion}
	if r, ok := s.store.(ports.StatsReporter); ok {
		st, err := r.Stats(ctx)
		if err != nil {
			return Summary{}, types.Err(types.ErrDataStoreAccess, err, "stats")
		}
		out.UsersTracked, out.AuditUsers = st.UsersTracked, st.AuditUsers
	}
	return out, nil
}
