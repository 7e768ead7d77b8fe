package flow

import (
	"context"
	"errors"
	"notigate/internal/ports"
	"notigate/internal/types"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	HintTimeoutFallback = "ai_unavailable_timeout_fallback_to_rules"
	HintErrorFallback   = "ai_unavailable_error_fallback_to_rules"

	DefaultAdvisorTimeout = 20 * time.Millisecond
)

type hintResult struct {
	hint string
	err  error
}

// StartHint runs the advisor in the background under a hard timeout and returns a wait func.
// The wait func returns within the remaining timeout budget with the hint, "" when there is none,
// or a fallback annotation. It reports the failure kind (types.ErrAdvisorTimeout or
// types.ErrAdvisorFailure) alongside the fallback; callers never need to act on it.
// A nil advisor yields a wait func that returns immediately.
func StartHint(ctx context.Context, adv ports.Advisor, event types.NotificationEvent, timeout time.Duration) func() (string, error) {
	if adv == nil {
		return func() (string, error) { return "", nil }
	}
	if timeout <= 0 {
		timeout = DefaultAdvisorTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	ch := make(chan hintResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("advisor panicked")
				ch <- hintResult{err: types.ErrAdvisorFailure}
			}
		}()
		h, err := adv.Suggest(hctx, event)
		ch <- hintResult{hint: h, err: err}
	}()

	return func() (string, error) {
		defer cancel()
		select {
		case r := <-ch:
			if r.err != nil {
				return fallback(r.err)
			}
			return r.hint, nil
		case <-hctx.Done():
			return fallback(hctx.Err())
		}
	}
}

func fallback(err error) (string, error) {
	if errors.Is(err, context.DeadlineExceeded) {
		return HintTimeoutFallback, types.Err(types.ErrAdvisorTimeout, err, "")
	}
	return HintErrorFallback, types.Err(types.ErrAdvisorFailure, err, "")
}

// Annotate appends a hint to a reason. The decision, schedule and risk are never touched.
func Annotate(resp types.DecisionResponse, hint string) types.DecisionResponse {
	if hint != "" {
		resp.Reason = resp.Reason + ";" + hint
	}
	return resp
}
