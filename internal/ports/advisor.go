package ports

import (
	"context"
	"notigate/internal/types"
)

// Advisor produces an optional short annotation for an event. An empty string means no hint.
// It is invoked with a deadline and must honor ctx.
type Advisor interface {
	Suggest(ctx context.Context, event types.NotificationEvent) (string, error)
}
