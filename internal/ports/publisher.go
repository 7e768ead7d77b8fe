package ports

import (
	"context"
	"notigate/internal/types"
)

// Publisher fans decisions out to downstream dispatchers.
type Publisher interface {
	Publish(ctx context.Context, target string, msg types.OutboundMessage) error
}
