package backends

import (
	"context"
	"notigate/internal/ports"
	"notigate/internal/types"
)

type composite struct {
	ports.RuleStore
	ports.WindowStore
	ports.AuditStore
}

// Compose joins independently placed stores into one ports.StateStore. The result reports Stats
// with user counts from the window store and audit counts from the audit store, each when it
// implements ports.StatsReporter.
func Compose(rules ports.RuleStore, window ports.WindowStore, audit ports.AuditStore) ports.StateStore {
	return composite{RuleStore: rules, WindowStore: window, AuditStore: audit}
}

func (c composite) Stats(ctx context.Context) (types.StoreStats, error) {
	var out types.StoreStats
	if r, ok := c.WindowStore.(ports.StatsReporter); ok {
		st, err := r.Stats(ctx)
		if err != nil {
			return types.StoreStats{}, err
		}
		out.UsersTracked = st.UsersTracked
	}
	if r, ok := c.AuditStore.(ports.StatsReporter); ok {
		st, err := r.Stats(ctx)
		if err != nil {
			return types.StoreStats{}, err
		}
		out.AuditUsers = st.AuditUsers
	}
	return out, nil
}
