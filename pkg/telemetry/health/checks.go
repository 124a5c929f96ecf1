package health

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ECONEURA/ECONEURA-IA-sub004/pkg/providers"
)

// ProviderSource lists providers and their last known health.
type ProviderSource interface {
	ListEnabled() []*providers.Provider
	Health(id string) (providers.ProviderHealth, bool)
}

// ProvidersCheck passes while at least one enabled provider is not down.
// Providers never checked count as available.
func ProvidersCheck(src ProviderSource) CheckFunc {
	return func(ctx context.Context) error {
		enabled := src.ListEnabled()
		if len(enabled) == 0 {
			return errors.New("no providers enabled")
		}

		var down []string
		for _, p := range enabled {
			h, ok := src.Health(p.ID)
			if !ok || h.Status != providers.StatusDown {
				return nil
			}
			down = append(down, p.ID)
		}
		return fmt.Errorf("all providers down: %s", strings.Join(down, ", "))
	}
}

// Pinger is a backend that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps a Pinger, such as the usage ledger.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}
