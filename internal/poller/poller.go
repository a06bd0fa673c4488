// Package poller runs the background reconcile-and-collect loop for every
// account with a panel credential, broadcasting snapshots to the websocket hub.
package poller

import (
	"context"
	"encoding/json"
	"time"

	"gamedash/internal/accounts"
	"gamedash/internal/middleware"
	"gamedash/internal/reconcile"
	"gamedash/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// Poller periodically synchronizes all known accounts with the orchestrator.
type Poller struct {
	users      *accounts.Store
	reconciler *reconcile.Reconciler
	collector  *telemetry.Collector
	hub        *middleware.Hub
	interval   time.Duration
}

// New builds a poller. A nil hub disables broadcasting; a non-positive
// interval disables the loop entirely.
func New(users *accounts.Store, reconciler *reconcile.Reconciler, collector *telemetry.Collector, hub *middleware.Hub, interval time.Duration) *Poller {
	return &Poller{
		users:      users,
		reconciler: reconciler,
		collector:  collector,
		hub:        hub,
		interval:   interval,
	}
}

type snapshot struct {
	Type     string `json:"type"`
	OwnerID  int64  `json:"owner_id"`
	Servers  any    `json:"servers"`
	Stats    any    `json:"stats"`
	Failures any    `json:"failures,omitempty"`
}

// Run blocks until ctx is cancelled, executing one pass per interval.
func (p *Poller) Run(ctx context.Context) {
	if p.interval <= 0 {
		log.Info().Msg("Background polling disabled")
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", p.interval).Msg("Background polling started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Background polling stopped")
			return
		case <-ticker.C:
			p.pass(ctx)
		}
	}
}

// pass synchronizes every account once. Failures are isolated per owner so a
// broken credential or unreachable panel never stalls the other accounts.
func (p *Poller) pass(ctx context.Context) {
	for _, user := range p.users.List() {
		if user.PanelKey == "" {
			continue
		}

		result, err := p.reconciler.SyncOwner(ctx, user.ID, user.PanelKey)
		if err != nil {
			log.Warn().Err(err).Int64("owner_id", user.ID).Msg("Background reconcile failed")
			continue
		}

		samples := p.collector.Collect(ctx, user.PanelKey, result.Records)

		if p.hub == nil || p.hub.ClientCount() == 0 {
			continue
		}
		payload, err := json.Marshal(snapshot{
			Type:     "telemetry",
			OwnerID:  user.ID,
			Servers:  result.Records,
			Stats:    samples,
			Failures: result.Failures,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode poll snapshot")
			continue
		}
		p.hub.Broadcast(payload)
	}
}
