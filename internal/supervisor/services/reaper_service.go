// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package services

import "context"

// Reaper is internal/metrics.Registry's StartReaper loop with its
// interval, multiplier and tiers already bound: a loop that runs until ctx
// is canceled, already shaped like suture.Service's Serve(ctx) contract.
// *metrics.Registry does not satisfy it directly; main.go wraps the call
// in a ReaperFunc.
type Reaper interface {
	StartReaper(ctx context.Context)
}

// ReaperFunc adapts a plain func(context.Context) to the Reaper interface,
// letting the caller bind StartReaper's interval/multiplier/tiers
// arguments in a closure since suture.Service.Serve takes only a context.
type ReaperFunc func(ctx context.Context)

func (f ReaperFunc) StartReaper(ctx context.Context) { f(ctx) }

// ReaperService wraps the metrics registry's stale-series reaper as a
// supervised service on the messaging layer, otherwise unused by this
// exporter per internal/supervisor.SupervisorTree's layer comment.
//
// Unlike HTTPServerService, the wrapped method already blocks on ctx
// directly, so Serve is a thin pass-through rather than a lifecycle
// translation.
type ReaperService struct {
	reaper Reaper
	name   string
}

// NewReaperService creates a new reaper service wrapper.
//
// Example usage:
//
//	svc := services.NewReaperService(services.ReaperFunc(func(ctx context.Context) {
//		reg.StartReaper(ctx, fastInterval, ttlMultiplier, tiers)
//	}))
//	tree.AddMessagingService(svc)
func NewReaperService(reaper Reaper) *ReaperService {
	return &ReaperService{
		reaper: reaper,
		name:   "metric-reaper",
	}
}

// Serve implements suture.Service.
func (s *ReaperService) Serve(ctx context.Context) error {
	s.reaper.StartReaper(ctx)
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *ReaperService) String() string {
	return s.name
}
