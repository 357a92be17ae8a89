// Package sweep drives the recurring reminder/snapshot cycle against the
// arbitration engine.
package sweep

import (
	"context"
	"log"
	"time"

	"resource-pool-backend/config"
	"resource-pool-backend/internal/engine"
)

// Service runs the engine's reminder sweep on a fixed interval.
type Service struct {
	cfg    *config.SweepConfig
	engine *engine.Engine
}

// NewService creates the sweep service.
func NewService(cfg *config.SweepConfig, e *engine.Engine) *Service {
	return &Service{cfg: cfg, engine: e}
}

// Run starts the sweep loop. The first cycle fires immediately so a restarted
// process records today's snapshot without waiting a full interval.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Reminder sweep is disabled. Not starting.")
		return
	}
	log.Println("Starting reminder sweep service...")

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reminder sweep service shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// SweepOnce performs a single reminder/snapshot cycle.
func (s *Service) SweepOnce(ctx context.Context) {
	log.Println("Executing reminder sweep...")
	if err := s.engine.CheckReturnReminders(ctx); err != nil {
		log.Printf("Reminder sweep failed: %v", err)
		return
	}
	log.Println("Reminder sweep finished.")
}
