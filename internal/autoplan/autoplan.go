// Package autoplan regenerates the stored schedule on a cron spec.
package autoplan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"praxus/internal/config"
	"praxus/pkg/logx"
	"praxus/pkg/schedule"
)

// Planner is the part of schedule.Planner autoplan drives.
type Planner interface {
	Today() (time.Time, error)
	OptimizeStored(ctx context.Context, dayStart time.Time) ([]schedule.Block, error)
}

// Service owns the cron runner. The zero value is not usable; call New.
type Service struct {
	planner Planner
	log     logx.Logger
	parser  cron.Parser

	mu        sync.Mutex
	cfg       config.PlanningConfig
	c         *cron.Cron
	entryID   cron.EntryID
	runCtx    context.Context
	runCancel context.CancelFunc
}

// New creates a stopped Service.
func New(p Planner, cfg config.PlanningConfig, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		planner: p,
		cfg:     cfg,
		log:     log.With(logx.String("component", "autoplan")),
		parser:  cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Validate reports whether spec can be scheduled. Empty is valid (disabled).
func (s *Service) Validate(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("planning.auto_plan: %w", err)
	}
	return nil
}

// Start begins running the configured spec. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	return s.startLocked()
}

func (s *Service) startLocked() error {
	loc, err := s.cfg.Location()
	if err != nil {
		return fmt.Errorf("planning.timezone: %w", err)
	}
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	s.entryID = 0

	spec := strings.TrimSpace(s.cfg.AutoPlan)
	if spec != "" {
		id, err := c.AddFunc(spec, s.run)
		if err != nil {
			return fmt.Errorf("planning.auto_plan: %w", err)
		}
		s.entryID = id
	}
	s.c = c
	c.Start()

	if spec == "" {
		s.log.Info("auto planning disabled")
	} else {
		s.log.Info("auto planning scheduled",
			logx.String("spec", spec),
			logx.String("tz", loc.String()),
			logx.Time("next", c.Entry(s.entryID).Next),
		)
	}
	return nil
}

// Stop halts the runner and waits for a running job, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c, s.runCancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	done := c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("stop timed out waiting for planning run")
	}
	if cancel != nil {
		cancel()
	}
}

// Apply swaps in new planning settings, re-registering the cron entry when
// the spec or timezone changed.
func (s *Service) Apply(cfg config.PlanningConfig) error {
	if err := s.Validate(cfg.AutoPlan); err != nil {
		return err
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("planning.timezone: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.AutoPlan == s.cfg.AutoPlan && cfg.Timezone == s.cfg.Timezone {
		s.cfg = cfg
		return nil
	}
	s.cfg = cfg
	if s.c == nil {
		return nil
	}
	old := s.c
	old.Stop()
	return s.startLocked()
}

// Next returns the time of the next scheduled run, zero when disabled.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil || s.entryID == 0 || strings.TrimSpace(s.cfg.AutoPlan) == "" {
		return time.Time{}
	}
	return s.c.Entry(s.entryID).Next
}

func (s *Service) run() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("auto planning failed", logx.Err(err))
	}
}

// RunOnce plans every stored task from today's day start.
func (s *Service) RunOnce(ctx context.Context) ([]schedule.Block, error) {
	dayStart, err := s.planner.Today()
	if err != nil {
		return nil, err
	}
	blocks, err := s.planner.OptimizeStored(ctx, dayStart)
	if err != nil {
		return nil, err
	}
	s.log.Info("auto planning done", logx.Int("blocks", len(blocks)))
	return blocks, nil
}
