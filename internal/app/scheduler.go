package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/okian/repute/pkg/logger"
)

// scheduler drives periodic re-scoring of every tracked subject so history
// keeps accumulating even for subjects with no fresh facts.
type scheduler struct {
	cron   *cron.Cron
	svc    *Service
	logger logger.Logger
}

func newScheduler(spec string, svc *Service) (*scheduler, error) {
	s := &scheduler{
		cron:   cron.New(),
		svc:    svc,
		logger: svc.logger.Named("scheduler"),
	}

	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return s, nil
}

func (s *scheduler) run() {
	ctx := context.Background()
	s.logger.Debug(ctx, "scheduled re-score sweep starting")
	s.svc.enqueueAll(ctx, "cron")
}

func (s *scheduler) start() {
	s.cron.Start()
	s.logger.Info(context.Background(), "snapshot schedule started")
}

// stop halts the schedule and waits for an in-flight sweep to finish.
func (s *scheduler) stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info(context.Background(), "snapshot schedule stopped")
}
