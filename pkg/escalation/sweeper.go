package escalation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"crisis-escalation-service/pkg/config"
	"crisis-escalation-service/pkg/metrics"
	"crisis-escalation-service/pkg/store"
)

// Sweeper promotes pending escalations past the configured wait window to
// expired. With a leader election attached it runs on exactly one instance;
// without one (memory backend, single instance) it always sweeps.
type Sweeper struct {
	store   store.Store
	leader  *LeaderElection
	config  *config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics
	stopCh  chan struct{}
}

func NewSweeper(st store.Store, leader *LeaderElection, cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		store:   st,
		leader:  leader,
		config:  cfg,
		logger:  logger,
		metrics: m,
		stopCh:  make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	if s.config.EscalationExpiry() <= 0 {
		s.logger.Info("Escalation expiry disabled, sweeper not started")
		return
	}

	s.logger.WithField("expiry_window", s.config.EscalationExpiry()).Info("Starting escalation expiry sweeper")
	go s.sweepLoop(ctx)
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
}

func (s *Sweeper) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.leader == nil || s.leader.IsLeader() {
				s.sweep(ctx)
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.EscalationExpiry())

	expired, err := s.store.ExpirePending(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Expiry sweep failed")
		return
	}

	if len(expired) > 0 {
		s.metrics.EscalationsExpiredTotal.Add(float64(len(expired)))
		s.logger.WithFields(logrus.Fields{
			"expired_count":  len(expired),
			"escalation_ids": expired,
		}).Warn("Expired unclaimed escalations")
	}

	if count, err := s.store.PendingCount(ctx); err == nil {
		s.metrics.PendingEscalationsCount.Set(float64(count))
	}
}
