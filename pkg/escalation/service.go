package escalation

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"crisis-escalation-service/pkg/config"
)

// Service owns the runtime lifecycle: leader election (when Redis-backed),
// the expiry sweeper, and the HTTP server.
type Service struct {
	config  *config.Config
	logger  *logrus.Logger
	leader  *LeaderElection
	sweeper *Sweeper
	server  *http.Server
}

func NewService(cfg *config.Config, logger *logrus.Logger, leader *LeaderElection, sweeper *Sweeper, server *http.Server) *Service {
	return &Service{
		config:  cfg,
		logger:  logger,
		leader:  leader,
		sweeper: sweeper,
		server:  server,
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting crisis escalation service")

	if s.leader != nil {
		s.leader.Start(ctx)
	}
	s.sweeper.Start(ctx)

	go func() {
		s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	s.logger.WithField("instance_id", s.config.InstanceID).Info("Crisis escalation service started successfully")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping crisis escalation service")

	s.sweeper.Stop()
	if s.leader != nil {
		s.leader.Stop()
	}

	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Failed to shutdown HTTP server gracefully")
			return err
		}
	}

	s.logger.Info("Crisis escalation service stopped")
	return nil
}

// IsLeader reports whether this instance currently runs the expiry sweep.
// Always true for the single-instance memory backend.
func (s *Service) IsLeader() bool {
	if s.leader == nil {
		return true
	}
	return s.leader.IsLeader()
}
