package escalation

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"crisis-escalation-service/pkg/config"
	"crisis-escalation-service/pkg/constants"
	"crisis-escalation-service/pkg/metrics"
)

// LeaderElection ensures the expiry sweep runs on exactly one instance.
// Leadership is a Redis key held with a TTL; renewal and resignation go
// through Lua scripts so a stale instance can never clobber the current
// leader.
type LeaderElection struct {
	rdb      *redis.Client
	config   *config.Config
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	isLeader bool
	stopCh   chan struct{}
}

func NewLeaderElection(rdb *redis.Client, cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics) *LeaderElection {
	return &LeaderElection{
		rdb:     rdb,
		config:  cfg,
		logger:  logger,
		metrics: m,
		stopCh:  make(chan struct{}),
	}
}

func (le *LeaderElection) Start(ctx context.Context) {
	le.logger.Info("Starting sweeper leader election")
	go le.electionLoop(ctx)
}

func (le *LeaderElection) Stop() {
	close(le.stopCh)
	if le.isLeader {
		le.resign(context.Background())
	}
}

// IsLeader verifies leadership against Redis rather than trusting local
// state, so a partitioned instance stops sweeping as soon as its key lapses.
func (le *LeaderElection) IsLeader() bool {
	ctx := context.Background()
	currentLeader, err := le.rdb.Get(ctx, constants.SweeperLeaderKey).Result()
	if err != nil {
		le.isLeader = false
		return false
	}

	actual := currentLeader == le.config.InstanceID
	if le.isLeader != actual {
		le.isLeader = actual
		if actual {
			le.logger.Info("Confirmed sweeper leadership")
		} else {
			le.logger.Info("Sweeper leadership lost")
		}
	}
	return le.isLeader
}

func (le *LeaderElection) electionLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-le.stopCh:
			return
		case <-ticker.C:
			le.tryAcquire(ctx)
		}
	}
}

func (le *LeaderElection) tryAcquire(ctx context.Context) {
	result := le.rdb.SetArgs(ctx, constants.SweeperLeaderKey, le.config.InstanceID, redis.SetArgs{
		Mode: "NX",
		TTL:  le.config.LeaderElectionTTLDuration(),
	})

	if result.Err() != nil {
		le.logger.WithError(result.Err()).Error("Sweeper leader election attempt failed")
		return
	}

	if result.Val() == "OK" {
		if !le.isLeader {
			le.logger.Info("Became sweeper leader")
			le.metrics.SweeperLeaderChanges.Inc()
			le.isLeader = true
		}
		le.renew(ctx)
		return
	}

	if le.isLeader {
		currentLeader, err := le.rdb.Get(ctx, constants.SweeperLeaderKey).Result()
		if err != nil || currentLeader != le.config.InstanceID {
			le.logger.Info("Lost sweeper leadership")
			le.isLeader = false
		}
	}
}

func (le *LeaderElection) renew(ctx context.Context) {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("EXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`

	result := le.rdb.Eval(ctx, script, []string{constants.SweeperLeaderKey}, le.config.InstanceID, le.config.LeaderElectionTTL)
	if result.Err() != nil {
		le.logger.WithError(result.Err()).Error("Failed to renew sweeper leadership")
		le.isLeader = false
		return
	}

	if result.Val().(int64) == 0 {
		le.logger.Warn("Sweeper leadership renewal failed")
		le.isLeader = false
	}
}

func (le *LeaderElection) resign(ctx context.Context) {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`

	if err := le.rdb.Eval(ctx, script, []string{constants.SweeperLeaderKey}, le.config.InstanceID).Err(); err != nil {
		le.logger.WithError(err).Error("Failed to resign sweeper leadership")
	} else {
		le.logger.Info("Resigned sweeper leadership")
	}
	le.isLeader = false
}
