// Package jobs schedules periodic maintenance with robfig/cron.
package jobs

import (
	"context"
	"time"

	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	jobTimeout             = time.Minute
	notificationRetention  = 90 * 24 * time.Hour
	rateLimiterEvictPeriod = "@every 10m"
)

type revokedTokenPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type readNotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type visitorEvicter interface {
	Evict() int
}

// Cleanup owns the maintenance schedule.
type Cleanup struct {
	cron          *cron.Cron
	tokens        revokedTokenPurger
	notifications readNotificationPurger
	limiter       visitorEvicter
	now           func() time.Time
}

// NewCleanup builds the scheduler. limiter may be nil when rate limiting is off.
func NewCleanup(tokens revokedTokenPurger, notifications readNotificationPurger, limiter visitorEvicter) *Cleanup {
	return &Cleanup{
		cron:          cron.New(cron.WithChain(cron.Recover(cronLogger{}))),
		tokens:        tokens,
		notifications: notifications,
		limiter:       limiter,
		now:           time.Now,
	}
}

// Start registers the jobs and starts the scheduler in its own goroutine.
func (j *Cleanup) Start() error {
	if _, err := j.cron.AddFunc("@hourly", j.PurgeRevokedTokens); err != nil {
		return err
	}
	if _, err := j.cron.AddFunc("@daily", j.PurgeReadNotifications); err != nil {
		return err
	}
	if j.limiter != nil {
		if _, err := j.cron.AddFunc(rateLimiterEvictPeriod, j.EvictIdleVisitors); err != nil {
			return err
		}
	}
	j.cron.Start()
	logger.Info("maintenance jobs scheduled", zap.Int("jobs", len(j.cron.Entries())))
	return nil
}

// Stop waits for running jobs or for ctx, whichever comes first.
func (j *Cleanup) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
		logger.Warn("maintenance jobs still running at shutdown")
	}
}

func (j *Cleanup) PurgeRevokedTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	purged, err := j.tokens.PurgeExpired(ctx, j.now())
	if err != nil {
		logger.Error("purging revoked tokens", zap.Error(err))
		return
	}
	logger.Info("purged revoked tokens", zap.Int64("count", purged))
}

// PurgeReadNotifications drops read notifications past the retention window.
func (j *Cleanup) PurgeReadNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	deleted, err := j.notifications.DeleteReadBefore(ctx, j.now().Add(-notificationRetention))
	if err != nil {
		logger.Error("purging read notifications", zap.Error(err))
		return
	}
	logger.Info("purged read notifications", zap.Int64("count", deleted))
}

func (j *Cleanup) EvictIdleVisitors() {
	if evicted := j.limiter.Evict(); evicted > 0 {
		logger.Debug("evicted idle rate limiter entries", zap.Int("count", evicted))
	}
}

// cronLogger routes cron's internal logging to zap.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.L().Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.L().Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
