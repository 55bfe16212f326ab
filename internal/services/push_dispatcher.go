package services

import (
	"context"
	"sync"
	"time"

	"github.com/abdojat/fbcloneapi/internal/repositories"
	"github.com/abdojat/fbcloneapi/pkg/logger"
	"github.com/abdojat/fbcloneapi/pkg/metrics"
	"github.com/abdojat/fbcloneapi/pkg/push"
	"go.uber.org/zap"
)

type pushJob struct {
	userID uint
	msg    push.Message
}

// PushDispatcher delivers push messages off the request path with a fixed worker pool.
type PushDispatcher struct {
	sender  push.Sender
	tokens  repositories.DeviceTokenRepository
	jobs    chan pushJob
	stop    chan struct{}
	wg      sync.WaitGroup
	timeout time.Duration
	once    sync.Once
}

func NewPushDispatcher(sender push.Sender, tokens repositories.DeviceTokenRepository, workers, queueSize int) *PushDispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &PushDispatcher{
		sender:  sender,
		tokens:  tokens,
		jobs:    make(chan pushJob, queueSize),
		stop:    make(chan struct{}),
		timeout: 10 * time.Second,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue never blocks. When the queue is full the job is dropped.
func (d *PushDispatcher) Enqueue(userID uint, msg push.Message) {
	select {
	case <-d.stop:
		return
	default:
	}

	select {
	case d.jobs <- pushJob{userID: userID, msg: msg}:
	default:
		metrics.PushDeliveries.WithLabelValues("dropped").Inc()
		logger.Warn("push queue full, dropping job", zap.Uint("userId", userID))
	}
}

func (d *PushDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobs:
			d.deliver(job)
		case <-d.stop:
			return
		}
	}
}

func (d *PushDispatcher) deliver(job pushJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	tokens, err := d.tokens.TokensForUser(ctx, job.userID)
	if err != nil {
		logger.Error("loading device tokens", zap.Uint("userId", job.userID), zap.Error(err))
		return
	}
	if len(tokens) == 0 {
		metrics.PushDeliveries.WithLabelValues("no_tokens").Inc()
		return
	}

	res, err := d.sender.Send(ctx, tokens, job.msg)
	if len(res.Invalid) > 0 {
		pruned, pErr := d.tokens.DeleteTokens(ctx, res.Invalid)
		if pErr != nil {
			logger.Error("pruning device tokens", zap.Uint("userId", job.userID), zap.Error(pErr))
		} else {
			metrics.PushDeliveries.WithLabelValues("pruned").Add(float64(pruned))
			logger.Info("pruned invalid device tokens", zap.Uint("userId", job.userID), zap.Int64("count", pruned))
		}
	}
	if err != nil {
		metrics.PushDeliveries.WithLabelValues("failed").Inc()
		logger.Warn("push delivery failed", zap.Uint("userId", job.userID), zap.Error(err))
		return
	}
	metrics.PushDeliveries.WithLabelValues("sent").Add(float64(res.Sent))
}

// Stop signals the workers and waits for them until ctx is done. Queued jobs that no
// worker picked up are discarded.
func (d *PushDispatcher) Stop(ctx context.Context) error {
	d.once.Do(func() { close(d.stop) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
