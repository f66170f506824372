package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DigestSender is the job run on every tick.
type DigestSender interface {
	SendDailyDigest(ctx context.Context) error
}

const digestTimeout = 2 * time.Minute

type DigestScheduler struct {
	cronEngine *cron.Cron
	sender     DigestSender
	logger     *logrus.Entry
	cronSpec   string
	timeout    time.Duration
}

func NewDigestScheduler(sender DigestSender, cronSpec string, logger *logrus.Entry) *DigestScheduler {
	return &DigestScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		sender:     sender,
		logger:     logger.WithField("component", "scheduler"),
		cronSpec:   cronSpec,
		timeout:    digestTimeout,
	}
}

// Start registers the digest job and starts the cron engine. An invalid
// cron spec is returned instead of starting.
func (s *DigestScheduler) Start() error {
	s.logger.Info("Starting digest scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for daily digest.")
		s.RunOnce()
	})
	if err != nil {
		return fmt.Errorf("could not add daily digest cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Digest scheduler started.")
	return nil
}

// RunOnce sends one digest with the job timeout applied.
func (s *DigestScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.sender.SendDailyDigest(ctx); err != nil {
		s.logger.WithError(err).Error("Error during daily digest")
	}
}

func (s *DigestScheduler) Stop() {
	s.logger.Info("Stopping digest scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Digest scheduler gracefully stopped.")
}
