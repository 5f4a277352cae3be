package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/models"
)

// CronService manages scheduled background jobs
type CronService struct {
	cron         *cron.Cron
	db           database.DB
	approvals    *ApprovalService
	subscription *SubscriptionService
	otp          *OTPService
	notifier     *NotificationService
	cfg          config.CronConfig
	logger       *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(db database.DB, approvals *ApprovalService, subscription *SubscriptionService, otp *OTPService, notifier *NotificationService, cfg config.CronConfig, logger *logrus.Logger) (*CronService, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid cron timezone %q: %w", cfg.Timezone, err)
	}

	return &CronService{
		cron:         cron.New(cron.WithLocation(loc)),
		db:           db,
		approvals:    approvals,
		subscription: subscription,
		otp:          otp,
		notifier:     notifier,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	// Cron format: minute hour day month weekday
	jobs := []struct {
		spec string
		name string
		fn   func()
	}{
		{"0 0 * * *", "roll subscription periods", s.rollSubscriptionsJob},
		{"5 0 * * *", "execute due move-outs", s.dueMoveOutsJob},
		{"10 0 * * *", "publish scheduled blog posts", s.publishBlogPostsJob},
		{"0 1 * * *", "deactivate stale apartments", s.staleApartmentsJob},
		{"0 * * * *", "cleanup expired OTPs", s.cleanupOTPsJob},
	}

	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, job.fn); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.logger.WithFields(logrus.Fields{"job": job.name, "spec": job.spec}).Info("Scheduled cron job")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")

	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// rollSubscriptionsJob expires finished billing periods and activates the
// next scheduled ones.
func (s *CronService) rollSubscriptionsJob() {
	start := time.Now()

	expired, activated, err := s.subscription.RollPeriods(start)
	if err != nil {
		s.logger.WithError(err).Error("Subscription roll job failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"expired":   expired,
		"activated": activated,
		"duration":  time.Since(start).String(),
	}).Info("Subscription roll job finished")
}

// dueMoveOutsJob executes approved move-outs whose date has arrived
func (s *CronService) dueMoveOutsJob() {
	start := time.Now()

	executed, err := s.approvals.ExecuteDueMoveOuts(start)
	if err != nil {
		s.logger.WithError(err).Error("Due move-outs job failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"executed": executed,
		"duration": time.Since(start).String(),
	}).Info("Due move-outs job finished")
}

// publishBlogPostsJob flips scheduled posts to published once their publish
// time passes.
func (s *CronService) publishBlogPostsJob() {
	published, err := database.NewBlogPostRepository(s.db).PublishDue(time.Now())
	if err != nil {
		s.logger.WithError(err).Error("Blog publish job failed")
		return
	}

	if published > 0 {
		s.logger.WithField("published", published).Info("Published scheduled blog posts")
	}
}

// staleApartmentsJob deactivates apartments with no activity past the idle
// threshold and warns their admins by email.
func (s *CronService) staleApartmentsJob() {
	apartmentRepo := database.NewApartmentRepository(s.db)
	cutoff := time.Now().Add(-s.cfg.ApartmentIdleThreshold)

	stale, err := apartmentRepo.ListStaleApartments(cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Stale apartments job failed")
		return
	}

	for _, apartment := range stale {
		if err := apartmentRepo.UpdateStatus(apartment.ID, models.ApartmentInactive); err != nil {
			s.logger.WithError(err).WithField("apartment_id", apartment.ID).Warn("Failed to deactivate apartment")
			continue
		}

		s.logger.WithField("apartment_id", apartment.ID).Info("Deactivated stale apartment")

		subject := fmt.Sprintf("%s has been deactivated", apartment.Name)
		body := fmt.Sprintf("The apartment %q was deactivated after %d days without activity. Contact support to reactivate it.",
			apartment.Name, int(s.cfg.ApartmentIdleThreshold.Hours()/24))
		s.notifier.EmailApartmentAdmins(apartment.ID, subject, body, "")
	}
}

// cleanupOTPsJob removes expired OTP rows
func (s *CronService) cleanupOTPsJob() {
	removed, err := s.otp.CleanupExpiredOTPs()
	if err != nil {
		s.logger.WithError(err).Error("OTP cleanup job failed")
		return
	}

	if removed > 0 {
		s.logger.WithField("removed", removed).Debug("Cleaned up expired OTPs")
	}
}

// RunDueMoveOutsNow triggers the move-out job immediately
func (s *CronService) RunDueMoveOutsNow() {
	s.dueMoveOutsJob()
}

// RunSubscriptionRollNow triggers the subscription roll job immediately
func (s *CronService) RunSubscriptionRollNow() {
	s.rollSubscriptionsJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
