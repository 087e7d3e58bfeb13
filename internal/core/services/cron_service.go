package services

import (
	"context"
	"log"

	"sangam-memberhub/internal/adapters/persistence/repositories"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// CronService runs scheduled maintenance jobs
type CronService struct {
	cron             *cron.Cron
	refreshTokenRepo repositories.RefreshTokenRepository
	exceptionRepo    *repositories.ReconciliationExceptionRepository
}

// NewCronService creates a new cron service
func NewCronService(db *gorm.DB) *CronService {
	return &CronService{
		cron:             cron.New(),
		refreshTokenRepo: repositories.NewRefreshTokenRepository(db),
		exceptionRepo:    repositories.NewReconciliationExceptionRepository(db),
	}
}

// Start registers and launches all scheduled jobs
func (s *CronService) Start() {
	// Purge expired refresh tokens nightly at 03:00
	s.cron.AddFunc("0 3 * * *", s.purgeExpiredTokens)

	// Report unreviewed reconciliation exceptions hourly
	s.cron.AddFunc("@hourly", s.reportUnreviewedExceptions)

	s.cron.Start()
	log.Println("🚀 CronService started")
}

// Stop gracefully stops the scheduler, waiting for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("🛑 CronService stopped")
}

func (s *CronService) purgeExpiredTokens() {
	if err := s.refreshTokenRepo.DeleteExpired(context.Background()); err != nil {
		log.Printf("❌ Expired token purge error: %v", err)
		return
	}
	log.Println("🗑️ Purged expired refresh tokens")
}

func (s *CronService) reportUnreviewedExceptions() {
	count, err := s.exceptionRepo.CountUnreviewed(context.Background())
	if err != nil {
		log.Printf("❌ Reconciliation exception count error: %v", err)
		return
	}
	if count > 0 {
		log.Printf("🚨 %d unreviewed reconciliation exceptions awaiting manual review", count)
	}
}
