package services

import (
	"context"

	"sangam-memberhub/internal/core/domain"

	"gorm.io/gorm"
)

// StatsService computes admin-facing aggregates from the ledger store. Pure
// read side: everything is recomputed per request, no caches to invalidate.
type StatsService struct {
	db *gorm.DB
}

// NewStatsService creates a new stats service
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// AdminStats represents the aggregate figures for the admin dashboard
type AdminStats struct {
	TotalMembers          int64 `json:"total_members"`
	TotalMonthlyRecurring int64 `json:"total_monthly_recurring"`
	TotalLifetimeFunds    int64 `json:"total_lifetime_funds"`
	ActiveMemberships     int64 `json:"active_memberships"`
	CancelledMemberships  int64 `json:"cancelled_memberships"`
}

// GetAdminStats computes all four aggregate figures.
//
// The reads run inside one DB transaction: under InnoDB REPEATABLE READ that
// is a single consistent snapshot, so the figures can never observe a
// membership activation without its ledger entry or vice versa.
func (s *StatsService) GetAdminStats(ctx context.Context) (*AdminStats, error) {
	stats := &AdminStats{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table("users").
			Where("role = ? AND deleted_at IS NULL", string(domain.RoleUser)).
			Count(&stats.TotalMembers).Error; err != nil {
			return err
		}

		if err := tx.Table("memberships").
			Where("status = ?", string(domain.MembershipActive)).
			Select("COALESCE(SUM(plan_amount), 0)").
			Scan(&stats.TotalMonthlyRecurring).Error; err != nil {
			return err
		}

		if err := tx.Table("transactions").
			Where("status = ?", string(domain.TransactionSuccess)).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&stats.TotalLifetimeFunds).Error; err != nil {
			return err
		}

		if err := tx.Table("memberships").
			Where("status = ?", string(domain.MembershipActive)).
			Count(&stats.ActiveMemberships).Error; err != nil {
			return err
		}

		return tx.Table("memberships").
			Where("status = ?", string(domain.MembershipCancelled)).
			Count(&stats.CancelledMemberships).Error
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}
