package services

import (
	"testing"
	"time"

	"sangam-memberhub/internal/adapters/persistence/models"
	"sangam-memberhub/internal/adapters/persistence/repositories"
	"sangam-memberhub/internal/core/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory SQLite database with the full schema.
// SQLite has no FOR UPDATE syntax, so the locking clause is stubbed out;
// the single shared connection serializes writers the way MySQL row locks
// do in production.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	db.ClauseBuilders[clause.Locking{}.Name()] = func(c clause.Clause, builder clause.Builder) {}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func newMembershipService(db *gorm.DB) *MembershipService {
	return NewMembershipService(db, repositories.NewMembershipRepository(db))
}

func newReconciliationService(db *gorm.DB) *ReconciliationService {
	return NewReconciliationService(
		db,
		newMembershipService(db),
		repositories.NewMembershipRepository(db),
		repositories.NewTransactionRepository(db),
		repositories.NewReconciliationExceptionRepository(db),
		nil, // gateway client unused outside InitiateCharge
		"rzp_test_key",
	)
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Name:     "Test Member",
		Email:    email,
		Password: "hashed",
		Role:     string(domain.RoleUser),
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func memberPrincipal(user *models.User) domain.Principal {
	return domain.Principal{UserID: user.ID, Role: domain.RoleUser}
}

func createPendingMembership(t *testing.T, db *gorm.DB, userID uint, plan string, amount int64) *models.Membership {
	t.Helper()

	m := &models.Membership{
		UserID:     userID,
		PlanName:   plan,
		PlanAmount: amount,
		Status:     string(domain.MembershipPending),
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func createActiveMembership(t *testing.T, db *gorm.DB, userID uint, plan string, amount int64, orderRef, paymentRef string) *models.Membership {
	t.Helper()

	now := time.Now()
	m := &models.Membership{
		UserID:          userID,
		PlanName:        plan,
		PlanAmount:      amount,
		Status:          string(domain.MembershipActive),
		GatewayOrderRef: &orderRef,
		PaymentRef:      &paymentRef,
		StartDate:       &now,
	}
	require.NoError(t, db.Create(m).Error)
	return m
}

func countExceptions(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.ReconciliationException{}).Count(&count).Error)
	return count
}

func countTransactions(t *testing.T, db *gorm.DB, membershipID uint) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Transaction{}).
		Where("membership_id = ?", membershipID).Count(&count).Error)
	return count
}
