package repositories

import (
	"context"

	"sangam-memberhub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// TransactionRepository handles ledger data access. The ledger is
// append-only: there is deliberately no Update or Delete here.
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a new ledger entry
func (r *TransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// GetByPaymentRef gets a ledger entry by its external payment reference
func (r *TransactionRepository) GetByPaymentRef(ctx context.Context, paymentRef string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).Where("payment_ref = ?", paymentRef).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListByUserID lists a user's ledger entries, newest first
func (r *TransactionRepository) ListByUserID(ctx context.Context, userID uint, limit int) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// List lists all ledger entries with user preloaded, newest first
func (r *TransactionRepository) List(ctx context.Context, offset, limit int) ([]*models.Transaction, int64, error) {
	var txns []*models.Transaction
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Transaction{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&txns).Error

	return txns, total, err
}

// ReconciliationExceptionRepository handles the reconciliation exceptions log
type ReconciliationExceptionRepository struct {
	db *gorm.DB
}

// NewReconciliationExceptionRepository creates a new exception repository
func NewReconciliationExceptionRepository(db *gorm.DB) *ReconciliationExceptionRepository {
	return &ReconciliationExceptionRepository{db: db}
}

// Create records a reconciliation exception
func (r *ReconciliationExceptionRepository) Create(ctx context.Context, exc *models.ReconciliationException) error {
	return r.db.WithContext(ctx).Create(exc).Error
}

// ListUnreviewed lists exceptions awaiting manual review, oldest first
func (r *ReconciliationExceptionRepository) ListUnreviewed(ctx context.Context, limit int) ([]*models.ReconciliationException, error) {
	var excs []*models.ReconciliationException
	err := r.db.WithContext(ctx).
		Where("reviewed = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&excs).Error
	return excs, err
}

// CountUnreviewed counts exceptions awaiting manual review
func (r *ReconciliationExceptionRepository) CountUnreviewed(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ReconciliationException{}).
		Where("reviewed = ?", false).Count(&count).Error
	return count, err
}
