package repositories

import (
	"context"

	"sangam-memberhub/internal/adapters/persistence/models"
	"sangam-memberhub/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipRepository handles membership data access
type MembershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Create creates a new membership
func (r *MembershipRepository) Create(ctx context.Context, m *models.Membership) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID gets a membership by ID
func (r *MembershipRepository) GetByID(ctx context.Context, id uint) (*models.Membership, error) {
	var m models.Membership
	err := r.db.WithContext(ctx).First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByIDForUpdate gets a membership by ID holding a row lock. Must be
// called inside a transaction; the lock serializes all transitions on the
// same membership until that transaction ends.
func (r *MembershipRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Membership, error) {
	var m models.Membership
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetCurrentByUserID gets the user's non-terminal membership, if any
func (r *MembershipRepository) GetCurrentByUserID(ctx context.Context, userID uint) (*models.Membership, error) {
	var m models.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID,
			[]string{string(domain.MembershipPending), string(domain.MembershipActive)}).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByGatewayOrderRef gets a membership by its gateway order reference
func (r *MembershipRepository) GetByGatewayOrderRef(ctx context.Context, ref string) (*models.Membership, error) {
	var m models.Membership
	err := r.db.WithContext(ctx).Where("gateway_order_ref = ?", ref).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetLatestByUserID gets the user's most recent membership regardless of status
func (r *MembershipRepository) GetLatestByUserID(ctx context.Context, userID uint) (*models.Membership, error) {
	var m models.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Update updates a membership
func (r *MembershipRepository) Update(ctx context.Context, m *models.Membership) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// CountByStatus counts memberships with the given status
func (r *MembershipRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("status = ?", status).Count(&count).Error
	return count, err
}
