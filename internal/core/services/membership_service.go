package services

import (
	"context"
	"errors"
	"log"
	"time"

	"sangam-memberhub/internal/adapters/persistence/models"
	"sangam-memberhub/internal/adapters/persistence/repositories"
	"sangam-memberhub/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MembershipService governs the membership lifecycle:
// NONE -> PENDING -> ACTIVE -> CANCELLED. All transitions on a given
// membership are serialized through row locks so concurrent calls cannot
// observe or produce a half-applied state.
type MembershipService struct {
	db             *gorm.DB
	membershipRepo *repositories.MembershipRepository
}

// NewMembershipService creates a new membership service
func NewMembershipService(db *gorm.DB, membershipRepo *repositories.MembershipRepository) *MembershipService {
	return &MembershipService{
		db:             db,
		membershipRepo: membershipRepo,
	}
}

// SelectPlanInput represents plan selection input
type SelectPlanInput struct {
	PlanName   string `json:"plan_name" validate:"required"`
	PlanAmount int64  `json:"plan_amount" validate:"required,gt=0"`
}

// SelectPlan creates a PENDING membership for the caller.
//
// An ACTIVE membership, or a PENDING one whose charge has already been
// initiated (gateway reference attached), rejects the selection. A PENDING
// membership that never reached checkout is inert: it is superseded in the
// same transaction so the at-most-one-non-terminal invariant holds.
func (s *MembershipService) SelectPlan(ctx context.Context, principal domain.Principal, input *SelectPlanInput) (*models.Membership, error) {
	if input.PlanName == "" || input.PlanAmount <= 0 {
		return nil, domain.ErrInvalidInput
	}

	var created *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Membership
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND status IN ?", principal.UserID,
				[]string{string(domain.MembershipPending), string(domain.MembershipActive)}).
			First(&current).Error

		switch {
		case err == nil:
			if current.Status == string(domain.MembershipActive) || current.GatewayOrderRef != nil {
				return domain.ErrConflict
			}
			// Inert pending selection: close it out and start over.
			now := time.Now()
			current.Status = string(domain.MembershipCancelled)
			current.EndDate = &now
			if err := tx.Save(&current).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No current membership, nothing to supersede.
		default:
			return err
		}

		m := &models.Membership{
			UserID:     principal.UserID,
			PlanName:   input.PlanName,
			PlanAmount: input.PlanAmount,
			Status:     string(domain.MembershipPending),
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Membership %d created (user %d, plan %q, ₹%d)", created.ID, principal.UserID, created.PlanName, created.PlanAmount)
	return created, nil
}

// AttachGatewayReference stores the gateway-side charge handle on a PENDING
// membership. Re-attaching the same reference is a no-op; attaching a
// different one while a reference exists is an illegal transition.
func (s *MembershipService) AttachGatewayReference(ctx context.Context, membershipID uint, ref string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.membershipRepo.GetByIDForUpdate(ctx, tx, membershipID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		if m.GatewayOrderRef != nil {
			if *m.GatewayOrderRef == ref {
				return nil
			}
			return domain.ErrInvalidState
		}
		if m.Status != string(domain.MembershipPending) {
			return domain.ErrInvalidState
		}

		m.GatewayOrderRef = &ref
		return tx.Save(m).Error
	})
}

// ActivateInTx transitions PENDING -> ACTIVE inside the caller's
// transaction, so the caller can append the matching ledger entry
// atomically. Returns the membership and whether this was an idempotent
// replay (already ACTIVE with the same payment reference).
func (s *MembershipService) ActivateInTx(ctx context.Context, tx *gorm.DB, membershipID uint, paymentRef string, at time.Time) (*models.Membership, bool, error) {
	m, err := s.membershipRepo.GetByIDForUpdate(ctx, tx, membershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, domain.ErrNotFound
		}
		return nil, false, err
	}

	if m.Status == string(domain.MembershipActive) && m.PaymentRef != nil && *m.PaymentRef == paymentRef {
		return m, true, nil
	}
	if m.Status != string(domain.MembershipPending) {
		return nil, false, domain.ErrInvalidState
	}

	m.Status = string(domain.MembershipActive)
	m.StartDate = &at
	m.PaymentRef = &paymentRef
	if err := tx.Save(m).Error; err != nil {
		return nil, false, err
	}
	return m, false, nil
}

// Activate transitions a PENDING membership to ACTIVE in its own
// transaction. The reconciliation path uses ActivateInTx instead so the
// ledger append shares the transaction.
func (s *MembershipService) Activate(ctx context.Context, membershipID uint, paymentRef string, at time.Time) (*models.Membership, error) {
	var m *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		m, _, err = s.ActivateInTx(ctx, tx, membershipID, paymentRef, at)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Cancel transitions ACTIVE -> CANCELLED for a membership owned by the
// caller. Cancel is deliberately not idempotent: a double cancel is a
// client bug and is rejected rather than silently accepted.
func (s *MembershipService) Cancel(ctx context.Context, principal domain.Principal, membershipID uint) (*models.Membership, error) {
	var cancelled *models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.membershipRepo.GetByIDForUpdate(ctx, tx, membershipID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		if m.UserID != principal.UserID {
			return domain.ErrForbidden
		}
		if m.Status != string(domain.MembershipActive) {
			return domain.ErrInvalidState
		}

		now := time.Now()
		m.Status = string(domain.MembershipCancelled)
		m.EndDate = &now
		if err := tx.Save(m).Error; err != nil {
			return err
		}
		cancelled = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Membership %d cancelled (user %d)", membershipID, principal.UserID)
	return cancelled, nil
}

// GetCurrent returns the caller's PENDING or ACTIVE membership, or nil when
// there is none.
func (s *MembershipService) GetCurrent(ctx context.Context, principal domain.Principal) (*models.Membership, error) {
	m, err := s.membershipRepo.GetCurrentByUserID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}
