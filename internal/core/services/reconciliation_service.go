package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"sangam-memberhub/internal/adapters/gateway"
	"sangam-memberhub/internal/adapters/persistence/models"
	"sangam-memberhub/internal/adapters/persistence/repositories"
	"sangam-memberhub/internal/core/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Currency is the only settlement currency handled by this system
const Currency = "INR"

// ReconciliationService converts untrusted gateway events into trusted state
// transitions. Confirmations are delivered at least once; this service makes
// their effect exactly once: the membership activation and its ledger entry
// are written in one transaction, and the unique payment_ref index plus
// per-membership row locks keep duplicate or concurrent deliveries from
// double-applying.
type ReconciliationService struct {
	db                *gorm.DB
	membershipService *MembershipService
	membershipRepo    *repositories.MembershipRepository
	transactionRepo   *repositories.TransactionRepository
	exceptionRepo     *repositories.ReconciliationExceptionRepository
	gatewayClient     *gateway.Client
	gatewayKeyID      string
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	db *gorm.DB,
	membershipService *MembershipService,
	membershipRepo *repositories.MembershipRepository,
	transactionRepo *repositories.TransactionRepository,
	exceptionRepo *repositories.ReconciliationExceptionRepository,
	gatewayClient *gateway.Client,
	gatewayKeyID string,
) *ReconciliationService {
	return &ReconciliationService{
		db:                db,
		membershipService: membershipService,
		membershipRepo:    membershipRepo,
		transactionRepo:   transactionRepo,
		exceptionRepo:     exceptionRepo,
		gatewayClient:     gatewayClient,
		gatewayKeyID:      gatewayKeyID,
	}
}

// ChargeParams are the gateway-facing parameters the member's client needs
// to complete checkout.
type ChargeParams struct {
	MembershipID uint   `json:"membership_id"`
	OrderRef     string `json:"order_ref"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	GatewayKeyID string `json:"gateway_key_id"`
	PlanName     string `json:"plan_name"`
}

// InitiateCharge obtains gateway-side charge parameters for a PENDING
// membership and attaches the gateway reference to it.
//
// The gateway call happens strictly before the local attach; no lock is
// held while waiting on the network, and a gateway failure leaves the
// membership PENDING with nothing attached so the call can be retried.
// No ledger entry is written here: no money has moved yet.
func (s *ReconciliationService) InitiateCharge(ctx context.Context, principal domain.Principal, membershipID uint) (*ChargeParams, error) {
	m, err := s.membershipRepo.GetByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if m.UserID != principal.UserID {
		return nil, domain.ErrForbidden
	}

	// Re-initiating after a reference is attached just returns the same
	// parameters; the gateway is not asked for a second order.
	if m.GatewayOrderRef != nil {
		if m.Status != string(domain.MembershipPending) {
			return nil, domain.ErrInvalidState
		}
		return s.chargeParams(m, *m.GatewayOrderRef), nil
	}

	if m.Status != string(domain.MembershipPending) {
		return nil, domain.ErrInvalidState
	}

	receipt := fmt.Sprintf("memb_%d_%s", m.ID, uuid.New().String()[:8])
	order, err := s.gatewayClient.CreateOrder(ctx, m.PlanAmount, Currency, receipt)
	if err != nil {
		return nil, err
	}

	if err := s.membershipService.AttachGatewayReference(ctx, m.ID, order.ID); err != nil {
		return nil, err
	}

	return s.chargeParams(m, order.ID), nil
}

func (s *ReconciliationService) chargeParams(m *models.Membership, orderRef string) *ChargeParams {
	return &ChargeParams{
		MembershipID: m.ID,
		OrderRef:     orderRef,
		Amount:       m.PlanAmount,
		Currency:     Currency,
		GatewayKeyID: s.gatewayKeyID,
		PlanName:     m.PlanName,
	}
}

// Confirm reconciles a payment confirmation against the pending membership.
//
// Idempotent under retries: a paymentRef that already has a SUCCESS ledger
// entry for this membership returns that entry with no side effects.
// Otherwise the activation and the ledger append happen in one transaction,
// both or neither. A confirmation that matches nothing locally is a
// reconciliation anomaly: money moved at the gateway, so it is durably
// recorded for manual review and surfaced, never swallowed.
func (s *ReconciliationService) Confirm(ctx context.Context, principal domain.Principal, membershipID uint, paymentRef string) (*models.Transaction, error) {
	if paymentRef == "" {
		return nil, domain.ErrInvalidInput
	}

	// Ownership is checked before any ledger lookup so a replayed reference
	// never leaks another member's transaction.
	m, err := s.membershipRepo.GetByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.raiseException(ctx, membershipID, paymentRef, "membership not found for confirmed payment")
		}
		return nil, err
	}
	if m.UserID != principal.UserID {
		return nil, domain.ErrForbidden
	}

	// Duplicate delivery short-circuit.
	if existing, err := s.transactionRepo.GetByPaymentRef(ctx, paymentRef); err == nil {
		if existing.MembershipID == membershipID && existing.Status == string(domain.TransactionSuccess) {
			return existing, nil
		}
		return nil, s.raiseException(ctx, membershipID, paymentRef,
			fmt.Sprintf("payment reference already recorded for membership %d", existing.MembershipID))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now()
	var txn *models.Transaction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, replay, err := s.membershipService.ActivateInTx(ctx, tx, membershipID, paymentRef, now)
		if err != nil {
			return err
		}
		if replay {
			// A duplicate delivery committed between our pre-check and this
			// lock. Its ledger entry is visible now; return it. A missing
			// entry means the activate/append pair is broken.
			var existing models.Transaction
			if err := tx.Where("payment_ref = ?", paymentRef).First(&existing).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domain.ErrReconciliation
				}
				return err
			}
			txn = &existing
			return nil
		}

		txn = &models.Transaction{
			UserID:       locked.UserID,
			MembershipID: locked.ID,
			Amount:       locked.PlanAmount,
			Status:       string(domain.TransactionSuccess),
			PaymentRef:   &paymentRef,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a duplicate delivery that committed first.
			if existing, lookupErr := s.transactionRepo.GetByPaymentRef(ctx, paymentRef); lookupErr == nil {
				return existing, nil
			}
		}
		if errors.Is(err, domain.ErrInvalidState) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrReconciliation) {
			// The pre-transaction read can be stale by now; re-read so the
			// exception records the state that actually rejected the payment.
			status := m.Status
			if fresh, readErr := s.membershipRepo.GetByID(ctx, membershipID); readErr == nil {
				status = fresh.Status
			}
			return nil, s.raiseException(ctx, membershipID, paymentRef,
				fmt.Sprintf("confirmation for membership in state %s", status))
		}
		return nil, err
	}

	log.Printf("✅ Membership %d activated, payment %s (₹%d)", membershipID, paymentRef, txn.Amount)
	return txn, nil
}

// RecordFailure appends a FAILED ledger entry for a pending membership. The
// membership stays PENDING and can be retried or abandoned.
func (s *ReconciliationService) RecordFailure(ctx context.Context, principal domain.Principal, membershipID uint, reason string) (*models.Transaction, error) {
	m, err := s.membershipRepo.GetByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if m.UserID != principal.UserID {
		return nil, domain.ErrForbidden
	}
	if m.Status != string(domain.MembershipPending) {
		return nil, domain.ErrInvalidState
	}

	txn := &models.Transaction{
		UserID:        m.UserID,
		MembershipID:  m.ID,
		Amount:        m.PlanAmount,
		Status:        string(domain.TransactionFailed),
		FailureReason: reason,
	}
	if err := s.transactionRepo.Create(ctx, txn); err != nil {
		return nil, err
	}

	log.Printf("⚠️ Payment failure recorded for membership %d: %s", membershipID, reason)
	return txn, nil
}

// RecordRecurringCharge records a renewal charge pushed by the gateway
// webhook for an already-active membership. Idempotent by paymentRef.
// amountPaise comes straight off the wire and is converted to rupees here.
func (s *ReconciliationService) RecordRecurringCharge(ctx context.Context, orderRef, paymentRef string, amountPaise int64) (*models.Transaction, error) {
	if orderRef == "" || paymentRef == "" {
		return nil, domain.ErrInvalidInput
	}

	if existing, err := s.transactionRepo.GetByPaymentRef(ctx, paymentRef); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	m, err := s.membershipRepo.GetByGatewayOrderRef(ctx, orderRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.raiseException(ctx, 0, paymentRef,
				fmt.Sprintf("recurring charge for unknown gateway reference %s", orderRef))
		}
		return nil, err
	}
	if m.Status != string(domain.MembershipActive) {
		return nil, s.raiseException(ctx, m.ID, paymentRef,
			fmt.Sprintf("recurring charge for membership in state %s", m.Status))
	}

	txn := &models.Transaction{
		UserID:       m.UserID,
		MembershipID: m.ID,
		Amount:       amountPaise / 100,
		Status:       string(domain.TransactionSuccess),
		PaymentRef:   &paymentRef,
	}
	if err := s.transactionRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.transactionRepo.GetByPaymentRef(ctx, paymentRef)
		}
		return nil, err
	}

	log.Printf("✅ Recurring charge recorded for membership %d, payment %s (₹%d)", m.ID, paymentRef, txn.Amount)
	return txn, nil
}

// PaymentHistory lists the caller's ledger entries, newest first
func (s *ReconciliationService) PaymentHistory(ctx context.Context, principal domain.Principal) ([]*models.Transaction, error) {
	return s.transactionRepo.ListByUserID(ctx, principal.UserID, 100)
}

// raiseException durably records a money/state mismatch and returns
// domain.ErrReconciliation. The exception row is written outside any rolled
// back transaction so it survives for manual review even when the
// confirmation itself is rejected.
func (s *ReconciliationService) raiseException(ctx context.Context, membershipID uint, paymentRef, detail string) error {
	exc := &models.ReconciliationException{
		MembershipID: membershipID,
		PaymentRef:   paymentRef,
		Detail:       detail,
	}
	if err := s.exceptionRepo.Create(ctx, exc); err != nil {
		// The mismatch still has to surface even if the exception log is
		// unwritable; the returned error carries it to the caller.
		log.Printf("❌ Failed to persist reconciliation exception (membership %d, ref %s): %v", membershipID, paymentRef, err)
	}

	log.Printf("🚨 Reconciliation exception: membership %d, ref %s: %s", membershipID, paymentRef, detail)
	return fmt.Errorf("%w: %s", domain.ErrReconciliation, detail)
}
