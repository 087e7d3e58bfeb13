package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"sangam-memberhub/internal/adapters/gateway"
	"sangam-memberhub/internal/adapters/persistence/models"
	"sangam-memberhub/internal/adapters/persistence/repositories"
	"sangam-memberhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitiateCharge(t *testing.T) {
	t.Run("creates order and attaches reference", func(t *testing.T) {
		db := newTestDB(t)

		var gotAmount int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			gotAmount = int64(payload["amount"].(float64))
			json.NewEncoder(w).Encode(gateway.Order{
				ID:       "order_test_1",
				Amount:   gotAmount,
				Currency: "INR",
				Status:   "created",
			})
		}))
		defer srv.Close()

		client := gateway.NewClient(gateway.Config{KeyID: "k", KeySecret: "s", BaseURL: srv.URL})
		membershipService := newMembershipService(db)
		svc := NewReconciliationService(
			db,
			membershipService,
			repositories.NewMembershipRepository(db),
			repositories.NewTransactionRepository(db),
			repositories.NewReconciliationExceptionRepository(db),
			client,
			"rzp_test_key",
		)

		user := createTestUser(t, db, "member@example.com")
		m := createPendingMembership(t, db, user.ID, "Supporter", 200)

		params, err := svc.InitiateCharge(context.Background(), memberPrincipal(user), m.ID)
		require.NoError(t, err)
		assert.Equal(t, "order_test_1", params.OrderRef)
		assert.Equal(t, int64(200), params.Amount)
		assert.Equal(t, "INR", params.Currency)
		assert.Equal(t, "rzp_test_key", params.GatewayKeyID)
		assert.Equal(t, int64(20000), gotAmount) // rupees -> paise at the boundary

		got, err := membershipService.membershipRepo.GetByID(context.Background(), m.ID)
		require.NoError(t, err)
		require.NotNil(t, got.GatewayOrderRef)
		assert.Equal(t, "order_test_1", *got.GatewayOrderRef)

		// No money moved yet, so no ledger entry
		assert.Equal(t, int64(0), countTransactions(t, db, m.ID))
	})

	t.Run("re-initiation returns same reference without gateway call", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db) // nil gateway client: a call would panic
		user := createTestUser(t, db, "member@example.com")
		m := createPendingMembership(t, db, user.ID, "Supporter", 200)
		require.NoError(t, newMembershipService(db).AttachGatewayReference(context.Background(), m.ID, "order_existing"))

		params, err := svc.InitiateCharge(context.Background(), memberPrincipal(user), m.ID)
		require.NoError(t, err)
		assert.Equal(t, "order_existing", params.OrderRef)
	})

	t.Run("gateway failure leaves membership untouched", func(t *testing.T) {
		db := newTestDB(t)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := gateway.NewClient(gateway.Config{KeyID: "k", KeySecret: "s", BaseURL: srv.URL})
		membershipService := newMembershipService(db)
		svc := NewReconciliationService(
			db,
			membershipService,
			repositories.NewMembershipRepository(db),
			repositories.NewTransactionRepository(db),
			repositories.NewReconciliationExceptionRepository(db),
			client,
			"rzp_test_key",
		)

		user := createTestUser(t, db, "member@example.com")
		m := createPendingMembership(t, db, user.ID, "Supporter", 200)

		_, err := svc.InitiateCharge(context.Background(), memberPrincipal(user), m.ID)
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

		got, err := membershipService.membershipRepo.GetByID(context.Background(), m.ID)
		require.NoError(t, err)
		assert.Equal(t, string(domain.MembershipPending), got.Status)
		assert.Nil(t, got.GatewayOrderRef)
	})

	t.Run("other member's membership is forbidden", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		owner := createTestUser(t, db, "owner@example.com")
		other := createTestUser(t, db, "other@example.com")
		m := createPendingMembership(t, db, owner.ID, "Supporter", 200)

		_, err := svc.InitiateCharge(context.Background(), memberPrincipal(other), m.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("unknown membership", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")

		_, err := svc.InitiateCharge(context.Background(), memberPrincipal(user), 9999)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestConfirm(t *testing.T) {
	t.Run("activates membership and appends ledger entry atomically", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createPendingMembership(t, db, user.ID, "Supporter", 200)
		require.NoError(t, newMembershipService(db).AttachGatewayReference(context.Background(), m.ID, "order_1"))

		txn, err := svc.Confirm(context.Background(), memberPrincipal(user), m.ID, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, string(domain.TransactionSuccess), txn.Status)
		assert.Equal(t, int64(200), txn.Amount)
		require.NotNil(t, txn.PaymentRef)
		assert.Equal(t, "pay_1", *txn.PaymentRef)

		got, err := newMembershipService(db).membershipRepo.GetByID(context.Background(), m.ID)
		require.NoError(t, err)
		assert.Equal(t, string(domain.MembershipActive), got.Status)
		require.NotNil(t, got.StartDate)
	})

	t.Run("retry with same reference is idempotent", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createPendingMembership(t, db, user.ID, "Supporter", 200)

		first, err := svc.Confirm(context.Background(), memberPrincipal(user), m.ID, "pay_1")
		require.NoError(t, err)

		second, err := svc.Confirm(context.Background(), memberPrincipal(user), m.ID, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		// Exactly one ledger entry, no exception
		assert.Equal(t, int64(1), countTransactions(t, db, m.ID))
		assert.Equal(t, int64(0), countExceptions(t, db))
	})

	t.Run("empty payment reference", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createPendingMembership(t, db, user.ID, "Supporter", 200)

		_, err := svc.Confirm(context.Background(), memberPrincipal(user), m.ID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("other member's membership is forbidden", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		owner := createTestUser(t, db, "owner@example.com")
		other := createTestUser(t, db, "other@example.com")
		m := createPendingMembership(t, db, owner.ID, "Supporter", 200)

		_, err := svc.Confirm(context.Background(), memberPrincipal(other), m.ID, "pay_1")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("reference already used by another membership raises exception", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		alice := createTestUser(t, db, "alice@example.com")
		bob := createTestUser(t, db, "bob@example.com")
		mAlice := createPendingMembership(t, db, alice.ID, "Supporter", 200)
		mBob := createPendingMembership(t, db, bob.ID, "Supporter", 200)

		_, err := svc.Confirm(context.Background(), memberPrincipal(alice), mAlice.ID, "pay_shared")
		require.NoError(t, err)

		_, err = svc.Confirm(context.Background(), memberPrincipal(bob), mBob.ID, "pay_shared")
		assert.ErrorIs(t, err, domain.ErrReconciliation)
		assert.Equal(t, int64(1), countExceptions(t, db))

		// Bob's membership must not have been touched
		got, err := newMembershipService(db).membershipRepo.GetByID(context.Background(), mBob.ID)
		require.NoError(t, err)
		assert.Equal(t, string(domain.MembershipPending), got.Status)
	})

	t.Run("replayed reference from another member is forbidden", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		owner := createTestUser(t, db, "owner@example.com")
		other := createTestUser(t, db, "other@example.com")
		m := createPendingMembership(t, db, owner.ID, "Supporter", 200)

		_, err := svc.Confirm(context.Background(), memberPrincipal(owner), m.ID, "pay_1")
		require.NoError(t, err)

		// A non-owner replaying a known reference must not receive the
		// owner's ledger entry
		txn, err := svc.Confirm(context.Background(), memberPrincipal(other), m.ID, "pay_1")
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.Nil(t, txn)
	})

	t.Run("second confirmation with a different reference raises exception", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createPendingMembership(t, db, user.ID, "Supporter", 200)

		_, err := svc.Confirm(context.Background(), memberPrincipal(user), m.ID, "pay_a")
		require.NoError(t, err)

		_, err = svc.Confirm(context.Background(), memberPrincipal(user), m.ID, "pay_b")
		assert.ErrorIs(t, err, domain.ErrReconciliation)

		// Only the first activation made it to the ledger
		assert.Equal(t, int64(1), countTransactions(t, db, m.ID))
		assert.Equal(t, int64(1), countExceptions(t, db))

		var exc models.ReconciliationException
		require.NoError(t, db.First(&exc).Error)
		assert.Equal(t, "pay_b", exc.PaymentRef)
		assert.Contains(t, exc.Detail, string(domain.MembershipActive))
	})

	t.Run("concurrent confirmations with different references", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createPendingMembership(t, db, user.ID, "Supporter", 200)

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i, ref := range []string{"pay_a", "pay_b"} {
			wg.Add(1)
			go func(i int, ref string) {
				defer wg.Done()
				_, errs[i] = svc.Confirm(context.Background(), memberPrincipal(user), m.ID, ref)
			}(i, ref)
		}
		wg.Wait()

		// Exactly one wins; the loser is a reconciliation anomaly
		var succeeded, reconciliation int
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrReconciliation):
				reconciliation++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, reconciliation)
		assert.Equal(t, int64(1), countTransactions(t, db, m.ID))
		assert.Equal(t, int64(1), countExceptions(t, db))

		// The exception reports the state that rejected the payment, not the
		// state read before the winner committed
		var exc models.ReconciliationException
		require.NoError(t, db.First(&exc).Error)
		assert.Contains(t, exc.Detail, string(domain.MembershipActive))
	})

	t.Run("confirmation for unknown membership raises exception", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")

		_, err := svc.Confirm(context.Background(), memberPrincipal(user), 9999, "pay_1")
		assert.ErrorIs(t, err, domain.ErrReconciliation)
		assert.Equal(t, int64(1), countExceptions(t, db))
	})

	t.Run("confirmation for cancelled membership raises exception and rolls back", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createActiveMembership(t, db, user.ID, "Supporter", 200, "order_1", "pay_1")
		// A success entry exists for the original activation
		ref := "pay_1"
		require.NoError(t, db.Create(&models.Transaction{
			UserID: user.ID, MembershipID: m.ID, Amount: 200,
			Status: string(domain.TransactionSuccess), PaymentRef: &ref,
		}).Error)

		_, err := newMembershipService(db).Cancel(context.Background(), memberPrincipal(user), m.ID)
		require.NoError(t, err)

		_, err = svc.Confirm(context.Background(), memberPrincipal(user), m.ID, "pay_2")
		assert.ErrorIs(t, err, domain.ErrReconciliation)
		assert.Equal(t, int64(1), countExceptions(t, db))

		// The exception row survives the rolled back activation
		got, err := newMembershipService(db).membershipRepo.GetByID(context.Background(), m.ID)
		require.NoError(t, err)
		assert.Equal(t, string(domain.MembershipCancelled), got.Status)
		assert.Equal(t, int64(1), countTransactions(t, db, m.ID))
	})
}

func TestRecordFailure(t *testing.T) {
	t.Run("appends failed entry and keeps membership pending", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createPendingMembership(t, db, user.ID, "Supporter", 200)

		txn, err := svc.RecordFailure(context.Background(), memberPrincipal(user), m.ID, "card declined")
		require.NoError(t, err)
		assert.Equal(t, string(domain.TransactionFailed), txn.Status)
		assert.Equal(t, "card declined", txn.FailureReason)
		assert.Nil(t, txn.PaymentRef)

		got, err := newMembershipService(db).membershipRepo.GetByID(context.Background(), m.ID)
		require.NoError(t, err)
		assert.Equal(t, string(domain.MembershipPending), got.Status)
	})

	t.Run("retry after failure still works", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createPendingMembership(t, db, user.ID, "Supporter", 200)

		_, err := svc.RecordFailure(context.Background(), memberPrincipal(user), m.ID, "network error")
		require.NoError(t, err)

		txn, err := svc.Confirm(context.Background(), memberPrincipal(user), m.ID, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, string(domain.TransactionSuccess), txn.Status)
		assert.Equal(t, int64(2), countTransactions(t, db, m.ID))
	})

	t.Run("active membership is rejected", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createActiveMembership(t, db, user.ID, "Supporter", 200, "order_1", "pay_1")

		_, err := svc.RecordFailure(context.Background(), memberPrincipal(user), m.ID, "late failure")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestRecordRecurringCharge(t *testing.T) {
	t.Run("records renewal for active membership", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createActiveMembership(t, db, user.ID, "Supporter", 200, "order_1", "pay_1")

		txn, err := svc.RecordRecurringCharge(context.Background(), "order_1", "pay_renewal_1", 20000)
		require.NoError(t, err)
		assert.Equal(t, m.ID, txn.MembershipID)
		assert.Equal(t, int64(200), txn.Amount) // paise -> rupees
		assert.Equal(t, string(domain.TransactionSuccess), txn.Status)
	})

	t.Run("duplicate delivery is idempotent", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createActiveMembership(t, db, user.ID, "Supporter", 200, "order_1", "pay_1")

		first, err := svc.RecordRecurringCharge(context.Background(), "order_1", "pay_renewal_1", 20000)
		require.NoError(t, err)

		second, err := svc.RecordRecurringCharge(context.Background(), "order_1", "pay_renewal_1", 20000)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, int64(1), countTransactions(t, db, m.ID))
	})

	t.Run("unknown gateway reference raises exception", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)

		_, err := svc.RecordRecurringCharge(context.Background(), "order_unknown", "pay_renewal_1", 20000)
		assert.ErrorIs(t, err, domain.ErrReconciliation)
		assert.Equal(t, int64(1), countExceptions(t, db))
	})

	t.Run("charge against cancelled membership raises exception", func(t *testing.T) {
		db := newTestDB(t)
		svc := newReconciliationService(db)
		user := createTestUser(t, db, "member@example.com")
		m := createActiveMembership(t, db, user.ID, "Supporter", 200, "order_1", "pay_1")

		_, err := newMembershipService(db).Cancel(context.Background(), memberPrincipal(user), m.ID)
		require.NoError(t, err)

		_, err = svc.RecordRecurringCharge(context.Background(), "order_1", "pay_renewal_1", 20000)
		assert.ErrorIs(t, err, domain.ErrReconciliation)
		assert.Equal(t, int64(1), countExceptions(t, db))
	})
}

func TestPaymentHistory(t *testing.T) {
	db := newTestDB(t)
	svc := newReconciliationService(db)
	user := createTestUser(t, db, "member@example.com")
	m := createPendingMembership(t, db, user.ID, "Supporter", 200)

	_, err := svc.RecordFailure(context.Background(), memberPrincipal(user), m.ID, "card declined")
	require.NoError(t, err)
	_, err = svc.Confirm(context.Background(), memberPrincipal(user), m.ID, "pay_1")
	require.NoError(t, err)

	history, err := svc.PaymentHistory(context.Background(), memberPrincipal(user))
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Another member sees nothing
	other := createTestUser(t, db, "other@example.com")
	otherHistory, err := svc.PaymentHistory(context.Background(), memberPrincipal(other))
	require.NoError(t, err)
	assert.Empty(t, otherHistory)
}
