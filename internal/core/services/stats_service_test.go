package services

import (
	"context"
	"testing"

	"sangam-memberhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAdminStats(t *testing.T) {
	t.Run("empty database", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewStatsService(db)

		stats, err := svc.GetAdminStats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.TotalMembers)
		assert.Equal(t, int64(0), stats.TotalMonthlyRecurring)
		assert.Equal(t, int64(0), stats.TotalLifetimeFunds)
	})

	t.Run("lifetime funds count settled payments only", func(t *testing.T) {
		db := newTestDB(t)
		statsSvc := NewStatsService(db)
		recon := newReconciliationService(db)
		memberships := newMembershipService(db)

		// Alice: one failed attempt, then an activation and a renewal
		alice := createTestUser(t, db, "alice@example.com")
		mAlice := createPendingMembership(t, db, alice.ID, "Supporter", 200)
		require.NoError(t, memberships.AttachGatewayReference(context.Background(), mAlice.ID, "order_alice"))

		_, err := recon.RecordFailure(context.Background(), memberPrincipal(alice), mAlice.ID, "card declined")
		require.NoError(t, err)
		_, err = recon.Confirm(context.Background(), memberPrincipal(alice), mAlice.ID, "pay_alice_1")
		require.NoError(t, err)
		_, err = recon.RecordRecurringCharge(context.Background(), "order_alice", "pay_alice_2", 20000)
		require.NoError(t, err)

		// Bob: activated then cancelled; his payment still counts
		bob := createTestUser(t, db, "bob@example.com")
		mBob := createPendingMembership(t, db, bob.ID, "Patron", 500)
		_, err = recon.Confirm(context.Background(), memberPrincipal(bob), mBob.ID, "pay_bob_1")
		require.NoError(t, err)
		_, err = memberships.Cancel(context.Background(), memberPrincipal(bob), mBob.ID)
		require.NoError(t, err)

		// Carol: still pending, nothing settled
		carol := createTestUser(t, db, "carol@example.com")
		createPendingMembership(t, db, carol.ID, "Supporter", 200)

		stats, err := statsSvc.GetAdminStats(context.Background())
		require.NoError(t, err)

		assert.Equal(t, int64(3), stats.TotalMembers)
		// Only Alice is ACTIVE: recurring = 200
		assert.Equal(t, int64(200), stats.TotalMonthlyRecurring)
		// 200 + 200 + 500, failed attempt excluded
		assert.Equal(t, int64(900), stats.TotalLifetimeFunds)
		assert.Equal(t, int64(1), stats.ActiveMemberships)
		assert.Equal(t, int64(1), stats.CancelledMemberships)
	})

	t.Run("admins are not counted as members", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewStatsService(db)

		createTestUser(t, db, "member@example.com")
		admin := createTestUser(t, db, "admin@example.com")
		require.NoError(t, db.Model(admin).Update("role", string(domain.RoleAdmin)).Error)

		stats, err := svc.GetAdminStats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.TotalMembers)
	})
}
