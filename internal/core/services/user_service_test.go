package services

import (
	"context"
	"testing"

	"sangam-memberhub/internal/adapters/persistence/models"
	"sangam-memberhub/internal/adapters/persistence/repositories"
	"sangam-memberhub/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUserService(db *gorm.DB) *UserService {
	return NewUserService(
		repositories.NewUserRepository(db),
		repositories.NewMembershipRepository(db),
	)
}

func TestListMembers(t *testing.T) {
	t.Run("enriches members with their latest membership", func(t *testing.T) {
		db := newTestDB(t)
		svc := newUserService(db)
		alice := createTestUser(t, db, "alice@example.com")
		bob := createTestUser(t, db, "bob@example.com")
		m := createActiveMembership(t, db, alice.ID, "Supporter", 200, "order_1", "pay_1")

		members, total, err := svc.ListMembers(context.Background(), 0, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, members, 2)

		byEmail := make(map[string]*MemberSummary, len(members))
		for _, s := range members {
			byEmail[s.Email] = s
		}

		withPlan := byEmail["alice@example.com"]
		require.NotNil(t, withPlan)
		assert.Equal(t, m.ID, withPlan.MembershipID)
		assert.Equal(t, "Supporter", withPlan.PlanName)
		assert.Equal(t, int64(200), withPlan.PlanAmount)
		assert.Equal(t, string(domain.MembershipActive), withPlan.MembershipStatus)
		require.NotNil(t, withPlan.StartDate)

		withoutPlan := byEmail["bob@example.com"]
		require.NotNil(t, withoutPlan)
		assert.Equal(t, bob.ID, withoutPlan.ID)
		assert.Zero(t, withoutPlan.MembershipID)
		assert.Empty(t, withoutPlan.PlanName)
		assert.Nil(t, withoutPlan.StartDate)
	})

	t.Run("admins are not listed as members", func(t *testing.T) {
		db := newTestDB(t)
		svc := newUserService(db)
		createTestUser(t, db, "member@example.com")
		require.NoError(t, db.Create(&models.User{
			Name: "Administrator", Email: "admin@example.com",
			Password: "hashed", Role: string(domain.RoleAdmin), IsActive: true,
		}).Error)

		members, total, err := svc.ListMembers(context.Background(), 0, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, members, 1)
		assert.Equal(t, "member@example.com", members[0].Email)
	})
}
