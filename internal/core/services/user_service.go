package services

import (
	"context"
	"errors"

	"sangam-memberhub/internal/adapters/persistence/models"
	"sangam-memberhub/internal/adapters/persistence/repositories"
	"sangam-memberhub/internal/core/domain"

	"gorm.io/gorm"
)

// UserService handles member profile and admin member listings
type UserService struct {
	userRepo       repositories.UserRepository
	membershipRepo *repositories.MembershipRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository, membershipRepo *repositories.MembershipRepository) *UserService {
	return &UserService{
		userRepo:       userRepo,
		membershipRepo: membershipRepo,
	}
}

// GetProfile returns the user's own profile
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user.ToResponse(), nil
}

// UpdateProfileInput represents profile update input
type UpdateProfileInput struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// UpdateProfile updates the user's own name and phone
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, input *UpdateProfileInput) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Phone != "" {
		user.Phone = input.Phone
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// MemberSummary is a member row enriched with their latest membership
type MemberSummary struct {
	ID               uint    `json:"id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	Phone            string  `json:"phone"`
	MembershipID     uint    `json:"membership_id,omitempty"`
	PlanName         string  `json:"plan_name,omitempty"`
	PlanAmount       int64   `json:"plan_amount,omitempty"`
	MembershipStatus string  `json:"membership_status,omitempty"`
	StartDate        *string `json:"start_date,omitempty"`
}

// ListMembers returns members with their latest membership, for admin views
func (s *UserService) ListMembers(ctx context.Context, offset, limit int) ([]*MemberSummary, int64, error) {
	users, total, err := s.userRepo.List(ctx, string(domain.RoleUser), offset, limit)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]*MemberSummary, 0, len(users))
	for _, u := range users {
		summary := &MemberSummary{
			ID:    u.ID,
			Name:  u.Name,
			Email: u.Email,
			Phone: u.Phone,
		}

		m, err := s.membershipRepo.GetLatestByUserID(ctx, u.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, err
		}
		if m != nil {
			summary.MembershipID = m.ID
			summary.PlanName = m.PlanName
			summary.PlanAmount = m.PlanAmount
			summary.MembershipStatus = m.Status
			if m.StartDate != nil {
				d := m.StartDate.Format("2006-01-02")
				summary.StartDate = &d
			}
		}

		summaries = append(summaries, summary)
	}

	return summaries, total, nil
}
